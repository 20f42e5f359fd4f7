// Package storage defines the profile directory abstraction.
package storage

import "github.com/starford/vitae/internal/models"

// Provider is the interface for profile file operations. Names are plain
// file names inside the profile directory.
type Provider interface {
	// List returns metadata for every .tex profile.
	List() ([]models.ProfileMeta, error)
	// Stat returns metadata for a single profile.
	Stat(name string) (models.ProfileMeta, error)
	// Read returns the raw content of a profile.
	Read(name string) ([]byte, error)
	// Write replaces a profile, keeping the previous content as name.bak.
	Write(name string, content []byte) error
	// Root returns the absolute profile directory.
	Root() string
}
