// Package models defines the storage-level types shared across packages.
package models

import "time"

// ProfileMeta describes one profile source file in the profile directory.
type ProfileMeta struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"updated_at"`
}

// BuildRecord is one compile outcome as kept in the build ledger.
type BuildRecord struct {
	KeySum    string        `json:"key"`
	Profile   string        `json:"profile"`
	Status    string        `json:"status"`
	Dir       string        `json:"dir,omitempty"`
	Duration  time.Duration `json:"duration"`
	Log       string        `json:"log,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Build statuses.
const (
	BuildSucceeded = "succeeded"
	BuildFailed    = "failed"
	BuildEvicted   = "evicted"
)
