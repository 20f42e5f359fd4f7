package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vitae/internal/apperr"
	"github.com/starford/vitae/internal/models"
)

// BackupSuffix is appended to the previous version of a rewritten profile.
const BackupSuffix = ".bak"

var nameRe = regexp.MustCompile(`^[^/\\]+\.tex$`)

// ValidateName checks that name is a plain .tex file name.
func ValidateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Match(nameRe),
	)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", apperr.ErrInvalidName, name, err)
	}
	return nil
}

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the profile directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute profile directory.
func (f *FS) Root() string { return f.root }

// path validates name and resolves it under root.
func (f *FS) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	abs := filepath.Join(f.root, name)
	if filepath.Dir(abs) != f.root {
		return "", fmt.Errorf("%w: %q escapes profile root", apperr.ErrInvalidName, name)
	}
	return abs, nil
}

// List returns metadata for every .tex file directly under root, sorted by name.
func (f *FS) List() ([]models.ProfileMeta, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	out := make([]models.ProfileMeta, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tex") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, meta(e.Name(), info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Stat returns metadata for a profile. A missing profile yields an error
// matching both os.ErrNotExist and apperr.ErrNotFound.
func (f *FS) Stat(name string) (models.ProfileMeta, error) {
	abs, err := f.path(name)
	if err != nil {
		return models.ProfileMeta{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.ProfileMeta{}, notFound(name, err)
	}
	return meta(name, info), nil
}

// Read returns the raw bytes of a profile.
func (f *FS) Read(name string) ([]byte, error) {
	abs, err := f.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, notFound(name, err)
	}
	return data, nil
}

// Write renames the current profile (if any) to name.bak, then atomically
// writes content: tmp file, fsync, rename.
func (f *FS) Write(name string, content []byte) error {
	abs, err := f.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".vitae-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(abs, abs+BackupSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: backup: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

func meta(name string, info os.FileInfo) models.ProfileMeta {
	return models.ProfileMeta{Name: name, Size: info.Size(), ModTime: info.ModTime()}
}

type notFoundError struct {
	name string
	err  error
}

func (e *notFoundError) Error() string { return fmt.Sprintf("storage: %s: %v", e.name, e.err) }

func (e *notFoundError) Unwrap() []error { return []error{e.err, apperr.ErrNotFound} }

func notFound(name string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return &notFoundError{name: name, err: err}
	}
	return fmt.Errorf("storage: %s: %w", name, err)
}
