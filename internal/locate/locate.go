// Package locate maps positions in a rendered build back to the profile
// source it was compiled from.
package locate

import (
	"context"
	"fmt"

	"github.com/starford/vitae/internal/apperr"
	"github.com/starford/vitae/internal/buildcache"
	"github.com/starford/vitae/internal/parser"
	"github.com/starford/vitae/internal/profile"
	"github.com/starford/vitae/internal/toolchain"
)

// Builds is the read-only view of the build cache the mapper needs.
type Builds interface {
	Lookup(key string) (*buildcache.Artifact, bool)
}

// Location is a resolved entry declaration. Line is 1-based within the key.
type Location struct {
	Line  int    `json:"line"`
	Entry string `json:"entry"`
}

// Query asks for either a rendered coordinate or an explicit token.
// A positive Page selects the coordinate lookup; otherwise Target is used.
type Query struct {
	Page   int
	X, Y   float64
	Target string
}

// Mapper resolves coordinates and tokens against resident builds. It never
// compiles: a key without a resident build yields apperr.ErrGone.
type Mapper struct {
	builds Builds
	tc     *toolchain.Toolchain
}

// New creates a Mapper.
func New(builds Builds, tc *toolchain.Toolchain) *Mapper {
	return &Mapper{builds: builds, tc: tc}
}

// CoordinateToLine asks the coordinate mapper which line of the key a point
// on a page came from, then walks back over empty lines. The result indexes
// the key's lines from zero.
func (m *Mapper) CoordinateToLine(ctx context.Context, key string, page int, x, y float64) (int, error) {
	a, ok := m.builds.Lookup(key)
	if !ok {
		return 0, apperr.ErrGone
	}
	n, _, err := m.coordinate(ctx, a, key, page, x, y)
	return n, err
}

func (m *Mapper) coordinate(ctx context.Context, a *buildcache.Artifact, key string, page int, x, y float64) (int, []string, error) {
	n, err := m.tc.Edit(ctx, a.Dir, page, x, y)
	if err != nil {
		return 0, nil, err
	}
	lines := profile.Lines(key)
	if n < 0 || n >= len(lines) {
		return 0, nil, &apperr.ToolingError{
			Op:     "synctex",
			Detail: fmt.Sprintf("line %d outside input of %d lines", n, len(lines)),
		}
	}
	for n > 0 && lines[n] == "" {
		n--
	}
	return n, lines, nil
}

// LineToEntry finds the declaration of target in the key. A target that is
// not shaped like an entry token yields apperr.ErrNoMapping; a well-formed
// token without a declaration yields apperr.ErrNotFound.
func (m *Mapper) LineToEntry(key, target string) (Location, error) {
	if _, ok := m.builds.Lookup(key); !ok {
		return Location{}, apperr.ErrGone
	}
	return lineToEntry(profile.Lines(key), target)
}

func lineToEntry(lines []string, target string) (Location, error) {
	if _, ok := parser.ParseToken(target); !ok {
		return Location{}, apperr.ErrNoMapping
	}
	for i, l := range lines {
		if parser.IsDeclarationLine(l, target) {
			return Location{Line: i + 1, Entry: target}, nil
		}
	}
	return Location{}, fmt.Errorf("declaration of %s: %w", target, apperr.ErrNotFound)
}

// Locate resolves q against the build for key. A coordinate is first mapped
// to the text of its line, which then serves as the target token.
func (m *Mapper) Locate(ctx context.Context, key string, q Query) (Location, error) {
	a, ok := m.builds.Lookup(key)
	if !ok {
		return Location{}, apperr.ErrGone
	}
	if q.Page <= 0 {
		return lineToEntry(profile.Lines(key), q.Target)
	}
	n, lines, err := m.coordinate(ctx, a, key, q.Page, q.X, q.Y)
	if err != nil {
		return Location{}, err
	}
	return lineToEntry(lines, lines[n])
}
