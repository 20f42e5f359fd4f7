package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vitae/internal/apperr"
	"github.com/starford/vitae/internal/models"
	"github.com/starford/vitae/internal/parser"
)

type memSource struct {
	mu    sync.Mutex
	files map[string]string
	mtime map[string]time.Time
	reads int
}

func newMemSource() *memSource {
	return &memSource{files: map[string]string{}, mtime: map[string]time.Time{}}
}

func (s *memSource) put(name, content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = content
	s.mtime[name] = at
}

func (s *memSource) Stat(name string) (models.ProfileMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.files[name]
	if !ok {
		return models.ProfileMeta{}, fmt.Errorf("stat %s: %w", name, os.ErrNotExist)
	}
	return models.ProfileMeta{Name: name, Size: int64(len(c)), ModTime: s.mtime[name]}, nil
}

func (s *memSource) Read(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	c, ok := s.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(c), nil
}

func (s *memSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func TestCache_HitWhileUnchanged(t *testing.T) {
	src := newMemSource()
	at := time.Unix(1700000000, 0)
	src.put("cv.tex", fixture, at)
	c := NewCache(src, 4, nil)

	m1, err := c.Get(context.Background(), "cv.tex")
	require.NoError(t, err)
	m2, err := c.Get(context.Background(), "cv.tex")
	require.NoError(t, err)

	assert.Same(t, m1, m2)
	assert.Equal(t, 1, src.readCount())
	assert.Equal(t, 1, c.Len())
}

func TestCache_RebuildOnMtimeChange(t *testing.T) {
	src := newMemSource()
	at := time.Unix(1700000000, 0)
	src.put("cv.tex", fixture, at)
	c := NewCache(src, 4, nil)

	m1, err := c.Get(context.Background(), "cv.tex")
	require.NoError(t, err)

	// A nanosecond is enough.
	src.put("cv.tex", "\\def\\pNew{New}\n\n", at.Add(time.Nanosecond))
	m2, err := c.Get(context.Background(), "cv.tex")
	require.NoError(t, err)

	assert.NotSame(t, m1, m2)
	assert.Equal(t, []string{`\pNew`}, m2.Entries(parser.Project))
	assert.Equal(t, 2, src.readCount())
}

func TestCache_NotFound(t *testing.T) {
	c := NewCache(newMemSource(), 4, nil)
	_, err := c.Get(context.Background(), "missing.tex")
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)
}

func TestCache_CapacityBound(t *testing.T) {
	src := newMemSource()
	at := time.Unix(1700000000, 0)
	for i := range 5 {
		src.put(fmt.Sprintf("p%d.tex", i), fixture, at)
	}
	c := NewCache(src, 2, nil)
	for i := range 5 {
		_, err := c.Get(context.Background(), fmt.Sprintf("p%d.tex", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
}

func TestCache_Invalidate(t *testing.T) {
	src := newMemSource()
	src.put("cv.tex", fixture, time.Unix(1700000000, 0))
	c := NewCache(src, 4, nil)

	_, err := c.Get(context.Background(), "cv.tex")
	require.NoError(t, err)
	c.Invalidate("cv.tex")
	assert.Equal(t, 0, c.Len())

	_, err = c.Get(context.Background(), "cv.tex")
	require.NoError(t, err)
	assert.Equal(t, 2, src.readCount())
}

func TestCache_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCache(newMemSource(), 4, nil).Get(ctx, "cv.tex")
	assert.ErrorIs(t, err, context.Canceled)
}
