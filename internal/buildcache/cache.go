// Package buildcache compiles assembled documents through the external
// toolchain and keeps a bounded number of successful builds resident on
// disk. Evicting a build deletes its scratch directory.
package buildcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"

	"github.com/starford/vitae/internal/apperr"
	"github.com/starford/vitae/internal/checksum"
	"github.com/starford/vitae/internal/metrics"
	"github.com/starford/vitae/internal/toolchain"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultCapacity = 32
	DefaultPrefix   = "vitae-"
	DefaultTimeout  = 2 * time.Minute
)

// Separator joins the profile source and the assembled body in a key.
const Separator = "\n"

// ErrMissingArtifact is reported when the compiler exits cleanly without
// producing both the document and its position map.
var ErrMissingArtifact = errors.New("buildcache: artifact missing")

// Key builds the cache key for an assembled body of a profile source.
func Key(source, body string) string {
	return source + Separator + body
}

// Artifact is a resident build.
type Artifact struct {
	Sum      string        `json:"key"`
	Dir      string        `json:"dir"`
	PDF      string        `json:"pdf"`
	SyncTeX  string        `json:"synctex"`
	Duration time.Duration `json:"duration"`
	Created  time.Time     `json:"created_at"`
}

// Eviction hands an evicted build to observers. Its directory has already
// been removed; Err holds the removal error, if any.
type Eviction struct {
	Artifact *Artifact
	Err      error
}

// Options configures a Cache.
type Options struct {
	Capacity int
	Root     string // parent of scratch directories; os.TempDir() when empty
	Prefix   string
	Timeout  time.Duration
	Logger   *slog.Logger
	Metrics  metrics.Recorder
}

// Cache is a content-addressed build cache. It is safe for concurrent
// use; concurrent compiles of one key share a single toolchain run.
type Cache struct {
	tc       *toolchain.Toolchain
	capacity int
	root     string
	prefix   string
	timeout  time.Duration
	logger   *slog.Logger
	metrics  metrics.Recorder

	mu  sync.Mutex
	lru *simplelru.LRU[string, *Artifact]

	group singleflight.Group

	obsMu     sync.RWMutex
	observers []func(Eviction)
}

// New creates a Cache compiling with tc.
func New(tc *toolchain.Toolchain, opts Options) *Cache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Root == "" {
		opts.Root = os.TempDir()
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	// Eviction is driven explicitly in insert; the capacity here only has
	// to be large enough never to trigger the library's own eviction.
	lru, err := simplelru.NewLRU[string, *Artifact](opts.Capacity+1, nil)
	if err != nil {
		panic(err)
	}
	return &Cache{
		tc:       tc,
		capacity: opts.Capacity,
		root:     opts.Root,
		prefix:   opts.Prefix,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		lru:      lru,
	}
}

// OnEvict registers fn to be called after every eviction.
func (c *Cache) OnEvict(fn func(Eviction)) {
	c.obsMu.Lock()
	c.observers = append(c.observers, fn)
	c.obsMu.Unlock()
}

// Lookup returns the resident build for key and marks it recently used.
// It never compiles.
func (c *Cache) Lookup(key string) (*Artifact, bool) {
	c.mu.Lock()
	a, ok := c.lru.Get(key)
	c.mu.Unlock()
	c.metrics.IncLookup(ok)
	return a, ok
}

// Len reports the number of resident builds.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Compile returns the build for key, running the toolchain on a miss.
// A compiler defect yields *apperr.CompileError carrying the filtered log;
// a failing log filter or a timeout yields *apperr.ToolingError.
func (c *Cache) Compile(ctx context.Context, key string) (*Artifact, error) {
	return c.Fetch(ctx, key, nil)
}

// BuildHook receives the outcome of a toolchain run. It is called from the
// goroutine that ran the build, after the build finished.
type BuildHook func(a *Artifact, err error)

// Fetch is Compile with a hook for the toolchain run it starts. Callers
// that hit the cache or join a build already in flight never see their
// hook called.
//
// The toolchain run is detached from ctx so that one impatient caller does
// not abort a build others are waiting on; ctx only bounds the wait. The
// hook still runs when the caller has stopped waiting.
func (c *Cache) Fetch(ctx context.Context, key string, onBuild BuildHook) (*Artifact, error) {
	if a, ok := c.Lookup(key); ok {
		return a, nil
	}
	sum := checksum.Sum(key)
	ch := c.group.DoChan(sum, func() (any, error) {
		c.mu.Lock()
		a, ok := c.lru.Get(key)
		c.mu.Unlock()
		if ok {
			return a, nil
		}
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		a, err := c.build(bctx, key, sum)
		if onBuild != nil {
			onBuild(a, err)
		}
		return a, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Artifact), nil
	}
}

func (c *Cache) build(ctx context.Context, key, sum string) (*Artifact, error) {
	dir := filepath.Join(c.root, c.prefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		c.metrics.ObserveCompile(0, metrics.OutcomeError)
		return nil, fmt.Errorf("buildcache: scratch dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, c.tc.Input), []byte(key), 0o600); err != nil {
		c.remove(dir)
		c.metrics.ObserveCompile(0, metrics.OutcomeError)
		return nil, fmt.Errorf("buildcache: write input: %w", err)
	}

	start := time.Now()
	err := c.tc.Build(ctx, dir)
	if err == nil {
		err = c.checkArtifacts(dir)
	}
	elapsed := time.Since(start)

	if err != nil {
		return nil, c.fail(ctx, dir, sum, elapsed, err)
	}

	a := &Artifact{
		Sum:      sum,
		Dir:      dir,
		PDF:      filepath.Join(dir, c.tc.Output),
		SyncTeX:  filepath.Join(dir, c.tc.SideMap),
		Duration: elapsed,
		Created:  time.Now(),
	}
	c.metrics.ObserveCompile(elapsed, metrics.OutcomeSuccess)
	c.logger.Info("buildcache: compiled",
		slog.String("key", checksum.Short(key)),
		slog.Duration("duration", elapsed),
	)
	return c.insert(key, a), nil
}

// fail turns a failed build into the caller's error and always removes dir.
func (c *Cache) fail(ctx context.Context, dir, sum string, elapsed time.Duration, err error) error {
	defer c.remove(dir)

	if ctx.Err() != nil {
		c.metrics.ObserveCompile(elapsed, metrics.OutcomeError)
		return &apperr.ToolingError{Op: "compile", Detail: "toolchain timed out", Err: err}
	}
	log, ferr := c.tc.FilterLog(ctx, dir)
	if ferr != nil {
		c.metrics.ObserveCompile(elapsed, metrics.OutcomeError)
		c.logger.Error("buildcache: log filter failed",
			slog.String("key", sum[:12]),
			slog.String("error", ferr.Error()),
		)
		return &apperr.ToolingError{Op: "compile", Detail: rawOutput(err), Err: ferr}
	}
	c.metrics.ObserveCompile(elapsed, metrics.OutcomeFailed)
	c.logger.Info("buildcache: compile failed",
		slog.String("key", sum[:12]),
		slog.Duration("duration", elapsed),
	)
	return &apperr.CompileError{Log: log, Err: err}
}

// rawOutput is the compiler's own report of err: its full output when it
// ran, the error text otherwise.
func rawOutput(err error) string {
	var be *toolchain.BuildError
	if errors.As(err, &be) {
		if out := be.Output(); out != "" {
			return err.Error() + "\n" + out
		}
	}
	return err.Error()
}

func (c *Cache) checkArtifacts(dir string) error {
	for _, name := range []string{c.tc.Output, c.tc.SideMap} {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMissingArtifact, name)
		}
		info, err := f.Stat()
		_ = f.Close()
		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s", ErrMissingArtifact, name)
		}
	}
	return nil
}

// insert registers a under key, evicting least recently used builds first.
// Evicted builds are released after the lock is dropped.
func (c *Cache) insert(key string, a *Artifact) *Artifact {
	var evicted []*Artifact

	c.mu.Lock()
	if prev, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		c.remove(a.Dir)
		return prev
	}
	for c.lru.Len() >= c.capacity {
		_, old, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		evicted = append(evicted, old)
	}
	c.lru.Add(key, a)
	n := c.lru.Len()
	c.mu.Unlock()

	c.metrics.SetResident(n)
	for _, old := range evicted {
		c.release(old)
	}
	return a
}

// Purge evicts every resident build.
func (c *Cache) Purge() {
	c.mu.Lock()
	var all []*Artifact
	for {
		_, a, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		all = append(all, a)
	}
	c.mu.Unlock()

	c.metrics.SetResident(0)
	for _, a := range all {
		c.release(a)
	}
}

// release deletes an evicted build's directory and notifies observers.
func (c *Cache) release(a *Artifact) {
	err := c.remove(a.Dir)
	c.metrics.IncEviction()
	c.logger.Info("buildcache: evicted", slog.String("key", a.Sum[:12]), slog.String("dir", a.Dir))

	c.obsMu.RLock()
	obs := c.observers
	c.obsMu.RUnlock()
	for _, fn := range obs {
		fn(Eviction{Artifact: a, Err: err})
	}
}

// remove deletes dir. Failures are logged and returned, never fatal.
func (c *Cache) remove(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		c.logger.Warn("buildcache: remove scratch dir",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
