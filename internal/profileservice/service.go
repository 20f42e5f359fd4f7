// Package profileservice coordinates profile storage, parsing, compilation
// and reverse mapping for the HTTP and MCP surfaces.
package profileservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/vitae/internal/apperr"
	"github.com/starford/vitae/internal/buildcache"
	"github.com/starford/vitae/internal/checksum"
	"github.com/starford/vitae/internal/ledger"
	"github.com/starford/vitae/internal/locate"
	"github.com/starford/vitae/internal/models"
	"github.com/starford/vitae/internal/parser"
	"github.com/starford/vitae/internal/profile"
	"github.com/starford/vitae/internal/storage"
)

// Notifier receives change notifications. *sse.Broker implements it.
type Notifier interface {
	PublishProfileEvent(kind, profile string)
	PublishSelection(profile string)
}

type nopNotifier struct{}

func (nopNotifier) PublishProfileEvent(string, string) {}
func (nopNotifier) PublishSelection(string)            {}

// Deps are the collaborators of a Service.
type Deps struct {
	Store    storage.Provider
	Profiles *profile.Cache
	Builds   *buildcache.Cache
	Mapper   *locate.Mapper
	Ledger   ledger.Ledger
	Events   Notifier
	Logger   *slog.Logger
}

// Service coordinates storage, caches, toolchain and ledger operations.
type Service struct {
	store    storage.Provider
	profiles *profile.Cache
	builds   *buildcache.Cache
	mapper   *locate.Mapper
	ledger   ledger.Ledger
	events   Notifier
	logger   *slog.Logger
}

// New creates a Service and subscribes it to build evictions.
func New(d Deps) *Service {
	if d.Events == nil {
		d.Events = nopNotifier{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Service{
		store:    d.Store,
		profiles: d.Profiles,
		builds:   d.Builds,
		mapper:   d.Mapper,
		ledger:   d.Ledger,
		events:   d.Events,
		logger:   d.Logger,
	}
	d.Builds.OnEvict(s.evicted)
	return s
}

// ProfileDetail is the parsed view of a profile.
type ProfileDetail struct {
	Name          string                 `json:"name"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Collections   map[string][]string    `json:"collections"`
	KnownSections []profile.KnownSection `json:"known_sections"`
	Bodies        map[string]string      `json:"bodies"`
}

// List returns every profile in the profile directory.
func (s *Service) List(_ context.Context) ([]models.ProfileMeta, error) {
	return s.store.List()
}

// Model returns the parsed model of a profile.
func (s *Service) Model(ctx context.Context, name string) (*profile.Model, error) {
	return s.profiles.Get(ctx, name)
}

// Detail returns the parsed view of a profile.
func (s *Service) Detail(ctx context.Context, name string) (*ProfileDetail, error) {
	m, err := s.profiles.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	meta, err := s.store.Stat(name)
	if err != nil {
		return nil, err
	}
	cols := m.Collections()
	bodies := make(map[string]string)
	for _, ids := range cols {
		for _, id := range ids {
			bodies[id], _ = m.Body(id)
		}
	}
	return &ProfileDetail{
		Name:          name,
		UpdatedAt:     meta.ModTime,
		Collections:   cols,
		KnownSections: m.KnownSections(),
		Bodies:        bodies,
	}, nil
}

// Source returns the raw content of a profile.
func (s *Service) Source(_ context.Context, name string) ([]byte, error) {
	return s.store.Read(name)
}

// Write replaces a profile, keeping the previous version as a backup, and
// notifies subscribers.
func (s *Service) Write(_ context.Context, name string, content []byte) error {
	if err := s.store.Write(name, content); err != nil {
		return err
	}
	s.profiles.Invalidate(name)
	s.events.PublishProfileEvent("updated", name)
	s.logger.Info("profile: written", slog.String("profile", name), slog.Int("bytes", len(content)))
	return nil
}

// FileChanged handles a change observed in the profile directory.
func (s *Service) FileChanged(kind, name string) {
	s.profiles.Invalidate(name)
	s.events.PublishProfileEvent(kind, name)
}

// Compile builds an assembled body of a profile. The body becomes the
// profile's pending selection before the toolchain runs. sel is the
// optional structured selection the body was assembled from.
func (s *Service) Compile(ctx context.Context, name, body string, sel json.RawMessage) (*buildcache.Artifact, error) {
	if body == "" {
		return nil, apperr.ErrMissingBody
	}
	m, err := s.profiles.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.SaveSelection(ledger.SelectionRow{Profile: name, Body: body, Selection: sel}); err != nil {
		s.logger.Warn("profile: save selection", slog.String("profile", name), slog.String("error", err.Error()))
	}
	s.events.PublishSelection(name)

	key := buildcache.Key(m.Source(), body)
	return s.builds.Fetch(ctx, key, func(a *buildcache.Artifact, err error) {
		s.record(name, key, a, err)
	})
}

// Assemble renders a structured selection against a profile and compiles it.
func (s *Service) Assemble(ctx context.Context, name string, sel profile.Selection) (string, *buildcache.Artifact, error) {
	m, err := s.profiles.Get(ctx, name)
	if err != nil {
		return "", nil, err
	}
	body := profile.Assemble(m, sel)
	raw, err := json.Marshal(sel)
	if err != nil {
		return "", nil, fmt.Errorf("profile: encode selection: %w", err)
	}
	a, err := s.Compile(ctx, name, body, raw)
	return body, a, err
}

func (s *Service) record(name, key string, a *buildcache.Artifact, err error) {
	r := models.BuildRecord{Profile: name, CreatedAt: time.Now()}
	var ce *apperr.CompileError
	switch {
	case err == nil:
		r.KeySum, r.Status, r.Dir, r.Duration = a.Sum, models.BuildSucceeded, a.Dir, a.Duration
	case errors.As(err, &ce):
		r.KeySum, r.Status, r.Log = checksum.Sum(key), models.BuildFailed, ce.Log
	default:
		r.KeySum, r.Status, r.Log = checksum.Sum(key), models.BuildFailed, err.Error()
	}
	if err := s.ledger.RecordBuild(r); err != nil {
		s.logger.Warn("profile: record build", slog.String("profile", name), slog.String("error", err.Error()))
	}
}

func (s *Service) evicted(e buildcache.Eviction) {
	if err := s.ledger.MarkEvicted(e.Artifact.Sum); err != nil {
		s.logger.Warn("profile: mark evicted", slog.String("key", e.Artifact.Sum), slog.String("error", err.Error()))
	}
}

// Artifact returns the resident build of a body without compiling.
func (s *Service) Artifact(ctx context.Context, name, body string) (*buildcache.Artifact, error) {
	if body == "" {
		return nil, apperr.ErrMissingBody
	}
	m, err := s.profiles.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	a, ok := s.builds.Lookup(buildcache.Key(m.Source(), body))
	if !ok {
		return nil, apperr.ErrGone
	}
	return a, nil
}

// Locate maps a coordinate or token in a compiled body back to the line of
// the entry declaration.
func (s *Service) Locate(ctx context.Context, name, body string, q locate.Query) (locate.Location, error) {
	if body == "" {
		return locate.Location{}, apperr.ErrMissingBody
	}
	m, err := s.profiles.Get(ctx, name)
	if err != nil {
		return locate.Location{}, err
	}
	return s.mapper.Locate(ctx, buildcache.Key(m.Source(), body), q)
}

// Codes returns the annotation groups of the entries invoked in body. An
// empty body falls back to the profile's pending selection.
func (s *Service) Codes(ctx context.Context, name, body string) ([]profile.Group, error) {
	m, err := s.profiles.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if body == "" {
		row, err := s.ledger.Selection(name)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrMissingBody
		}
		if err != nil {
			return nil, err
		}
		body = row.Body
	}
	return m.ResolveAnnotations(Invocations(body)), nil
}

// PendingSelection returns the last body compiled for a profile.
func (s *Service) PendingSelection(_ context.Context, name string) (*ledger.SelectionRow, error) {
	return s.ledger.Selection(name)
}

// Builds lists recent build outcomes; an empty name lists all profiles.
func (s *Service) Builds(_ context.Context, name string, limit int) ([]models.BuildRecord, error) {
	return s.ledger.RecentBuilds(name, limit)
}

// ResolveDescription returns the bodies of ids joined for LLM context.
func (s *Service) ResolveDescription(ctx context.Context, name string, ids []string) (string, error) {
	m, err := s.profiles.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return m.ResolveDescription(ids), nil
}

// Description returns the delimited bodies of one collection.
func (s *Service) Description(ctx context.Context, name, collection string) (string, error) {
	k, ok := parser.KindByCollection(collection)
	if !ok {
		return "", fmt.Errorf("collection %q: %w", collection, apperr.ErrNotFound)
	}
	m, err := s.profiles.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return m.Description(k), nil
}

// Invocations returns the lines of body that invoke an entry, in order.
func Invocations(body string) []string {
	var ids []string
	for _, l := range strings.Split(body, "\n") {
		if _, ok := parser.ParseToken(l); ok {
			ids = append(ids, l)
		}
	}
	return ids
}
