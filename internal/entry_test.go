package internal

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/vitae/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Profiles.Path = filepath.Join(dir, "profiles")
	cfg.SQLite.Path = filepath.Join(dir, "vitae.db")
	cfg.Cache.ScratchRoot = filepath.Join(dir, "scratch")
	return cfg
}

func TestNewApplication_RequiresConfig(t *testing.T) {
	if _, err := newApplication(nil); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestWire_SweepsOrphansAndServes(t *testing.T) {
	cfg := testConfig(t)
	orphan := filepath.Join(cfg.Cache.ScratchRoot, cfg.Cache.ScratchPrefix+"stale")
	if err := os.MkdirAll(orphan, 0o755); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	app, err := newApplication([]Option{
		WithConfig(cfg),
		WithRunner(&testutil.FakeRunner{}),
		WithLogOutput(&logs),
	})
	if err != nil {
		t.Fatal(err)
	}
	st, err := app.wire(context.Background(), app.logger(os.Stdout))
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	defer st.close()

	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Errorf("orphan still present: %v", err)
	}
	if !strings.Contains(logs.String(), "orphaned scratch") {
		t.Errorf("sweep not logged: %s", logs.String())
	}

	if err := os.WriteFile(filepath.Join(cfg.Profiles.Path, "cv.tex"), []byte(testutil.SampleProfile), 0o600); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(st.handler())
	defer srv.Close()

	for _, path := range []string{"/health/live", "/health/ready", "/api/profile", "/api/profile/cv.tex/entries"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}

	// Metrics are exported once a build has run.
	resp, err := http.Post(srv.URL+"/api/profile/cv.tex/pdf", "application/json",
		strings.NewReader(`{"sections":[],"entries":{"projs":["\\pVitae"]}}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("compile = %d", resp.StatusCode)
	}
	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	if !strings.Contains(body.String(), "vitae_compile_duration_seconds") {
		t.Errorf("metrics missing compile histogram")
	}
}

func TestWire_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	app, _ := newApplication([]Option{WithConfig(cfg), WithRunner(&testutil.FakeRunner{})})
	st, err := app.wire(context.Background(), app.logger(&bytes.Buffer{}))
	if err != nil {
		t.Fatal(err)
	}
	defer st.close()

	w := httptest.NewRecorder()
	st.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("/metrics = %d, want 404", w.Code)
	}
}
