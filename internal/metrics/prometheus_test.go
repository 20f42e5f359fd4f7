package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveCompile(1500*time.Millisecond, OutcomeSuccess)
	pr.IncLookup(true)
	pr.IncLookup(false)
	pr.IncEviction()
	pr.SetResident(3)
	pr.AddSwept(2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]bool{}
	for _, mf := range mfs {
		got[mf.GetName()] = true
	}
	for _, name := range []string{
		"vitae_compile_duration_seconds",
		"vitae_build_cache_lookups_total",
		"vitae_build_cache_evictions_total",
		"vitae_build_cache_resident",
		"vitae_scratch_swept_total",
	} {
		if !got[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveCompile(time.Second, OutcomeFailed)
	pr.IncLookup(false)
	pr.IncEviction()
	pr.SetResident(1)
	pr.AddSwept(1)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncEviction()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "vitae_build_cache_evictions_total 1") {
		t.Errorf("body missing eviction counter:\n%s", rec.Body.String())
	}
}

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)
