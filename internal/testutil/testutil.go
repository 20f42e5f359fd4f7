// Package testutil provides shared test helpers for profile directories,
// ledgers and a stand-in TeX toolchain.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/vitae/internal/ledger"
	"github.com/starford/vitae/internal/storage"
	"github.com/starford/vitae/internal/toolchain"
)

// FailMarker in a compiler input makes FakeRunner report a TeX error.
const FailMarker = `\undefinedcommand`

// FailLog is the log FakeRunner leaves behind for a failed compile.
const FailLog = "main.tex:12: Undefined control sequence."

// TestLedger creates a temporary SQLite ledger that is automatically cleaned up.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "vitae-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := ledger.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestProfiles creates a temporary profile directory holding files and
// returns it with a storage.Provider.
func TestProfiles(t *testing.T, files map[string]string) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// FakeRunner stands in for the TeX toolchain. Compiles succeed unless the
// input contains FailMarker; coordinate lookups answer with Line.
type FakeRunner struct {
	mu       sync.Mutex
	compiles int
	line     int
}

// SetLine sets the line reported by coordinate lookups.
func (f *FakeRunner) SetLine(n int) {
	f.mu.Lock()
	f.line = n
	f.mu.Unlock()
}

// Compiles reports how many times the compiler ran.
func (f *FakeRunner) Compiles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.compiles
}

func (f *FakeRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch name {
	case toolchain.DefaultCompile.Name:
		f.compiles++
		src, err := os.ReadFile(filepath.Join(dir, toolchain.DefaultInput))
		if err != nil {
			return nil, nil, err
		}
		if strings.Contains(string(src), FailMarker) {
			_ = os.WriteFile(filepath.Join(dir, toolchain.DefaultLog), []byte(FailLog), 0o600)
			return nil, nil, errors.New("exit status 12")
		}
		for _, out := range []string{toolchain.DefaultOutput, toolchain.DefaultSideMap, toolchain.DefaultLog} {
			if err := os.WriteFile(filepath.Join(dir, out), []byte("%PDF-1.5\n"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil

	case toolchain.DefaultFilter.Name:
		log, err := os.ReadFile(filepath.Join(dir, args[len(args)-1]))
		return log, nil, err

	case toolchain.DefaultSyncTeX.Name:
		return []byte(fmt.Sprintf("SyncTeX result begin\nLine:%d\nSyncTeX result end\n", f.line)), nil, nil
	}
	return nil, nil, errors.New("unexpected command " + name)
}

// SampleProfile is a small profile source with entries of several kinds.
const SampleProfile = `\documentclass{article}
%>>> header
%> name: Jane Doe

\def\eAcme{Acme, Engineer
%> role: Engineer|Lead
}

\def\pVitae{Vitae renderer}

\def\sGo{Go, SQL}

% exps = \section{Experience}
% projs = \section{Projects}
\begin{document}`
