package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/vitae/internal/buildcache"
	"github.com/starford/vitae/internal/locate"
	"github.com/starford/vitae/internal/profile"
	"github.com/starford/vitae/internal/profileservice"
	"github.com/starford/vitae/internal/testutil"
	"github.com/starford/vitae/internal/toolchain"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	_, store := testutil.TestProfiles(t, map[string]string{"cv.tex": testutil.SampleProfile})
	tc := toolchain.New(&testutil.FakeRunner{})
	builds := buildcache.New(tc, buildcache.Options{Capacity: 2, Root: t.TempDir(), Timeout: time.Second})
	t.Cleanup(builds.Purge)

	svc := profileservice.New(profileservice.Deps{
		Store:    store,
		Profiles: profile.NewCache(store, 4, nil),
		Builds:   builds,
		Mapper:   locate.New(builds, tc),
		Ledger:   testutil.TestLedger(t),
	})
	return New(svc)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_profiles":
		result, err = srv.listProfiles(ctx, req)
	case "read_profile":
		result, err = srv.readProfile(ctx, req)
	case "get_entries":
		result, err = srv.getEntries(ctx, req)
	case "get_description":
		result, err = srv.getDescription(ctx, req)
	case "resolve_description":
		result, err = srv.resolveDescription(ctx, req)
	case "get_profile_contract":
		result, err = srv.getProfileContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListAndReadProfile(t *testing.T) {
	srv := testServer(t)

	if text := resultText(callTool(t, srv, "list_profiles", nil)); text != "cv.tex" {
		t.Errorf("list = %q", text)
	}

	r := callTool(t, srv, "read_profile", map[string]interface{}{"profile": "cv.tex"})
	if resultText(r) != testutil.SampleProfile {
		t.Errorf("read = %q", resultText(r))
	}
}

func TestReadProfileErrors(t *testing.T) {
	srv := testServer(t)

	for _, name := range []string{"nope.tex", "../cv.tex", "cv.md"} {
		r := callTool(t, srv, "read_profile", map[string]interface{}{"profile": name})
		if !r.IsError {
			t.Errorf("%s: expected error", name)
		}
	}

	if r := callTool(t, srv, "read_profile", map[string]interface{}{}); !r.IsError {
		t.Error("missing argument should be an error")
	}
}

func TestGetEntries(t *testing.T) {
	srv := testServer(t)
	text := resultText(callTool(t, srv, "get_entries", map[string]interface{}{"profile": "cv.tex"}))
	for _, want := range []string{`"exps"`, `\\eAcme`, `\\pVitae`, `\\sGo`} {
		if !strings.Contains(text, want) {
			t.Errorf("entries missing %s: %s", want, text)
		}
	}
}

func TestGetDescription(t *testing.T) {
	srv := testServer(t)

	text := resultText(callTool(t, srv, "get_description", map[string]interface{}{
		"profile": "cv.tex", "collection": "projs",
	}))
	if !strings.Contains(text, "---- BEGIN PROJECT `\\pVitae` ----\n{Vitae renderer}\n") {
		t.Errorf("description = %q", text)
	}

	r := callTool(t, srv, "get_description", map[string]interface{}{
		"profile": "cv.tex", "collection": "pets",
	})
	if !r.IsError {
		t.Error("unknown collection should be an error")
	}
}

func TestResolveDescription(t *testing.T) {
	srv := testServer(t)

	text := resultText(callTool(t, srv, "resolve_description", map[string]interface{}{
		"profile": "cv.tex", "ids": `\sGo, \pVitae,\eNobody`,
	}))
	if text != "{Go, SQL}\n\n{Vitae renderer}\n\n" {
		t.Errorf("resolved = %q", text)
	}

	text = resultText(callTool(t, srv, "resolve_description", map[string]interface{}{
		"profile": "cv.tex", "ids": `\eNobody`,
	}))
	if !strings.HasPrefix(text, "no known entries") {
		t.Errorf("resolved = %q", text)
	}
}

func TestProfileContract(t *testing.T) {
	srv := testServer(t)
	text := resultText(callTool(t, srv, "get_profile_contract", nil))
	if !strings.Contains(text, "Known sections") {
		t.Error("contract text missing")
	}
	res, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(res) != 1 {
		t.Fatalf("resource = %v, %v", res, err)
	}
}
