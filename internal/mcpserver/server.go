// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Vitae profiles to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vitae/internal/apperr"
	"github.com/starford/vitae/internal/profileservice"
)

// ContractURI is the resource URI of the profile format contract.
const ContractURI = "vitae://profile-format"

// Server wraps the MCP server with Vitae tools.
type Server struct {
	mcp *server.MCPServer
	svc *profileservice.Service
}

// New creates a new MCP server with all Vitae tools registered.
func New(svc *profileservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Vitae",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_profiles",
		mcp.WithDescription("List the profile files in the profile directory."),
	), s.listProfiles)

	s.mcp.AddTool(mcp.NewTool("read_profile",
		mcp.WithDescription("Read the raw LaTeX source of a profile."),
		mcp.WithString("profile", mcp.Required(), mcp.Description("Profile file name (e.g. cv.tex)")),
	), s.readProfile)

	s.mcp.AddTool(mcp.NewTool("get_entries",
		mcp.WithDescription("List entry ids of a profile grouped by collection (exps, projs, skills, ...)."),
		mcp.WithString("profile", mcp.Required(), mcp.Description("Profile file name")),
	), s.getEntries)

	s.mcp.AddTool(mcp.NewTool("get_description",
		mcp.WithDescription("Return the plain-text bodies of every entry in one collection, "+
			"delimited by kind headers. Suitable as LLM context."),
		mcp.WithString("profile", mcp.Required(), mcp.Description("Profile file name")),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection id"),
			mcp.Enum("edus", "lics", "projs", "exps", "crss", "skills", "sections")),
	), s.getDescription)

	s.mcp.AddTool(mcp.NewTool("resolve_description",
		mcp.WithDescription("Return the bodies of the given entry ids in order. Unknown ids are skipped."),
		mcp.WithString("profile", mcp.Required(), mcp.Description("Profile file name")),
		mcp.WithString("ids", mcp.Required(), mcp.Description(`Entry ids separated by newlines or commas (e.g. \eAcme,\pVitae)`)),
	), s.resolveDescription)

	s.mcp.AddTool(mcp.NewTool("get_profile_contract",
		mcp.WithDescription("Returns the profile markup contract. "+
			"Call this before proposing new entries so they parse."),
	), s.getProfileContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Profile Format Contract",
			mcp.WithResourceDescription("Markup rules for entries, annotations and known sections."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrInvalidName):
		return mcp.NewToolResultError("profile names are plain file names ending in .tex")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listProfiles(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metas, err := s.svc.List(ctx)
	if err != nil {
		return toolError(err), nil
	}
	names := make([]string, 0, len(metas))
	for _, m := range metas {
		names = append(names, m.Name)
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) readProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("profile")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.svc.Source(ctx, name)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("profile")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.Model(ctx, name)
	if err != nil {
		return toolError(err), nil
	}
	out, _ := json.MarshalIndent(m.Collections(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getDescription(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("profile")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.svc.Description(ctx, name, collection)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) resolveDescription(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("profile")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.svc.ResolveDescription(ctx, name, splitIDs(raw))
	if err != nil {
		return toolError(err), nil
	}
	if text == "" {
		return mcp.NewToolResultText(fmt.Sprintf("no known entries in %q", raw)), nil
	}
	return mcp.NewToolResultText(text), nil
}

func splitIDs(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == ' '
	})
}

func (s *Server) getProfileContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ProfileFormatContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     ProfileFormatContract,
		},
	}, nil
}
