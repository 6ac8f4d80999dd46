// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes SlideMan tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/slideman/internal/slidesvc"
)

// Server wraps the MCP server with SlideMan tools.
type Server struct {
	mcp *server.MCPServer
	svc *slidesvc.Service
}

// New creates a new MCP server with all SlideMan tools registered.
func New(svc *slidesvc.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"SlideMan",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_slides",
		mcp.WithDescription("Full-text search across slide titles and keywords."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchSlides)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all slide library projects."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("get_slide",
		mcp.WithDescription("Read a slide with its elements and keywords."),
		mcp.WithString("slide_id", mcp.Required(), mcp.Description("Numeric slide id")),
	), s.getSlide)

	s.mcp.AddTool(mcp.NewTool("tag_slide",
		mcp.WithDescription("Attach a keyword to a slide. Creates the keyword if it does not "+
			"exist yet. kind must be 'topic' or 'title' for slide-level tags."),
		mcp.WithString("slide_id", mcp.Required(), mcp.Description("Numeric slide id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Keyword text")),
		mcp.WithString("kind", mcp.Description("Keyword kind: topic (default) or title")),
	), s.tagSlide)

	s.mcp.AddTool(mcp.NewTool("list_keywords",
		mcp.WithDescription("List keywords, optionally filtered by kind (topic, title, name)."),
		mcp.WithString("kind", mcp.Description("Optional kind filter")),
	), s.listKeywords)

	s.mcp.AddTool(mcp.NewTool("build_assembly",
		mcp.WithDescription("Create an ordered slide assembly from a comma-separated keyword "+
			"list. Slides matching any keyword are included unless match_all is 'true'."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Numeric project id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Assembly name")),
		mcp.WithString("keywords", mcp.Required(), mcp.Description("Comma-separated keyword texts")),
		mcp.WithString("match_all", mcp.Description("'true' to require every keyword")),
	), s.buildAssembly)

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

func requireID(req mcp.CallToolRequest, name string) (int64, error) {
	raw, err := req.RequireString(name)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

func (s *Server) searchSlides(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.svc.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(projects, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getSlide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "slide_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sl, err := s.svc.GetSlide(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("slide %d: %v", id, err)), nil
	}
	out, _ := json.MarshalIndent(sl, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) tagSlide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "slide_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := "topic"
	if k, kerr := req.RequireString("kind"); kerr == nil && k != "" {
		kind = k
	}
	kw, err := s.svc.CreateKeyword(ctx, text, kind)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.TagSlide(ctx, id, kw.ID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("tagged slide %d with %q (%s)", id, kw.Text, kw.Kind)), nil
}

func (s *Server) listKeywords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := ""
	if k, err := req.RequireString("kind"); err == nil {
		kind = k
	}
	kws, err := s.svc.ListKeywords(ctx, kind)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(kws, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) buildAssembly(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := requireID(req, "project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("keywords")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var keywords []string
	for _, kw := range strings.Split(raw, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return mcp.NewToolResultError("keywords must name at least one keyword"), nil
	}
	matchAll := false
	if m, merr := req.RequireString("match_all"); merr == nil && m == "true" {
		matchAll = true
	}

	a, err := s.svc.BuildAssembly(ctx, projectID, name, keywords, matchAll)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(a, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
