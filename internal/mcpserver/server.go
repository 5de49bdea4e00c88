// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes untitled copy tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/scratch/internal/apperr"
	"github.com/starford/scratch/internal/untitledservice"
)

const contractURI = "scratch://untitled-format"

// Server wraps the MCP server with untitled copy tools.
type Server struct {
	mcp *server.MCPServer
	svc *untitledservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *untitledservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Scratch",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_untitled",
		mcp.WithDescription("List live untitled copies with their keys and dirty state."),
	), s.listUntitled)

	s.mcp.AddTool(mcp.NewTool("create_untitled",
		mcp.WithDescription("Create a new untitled copy. Read the contract first via "+
			"the get_untitled_contract tool or the "+contractURI+" resource."),
		mcp.WithString("content", mcp.Description("Initial Markdown content")),
		mcp.WithString("associated_path", mcp.Description("Vault path the copy will be saved to (e.g. notes/plan.md)")),
	), s.createUntitled)

	s.mcp.AddTool(mcp.NewTool("read_untitled",
		mcp.WithDescription("Read the content, title, and checksum of an untitled copy."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Copy key (Untitled-N or associated path)")),
	), s.readUntitled)

	s.mcp.AddTool(mcp.NewTool("edit_untitled",
		mcp.WithDescription("Replace or append the content of an untitled copy."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Copy key")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New content, or text to append")),
		mcp.WithString("mode", mcp.Description("replace (default) or append"), mcp.Enum(untitledservice.EditReplace, untitledservice.EditAppend)),
		mcp.WithString("if_match", mcp.Description("Checksum from read_untitled; the edit fails if the content changed")),
	), s.editUntitled)

	s.mcp.AddTool(mcp.NewTool("save_untitled",
		mcp.WithDescription("Write an untitled copy into the vault and close it."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Copy key")),
		mcp.WithString("path", mcp.Description("Vault path; defaults to the associated path")),
		mcp.WithBoolean("overwrite", mcp.Description("Replace an existing file")),
	), s.saveUntitled)

	s.mcp.AddTool(mcp.NewTool("revert_untitled",
		mcp.WithDescription("Drop an untitled copy and its backup."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Copy key")),
	), s.revertUntitled)

	s.mcp.AddTool(mcp.NewTool("import_untitled",
		mcp.WithDescription("Create an untitled copy from a text or Markdown file at an http(s) URL or a base64 data URI."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:text/markdown;base64,... URI")),
		mcp.WithString("associated_path", mcp.Description("Vault path the copy will be saved to")),
	), s.importUntitled)

	s.mcp.AddTool(mcp.NewTool("get_untitled_contract",
		mcp.WithDescription("Returns the untitled copy contract. "+
			"Call this before creating or editing copies."),
	), s.getContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Untitled Copy Contract",
			mcp.WithResourceDescription("How untitled copies behave and what content they hold."),
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(key string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", key))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listUntitled(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.List(ctx))
}

func (s *Server) createUntitled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := s.svc.Create(ctx, untitledservice.CreateInput{
		Content:        req.GetString("content", ""),
		AssociatedPath: req.GetString("associated_path", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", d.Key)), nil
}

func (s *Server) readUntitled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Get(ctx, key)
	if err != nil {
		return errorResult(key, err), nil
	}
	return jsonResult(d)
}

func (s *Server) editUntitled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Edit(ctx, key, req.GetString("mode", untitledservice.EditReplace), content, req.GetString("if_match", ""))
	if err != nil {
		return errorResult(key, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("edited: %s (dirty=%t, checksum=%s)", d.Key, d.Dirty, d.Checksum)), nil
}

func (s *Server) saveUntitled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Save(ctx, key, req.GetString("path", ""), req.GetBool("overwrite", false))
	if err != nil {
		return errorResult(key, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", res.Path)), nil
}

func (s *Server) revertUntitled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Revert(ctx, key); err != nil {
		return errorResult(key, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("reverted: %s", key)), nil
}

func (s *Server) getContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(UntitledFormatContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     UntitledFormatContract,
		},
	}, nil
}
