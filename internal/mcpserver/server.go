// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Raido documents and session state for LLM integration.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/docservice"
)

// ContractURI is the resource holding the authoring key wire contract.
const ContractURI = "raido://initialize-luis"

// Server wraps the MCP server with Raido tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all Raido tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Raido",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the documents loaded in the editor, in order, with the active one flagged."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_active_document",
		mcp.WithDescription("Return the URI, kind and content of the document currently shown in the editor."),
	), s.getActiveDocument)

	s.mcp.AddTool(mcp.NewTool("toggle_active_document",
		mcp.WithDescription("Switch the editor to the next document, wrapping around after the last one."),
	), s.toggleActiveDocument)

	s.mcp.AddTool(mcp.NewTool("activate_document",
		mcp.WithDescription("Show the document with the given URI in the editor."),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Document URI (e.g. inmemory://model1.json)")),
	), s.activateDocument)

	s.mcp.AddTool(mcp.NewTool("session_status",
		mcp.WithDescription("Report the language server session state and, optionally, recent session history."),
		mcp.WithNumber("history", mcp.Description("Number of past sessions to include (0 for none)")),
	), s.sessionStatus)

	s.mcp.AddTool(mcp.NewTool("get_key_contract",
		mcp.WithDescription("Returns the initializeLuis wire contract used to hand authoring keys to the language server."),
	), s.getKeyContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "initializeLuis Contract",
			mcp.WithResourceDescription("Wire format and delivery rules of the authoring key push."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// Handler returns the streamable HTTP transport for mounting under a router.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
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

func (s *Server) listDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListDocuments(ctx))
}

func (s *Server) getActiveDocument(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.GetActive(ctx))
}

func (s *Server) toggleActiveDocument(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ToggleActive(ctx))
}

func (s *Server) activateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, err := req.RequireString("uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Activate(ctx, uri)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", uri)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(doc)
}

func (s *Server) sessionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := map[string]any{"current": s.svc.SessionStatus(ctx)}
	if n := req.GetInt("history", 0); n > 0 {
		rows, err := s.svc.SessionHistory(ctx, n)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out["history"] = rows
	}
	return jsonResult(out)
}

func (s *Server) getKeyContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(KeyContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     KeyContract,
		},
	}, nil
}
