// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes document tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/xflkit/internal/edge"
	"github.com/starford/xflkit/internal/workspace"
)

// ContractURI addresses the library naming contract resource.
const ContractURI = "xflkit://library-naming"

// Server wraps the MCP server with document tools.
type Server struct {
	mcp        *server.MCPServer
	svc        *workspace.Service
	scratchDir string
}

// New creates a new MCP server with all tools registered. Fetched media is
// staged under scratchDir; empty means os.TempDir.
func New(svc *workspace.Service, scratchDir string) *Server {
	s := &Server{svc: svc, scratchDir: scratchDir}

	s.mcp = server.NewMCPServer(
		"xflkit",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_items",
		mcp.WithDescription("Full-text search through symbol names and the text they display."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchItems)

	s.mcp.AddTool(mcp.NewTool("list_library",
		mcp.WithDescription("List every library item name, or the items inside one folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listLibrary)

	s.mcp.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Describe a library item: kind, file, references and dependents."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Qualified item name (e.g. Props/Ball)")),
	), s.getItem)

	s.mcp.AddTool(mcp.NewTool("find_dependents",
		mcp.WithDescription("Find all symbols whose timelines reference the specified item."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Qualified name of the referenced item")),
	), s.findDependents)

	s.mcp.AddTool(mcp.NewTool("add_symbol",
		mcp.WithDescription("Create an empty symbol. Names MUST follow the library naming "+
			"contract; read it first via get_naming_contract or the "+ContractURI+" resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Qualified name for the new symbol")),
		mcp.WithString("type", mcp.Description("movie clip (default), graphic, button or folder")),
	), s.addSymbol)

	s.mcp.AddTool(mcp.NewTool("rename_item",
		mcp.WithDescription("Rename or move a library item. Placements follow the new name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Current qualified name")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New qualified name")),
	), s.renameItem)

	s.mcp.AddTool(mcp.NewTool("get_frame",
		mcp.WithDescription("Describe the keyframe governing one frame of a layer."),
		mcp.WithNumber("timeline", mcp.Description("Timeline index (default 0)")),
		mcp.WithNumber("layer", mcp.Description("Layer index (default 0)")),
		mcp.WithNumber("frame", mcp.Required(), mcp.Description("Frame number")),
	), s.getFrame)

	s.mcp.AddTool(mcp.NewTool("place_item",
		mcp.WithDescription("Place a symbol or bitmap on a frame, or attach a sound to it."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Qualified item name")),
		mcp.WithNumber("timeline", mcp.Description("Timeline index (default 0)")),
		mcp.WithNumber("layer", mcp.Description("Layer index (default 0)")),
		mcp.WithNumber("frame", mcp.Description("Frame number (default 0)")),
		mcp.WithNumber("x", mcp.Description("Stage x in pixels")),
		mcp.WithNumber("y", mcp.Description("Stage y in pixels")),
	), s.placeItem)

	s.mcp.AddTool(mcp.NewTool("decode_edges",
		mcp.WithDescription("Decode a shape edges string into path commands (M, L, Q, Z) in pixels."),
		mcp.WithString("edges", mcp.Required(), mcp.Description("Edge string, e.g. !0 0|200 0|200 200")),
	), s.decodeEdges)

	s.mcp.AddTool(mcp.NewTool("import_media",
		mcp.WithDescription("Import a bitmap or sound from an http(s) URL or a base64 data URI."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data>")),
		mcp.WithString("name", mcp.Description("Optional qualified item name with extension")),
	), s.importMedia)

	s.mcp.AddTool(mcp.NewTool("get_naming_contract",
		mcp.WithDescription("Returns the library naming contract. "+
			"Call this before creating, renaming or importing items."),
	), s.getNamingContract)

	// Resource: library naming contract.
	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Library Naming Contract",
			mcp.WithResourceDescription("Rules every library item name must follow."),
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) listLibrary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var folder string
	if f, err := req.RequireString("folder"); err == nil {
		folder = strings.Trim(f, "/")
	}

	var names []string
	for _, n := range s.svc.Names(ctx) {
		if folder == "" || strings.HasPrefix(n, folder+"/") {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("no items found"), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) getItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	it, err := s.svc.GetItem(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(it), nil
}

func (s *Server) findDependents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deps, err := s.svc.Dependents(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(deps) == 0 {
		return mcp.NewToolResultText("no dependents found"), nil
	}
	return mcp.NewToolResultText(strings.Join(deps, "\n")), nil
}

func (s *Server) addSymbol(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ := "movie clip"
	if t, tErr := req.RequireString("type"); tErr == nil && t != "" {
		typ = t
	}
	it, err := s.svc.AddItem(ctx, typ, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(it), nil
}

func (s *Server) renameItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newName, err := req.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	it, err := s.svc.RenameItem(ctx, name, newName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(it), nil
}

func (s *Server) getFrame(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	frame, err := req.RequireInt("frame")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.Frame(ctx, req.GetInt("timeline", 0), req.GetInt("layer", 0), frame)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(f), nil
}

func (s *Server) placeItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.Place(ctx, name, workspace.Placement{
		Timeline: req.GetInt("timeline", 0),
		Layer:    req.GetInt("layer", 0),
		Frame:    req.GetInt("frame", 0),
		X:        req.GetFloat("x", 0),
		Y:        req.GetFloat("y", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(f), nil
}

func (s *Server) decodeEdges(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	edges, err := req.RequireString("edges")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	segs, err := edge.DecodeAll(edges)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strings.Join(edge.EncodeAll(segs), "\n")), nil
}

func (s *Server) getNamingContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NamingContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     NamingContract,
		},
	}, nil
}
