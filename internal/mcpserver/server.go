// Package mcpserver exposes the note service and the reference engine as
// MCP (Model Context Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mediafold/internal/engine"
	"github.com/starford/mediafold/internal/noteservice"
)

const formatURI = "mediafold://reference-format"

// Server wraps the MCP server with mediafold tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates an MCP server with every tool registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"mediafold",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search over note titles, tags and bodies. Media appears as [kind: label] markers."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, newest first."),
		mcp.WithString("tag", mcp.Description("Only notes with this tag")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("open_note",
		mcp.WithDescription("Open a note for editing. Returns an editing buffer with media collapsed to "+
			"short references, plus the checksum to pass to save_note. Read "+formatURI+" first."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.openNote)

	s.mcp.AddTool(mcp.NewTool("save_note",
		mcp.WithDescription("Save an editing buffer. References are expanded and the canonical document is written."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (must end with .md)")),
		mcp.WithString("buffer", mcp.Required(), mcp.Description("Editing buffer, as returned by open_note and edited")),
		mcp.WithString("if_match", mcp.Description("Checksum from open_note; the save fails if the note changed since")),
	), s.saveNote)

	s.mcp.AddTool(mcp.NewTool("expand_document",
		mcp.WithDescription("Replace every resolvable media reference in text with its inline form."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Document text")),
	), s.expandDocument)

	s.mcp.AddTool(mcp.NewTool("collapse_document",
		mcp.WithDescription("Move every large inline media literal in text into storage and replace it with a reference."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Document text")),
	), s.collapseDocument)

	s.mcp.AddTool(mcp.NewTool("toggle_reference",
		mcp.WithDescription("Expand or collapse the single media reference under the cursor."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Document text")),
		mcp.WithNumber("cursor", mcp.Required(), mcp.Description("Cursor position in Unicode code points")),
		mcp.WithString("path", mcp.Description("Note path; when set, the change is autosaved")),
	), s.toggleReference)

	s.mcp.AddTool(mcp.NewTool("attach_media",
		mcp.WithDescription("Store a file from a data: or http(s) URL and return the reference tag to insert."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data: URL or http(s) URL of the file")),
		mcp.WithString("filename", mcp.Description("Display name; derived from the URL when empty")),
		mcp.WithString("mode", mcp.Description("'image' for pictures and drawings, 'file' (default) for anything else")),
	), s.attachMedia)

	s.mcp.AddTool(mcp.NewTool("read_blob",
		mcp.WithDescription("Describe a stored payload by key."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Reference key (data-id)")),
		mcp.WithBoolean("include_data", mcp.Description("Include the data URL itself")),
	), s.readBlob)

	s.mcp.AddTool(mcp.NewTool("get_reference_format",
		mcp.WithDescription("Returns the media reference format contract."),
	), s.getReferenceFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Media Reference Format",
			mcp.WithResourceDescription("How media is written in canonical documents and editing buffers."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListNotes(ctx, req.GetInt("limit", 50), req.GetInt("offset", 0), req.GetString("tag", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"items": items, "total": total})
}

func (s *Server) openNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.OpenForEdit(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open %s: %v", path, err)), nil
	}
	return jsonResult(view)
}

type saveResult struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Media    int    `json:"media"`
	Warning  string `json:"warning,omitempty"`
}

func (s *Server) saveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	buffer, err := req.RequireString("buffer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.Save(ctx, path, buffer, req.GetString("if_match", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save %s: %v", path, err)), nil
	}
	return jsonResult(saveResult{Path: note.Path, Checksum: note.Checksum, Media: len(note.Media), Warning: note.Warning})
}

func (s *Server) expandDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.svc.Expand(ctx, text)), nil
}

type collapseResult struct {
	Text    string `json:"text"`
	Warning string `json:"warning,omitempty"`
}

func (s *Server) collapseDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, cerr := s.svc.Collapse(ctx, text)
	res := collapseResult{Text: out}
	if cerr != nil {
		res.Warning = cerr.Error()
	}
	return jsonResult(res)
}

// toggleResult mirrors engine.Result with positions in code points.
type toggleResult struct {
	Text    string `json:"text"`
	Cursor  int    `json:"cursor"`
	Action  string `json:"action"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Format  string `json:"format,omitempty"`
	Changed bool   `json:"changed"`
}

func (s *Server) toggleReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cursor, err := req.RequireInt("cursor")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Toggle(ctx, req.GetString("path", ""), text, engine.ByteOffset(text, cursor))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(toggleResult{
		Text:    res.Text,
		Cursor:  engine.RuneOffset(res.Text, res.Cursor),
		Action:  string(res.Action),
		Start:   engine.RuneOffset(res.Text, res.Span.Start),
		End:     engine.RuneOffset(res.Text, res.Span.End),
		Format:  res.Format,
		Changed: res.Changed,
	})
}

type blobInfo struct {
	Key      string `json:"key"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int    `json:"size"`
	Data     string `json:"data,omitempty"`
}

func (s *Server) readBlob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Blob(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("blob %s: %v", key, err)), nil
	}
	info := blobInfo{Key: key, Kind: string(p.Kind), Name: p.DisplayName, MimeType: p.MimeType, Size: len(p.Data)}
	if req.GetBool("include_data", false) {
		info.Data = p.Data
	}
	return jsonResult(info)
}

func (s *Server) getReferenceFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ReferenceFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ReferenceFormatContract,
		},
	}, nil
}
