// Package mcpserver exposes the resource resolver and the tool registry
// over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/workspaces-mcp/internal/events"
	"github.com/starford/workspaces-mcp/internal/resource"
	"github.com/starford/workspaces-mcp/internal/tools"
)

const (
	serverName = "workspaces-mcp"

	methodResourcesListChanged = "notifications/resources/list_changed"

	// anyURITemplate matches every URI, so reads that fit none of the
	// advertised templates still reach the resolver and get its error.
	anyURITemplate = "{+uri}"
)

// Server wraps the MCP server. Every resolver and registry call runs under
// mu, which the other adapters share, so requests against one root are
// handled one at a time.
type Server struct {
	mcp      *server.MCPServer
	resolver *resource.Resolver
	registry *tools.Registry
	mu       *sync.Mutex
	logger   *slog.Logger
}

// New creates an MCP server with every registered tool and the resolver's
// resources.
func New(resolver *resource.Resolver, registry *tools.Registry, mu *sync.Mutex, logger *slog.Logger, version string) *Server {
	s := &Server{resolver: resolver, registry: registry, mu: mu, logger: logger}

	hooks := &server.Hooks{}
	hooks.AddAfterListResources(s.listResources)
	hooks.AddAfterListResourceTemplates(hideAnyURITemplate)

	s.mcp = server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions(Usage),
		server.WithHooks(hooks),
		server.WithRecovery(),
	)

	for _, t := range registry.List() {
		s.mcp.AddTool(mcp.NewToolWithRawSchema(t.Name, t.Description, t.InputSchema), s.callTool)
	}

	s.mcp.AddResource(
		mcp.NewResource(resource.GlobalURI, "Global instructions",
			mcp.WithResourceDescription("Instructions that apply to every workspace"),
			mcp.WithMIMEType(resource.MIMEMarkdown),
		),
		s.readResource,
	)
	for _, tmpl := range resolver.Templates() {
		s.mcp.AddResourceTemplate(
			mcp.NewResourceTemplate(tmpl.URITemplate, tmpl.Name,
				mcp.WithTemplateDescription(tmpl.Description),
				mcp.WithTemplateMIMEType(tmpl.MIMEType),
			),
			s.readResource,
		)
	}
	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate(anyURITemplate, "resource"), s.readResource)

	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves the protocol on in/out until ctx is cancelled or in
// is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(slogWriter{s.logger}, "", 0))
	return stdio.Listen(ctx, in, out)
}

// HTTPHandler returns a streamable HTTP handler for the protocol.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// Notify tells connected clients that the resource list changed. It is an
// event bus handler.
func (s *Server) Notify(_ context.Context, ev events.Event) error {
	if !ev.Type.ChangesResources() {
		return nil
	}
	s.mcp.SendNotificationToAllClients(methodResourcesListChanged, nil)
	return nil
}

func (s *Server) callTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}

	s.mu.Lock()
	res := s.registry.Call(ctx, req.Params.Name, args)
	s.mu.Unlock()

	if res.IsError {
		return mcp.NewToolResultError(res.Text), nil
	}
	return mcp.NewToolResultText(res.Text), nil
}

func (s *Server) readResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s.mu.Lock()
	c, err := s.resolver.Read(ctx, req.Params.URI)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: c.URI, MIMEType: c.MIMEType, Text: c.Text},
	}, nil
}

// listResources replaces the statically registered resources with a fresh
// listing from the resolver.
func (s *Server) listResources(ctx context.Context, _ any, _ *mcp.ListResourcesRequest, result *mcp.ListResourcesResult) {
	s.mu.Lock()
	list := s.resolver.List(ctx)
	s.mu.Unlock()

	resources := make([]mcp.Resource, 0, len(list))
	for _, r := range list {
		resources = append(resources, mcp.NewResource(r.URI, r.Name,
			mcp.WithResourceDescription(r.Description),
			mcp.WithMIMEType(r.MIMEType),
		))
	}
	result.Resources = resources
}

func hideAnyURITemplate(_ context.Context, _ any, _ *mcp.ListResourceTemplatesRequest, result *mcp.ListResourceTemplatesResult) {
	kept := result.ResourceTemplates[:0]
	for _, t := range result.ResourceTemplates {
		if t.URITemplate != nil && t.URITemplate.Raw() == anyURITemplate {
			continue
		}
		kept = append(kept, t)
	}
	result.ResourceTemplates = kept
}

// slogWriter adapts the stdio server's error logger to slog.
type slogWriter struct{ logger *slog.Logger }

func (w slogWriter) Write(p []byte) (int, error) {
	w.logger.Error("mcp stdio", slog.String("error", strings.TrimSpace(string(p))))
	return len(p), nil
}
