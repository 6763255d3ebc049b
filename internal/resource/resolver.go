// Package resource maps workspace:// and instruction:// URIs onto service
// calls.
package resource

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/workspaces-mcp/internal/apperr"
	"github.com/starford/workspaces-mcp/internal/models"
)

// URI schemes served by the resolver.
const (
	SchemeWorkspace   = "workspace"
	SchemeInstruction = "instruction"
)

// MIME types of resource contents.
const (
	MIMEJSON     = "application/json"
	MIMEMarkdown = "text/markdown"
)

// GlobalURI addresses the global instructions.
const GlobalURI = SchemeInstruction + "://global"

const sharedPrefix = "shared/"

var uriRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://.+$`)

// Resource is one entry of the resource listing.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType"`
}

// Content is the body of a read resource.
type Content struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	Text     string `json:"text"`
}

// Template describes a family of URIs.
type Template struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MIMEType    string `json:"mimeType"`
}

// Workspaces is the workspace side of the service layer.
type Workspaces interface {
	ListWorkspaces(ctx context.Context) ([]models.WorkspaceMetadata, error)
	WorkspaceExists(ctx context.Context, name string) (bool, error)
	GetWorkspaceMetadata(ctx context.Context, name string) (*models.WorkspaceMetadata, error)
}

// Instructions is the instruction side of the service layer.
type Instructions interface {
	ListSharedInstructions(ctx context.Context) ([]models.SharedInstruction, error)
	GetSharedInstruction(ctx context.Context, name string) (*models.SharedInstruction, error)
	GetGlobalInstructions(ctx context.Context) (*models.GlobalInstructions, error)
}

// Resolver holds no state beyond its collaborators.
type Resolver struct {
	workspaces   Workspaces
	instructions Instructions
	logger       *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(workspaces Workspaces, instructions Instructions, logger *slog.Logger) *Resolver {
	return &Resolver{workspaces: workspaces, instructions: instructions, logger: logger}
}

// Templates returns the URI templates the resolver understands.
func (r *Resolver) Templates() []Template {
	return []Template{
		{
			URITemplate: SchemeWorkspace + "://{name}",
			Name:        "Workspace metadata",
			Description: "Metadata of a workspace as JSON",
			MIMEType:    MIMEJSON,
		},
		{
			URITemplate: SchemeInstruction + "://shared/{name}",
			Name:        "Shared instruction",
			Description: "A shared markdown instruction",
			MIMEType:    MIMEMarkdown,
		},
	}
}

// List returns every workspace, every shared instruction and the global
// instructions. A failing sub-listing is logged and left out.
func (r *Resolver) List(ctx context.Context) []Resource {
	var out []Resource

	workspaces, err := r.workspaces.ListWorkspaces(ctx)
	if err != nil {
		r.logger.Warn("list resources: workspaces", slog.String("error", err.Error()))
	}
	for _, ws := range workspaces {
		desc := ws.Description
		if desc == "" {
			desc = "Workspace " + ws.Name
		}
		out = append(out, Resource{
			URI:         WorkspaceURI(ws.Name),
			Name:        ws.Name,
			Description: desc,
			MIMEType:    MIMEJSON,
		})
	}

	shared, err := r.instructions.ListSharedInstructions(ctx)
	if err != nil {
		r.logger.Warn("list resources: shared instructions", slog.String("error", err.Error()))
	}
	for _, inst := range shared {
		name := inst.Title
		if name == "" {
			name = inst.Name
		}
		out = append(out, Resource{
			URI:         SharedURI(inst.Name),
			Name:        name,
			Description: inst.Description,
			MIMEType:    MIMEMarkdown,
		})
	}

	return append(out, Resource{
		URI:         GlobalURI,
		Name:        "Global instructions",
		Description: "Instructions that apply to every workspace",
		MIMEType:    MIMEMarkdown,
	})
}

// Read resolves uri and returns its content.
func (r *Resolver) Read(ctx context.Context, uri string) (*Content, error) {
	if !uriRe.MatchString(uri) {
		return nil, apperr.New(apperr.KindInvalidURI, "invalid resource URI %q", uri)
	}
	scheme, path, _ := strings.Cut(uri, "://")
	scheme = strings.ToLower(scheme)
	if scheme != SchemeWorkspace && scheme != SchemeInstruction {
		return nil, apperr.New(apperr.KindUnsupportedScheme, "unsupported URI scheme %q", scheme)
	}
	if strings.TrimSpace(path) == "" {
		return nil, apperr.New(apperr.KindInvalidURI, "empty path in resource URI %q", uri)
	}

	if scheme == SchemeWorkspace {
		return r.readWorkspace(ctx, uri, path)
	}
	return r.readInstruction(ctx, uri, path)
}

func (r *Resolver) readWorkspace(ctx context.Context, uri, name string) (*Content, error) {
	ok, err := r.workspaces.WorkspaceExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "workspace %q not found", name)
	}
	meta, err := r.workspaces.GetWorkspaceMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, err, "encode workspace %q", name)
	}
	return &Content{URI: uri, MIMEType: MIMEJSON, Text: string(data)}, nil
}

func (r *Resolver) readInstruction(ctx context.Context, uri, path string) (*Content, error) {
	switch {
	case path == "global":
		g, err := r.instructions.GetGlobalInstructions(ctx)
		if err != nil {
			return nil, err
		}
		return &Content{URI: uri, MIMEType: MIMEMarkdown, Text: g.Content}, nil

	case strings.HasPrefix(path, sharedPrefix) && len(path) > len(sharedPrefix):
		inst, err := r.instructions.GetSharedInstruction(ctx, strings.TrimPrefix(path, sharedPrefix))
		if err != nil {
			return nil, err
		}
		return &Content{URI: uri, MIMEType: MIMEMarkdown, Text: inst.Content}, nil
	}
	return nil, apperr.New(apperr.KindInvalidInstructionPath,
		"unknown instruction path %q (expected \"global\" or \"shared/{name}\")", path)
}

// WorkspaceURI returns the resource URI of a workspace.
func WorkspaceURI(name string) string {
	return SchemeWorkspace + "://" + name
}

// SharedURI returns the resource URI of a shared instruction.
func SharedURI(name string) string {
	return SchemeInstruction + "://" + sharedPrefix + name
}
