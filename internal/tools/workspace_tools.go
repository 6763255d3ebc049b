package tools

import (
	"context"
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/workspaces-mcp/internal/service"
)

// CreateWorkspaceArgs are the arguments of create_workspace.
type CreateWorkspaceArgs struct {
	Name        string `json:"name" jsonschema_description:"Workspace name: letters, digits, '_' and '-', at most 100 characters"`
	Description string `json:"description,omitempty" jsonschema_description:"Optional free-text description"`
	Template    string `json:"template,omitempty" jsonschema_description:"Optional starter template tag (informational)"`
}

func (a CreateWorkspaceArgs) Validate() error {
	return validation.ValidateStruct(&a, validation.Field(&a.Name, validation.Required))
}

// WorkspaceNameArgs name a single workspace.
type WorkspaceNameArgs struct {
	Name string `json:"name" jsonschema_description:"Workspace name"`
}

func (a WorkspaceNameArgs) Validate() error {
	return validation.ValidateStruct(&a, validation.Field(&a.Name, validation.Required))
}

// UpdateWorkspaceArgs are the arguments of update_workspace.
type UpdateWorkspaceArgs struct {
	Name        string  `json:"name" jsonschema_description:"Workspace name"`
	Description *string `json:"description,omitempty" jsonschema_description:"New description"`
	Template    *string `json:"template,omitempty" jsonschema_description:"New template tag"`
}

func (a UpdateWorkspaceArgs) Validate() error {
	return validation.ValidateStruct(&a, validation.Field(&a.Name, validation.Required))
}

// DeleteWorkspaceArgs are the arguments of delete_workspace.
type DeleteWorkspaceArgs struct {
	Name    string `json:"name" jsonschema_description:"Workspace name"`
	Confirm bool   `json:"confirm" jsonschema_description:"Must be true; deletion is irreversible"`
}

func (a DeleteWorkspaceArgs) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required),
		validation.Field(&a.Confirm, validation.Required.Error("must be true to delete a workspace")),
	)
}

// WorkspaceFileArgs address a file inside a workspace.
type WorkspaceFileArgs struct {
	Workspace string `json:"workspace" jsonschema_description:"Workspace name"`
	Path      string `json:"path" jsonschema_description:"File path relative to the workspace"`
}

func (a WorkspaceFileArgs) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Workspace, validation.Required),
		validation.Field(&a.Path, validation.Required),
	)
}

// WriteWorkspaceFileArgs are the arguments of write_workspace_file.
type WriteWorkspaceFileArgs struct {
	Workspace string  `json:"workspace" jsonschema_description:"Workspace name"`
	Path      string  `json:"path" jsonschema_description:"File path relative to the workspace"`
	Content   *string `json:"content" jsonschema_description:"Text content, at most 100000 characters"`
}

func (a WriteWorkspaceFileArgs) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Workspace, validation.Required),
		validation.Field(&a.Path, validation.Required),
		validation.Field(&a.Content, validation.NotNil),
	)
}

// WorkspaceTools returns the workspace tools backed by svc.
func WorkspaceTools(svc *service.WorkspaceService) []Tool {
	return []Tool{
		Define("create_workspace",
			"Create a new workspace directory with a README and metadata.",
			func(ctx context.Context, a CreateWorkspaceArgs) (string, error) {
				meta, err := svc.CreateWorkspace(ctx, a.Name, service.CreateWorkspaceInput{
					Description: a.Description,
					Template:    a.Template,
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Created workspace %q at %s", meta.Name, meta.Path), nil
			}),

		Define("list_workspaces",
			"List all workspaces with their metadata, sorted by name.",
			func(ctx context.Context, _ NoArgs) (string, error) {
				list, err := svc.ListWorkspaces(ctx)
				if err != nil {
					return "", err
				}
				return jsonText(list)
			}),

		Define("get_workspace_info",
			"Get a workspace's metadata together with its file list and total size.",
			func(ctx context.Context, a WorkspaceNameArgs) (string, error) {
				info, err := svc.GetWorkspaceInfo(ctx, a.Name)
				if err != nil {
					return "", err
				}
				return jsonText(info)
			}),

		Define("update_workspace",
			"Change a workspace's description or template tag.",
			func(ctx context.Context, a UpdateWorkspaceArgs) (string, error) {
				meta, err := svc.UpdateWorkspace(ctx, a.Name, service.UpdateWorkspaceInput{
					Description: a.Description,
					Template:    a.Template,
				})
				if err != nil {
					return "", err
				}
				return jsonText(meta)
			}),

		Define("delete_workspace",
			"Delete a workspace and all of its files. This cannot be undone.",
			func(ctx context.Context, a DeleteWorkspaceArgs) (string, error) {
				if err := svc.DeleteWorkspace(ctx, a.Name); err != nil {
					return "", err
				}
				return fmt.Sprintf("Deleted workspace %q", a.Name), nil
			}),

		Define("read_workspace_file",
			"Read a text file inside a workspace.",
			func(ctx context.Context, a WorkspaceFileArgs) (string, error) {
				return svc.ReadWorkspaceFile(ctx, a.Workspace, a.Path)
			}),

		Define("write_workspace_file",
			"Create or replace a text file inside a workspace.",
			func(ctx context.Context, a WriteWorkspaceFileArgs) (string, error) {
				if err := svc.WriteWorkspaceFile(ctx, a.Workspace, a.Path, *a.Content); err != nil {
					return "", err
				}
				return fmt.Sprintf("Wrote %d characters to %s in workspace %q", len([]rune(*a.Content)), a.Path, a.Workspace), nil
			}),
	}
}

func jsonText(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

