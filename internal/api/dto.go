package api

import (
	"encoding/json"

	"github.com/starford/workspaces-mcp/internal/apperr"
	"github.com/starford/workspaces-mcp/internal/models"
	"github.com/starford/workspaces-mcp/internal/resource"
)

// ResourceListResponse wraps the current resource listing.
type ResourceListResponse struct {
	Resources []resource.Resource `json:"resources" validate:"required"`
	Templates []resource.Template `json:"templates" validate:"required"`
}

// ToolInfo describes one registered tool.
type ToolInfo struct {
	Name        string          `json:"name" example:"create_workspace"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolResultResponse is the outcome of POST /api/tools/{name}.
type ToolResultResponse struct {
	Text    string      `json:"text"`
	IsError bool        `json:"isError"`
	Kind    apperr.Kind `json:"kind,omitempty"`
}

// UpdateInstructionRequest is the request body for replacing a shared
// instruction.
type UpdateInstructionRequest struct {
	Content     string `json:"content" validate:"required"`
	Description string `json:"description,omitempty"`
}

// WorkspaceListResponse wraps workspace listings.
type WorkspaceListResponse struct {
	Workspaces []models.WorkspaceMetadata `json:"workspaces" validate:"required"`
}

// InstructionListResponse wraps shared instruction listings.
type InstructionListResponse struct {
	Instructions []models.SharedInstruction `json:"instructions" validate:"required"`
}
