package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/workspaces-mcp/internal/checksum"
	"github.com/starford/workspaces-mcp/internal/models"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	d Deps
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{d: d}
}

// filePath extracts the workspace-relative path from the URL (everything
// after /files/). Supports encoded slashes.
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListResources handles GET /api/resources.
//
//	@Summary		List every resource and URI template
//	@Tags			resources
//	@Produce		json
//	@Success		200	{object}	ResourceListResponse
//	@Router			/resources [get]
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ResourceListResponse{
		Resources: h.d.Resolver.List(r.Context()),
		Templates: h.d.Resolver.Templates(),
	})
}

// ReadResource handles GET /api/resources/read?uri=.
//
//	@Summary		Read one resource by URI
//	@Tags			resources
//	@Produce		json
//	@Param			uri	query		string	true	"Resource URI"
//	@Success		200	{object}	resource.Content
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Router			/resources/read [get]
func (h *Handler) ReadResource(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'uri' is required"))
		return
	}
	c, err := h.d.Resolver.Read(r.Context(), uri)
	if err != nil {
		writeError(w, h.d.Logger, "read resource", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListTools handles GET /api/tools.
//
//	@Summary		List registered tools with their input schemas
//	@Tags			tools
//	@Produce		json
//	@Success		200	{array}	ToolInfo
//	@Router			/tools [get]
func (h *Handler) ListTools(w http.ResponseWriter, _ *http.Request) {
	list := h.d.Registry.List()
	out := make([]ToolInfo, 0, len(list))
	for _, t := range list {
		out = append(out, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	writeJSON(w, http.StatusOK, out)
}

// CallTool handles POST /api/tools/{name}. The body is the tool's JSON
// arguments; an empty body means no arguments.
//
//	@Summary		Call a tool
//	@Tags			tools
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string	true	"Tool name"
//	@Success		200		{object}	ToolResultResponse
//	@Failure		400		{object}	ToolResultResponse
//	@Failure		404		{object}	ToolResultResponse
//	@Router			/tools/{name} [post]
func (h *Handler) CallTool(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}

	res := h.d.Registry.Call(r.Context(), chi.URLParam(r, "name"), body)
	status := http.StatusOK
	if res.IsError {
		status = statusFor(res.Kind)
	}
	writeJSON(w, status, ToolResultResponse{Text: res.Text, IsError: res.IsError, Kind: res.Kind})
}

// ListWorkspaces handles GET /api/workspaces.
//
//	@Summary		List workspaces
//	@Tags			workspaces
//	@Produce		json
//	@Success		200	{object}	WorkspaceListResponse
//	@Router			/workspaces [get]
func (h *Handler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Workspaces.ListWorkspaces(r.Context())
	if err != nil {
		writeError(w, h.d.Logger, "list workspaces", err)
		return
	}
	writeJSON(w, http.StatusOK, WorkspaceListResponse{Workspaces: list})
}

// GetWorkspace handles GET /api/workspaces/{name}.
//
//	@Summary		Get workspace metadata and a file scan
//	@Tags			workspaces
//	@Produce		json
//	@Param			name	path		string	true	"Workspace name"
//	@Success		200		{object}	models.WorkspaceInfo
//	@Failure		404		{object}	errResponse
//	@Router			/workspaces/{name} [get]
func (h *Handler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	info, err := h.d.Workspaces.GetWorkspaceInfo(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, h.d.Logger, "get workspace", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ReadWorkspaceFile handles GET /api/workspaces/{name}/files/*.
//
//	@Summary		Read a file inside a workspace
//	@Tags			workspaces
//	@Produce		plain
//	@Param			name	path		string	true	"Workspace name"
//	@Param			path	path		string	true	"Relative file path"
//	@Success		200		{string}	string
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/workspaces/{name}/files/{path} [get]
func (h *Handler) ReadWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	content, err := h.d.Workspaces.ReadWorkspaceFile(r.Context(), chi.URLParam(r, "name"), path)
	if err != nil {
		writeError(w, h.d.Logger, "read workspace file", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("ETag", checksum.ETag([]byte(content)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, content)
}

// ListSharedInstructions handles GET /api/instructions/shared.
//
//	@Summary		List shared instructions
//	@Tags			instructions
//	@Produce		json
//	@Success		200	{object}	InstructionListResponse
//	@Router			/instructions/shared [get]
func (h *Handler) ListSharedInstructions(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Instructions.ListSharedInstructions(r.Context())
	if err != nil {
		writeError(w, h.d.Logger, "list shared instructions", err)
		return
	}
	writeJSON(w, http.StatusOK, InstructionListResponse{Instructions: list})
}

// GetSharedInstruction handles GET /api/instructions/shared/{name}.
//
//	@Summary		Get a shared instruction
//	@Tags			instructions
//	@Produce		json
//	@Param			name	path		string	true	"Instruction name"
//	@Success		200		{object}	models.SharedInstruction
//	@Success		304		"Not modified"
//	@Failure		404		{object}	errResponse
//	@Router			/instructions/shared/{name} [get]
func (h *Handler) GetSharedInstruction(w http.ResponseWriter, r *http.Request) {
	inst, err := h.d.Instructions.GetSharedInstruction(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, h.d.Logger, "get shared instruction", err)
		return
	}
	etag := checksum.Tag(inst.Checksum)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, inst)
}

// UpdateSharedInstruction handles PUT /api/instructions/shared/{name}.
//
//	@Summary		Replace a shared instruction with optimistic concurrency
//	@Tags			instructions
//	@Accept			json
//	@Produce		json
//	@Param			name		path	string						true	"Instruction name"
//	@Param			If-Match	header	string						false	"ETag of the instruction being replaced"
//	@Param			body		body	UpdateInstructionRequest	true	"New content"
//	@Success		200			{object}	models.SharedInstruction
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Router			/instructions/shared/{name} [put]
func (h *Handler) UpdateSharedInstruction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	name := chi.URLParam(r, "name")

	var req UpdateInstructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" {
		current, err := h.d.Instructions.GetSharedInstruction(r.Context(), name)
		if err != nil {
			writeError(w, h.d.Logger, "update shared instruction", err)
			return
		}
		if ifMatch != checksum.Tag(current.Checksum) {
			writeJSON(w, http.StatusConflict, errorBody("etag mismatch"))
			return
		}
	}

	inst, err := h.d.Instructions.UpdateSharedInstruction(r.Context(), name,
		models.InstructionData{Content: req.Content, Description: req.Description})
	if err != nil {
		writeError(w, h.d.Logger, "update shared instruction", err)
		return
	}
	w.Header().Set("ETag", checksum.Tag(inst.Checksum))
	writeJSON(w, http.StatusOK, inst)
}

// GetGlobalInstructions handles GET /api/instructions/global.
//
//	@Summary		Get the global instructions
//	@Tags			instructions
//	@Produce		json
//	@Success		200	{object}	models.GlobalInstructions
//	@Router			/instructions/global [get]
func (h *Handler) GetGlobalInstructions(w http.ResponseWriter, r *http.Request) {
	g, err := h.d.Instructions.GetGlobalInstructions(r.Context())
	if err != nil {
		writeError(w, h.d.Logger, "get global instructions", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag([]byte(g.Content)))
	writeJSON(w, http.StatusOK, g)
}

// RecentEvents handles GET /api/events.
//
//	@Summary		Recent journal events, newest first
//	@Tags			journal
//	@Produce		json
//	@Param			limit	query	int		false	"Max events"
//	@Param			type	query	string	false	"Event type prefix, e.g. tool."
//	@Success		200		{array}	events.Event
//	@Router			/events [get]
func (h *Handler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	list, err := h.d.Journal.Recent(r.Context(), limit, q.Get("type"))
	if err != nil {
		h.d.Logger.Error("recent events failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

// ToolStats handles GET /api/stats.
//
//	@Summary		Per-tool call statistics
//	@Tags			journal
//	@Produce		json
//	@Success		200	{array}	journal.ToolStat
//	@Router			/stats [get]
func (h *Handler) ToolStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.d.Journal.ToolStats(r.Context())
	if err != nil {
		h.d.Logger.Error("tool stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": stats})
}
