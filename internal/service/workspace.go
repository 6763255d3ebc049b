package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/workspaces-mcp/internal/apperr"
	"github.com/starford/workspaces-mcp/internal/events"
	"github.com/starford/workspaces-mcp/internal/models"
	"github.com/starford/workspaces-mcp/internal/repository"
	"github.com/starford/workspaces-mcp/internal/validation"
)

// CreateWorkspaceInput holds the fields of a new workspace.
type CreateWorkspaceInput struct {
	Description string
	Template    string
}

// UpdateWorkspaceInput changes the non-nil metadata fields.
type UpdateWorkspaceInput struct {
	Description *string
	Template    *string
}

// WorkspaceService implements the workspace operations.
type WorkspaceService struct {
	repo   *repository.WorkspaceRepository
	pub    Publisher
	logger *slog.Logger
}

// NewWorkspaceService creates a WorkspaceService. pub may be nil.
func NewWorkspaceService(repo *repository.WorkspaceRepository, pub Publisher, logger *slog.Logger) *WorkspaceService {
	return &WorkspaceService{repo: repo, pub: pub, logger: logger}
}

// CreateWorkspace validates the input and creates the workspace.
func (s *WorkspaceService) CreateWorkspace(ctx context.Context, name string, in CreateWorkspaceInput) (*models.WorkspaceMetadata, error) {
	if err := validation.ValidateWorkspaceName(name); err != nil {
		return nil, err
	}
	if err := validateTemplate(in.Template); err != nil {
		return nil, err
	}
	if err := validation.ValidateContent(in.Description); err != nil {
		return nil, err
	}

	meta, err := s.repo.Create(name, repository.CreateOptions{Description: in.Description, Template: in.Template})
	if err != nil {
		return nil, classified(err)
	}

	safePublish(ctx, s.pub, s.logger, events.New(events.WorkspaceCreated, name, map[string]any{
		"template": in.Template,
	}))
	return meta, nil
}

// ListWorkspaces returns all workspaces sorted by name.
func (s *WorkspaceService) ListWorkspaces(ctx context.Context) ([]models.WorkspaceMetadata, error) {
	list, err := s.repo.List()
	if err != nil {
		return nil, classified(err)
	}
	return list, nil
}

// WorkspaceExists reports whether the named workspace exists.
func (s *WorkspaceService) WorkspaceExists(ctx context.Context, name string) (bool, error) {
	if err := validation.ValidateWorkspaceName(name); err != nil {
		return false, err
	}
	ok, err := s.repo.Exists(name)
	if err != nil {
		return false, classified(err)
	}
	return ok, nil
}

// GetWorkspaceMetadata returns the metadata of one workspace.
func (s *WorkspaceService) GetWorkspaceMetadata(ctx context.Context, name string) (*models.WorkspaceMetadata, error) {
	if err := validation.ValidateWorkspaceName(name); err != nil {
		return nil, err
	}
	meta, err := s.repo.GetMetadata(name)
	if err != nil {
		return nil, classified(err)
	}
	return meta, nil
}

// GetWorkspaceInfo returns metadata plus a fresh file scan.
func (s *WorkspaceService) GetWorkspaceInfo(ctx context.Context, name string) (*models.WorkspaceInfo, error) {
	meta, err := s.GetWorkspaceMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	files, size, err := s.repo.Scan(name)
	if err != nil {
		return nil, classified(err)
	}
	return &models.WorkspaceInfo{
		WorkspaceMetadata: *meta,
		FileCount:         len(files),
		Size:              size,
		Files:             files,
	}, nil
}

// UpdateWorkspace changes description and/or template.
func (s *WorkspaceService) UpdateWorkspace(ctx context.Context, name string, in UpdateWorkspaceInput) (*models.WorkspaceMetadata, error) {
	if err := validation.ValidateWorkspaceName(name); err != nil {
		return nil, err
	}
	if in.Template != nil {
		if err := validateTemplate(*in.Template); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		if err := validation.ValidateContent(*in.Description); err != nil {
			return nil, err
		}
	}

	meta, err := s.repo.UpdateMetadata(name, repository.MetadataPatch{Description: in.Description, Template: in.Template})
	if err != nil {
		return nil, classified(err)
	}
	safePublish(ctx, s.pub, s.logger, events.New(events.WorkspaceUpdated, name, nil))
	return meta, nil
}

// DeleteWorkspace removes the workspace and all its files.
func (s *WorkspaceService) DeleteWorkspace(ctx context.Context, name string) error {
	if err := validation.ValidateWorkspaceName(name); err != nil {
		return err
	}
	if err := s.repo.Delete(name); err != nil {
		return classified(err)
	}
	safePublish(ctx, s.pub, s.logger, events.New(events.WorkspaceDeleted, name, nil))
	return nil
}

// ValidateWorkspaceFile checks that rel stays inside the workspace and
// returns it cleaned and slash-separated. It does no I/O.
func (s *WorkspaceService) ValidateWorkspaceFile(name, rel string) (string, error) {
	if err := validation.ValidateWorkspaceName(name); err != nil {
		return "", err
	}
	if strings.TrimSpace(rel) == "" {
		return "", apperr.New(apperr.KindInvalidName, "file path is required")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", apperr.New(apperr.KindSecurityViolation, "file path %q must be relative to the workspace", rel)
	}

	base := s.repo.GetWorkspacePath(name)
	target := filepath.Join(base, filepath.FromSlash(rel))
	inside, err := filepath.Rel(base, target)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", apperr.New(apperr.KindSecurityViolation, "file path %q escapes workspace %q", rel, name)
	}
	return filepath.ToSlash(inside), nil
}

// ReadWorkspaceFile returns the text of a file inside a workspace.
func (s *WorkspaceService) ReadWorkspaceFile(ctx context.Context, name, rel string) (string, error) {
	clean, err := s.ValidateWorkspaceFile(name, rel)
	if err != nil {
		return "", err
	}
	data, err := s.repo.ReadFile(name, clean)
	if err != nil {
		return "", classified(err)
	}
	return string(data), nil
}

// WriteWorkspaceFile creates or replaces a text file inside a workspace.
// The metadata file cannot be written this way.
func (s *WorkspaceService) WriteWorkspaceFile(ctx context.Context, name, rel, content string) error {
	clean, err := s.ValidateWorkspaceFile(name, rel)
	if err != nil {
		return err
	}
	if clean == "." {
		return apperr.New(apperr.KindSecurityViolation, "file path %q names the workspace directory", rel)
	}
	if clean == repository.MetadataFile {
		return apperr.New(apperr.KindSecurityViolation, "%s is managed by the server", repository.MetadataFile)
	}
	if err := validation.ValidateContent(content); err != nil {
		return err
	}
	if err := s.repo.WriteFile(name, clean, []byte(content)); err != nil {
		return classified(err)
	}
	safePublish(ctx, s.pub, s.logger, events.New(events.WorkspaceFileWritten, name, map[string]any{
		"path": clean,
		"size": len(content),
	}))
	return nil
}

func validateTemplate(template string) error {
	if template == "" {
		return nil
	}
	if err := validation.ValidateWorkspaceName(template); err != nil {
		return apperr.New(apperr.KindInvalidName, "invalid template %q", template)
	}
	return nil
}
