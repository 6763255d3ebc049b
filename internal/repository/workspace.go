package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/workspaces-mcp/internal/apperr"
	"github.com/starford/workspaces-mcp/internal/models"
	"github.com/starford/workspaces-mcp/internal/storage"
	"github.com/starford/workspaces-mcp/internal/validation"
)

// Files inside a workspace directory.
const (
	MetadataFile     = ".workspace.json"
	ReadmeFile       = "README.md"
	InstructionsFile = "INSTRUCTIONS.md"
)

// CreateOptions are the optional fields of a new workspace.
type CreateOptions struct {
	Description string
	Template    string
}

// MetadataPatch updates the non-nil fields of a workspace's metadata.
type MetadataPatch struct {
	Description *string
	Template    *string
}

// metadataFile is the on-disk form of .workspace.json.
type metadataFile struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Template    string    `json:"template,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	ModifiedAt  time.Time `json:"modifiedAt"`
}

// WorkspaceRepository stores one directory per workspace under the root.
type WorkspaceRepository struct {
	store  storage.Provider
	logger *slog.Logger
	now    func() time.Time
}

// NewWorkspaceRepository creates a repository over store.
func NewWorkspaceRepository(store storage.Provider, logger *slog.Logger) *WorkspaceRepository {
	return &WorkspaceRepository{store: store, logger: logger, now: time.Now}
}

// GetWorkspacePath returns root/name. It performs no I/O.
func (r *WorkspaceRepository) GetWorkspacePath(name string) string {
	return filepath.Join(r.store.Root(), name)
}

// Exists reports whether a workspace directory called name exists.
func (r *WorkspaceRepository) Exists(name string) (bool, error) {
	info, err := r.store.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, classify(err, "workspace %q", name)
	}
	return info.IsDir, nil
}

// Create makes the workspace directory, a README and the metadata file.
// The directory is created exclusively, so concurrent creators of the same
// name cannot both succeed.
func (r *WorkspaceRepository) Create(name string, opts CreateOptions) (*models.WorkspaceMetadata, error) {
	if err := r.store.Mkdir(name); err != nil {
		return nil, classify(err, "workspace %q", name)
	}

	now := r.now().UTC()
	meta := metadataFile{
		Name:        name,
		Description: opts.Description,
		Template:    opts.Template,
		CreatedAt:   now,
		ModifiedAt:  now,
	}

	if err := r.store.Write(path.Join(name, ReadmeFile), renderReadme(meta)); err != nil {
		return nil, classify(err, "workspace %q readme", name)
	}
	if err := r.writeMetadata(name, meta); err != nil {
		return nil, err
	}

	r.logger.Debug("workspace created", slog.String("name", name))
	return r.toModel(name, meta, true), nil
}

// List returns every workspace directory sorted by name. Directories
// without a metadata file are listed with fallback metadata; directories
// whose metadata cannot be parsed are logged and skipped.
func (r *WorkspaceRepository) List() ([]models.WorkspaceMetadata, error) {
	entries, err := r.store.ReadDir("")
	if err != nil {
		return nil, classify(err, "workspace root")
	}

	out := make([]models.WorkspaceMetadata, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir || e.Name == validation.SharedInstructionsDir || strings.HasPrefix(e.Name, ".") {
			continue
		}
		meta, err := r.GetMetadata(e.Name)
		if err != nil {
			r.logger.Warn("list workspaces: skipping entry",
				slog.String("name", e.Name),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, *meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetMetadata returns the stored metadata of a workspace, or fallback
// metadata derived from the directory when no metadata file exists.
func (r *WorkspaceRepository) GetMetadata(name string) (*models.WorkspaceMetadata, error) {
	info, err := r.store.Stat(name)
	if err != nil {
		return nil, classify(err, "workspace %q", name)
	}
	if !info.IsDir {
		return nil, apperr.New(apperr.KindNotFound, "workspace %q not found", name)
	}

	data, err := r.store.Read(path.Join(name, MetadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return r.fallback(name, info), nil
	}
	if err != nil {
		return nil, classify(err, "workspace %q metadata", name)
	}

	var meta metadataFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, apperr.Wrap(apperr.KindCorruptMetadata, err, "workspace %q has corrupt metadata", name)
	}

	hasInstructions, err := r.store.Exists(path.Join(name, InstructionsFile))
	if err != nil {
		return nil, classify(err, "workspace %q instructions", name)
	}
	return r.toModel(name, meta, hasInstructions), nil
}

// UpdateMetadata applies patch and bumps modifiedAt. A legacy workspace
// gains a metadata file on its first update.
func (r *WorkspaceRepository) UpdateMetadata(name string, patch MetadataPatch) (*models.WorkspaceMetadata, error) {
	current, err := r.GetMetadata(name)
	if err != nil {
		return nil, err
	}

	meta := metadataFile{
		Name:        name,
		Description: current.Description,
		Template:    current.Template,
		CreatedAt:   current.CreatedAt,
		ModifiedAt:  r.now().UTC(),
	}
	if patch.Description != nil {
		meta.Description = *patch.Description
	}
	if patch.Template != nil {
		meta.Template = *patch.Template
	}
	if err := r.writeMetadata(name, meta); err != nil {
		return nil, err
	}
	return r.toModel(name, meta, current.HasInstructions), nil
}

// Delete removes the workspace directory and everything in it.
func (r *WorkspaceRepository) Delete(name string) error {
	ok, err := r.Exists(name)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindNotFound, "workspace %q not found", name)
	}
	if err := r.store.Delete(name); err != nil {
		return classify(err, "workspace %q", name)
	}
	r.logger.Debug("workspace deleted", slog.String("name", name))
	return nil
}

// Scan lists the files of a workspace, excluding the metadata file.
func (r *WorkspaceRepository) Scan(name string) ([]models.WorkspaceFile, int64, error) {
	files, err := r.store.Walk(name)
	if err != nil {
		return nil, 0, classify(err, "workspace %q", name)
	}
	out := make([]models.WorkspaceFile, 0, len(files))
	var total int64
	for _, f := range files {
		if f.Path == MetadataFile {
			continue
		}
		out = append(out, models.WorkspaceFile{Path: f.Path, Size: f.Size, ModifiedAt: f.ModTime})
		total += f.Size
	}
	return out, total, nil
}

// ReadFile returns a file inside a workspace. rel must already be validated.
func (r *WorkspaceRepository) ReadFile(name, rel string) ([]byte, error) {
	data, err := r.store.Read(path.Join(name, rel))
	if err != nil {
		return nil, classify(err, "file %q in workspace %q", rel, name)
	}
	return data, nil
}

// WriteFile replaces a file inside an existing workspace. rel must already
// be validated.
func (r *WorkspaceRepository) WriteFile(name, rel string, content []byte) error {
	ok, err := r.Exists(name)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindNotFound, "workspace %q not found", name)
	}
	if err := r.store.Write(path.Join(name, rel), content); err != nil {
		return classify(err, "file %q in workspace %q", rel, name)
	}
	return nil
}

func (r *WorkspaceRepository) writeMetadata(name string, meta metadataFile) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindUnexpected, err, "encode metadata for %q", name)
	}
	if err := r.store.Write(path.Join(name, MetadataFile), append(data, '\n')); err != nil {
		return classify(err, "workspace %q metadata", name)
	}
	return nil
}

func (r *WorkspaceRepository) fallback(name string, info storage.FileInfo) *models.WorkspaceMetadata {
	return &models.WorkspaceMetadata{
		Name:       name,
		Path:       r.GetWorkspacePath(name),
		CreatedAt:  info.ModTime,
		ModifiedAt: info.ModTime,
	}
}

func (r *WorkspaceRepository) toModel(name string, meta metadataFile, hasInstructions bool) *models.WorkspaceMetadata {
	return &models.WorkspaceMetadata{
		Name:            name,
		Path:            r.GetWorkspacePath(name),
		Description:     meta.Description,
		Template:        meta.Template,
		CreatedAt:       meta.CreatedAt,
		ModifiedAt:      meta.ModifiedAt,
		HasInstructions: hasInstructions,
		Managed:         true,
	}
}

func renderReadme(meta metadataFile) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", meta.Name)
	if meta.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", meta.Description)
	}
	if meta.Template != "" {
		fmt.Fprintf(&b, "Template: %s\n\n", meta.Template)
	}
	fmt.Fprintf(&b, "Created: %s\n", meta.CreatedAt.Format(time.RFC3339))
	return []byte(b.String())
}
