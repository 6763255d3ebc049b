package repository

import (
	"errors"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/starford/workspaces-mcp/internal/apperr"
	"github.com/starford/workspaces-mcp/internal/checksum"
	"github.com/starford/workspaces-mcp/internal/models"
	"github.com/starford/workspaces-mcp/internal/parser"
	"github.com/starford/workspaces-mcp/internal/storage"
	"github.com/starford/workspaces-mcp/internal/validation"
)

const instructionExt = ".md"

// DefaultGlobalInstructions is materialized on the first read of an absent
// global instructions file.
const DefaultGlobalInstructions = `# Global Instructions

These instructions apply to every workspace.

- Read the workspace README before making changes.
- Keep instructions short and specific.

Replace this text with the update_global_instructions tool.
`

// InstructionsRepository stores shared instructions as markdown files under
// SHARED_INSTRUCTIONS, plus the singleton GLOBAL.md.
type InstructionsRepository struct {
	store  storage.Provider
	logger *slog.Logger
	now    func() time.Time
}

// NewInstructionsRepository creates a repository over store.
func NewInstructionsRepository(store storage.Provider, logger *slog.Logger) *InstructionsRepository {
	return &InstructionsRepository{store: store, logger: logger, now: time.Now}
}

func sharedPath(name string) string {
	return path.Join(validation.SharedInstructionsDir, name+instructionExt)
}

func globalPath() string {
	return sharedPath(validation.GlobalInstructionsName)
}

// ListShared returns every parseable shared instruction sorted by name.
// Files that fail to parse, or whose names are not legal instruction
// names, are logged and skipped.
func (r *InstructionsRepository) ListShared() ([]models.SharedInstruction, error) {
	entries, err := r.store.ReadDir(validation.SharedInstructionsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.SharedInstruction{}, nil
	}
	if err != nil {
		return nil, classify(err, "shared instructions directory")
	}

	out := make([]models.SharedInstruction, 0, len(entries))
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, instructionExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name, instructionExt)
		if name == validation.GlobalInstructionsName {
			continue
		}
		if err := validation.ValidateInstructionName(name); err != nil {
			r.logger.Warn("list shared instructions: skipping file",
				slog.String("file", e.Name),
				slog.String("error", err.Error()))
			continue
		}
		inst, err := r.GetShared(name)
		if err != nil {
			r.logger.Warn("list shared instructions: skipping file",
				slog.String("file", e.Name),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetShared reads and parses one shared instruction.
func (r *InstructionsRepository) GetShared(name string) (*models.SharedInstruction, error) {
	p := sharedPath(name)
	data, err := r.store.Read(p)
	if err != nil {
		return nil, classify(err, "shared instruction %q", name)
	}
	info, err := r.store.Stat(p)
	if err != nil {
		return nil, classify(err, "shared instruction %q", name)
	}
	return buildInstruction(name, data, info)
}

// CreateShared writes a new shared instruction. The file is created
// exclusively; a taken name fails with AlreadyExists.
func (r *InstructionsRepository) CreateShared(name string, data models.InstructionData) (*models.SharedInstruction, error) {
	raw, err := parser.Render(data.Description, data.Content)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, err, "render shared instruction %q", name)
	}
	if err := r.store.CreateExclusive(sharedPath(name), raw); err != nil {
		return nil, classify(err, "shared instruction %q", name)
	}
	r.logger.Debug("shared instruction created", slog.String("name", name))
	return r.GetShared(name)
}

// ReplaceShared atomically replaces the content of an existing shared
// instruction.
func (r *InstructionsRepository) ReplaceShared(name string, data models.InstructionData) (*models.SharedInstruction, error) {
	p := sharedPath(name)
	ok, err := r.store.Exists(p)
	if err != nil {
		return nil, classify(err, "shared instruction %q", name)
	}
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "shared instruction %q not found", name)
	}
	raw, err := parser.Render(data.Description, data.Content)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, err, "render shared instruction %q", name)
	}
	if err := r.store.Write(p, raw); err != nil {
		return nil, classify(err, "shared instruction %q", name)
	}
	return r.GetShared(name)
}

// DeleteShared removes a shared instruction file.
func (r *InstructionsRepository) DeleteShared(name string) error {
	if err := r.store.Delete(sharedPath(name)); err != nil {
		return classify(err, "shared instruction %q", name)
	}
	r.logger.Debug("shared instruction deleted", slog.String("name", name))
	return nil
}

// GetGlobal returns the global instructions. When the file is absent it is
// written with DefaultGlobalInstructions; a failure to persist the default
// is logged and the default is still returned.
func (r *InstructionsRepository) GetGlobal() (*models.GlobalInstructions, error) {
	p := globalPath()
	data, err := r.store.Read(p)
	if errors.Is(err, fs.ErrNotExist) {
		if werr := r.store.Write(p, []byte(DefaultGlobalInstructions)); werr != nil {
			r.logger.Warn("materialize global instructions", slog.String("error", werr.Error()))
			return &models.GlobalInstructions{Content: DefaultGlobalInstructions, ModifiedAt: r.now().UTC()}, nil
		}
		r.logger.Info("global instructions initialized with default content")
		data = []byte(DefaultGlobalInstructions)
	} else if err != nil {
		return nil, classify(err, "global instructions")
	}

	info, err := r.store.Stat(p)
	if err != nil {
		return nil, classify(err, "global instructions")
	}
	return &models.GlobalInstructions{Content: string(data), ModifiedAt: info.ModTime}, nil
}

// UpdateGlobal overwrites the global instructions unconditionally.
func (r *InstructionsRepository) UpdateGlobal(content string) (*models.GlobalInstructions, error) {
	p := globalPath()
	if err := r.store.Write(p, []byte(content)); err != nil {
		return nil, classify(err, "global instructions")
	}
	info, err := r.store.Stat(p)
	if err != nil {
		return nil, classify(err, "global instructions")
	}
	return &models.GlobalInstructions{Content: content, ModifiedAt: info.ModTime}, nil
}

func buildInstruction(name string, data []byte, info storage.FileInfo) (*models.SharedInstruction, error) {
	parsed, err := parser.Parse(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCorruptMetadata, err, "shared instruction %q has invalid frontmatter", name)
	}
	return &models.SharedInstruction{
		Name:        name,
		Title:       parsed.Title,
		Description: parsed.Description,
		Content:     parsed.Body,
		Tags:        parsed.Tags,
		Checksum:    checksum.Sum(data),
		CreatedAt:   info.ModTime,
		ModifiedAt:  info.ModTime,
	}, nil
}
