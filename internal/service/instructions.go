package service

import (
	"context"
	"log/slog"

	"github.com/starford/workspaces-mcp/internal/events"
	"github.com/starford/workspaces-mcp/internal/models"
	"github.com/starford/workspaces-mcp/internal/repository"
	"github.com/starford/workspaces-mcp/internal/validation"
)

// InstructionsService implements shared and global instruction operations.
type InstructionsService struct {
	repo   *repository.InstructionsRepository
	pub    Publisher
	logger *slog.Logger
}

// NewInstructionsService creates an InstructionsService. pub may be nil.
func NewInstructionsService(repo *repository.InstructionsRepository, pub Publisher, logger *slog.Logger) *InstructionsService {
	return &InstructionsService{repo: repo, pub: pub, logger: logger}
}

// ListSharedInstructions returns every readable shared instruction.
func (s *InstructionsService) ListSharedInstructions(ctx context.Context) ([]models.SharedInstruction, error) {
	list, err := s.repo.ListShared()
	if err != nil {
		return nil, classified(err)
	}
	return list, nil
}

// GetSharedInstruction returns one shared instruction.
func (s *InstructionsService) GetSharedInstruction(ctx context.Context, name string) (*models.SharedInstruction, error) {
	if err := validation.ValidateInstructionName(name); err != nil {
		return nil, err
	}
	inst, err := s.repo.GetShared(name)
	if err != nil {
		return nil, classified(err)
	}
	return inst, nil
}

// CreateSharedInstruction creates a new shared instruction.
func (s *InstructionsService) CreateSharedInstruction(ctx context.Context, name string, data models.InstructionData) (*models.SharedInstruction, error) {
	if err := validateInstruction(name, data); err != nil {
		return nil, err
	}
	inst, err := s.repo.CreateShared(name, data)
	if err != nil {
		return nil, classified(err)
	}
	safePublish(ctx, s.pub, s.logger, events.New(events.InstructionCreated, name, map[string]any{
		"checksum": inst.Checksum,
	}))
	return inst, nil
}

// UpdateSharedInstruction atomically replaces an existing shared instruction.
func (s *InstructionsService) UpdateSharedInstruction(ctx context.Context, name string, data models.InstructionData) (*models.SharedInstruction, error) {
	if err := validateInstruction(name, data); err != nil {
		return nil, err
	}
	inst, err := s.repo.ReplaceShared(name, data)
	if err != nil {
		return nil, classified(err)
	}
	safePublish(ctx, s.pub, s.logger, events.New(events.InstructionUpdated, name, map[string]any{
		"checksum": inst.Checksum,
	}))
	return inst, nil
}

// DeleteSharedInstruction removes a shared instruction.
func (s *InstructionsService) DeleteSharedInstruction(ctx context.Context, name string) error {
	if err := validation.ValidateInstructionName(name); err != nil {
		return err
	}
	if err := s.repo.DeleteShared(name); err != nil {
		return classified(err)
	}
	safePublish(ctx, s.pub, s.logger, events.New(events.InstructionDeleted, name, nil))
	return nil
}

// GetGlobalInstructions returns the global instructions, creating them
// with default content on first use.
func (s *InstructionsService) GetGlobalInstructions(ctx context.Context) (*models.GlobalInstructions, error) {
	g, err := s.repo.GetGlobal()
	if err != nil {
		return nil, classified(err)
	}
	return g, nil
}

// UpdateGlobalInstructions overwrites the global instructions. Oversized
// content is rejected before anything is written.
func (s *InstructionsService) UpdateGlobalInstructions(ctx context.Context, content string) (*models.GlobalInstructions, error) {
	if err := validation.ValidateContent(content); err != nil {
		return nil, err
	}
	g, err := s.repo.UpdateGlobal(content)
	if err != nil {
		return nil, classified(err)
	}
	safePublish(ctx, s.pub, s.logger, events.New(events.GlobalInstructionUpdated, validation.GlobalInstructionsName, map[string]any{
		"size": len(content),
	}))
	return g, nil
}

func validateInstruction(name string, data models.InstructionData) error {
	if err := validation.ValidateInstructionName(name); err != nil {
		return err
	}
	if err := validation.ValidateContent(data.Content); err != nil {
		return err
	}
	return validation.ValidateContent(data.Description)
}
