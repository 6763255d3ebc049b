package tools

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/workspaces-mcp/internal/models"
	"github.com/starford/workspaces-mcp/internal/service"
)

// CreateSharedInstructionArgs are the arguments of create_shared_instruction.
type CreateSharedInstructionArgs struct {
	Name        string  `json:"name" jsonschema_description:"Instruction name; GLOBAL is reserved"`
	Content     *string `json:"content" jsonschema_description:"Markdown content, at most 100000 characters"`
	Description string  `json:"description,omitempty" jsonschema_description:"Optional short description"`
}

func (a CreateSharedInstructionArgs) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required),
		validation.Field(&a.Content, validation.NotNil),
	)
}

// UpdateSharedInstructionArgs are the arguments of update_shared_instruction.
type UpdateSharedInstructionArgs CreateSharedInstructionArgs

func (a UpdateSharedInstructionArgs) Validate() error {
	return CreateSharedInstructionArgs(a).Validate()
}

// InstructionNameArgs name a single shared instruction.
type InstructionNameArgs struct {
	Name string `json:"name" jsonschema_description:"Instruction name"`
}

func (a InstructionNameArgs) Validate() error {
	return validation.ValidateStruct(&a, validation.Field(&a.Name, validation.Required))
}

// UpdateGlobalInstructionsArgs are the arguments of update_global_instructions.
type UpdateGlobalInstructionsArgs struct {
	Content *string `json:"content" jsonschema_description:"New markdown content; may be empty"`
}

func (a UpdateGlobalInstructionsArgs) Validate() error {
	return validation.ValidateStruct(&a, validation.Field(&a.Content, validation.NotNil))
}

// NoArgs is the argument type of tools that take none.
type NoArgs struct{}

// instructionSummary is one entry of list_shared_instructions.
type instructionSummary struct {
	Name        string    `json:"name"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Checksum    string    `json:"checksum"`
	ModifiedAt  time.Time `json:"modifiedAt"`
}

// InstructionTools returns the instruction tools backed by svc.
func InstructionTools(svc *service.InstructionsService) []Tool {
	return []Tool{
		Define("create_shared_instruction",
			"Create a named shared instruction available to every workspace.",
			func(ctx context.Context, a CreateSharedInstructionArgs) (string, error) {
				inst, err := svc.CreateSharedInstruction(ctx, a.Name, models.InstructionData{
					Content:     *a.Content,
					Description: a.Description,
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Created shared instruction %q", inst.Name), nil
			}),

		Define("update_global_instructions",
			"Replace the global instructions that apply to every workspace.",
			func(ctx context.Context, a UpdateGlobalInstructionsArgs) (string, error) {
				if _, err := svc.UpdateGlobalInstructions(ctx, *a.Content); err != nil {
					return "", err
				}
				return "Updated global instructions", nil
			}),

		Define("list_shared_instructions",
			"List all shared instructions.",
			func(ctx context.Context, _ NoArgs) (string, error) {
				list, err := svc.ListSharedInstructions(ctx)
				if err != nil {
					return "", err
				}
				out := make([]instructionSummary, 0, len(list))
				for _, inst := range list {
					out = append(out, instructionSummary{
						Name:        inst.Name,
						Title:       inst.Title,
						Description: inst.Description,
						Tags:        inst.Tags,
						Checksum:    inst.Checksum,
						ModifiedAt:  inst.ModifiedAt,
					})
				}
				return jsonText(out)
			}),

		Define("get_shared_instruction",
			"Read a shared instruction's markdown content.",
			func(ctx context.Context, a InstructionNameArgs) (string, error) {
				inst, err := svc.GetSharedInstruction(ctx, a.Name)
				if err != nil {
					return "", err
				}
				return inst.Content, nil
			}),

		Define("update_shared_instruction",
			"Replace the content and description of an existing shared instruction.",
			func(ctx context.Context, a UpdateSharedInstructionArgs) (string, error) {
				inst, err := svc.UpdateSharedInstruction(ctx, a.Name, models.InstructionData{
					Content:     *a.Content,
					Description: a.Description,
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Updated shared instruction %q", inst.Name), nil
			}),

		Define("delete_shared_instruction",
			"Delete a shared instruction.",
			func(ctx context.Context, a InstructionNameArgs) (string, error) {
				if err := svc.DeleteSharedInstruction(ctx, a.Name); err != nil {
					return "", err
				}
				return fmt.Sprintf("Deleted shared instruction %q", a.Name), nil
			}),

		Define("get_global_instructions",
			"Read the global instructions.",
			func(ctx context.Context, _ NoArgs) (string, error) {
				g, err := svc.GetGlobalInstructions(ctx)
				if err != nil {
					return "", err
				}
				return g.Content, nil
			}),
	}
}
