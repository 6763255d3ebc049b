// Package validation holds the pure name and content predicates shared by the
// repository and service layers.
package validation

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/workspaces-mcp/internal/apperr"
)

const (
	// MaxNameLength bounds workspace and instruction names.
	MaxNameLength = 100
	// MaxContentLength bounds instruction and workspace file content, in characters.
	MaxContentLength = 100_000

	// SharedInstructionsDir is the reserved directory holding shared instructions.
	SharedInstructionsDir = "SHARED_INSTRUCTIONS"
	// GlobalInstructionsName is the reserved name of the global instructions file.
	GlobalInstructionsName = "GLOBAL"
)

var (
	nameCharsRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	nameEdgesRe = regexp.MustCompile(`^[^-](?:.*[^-])?$`)
)

func nameRules(reserved ...any) []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("name is required"),
		validation.Length(1, MaxNameLength).Error("name must be between 1 and 100 characters"),
		validation.Match(nameCharsRe).Error("name may only contain letters, digits, '_' and '-'"),
		validation.Match(nameEdgesRe).Error("name must not start or end with '-'"),
		validation.NotIn(reserved...).Error("name is reserved"),
	}
}

// ValidateWorkspaceName fails with InvalidName unless name is a legal
// workspace identifier.
func ValidateWorkspaceName(name string) error {
	if err := validation.Validate(name, nameRules(SharedInstructionsDir)...); err != nil {
		return apperr.New(apperr.KindInvalidName, "invalid workspace name %q: %s", name, err.Error())
	}
	return nil
}

// ValidateInstructionName is ValidateWorkspaceName plus the reserved global name.
func ValidateInstructionName(name string) error {
	if err := validation.Validate(name, nameRules(SharedInstructionsDir, GlobalInstructionsName)...); err != nil {
		return apperr.New(apperr.KindInvalidName, "invalid instruction name %q: %s", name, err.Error())
	}
	return nil
}

// ValidateContent fails with ContentTooLarge when content exceeds
// MaxContentLength characters. Empty content is legal.
func ValidateContent(content string) error {
	err := validation.Validate(content,
		validation.RuneLength(0, MaxContentLength).Error("content exceeds 100000 characters"),
	)
	if err != nil {
		return apperr.New(apperr.KindContentTooLarge, "%s", err.Error())
	}
	return nil
}
