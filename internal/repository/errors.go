// Package repository owns all filesystem access for workspaces and
// instructions. It knows nothing about URIs or tools.
package repository

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/starford/workspaces-mcp/internal/apperr"
	"github.com/starford/workspaces-mcp/internal/storage"
)

// classify maps a storage error onto the error taxonomy.
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &apperr.Error{Kind: apperr.KindNotFound, Message: msg + " not found", Err: err}
	case errors.Is(err, fs.ErrExist):
		return &apperr.Error{Kind: apperr.KindAlreadyExists, Message: msg + " already exists", Err: err}
	case errors.Is(err, storage.ErrOutsideRoot):
		return &apperr.Error{Kind: apperr.KindSecurityViolation, Message: msg + " is outside the workspace root", Err: err}
	default:
		return apperr.Wrap(apperr.KindUnexpected, err, "%s", msg)
	}
}
