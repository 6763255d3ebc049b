// Package events is the in-process publish/subscribe channel between the
// services and their listeners.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	WorkspaceCreated     Type = "workspace.created"
	WorkspaceUpdated     Type = "workspace.updated"
	WorkspaceDeleted     Type = "workspace.deleted"
	WorkspaceFileWritten Type = "workspace.file_written"

	InstructionCreated       Type = "instruction.created"
	InstructionUpdated       Type = "instruction.updated"
	InstructionDeleted       Type = "instruction.deleted"
	GlobalInstructionUpdated Type = "instruction.global_updated"

	ToolExecuted Type = "tool.executed"
	ToolFailed   Type = "tool.failed"

	// FSChanged is published by the watcher for edits made outside the server.
	FSChanged Type = "fs.changed"
)

// ChangesResources reports whether events of this type can change the
// resource listing.
func (t Type) ChangesResources() bool {
	switch t {
	case WorkspaceCreated, WorkspaceUpdated, WorkspaceDeleted,
		InstructionCreated, InstructionUpdated, InstructionDeleted,
		GlobalInstructionUpdated, FSChanged:
		return true
	}
	return false
}

// Event is one published occurrence. Subject is the workspace, instruction
// or tool name the event is about.
type Event struct {
	ID      string         `json:"id"`
	Type    Type           `json:"type"`
	Subject string         `json:"subject"`
	Data    map[string]any `json:"data,omitempty"`
	At      time.Time      `json:"at"`
}

// New returns an event stamped with a fresh ID and the current time.
func New(typ Type, subject string, data map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    typ,
		Subject: subject,
		Data:    data,
		At:      time.Now().UTC(),
	}
}
