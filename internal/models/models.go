// Package models defines the domain types for workspaces and instructions.
package models

import "time"

// WorkspaceMetadata is the persisted and derived metadata of a workspace.
// Path is always derived from the root and Name.
type WorkspaceMetadata struct {
	Name            string    `json:"name"`
	Path            string    `json:"path"`
	Description     string    `json:"description,omitempty"`
	Template        string    `json:"template,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	ModifiedAt      time.Time `json:"modifiedAt"`
	HasInstructions bool      `json:"hasInstructions"`
	// Managed is false for directories without a metadata file.
	Managed bool `json:"managed"`
}

// WorkspaceFile is one entry of a workspace directory scan.
type WorkspaceFile struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// WorkspaceInfo is metadata plus a fresh directory scan.
type WorkspaceInfo struct {
	WorkspaceMetadata
	FileCount int             `json:"fileCount"`
	Size      int64           `json:"size"`
	Files     []WorkspaceFile `json:"files"`
}

// SharedInstruction is a named reusable markdown document.
type SharedInstruction struct {
	Name        string    `json:"name"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags,omitempty"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"createdAt"`
	ModifiedAt  time.Time `json:"modifiedAt"`
}

// InstructionData is the writable part of a shared instruction.
type InstructionData struct {
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
}

// GlobalInstructions is the singleton instruction document.
type GlobalInstructions struct {
	Content    string    `json:"content"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
