package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/starford/workspaces-mcp/internal/apperr"
	"github.com/starford/workspaces-mcp/internal/events"
	"github.com/starford/workspaces-mcp/internal/repository"
	"github.com/starford/workspaces-mcp/internal/service"
	"github.com/starford/workspaces-mcp/internal/storage"
	"github.com/starford/workspaces-mcp/internal/testutil"
	"github.com/starford/workspaces-mcp/internal/validation"
)

type recorder struct {
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) {
	r.events = append(r.events, ev)
}

func newRegistry(t *testing.T) (*Registry, *recorder, *storage.Mem) {
	t.Helper()
	store := testutil.MemStore()
	logger := testutil.Logger()
	ws := service.NewWorkspaceService(repository.NewWorkspaceRepository(store, logger), nil, logger)
	is := service.NewInstructionsService(repository.NewInstructionsRepository(store, logger), nil, logger)

	rec := &recorder{}
	reg := NewRegistry(rec, logger)
	if err := reg.Register(Builtins(ws, is)...); err != nil {
		t.Fatal(err)
	}
	return reg, rec, store
}

func call(t *testing.T, reg *Registry, name string, args any) Result {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	return reg.Call(context.Background(), name, raw)
}

func TestBuiltinsRegistered(t *testing.T) {
	reg, _, _ := newRegistry(t)
	names := strings.Join(reg.Names(), ",")
	for _, want := range []string{
		"create_workspace", "list_workspaces", "get_workspace_info",
		"create_shared_instruction", "update_global_instructions", "list_shared_instructions",
	} {
		if !strings.Contains(names, want) {
			t.Errorf("missing tool %s in %s", want, names)
		}
	}
	if len(reg.List()) != 14 {
		t.Errorf("tool count = %d", len(reg.List()))
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry(nil, testutil.Logger())
	tool := Define("x", "", func(context.Context, NoArgs) (string, error) { return "", nil })
	if err := reg.Register(tool); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(tool); err == nil {
		t.Error("duplicate registration should fail")
	}
}

func TestUnknownToolListsNames(t *testing.T) {
	reg, rec, _ := newRegistry(t)
	res := call(t, reg, "does_not_exist", map[string]any{})
	if !res.IsError || res.Kind != apperr.KindUnknownTool {
		t.Fatalf("res = %+v", res)
	}
	for _, name := range reg.Names() {
		if !strings.Contains(res.Text, name) {
			t.Errorf("message %q does not list %s", res.Text, name)
		}
	}
	if len(rec.events) != 1 || rec.events[0].Type != events.ToolFailed {
		t.Errorf("events = %+v", rec.events)
	}
}

func TestSchemaValidation(t *testing.T) {
	reg, _, _ := newRegistry(t)
	cases := []struct {
		name string
		tool string
		args string
	}{
		{"missing required", "create_workspace", `{}`},
		{"wrong type", "create_workspace", `{"name": 42}`},
		{"unknown field", "create_workspace", `{"name": "p", "color": "red"}`},
		{"not an object", "create_workspace", `"p"`},
		{"missing content", "update_global_instructions", `{}`},
		{"delete without confirm", "delete_workspace", `{"name": "p"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := reg.Call(context.Background(), tc.tool, json.RawMessage(tc.args))
			if !res.IsError || res.Kind != apperr.KindSchemaValidationFailed {
				t.Errorf("res = %+v", res)
			}
		})
	}
}

func TestNullArgsAreEmptyObject(t *testing.T) {
	reg, _, _ := newRegistry(t)
	res := reg.Call(context.Background(), "list_workspaces", nil)
	if res.IsError || res.Text != "[]" {
		t.Errorf("res = %+v", res)
	}
}

func TestWorkspaceToolsRoundTrip(t *testing.T) {
	reg, rec, _ := newRegistry(t)

	res := call(t, reg, "create_workspace", map[string]any{"name": "p", "description": "d"})
	if res.IsError {
		t.Fatalf("create: %s", res.Text)
	}
	res = call(t, reg, "create_workspace", map[string]any{"name": "p"})
	if res.Kind != apperr.KindAlreadyExists {
		t.Errorf("second create = %+v", res)
	}

	res = call(t, reg, "get_workspace_info", map[string]any{"name": "p"})
	if res.IsError {
		t.Fatalf("info: %s", res.Text)
	}
	var info struct {
		Description string `json:"description"`
		FileCount   int    `json:"fileCount"`
	}
	if err := json.Unmarshal([]byte(res.Text), &info); err != nil {
		t.Fatal(err)
	}
	if info.Description != "d" || info.FileCount != 1 {
		t.Errorf("info = %+v", info)
	}

	res = call(t, reg, "write_workspace_file", map[string]any{"workspace": "p", "path": "../x", "content": "x"})
	if res.Kind != apperr.KindSecurityViolation {
		t.Errorf("escape = %+v", res)
	}
	res = call(t, reg, "write_workspace_file", map[string]any{"workspace": "p", "path": "notes.md", "content": ""})
	if res.IsError {
		t.Errorf("write = %+v", res)
	}
	res = call(t, reg, "delete_workspace", map[string]any{"name": "p", "confirm": true})
	if res.IsError {
		t.Errorf("delete = %+v", res)
	}

	var kinds []string
	for _, ev := range rec.events {
		kinds = append(kinds, string(ev.Type))
	}
	want := "tool.executed,tool.failed,tool.executed,tool.failed,tool.executed,tool.executed"
	if got := strings.Join(kinds, ","); got != want {
		t.Errorf("events = %s", got)
	}
	if rec.events[1].Data["kind"] != string(apperr.KindAlreadyExists) {
		t.Errorf("failed event data = %+v", rec.events[1].Data)
	}
}

func TestInstructionTools(t *testing.T) {
	reg, _, store := newRegistry(t)

	res := call(t, reg, "create_shared_instruction", map[string]any{"name": "GLOBAL", "content": "x"})
	if res.Kind != apperr.KindInvalidName {
		t.Errorf("GLOBAL = %+v", res)
	}
	res = call(t, reg, "create_shared_instruction", map[string]any{"name": "style", "content": "be nice", "description": "tone"})
	if res.IsError {
		t.Fatalf("create = %s", res.Text)
	}
	res = call(t, reg, "list_shared_instructions", map[string]any{})
	if res.IsError || !strings.Contains(res.Text, `"name": "style"`) || !strings.Contains(res.Text, `"description": "tone"`) {
		t.Errorf("list = %s", res.Text)
	}
	res = call(t, reg, "update_shared_instruction", map[string]any{"name": "style", "content": "be kind"})
	if res.IsError {
		t.Fatalf("update = %s", res.Text)
	}
	res = call(t, reg, "get_shared_instruction", map[string]any{"name": "style"})
	if res.Text != "be kind" {
		t.Errorf("get = %+v", res)
	}

	res = call(t, reg, "update_global_instructions", map[string]any{"content": "X"})
	if res.IsError {
		t.Fatal(res.Text)
	}
	big := strings.Repeat("a", validation.MaxContentLength+1)
	res = call(t, reg, "update_global_instructions", map[string]any{"content": big})
	if res.Kind != apperr.KindContentTooLarge {
		t.Errorf("big = %+v", res)
	}
	raw, _ := store.Read("SHARED_INSTRUCTIONS/GLOBAL.md")
	if string(raw) != "X" {
		t.Errorf("global on disk = %q", raw)
	}
	res = call(t, reg, "get_global_instructions", map[string]any{})
	if res.Text != "X" {
		t.Errorf("global = %+v", res)
	}
}

type point struct{ X, Y int }

func TestPanicsBecomeFailures(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "boom", "boom"},
		{"error", errors.New("bad thing"), "bad thing"},
		{"number", 42, "42"},
		{"object", point{1, 2}, `{"X":1,"Y":2}`},
		{"map", map[string]any{"a": true}, `{"a":true}`},
		{"nil", nil, "null"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry(nil, testutil.Logger())
			v := tc.value
			_ = reg.Register(Define("explode", "", func(context.Context, NoArgs) (string, error) {
				panic(v)
			}))
			res := reg.Call(context.Background(), "explode", nil)
			if !res.IsError || res.Kind != apperr.KindUnexpected {
				t.Fatalf("res = %+v", res)
			}
			if res.Text != tc.want {
				t.Errorf("text = %q, want %q", res.Text, tc.want)
			}
		})
	}
}

func TestPlainErrorsAreUnexpected(t *testing.T) {
	reg := NewRegistry(nil, testutil.Logger())
	_ = reg.Register(Define("fail", "", func(context.Context, NoArgs) (string, error) {
		return "", errors.New("disk full")
	}))
	res := reg.Call(context.Background(), "fail", nil)
	if res.Kind != apperr.KindUnexpected || res.Text != "disk full" {
		t.Errorf("res = %+v", res)
	}
}

func TestInputSchema(t *testing.T) {
	reg, _, _ := newRegistry(t)
	for _, tool := range reg.List() {
		var schema struct {
			Type                 string         `json:"type"`
			Properties           map[string]any `json:"properties"`
			Required             []string       `json:"required"`
			AdditionalProperties *bool          `json:"additionalProperties"`
		}
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			t.Fatalf("%s: %v", tool.Name, err)
		}
		if schema.Type != "object" {
			t.Errorf("%s: type = %q", tool.Name, schema.Type)
		}
		if schema.AdditionalProperties == nil || *schema.AdditionalProperties {
			t.Errorf("%s: additionalProperties should be false", tool.Name)
		}
		if tool.Name == "create_workspace" {
			if len(schema.Required) != 1 || schema.Required[0] != "name" {
				t.Errorf("required = %v", schema.Required)
			}
			if _, ok := schema.Properties["description"]; !ok {
				t.Errorf("properties = %v", schema.Properties)
			}
		}
	}
}
