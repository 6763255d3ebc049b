package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/starford/workspaces-mcp/internal/apperr"
	"github.com/starford/workspaces-mcp/internal/events"
	"github.com/starford/workspaces-mcp/internal/service"
)

// Result is the outcome of a tool call. Failures are results too; Call
// never returns an error.
type Result struct {
	Text    string
	IsError bool
	Kind    apperr.Kind
}

// Registry maps tool names to tools and dispatches calls.
type Registry struct {
	tools  map[string]Tool
	order  []string
	pub    service.Publisher
	logger *slog.Logger
}

// NewRegistry creates an empty registry. pub may be nil.
func NewRegistry(pub service.Publisher, logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		pub:    pub,
		logger: logger,
	}
}

// Register adds tools. Names must be unique.
func (r *Registry) Register(tools ...Tool) error {
	for _, t := range tools {
		if t.Name == "" {
			return errors.New("tools: empty tool name")
		}
		if _, dup := r.tools[t.Name]; dup {
			return fmt.Errorf("tools: duplicate tool %q", t.Name)
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return nil
}

// List returns the registered tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the registered tool names sorted.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Call looks up name, validates args against the tool's schema and runs it.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) Result {
	start := time.Now()
	res := r.call(ctx, name, args)

	data := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
	typ := events.ToolExecuted
	if res.IsError {
		typ = events.ToolFailed
		data["kind"] = string(res.Kind)
		data["error"] = res.Text
	}
	r.publish(ctx, events.New(typ, name, data))
	return res
}

func (r *Registry) call(ctx context.Context, name string, raw json.RawMessage) Result {
	t, ok := r.tools[name]
	if !ok {
		return failure(apperr.New(apperr.KindUnknownTool,
			"unknown tool %q; available tools: %s", name, strings.Join(r.Names(), ", ")))
	}

	args, err := t.decode(raw)
	if err != nil {
		return failure(err)
	}

	text, err := r.execute(ctx, t, args)
	if err != nil {
		return failure(err)
	}
	return Result{Text: text}
}

func (r *Registry) execute(ctx context.Context, t Tool, args any) (text string, err error) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("tool panicked",
				slog.String("tool", t.Name),
				slog.String("panic", describePanic(v)))
			err = apperr.New(apperr.KindUnexpected, "%s", describePanic(v))
		}
	}()
	return t.execute(ctx, args)
}

func (r *Registry) publish(ctx context.Context, ev events.Event) {
	if r.pub == nil {
		return
	}
	defer func() {
		if v := recover(); v != nil {
			r.logger.Warn("publish tool event failed", slog.String("error", describePanic(v)))
		}
	}()
	r.pub.Publish(ctx, ev)
}

func failure(err error) Result {
	ae := apperr.Unexpected(err)
	return Result{Text: ae.Error(), IsError: true, Kind: ae.Kind}
}

// describePanic renders a recovered value verbatim: errors and strings by
// their text, nil as "null", anything else as JSON.
func describePanic(v any) string {
	var nilPanic *runtime.PanicNilError
	switch x := v.(type) {
	case nil:
		return "null"
	case error:
		if errors.As(x, &nilPanic) {
			return "null"
		}
		return x.Error()
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

// Builtins returns every built-in tool.
func Builtins(workspaces *service.WorkspaceService, instructions *service.InstructionsService) []Tool {
	return append(WorkspaceTools(workspaces), InstructionTools(instructions)...)
}
