package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/starford/workspaces-mcp/internal/journal"
	"github.com/starford/workspaces-mcp/internal/resource"
	"github.com/starford/workspaces-mcp/internal/service"
	"github.com/starford/workspaces-mcp/internal/tools"
)

// Deps are the components the REST mirror serves.
type Deps struct {
	Workspaces   *service.WorkspaceService
	Instructions *service.InstructionsService
	Resolver     *resource.Resolver
	Registry     *tools.Registry
	// Journal and Stream are optional.
	Journal journal.Journal
	Stream  http.Handler
	// Mu is shared with the other adapters.
	Mu     *sync.Mutex
	Logger *slog.Logger
}

// NewRouter creates a chi router with all API routes mounted.
// An empty token disables Bearer auth.
func NewRouter(d Deps, token string) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(RequestLogger(d.Logger))
	r.Use(AuthMiddleware(token))

	// Streaming and journal reads do not touch the root.
	if d.Stream != nil {
		r.Get("/stream", d.Stream.ServeHTTP)
	}
	if d.Journal != nil {
		r.Get("/events", h.RecentEvents)
		r.Get("/stats", h.ToolStats)
	}

	r.Group(func(r chi.Router) {
		r.Use(Serialize(d.Mu))

		r.Get("/resources", h.ListResources)
		r.Get("/resources/read", h.ReadResource)

		r.Get("/tools", h.ListTools)
		r.Post("/tools/{name}", h.CallTool)

		r.Get("/workspaces", h.ListWorkspaces)
		r.Get("/workspaces/{name}", h.GetWorkspace)
		r.Get("/workspaces/{name}/files/*", h.ReadWorkspaceFile)

		r.Get("/instructions/shared", h.ListSharedInstructions)
		r.Get("/instructions/shared/{name}", h.GetSharedInstruction)
		r.Put("/instructions/shared/{name}", h.UpdateSharedInstruction)
		r.Get("/instructions/global", h.GetGlobalInstructions)
	})

	return r
}
