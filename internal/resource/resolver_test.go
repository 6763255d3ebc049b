package resource

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/starford/workspaces-mcp/internal/apperr"
	"github.com/starford/workspaces-mcp/internal/models"
	"github.com/starford/workspaces-mcp/internal/repository"
	"github.com/starford/workspaces-mcp/internal/service"
	"github.com/starford/workspaces-mcp/internal/storage"
	"github.com/starford/workspaces-mcp/internal/testutil"
)

func newResolver(t *testing.T) (*Resolver, *service.WorkspaceService, *service.InstructionsService, *storage.Mem) {
	t.Helper()
	store := testutil.MemStore()
	logger := testutil.Logger()
	ws := service.NewWorkspaceService(repository.NewWorkspaceRepository(store, logger), nil, logger)
	is := service.NewInstructionsService(repository.NewInstructionsRepository(store, logger), nil, logger)
	return NewResolver(ws, is, logger), ws, is, store
}

func TestListAlwaysHasGlobal(t *testing.T) {
	r, _, _, _ := newResolver(t)
	list := r.List(context.Background())
	if len(list) != 1 || list[0].URI != GlobalURI {
		t.Errorf("list = %+v", list)
	}
}

func TestListWorkspacesAndInstructions(t *testing.T) {
	r, ws, is, _ := newResolver(t)
	ctx := context.Background()
	if _, err := ws.CreateWorkspace(ctx, "p", service.CreateWorkspaceInput{Description: "d"}); err != nil {
		t.Fatal(err)
	}
	if _, err := is.CreateSharedInstruction(ctx, "style", models.InstructionData{Content: "# Style Guide\n"}); err != nil {
		t.Fatal(err)
	}

	list := r.List(ctx)
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(list), list)
	}
	want := []Resource{
		{URI: "workspace://p", Name: "p", Description: "d", MIMEType: MIMEJSON},
		{URI: "instruction://shared/style", Name: "Style Guide", MIMEType: MIMEMarkdown},
	}
	for i, w := range want {
		if list[i] != w {
			t.Errorf("list[%d] = %+v, want %+v", i, list[i], w)
		}
	}
	if list[2].URI != GlobalURI {
		t.Errorf("last = %+v", list[2])
	}
}

type brokenWorkspaces struct{ Workspaces }

func (brokenWorkspaces) ListWorkspaces(context.Context) ([]models.WorkspaceMetadata, error) {
	return nil, apperr.New(apperr.KindUnexpected, "disk on fire")
}

type brokenInstructions struct{ Instructions }

func (brokenInstructions) ListSharedInstructions(context.Context) ([]models.SharedInstruction, error) {
	return nil, apperr.New(apperr.KindUnexpected, "disk on fire")
}

func TestListSurvivesFailingSubListing(t *testing.T) {
	_, ws, is, _ := newResolver(t)
	ctx := context.Background()
	_, _ = ws.CreateWorkspace(ctx, "p", service.CreateWorkspaceInput{})
	_, _ = is.CreateSharedInstruction(ctx, "style", models.InstructionData{Content: "x"})

	r := NewResolver(ws, brokenInstructions{is}, testutil.Logger())
	list := r.List(ctx)
	if len(list) != 2 || list[0].URI != "workspace://p" || list[1].URI != GlobalURI {
		t.Errorf("broken instructions: list = %+v", list)
	}

	r = NewResolver(brokenWorkspaces{ws}, is, testutil.Logger())
	list = r.List(ctx)
	if len(list) != 2 || list[0].URI != "instruction://shared/style" {
		t.Errorf("broken workspaces: list = %+v", list)
	}
}

func TestReadErrors(t *testing.T) {
	r, _, _, _ := newResolver(t)
	cases := []struct {
		uri  string
		kind apperr.Kind
	}{
		{"not a uri", apperr.KindInvalidURI},
		{"workspace:/p", apperr.KindInvalidURI},
		{"1abc://x", apperr.KindInvalidURI},
		{"workspace://", apperr.KindInvalidURI},
		{"http://example.com", apperr.KindUnsupportedScheme},
		{"workspace://   ", apperr.KindInvalidURI},
		{"workspace://missing", apperr.KindNotFound},
		{"workspace://bad name", apperr.KindInvalidName},
		{"instruction://other", apperr.KindInvalidInstructionPath},
		{"instruction://shared/", apperr.KindInvalidInstructionPath},
		{"instruction://shared/missing", apperr.KindNotFound},
		{"instruction://shared/GLOBAL", apperr.KindInvalidName},
	}
	for _, tc := range cases {
		_, err := r.Read(context.Background(), tc.uri)
		if got := apperr.KindOf(err); got != tc.kind {
			t.Errorf("%q: kind = %q, want %q (err %v)", tc.uri, got, tc.kind, err)
		}
	}
}

func TestReadWorkspace(t *testing.T) {
	r, ws, _, _ := newResolver(t)
	ctx := context.Background()
	if _, err := ws.CreateWorkspace(ctx, "p", service.CreateWorkspaceInput{Description: "d"}); err != nil {
		t.Fatal(err)
	}
	c, err := r.Read(ctx, "workspace://p")
	if err != nil {
		t.Fatal(err)
	}
	if c.MIMEType != MIMEJSON || c.URI != "workspace://p" {
		t.Errorf("content = %+v", c)
	}
	var meta models.WorkspaceMetadata
	if err := json.Unmarshal([]byte(c.Text), &meta); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if meta.Name != "p" || meta.Description != "d" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestReadInstructions(t *testing.T) {
	r, _, is, _ := newResolver(t)
	ctx := context.Background()

	c, err := r.Read(ctx, GlobalURI)
	if err != nil {
		t.Fatal(err)
	}
	if c.Text == "" || c.MIMEType != MIMEMarkdown {
		t.Errorf("global = %+v", c)
	}
	if _, err := is.UpdateGlobalInstructions(ctx, "X"); err != nil {
		t.Fatal(err)
	}
	c, _ = r.Read(ctx, GlobalURI)
	if c.Text != "X" {
		t.Errorf("global = %q, want X", c.Text)
	}

	if _, err := is.CreateSharedInstruction(ctx, "style", models.InstructionData{Content: "body", Description: "desc"}); err != nil {
		t.Fatal(err)
	}
	c, err = r.Read(ctx, "instruction://shared/style")
	if err != nil {
		t.Fatal(err)
	}
	if c.Text != "body" {
		t.Errorf("shared = %q, want body", c.Text)
	}
}
