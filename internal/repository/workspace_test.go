package repository

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/workspaces-mcp/internal/apperr"
	"github.com/starford/workspaces-mcp/internal/storage"
	"github.com/starford/workspaces-mcp/internal/testutil"
)

func newWorkspaceRepo(t *testing.T) (*WorkspaceRepository, *storage.Mem) {
	t.Helper()
	store := testutil.MemStore()
	repo := NewWorkspaceRepository(store, testutil.Logger())
	repo.now = testutil.SteppingClock()
	return repo, store
}

func TestCreateThenExists(t *testing.T) {
	repo, _ := newWorkspaceRepo(t)

	if ok, _ := repo.Exists("proj"); ok {
		t.Fatal("workspace should not exist yet")
	}
	meta, err := repo.Create("proj", CreateOptions{Description: "d", Template: "go"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !meta.Managed || meta.Description != "d" || meta.Template != "go" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Path != "/mem/proj" {
		t.Errorf("path = %q", meta.Path)
	}
	if ok, _ := repo.Exists("proj"); !ok {
		t.Error("workspace should exist after Create")
	}

	if err := repo.Delete("proj"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := repo.Exists("proj"); ok {
		t.Error("workspace should not exist after Delete")
	}
}

func TestCreateWritesReadmeAndMetadata(t *testing.T) {
	repo, store := newWorkspaceRepo(t)
	if _, err := repo.Create("proj", CreateOptions{Description: "My project"}); err != nil {
		t.Fatal(err)
	}
	readme, err := store.Read("proj/README.md")
	if err != nil {
		t.Fatalf("README missing: %v", err)
	}
	if !strings.HasPrefix(string(readme), "# proj\n") || !strings.Contains(string(readme), "My project") {
		t.Errorf("readme = %q", readme)
	}
	raw, err := store.Read("proj/.workspace.json")
	if err != nil {
		t.Fatalf("metadata missing: %v", err)
	}
	for _, key := range []string{`"name": "proj"`, `"description": "My project"`, `"createdAt"`, `"modifiedAt"`} {
		if !strings.Contains(string(raw), key) {
			t.Errorf("metadata missing %s: %s", key, raw)
		}
	}
	if strings.Contains(string(raw), `"template"`) {
		t.Errorf("empty template should be omitted: %s", raw)
	}
}

func TestCreateTwiceAlreadyExists(t *testing.T) {
	repo, _ := newWorkspaceRepo(t)
	if _, err := repo.Create("proj", CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	_, err := repo.Create("proj", CreateOptions{Description: "other"})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want AlreadyExists", err)
	}
}

func TestListSortedAndFiltered(t *testing.T) {
	repo, store := newWorkspaceRepo(t)
	for _, name := range []string{"beta", "alpha", "zebra", "Zulu"} {
		if _, err := repo.Create(name, CreateOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	_ = store.Write("SHARED_INSTRUCTIONS/GLOBAL.md", []byte("g"))
	_ = store.Mkdir(".hidden")
	_ = store.Write("loose.txt", []byte("x"))

	list, err := repo.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, m := range list {
		names = append(names, m.Name)
	}
	want := "Zulu,alpha,beta,zebra"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("names = %s, want %s", got, want)
	}
}

func TestListIncludesLegacyDirectories(t *testing.T) {
	repo, store := newWorkspaceRepo(t)
	if err := store.Write("legacy/notes.md", []byte("hi")); err != nil {
		t.Fatal(err)
	}
	list, err := repo.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	m := list[0]
	if m.Name != "legacy" || m.Managed || m.HasInstructions || m.Description != "" {
		t.Errorf("fallback = %+v", m)
	}
	if m.CreatedAt.IsZero() {
		t.Error("fallback createdAt should come from the directory")
	}
}

func TestListSkipsCorruptMetadata(t *testing.T) {
	repo, store := newWorkspaceRepo(t)
	if _, err := repo.Create("good", CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	_ = store.Write("bad/.workspace.json", []byte("{not json"))

	list, err := repo.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "good" {
		t.Errorf("list = %+v", list)
	}
}

func TestGetMetadata(t *testing.T) {
	repo, store := newWorkspaceRepo(t)

	if _, err := repo.GetMetadata("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: err = %v, want NotFound", err)
	}

	_ = store.Write("afile", []byte("x"))
	if _, err := repo.GetMetadata("afile"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("file: err = %v, want NotFound", err)
	}

	_ = store.Write("bad/.workspace.json", []byte("{not json"))
	if _, err := repo.GetMetadata("bad"); !errors.Is(err, apperr.ErrCorruptMetadata) {
		t.Errorf("corrupt: err = %v, want CorruptMetadata", err)
	}

	if _, err := repo.Create("proj", CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	_ = store.Write("proj/INSTRUCTIONS.md", []byte("do things"))
	meta, err := repo.GetMetadata("proj")
	if err != nil {
		t.Fatal(err)
	}
	if !meta.HasInstructions {
		t.Error("hasInstructions should follow INSTRUCTIONS.md")
	}
}

func TestUpdateMetadata(t *testing.T) {
	repo, _ := newWorkspaceRepo(t)
	created, err := repo.Create("proj", CreateOptions{Description: "old", Template: "go"})
	if err != nil {
		t.Fatal(err)
	}
	desc := "new"
	updated, err := repo.UpdateMetadata("proj", MetadataPatch{Description: &desc})
	if err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	if updated.Description != "new" || updated.Template != "go" {
		t.Errorf("updated = %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("createdAt must not change")
	}
	if !updated.ModifiedAt.After(created.ModifiedAt) {
		t.Error("modifiedAt must advance")
	}

	reread, _ := repo.GetMetadata("proj")
	if reread.Description != "new" {
		t.Errorf("persisted description = %q", reread.Description)
	}
}

func TestUpdateMetadataAdoptsLegacy(t *testing.T) {
	repo, store := newWorkspaceRepo(t)
	_ = store.Write("legacy/a.txt", []byte("a"))
	desc := "adopted"
	meta, err := repo.UpdateMetadata("legacy", MetadataPatch{Description: &desc})
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Managed {
		t.Error("updated legacy workspace should become managed")
	}
	if ok, _ := store.Exists("legacy/.workspace.json"); !ok {
		t.Error("metadata file should be written")
	}
}

func TestDeleteMissing(t *testing.T) {
	repo, _ := newWorkspaceRepo(t)
	if err := repo.Delete("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestScanExcludesMetadata(t *testing.T) {
	repo, store := newWorkspaceRepo(t)
	if _, err := repo.Create("proj", CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	_ = store.Write("proj/src/main.go", []byte("package main\n"))

	files, total, err := repo.Scan("proj")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %+v, want README.md and src/main.go", files)
	}
	if files[0].Path != "README.md" || files[1].Path != "src/main.go" {
		t.Errorf("paths = %s, %s", files[0].Path, files[1].Path)
	}
	if total != files[0].Size+files[1].Size {
		t.Errorf("total = %d", total)
	}

	if _, _, err := repo.Scan("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestReadWriteFile(t *testing.T) {
	repo, _ := newWorkspaceRepo(t)
	if err := repo.WriteFile("missing", "a.md", []byte("x")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("write to missing workspace: err = %v", err)
	}
	if _, err := repo.Create("proj", CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := repo.WriteFile("proj", "docs/a.md", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	data, err := repo.ReadFile("proj", "docs/a.md")
	if err != nil || string(data) != "hello" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
	if _, err := repo.ReadFile("proj", "nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestFSBackedCreate(t *testing.T) {
	root, store := testutil.TestRoot(t)
	repo := NewWorkspaceRepository(store, testutil.Logger())
	meta, err := repo.Create("proj", CreateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if meta.Path != filepath.Join(root, "proj") {
		t.Errorf("path = %q, want under %q", meta.Path, root)
	}
	if _, err := repo.Create("proj", CreateOptions{}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want AlreadyExists", err)
	}
}
