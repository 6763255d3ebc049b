package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	return fs
}

// providers returns every Provider implementation under test.
func providers(t *testing.T) map[string]Provider {
	return map[string]Provider{
		"fs":  tempRoot(t),
		"mem": NewMem(nil),
	}
}

func TestWriteAndRead(t *testing.T) {
	for name, s := range providers(t) {
		t.Run(name, func(t *testing.T) {
			content := []byte("# Hello\nWorld\n")
			if err := s.Write("note.md", content); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := s.Read("note.md")
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if string(got) != string(content) {
				t.Errorf("content mismatch: got %q", got)
			}
		})
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	for name, s := range providers(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
				t.Fatalf("Write: %v", err)
			}
			ok, err := s.Exists("a/b")
			if err != nil || !ok {
				t.Fatalf("Exists(a/b) = %v, %v", ok, err)
			}
			info, err := s.Stat("a/b")
			if err != nil || !info.IsDir {
				t.Errorf("Stat(a/b) = %+v, %v", info, err)
			}
		})
	}
}

func TestReadMissing(t *testing.T) {
	for name, s := range providers(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Read("nope.md"); !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("Read missing = %v, want ErrNotExist", err)
			}
			if _, err := s.Stat("nope"); !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("Stat missing = %v, want ErrNotExist", err)
			}
		})
	}
}

func TestCreateExclusive(t *testing.T) {
	for name, s := range providers(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.CreateExclusive("x/one.md", []byte("first")); err != nil {
				t.Fatalf("CreateExclusive: %v", err)
			}
			err := s.CreateExclusive("x/one.md", []byte("second"))
			if !errors.Is(err, fs.ErrExist) {
				t.Fatalf("second CreateExclusive = %v, want ErrExist", err)
			}
			got, _ := s.Read("x/one.md")
			if string(got) != "first" {
				t.Errorf("content = %q, want first", got)
			}
		})
	}
}

func TestMkdirExclusive(t *testing.T) {
	for name, s := range providers(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Mkdir("ws"); err != nil {
				t.Fatalf("Mkdir: %v", err)
			}
			if err := s.Mkdir("ws"); !errors.Is(err, fs.ErrExist) {
				t.Errorf("second Mkdir = %v, want ErrExist", err)
			}
			if err := s.Mkdir("missing/child"); !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("Mkdir without parent = %v, want ErrNotExist", err)
			}
		})
	}
}

func TestDeleteRecursive(t *testing.T) {
	for name, s := range providers(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.Write("ws/a.md", []byte("a"))
			_ = s.Write("ws/sub/b.md", []byte("b"))
			if err := s.Delete("ws"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if ok, _ := s.Exists("ws"); ok {
				t.Error("directory still exists")
			}
			if ok, _ := s.Exists("ws/sub/b.md"); ok {
				t.Error("nested file still exists")
			}
			if err := s.Delete("ws"); !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("second Delete = %v, want ErrNotExist", err)
			}
			if err := s.Delete(""); !errors.Is(err, ErrOutsideRoot) {
				t.Errorf("Delete root = %v, want ErrOutsideRoot", err)
			}
		})
	}
}

func TestReadDirAndWalk(t *testing.T) {
	for name, s := range providers(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.Write("b/file.md", []byte("12345"))
			_ = s.Write("a/x.md", []byte("x"))
			_ = s.Write("a/deep/y.txt", []byte("yy"))
			_ = s.Write("top.md", []byte("t"))

			entries, err := s.ReadDir("")
			if err != nil {
				t.Fatalf("ReadDir: %v", err)
			}
			var names []string
			for _, e := range entries {
				names = append(names, e.Name)
			}
			if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "top.md" {
				t.Errorf("ReadDir names = %v", names)
			}
			if !entries[0].IsDir || entries[2].IsDir {
				t.Errorf("IsDir flags wrong: %+v", entries)
			}

			files, err := s.Walk("a")
			if err != nil {
				t.Fatalf("Walk: %v", err)
			}
			if len(files) != 2 || files[0].Path != "deep/y.txt" || files[1].Path != "x.md" {
				t.Errorf("Walk = %+v", files)
			}
			if files[0].Size != 2 {
				t.Errorf("size = %d, want 2", files[0].Size)
			}
		})
	}
}

func TestTraversalBlocked(t *testing.T) {
	for name, s := range providers(t) {
		t.Run(name, func(t *testing.T) {
			cases := []string{
				"../../etc/passwd",
				"../outside.md",
				"/etc/shadow",
				"a/../../escape",
			}
			for _, p := range cases {
				if _, err := s.Read(p); !errors.Is(err, ErrOutsideRoot) {
					t.Errorf("Read(%q) = %v, want ErrOutsideRoot", p, err)
				}
				if err := s.Write(p, []byte("x")); !errors.Is(err, ErrOutsideRoot) {
					t.Errorf("Write(%q) = %v, want ErrOutsideRoot", p, err)
				}
				if err := s.Delete(p); !errors.Is(err, ErrOutsideRoot) {
					t.Errorf("Delete(%q) = %v, want ErrOutsideRoot", p, err)
				}
			}
		})
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempRoot(t)
	original := []byte("original content")
	_ = s.Write("atomic.md", original)

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	_ = s.CreateExclusive("fresh.md", []byte("new"))

	matches, _ := filepath.Glob(filepath.Join(s.root, ".wsmcp-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestWalkSkipsSymlinks(t *testing.T) {
	s := tempRoot(t)
	outside := t.TempDir()
	_ = os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0o644)
	_ = s.Write("ws/real.md", []byte("r"))
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(s.root, "ws", "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	files, err := s.Walk("ws")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 1 || files[0].Path != "real.md" {
		t.Errorf("Walk = %+v, want only real.md", files)
	}
}

func TestSymlinkEscapeBlocked(t *testing.T) {
	s := tempRoot(t)
	outside := t.TempDir()
	_ = os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("top secret"), 0o644)
	_ = s.Write("ws/real.md", []byte("r"))
	if err := os.Symlink(outside, filepath.Join(s.root, "ws", "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if data, err := s.Read("ws/link/secret.txt"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Read = %q, %v, want ErrOutsideRoot", data, err)
	}
	if _, err := s.Stat("ws/link/secret.txt"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Stat err = %v, want ErrOutsideRoot", err)
	}
	if err := s.Write("ws/link/planted.txt", []byte("x")); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Write err = %v, want ErrOutsideRoot", err)
	}
	if err := s.CreateExclusive("ws/link/fresh.txt", []byte("x")); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("CreateExclusive err = %v, want ErrOutsideRoot", err)
	}
	if err := s.Mkdir("ws/link/sub"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Mkdir err = %v, want ErrOutsideRoot", err)
	}
	if _, err := s.ReadDir("ws/link"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("ReadDir err = %v, want ErrOutsideRoot", err)
	}
	for _, name := range []string{"planted.txt", "fresh.txt", "sub"} {
		if _, err := os.Lstat(filepath.Join(outside, name)); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("%s was created outside the root", name)
		}
	}

	if err := s.Delete("ws/link"); err != nil {
		t.Fatalf("Delete(link): %v", err)
	}
	if _, err := os.Stat(filepath.Join(outside, "secret.txt")); err != nil {
		t.Errorf("deleting the link must keep its target: %v", err)
	}
}

func TestSymlinkInsideRootFollowed(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("ws/real.md", []byte("r"))
	if err := os.Symlink("real.md", filepath.Join(s.root, "ws", "alias.md")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	got, err := s.Read("ws/alias.md")
	if err != nil || string(got) != "r" {
		t.Errorf("Read = %q, %v", got, err)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "wsmcp-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
