package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const tempPrefix = ".wsmcp-tmp-"

// FS implements Provider backed by the local file system. Every operation
// goes through an os.Root, so symlinks cannot lead outside the root.
type FS struct {
	root string // absolute path to the workspace root
	dir  *os.Root
}

var _ Provider = (*FS)(nil)

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist. Close releases the root handle.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	dir, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open root: %w", err)
	}
	return &FS{root: abs, dir: dir}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string { return f.root }

// Close releases the underlying root handle.
func (f *FS) Close() error { return f.dir.Close() }

// local cleans a root-relative path and rejects lexical escapes.
// The empty path names the root itself and maps to ".".
func local(rel string) (string, error) {
	if rel == "" {
		return ".", nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) || !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return cleaned, nil
}

// wrap annotates err, reporting symlink escapes caught by os.Root as
// ErrOutsideRoot.
func wrap(op, rel string, err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) && pe.Err != nil && pe.Err.Error() == "path escapes from parent" {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return fmt.Errorf("storage: %s %s: %w", op, rel, err)
}

func toInfo(rel string, info fs.FileInfo) FileInfo {
	return FileInfo{
		Path:    filepath.ToSlash(rel),
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

// Exists reports whether path is present.
func (f *FS) Exists(p string) (bool, error) {
	name, err := local(p)
	if err != nil {
		return false, err
	}
	if _, err := f.dir.Stat(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, wrap("stat", p, err)
	}
	return true, nil
}

// Stat returns metadata for path.
func (f *FS) Stat(p string) (FileInfo, error) {
	name, err := local(p)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := f.dir.Stat(name)
	if err != nil {
		return FileInfo{}, wrap("stat", p, err)
	}
	return toInfo(p, info), nil
}

// Read returns the raw bytes of a file.
func (f *FS) Read(p string) ([]byte, error) {
	name, err := local(p)
	if err != nil {
		return nil, err
	}
	data, err := f.dir.ReadFile(name)
	if err != nil {
		return nil, wrap("read", p, err)
	}
	return data, nil
}

// writeTemp writes content to a synced temp file next to name and returns
// the temp file's root-relative name.
func (f *FS) writeTemp(name string, content []byte) (string, error) {
	dir := filepath.Dir(name)
	if dir != "." {
		if err := f.dir.MkdirAll(dir, 0o755); err != nil {
			return "", wrap("mkdir", filepath.ToSlash(dir), err)
		}
	}

	tmpName := filepath.Join(dir, tempPrefix+uuid.NewString())
	tmp, err := f.dir.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", wrap("create temp in", filepath.ToSlash(dir), err)
	}

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = f.dir.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return "", fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close temp: %w", err)
	}
	success = true
	return tmpName, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(p string, content []byte) error {
	name, err := local(p)
	if err != nil {
		return err
	}
	tmpName, err := f.writeTemp(name, content)
	if err != nil {
		return err
	}
	if err := f.dir.Rename(tmpName, name); err != nil {
		_ = f.dir.Remove(tmpName)
		return wrap("rename", p, err)
	}
	return nil
}

// CreateExclusive writes a complete temp file and hard-links it into place,
// so the target either appears fully written or not at all.
func (f *FS) CreateExclusive(p string, content []byte) error {
	name, err := local(p)
	if err != nil {
		return err
	}
	tmpName, err := f.writeTemp(name, content)
	if err != nil {
		return err
	}
	defer f.dir.Remove(tmpName)
	if err := f.dir.Link(tmpName, name); err != nil {
		return wrap("create", p, err)
	}
	return nil
}

// Mkdir creates a single directory; its parent must exist.
func (f *FS) Mkdir(p string) error {
	name, err := local(p)
	if err != nil {
		return err
	}
	if err := f.dir.Mkdir(name, 0o755); err != nil {
		return wrap("mkdir", p, err)
	}
	return nil
}

// fsName converts a root-relative OS path to an io/fs path.
func fsName(name string) string {
	return path.Clean(filepath.ToSlash(name))
}

// ReadDir lists the direct children of dir, sorted by name.
func (f *FS) ReadDir(dir string) ([]FileInfo, error) {
	name, err := local(dir)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(f.dir.FS(), fsName(name))
	if err != nil {
		return nil, wrap("readdir", dir, err)
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, wrap("readdir", dir, err)
		}
		out = append(out, toInfo(e.Name(), info))
	}
	return out, nil
}

// Walk returns every regular file under dir, sorted by relative path.
// Symlinks are not followed.
func (f *FS) Walk(dir string) ([]FileInfo, error) {
	name, err := local(dir)
	if err != nil {
		return nil, err
	}
	base := fsName(name)
	var out []FileInfo
	err = fs.WalkDir(f.dir.FS(), base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel := p
		if base != "." {
			rel = strings.TrimPrefix(p, base+"/")
		}
		out = append(out, toInfo(rel, info))
		return nil
	})
	if err != nil {
		return nil, wrap("walk", dir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Delete removes a file, or a directory and everything below it. A symlink
// is removed itself; its target is left alone.
func (f *FS) Delete(p string) error {
	name, err := local(p)
	if err != nil {
		return err
	}
	if name == "." {
		return fmt.Errorf("%w: refusing to delete root", ErrOutsideRoot)
	}
	if _, err := f.dir.Lstat(name); err != nil {
		return wrap("delete", p, err)
	}
	if err := f.dir.RemoveAll(name); err != nil {
		return wrap("delete", p, err)
	}
	return nil
}
