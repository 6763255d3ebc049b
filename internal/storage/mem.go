package storage

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

type memFile struct {
	data    []byte
	modTime time.Time
}

// Mem is an in-memory Provider with the same path rules as FS.
// It is deterministic when given a fixed clock.
type Mem struct {
	mu    sync.Mutex
	now   func() time.Time
	files map[string]memFile
	dirs  map[string]time.Time
}

var _ Provider = (*Mem)(nil)

// NewMem returns an empty in-memory provider. A nil clock uses time.Now.
func NewMem(now func() time.Time) *Mem {
	if now == nil {
		now = time.Now
	}
	return &Mem{
		now:   now,
		files: make(map[string]memFile),
		dirs:  map[string]time.Time{".": now()},
	}
}

// Root returns a fixed pseudo root.
func (m *Mem) Root() string { return "/mem" }

func (m *Mem) clean(rel string) (string, error) {
	if rel == "" {
		return ".", nil
	}
	if strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: absolute path %s", ErrOutsideRoot, rel)
	}
	p := path.Clean(rel)
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return p, nil
}

func (m *Mem) mkdirAll(p string) error {
	for cur := p; cur != "."; cur = path.Dir(cur) {
		if _, isFile := m.files[cur]; isFile {
			return fmt.Errorf("storage: mkdir %s: not a directory", cur)
		}
	}
	for cur := p; cur != "."; cur = path.Dir(cur) {
		if _, ok := m.dirs[cur]; !ok {
			m.dirs[cur] = m.now()
		}
	}
	return nil
}

func (m *Mem) isTaken(p string) bool {
	_, isFile := m.files[p]
	_, isDir := m.dirs[p]
	return isFile || isDir
}

// Exists reports whether path is present.
func (m *Mem) Exists(p string) (bool, error) {
	c, err := m.clean(p)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isTaken(c), nil
}

// Stat returns metadata for path.
func (m *Mem) Stat(p string) (FileInfo, error) {
	c, err := m.clean(p)
	if err != nil {
		return FileInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[c]; ok {
		return FileInfo{Path: p, Name: path.Base(c), Size: int64(len(f.data)), ModTime: f.modTime}, nil
	}
	if mod, ok := m.dirs[c]; ok {
		return FileInfo{Path: p, Name: path.Base(c), IsDir: true, ModTime: mod}, nil
	}
	return FileInfo{}, fmt.Errorf("storage: stat %s: %w", p, fs.ErrNotExist)
}

// Read returns a copy of the file contents.
func (m *Mem) Read(p string) ([]byte, error) {
	c, err := m.clean(p)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[c]
	if !ok {
		return nil, fmt.Errorf("storage: read %s: %w", p, fs.ErrNotExist)
	}
	return append([]byte(nil), f.data...), nil
}

// Write replaces the file at path, creating parents.
func (m *Mem) Write(p string, content []byte) error {
	c, err := m.clean(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, isDir := m.dirs[c]; isDir {
		return fmt.Errorf("storage: write %s: is a directory", p)
	}
	if err := m.mkdirAll(path.Dir(c)); err != nil {
		return err
	}
	m.files[c] = memFile{data: append([]byte(nil), content...), modTime: m.now()}
	return nil
}

// CreateExclusive writes a new file or fails with fs.ErrExist.
func (m *Mem) CreateExclusive(p string, content []byte) error {
	c, err := m.clean(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isTaken(c) {
		return fmt.Errorf("storage: create %s: %w", p, fs.ErrExist)
	}
	if err := m.mkdirAll(path.Dir(c)); err != nil {
		return err
	}
	m.files[c] = memFile{data: append([]byte(nil), content...), modTime: m.now()}
	return nil
}

// Mkdir creates a single directory whose parent must exist.
func (m *Mem) Mkdir(p string) error {
	c, err := m.clean(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isTaken(c) {
		return fmt.Errorf("storage: mkdir %s: %w", p, fs.ErrExist)
	}
	if _, ok := m.dirs[path.Dir(c)]; !ok {
		return fmt.Errorf("storage: mkdir %s: %w", p, fs.ErrNotExist)
	}
	m.dirs[c] = m.now()
	return nil
}

// children returns the names of the direct children of dir c.
func (m *Mem) children(c string) map[string]bool {
	out := make(map[string]bool)
	for d := range m.dirs {
		if d != "." && path.Dir(d) == c {
			out[path.Base(d)] = true
		}
	}
	for f := range m.files {
		if path.Dir(f) == c {
			out[path.Base(f)] = false
		}
	}
	return out
}

// ReadDir lists the direct children of dir, sorted by name.
func (m *Mem) ReadDir(dir string) ([]FileInfo, error) {
	c, err := m.clean(dir)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dirs[c]; !ok {
		return nil, fmt.Errorf("storage: readdir %s: %w", dir, fs.ErrNotExist)
	}
	var out []FileInfo
	for name, isDir := range m.children(c) {
		full := path.Join(c, name)
		info := FileInfo{Path: name, Name: name, IsDir: isDir}
		if isDir {
			info.ModTime = m.dirs[full]
		} else {
			f := m.files[full]
			info.Size = int64(len(f.data))
			info.ModTime = f.modTime
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Walk returns every file under dir, sorted by relative path.
func (m *Mem) Walk(dir string) ([]FileInfo, error) {
	c, err := m.clean(dir)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dirs[c]; !ok {
		return nil, fmt.Errorf("storage: walk %s: %w", dir, fs.ErrNotExist)
	}
	prefix := c + "/"
	if c == "." {
		prefix = ""
	}
	var out []FileInfo
	for p, f := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rel := strings.TrimPrefix(p, prefix)
		out = append(out, FileInfo{Path: rel, Name: path.Base(p), Size: int64(len(f.data)), ModTime: f.modTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Delete removes a file or a directory tree.
func (m *Mem) Delete(p string) error {
	c, err := m.clean(p)
	if err != nil {
		return err
	}
	if c == "." {
		return fmt.Errorf("%w: refusing to delete root", ErrOutsideRoot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[c]; ok {
		delete(m.files, c)
		return nil
	}
	if _, ok := m.dirs[c]; !ok {
		return fmt.Errorf("storage: delete %s: %w", p, fs.ErrNotExist)
	}
	prefix := c + "/"
	for f := range m.files {
		if strings.HasPrefix(f, prefix) {
			delete(m.files, f)
		}
	}
	for d := range m.dirs {
		if d == c || strings.HasPrefix(d, prefix) {
			delete(m.dirs, d)
		}
	}
	return nil
}
