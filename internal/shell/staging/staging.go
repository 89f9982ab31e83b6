// Package staging hands out the fixed per-tool working directories that
// workflows write artifacts into.
//
// Each tool owns exactly one directory under the staging root. A Manager
// serializes access to it: Acquire blocks until no other run holds the
// directory, so concurrent requests for the same tool never observe each
// other's files.
package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"golang.org/x/sync/semaphore"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrReleased    = errors.New("staging directory already released")
	ErrInvalidName = errors.New("invalid staging file name")
)

// StagingError wraps filesystem failures with the operation and path.
type StagingError struct {
	Op   string
	Path string
	Err  error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StagingError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Manager
// =============================================================================

// Manager owns the staging root and the per-directory locks.
type Manager struct {
	root string

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewManager creates a manager rooted at root. The root is made absolute so
// that two managers pointing at the same place agree on lock keys.
func NewManager(root string) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &StagingError{Op: "resolve", Path: root, Err: err}
	}
	return &Manager{
		root:  abs,
		locks: make(map[string]*semaphore.Weighted),
	}, nil
}

// Root returns the absolute staging root.
func (m *Manager) Root() string {
	return m.root
}

// DirFor returns the fixed directory of a tool without locking it.
func (m *Manager) DirFor(tool domain.Tool) string {
	return filepath.Join(m.root, string(tool))
}

func (m *Manager) lockFor(key string) *semaphore.Weighted {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = semaphore.NewWeighted(1)
		m.locks[key] = l
	}
	return l
}

// Acquire waits for exclusive use of the tool's directory, creating it if
// needed. The caller must Release the returned Dir. Acquire returns the
// context's error if it is cancelled while waiting.
func (m *Manager) Acquire(ctx context.Context, tool domain.Tool) (*Dir, error) {
	path := m.DirFor(tool)
	lock := m.lockFor(string(tool) + ":" + path)

	if err := lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		lock.Release(1)
		return nil, &StagingError{Op: "mkdir", Path: path, Err: err}
	}
	return &Dir{path: path, lock: lock}, nil
}

// =============================================================================
// Dir
// =============================================================================

// Dir is an exclusively held staging directory.
type Dir struct {
	path string

	once sync.Once
	lock *semaphore.Weighted
}

// Path returns the absolute directory path.
func (d *Dir) Path() string {
	return d.path
}

// Release gives the directory back. Calling it more than once is a no-op.
func (d *Dir) Release() {
	d.once.Do(func() {
		d.lock.Release(1)
	})
}

// resolve joins name onto the directory, rejecting paths that escape it.
func (d *Dir) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	full := filepath.Join(d.path, filepath.FromSlash(name))
	rel, err := filepath.Rel(d.path, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return full, nil
}

// Write stores content at name (relative, may contain subdirectories) and
// returns the absolute path written.
func (d *Dir) Write(name, content string) (string, error) {
	full, err := d.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", &StagingError{Op: "mkdir", Path: filepath.Dir(full), Err: err}
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return "", &StagingError{Op: "write", Path: full, Err: err}
	}
	return full, nil
}

// Remove deletes name. A missing file is not an error.
func (d *Dir) Remove(name string) error {
	full, err := d.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StagingError{Op: "remove", Path: full, Err: err}
	}
	return nil
}

// Files lists the top-level regular files ending in ext, sorted by name.
// An empty ext lists every file.
func (d *Dir) Files(ext string) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, &StagingError{Op: "list", Path: d.path, Err: err}
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if ext == "" || strings.HasSuffix(e.Name(), ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Sweep removes every top-level file ending in ext and returns the removed
// names.
func (d *Dir) Sweep(ext string) ([]string, error) {
	names, err := d.Files(ext)
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(names))
	for _, name := range names {
		if err := d.Remove(name); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// Sub returns the absolute path of a subdirectory, creating it.
func (d *Dir) Sub(name string) (string, error) {
	full, err := d.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(full, 0755); err != nil {
		return "", &StagingError{Op: "mkdir", Path: full, Err: err}
	}
	return full, nil
}

// Reset empties a subdirectory and recreates it.
func (d *Dir) Reset(name string) (string, error) {
	full, err := d.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.RemoveAll(full); err != nil {
		return "", &StagingError{Op: "reset", Path: full, Err: err}
	}
	return d.Sub(name)
}
