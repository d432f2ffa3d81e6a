// LocalPod: a sandboxed local-filesystem Pod. Grounded on db.go's Open
// (os.OpenRoot sandboxes all file access) and repair.go's
// temp-file-then-Rename swap pattern, generalized from "one database
// file" to "one content-addressed key per path". Uses the adapted
// fileLock to serialize changelog rollup (write the new revision, then
// remove the old ones).
package lakota

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// LocalPod is a Pod rooted at a sandboxed directory on the local
// filesystem. Multiple LocalPod values returned by Cd share the same
// *os.Root and only differ in their path prefix.
type LocalPod struct {
	root      *os.Root
	prefix    string
	closeRoot bool
}

// OpenLocalPod creates dir if needed and returns a Pod sandboxed to it.
func OpenLocalPod(dir string) (*LocalPod, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("lakota: open local pod: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("lakota: open local pod: %w", err)
	}
	return &LocalPod{root: root, closeRoot: true}, nil
}

// Close releases the underlying sandboxed root handle.
func (p *LocalPod) Close() error {
	if p.closeRoot {
		return p.root.Close()
	}
	return nil
}

func (p *LocalPod) join(relpath string) string {
	return path.Join(p.prefix, relpath)
}

func dirForFS(p string) string {
	if p == "" {
		return "."
	}
	return p
}

// mkdirAll creates every directory component leading to relpath
// (relpath itself is treated as a file and not created).
func (p *LocalPod) mkdirAll(relpath string) error {
	dir := path.Dir(relpath)
	if dir == "." || dir == "/" || dir == "" {
		return nil
	}
	cur := ""
	for _, part := range strings.Split(dir, "/") {
		if part == "" {
			continue
		}
		cur = path.Join(cur, part)
		if err := p.root.Mkdir(cur, 0o755); err != nil && !os.IsExist(err) {
			return err
		}
	}
	return nil
}

func (p *LocalPod) Read(relpath string) ([]byte, error) {
	full := p.join(relpath)
	f, err := p.root.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, relpath)
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (p *LocalPod) Write(relpath string, data []byte) error {
	full := p.join(relpath)
	if _, err := p.root.Stat(full); err == nil {
		return nil
	}
	if err := p.mkdirAll(full); err != nil {
		return err
	}
	f, err := p.root.Create(full)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func (p *LocalPod) Ls(relpath string) ([]string, error) {
	full := p.join(relpath)
	entries, err := fs.ReadDir(p.root.FS(), dirForFS(full))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, relpath)
		}
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

func (p *LocalPod) Rm(relpath string, recursive bool) error {
	full := p.join(relpath)
	info, err := p.root.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, relpath)
		}
		return err
	}
	if info.IsDir() {
		if !recursive {
			return p.root.Remove(full)
		}
		return p.removeAll(full)
	}
	return p.root.Remove(full)
}

func (p *LocalPod) removeAll(dir string) error {
	entries, err := fs.ReadDir(p.root.FS(), dirForFS(dir))
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := path.Join(dir, e.Name())
		if e.IsDir() {
			if err := p.removeAll(child); err != nil {
				return err
			}
		} else if err := p.root.Remove(child); err != nil {
			return err
		}
	}
	return p.root.Remove(dir)
}

func (p *LocalPod) Mv(oldpath, newpath string) error {
	oldFull := p.join(oldpath)
	newFull := p.join(newpath)
	if err := p.mkdirAll(newFull); err != nil {
		return err
	}
	if err := p.root.Rename(oldFull, newFull); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, oldpath)
		}
		return err
	}
	return nil
}

// Cd returns a Pod view rooted at relpath, sharing this Pod's *os.Root.
func (p *LocalPod) Cd(relpath string) Pod {
	return &LocalPod{root: p.root, prefix: p.join(relpath)}
}

// WithLock runs fn while holding an exclusive flock on a sentinel file
// under dir, serializing changelog rollups between actors sharing this
// directory. Pods that
// don't need this (MemPod, single-actor tests) simply don't implement it;
// callers type-assert for it and skip locking when absent.
func (p *LocalPod) WithLock(dir string, fn func() error) error {
	lockPath := path.Join(dir, ".rollup.lock")
	if err := p.mkdirAll(lockPath); err != nil {
		return err
	}
	f, err := p.root.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	fl := &fileLock{}
	fl.setFile(f)
	if err := fl.Lock(LockExclusive); err != nil {
		return err
	}
	defer fl.Unlock()
	return fn()
}

// podLocker is implemented by Pods that can serialize a rollup's
// write-then-remove sequence across actors. Pods without a
// shared-filesystem hazard (MemPod) need not implement it.
type podLocker interface {
	WithLock(dir string, fn func() error) error
}

func withOptionalLock(pod Pod, dir string, fn func() error) error {
	if locker, ok := pod.(podLocker); ok {
		return locker.WithLock(dir, fn)
	}
	return fn()
}
