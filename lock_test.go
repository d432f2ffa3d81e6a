package lakota

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openLockFile(t *testing.T, path string) *fileLock {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	l := &fileLock{}
	l.setFile(f)
	return l
}

func TestFileLockExclusiveBlocksExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollup.lock")

	l1 := openLockFile(t, path)
	l2 := openLockFile(t, path)

	if err := l1.Lock(LockExclusive); err != nil {
		t.Fatalf("l1 lock: %v", err)
	}

	done := make(chan bool)
	go func() {
		if err := l2.Lock(LockExclusive); err != nil {
			t.Errorf("l2 lock: %v", err)
		}
		l2.Unlock()
		done <- true
	}()

	select {
	case <-done:
		t.Fatal("l2 acquired exclusive lock while l1 held it")
	case <-time.After(100 * time.Millisecond):
	}

	l1.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("l2 never acquired the lock after release")
	}
}

func TestFileLockSharedAllowsShared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollup.lock")

	l1 := openLockFile(t, path)
	l2 := openLockFile(t, path)

	if err := l1.Lock(LockShared); err != nil {
		t.Fatalf("l1 lock: %v", err)
	}
	defer l1.Unlock()

	done := make(chan error, 1)
	go func() { done <- l2.Lock(LockShared) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("l2 shared lock: %v", err)
		}
		l2.Unlock()
	case <-time.After(time.Second):
		t.Fatal("two shared locks should not block each other")
	}
}

func TestFileLockSetFileNilIsNoOp(t *testing.T) {
	l := &fileLock{}
	if err := l.Lock(LockExclusive); err != nil {
		t.Fatalf("Lock on nil handle: %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock on nil handle: %v", err)
	}
}
