package gpulock

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireDeniesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpu.lock")

	first := New(path)
	if err := first.Acquire(); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer first.Release()

	second := New(path)
	err := second.Acquire()
	if err == nil {
		second.Release()
		t.Fatal("second acquire must fail while the lock is held")
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("error should name the lock path: %v", err)
	}
}

func TestAcquireAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gpu.lock")

	first := New(path)
	if err := first.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	second := New(path)
	if err := second.Acquire(); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = second.Release()
}
