package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLockAcquisition(t *testing.T) {
	tempDir := t.TempDir()

	lock, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	lockPath := filepath.Join(tempDir, LockFileName)
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Errorf("Lock file was not created: %s", lockPath)
	}

	content, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	expectedContent := fmt.Sprintf("pid=%d\n", os.Getpid())
	if string(content) != expectedContent {
		t.Errorf("Lock file content mismatch. Expected: %q, Got: %q", expectedContent, string(content))
	}
}

func TestLockConflict(t *testing.T) {
	tempDir := t.TempDir()

	lock1, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer lock1.Release()

	// flock is per open file description, so a second descriptor conflicts
	// even within the same process.
	_, err = AcquireLock(tempDir)
	if err == nil {
		t.Fatal("Expected second lock acquisition to fail")
	}

	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("Expected LockError, got %T: %v", err, err)
	}
	if !strings.Contains(lockErr.HolderInfo, fmt.Sprintf("PID %d", os.Getpid())) {
		t.Errorf("Expected holder info to mention our PID, got %q", lockErr.HolderInfo)
	}
	if !strings.Contains(lockErr.Error(), lockErr.LockPath) {
		t.Errorf("Expected error message to mention the lock path, got %q", lockErr.Error())
	}

	// The failed attempt must not wipe the holder's pid record.
	content, err := os.ReadFile(filepath.Join(tempDir, LockFileName))
	if err != nil {
		t.Fatalf("Failed to read lock file after conflict: %v", err)
	}
	if string(content) != fmt.Sprintf("pid=%d\n", os.Getpid()) {
		t.Errorf("Lock file content clobbered by failed acquisition: %q", string(content))
	}
}

func TestLockReleaseAndReacquire(t *testing.T) {
	tempDir := t.TempDir()

	lock1, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock1.Release(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}

	// Release removes the lock file.
	lockPath := filepath.Join(tempDir, LockFileName)
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("Lock file still exists after release: %s", lockPath)
	}

	lock2, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to reacquire lock after release: %v", err)
	}
	defer lock2.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()

	lock, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("First release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Second release failed: %v", err)
	}
}

func TestExtractPID(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{name: "valid pid", content: "pid=1234\n", want: 1234},
		{name: "no pid marker", content: "something else", want: 0},
		{name: "empty value", content: "pid=\n", want: 0},
		{name: "pid mid-content", content: "host=x pid=42 extra", want: 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPID(tt.content); got != tt.want {
				t.Errorf("extractPID(%q) = %d, want %d", tt.content, got, tt.want)
			}
		})
	}
}

func TestCreatesStateDirectory(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to acquire lock in missing directory: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(tempDir); err != nil {
		t.Errorf("Expected state directory to be created: %v", err)
	}
}
