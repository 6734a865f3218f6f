package source

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestBytesHandleRoundTrips(t *testing.T) {
	h := FromBytes([]byte("hello clip"))
	if h.Size() != 10 {
		t.Fatalf("Size() = %d, want 10", h.Size())
	}

	rsc, err := h.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, err := io.ReadAll(rsc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "hello clip" {
		t.Fatalf("read %q, want %q", data, "hello clip")
	}
	if err := rsc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestBytesHandleOpenIsIndependentPerCall(t *testing.T) {
	h := FromBytes([]byte("abc"))

	first, _ := h.Open()
	first.Read(make([]byte, 1))

	second, _ := h.Open()
	b := make([]byte, 1)
	if _, err := second.Read(b); err != nil {
		t.Fatalf("second Open()'s Read() error = %v", err)
	}
	if b[0] != 'a' {
		t.Fatalf("second Open() did not start at byte 0: got %q", b)
	}
}

func TestPathHandleSlurpsSmallFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.bin")
	if err := os.WriteFile(path, []byte("tiny"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	h, err := NewPathHandle(path, 1<<20)
	if err != nil {
		t.Fatalf("NewPathHandle() error = %v", err)
	}
	if h.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", h.Size())
	}

	rsc, err := h.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rsc)
	if string(data) != "tiny" {
		t.Fatalf("read %q, want %q", data, "tiny")
	}
	if err := rsc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// A second Open/Close cycle (a decoder loop restart) must still work
	// once the token's refcount has dropped to zero.
	rsc2, err := h.Open()
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	data2, _ := io.ReadAll(rsc2)
	if string(data2) != "tiny" {
		t.Fatalf("second read %q, want %q", data2, "tiny")
	}
	rsc2.Close()
}

func TestPathHandleStreamsLargeFilesFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "large.bin")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// Threshold smaller than the file size forces the os.Open path
	// instead of the slurp-into-memory path.
	h, err := NewPathHandle(path, 1)
	if err != nil {
		t.Fatalf("NewPathHandle() error = %v", err)
	}

	rsc, err := h.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rsc)
	if string(data) != "0123456789" {
		t.Fatalf("read %q, want %q", data, "0123456789")
	}
	if err := rsc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestPathHandleRejectsMissingFile(t *testing.T) {
	if _, err := NewPathHandle(filepath.Join(t.TempDir(), "missing.bin"), 1<<20); err == nil {
		t.Fatal("NewPathHandle() error = nil, want a failure for a missing file")
	}
}
