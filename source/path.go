package source

import (
	"bytes"
	"fmt"
	"os"
)

// PathHandle is a filesystem-path-backed Handle with its own accessToken.
// The file is stat'ed once, at construction. Readers from Open that are
// outstanding at the same time share one slurp of a small file; once the
// last of them is closed the cached bytes are dropped, and a later Open
// reads the file from disk again.
type PathHandle struct {
	path      string
	size      int64
	threshold int64
	token     *accessToken
}

// NewPathHandle stats path once at construction time. threshold is
// EngineConfig.SmallFileThresholdBytes: files at or below it are slurped
// into memory on Open and read from that copy; larger files are streamed
// from disk through a freshly opened *os.File.
func NewPathHandle(path string, threshold int64) (*PathHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("source: stat %s: %w", path, err)
	}
	h := &PathHandle{
		path:      path,
		size:      info.Size(),
		threshold: threshold,
		token:     newAccessToken(),
	}
	return h, nil
}

func (h *PathHandle) Open() (ReadSeekCloser, error) {
	h.token.acquire()

	if h.size <= h.threshold {
		data, err := h.token.slurp(h.path)
		if err != nil {
			h.token.release()
			return nil, err
		}
		return &tokenMemReader{memReader: memReader{r: bytes.NewReader(data)}, token: h.token}, nil
	}

	f, err := os.Open(h.path)
	if err != nil {
		h.token.release()
		return nil, fmt.Errorf("source: open %s: %w", h.path, err)
	}
	return &tokenFileReader{file: f, token: h.token}, nil
}

func (h *PathHandle) Close() error { return nil }

func (h *PathHandle) Size() int64 { return h.size }

// tokenFileReader releases the shared accessToken's refcount on Close,
// on top of closing the real *os.File.
type tokenFileReader struct {
	file  *os.File
	token *accessToken
}

func (r *tokenFileReader) Read(p []byte) (int, error) { return r.file.Read(p) }

func (r *tokenFileReader) Seek(offset int64, whence int) (int64, error) {
	return r.file.Seek(offset, whence)
}

func (r *tokenFileReader) Close() error {
	err := r.file.Close()
	r.token.release()
	return err
}

// tokenMemReader is the slurped-small-file path: reads come from the
// cached byte slice held by accessToken, Close only drops the refcount.
type tokenMemReader struct {
	memReader
	token *accessToken
}

func (r *tokenMemReader) Close() error {
	r.token.release()
	return nil
}
