package source

import "bytes"

// BytesHandle is an in-memory Handle: the bytes are held for the life of
// the handle and every Open returns an independent reader over them.
type BytesHandle struct {
	data []byte
}

// FromBytes wraps data as a Handle. data is not copied; callers must not
// mutate it after the handle is passed to Engine.NewClip.
func FromBytes(data []byte) *BytesHandle {
	return &BytesHandle{data: data}
}

func (h *BytesHandle) Open() (ReadSeekCloser, error) {
	return &memReader{r: bytes.NewReader(h.data)}, nil
}

func (h *BytesHandle) Close() error { return nil }

func (h *BytesHandle) Size() int64 { return int64(len(h.data)) }

// memReader adapts a *bytes.Reader to ReadSeekCloser; Close is a no-op
// since the backing slice is owned by the BytesHandle, not the reader.
type memReader struct {
	r *bytes.Reader
}

func (m *memReader) Read(p []byte) (int, error)                   { return m.r.Read(p) }
func (m *memReader) Seek(offset int64, whence int) (int64, error) { return m.r.Seek(offset, whence) }
func (m *memReader) Close() error                                 { return nil }
