package source

import (
	"os"
	"sync"
)

// accessToken is a refcounted guard around one PathHandle's path. The
// cached slurp stays valid as long as at least one Open'd reader is
// outstanding; each reader's Close drops the refcount, and the last
// release clears the cache, so an Open after every reader has been
// closed reads a small file from disk again.
type accessToken struct {
	mu     sync.Mutex
	count  int
	cached []byte
}

func newAccessToken() *accessToken {
	return &accessToken{}
}

func (t *accessToken) acquire() {
	t.mu.Lock()
	t.count++
	t.mu.Unlock()
}

// release drops the refcount and clears the cached slurp once nothing
// holds the token anymore.
func (t *accessToken) release() {
	t.mu.Lock()
	t.count--
	if t.count <= 0 {
		t.cached = nil
	}
	t.mu.Unlock()
}

// slurp reads path fully into memory and caches it for every further
// Open on the same token while the refcount stays above zero; after the
// last release the next slurp reads the file again.
func (t *accessToken) slurp(path string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cached != nil {
		return t.cached, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t.cached = data
	return data, nil
}
