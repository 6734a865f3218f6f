// Package source provides clipengine.Handle implementations: an
// in-memory byte buffer and a refcounted filesystem path.
package source

import "clipengine"

// Handle is the source package's implementation handle; callers use
// clipengine.Handle as the interface type.
type Handle = clipengine.Handle

// ReadSeekCloser is what Handle.Open returns.
type ReadSeekCloser = clipengine.ReadSeekCloser
