// Package render turns a decoded frame into a device-ready pixmap: scaled
// to fit, letterboxed into its outer box, and optionally corner-masked.
package render

import "clipengine"

// Preparer is the render package's implementation handle; callers use
// clipengine.Preparer as the interface type. NewGGPreparer returns one backed by
// github.com/fogleman/gg and golang.org/x/image/draw.
type Preparer = clipengine.Preparer
