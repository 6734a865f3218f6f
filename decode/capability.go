// Package decode provides clipengine.Capability implementations: a pure
// Go GIF decoder and a GStreamer-backed looping video decoder.
package decode

import (
	"clipengine"
)

// GIF is a clipengine.Factory that builds a decoder for animated GIFs
// using the standard library's image/gif package. Mode is accepted for
// interface conformance; GIFs carry no audio track to silence.
func GIF(mode clipengine.Mode) clipengine.Capability {
	return newGIFDecoder()
}

// GStreamerLoop is a clipengine.Factory that builds a decoder for short
// silent videos with a pull-style, file-backed GStreamer pipeline, looping
// back to the start on end-of-stream. The pipeline is the same video-only
// chain for every mode; no audio branch is built.
func GStreamerLoop(mode clipengine.Mode) clipengine.Capability {
	return newGstLoopDecoder(mode)
}
