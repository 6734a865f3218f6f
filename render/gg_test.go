package render

import (
	"image"
	"image/color"
	"testing"

	"clipengine"
)

// solidRGBA builds a w×h *image.RGBA filled with c, standing in for a
// decoded frame.
func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestGGPreparerIdentityShortcut(t *testing.T) {
	p := NewGGPreparer()
	src := solidRGBA(32, 32, color.RGBA{255, 0, 0, 255})

	req := clipengine.FrameRequest{FrameW: 32, FrameH: 32, OuterW: 32, OuterH: 32}
	out, err := p.Prepare(req, src, false, nil)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if out != src {
		t.Fatal("Prepare() did not take the identity shortcut for a matching, non-alpha, non-rounded frame")
	}
}

func TestGGPreparerLetterboxesIntoOuterBox(t *testing.T) {
	p := NewGGPreparer()
	src := solidRGBA(16, 9, color.RGBA{0, 255, 0, 255})

	req := clipengine.FrameRequest{FrameW: 16, FrameH: 9, OuterW: 32, OuterH: 32}
	out, err := p.Prepare(req, src, false, nil)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if out.Bounds().Dx() != 32 || out.Bounds().Dy() != 32 {
		t.Fatalf("Prepare() outer size = %v, want 32x32", out.Bounds())
	}

	// A corner pixel should be the black fill, not the frame's green.
	r, g, b, _ := out.At(0, 0).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Fatalf("corner pixel = (%d,%d,%d), want black letterbox fill", r, g, b)
	}
}

func TestGGPreparerAlphaFramePaintsWhiteBackdrop(t *testing.T) {
	p := NewGGPreparer()
	src := solidRGBA(10, 10, color.RGBA{0, 0, 255, 128})

	req := clipengine.FrameRequest{FrameW: 10, FrameH: 10, OuterW: 10, OuterH: 10}
	out, err := p.Prepare(req, src, true, nil)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if out.Bounds().Dx() != 10 || out.Bounds().Dy() != 10 {
		t.Fatalf("Prepare() outer size = %v, want 10x10", out.Bounds())
	}

	// The frame has no red and is half transparent, so any red at its
	// center can only come from the white backdrop painted behind it.
	if r, _, _, _ := out.At(5, 5).RGBA(); r == 0 {
		t.Fatal("center pixel has no red, want the white backdrop showing through the translucent frame")
	}
}

func TestGGPreparerReusesScratchOfMatchingSize(t *testing.T) {
	p := NewGGPreparer()
	src := solidRGBA(16, 16, color.RGBA{10, 20, 30, 255})
	scratch := image.NewRGBA(image.Rect(0, 0, 32, 32))

	req := clipengine.FrameRequest{FrameW: 16, FrameH: 16, OuterW: 32, OuterH: 32}
	out, err := p.Prepare(req, src, false, scratch)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if out.Bounds().Dx() != 32 || out.Bounds().Dy() != 32 {
		t.Fatalf("Prepare() with scratch outer size = %v, want 32x32", out.Bounds())
	}
	if out != scratch {
		t.Fatal("Prepare() did not composite into the matching-size scratch buffer")
	}
}
