package decode

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
	xdraw "golang.org/x/image/draw"

	"clipengine"
)

// gstLoopDecoder decodes a short silent video with a GStreamer pipeline
// pulled one frame at a time from an appsink, adapted from the push/
// callback style of a live RTSP capture (NewSampleFunc on every buffer)
// to pull-per-tick: ReadNextFrame blocks on PullSample exactly once. On
// end-of-stream the pipeline is torn down and rebuilt from the same
// backing file rather than sought, since clips always loop and a
// pull-style appsink gives no cheaper restart primitive without risking
// stale caps negotiation.
type gstLoopDecoder struct {
	mode clipengine.Mode

	src      clipengine.Handle
	tempPath string

	pipeline *gst.Pipeline
	appsink  *app.Sink

	width, height int
	frameInterval time.Duration
	lastFrame     []byte
}

func newGstLoopDecoder(mode clipengine.Mode) *gstLoopDecoder {
	return &gstLoopDecoder{mode: mode, frameInterval: 33 * time.Millisecond}
}

func (d *gstLoopDecoder) Open(src clipengine.Handle, mode clipengine.Mode) error {
	rsc, err := src.Open()
	if err != nil {
		return err
	}
	data, err := io.ReadAll(rsc)
	rsc.Close()
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "clipengine-*.bin")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	f.Close()

	d.src = src
	d.mode = mode
	d.tempPath = f.Name()
	return d.openPipeline()
}

// openPipeline builds filesrc -> decodebin -> videoconvert -> videoscale
// -> capsfilter(RGBA) -> appsink, links the static half, wires decodebin's
// dynamic video pad on pad-added, and starts it Playing.
func (d *gstLoopDecoder) openPipeline() error {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("decode: create pipeline: %w", err)
	}

	filesrc, err := gst.NewElement("filesrc")
	if err != nil {
		return fmt.Errorf("decode: create filesrc: %w", err)
	}
	filesrc.SetProperty("location", d.tempPath)

	decodebin, err := gst.NewElement("decodebin")
	if err != nil {
		return fmt.Errorf("decode: create decodebin: %w", err)
	}

	videoconvert, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("decode: create videoconvert: %w", err)
	}
	videoconvert.SetProperty("n-threads", 0)

	videoscale, err := gst.NewElement("videoscale")
	if err != nil {
		return fmt.Errorf("decode: create videoscale: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("decode: create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=RGBA"))

	appsink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("decode: create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 2)
	appsink.SetProperty("drop", true)

	pipeline.AddMany(filesrc, decodebin, videoconvert, videoscale, capsfilter, appsink.Element)

	if err := gst.ElementLinkMany(filesrc, decodebin); err != nil {
		return fmt.Errorf("decode: link filesrc to decodebin: %w", err)
	}
	if err := gst.ElementLinkMany(videoconvert, videoscale, capsfilter, appsink.Element); err != nil {
		return fmt.Errorf("decode: link decode tail: %w", err)
	}

	decodebin.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		sinkPad := videoconvert.GetStaticPad("sink")
		if sinkPad == nil || sinkPad.IsLinked() {
			return
		}
		if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
			slog.Warn("decode: failed to link decodebin pad", "pad", srcPad.GetName(), "ret", ret)
		}
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("decode: set pipeline playing: %w", err)
	}

	d.pipeline = pipeline
	d.appsink = appsink
	return nil
}

func (d *gstLoopDecoder) teardownPipeline() {
	if d.pipeline == nil {
		return
	}
	d.pipeline.SetState(gst.StateNull)
	d.pipeline = nil
	d.appsink = nil
}

// ReadNextFrame pulls one sample, restarting the pipeline from the
// backing file on end-of-stream (clips always loop).
func (d *gstLoopDecoder) ReadNextFrame() error {
	sample := d.appsink.PullSample()
	if sample == nil {
		d.teardownPipeline()
		if err := d.openPipeline(); err != nil {
			return fmt.Errorf("decode: restart after EOS: %w", err)
		}
		sample = d.appsink.PullSample()
		if sample == nil {
			return errors.New("decode: gst pipeline produced no frames after restart")
		}
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return errors.New("decode: gst sample had no buffer")
	}
	mapInfo := buffer.Map(gst.MapRead)
	raw := mapInfo.Bytes()
	frame := make([]byte, len(raw))
	copy(frame, raw)
	buffer.Unmap()

	if caps := sample.GetCaps(); caps != nil && caps.GetSize() > 0 {
		d.readCaps(caps)
	}

	d.lastFrame = frame
	return nil
}

func (d *gstLoopDecoder) readCaps(caps *gst.Caps) {
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return
	}
	if v, err := structure.GetValue("width"); err == nil {
		if w, ok := v.(int); ok {
			d.width = w
		}
	}
	if v, err := structure.GetValue("height"); err == nil {
		if h, ok := v.(int); ok {
			d.height = h
		}
	}
	if v, err := structure.GetValue("framerate"); err == nil {
		if fps := parseFramerateFraction(v); fps > 0 {
			d.frameInterval = time.Duration(float64(time.Second) / fps)
		}
	}
}

func (d *gstLoopDecoder) RenderFrame(dst *image.RGBA, hasAlpha *bool, target image.Point) error {
	if d.lastFrame == nil || d.width == 0 || d.height == 0 {
		return errors.New("decode: gst RenderFrame before ReadNextFrame")
	}
	*hasAlpha = false

	src := &image.RGBA{Pix: d.lastFrame, Stride: d.width * 4, Rect: image.Rect(0, 0, d.width, d.height)}

	if target.X <= 0 || target.Y <= 0 {
		out := image.NewRGBA(src.Bounds())
		copy(out.Pix, src.Pix)
		*dst = *out
		return nil
	}

	out := image.NewRGBA(image.Rect(0, 0, target.X, target.Y))
	xdraw.CatmullRom.Scale(out, out.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	*dst = *out
	return nil
}

func (d *gstLoopDecoder) NextFrameDelay() time.Duration {
	return d.frameInterval
}

func (d *gstLoopDecoder) Duration() time.Duration {
	if d.pipeline == nil {
		return 0
	}
	ns, ok := d.pipeline.QueryDuration(gst.FormatTime)
	if !ok || ns <= 0 {
		return 0
	}
	return time.Duration(ns)
}

func (d *gstLoopDecoder) Close() error {
	d.teardownPipeline()
	if d.tempPath != "" {
		os.Remove(d.tempPath)
	}
	if d.src != nil {
		return d.src.Close()
	}
	return nil
}

// parseFramerateFraction extracts frames-per-second from a GStreamer
// Fraction value (exposed by go-gst as a type with Num()/Denom(); the
// Capability interface only needs the float).
func parseFramerateFraction(v interface{}) float64 {
	type fraction interface {
		Num() int
		Denom() int
	}
	if f, ok := v.(fraction); ok && f.Denom() != 0 {
		return float64(f.Num()) / float64(f.Denom())
	}
	return 0
}
