// Command clipplay is a small CLI harness around the clipengine package:
// the engine normally runs embedded inside a desktop client, so this
// binary is the only executable "UI thread" stand-in. probe runs Probe
// against a file; play runs a real Engine and drives a synthetic
// consumer loop against one clip.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"clipengine"
	"clipengine/config"
	"clipengine/decode"
	"clipengine/render"
	"clipengine/source"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	app := &cli.App{
		Name:  "clipplay",
		Usage: "exercise the clipengine lock-light frame hand-off from the command line",
		Commands: []*cli.Command{
			probeCommand(),
			playCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("clipplay: failed", "error", err)
		os.Exit(1)
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "probe a file and print {duration, width, height} or the not-playable verdict",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("clipplay probe: a file path is required")
			}

			handle, err := source.NewPathHandle(path, clipengine.DefaultEngineConfig().SmallFileThresholdBytes)
			if err != nil {
				return err
			}

			factory := factoryFor(path)
			result, err := clipengine.Probe(handle, factory)
			out := map[string]any{
				"playable":  err == nil,
				"width":     result.Width,
				"height":    result.Height,
				"duration":  result.Duration.String(),
				"trace_id":  result.TraceID,
			}
			if err != nil {
				out["error"] = err.Error()
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "run a real Engine against one clip and log every Reinit/Repaint",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Value: "gif", Usage: "gif or video"},
			&cli.IntFlag{Name: "frames", Value: 60, Usage: "number of consumer ticks to run"},
			&cli.DurationFlag{Name: "interval", Value: 16 * time.Millisecond, Usage: "consumer tick interval"},
			&cli.StringFlag{Name: "config", Usage: "optional YAML config path"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("clipplay play: a file path is required")
			}

			cfg := clipengine.DefaultEngineConfig()
			if cp := c.String("config"); cp != "" {
				loaded, err := config.Load(cp)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			mode := clipengine.Gif
			if c.String("mode") == "video" {
				mode = clipengine.Video
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				slog.Info("clipplay: interrupted, shutting down")
				cancel()
			}()

			handle, err := source.NewPathHandle(path, cfg.SmallFileThresholdBytes)
			if err != nil {
				return err
			}

			factory := factoryFor(path)
			preparer := render.NewGGPreparer()
			eng := clipengine.New(cfg, factory, preparer, slog.Default())
			defer eng.Shutdown(context.Background())

			const outerW, outerH = 512, 512
			started := false
			clip := eng.NewClip(handle, mode, func(ev clipengine.Event) {
				slog.Info("clipplay: event", "event", ev.String())
			})

			frames := c.Int("frames")
			interval := c.Duration("interval")
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for i := 0; i < frames; i++ {
				select {
				case <-ctx.Done():
					return nil
				case now := <-ticker.C:
					if !started && clip.Ready() {
						clip.Start(clip.Width(), clip.Height(), outerW, outerH, 1, false)
						started = true
					}
					if !started {
						continue
					}
					img := clip.Current(clip.Width(), clip.Height(), outerW, outerH, now)
					if img == nil {
						slog.Warn("clipplay: no frame ready yet")
					}
				}
			}
			return nil
		},
	}
}

// factoryFor picks a clipengine.Factory by file extension: ".gif" gets
// the pure Go GIF decoder, anything else gets the GStreamer loop decoder.
func factoryFor(path string) clipengine.Factory {
	if len(path) >= 4 && path[len(path)-4:] == ".gif" {
		return decode.GIF
	}
	return decode.GStreamerLoop
}
