// Package config loads EngineConfig from YAML, mirroring the Orion
// daemon's Load/Validate split: Load reads and unmarshals, Validate
// fail-fasts on nonsensical values and fills in defaults for anything
// left zero.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"clipengine"
)

// File is the on-disk shape of an EngineConfig, with yaml tags and
// duration fields expressed in milliseconds (YAML has no native
// time.Duration).
type File struct {
	WorkerCount             int   `yaml:"worker_count"`
	AverageClipBytes        int64 `yaml:"average_clip_bytes"`
	PauseGraceMS            int64 `yaml:"pause_grace_ms"`
	SmallFileThresholdBytes int64 `yaml:"small_file_threshold_bytes"`
	MinFrameDelayMS         int64 `yaml:"min_frame_delay_ms"`
}

// Load reads path, unmarshals it into a File and validates the result
// into an clipengine.EngineConfig, the way orion-prototipe's
// config.Load reads, unmarshals and calls Validate before returning.
func Load(path string) (clipengine.EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return clipengine.EngineConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return clipengine.EngineConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg := fromFile(f)
	if err := Validate(&cfg); err != nil {
		return clipengine.EngineConfig{}, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

func fromFile(f File) clipengine.EngineConfig {
	cfg := clipengine.DefaultEngineConfig()
	if f.WorkerCount != 0 {
		cfg.WorkerCount = f.WorkerCount
	}
	if f.AverageClipBytes != 0 {
		cfg.AverageClipBytes = f.AverageClipBytes
	}
	if f.PauseGraceMS != 0 {
		cfg.PauseGrace = time.Duration(f.PauseGraceMS) * time.Millisecond
	}
	if f.SmallFileThresholdBytes != 0 {
		cfg.SmallFileThresholdBytes = f.SmallFileThresholdBytes
	}
	if f.MinFrameDelayMS != 0 {
		cfg.MinFrameDelay = time.Duration(f.MinFrameDelayMS) * time.Millisecond
	}
	return cfg
}

// Validate fail-fasts on nonsensical values the way
// stream-capture.NewRTSPStream fail-fasts on a bad RTSPConfig, and
// fills in any remaining zero-valued field from DefaultEngineConfig.
func Validate(cfg *clipengine.EngineConfig) error {
	def := clipengine.DefaultEngineConfig()

	if cfg.WorkerCount < 0 {
		return fmt.Errorf("worker_count must be >= 0, got %d", cfg.WorkerCount)
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = def.WorkerCount
	}

	if cfg.AverageClipBytes < 0 {
		return fmt.Errorf("average_clip_bytes must be >= 0, got %d", cfg.AverageClipBytes)
	}
	if cfg.AverageClipBytes == 0 {
		cfg.AverageClipBytes = def.AverageClipBytes
	}

	if cfg.PauseGrace < 0 {
		return fmt.Errorf("pause_grace must be >= 0, got %s", cfg.PauseGrace)
	}
	if cfg.PauseGrace == 0 {
		cfg.PauseGrace = def.PauseGrace
	}

	if cfg.SmallFileThresholdBytes < 0 {
		return fmt.Errorf("small_file_threshold_bytes must be >= 0, got %d", cfg.SmallFileThresholdBytes)
	}
	if cfg.SmallFileThresholdBytes == 0 {
		cfg.SmallFileThresholdBytes = def.SmallFileThresholdBytes
	}

	if cfg.MinFrameDelay < 0 {
		return fmt.Errorf("min_frame_delay must be >= 0, got %s", cfg.MinFrameDelay)
	}
	if cfg.MinFrameDelay == 0 {
		cfg.MinFrameDelay = def.MinFrameDelay
	}

	return nil
}
