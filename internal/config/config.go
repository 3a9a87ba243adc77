// Package config loads the pipeline's tunables from YAML: an internal
// yamlConfig shape decoded with gopkg.in/yaml.v3, copied field by field
// into a public Config with defaults applied and queue-depth style values
// above 100 clamped to 100 rather than rejected, the same way
// async_decoder_options' max_packets/max_frames AVOptions behave. Values
// of zero or below keep the default.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultMaxPacketsQueue   = 5
	defaultMaxFramesQueue    = 3
	defaultSinkQueueCapacity = 3
	defaultReorderWindow     = 4
	defaultSurfaceCredits    = 4
	defaultEagainRetryDelay  = 10 * time.Millisecond

	minQueueDepth = 1
	maxQueueDepth = 100
)

// Config holds the pipeline's bounded-queue sizing and retry tunables.
type Config struct {
	MaxPacketsQueue   int
	MaxFramesQueue    int
	SinkQueueCapacity int
	ReorderWindow     int
	SurfaceCredits    int
	EagainRetryDelay  time.Duration
}

type yamlConfig struct {
	Queues struct {
		MaxPackets int `yaml:"max_packets"`
		MaxFrames  int `yaml:"max_frames"`
		SinkDepth  int `yaml:"sink_depth"`
	} `yaml:"queues"`
	Decoder struct {
		ReorderWindow  int `yaml:"reorder_window"`
		SurfaceCredits int `yaml:"surface_credits"`
	} `yaml:"decoder"`
	Reader struct {
		EagainRetryMs int `yaml:"eagain_retry_ms"`
	} `yaml:"reader"`
}

// Default returns a Config populated with the same defaults LoadFile
// applies when a file is silent on a field.
func Default() Config {
	return Config{
		MaxPacketsQueue:   defaultMaxPacketsQueue,
		MaxFramesQueue:    defaultMaxFramesQueue,
		SinkQueueCapacity: defaultSinkQueueCapacity,
		ReorderWindow:     defaultReorderWindow,
		SurfaceCredits:    defaultSurfaceCredits,
		EagainRetryDelay:  defaultEagainRetryDelay,
	}
}

// LoadFile reads and parses a YAML config file at path, applying defaults
// for unset, zero or negative fields and clamping the queue, reorder-window
// and surface-credit fields to at most 100 instead of rejecting the file
// outright. eagain_retry_ms is taken as given, without an upper bound.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := Default()

	if yc.Queues.MaxPackets > 0 {
		cfg.MaxPacketsQueue = clamp(yc.Queues.MaxPackets)
	}
	if yc.Queues.MaxFrames > 0 {
		cfg.MaxFramesQueue = clamp(yc.Queues.MaxFrames)
	}
	if yc.Queues.SinkDepth > 0 {
		cfg.SinkQueueCapacity = clamp(yc.Queues.SinkDepth)
	}
	if yc.Decoder.ReorderWindow > 0 {
		cfg.ReorderWindow = clamp(yc.Decoder.ReorderWindow)
	}
	if yc.Decoder.SurfaceCredits > 0 {
		cfg.SurfaceCredits = clamp(yc.Decoder.SurfaceCredits)
	}
	if yc.Reader.EagainRetryMs > 0 {
		cfg.EagainRetryDelay = time.Duration(yc.Reader.EagainRetryMs) * time.Millisecond
	}

	return cfg, nil
}

func clamp(n int) int {
	if n < minQueueDepth {
		return minQueueDepth
	}
	if n > maxQueueDepth {
		return maxQueueDepth
	}
	return n
}
