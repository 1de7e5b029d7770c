package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"drive-logger/models"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ─── Capture configs ────────────────────────────────────────────────────

// Region is the capture rectangle: (X1,Y1) upper-left, (X2,Y2) lower-right.
type Region struct {
	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
	X2 int `yaml:"x2"`
	Y2 int `yaml:"y2"`
}

func (r Region) Width() int  { return r.X2 - r.X1 }
func (r Region) Height() int { return r.Y2 - r.Y1 }

// ParseRegion parses "x1,y1,x2,y2".
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("%w: region %q: want x1,y1,x2,y2", ErrInvalidConfig, s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("%w: region %q: %v", ErrInvalidConfig, s, err)
		}
		v[i] = n
	}
	return Region{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}

type SyntheticConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Limit  int `yaml:"limit"` // 0 = endless
}

type CaptureConfig struct {
	Source       string          `yaml:"source"` // screen | synthetic
	Region       Region          `yaml:"region"`
	AutoRegion   bool            `yaml:"auto_region"`
	DefaultFPS   int             `yaml:"default_fps"`
	WaitForStart bool            `yaml:"wait_for_start"`
	Synthetic    SyntheticConfig `yaml:"synthetic"`
}

type FpsAdjustConfig struct {
	Enabled           bool `yaml:"enabled"`
	StraightThreshold int  `yaml:"straight_threshold"`
	DurationMs        int  `yaml:"duration_ms"`
	AdjustFactor      int  `yaml:"adjust_factor"`
}

type ControllerConfig struct {
	Source        string `yaml:"source"` // joystick | serial | replay | simulate | none
	DevicePath    string `yaml:"device_path"`
	BaudRate      int    `yaml:"baud_rate"`
	ChannelBuffer int    `yaml:"channel_buffer"`
}

type ControlsConfig struct {
	PauseKey     string `yaml:"pause_key"`
	ResumeKey    string `yaml:"resume_key"`
	PauseButton  string `yaml:"pause_button"`
	ResumeButton string `yaml:"resume_button"`
}

// ─── Storage configs ────────────────────────────────────────────────────

type CSVStorageConfig struct {
	FlushIntervalMs int `yaml:"flush_interval_ms"`
	BufferSizeKB    int `yaml:"buffer_size_kb"`
}

type StorageConfig struct {
	DataDir     string           `yaml:"data_dir"`
	ImgDir      string           `yaml:"img_dir"`
	ImgExt      string           `yaml:"img_ext"`
	JPEGQuality int              `yaml:"jpeg_quality"`
	RunID       string           `yaml:"run_id"`
	Workers     int              `yaml:"workers"`
	QueueSize   int              `yaml:"queue_size"`
	CSV         CSVStorageConfig `yaml:"csv"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type TelemetryConfig struct {
	MQTT           MQTTConfig `yaml:"mqtt"`
	StatsIntervalS int        `yaml:"stats_interval_s"`
}

type LogConfig struct {
	Verbose bool   `yaml:"verbose"`
	File    string `yaml:"file"`
}

// Config is the top-level structure for capture.yaml.
type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	FpsAdjust  FpsAdjustConfig  `yaml:"fps_adjust"`
	Controller ControllerConfig `yaml:"controller"`
	Controls   ControlsConfig   `yaml:"controls"`
	Storage    StorageConfig    `yaml:"storage"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`
}

// runIDPattern keeps run ids usable as a file name prefix and an unquoted
// CSV field.
var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SupportedImageExts lists the extensions the image exporter can encode.
var SupportedImageExts = []string{"jpg", "jpeg", "png", "bmp", "tiff"}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{FpsAdjust: FpsAdjustConfig{Enabled: true}}
	cfg.applyDefaults()
	return cfg
}

// ─── Loaders ────────────────────────────────────────────────────────────

// LoadConfig reads and parses capture.yaml. Missing keys keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{FpsAdjust: FpsAdjustConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Capture.Source == "" {
		c.Capture.Source = "screen"
	}
	if c.Capture.DefaultFPS == 0 {
		c.Capture.DefaultFPS = 10
	}
	if c.Capture.Synthetic.Width == 0 {
		c.Capture.Synthetic.Width = 200
	}
	if c.Capture.Synthetic.Height == 0 {
		c.Capture.Synthetic.Height = 66
	}
	if c.FpsAdjust.StraightThreshold == 0 {
		c.FpsAdjust.StraightThreshold = 10
	}
	if c.FpsAdjust.DurationMs == 0 {
		c.FpsAdjust.DurationMs = 2000
	}
	if c.FpsAdjust.AdjustFactor == 0 {
		c.FpsAdjust.AdjustFactor = 2
	}
	if c.Controller.Source == "" {
		c.Controller.Source = "joystick"
	}
	if c.Controller.DevicePath == "" && c.Controller.Source == "joystick" {
		c.Controller.DevicePath = "/dev/input/js0"
	}
	if c.Controller.BaudRate == 0 {
		c.Controller.BaudRate = 115200
	}
	if c.Controller.ChannelBuffer == 0 {
		c.Controller.ChannelBuffer = 256
	}
	if c.Controls.PauseKey == "" {
		c.Controls.PauseKey = "q"
	}
	if c.Controls.ResumeKey == "" {
		c.Controls.ResumeKey = "r"
	}
	if c.Controls.PauseButton == "" {
		c.Controls.PauseButton = models.SignalWheelButtonLeft1.String()
	}
	if c.Controls.ResumeButton == "" {
		c.Controls.ResumeButton = models.SignalWheelButtonRight1.String()
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.ImgDir == "" {
		c.Storage.ImgDir = filepath.Join(c.Storage.DataDir, "img", "raw")
	}
	if c.Storage.ImgExt == "" {
		c.Storage.ImgExt = "jpg"
	}
	if c.Storage.JPEGQuality == 0 {
		c.Storage.JPEGQuality = 90
	}
	if c.Storage.QueueSize == 0 {
		c.Storage.QueueSize = 256
	}
	if c.Storage.CSV.FlushIntervalMs == 0 {
		c.Storage.CSV.FlushIntervalMs = 100
	}
	if c.Storage.CSV.BufferSizeKB == 0 {
		c.Storage.CSV.BufferSizeKB = 64
	}
	if c.Telemetry.MQTT.Topic == "" {
		c.Telemetry.MQTT.Topic = "drive-logger"
	}
	if c.Telemetry.StatsIntervalS == 0 {
		c.Telemetry.StatsIntervalS = 5
	}
}

// Validate checks every option and prepares the output directories.
// It must pass before any goroutine is started.
func (c *Config) Validate() error {
	c.Storage.ImgExt = strings.ToLower(strings.TrimPrefix(c.Storage.ImgExt, "."))
	if !slices.Contains(SupportedImageExts, c.Storage.ImgExt) {
		return fmt.Errorf("%w: img_ext %q not in %v", ErrInvalidConfig, c.Storage.ImgExt, SupportedImageExts)
	}
	if c.Storage.JPEGQuality < 1 || c.Storage.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg_quality %d out of [1,100]", ErrInvalidConfig, c.Storage.JPEGQuality)
	}
	if c.Storage.Workers < 0 || c.Storage.QueueSize < 1 {
		return fmt.Errorf("%w: workers=%d queue_size=%d", ErrInvalidConfig, c.Storage.Workers, c.Storage.QueueSize)
	}
	if c.Capture.DefaultFPS <= 0 {
		return fmt.Errorf("%w: default_fps must be positive, got %d", ErrInvalidConfig, c.Capture.DefaultFPS)
	}
	if c.FpsAdjust.AdjustFactor < 1 || c.FpsAdjust.StraightThreshold < 0 || c.FpsAdjust.DurationMs < 0 {
		return fmt.Errorf("%w: fps_adjust %+v", ErrInvalidConfig, c.FpsAdjust)
	}

	if c.Storage.RunID != "" && !runIDPattern.MatchString(c.Storage.RunID) {
		return fmt.Errorf("%w: run_id %q must match %s", ErrInvalidConfig, c.Storage.RunID, runIDPattern)
	}
	if c.Telemetry.StatsIntervalS <= 0 {
		return fmt.Errorf("%w: stats_interval_s must be positive, got %d", ErrInvalidConfig, c.Telemetry.StatsIntervalS)
	}

	switch c.Capture.Source {
	case "screen":
		if !c.Capture.AutoRegion && (c.Capture.Region.Width() <= 0 || c.Capture.Region.Height() <= 0) {
			return fmt.Errorf("%w: empty capture region %+v", ErrInvalidConfig, c.Capture.Region)
		}
	case "synthetic":
		if c.Capture.Synthetic.Width <= 0 || c.Capture.Synthetic.Height <= 0 {
			return fmt.Errorf("%w: synthetic frame size %dx%d", ErrInvalidConfig,
				c.Capture.Synthetic.Width, c.Capture.Synthetic.Height)
		}
	default:
		return fmt.Errorf("%w: capture source %q", ErrInvalidConfig, c.Capture.Source)
	}

	switch c.Controller.Source {
	case "joystick", "serial", "replay":
		if c.Controller.DevicePath == "" {
			return fmt.Errorf("%w: controller source %q needs device_path", ErrInvalidConfig, c.Controller.Source)
		}
	case "simulate", "none":
	default:
		return fmt.Errorf("%w: controller source %q", ErrInvalidConfig, c.Controller.Source)
	}

	for _, name := range []string{c.Controls.PauseButton, c.Controls.ResumeButton} {
		if _, ok := models.ParseSignalName(name); !ok {
			return fmt.Errorf("%w: unknown signal %q", ErrInvalidConfig, name)
		}
	}
	if len(c.Controls.PauseKey) != 1 || len(c.Controls.ResumeKey) != 1 || c.Controls.PauseKey == c.Controls.ResumeKey {
		return fmt.Errorf("%w: pause/resume keys must be distinct single characters", ErrInvalidConfig)
	}

	for _, dir := range []string{c.Storage.DataDir, c.Storage.ImgDir} {
		if err := ensureWritableDir(dir); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return fmt.Errorf("%s not writable: %w", dir, err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	return os.Remove(name)
}
