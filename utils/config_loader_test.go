package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	dir := t.TempDir()
	cfg.Storage.DataDir = dir
	cfg.Storage.ImgDir = filepath.Join(dir, "img", "raw")
	cfg.Capture.Region = Region{X1: 0, Y1: 0, X2: 200, Y2: 66}
	return cfg
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.yaml")
	yml := `
capture:
  region: {x1: 10, y1: 20, x2: 810, y2: 620}
  default_fps: 15
storage:
  img_ext: PNG
fps_adjust:
  adjust_factor: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "screen", cfg.Capture.Source)
	assert.Equal(t, 15, cfg.Capture.DefaultFPS)
	assert.Equal(t, 800, cfg.Capture.Region.Width())
	assert.Equal(t, 600, cfg.Capture.Region.Height())
	assert.True(t, cfg.FpsAdjust.Enabled)
	assert.Equal(t, 3, cfg.FpsAdjust.AdjustFactor)
	assert.Equal(t, 10, cfg.FpsAdjust.StraightThreshold)
	assert.Equal(t, "joystick", cfg.Controller.Source)
	assert.Equal(t, "/dev/input/js0", cfg.Controller.DevicePath)
	assert.Equal(t, "wheel-button-left-1", cfg.Controls.PauseButton)
	assert.Equal(t, filepath.Join("data", "img", "raw"), cfg.Storage.ImgDir)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capture: [1, 2"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())
	assert.DirExists(t, cfg.Storage.ImgDir)

	cases := map[string]func(*Config){
		"image ext":      func(c *Config) { c.Storage.ImgExt = "gif" },
		"quality":        func(c *Config) { c.Storage.JPEGQuality = 101 },
		"fps":            func(c *Config) { c.Capture.DefaultFPS = -1 },
		"region":         func(c *Config) { c.Capture.Region = Region{X1: 10, X2: 5, Y2: 5} },
		"capture":        func(c *Config) { c.Capture.Source = "webcam" },
		"controller":     func(c *Config) { c.Controller.Source = "usb" },
		"device path":    func(c *Config) { c.Controller.Source = "serial"; c.Controller.DevicePath = "" },
		"button":         func(c *Config) { c.Controls.ResumeButton = "horn" },
		"same keys":      func(c *Config) { c.Controls.ResumeKey = c.Controls.PauseKey },
		"adjust factor":  func(c *Config) { c.FpsAdjust.AdjustFactor = 0 },
		"stats interval": func(c *Config) { c.Telemetry.StatsIntervalS = -1 },
		"run id slash":   func(c *Config) { c.Storage.RunID = "../escape" },
		"run id comma":   func(c *Config) { c.Storage.RunID = "a,b" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig(t)
			mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidateAcceptsRunID(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.RunID = "track_07-morning"
	assert.NoError(t, cfg.Validate())
}

func TestValidateAutoRegionSkipsRect(t *testing.T) {
	cfg := validConfig(t)
	cfg.Capture.Region = Region{}
	cfg.Capture.AutoRegion = true
	assert.NoError(t, cfg.Validate())
}

func TestValidateNormalisesExt(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.ImgExt = ".TIFF"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "tiff", cfg.Storage.ImgExt)
}

func TestValidateUnwritableDir(t *testing.T) {
	cfg := validConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	cfg.Storage.ImgDir = filepath.Join(blocker, "img")
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("0, 40,800,640")
	require.NoError(t, err)
	assert.Equal(t, Region{X1: 0, Y1: 40, X2: 800, Y2: 640}, r)

	_, err = ParseRegion("1,2,3")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = ParseRegion("a,b,c,d")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTimeHelpers(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	assert.Equal(t, "2024_01_02_03_04_05_000006000", ImageTimestamp(at))

	id := NewRunID()
	assert.Len(t, id, 8)
	assert.Regexp(t, `^[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, NewRunID())

	assert.Equal(t, 100*time.Millisecond, FPSInterval(10))
	assert.Equal(t, time.Second, FPSInterval(0))
}
