package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"drive-logger/models"
	"drive-logger/utils"
)

// DeviceReader ingests controller records from a wheel device, a serial
// bridge, a recorded text file, or a simulator. Decoded updates are
// published on Out; a single consumer applies them to the state cache.
type DeviceReader struct {
	cfg utils.ControllerConfig
	Out chan models.SignalUpdate

	open func() (io.ReadCloser, error)

	produced  uint64
	unknown   uint64
	malformed uint64
}

// NewDeviceReader picks the byte source for cfg.Source. Opening is deferred
// to Start so that configuration errors surface before any device is touched.
func NewDeviceReader(cfg utils.ControllerConfig) (*DeviceReader, error) {
	buf := cfg.ChannelBuffer
	if buf <= 0 {
		buf = 256
	}
	r := &DeviceReader{cfg: cfg, Out: make(chan models.SignalUpdate, buf)}

	switch cfg.Source {
	case "joystick", "replay":
		r.open = func() (io.ReadCloser, error) { return os.Open(cfg.DevicePath) }
	case "serial":
		r.open = func() (io.ReadCloser, error) {
			return serial.Open(cfg.DevicePath, &serial.Mode{BaudRate: cfg.BaudRate})
		}
	case "simulate":
		r.open = func() (io.ReadCloser, error) { return newSimulatedWheel(), nil }
	default:
		return nil, fmt.Errorf("%w: controller source %q", utils.ErrInvalidConfig, cfg.Source)
	}
	return r, nil
}

// NewDeviceReaderFrom wraps an already-open stream. binary selects the 8-byte
// record format; otherwise the text form is expected.
func NewDeviceReaderFrom(rc io.ReadCloser, binary bool, buffer int) *DeviceReader {
	src := "replay"
	if binary {
		src = "joystick"
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &DeviceReader{
		cfg:  utils.ControllerConfig{Source: src, ChannelBuffer: buffer},
		Out:  make(chan models.SignalUpdate, buffer),
		open: func() (io.ReadCloser, error) { return rc, nil },
	}
}

// Start opens the source and launches the read loop. Out is closed when the
// stream ends or ctx is cancelled.
func (r *DeviceReader) Start(ctx context.Context) error {
	rc, err := r.open()
	if err != nil {
		return fmt.Errorf("open controller %s %q: %w", r.cfg.Source, r.cfg.DevicePath, err)
	}

	// Closing the source is the only way to unblock a pending device read.
	go func() {
		<-ctx.Done()
		_ = rc.Close()
	}()
	go r.run(ctx, rc)

	utils.L().Info("controller reader started (source=%s, device=%s, buffer=%d)",
		r.cfg.Source, r.cfg.DevicePath, cap(r.Out))
	return nil
}

func (r *DeviceReader) run(ctx context.Context, rc io.ReadCloser) {
	defer close(r.Out)

	next := r.textNext(rc)
	if r.cfg.Source == "joystick" || r.cfg.Source == "serial" {
		next = r.binaryNext(rc)
	}

	for {
		u, err := next()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				utils.L().Warn("controller read: %v", err)
			}
			utils.L().Info("controller reader stopped (produced=%d, unknown=%d, malformed=%d)",
				atomic.LoadUint64(&r.produced), atomic.LoadUint64(&r.unknown), atomic.LoadUint64(&r.malformed))
			return
		}
		if !u.Name.Valid() {
			atomic.AddUint64(&r.unknown, 1)
			continue
		}

		// Blocking send: dropping an update could leave a stale value in the cache.
		select {
		case r.Out <- u:
			atomic.AddUint64(&r.produced, 1)
		case <-ctx.Done():
			return
		}
	}
}

func (r *DeviceReader) binaryNext(rc io.Reader) func() (models.SignalUpdate, error) {
	dec := NewDecoder(rc)
	return func() (models.SignalUpdate, error) {
		ev, u, err := dec.Next()
		if err == nil && !u.Name.Valid() {
			utils.L().Debug("controller: unknown key %s value=%d", KeyString(ev), ev.Value)
		}
		return u, err
	}
}

func (r *DeviceReader) textNext(rc io.Reader) func() (models.SignalUpdate, error) {
	dec := NewTextDecoder(rc)
	return func() (models.SignalUpdate, error) {
		u, err := dec.Next()
		atomic.StoreUint64(&r.malformed, dec.Malformed())
		return u, err
	}
}

// Stats returns (produced, unknown, malformed) counts atomically.
func (r *DeviceReader) Stats() (uint64, uint64, uint64) {
	return atomic.LoadUint64(&r.produced), atomic.LoadUint64(&r.unknown), atomic.LoadUint64(&r.malformed)
}

// ─── simulated wheel ────────────────────────────────────────────────────

// simulatedWheel emits text-form wheel-axis updates at ~100 Hz: random
// steering, with an occasional 5 s straight stretch (axis 0) so the adaptive
// frame rate kicks in.
type simulatedWheel struct {
	pr   *io.PipeReader
	stop chan struct{}
}

func newSimulatedWheel() *simulatedWheel {
	pr, pw := io.Pipe()
	s := &simulatedWheel{pr: pr, stop: make(chan struct{})}
	go s.generate(pw)
	return s
}

func (s *simulatedWheel) generate(pw *io.PipeWriter) {
	defer pw.Close()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var straightUntil time.Time
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			if now.After(straightUntil) && rand.Intn(100) == 0 {
				straightUntil = now.Add(5 * time.Second)
			}
			axis := 0
			if now.After(straightUntil) {
				axis = rand.Intn(2*32767+1) - 32767
			}
			line := FormatUpdate(models.SignalUpdate{Name: models.SignalWheelAxis, Value: axis}) + "\n"
			if _, err := io.WriteString(pw, line); err != nil {
				return
			}
		}
	}
}

func (s *simulatedWheel) Read(p []byte) (int, error) { return s.pr.Read(p) }

func (s *simulatedWheel) Close() error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	return s.pr.Close()
}
