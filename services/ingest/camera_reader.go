package ingest

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync/atomic"
	"time"

	"github.com/kbinani/screenshot"

	"drive-logger/models"
	"drive-logger/utils"
)

// pacer spaces consecutive grabs by the interval requested on each pull.
type pacer struct {
	last time.Time
}

// wait blocks until interval has elapsed since the previous grab.
func (p *pacer) wait(ctx context.Context, interval time.Duration) error {
	if !p.last.IsZero() {
		if d := time.Until(p.last.Add(interval)); d > 0 {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	p.last = time.Now()
	return ctx.Err()
}

// ScreenReader grabs a rectangular region of the local display.
// Only the sampling loop pulls from it, so it is not safe for concurrent use.
type ScreenReader struct {
	rect    image.Rectangle
	pace    pacer
	grabbed uint64
	failed  uint64
}

// NewScreenReader captures region, or the bounds of the primary display when
// auto is set.
func NewScreenReader(region utils.Region, auto bool) (*ScreenReader, error) {
	rect := image.Rect(region.X1, region.Y1, region.X2, region.Y2)
	if auto {
		if screenshot.NumActiveDisplays() < 1 {
			return nil, fmt.Errorf("auto region: no active display")
		}
		rect = screenshot.GetDisplayBounds(0)
	}
	if rect.Empty() {
		return nil, fmt.Errorf("empty capture region %v", rect)
	}
	utils.L().Info("screen reader ready (region=%v, %dx%d)", rect, rect.Dx(), rect.Dy())
	return &ScreenReader{rect: rect}, nil
}

// Next waits out the requested interval, then grabs one RGB frame.
func (r *ScreenReader) Next(ctx context.Context, interval time.Duration) (*models.Frame, error) {
	if err := r.pace.wait(ctx, interval); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(r.rect)
	if err != nil {
		atomic.AddUint64(&r.failed, 1)
		return nil, fmt.Errorf("screen grab: %w", err)
	}
	f := models.NewFrameFromRGBA(img, time.Now())
	f.FrameID = atomic.AddUint64(&r.grabbed, 1) - 1
	return f, nil
}

func (r *ScreenReader) Close() error { return nil }

// Stats returns (grabbed, failed) counts atomically.
func (r *ScreenReader) Stats() (uint64, uint64) {
	return atomic.LoadUint64(&r.grabbed), atomic.LoadUint64(&r.failed)
}

// SyntheticReader generates gradient frames of a fixed size. It stands in for
// the screen when simulating, and ends with io.EOF after limit frames when
// limit > 0.
type SyntheticReader struct {
	cfg     utils.SyntheticConfig
	pace    pacer
	grabbed uint64
}

func NewSyntheticReader(cfg utils.SyntheticConfig) *SyntheticReader {
	return &SyntheticReader{cfg: cfg}
}

func (r *SyntheticReader) Next(ctx context.Context, interval time.Duration) (*models.Frame, error) {
	seq := atomic.LoadUint64(&r.grabbed)
	if r.cfg.Limit > 0 && seq >= uint64(r.cfg.Limit) {
		return nil, io.EOF
	}
	if err := r.pace.wait(ctx, interval); err != nil {
		return nil, err
	}

	w, h := r.cfg.Width, r.cfg.Height
	pix := make([]byte, w*h*3)
	shift := byte(seq)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			pix[i] = byte(x) + shift
			pix[i+1] = byte(y) + shift
			pix[i+2] = shift
		}
	}
	atomic.AddUint64(&r.grabbed, 1)
	return &models.Frame{FrameID: seq, Width: w, Height: h, Pix: pix, CapturedAt: time.Now()}, nil
}

func (r *SyntheticReader) Close() error { return nil }

// Stats returns (grabbed, failed) counts atomically.
func (r *SyntheticReader) Stats() (uint64, uint64) {
	return atomic.LoadUint64(&r.grabbed), 0
}
