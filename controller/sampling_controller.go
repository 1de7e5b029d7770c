package controller

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"drive-logger/models"
	"drive-logger/utils"
)

// FrameSource yields one RGB frame per pull. interval is the spacing the
// sampling loop wants between this frame and the previous one.
type FrameSource interface {
	Next(ctx context.Context, interval time.Duration) (*models.Frame, error)
	Close() error
}

// SampleSink receives captured samples.
type SampleSink interface {
	Submit(ctx context.Context, s *models.Sample) error
}

// SamplingController is the coordinating capture loop:
//
//	acquire gate → next frame → snapshot controller → adjust fps →
//	submit sample → observe buttons → release gate
type SamplingController struct {
	frames FrameSource
	cache  *StateCache
	flow   *FlowController
	fps    *FpsAdjuster
	sink   SampleSink

	discardFirst bool

	seq       uint64
	captured  uint64
	discarded uint64
	errors    uint64
	interval  atomic.Int64
}

func NewSamplingController(frames FrameSource, cache *StateCache, flow *FlowController,
	fps *FpsAdjuster, sink SampleSink, discardFirst bool) *SamplingController {
	sc := &SamplingController{
		frames:       frames,
		cache:        cache,
		flow:         flow,
		fps:          fps,
		sink:         sink,
		discardFirst: discardFirst,
	}
	sc.interval.Store(int64(fps.DefaultInterval()))
	return sc
}

// Run loops until ctx ends or the frame source is exhausted. Cancellation and
// io.EOF are normal exits and return nil.
func (sc *SamplingController) Run(ctx context.Context) error {
	gate := sc.flow.Gate()
	utils.L().Info("sampling loop started (interval=%v, state=%s)", sc.Interval(), sc.flow.State())

	for {
		if err := gate.Acquire(ctx); err != nil {
			return sc.exit(nil)
		}
		err := sc.step(ctx)
		gate.Release()

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			utils.L().Info("frame source exhausted")
			return sc.exit(nil)
		case ctx.Err() != nil:
			return sc.exit(nil)
		default:
			return sc.exit(err)
		}
	}
}

func (sc *SamplingController) exit(err error) error {
	utils.L().Info("sampling loop stopped (captured=%d, discarded=%d, errors=%d)",
		atomic.LoadUint64(&sc.captured), atomic.LoadUint64(&sc.discarded), atomic.LoadUint64(&sc.errors))
	return err
}

// step runs one iteration while holding the gate. Frame errors are absorbed;
// only EOF, cancellation and a stopped sink end the loop.
func (sc *SamplingController) step(ctx context.Context) error {
	frame, err := sc.frames.Next(ctx, sc.Interval())
	if err != nil {
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return err
		}
		atomic.AddUint64(&sc.errors, 1)
		utils.L().Warn("frame source: %v", err)
		return nil
	}

	if sc.discardFirst {
		// The first frame after a wait-for-start may show the stale region.
		sc.discardFirst = false
		atomic.AddUint64(&sc.discarded, 1)
		utils.L().Debug("discarded first frame %d", frame.FrameID)
		return nil
	}

	state := sc.cache.Snapshot()
	sc.interval.Store(int64(sc.fps.Next(state.WheelAxis())))

	s := &models.Sample{Seq: atomic.AddUint64(&sc.seq, 1) - 1, Frame: frame, State: state}
	if err := sc.sink.Submit(ctx, s); err != nil {
		return err
	}
	atomic.AddUint64(&sc.captured, 1)

	sc.flow.Observe(state)
	return nil
}

// Interval is the interval the next pull will request.
func (sc *SamplingController) Interval() time.Duration {
	return time.Duration(sc.interval.Load())
}

// SamplingStats is a point-in-time view of the loop counters.
type SamplingStats struct {
	Captured  uint64
	Discarded uint64
	Errors    uint64
	Interval  time.Duration
}

func (sc *SamplingController) Stats() SamplingStats {
	return SamplingStats{
		Captured:  atomic.LoadUint64(&sc.captured),
		Discarded: atomic.LoadUint64(&sc.discarded),
		Errors:    atomic.LoadUint64(&sc.errors),
		Interval:  sc.Interval(),
	}
}
