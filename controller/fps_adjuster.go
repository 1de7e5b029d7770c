package controller

import (
	"time"

	"drive-logger/utils"
)

// FpsAdjuster lowers the sampling rate during long straight-line driving.
//
// Driving is "straight" while |wheel-axis| < StraightThreshold. Once it has
// been straight for longer than Duration the rate drops to
// max(DefaultFPS/AdjustFactor, 1); any flip between straight and turning
// restores the default rate immediately.
type FpsAdjuster struct {
	defaultFPS int
	cfg        utils.FpsAdjustConfig
	now        func() time.Time

	started       bool
	straight      bool
	straightSince time.Time // zero while turning
}

// NewFpsAdjuster builds an adjuster; now may be nil for the wall clock.
func NewFpsAdjuster(defaultFPS int, cfg utils.FpsAdjustConfig, now func() time.Time) *FpsAdjuster {
	if now == nil {
		now = time.Now
	}
	if cfg.AdjustFactor < 1 {
		cfg.AdjustFactor = 1
	}
	return &FpsAdjuster{defaultFPS: defaultFPS, cfg: cfg, now: now}
}

// DefaultInterval is the interval at the configured rate.
func (a *FpsAdjuster) DefaultInterval() time.Duration {
	return utils.FPSInterval(a.defaultFPS)
}

// ReducedFPS is the rate used for long straight stretches.
func (a *FpsAdjuster) ReducedFPS() int {
	return max(a.defaultFPS/a.cfg.AdjustFactor, 1)
}

// Next takes the latest wheel-axis value and returns the interval to request
// for the next frame.
func (a *FpsAdjuster) Next(wheelAxis int) time.Duration {
	if !a.cfg.Enabled {
		return a.DefaultInterval()
	}

	now := a.now()
	straight := abs(wheelAxis) < a.cfg.StraightThreshold

	if !a.started || straight != a.straight {
		a.started = true
		a.straight = straight
		a.straightSince = time.Time{}
		if straight {
			a.straightSince = now
		}
		return a.DefaultInterval()
	}

	limit := time.Duration(a.cfg.DurationMs) * time.Millisecond
	if straight && now.Sub(a.straightSince) > limit {
		return utils.FPSInterval(a.ReducedFPS())
	}
	return a.DefaultInterval()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
