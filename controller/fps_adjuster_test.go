package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"drive-logger/utils"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestAdjuster(enabled bool) (*FpsAdjuster, *fakeClock) {
	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := utils.FpsAdjustConfig{Enabled: enabled, StraightThreshold: 10, DurationMs: 2000, AdjustFactor: 2}
	return NewFpsAdjuster(10, cfg, clk.Now), clk
}

func TestFpsAdjusterHalvesAfterLongStraight(t *testing.T) {
	a, clk := newTestAdjuster(true)
	def := 100 * time.Millisecond

	assert.Equal(t, def, a.Next(0))
	clk.Advance(time.Second)
	assert.Equal(t, def, a.Next(3))
	clk.Advance(1500 * time.Millisecond)
	assert.Equal(t, 200*time.Millisecond, a.Next(-9))
	clk.Advance(time.Second)
	assert.Equal(t, 200*time.Millisecond, a.Next(0))
}

func TestFpsAdjusterTurnRestoresDefault(t *testing.T) {
	a, clk := newTestAdjuster(true)
	def := 100 * time.Millisecond

	a.Next(0)
	clk.Advance(3 * time.Second)
	assert.Equal(t, 200*time.Millisecond, a.Next(0))

	assert.Equal(t, def, a.Next(15))
	clk.Advance(10 * time.Second)
	assert.Equal(t, def, a.Next(-15))

	// Straight again: the clock restarts from here.
	assert.Equal(t, def, a.Next(0))
	clk.Advance(time.Second)
	assert.Equal(t, def, a.Next(0))
}

func TestFpsAdjusterDisabled(t *testing.T) {
	a, clk := newTestAdjuster(false)
	a.Next(0)
	clk.Advance(time.Minute)
	assert.Equal(t, 100*time.Millisecond, a.Next(0))
}

func TestFpsAdjusterReducedFloor(t *testing.T) {
	a := NewFpsAdjuster(1, utils.FpsAdjustConfig{Enabled: true, AdjustFactor: 4}, nil)
	assert.Equal(t, 1, a.ReducedFPS())
	assert.Equal(t, time.Second, a.DefaultInterval())
}
