package controller

import (
	"sync/atomic"

	"drive-logger/models"
)

// StateCache holds the latest value of every controller signal.
//
// Each signal is an independent atomic slot: writes are last-write-wins per
// signal and a snapshot never sees a torn value. A snapshot is not a frame
// boundary; it may mix values written before and after a concurrent update
// of another signal.
type StateCache struct {
	values  [models.NumSignals]atomic.Int64
	updates atomic.Uint64
}

// NewStateCache returns a cache with every signal at its neutral value 0.
func NewStateCache() *StateCache {
	return &StateCache{}
}

// Update overwrites one signal. Unknown names are ignored.
func (c *StateCache) Update(name models.SignalName, value int) {
	if !name.Valid() {
		return
	}
	c.values[name].Store(int64(value))
	c.updates.Add(1)
}

// Apply is Update for a decoded SignalUpdate.
func (c *StateCache) Apply(u models.SignalUpdate) { c.Update(u.Name, u.Value) }

// Snapshot copies all signals into an immutable state.
func (c *StateCache) Snapshot() models.ControllerState {
	var vals [models.NumSignals]int
	for i := range c.values {
		vals[i] = int(c.values[i].Load())
	}
	return models.NewControllerState(vals)
}

// Updates returns how many updates have been applied.
func (c *StateCache) Updates() uint64 { return c.updates.Load() }
