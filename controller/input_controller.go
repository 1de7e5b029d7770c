package controller

import (
	"context"
	"sync"
	"time"

	"drive-logger/models"
	"drive-logger/services/ingest"
	"drive-logger/utils"
)

// InputController owns the operator-facing readers: the controller device,
// whose updates are drained into the state cache, and the keyboard, whose
// signals are forwarded to the flow controller.
type InputController struct {
	device   *ingest.DeviceReader
	keyboard *ingest.KeyboardReader

	cache *StateCache
	flow  *FlowController

	buttonPoll time.Duration
	wg         sync.WaitGroup
}

// NewInputController wires readers to their consumers. device is nil when no
// controller is attached and keyboard is nil when there is no operator terminal.
func NewInputController(device *ingest.DeviceReader, keyboard *ingest.KeyboardReader,
	cache *StateCache, flow *FlowController) *InputController {
	return &InputController{
		device:     device,
		keyboard:   keyboard,
		cache:      cache,
		flow:       flow,
		buttonPoll: 20 * time.Millisecond,
	}
}

// Start opens the device and launches the drain, forward and button-watch
// goroutines. It fails only when the device cannot be opened.
func (ic *InputController) Start(ctx context.Context) error {
	if ic.device != nil {
		if err := ic.device.Start(ctx); err != nil {
			return err
		}
		ic.wg.Add(1)
		go func() {
			defer ic.wg.Done()
			ic.drainDevice(ctx)
		}()
	}

	if ic.keyboard != nil {
		ic.keyboard.Start(ctx)
		ic.wg.Add(1)
		go func() {
			defer ic.wg.Done()
			ic.flow.Forward(ctx, ic.keyboard.Out)
		}()
	}

	ic.wg.Add(1)
	go func() {
		defer ic.wg.Done()
		ic.flow.WatchButtons(ctx, ic.cache.Snapshot, ic.buttonPoll)
	}()

	utils.L().Info("input controller started (device=%v, keyboard=%v)", ic.device != nil, ic.keyboard != nil)
	return nil
}

// drainDevice applies every decoded update to the cache, in arrival order.
func (ic *InputController) drainDevice(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-ic.device.Out:
			if !ok {
				utils.L().Info("controller stream closed; cache holds last values")
				return
			}
			ic.cache.Apply(u)
		}
	}
}

// Wait blocks until every goroutine started by Start has returned.
func (ic *InputController) Wait() { ic.wg.Wait() }

// LogStats prints reader counters.
func (ic *InputController) LogStats() {
	if ic.device != nil {
		p, u, m := ic.device.Stats()
		utils.L().Info("  controller produced=%d  unknown=%d  malformed=%d  applied=%d",
			p, u, m, ic.cache.Updates())
	}
	s := ic.cache.Snapshot()
	utils.L().Info("  wheel-axis=%d  gas=%d  brake=%d  state=%s",
		s.WheelAxis(), s.Get(models.SignalGas), s.Get(models.SignalBrake), ic.flow.State())
}
