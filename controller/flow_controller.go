package controller

import (
	"context"
	"sync"
	"time"

	"drive-logger/models"
	"drive-logger/utils"
)

// FlowState is the capture gating state.
type FlowState int

const (
	Running FlowState = iota
	Paused
)

func (s FlowState) String() string {
	if s == Paused {
		return "paused"
	}
	return "running"
}

// Gate is a single capture permit. The sampling loop holds it for the
// duration of one iteration; a paused FlowController holds it until resume.
type Gate struct {
	tok chan struct{}
}

func NewGate() *Gate {
	g := &Gate{tok: make(chan struct{}, 1)}
	g.tok <- struct{}{}
	return g
}

// Acquire blocks until the permit is free or ctx ends.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case <-g.tok:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns the permit. Releasing a free permit is a no-op.
func (g *Gate) Release() {
	select {
	case g.tok <- struct{}{}:
	default:
	}
}

// FlowConfig selects the initial state and which wheel buttons pause/resume.
type FlowConfig struct {
	WaitForStart bool
	PauseButton  models.SignalName
	ResumeButton models.SignalName
}

// FlowConfigFrom resolves the configured button names. Names were checked by
// Config.Validate; unknown ones fall back to the default buttons.
func FlowConfigFrom(cfg *utils.Config) FlowConfig {
	fc := FlowConfig{
		WaitForStart: cfg.Capture.WaitForStart,
		PauseButton:  models.SignalWheelButtonLeft1,
		ResumeButton: models.SignalWheelButtonRight1,
	}
	if s, ok := models.ParseSignalName(cfg.Controls.PauseButton); ok {
		fc.PauseButton = s
	}
	if s, ok := models.ParseSignalName(cfg.Controls.ResumeButton); ok {
		fc.ResumeButton = s
	}
	return fc
}

// FlowController gates the sampling loop between Running and Paused.
//
// Control signals from the keyboard and from wheel-button edge detection are
// appended to one unbounded queue and applied in arrival order by Run.
// Repeated pause or resume signals are no-ops.
type FlowController struct {
	cfg  FlowConfig
	gate *Gate

	applyMu sync.Mutex // serialises transitions

	mu         sync.Mutex
	state      FlowState
	lastPause  bool
	lastResume bool

	qmu   sync.Mutex
	queue []models.ControlSignal
	ready chan struct{}

	// OnChange, if set, is called after every state transition.
	OnChange func(FlowState, models.ControlSignal)
}

func NewFlowController(cfg FlowConfig) *FlowController {
	fc := &FlowController{
		cfg:   cfg,
		gate:  NewGate(),
		ready: make(chan struct{}, 1),
	}
	if cfg.WaitForStart {
		<-fc.gate.tok
		fc.state = Paused
	}
	return fc
}

// Gate returns the permit the sampling loop must hold while capturing.
func (fc *FlowController) Gate() *Gate { return fc.gate }

// State returns the current state.
func (fc *FlowController) State() FlowState {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.state
}

// Apply performs one transition. Pausing waits for the sampling loop to
// finish its current iteration.
func (fc *FlowController) Apply(ctx context.Context, sig models.ControlSignal) error {
	fc.applyMu.Lock()
	defer fc.applyMu.Unlock()

	switch sig.Kind {
	case models.ControlPause:
		if fc.State() == Paused {
			return nil
		}
		if err := fc.gate.Acquire(ctx); err != nil {
			return err
		}
		fc.setState(Paused)
	case models.ControlResume:
		if fc.State() == Running {
			return nil
		}
		fc.setState(Running)
		fc.gate.Release()
	default:
		return nil
	}

	utils.L().Info("capture %s (%s)", fc.State(), sig.Source)
	if fc.OnChange != nil {
		fc.OnChange(fc.State(), sig)
	}
	return nil
}

func (fc *FlowController) setState(s FlowState) {
	fc.mu.Lock()
	fc.state = s
	fc.mu.Unlock()
}

// Push enqueues a control signal. It never blocks.
func (fc *FlowController) Push(sig models.ControlSignal) {
	fc.qmu.Lock()
	fc.queue = append(fc.queue, sig)
	fc.qmu.Unlock()
	select {
	case fc.ready <- struct{}{}:
	default:
	}
}

func (fc *FlowController) pop(ctx context.Context) (models.ControlSignal, bool) {
	for {
		fc.qmu.Lock()
		if len(fc.queue) > 0 {
			sig := fc.queue[0]
			fc.queue = fc.queue[1:]
			fc.qmu.Unlock()
			return sig, true
		}
		fc.qmu.Unlock()

		select {
		case <-fc.ready:
		case <-ctx.Done():
			return models.ControlSignal{}, false
		}
	}
}

// Run applies queued signals in arrival order until ctx ends.
func (fc *FlowController) Run(ctx context.Context) {
	for {
		sig, ok := fc.pop(ctx)
		if !ok {
			return
		}
		if err := fc.Apply(ctx, sig); err != nil {
			return
		}
	}
}

// Forward pushes every signal from ch until it closes or ctx ends.
func (fc *FlowController) Forward(ctx context.Context, ch <-chan models.ControlSignal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			fc.Push(sig)
		}
	}
}

// Observe runs rising-edge detection on the pause/resume buttons of a
// snapshot and queues the resulting signals.
func (fc *FlowController) Observe(s models.ControllerState) {
	pause := s.Pressed(fc.cfg.PauseButton)
	resume := s.Pressed(fc.cfg.ResumeButton)

	fc.mu.Lock()
	pauseEdge := pause && !fc.lastPause
	resumeEdge := resume && !fc.lastResume
	fc.lastPause, fc.lastResume = pause, resume
	fc.mu.Unlock()

	if pauseEdge {
		fc.Push(models.ControlSignal{Kind: models.ControlPause, Source: models.SourceButton})
	}
	if resumeEdge {
		fc.Push(models.ControlSignal{Kind: models.ControlResume, Source: models.SourceButton})
	}
}

// WatchButtons observes snapshots while paused, when the sampling loop is
// blocked and cannot feed them itself.
func (fc *FlowController) WatchButtons(ctx context.Context, snapshot func() models.ControllerState, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if fc.State() == Paused {
				fc.Observe(snapshot())
			}
		}
	}
}
