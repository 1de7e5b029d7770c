package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"drive-logger/controller"
	"drive-logger/models"
	"drive-logger/services/emit"
	"drive-logger/services/ingest"
	"drive-logger/utils"
	"drive-logger/views"
)

var cli struct {
	Config   string `help:"Path to capture.yaml (built-in defaults when empty)" type:"path"`
	RunID    string `name:"run-id" help:"Record into this run id, appending to an existing dataset"`
	FPS      int    `name:"fps" help:"Default sampling rate in frames per second"`
	Region   string `help:"Capture region x1,y1,x2,y2 or 'auto' for the primary display"`
	Wait     bool   `help:"Start paused; press the resume key or button to begin"`
	Verbose  bool   `short:"v" help:"Debug logging"`
	LogFile  string `name:"log-file" help:"Also write logs to this file"`
	Simulate bool   `help:"Synthetic frames and a simulated controller"`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("drive-logger"),
		kong.Description("Record screen frames paired with racing-wheel state into a training dataset."))

	// ── Config ───────────────────────────────────────────────────────
	cfg := utils.DefaultConfig()
	if cli.Config != "" {
		var err error
		cfg, err = utils.LoadConfig(cli.Config)
		kctx.FatalIfErrorf(err)
	}
	kctx.FatalIfErrorf(applyFlags(cfg))

	// ── Logger ───────────────────────────────────────────────────────
	logger := utils.InitLogger(utils.INFO, cfg.Log.File)
	defer logger.Close()
	if cfg.Log.Verbose {
		logger.SetLevel(utils.DEBUG)
	}

	if err := cfg.Validate(); err != nil {
		utils.L().Fatal("config: %v", err)
	}

	runID := cfg.Storage.RunID
	if runID == "" {
		runID = utils.NewRunID()
	}

	utils.L().Info("═══════════════════════════════════════════════════")
	utils.L().Info("  Drive-Logger  ·  Wheel + Screen Dataset Recorder")
	utils.L().Info("  run=%s  ·  GOMAXPROCS=%d  ·  PID=%d", runID, runtime.GOMAXPROCS(0), os.Getpid())
	utils.L().Info("═══════════════════════════════════════════════════")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ── Pipeline assembly ────────────────────────────────────────────
	//
	//  device ──► StateCache ◄── snapshot ── SamplingController ◄── FrameSource
	//  keyboard ─► FlowController ─ gate ──────────┘      │
	//                                          RecordingController
	//                                           │              │
	//                                    img/<run>_<ts>.jpg  <run>.csv

	frames, err := newFrameSource(cfg)
	if err != nil {
		utils.L().Fatal("frame source: %v", err)
	}
	defer frames.Close()

	recorder, err := controller.NewRecordingController(cfg, runID)
	if err != nil {
		utils.L().Fatal("init recording controller: %v", err)
	}

	cache := controller.NewStateCache()
	flow := controller.NewFlowController(controller.FlowConfigFrom(cfg))

	var publisher *emit.MQTTPublisher
	if cfg.Telemetry.MQTT.Broker != "" {
		publisher = emit.NewMQTTPublisher(cfg.Telemetry.MQTT, runID)
		if err := publisher.Connect(ctx); err != nil {
			utils.L().Warn("status publishing disabled: %v", err)
			publisher = nil
		} else {
			defer publisher.Disconnect()
		}
	}
	flow.OnChange = func(st controller.FlowState, sig models.ControlSignal) {
		if publisher == nil {
			return
		}
		if err := publisher.PublishState(st.String(), string(sig.Source)); err != nil {
			utils.L().Warn("publish state: %v", err)
		}
	}

	var device *ingest.DeviceReader
	if cfg.Controller.Source != "none" {
		device, err = ingest.NewDeviceReader(cfg.Controller)
		if err != nil {
			utils.L().Fatal("controller: %v", err)
		}
	}
	keyboard := ingest.NewKeyboardReader(cfg.Controls)
	keyboard.OnInterrupt = func() {
		utils.L().Info("interrupt from keyboard — shutting down…")
		cancel()
	}

	input := controller.NewInputController(device, keyboard, cache, flow)
	if err := input.Start(ctx); err != nil {
		utils.L().Fatal("start input: %v", err)
	}

	recorder.Start()
	go flow.Run(ctx)

	fps := controller.NewFpsAdjuster(cfg.Capture.DefaultFPS, cfg.FpsAdjust, nil)
	sampler := controller.NewSamplingController(frames, cache, flow, fps, recorder, cfg.Capture.WaitForStart)

	loopErr := make(chan error, 1)
	go func() { loopErr <- sampler.Run(ctx) }()

	if cfg.Capture.WaitForStart {
		utils.L().Info("waiting for start — press %q or %s to record", cfg.Controls.ResumeKey, cfg.Controls.ResumeButton)
	} else {
		utils.L().Info("recording — %q pauses, %q resumes, Ctrl+C stops", cfg.Controls.PauseKey, cfg.Controls.ResumeKey)
	}
	if publisher != nil {
		if err := publisher.PublishState(flow.State().String(), "startup"); err != nil {
			utils.L().Warn("publish state: %v", err)
		}
	}

	// ── Stats ticker ─────────────────────────────────────────────────
	statsTicker := time.NewTicker(time.Duration(cfg.Telemetry.StatsIntervalS) * time.Second)
	defer statsTicker.Stop()

	// ── Main event loop ──────────────────────────────────────────────
	var runErr error
loop:
	for {
		select {
		case sig := <-sigCh:
			utils.L().Info("received signal: %v — shutting down…", sig)
			break loop

		case <-ctx.Done():
			break loop

		case runErr = <-loopErr:
			loopErr = nil
			break loop

		case <-statsTicker.C:
			logStats(frames, sampler, recorder, input, publisher)
		}
	}

	// ── Shutdown ─────────────────────────────────────────────────────
	utils.L().Info("draining pipeline…")
	cancel()
	if loopErr != nil {
		runErr = <-loopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		utils.L().Error("sampling loop: %v", runErr)
	}

	if err := recorder.Stop(); err != nil {
		utils.L().Error("stop recorder: %v", err)
	}
	input.Wait()

	st := recorder.Stats()
	summary, err := views.InspectDataset(recorder.DatasetPath())
	if err != nil {
		utils.L().Warn("inspect dataset: %v", err)
	}
	utils.L().Info("session saved  (rows=%d, total_rows=%d, malformed=%d, dropped=%d)",
		st.RowsWritten, summary.Rows, summary.Malformed, st.Dropped)

	fmt.Println("\n✓ Drive-Logger finished. Dataset at:", recorder.DatasetPath())
	fmt.Println("  Images at:", recorder.ImageDir())
}

// applyFlags layers CLI overrides onto the loaded config.
func applyFlags(cfg *utils.Config) error {
	if cli.RunID != "" {
		cfg.Storage.RunID = cli.RunID
	}
	if cli.FPS != 0 {
		cfg.Capture.DefaultFPS = cli.FPS
	}
	switch cli.Region {
	case "":
	case "auto":
		cfg.Capture.AutoRegion = true
	default:
		r, err := utils.ParseRegion(cli.Region)
		if err != nil {
			return err
		}
		cfg.Capture.Region = r
		cfg.Capture.AutoRegion = false
	}
	if cli.Wait {
		cfg.Capture.WaitForStart = true
	}
	if cli.Verbose {
		cfg.Log.Verbose = true
	}
	if cli.LogFile != "" {
		cfg.Log.File = cli.LogFile
	}
	if cli.Simulate {
		cfg.Capture.Source = "synthetic"
		cfg.Controller.Source = "simulate"
	}
	return nil
}

func newFrameSource(cfg *utils.Config) (controller.FrameSource, error) {
	if cfg.Capture.Source == "synthetic" {
		return ingest.NewSyntheticReader(cfg.Capture.Synthetic), nil
	}
	r, err := ingest.NewScreenReader(cfg.Capture.Region, cfg.Capture.AutoRegion)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// grabCounter is implemented by the ingest frame sources.
type grabCounter interface {
	Stats() (grabbed, failed uint64)
}

func logStats(frames controller.FrameSource, sampler *controller.SamplingController,
	recorder *controller.RecordingController, input *controller.InputController, publisher *emit.MQTTPublisher) {
	ss := sampler.Stats()
	rs := recorder.Stats()

	utils.L().Info("── stats ─────────────────────────")
	if gc, ok := frames.(grabCounter); ok {
		grabbed, failed := gc.Stats()
		utils.L().Info("  frames   grabbed=%d  failed=%d", grabbed, failed)
	}
	utils.L().Info("  sampling captured=%d  discarded=%d  errors=%d  interval=%v",
		ss.Captured, ss.Discarded, ss.Errors, ss.Interval)
	utils.L().Info("  recorder images=%d  rows=%d  dropped=%d  queued=%d",
		rs.ImagesSaved, rs.RowsWritten, rs.Dropped, rs.Queued)
	input.LogStats()
	utils.L().Info("──────────────────────────────────")

	if publisher == nil {
		return
	}
	err := publisher.PublishStats(emit.StatsMessage{
		Captured:  ss.Captured,
		Rows:      rs.RowsWritten,
		Images:    rs.ImagesSaved,
		Discarded: ss.Discarded,
	})
	if err != nil {
		utils.L().Warn("publish stats: %v", err)
	}
}
