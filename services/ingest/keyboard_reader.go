package ingest

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"drive-logger/models"
	"drive-logger/utils"
)

const ctrlC = 0x03

// KeyboardReader turns operator key presses into pause/resume signals.
// When stdin is a terminal it is switched to raw mode so single key presses
// arrive without Enter; Ctrl+C then arrives as a byte and is reported through
// OnInterrupt instead of SIGINT.
type KeyboardReader struct {
	in          io.Reader
	fd          int
	raw         bool
	pauseKey    byte
	resumeKey   byte
	Out         chan models.ControlSignal
	OnInterrupt func()
}

func NewKeyboardReader(cfg utils.ControlsConfig) *KeyboardReader {
	return NewKeyboardReaderFrom(os.Stdin, cfg)
}

// NewKeyboardReaderFrom reads keys from in. Raw mode is only attempted when in
// is a terminal *os.File.
func NewKeyboardReaderFrom(in io.Reader, cfg utils.ControlsConfig) *KeyboardReader {
	k := &KeyboardReader{
		in:        in,
		fd:        -1,
		pauseKey:  cfg.PauseKey[0],
		resumeKey: cfg.ResumeKey[0],
		Out:       make(chan models.ControlSignal, 16),
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		k.fd = int(f.Fd())
	}
	return k
}

// Start launches the read loop. The terminal is restored when ctx ends or
// input is exhausted.
func (k *KeyboardReader) Start(ctx context.Context) {
	var restore func()
	if k.fd >= 0 {
		state, err := term.MakeRaw(k.fd)
		if err != nil {
			utils.L().Warn("keyboard: raw mode unavailable, falling back to line input: %v", err)
		} else {
			k.raw = true
			utils.L().SetRawTerminal(true)
			restore = func() {
				_ = term.Restore(k.fd, state)
				utils.L().SetRawTerminal(false)
			}
		}
	}

	go k.run(ctx, restore)
	utils.L().Info("keyboard reader started (resume=%q, pause=%q, raw=%v)",
		string(k.resumeKey), string(k.pauseKey), k.raw)
}

func (k *KeyboardReader) run(ctx context.Context, restore func()) {
	defer close(k.Out)
	if restore != nil {
		defer restore()
		go func() {
			<-ctx.Done()
			restore()
		}()
	}

	br := bufio.NewReader(k.in)
	for {
		var key byte
		if k.raw {
			b, err := br.ReadByte()
			if err != nil {
				return
			}
			key = b
		} else {
			line, err := br.ReadString('\n')
			line = strings.TrimSpace(line)
			if line != "" {
				key = line[0]
			}
			if err != nil && line == "" {
				return
			}
		}
		if !k.handle(ctx, key) {
			return
		}
	}
}

// handle maps one key; it returns false when the loop should stop.
func (k *KeyboardReader) handle(ctx context.Context, key byte) bool {
	var sig models.ControlSignal
	switch key {
	case k.resumeKey:
		sig = models.ControlSignal{Kind: models.ControlResume, Source: models.SourceKeyboard}
	case k.pauseKey:
		sig = models.ControlSignal{Kind: models.ControlPause, Source: models.SourceKeyboard}
	case ctrlC:
		if k.OnInterrupt != nil {
			k.OnInterrupt()
		}
		return false
	default:
		return ctx.Err() == nil
	}

	select {
	case k.Out <- sig:
		return true
	case <-ctx.Done():
		return false
	}
}
