package utils

import (
	"bytes"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// LogLevel enumerates severity tiers.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

func (l LogLevel) charm() log.Level {
	switch l {
	case DEBUG:
		return log.DebugLevel
	case WARN:
		return log.WarnLevel
	case ERROR:
		return log.ErrorLevel
	case FATAL:
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// Logger is a concurrency-safe, levelled logger used across the pipeline.
type Logger struct {
	mu     sync.Mutex
	inner  *log.Logger
	file   *os.File
	stdout *crlfWriter
}

// crlfWriter expands \n to \r\n while the terminal is in raw mode, where
// output post-processing is off.
type crlfWriter struct {
	w   io.Writer
	raw atomic.Bool
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	if !c.raw.Load() {
		return c.w.Write(p)
	}
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

var (
	globalLogger *Logger
	logOnce      sync.Once
)

// InitLogger creates the singleton logger. Call once at startup.
func InitLogger(minLevel LogLevel, logFilePath string) *Logger {
	logOnce.Do(func() {
		stdout := &crlfWriter{w: os.Stdout}
		writers := []io.Writer{stdout}

		var f *os.File
		if logFilePath != "" {
			var err error
			f, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				writers = append(writers, f)
			} else {
				log.Warn("could not open log file", "path", logFilePath, "err", err)
			}
		}

		globalLogger = &Logger{
			inner: log.NewWithOptions(io.MultiWriter(writers...), log.Options{
				Level:           minLevel.charm(),
				ReportTimestamp: true,
				TimeFormat:      "2006-01-02 15:04:05.000",
			}),
			file:   f,
			stdout: stdout,
		}
	})
	return globalLogger
}

// L returns the global logger, creating a stdout-only DEBUG logger if
// InitLogger has not run yet.
func L() *Logger {
	return InitLogger(DEBUG, "")
}

// SetLevel changes the minimum level at runtime (e.g. --verbose).
func (l *Logger) SetLevel(lvl LogLevel) {
	l.inner.SetLevel(lvl.charm())
}

// SetRawTerminal switches stdout line endings to \r\n while a raw-mode
// terminal is active.
func (l *Logger) SetRawTerminal(raw bool) {
	l.stdout.raw.Store(raw)
}

// Close closes the log file, if any.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

func (l *Logger) Debug(f string, a ...any) { l.inner.Debugf(f, a...) }
func (l *Logger) Info(f string, a ...any)  { l.inner.Infof(f, a...) }
func (l *Logger) Warn(f string, a ...any)  { l.inner.Warnf(f, a...) }
func (l *Logger) Error(f string, a ...any) { l.inner.Errorf(f, a...) }

// Fatal logs and exits with status 1.
func (l *Logger) Fatal(f string, a ...any) { l.inner.Fatalf(f, a...) }
