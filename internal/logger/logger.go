package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type Fields map[string]interface{}

// Log wraps logrus.Logger so callers can attach a component field.
type Log struct {
	*logrus.Logger
	// closer is the file output opened by Configure, if any.
	closer io.Closer
}

type Entry struct {
	*logrus.Entry
}

var globalLogger = New()

func New() *Log {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level := os.Getenv("LOG_LEVEL")
	if lvl, err := logrus.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return &Log{Logger: logger}
}

func GetLogger() *Log {
	return globalLogger
}

func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField("component", component)}
}

func (l *Log) WithFields(fields Fields) *Entry {
	return &Entry{Entry: l.Logger.WithFields(logrus.Fields(fields))}
}

func (l *Log) WithError(err error) *Entry {
	return &Entry{Entry: l.Logger.WithError(err)}
}

func (e *Entry) WithComponent(component string) *Entry {
	return &Entry{Entry: e.Entry.WithField("component", component)}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(logrus.Fields(fields))}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}

// Configure applies level, format and output settings. LOG_LEVEL in the
// environment wins over level. A file output with maxAge > 0 is rotated.
func (l *Log) Configure(level, format, output string, maxAge int) error {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level '%s'", level)
	}
	l.SetLevel(lvl)

	callerPrettyfier := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	switch strings.ToLower(format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: callerPrettyfier,
		})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	default:
		return fmt.Errorf("invalid log format '%s'", format)
	}

	switch output {
	case "stderr", "":
		return l.swapOutput(os.Stderr, nil)
	case "stdout":
		return l.swapOutput(os.Stdout, nil)
	}

	if maxAge > 0 {
		rotating := &lumberjack.Logger{
			Filename: output,
			MaxAge:   maxAge,
			MaxSize:  100,
			Compress: true,
		}
		return l.swapOutput(rotating, rotating)
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file '%s': %w", output, err)
	}
	return l.swapOutput(file, file)
}

// swapOutput switches to w and then closes the file output it replaces.
func (l *Log) swapOutput(w io.Writer, closer io.Closer) error {
	previous := l.closer
	l.Logger.SetOutput(w)
	l.closer = closer
	if previous == nil {
		return nil
	}
	if err := previous.Close(); err != nil {
		return fmt.Errorf("close previous log output: %w", err)
	}
	return nil
}

// Close releases a file output and falls back to stderr.
func (l *Log) Close() error {
	return l.swapOutput(os.Stderr, nil)
}

// LogStage records how many rows a pipeline stage produced and how long it took.
func LogStage(entry *Entry, stage string, rows int, duration time.Duration) {
	entry.WithFields(Fields{
		"stage":       stage,
		"rows":        rows,
		"duration_ms": float64(duration.Nanoseconds()) / 1e6,
	}).Info("stage complete")
}

func (l *Log) SetOutput(output io.Writer) {
	_ = l.swapOutput(output, nil)
}
