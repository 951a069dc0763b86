package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin facade over zerolog so call sites stay stable if the
// backend changes. String fields pass through RedactSecrets before emission.
type Logger struct {
	zlog zerolog.Logger
	file *os.File
}

func NewLogger(out io.Writer) *Logger {
	zl := zerolog.New(out).With().Timestamp().Logger()
	return &Logger{zlog: zl}
}

// NewFileLogger writes JSON lines to a date-stamped file under dir,
// mirroring to a console writer when DEEPR_LOG_CONSOLE=1.
func NewFileLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	name := fmt.Sprintf("deepr_%s.log", time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var out io.Writer = file
	if os.Getenv("DEEPR_LOG_CONSOLE") == "1" {
		out = io.MultiWriter(file, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	zl := zerolog.New(out).With().Timestamp().Str("app", "deepr").Logger()
	return &Logger{zlog: zl, file: file}, nil
}

func DefaultLogDir() string {
	cfgPath := DefaultConfigPath()
	if cfgPath == "" {
		return filepath.Join(os.TempDir(), "deep-research", "logs")
	}
	return filepath.Join(filepath.Dir(cfgPath), "logs")
}

func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.emit(l.zlog.Info(), message, fields)
}

func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.emit(l.zlog.Warn(), message, fields)
}

func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.emit(l.zlog.Error(), message, fields)
}

func (l *Logger) emit(ev *zerolog.Event, message string, fields map[string]interface{}) {
	for k, v := range fields {
		if s, ok := v.(string); ok {
			ev = ev.Str(k, RedactSecrets(s))
			continue
		}
		ev = ev.Interface(k, v)
	}
	ev.Msg(message)
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
