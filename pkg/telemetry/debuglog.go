package telemetry

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/haasonsaas/hipreport/pkg/config"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// DebugLog is the per-run diagnostic sink. It is a no-op unless debug
// logging is enabled, and it never writes to stdout, which carries the report.
type DebugLog struct {
	Logger zerolog.Logger
	RunID  string
	file   *os.File
}

// OpenDebugLog truncates and opens the configured log file when debug is
// enabled. Callers must Close it.
func OpenDebugLog(cfg config.LoggingConfig) (*DebugLog, error) {
	runID := xid.New().String()
	if !cfg.Debug {
		return &DebugLog{Logger: zerolog.Nop(), RunID: runID}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	logger := newFileLogger(f, cfg.JSON).With().Str("run_id", runID).Logger()
	return &DebugLog{
		Logger: logger.Level(parseLevel(cfg.Level)),
		RunID:  runID,
		file:   f,
	}, nil
}

func newFileLogger(w io.Writer, json bool) zerolog.Logger {
	if json {
		return zerolog.New(w).With().Timestamp().Logger()
	}
	writer := zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}
	return zerolog.New(writer).With().Timestamp().Logger()
}

func parseLevel(raw string) zerolog.Level {
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw))); err == nil && raw != "" {
		return parsed
	}
	return zerolog.DebugLevel
}

func (d *DebugLog) Enabled() bool {
	return d.file != nil
}

// SpanLogger returns the logger spans should be exported to, or nil when
// debug logging is off.
func (d *DebugLog) SpanLogger() *zerolog.Logger {
	if !d.Enabled() {
		return nil
	}
	logger := d.Logger.With().Str("component", "otel").Logger()
	return &logger
}

func (d *DebugLog) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
