package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"mailroom/internal/platform/config"
	"mailroom/internal/platform/logger"
)

// LogFailureSink writes failure records to the structured log
type LogFailureSink struct {
	Log logger.Logger
}

// Notify implements FailureSink
func (s *LogFailureSink) Notify(_ context.Context, rec FailureRecord) error {
	s.Log.Warn().
		Str("stage", rec.Stage).
		Str("error_code", rec.ErrorCode).
		Str("message", rec.Message).
		Interface("context", rec.Context).
		Time("failed_at", rec.Timestamp).
		Msg("intake failure")
	return nil
}

// JSONLFailureSink appends one JSON line per failure to a local file.
// Suitable for dev and as a dead-letter trail when no collector is wired
type JSONLFailureSink struct {
	Path string

	mu sync.Mutex
}

// Notify implements FailureSink
func (s *JSONLFailureSink) Notify(_ context.Context, rec FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}

// FailureSinkFromConfig selects the failure sink backend.
// FAILURE_SINK_BACKEND: log (default) | file; file uses FAILURE_SINK_PATH
func FailureSinkFromConfig(cfg config.Conf, log logger.Logger) FailureSink {
	backend := cfg.MayEnum("BACKEND", "log", "log", "file")
	if backend == "file" {
		path := cfg.MayString("PATH", "data/failures.jsonl")
		return &JSONLFailureSink{Path: path}
	}
	return &LogFailureSink{Log: log}
}
