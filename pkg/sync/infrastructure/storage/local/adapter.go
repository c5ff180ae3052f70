// Package local provides a filesystem-backed audit sink: conflicts,
// resolutions, and batch history are appended as JSON lines to a single log
// file. It serves audit and debugging, not replay-based recovery.
package local

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/syncline/syncline/pkg/sync/core/port"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
	logger "github.com/syncline/syncline/pkg/sync/support/util/logger"
)

const moduleName = "storage.local"

// Config holds the settings of the local audit sink, decoded from the named
// audit entry of the engine configuration.
type Config struct {
	Type string `mapstructure:"type"`
	// Path is the audit log file. Parent directories are created as needed.
	Path string `mapstructure:"path"`
}

// DecodeConfig decodes the raw audit-sink settings map into a Config.
func DecodeConfig(raw map[string]interface{}) (Config, error) {
	var cfg Config
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return Config{}, exception.NewSyncErrorf(moduleName, "failed to decode audit sink settings", err)
	}
	if cfg.Path == "" {
		return Config{}, exception.NewSyncErrorf(moduleName, "audit sink path is required", exception.ErrValidation)
	}
	return cfg, nil
}

// LocalAuditSink appends entries to a JSON-lines file. Appends are
// serialized with a mutex; the file is opened in append mode so restarts
// continue the existing log.
type LocalAuditSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewLocalAuditSink opens (or creates) the audit log at cfg.Path.
func NewLocalAuditSink(cfg Config) (*LocalAuditSink, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, exception.NewSyncErrorf(moduleName, "failed to create audit log directory '%s'", dir, err)
		}
	}
	f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "failed to open audit log '%s'", cfg.Path, err)
	}
	logger.Infof("Audit log opened at '%s'.", cfg.Path)
	return &LocalAuditSink{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Append durably appends one entry to the log.
func (s *LocalAuditSink) Append(ctx context.Context, entry port.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(entry); err != nil {
		return exception.NewSyncErrorf(moduleName, "failed to append %s audit entry", entry.Kind, err)
	}
	return nil
}

// Close flushes and releases the sink.
func (s *LocalAuditSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		logger.Warnf("Audit log sync failed: %v", err)
	}
	return s.file.Close()
}

var _ port.AuditSink = (*LocalAuditSink)(nil)
