// Package export writes generated SQL scripts to a destination: a local
// directory, an S3-compatible bucket, or process memory.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JonMunkholm/datastore/internal/config"
)

// ErrInvalidName is returned for script names that are empty or contain a
// path separator.
var ErrInvalidName = errors.New("invalid script name")

// Sink stores a named script and reports where it went.
type Sink interface {
	Write(ctx context.Context, name string, r io.Reader, size int64) (location string, err error)
}

// NewFromConfig builds the sink selected by cfg.Mode.
func NewFromConfig(ctx context.Context, cfg config.ExportConfig) (Sink, error) {
	switch strings.ToLower(cfg.Mode) {
	case "", "local":
		return NewLocalSink(cfg.Path), nil
	case "memory":
		return NewMemorySink(), nil
	case "s3":
		return NewS3Sink(ctx, S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	}
	return nil, fmt.Errorf("unknown export mode: %s", cfg.Mode)
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// LocalSink writes scripts as files under a directory.
type LocalSink struct {
	dir string
}

// NewLocalSink returns a sink rooted at dir. The directory is created on
// first write.
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{dir: dir}
}

func (s *LocalSink) Write(_ context.Context, name string, r io.Reader, _ int64) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close script: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename script: %w", err)
	}
	return path, nil
}

// MemorySink keeps scripts in memory. Used in tests and when no durable
// destination is configured.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

func (s *MemorySink) Write(_ context.Context, name string, r io.Reader, _ int64) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}

	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()
	return "memory://" + name, nil
}

// Get returns a stored script.
func (s *MemorySink) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[name]
	return data, ok
}
