// Package filestore keeps agent state as one file per key on the device.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"delivery-agent/internal/domain/delivery"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const fileSuffix = ".json"

type Store struct {
	fs  afero.Fs
	dir string
	log *zap.Logger
	mu  sync.Mutex
}

// New creates dir if needed. Writes go to a temp file first and are renamed
// into place so a crash never leaves a half-written blob behind.
func New(fsys afero.Fs, dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return &Store{fs: fsys, dir: dir, log: log}, nil
}

// NewOS is New over the real filesystem.
func NewOS(dir string, log *zap.Logger) (*Store, error) {
	return New(afero.NewOsFs(), dir, log)
}

func (s *Store) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid state key %q", key)
	}
	return filepath.Join(s.dir, key+fileSuffix), nil
}

func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, delivery.ErrStateNotFound
	}
	return data, err
}

func (s *Store) Save(_ context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := p + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o600); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, p); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	s.log.Debug("State saved", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
