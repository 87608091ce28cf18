package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes snapshots under a directory on disk. Intended for
// development runs without cloud credentials.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

// Put writes the snapshot to <root>/<key> and returns the absolute path.
// The write goes through a temp file so a crash never leaves a truncated
// snapshot under the final name.
func (s *LocalStore) Put(_ context.Context, key string, data []byte) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return path, nil
}

func (s *LocalStore) Close() error { return nil }
