// Package localstore provides client-local token and redirect-intent stores.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/target/mmk-console/internal/ports"
)

var _ ports.TokenStore = (*FileStore)(nil)

// DefaultDir returns the per-user directory the console keeps its token in.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "mmk-console"), nil
}

// FileStore persists the bearer token as a single file readable only by the owner.
// Writes are atomic: the token is written to a temp file and renamed into place.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore keeping the token at dir/key.
func NewFileStore(dir, key string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("token store directory is required")
	}
	if strings.TrimSpace(key) == "" || strings.ContainsAny(key, `/\`) {
		return nil, fmt.Errorf("invalid token store key %q", key)
	}
	return &FileStore{path: filepath.Join(dir, key)}, nil
}

// Path returns the file the token is stored in.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context) (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}

func (s *FileStore) Set(_ context.Context, token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.WriteString(token); err != nil {
		return errors.Join(fmt.Errorf("write token: %w", err), tmp.Close(), os.Remove(tmpName))
	}
	if err = tmp.Chmod(0o600); err != nil {
		return errors.Join(fmt.Errorf("chmod token file: %w", err), tmp.Close(), os.Remove(tmpName))
	}
	if err = tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("close token file: %w", err), os.Remove(tmpName))
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return errors.Join(fmt.Errorf("replace token file: %w", err), os.Remove(tmpName))
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
