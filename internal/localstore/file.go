package localstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Skotchmaster/perfume_shop/internal/logging"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

// FileStore keeps the guest cart in one JSON file.
type FileStore struct {
	path string
	log  *slog.Logger
}

func NewFileStore(path string, log *slog.Logger) *FileStore {
	if path == "" {
		path = RecordName + ".json"
	}
	if log == nil {
		log = logging.Discard()
	}
	return &FileStore{path: path, log: log}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Read(ctx context.Context) []models.CartLine {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.FromContext(ctx, s.log).Warn("guest_cart_read_error", "path", s.path, "error", err)
		}
		return []models.CartLine{}
	}
	return decodeRecord(ctx, s.log, data)
}

// Write replaces the file atomically: temp file in the same directory, then rename.
func (s *FileStore) Write(ctx context.Context, lines []models.CartLine) error {
	data, err := encodeRecord(lines)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create dir: %v", ErrStorage, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrStorage, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %v", ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrStorage, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrStorage, err)
	}

	logging.FromContext(ctx, s.log).Debug("guest_cart_written", "path", s.path, "lines", len(lines))
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove: %v", ErrStorage, err)
	}
	logging.FromContext(ctx, s.log).Debug("guest_cart_cleared", "path", s.path)
	return nil
}
