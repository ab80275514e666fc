// internal/storage/filesystem.go
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	stderrors "vdte/internal/common/errors"
	"vdte/internal/common/logger"
)

// FilesystemStore lays blobs out under root with two levels of hash-prefix
// fan-out, e.g. hash abcdef... lands at root/ab/cd/abcdef...
type FilesystemStore struct {
	root   string
	logger logger.Logger
}

// NewFilesystemStore creates the store and its root directory.
func NewFilesystemStore(root string, log logger.Logger) (*FilesystemStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FilesystemStore{root: root, logger: log}, nil
}

func (s *FilesystemStore) pathFor(hash string) (string, error) {
	if len(hash) < 4 {
		return "", fmt.Errorf("content hash too short: %q", hash)
	}
	return filepath.Join(s.root, hash[0:2], hash[2:4], hash), nil
}

// Write stores the payload via a temp file and an atomic rename so readers
// never observe a partial blob.
func (s *FilesystemStore) Write(ctx context.Context, hash string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", stderrors.NewStorageWriteFailedError(err)
	}

	path, err := s.pathFor(hash)
	if err != nil {
		return "", stderrors.NewStorageWriteFailedError(err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", stderrors.NewStorageWriteFailedError(err)
	}

	tmp, err := os.CreateTemp(dir, hash+".tmp-*")
	if err != nil {
		return "", stderrors.NewStorageWriteFailedError(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", stderrors.NewStorageWriteFailedError(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", stderrors.NewStorageWriteFailedError(err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", stderrors.NewStorageWriteFailedError(err)
	}

	s.logger.Debug("blob written", map[string]interface{}{
		"hash": hash,
		"size": len(payload),
	})

	return path, nil
}

func (s *FilesystemStore) Read(ctx context.Context, hash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, stderrors.NewStorageReadFailedError(err)
	}

	path, err := s.pathFor(hash)
	if err != nil {
		return nil, stderrors.NewStorageReadFailedError(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, stderrors.NewNotFoundError("blob", hash)
		}
		return nil, stderrors.NewStorageReadFailedError(err)
	}
	return data, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, hash string) error {
	if err := ctx.Err(); err != nil {
		return stderrors.NewStorageWriteFailedError(err)
	}

	path, err := s.pathFor(hash)
	if err != nil {
		return stderrors.NewStorageWriteFailedError(err)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return stderrors.NewStorageWriteFailedError(err)
	}
	return nil
}

func (s *FilesystemStore) Exists(ctx context.Context, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, stderrors.NewStorageReadFailedError(err)
	}

	path, err := s.pathFor(hash)
	if err != nil {
		return false, stderrors.NewStorageReadFailedError(err)
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, stderrors.NewStorageReadFailedError(err)
	}
	return true, nil
}
