// internal/asset/manager.go

// Package asset manages rendered output payloads: content-addressed
// storage, dedup through reference counting, and deferred reclamation of
// unreferenced assets.
package asset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	stderrors "vdte/internal/common/errors"
	"vdte/internal/common/logger"
	"vdte/internal/common/metrics"
	"vdte/internal/models"
	"vdte/internal/repository"
	"vdte/internal/storage"
)

const lockStripes = 64

// Manager owns asset lifecycle. Stores of identical payloads are
// serialized per content hash so concurrent duplicates never double-write
// a blob or lose a reference increment.
type Manager struct {
	assets repository.Assets
	blobs  storage.BlobStore
	logger logger.Logger
	locks  [lockStripes]sync.Mutex
}

func NewManager(assets repository.Assets, blobs storage.BlobStore, log logger.Logger) *Manager {
	return &Manager{
		assets: assets,
		blobs:  blobs,
		logger: log.WithFields(map[string]interface{}{"component": "asset-manager"}),
	}
}

func (m *Manager) lockFor(hash string) *sync.Mutex {
	var idx byte
	if len(hash) > 0 {
		idx = hash[0]
	}
	return &m.locks[int(idx)%lockStripes]
}

// Store persists the payload under its SHA-256 content hash. A hash hit
// increments the existing asset's reference count; a miss writes the blob
// and inserts fresh metadata with one reference, recording jobID as the
// creating job.
func (m *Manager) Store(ctx context.Context, payload *models.Payload, jobID string) (*models.Asset, error) {
	sum := sha256.Sum256(payload.Bytes)
	hash := hex.EncodeToString(sum[:])

	lock := m.lockFor(hash)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.assets.GetByHash(ctx, hash)
	if err == nil {
		if err := m.assets.IncrementRef(ctx, existing.ID); err != nil {
			return nil, err
		}
		existing.RefCount++
		metrics.AssetsDeduplicated.Inc()
		m.logger.Debug("asset deduplicated", map[string]interface{}{
			"assetId":  existing.ID,
			"hash":     hash,
			"refCount": existing.RefCount,
		})
		return existing, nil
	}
	if stderrors.CodeOf(err) != stderrors.ErrCodeNotFound {
		return nil, err
	}

	path, err := m.blobs.Write(ctx, hash, payload.Bytes)
	if err != nil {
		return nil, err
	}

	asset := &models.Asset{
		ID:             uuid.New().String(),
		ContentHash:    hash,
		Format:         string(payload.Format),
		CreatedByJobID: jobID,
		SizeBytes:      int64(len(payload.Bytes)),
		Width:          payload.Width,
		Height:         payload.Height,
		StoragePath:    path,
		RefCount:       1,
		CreatedAt:      time.Now().UTC(),
	}

	if err := m.assets.Insert(ctx, asset); err != nil {
		return nil, err
	}

	m.logger.Debug("asset stored", map[string]interface{}{
		"assetId": asset.ID,
		"hash":    hash,
		"size":    asset.SizeBytes,
	})

	return asset, nil
}

// Release drops one reference. At zero the asset becomes eligible for the
// sweeper; nothing is deleted here.
func (m *Manager) Release(ctx context.Context, assetID string) error {
	return m.assets.DecrementRef(ctx, assetID)
}

// Fetch returns asset metadata.
func (m *Manager) Fetch(ctx context.Context, assetID string) (*models.Asset, error) {
	return m.assets.Get(ctx, assetID)
}

// FetchPayload returns the stored payload bytes for an asset.
func (m *Manager) FetchPayload(ctx context.Context, assetID string) ([]byte, error) {
	asset, err := m.assets.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return m.blobs.Read(ctx, asset.ContentHash)
}
