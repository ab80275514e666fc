// internal/asset/sweeper.go
package asset

import (
	"context"
	"time"

	"vdte/internal/common/logger"
	"vdte/internal/common/metrics"
	"vdte/internal/repository"
	"vdte/internal/storage"
)

// Sweeper reclaims zero-reference assets in the background, decoupled from
// the request path. Blob bytes are removed before metadata so an
// interrupted sweep never leaves metadata pointing at nothing.
type Sweeper struct {
	manager   *Manager
	assets    repository.Assets
	blobs     storage.BlobStore
	logger    logger.Logger
	interval  time.Duration
	batchSize int
}

func NewSweeper(manager *Manager, assets repository.Assets, blobs storage.BlobStore, log logger.Logger, interval time.Duration, batchSize int) *Sweeper {
	return &Sweeper{
		manager:   manager,
		assets:    assets,
		blobs:     blobs,
		logger:    log.WithFields(map[string]interface{}{"component": "asset-sweeper"}),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", map[string]interface{}{
		"interval":  s.interval.String(),
		"batchSize": s.batchSize,
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped", nil)
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep reclaims one batch of unreferenced assets.
func (s *Sweeper) Sweep(ctx context.Context) {
	candidates, err := s.assets.ListUnreferenced(ctx, s.batchSize)
	if err != nil {
		s.logger.Warn("sweep listing failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	swept := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return
		}
		if s.sweepOne(ctx, candidate.ID, candidate.ContentHash) {
			swept++
		}
	}

	if swept > 0 {
		s.logger.Info("sweep completed", map[string]interface{}{
			"swept": swept,
		})
	}
}

// sweepOne deletes a single candidate under the hash lock, re-checking the
// reference count so a concurrent dedup hit cannot lose its asset.
func (s *Sweeper) sweepOne(ctx context.Context, id, hash string) bool {
	lock := s.manager.lockFor(hash)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.assets.Get(ctx, id)
	if err != nil || current.RefCount > 0 {
		return false
	}

	if err := s.blobs.Delete(ctx, hash); err != nil {
		s.logger.Warn("blob delete failed", map[string]interface{}{
			"assetId": id,
			"hash":    hash,
			"error":   err.Error(),
		})
		return false
	}

	if err := s.assets.Delete(ctx, id); err != nil {
		s.logger.Warn("asset metadata delete failed", map[string]interface{}{
			"assetId": id,
			"error":   err.Error(),
		})
		return false
	}

	metrics.AssetsSwept.Inc()
	return true
}
