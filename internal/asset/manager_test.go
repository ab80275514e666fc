// internal/asset/manager_test.go
package asset

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "vdte/internal/common/errors"
	"vdte/internal/common/logger"
	"vdte/internal/models"
	"vdte/internal/repository"
	"vdte/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *repository.MemoryAssets, storage.BlobStore) {
	t.Helper()
	blobs, err := storage.NewFilesystemStore(t.TempDir(), logger.NewNoOpLogger())
	require.NoError(t, err)
	assets := repository.NewMemoryAssets()
	return NewManager(assets, blobs, logger.NewTestLogger(t)), assets, blobs
}

func pngPayload(body string) *models.Payload {
	return &models.Payload{
		Bytes:  []byte(body),
		Format: models.FormatPNG,
		Width:  10,
		Height: 10,
	}
}

func TestManager_StoreAndFetch(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	asset, err := m.Store(ctx, pngPayload("payload-one"), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, asset.RefCount)
	assert.Len(t, asset.ContentHash, 64)

	fetched, err := m.Fetch(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, asset.ContentHash, fetched.ContentHash)

	payload, err := m.FetchPayload(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload-one"), payload)
}

func TestManager_Fetch_NotFound(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Fetch(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeNotFound, stderrors.CodeOf(err))
}

func TestManager_Dedup(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Store(ctx, pngPayload("same-bytes"), "job-1")
	require.NoError(t, err)
	second, err := m.Store(ctx, pngPayload("same-bytes"), "job-2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.RefCount)

	stored, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.RefCount)
}

func TestManager_Dedup_Concurrent(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	ids := make([]string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			asset, err := m.Store(ctx, pngPayload("concurrent-bytes"), fmt.Sprintf("job-%d", i))
			require.NoError(t, err)
			ids[i] = asset.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	stored, err := repo.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, n, stored.RefCount)
}

func TestManager_Release_NeverDeletes(t *testing.T) {
	m, repo, blobs := newTestManager(t)
	ctx := context.Background()

	asset, err := m.Store(ctx, pngPayload("releasable"), "job-1")
	require.NoError(t, err)

	require.NoError(t, m.Release(ctx, asset.ID))

	// Zero references, but the asset and its blob survive until a sweep.
	stored, err := repo.Get(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.RefCount)

	exists, err := blobs.Exists(ctx, asset.ContentHash)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSweeper_ReclaimsUnreferenced(t *testing.T) {
	m, repo, blobs := newTestManager(t)
	ctx := context.Background()

	kept, err := m.Store(ctx, pngPayload("kept"), "job-1")
	require.NoError(t, err)
	doomed, err := m.Store(ctx, pngPayload("doomed"), "job-2")
	require.NoError(t, err)
	require.NoError(t, m.Release(ctx, doomed.ID))

	sweeper := NewSweeper(m, repo, blobs, logger.NewTestLogger(t), time.Minute, 10)
	sweeper.Sweep(ctx)

	_, err = repo.Get(ctx, doomed.ID)
	assert.Equal(t, stderrors.ErrCodeNotFound, stderrors.CodeOf(err))
	exists, err := blobs.Exists(ctx, doomed.ContentHash)
	require.NoError(t, err)
	assert.False(t, exists)

	// Referenced assets are untouched.
	_, err = repo.Get(ctx, kept.ID)
	assert.NoError(t, err)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	m, repo, blobs := newTestManager(t)

	sweeper := NewSweeper(m, repo, blobs, logger.NewTestLogger(t), 5*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
