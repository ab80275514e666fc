// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vdte/internal/asset"
	stderrors "vdte/internal/common/errors"
	"vdte/internal/common/logger"
	"vdte/internal/compositor"
	"vdte/internal/models"
	"vdte/internal/repository"
	"vdte/internal/storage"
	"vdte/internal/template"
)

type harness struct {
	orch      *Orchestrator
	templates *template.Store
	jobs      *repository.MemoryJobs
	assets    *repository.MemoryAssets
	cancel    context.CancelFunc
}

func newHarness(t *testing.T, cfg Config, blobs storage.BlobStore) *harness {
	t.Helper()
	log := logger.NewTestLogger(t)

	if blobs == nil {
		var err error
		blobs, err = storage.NewFilesystemStore(t.TempDir(), logger.NewNoOpLogger())
		require.NoError(t, err)
	}

	assetRepo := repository.NewMemoryAssets()
	jobRepo := repository.NewMemoryJobs()
	templates := template.NewStore(repository.NewMemoryTemplates(), nil, log, time.Minute)
	manager := asset.NewManager(assetRepo, blobs, log)
	comp := compositor.New(8 << 20)

	orch := New(cfg, templates, comp, manager, jobRepo, log)

	ctx, cancel := context.WithCancel(context.Background())
	orch.Start(ctx)
	t.Cleanup(func() {
		cancel()
		orch.Shutdown()
	})

	return &harness{
		orch:      orch,
		templates: templates,
		jobs:      jobRepo,
		assets:    assetRepo,
		cancel:    cancel,
	}
}

func (h *harness) createTemplate(t *testing.T) string {
	t.Helper()
	id, err := h.templates.Create(context.Background(), &template.Definition{
		Name:         "badge",
		OutputFormat: models.FormatPNG,
		Width:        120,
		Height:       60,
		Placeholders: []models.Placeholder{
			{Name: "title", Type: models.PlaceholderText, Region: models.Region{X: 5, Y: 5, Width: 110, Height: 20}},
			{Name: "score", Type: models.PlaceholderNumber, Region: models.Region{X: 5, Y: 30, Width: 60, Height: 20}},
		},
	})
	require.NoError(t, err)
	return id
}

func record(title string, score float64) models.DataRecord {
	return models.DataRecord{
		"title": models.TextValue(title),
		"score": models.NumberValue(score),
	}
}

func waitDone(t *testing.T, orch *Orchestrator, batchID string) *models.BatchReport {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		report, err := orch.GetStatus(batchID)
		require.NoError(t, err)
		if report.Done() {
			return report
		}
		select {
		case <-deadline:
			t.Fatalf("batch %s did not finish", batchID)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func defaultConfig() Config {
	return Config{
		Workers:        4,
		QueueDepth:     16,
		ComposeTimeout: 5 * time.Second,
		StoreRetries:   3,
		StoreBackoff:   time.Millisecond,
	}
}

func TestSubmitBatch_AllSucceed(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	tplID := h.createTemplate(t)

	records := make([]models.DataRecord, 8)
	for i := range records {
		records[i] = record(fmt.Sprintf("person %d", i), float64(i))
	}

	batchID, err := h.orch.SubmitBatch(context.Background(), tplID, records)
	require.NoError(t, err)

	report := waitDone(t, h.orch, batchID)
	assert.Equal(t, models.BatchCompleted, report.State)
	assert.Equal(t, 8, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.False(t, report.Degraded)

	for i, result := range report.Results {
		assert.Equal(t, i, result.Index)
		assert.Equal(t, models.JobSucceeded, result.Status)
		assert.NotEmpty(t, result.AssetID)
	}
}

func TestSubmitBatch_NoRecords(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	tplID := h.createTemplate(t)

	batchID, err := h.orch.SubmitBatch(context.Background(), tplID, nil)
	require.NoError(t, err)

	// Nothing to schedule: the batch is terminal immediately, in memory
	// and in the repository.
	report, err := h.orch.GetStatus(batchID)
	require.NoError(t, err)
	assert.True(t, report.Done())
	assert.Equal(t, models.BatchCompleted, report.State)
	assert.Empty(t, report.Results)
	assert.Zero(t, report.Succeeded)
	assert.Zero(t, report.Failed)

	batch, err := h.jobs.GetBatch(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, batch.State)

	// Cancelling a finished batch stays a no-op.
	assert.NoError(t, h.orch.Cancel(batchID))
}

func TestBatchReport_EvictedAfterRetention(t *testing.T) {
	cfg := defaultConfig()
	cfg.BatchRetention = 20 * time.Millisecond
	h := newHarness(t, cfg, nil)
	tplID := h.createTemplate(t)

	batchID, err := h.orch.SubmitBatch(context.Background(), tplID, []models.DataRecord{record("x", 1)})
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for {
		_, err := h.orch.GetStatus(batchID)
		if err != nil {
			assert.Equal(t, stderrors.ErrCodeNotFound, stderrors.CodeOf(err))
			break
		}
		select {
		case <-deadline:
			t.Fatal("terminal batch report was never evicted")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The persisted batch outlives the in-memory report.
	batch, err := h.jobs.GetBatch(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, batch.State)
}

func TestSubmitBatch_UnknownTemplate(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)

	_, err := h.orch.SubmitBatch(context.Background(), "missing", []models.DataRecord{record("x", 1)})
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeNotFound, stderrors.CodeOf(err))
}

func TestSubmitBatch_RetiredTemplate(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	tplID := h.createTemplate(t)
	require.NoError(t, h.templates.Retire(context.Background(), tplID))

	_, err := h.orch.SubmitBatch(context.Background(), tplID, []models.DataRecord{record("x", 1)})
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeTemplateRetired, stderrors.CodeOf(err))
}

func TestSubmitBatch_PartialFailure(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	tplID := h.createTemplate(t)

	records := []models.DataRecord{
		record("ok one", 1),
		{"title": models.TextValue("no score")}, // missing "score"
		record("ok two", 3),
	}

	batchID, err := h.orch.SubmitBatch(context.Background(), tplID, records)
	require.NoError(t, err)

	report := waitDone(t, h.orch, batchID)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	assert.Equal(t, models.JobSucceeded, report.Results[0].Status)
	assert.Equal(t, models.JobFailed, report.Results[1].Status)
	assert.Equal(t, string(stderrors.ErrCodeMissingVariable), report.Results[1].ErrorCode)
	assert.Equal(t, models.JobSucceeded, report.Results[2].Status)
}

func TestSubmitBatch_IndexOrderUnderConcurrency(t *testing.T) {
	cfg := defaultConfig()
	cfg.Workers = 8
	h := newHarness(t, cfg, nil)
	tplID := h.createTemplate(t)

	const n = 40
	records := make([]models.DataRecord, n)
	for i := range records {
		records[i] = record(fmt.Sprintf("r%d", i), float64(i))
	}

	batchID, err := h.orch.SubmitBatch(context.Background(), tplID, records)
	require.NoError(t, err)

	report := waitDone(t, h.orch, batchID)
	require.Len(t, report.Results, n)
	for i, result := range report.Results {
		assert.Equal(t, i, result.Index)
	}
}

func TestSubmitBatch_DedupAcrossJobs(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)
	tplID := h.createTemplate(t)

	// Identical records compose to identical bytes and share one asset.
	records := []models.DataRecord{
		record("same", 1),
		record("same", 1),
		record("same", 1),
	}

	batchID, err := h.orch.SubmitBatch(context.Background(), tplID, records)
	require.NoError(t, err)

	report := waitDone(t, h.orch, batchID)
	require.Equal(t, 3, report.Succeeded)

	assetID := report.Results[0].AssetID
	for _, result := range report.Results {
		assert.Equal(t, assetID, result.AssetID)
	}

	stored, err := h.assets.Get(context.Background(), assetID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.RefCount)
}

func TestCancel_QueuedJobsFail(t *testing.T) {
	cfg := defaultConfig()
	cfg.Workers = 1
	cfg.QueueDepth = 1
	h := newHarness(t, cfg, nil)
	tplID := h.createTemplate(t)

	const n = 30
	records := make([]models.DataRecord, n)
	for i := range records {
		records[i] = record(fmt.Sprintf("r%d", i), float64(i))
	}

	batchID, err := h.orch.SubmitBatch(context.Background(), tplID, records)
	require.NoError(t, err)

	require.NoError(t, h.orch.Cancel(batchID))

	report := waitDone(t, h.orch, batchID)
	assert.Equal(t, models.BatchCancelled, report.State)
	assert.Positive(t, report.Failed)

	for _, result := range report.Results {
		switch result.Status {
		case models.JobSucceeded:
			// Completed before the cancel; its asset stays valid.
			assert.NotEmpty(t, result.AssetID)
		case models.JobFailed:
			assert.Equal(t, string(stderrors.ErrCodeBatchCancelled), result.ErrorCode)
		default:
			t.Fatalf("non-terminal status %s after cancel", result.Status)
		}
	}
}

func TestCancel_UnknownBatch(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)

	err := h.orch.Cancel("missing")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeNotFound, stderrors.CodeOf(err))
}

func TestGetStatus_UnknownBatch(t *testing.T) {
	h := newHarness(t, defaultConfig(), nil)

	_, err := h.orch.GetStatus("missing")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeNotFound, stderrors.CodeOf(err))
}

// failingBlobs rejects every write with a retryable storage error.
type failingBlobs struct{}

func (failingBlobs) Write(ctx context.Context, hash string, payload []byte) (string, error) {
	return "", stderrors.NewStorageWriteFailedError(fmt.Errorf("disk unavailable"))
}

func (failingBlobs) Read(ctx context.Context, hash string) ([]byte, error) {
	return nil, stderrors.NewStorageReadFailedError(fmt.Errorf("disk unavailable"))
}

func (failingBlobs) Delete(ctx context.Context, hash string) error { return nil }

func (failingBlobs) Exists(ctx context.Context, hash string) (bool, error) { return false, nil }

func TestPersistFailure_RetriesThenDegrades(t *testing.T) {
	cfg := defaultConfig()
	cfg.StoreRetries = 2
	h := newHarness(t, cfg, failingBlobs{})
	tplID := h.createTemplate(t)

	records := []models.DataRecord{
		record("a", 1),
		record("b", 2),
		record("c", 3),
	}

	batchID, err := h.orch.SubmitBatch(context.Background(), tplID, records)
	require.NoError(t, err)

	report := waitDone(t, h.orch, batchID)
	assert.Equal(t, 3, report.Failed)
	assert.True(t, report.Degraded)

	for _, result := range report.Results {
		assert.Equal(t, string(stderrors.ErrCodeStorageWriteFailed), result.ErrorCode)
	}
}
