// internal/orchestrator/orchestrator.go

// Package orchestrator drives batches of render jobs through a bounded
// worker pool. Jobs are independent units: one record's failure never
// aborts its siblings, and reporting always follows submission order.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vdte/internal/asset"
	stderrors "vdte/internal/common/errors"
	"vdte/internal/common/logger"
	"vdte/internal/common/metrics"
	"vdte/internal/compositor"
	"vdte/internal/models"
	"vdte/internal/repository"
	"vdte/internal/resolver"
	"vdte/internal/template"
)

// degradedThreshold is the number of storage-failed jobs in one batch that
// raises the batch-level Degraded flag.
const degradedThreshold = 2

// Config bounds the pool and the persisting retry policy. BatchRetention
// is how long a terminal batch report stays queryable before eviction.
type Config struct {
	Workers        int
	QueueDepth     int
	ComposeTimeout time.Duration
	StoreRetries   int
	StoreBackoff   time.Duration
	BatchRetention time.Duration
}

// Orchestrator schedules render jobs onto a fixed worker pool with a
// bounded queue. Backpressure is applied by queueing, never by spawning
// unbounded goroutines.
type Orchestrator struct {
	cfg        Config
	templates  *template.Store
	compositor *compositor.Compositor
	assets     *asset.Manager
	jobs       repository.Jobs
	logger     logger.Logger

	queue   chan *task
	wg      sync.WaitGroup
	feeders sync.WaitGroup

	mu      sync.RWMutex
	batches map[string]*batchState
}

type task struct {
	job   *models.RenderJob
	tpl   *models.Template
	batch *batchState
}

// batchState is the in-memory view of a running batch. results is indexed
// by submission index and never reordered.
type batchState struct {
	id string

	mu              sync.Mutex
	state           models.BatchState
	results         []models.JobResult
	remaining       int
	cancelled       bool
	finalized       bool
	storageFailures int
}

func New(cfg Config, templates *template.Store, comp *compositor.Compositor, assets *asset.Manager, jobs repository.Jobs, log logger.Logger) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = cfg.Workers
	}
	if cfg.BatchRetention <= 0 {
		cfg.BatchRetention = time.Hour
	}
	return &Orchestrator{
		cfg:        cfg,
		templates:  templates,
		compositor: comp,
		assets:     assets,
		jobs:       jobs,
		logger:     log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		queue:      make(chan *task, cfg.QueueDepth),
		batches:    make(map[string]*batchState),
	}
}

// Start launches the worker pool. Workers run until the context is
// cancelled and the queue drains.
func (o *Orchestrator) Start(ctx context.Context) {
	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}
	o.logger.Info("worker pool started", map[string]interface{}{
		"workers":    o.cfg.Workers,
		"queueDepth": o.cfg.QueueDepth,
	})
}

// Shutdown waits for in-flight feeders and workers after the Start context
// has been cancelled.
func (o *Orchestrator) Shutdown() {
	o.feeders.Wait()
	close(o.queue)
	o.wg.Wait()
	o.logger.Info("worker pool stopped", nil)
}

// SubmitBatch creates one index-tagged job per record and feeds them to the
// pool. Unknown templates are rejected with NOT_FOUND, retired ones with
// TEMPLATE_RETIRED.
func (o *Orchestrator) SubmitBatch(ctx context.Context, templateID string, records []models.DataRecord) (string, error) {
	tpl, err := o.templates.Get(ctx, templateID)
	if err != nil {
		return "", err
	}
	if tpl.IsRetired() {
		return "", stderrors.NewTemplateRetiredError(templateID)
	}

	now := time.Now().UTC()
	batchID := uuid.New().String()

	batch := &models.RenderBatch{
		ID:         batchID,
		TemplateID: templateID,
		State:      models.BatchRunning,
		JobCount:   len(records),
		CreatedAt:  now,
	}

	jobs := make([]*models.RenderJob, len(records))
	for i, record := range records {
		jobs[i] = &models.RenderJob{
			ID:         uuid.New().String(),
			BatchID:    batchID,
			TemplateID: templateID,
			Index:      i,
			Status:     models.JobPending,
			Record:     record,
			CreatedAt:  now,
		}
	}

	if err := o.jobs.CreateBatch(ctx, batch, jobs); err != nil {
		return "", err
	}

	state := &batchState{
		id:        batchID,
		state:     models.BatchRunning,
		results:   make([]models.JobResult, len(records)),
		remaining: len(records),
	}
	for i := range state.results {
		state.results[i] = models.JobResult{Index: i, Status: models.JobPending}
	}

	o.mu.Lock()
	o.batches[batchID] = state
	o.mu.Unlock()

	metrics.BatchesSubmitted.Inc()
	o.logger.Info("batch submitted", map[string]interface{}{
		"batchId":    batchID,
		"templateId": templateID,
		"jobs":       len(records),
	})

	// A batch with no records has nothing to schedule and is complete
	// the moment it is created.
	if len(records) == 0 {
		o.finalizeIfDone(state)
		return batchID, nil
	}

	// One feeder per batch keeps SubmitBatch non-blocking while the
	// bounded queue applies backpressure.
	o.feeders.Add(1)
	go func() {
		defer o.feeders.Done()
		for _, job := range jobs {
			if state.isCancelled() {
				o.failJob(state, job, stderrors.NewBatchCancelledError(batchID))
				continue
			}
			o.queue <- &task{job: job, tpl: tpl, batch: state}
		}
	}()

	return batchID, nil
}

// GetStatus returns a non-blocking snapshot of a batch, results ordered by
// submission index.
func (o *Orchestrator) GetStatus(batchID string) (*models.BatchReport, error) {
	o.mu.RLock()
	state, ok := o.batches[batchID]
	o.mu.RUnlock()
	if !ok {
		return nil, stderrors.NewNotFoundError("batch", batchID)
	}
	return state.snapshot(), nil
}

// Cancel stops a batch without preempting running jobs: queued jobs fail
// with BATCH_CANCELLED, in-flight jobs finish, completed assets stay valid.
func (o *Orchestrator) Cancel(batchID string) error {
	o.mu.RLock()
	state, ok := o.batches[batchID]
	o.mu.RUnlock()
	if !ok {
		return stderrors.NewNotFoundError("batch", batchID)
	}

	state.mu.Lock()
	alreadyDone := state.remaining == 0
	if !alreadyDone {
		state.cancelled = true
		state.state = models.BatchCancelled
	}
	state.mu.Unlock()

	if alreadyDone {
		return nil
	}

	metrics.BatchesCancelled.Inc()
	if err := o.jobs.UpdateBatchState(context.Background(), batchID, models.BatchCancelled); err != nil {
		o.logger.Warn("batch state persist failed", map[string]interface{}{
			"batchId": batchID,
			"error":   err.Error(),
		})
	}

	o.logger.Info("batch cancelled", map[string]interface{}{
		"batchId": batchID,
	})
	return nil
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain without processing so feeders never block forever.
			for t := range o.queue {
				o.failJob(t.batch, t.job, stderrors.NewBatchCancelledError(t.batch.id))
			}
			return
		case t, ok := <-o.queue:
			if !ok {
				return
			}
			o.process(ctx, t)
		}
	}
}

func (o *Orchestrator) process(ctx context.Context, t *task) {
	if t.batch.isCancelled() {
		o.failJob(t.batch, t.job, stderrors.NewBatchCancelledError(t.batch.id))
		return
	}

	metrics.RenderJobsActive.Inc()
	defer metrics.RenderJobsActive.Dec()

	bound, err := o.resolveStage(ctx, t)
	if err != nil {
		o.failJob(t.batch, t.job, err)
		return
	}

	payload, err := o.composeStage(ctx, t, bound)
	if err != nil {
		o.failJob(t.batch, t.job, err)
		return
	}

	storedAsset, err := o.persistStage(ctx, t, payload)
	if err != nil {
		t.batch.noteStorageFailure()
		o.failJob(t.batch, t.job, err)
		return
	}

	o.completeJob(t.batch, t.job, storedAsset.ID)
}

func (o *Orchestrator) resolveStage(ctx context.Context, t *task) (models.BoundVariables, error) {
	o.setStatus(ctx, t, models.JobResolving)
	start := time.Now()
	defer func() {
		metrics.RenderStageDuration.WithLabelValues("resolving").Observe(time.Since(start).Seconds())
	}()
	return resolver.Resolve(t.tpl, t.job.Record)
}

func (o *Orchestrator) composeStage(ctx context.Context, t *task, bound models.BoundVariables) (*models.Payload, error) {
	o.setStatus(ctx, t, models.JobCompositing)
	start := time.Now()
	defer func() {
		metrics.RenderStageDuration.WithLabelValues("compositing").Observe(time.Since(start).Seconds())
	}()

	composeCtx := ctx
	if o.cfg.ComposeTimeout > 0 {
		var cancel context.CancelFunc
		composeCtx, cancel = context.WithTimeout(ctx, o.cfg.ComposeTimeout)
		defer cancel()
	}
	return o.compositor.Compose(composeCtx, t.tpl, bound)
}

// persistStage retries transient storage failures with exponential backoff
// before giving up on the job.
func (o *Orchestrator) persistStage(ctx context.Context, t *task, payload *models.Payload) (*models.Asset, error) {
	o.setStatus(ctx, t, models.JobPersisting)
	start := time.Now()
	defer func() {
		metrics.RenderStageDuration.WithLabelValues("persisting").Observe(time.Since(start).Seconds())
	}()

	attempts := o.cfg.StoreRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	backoff := o.cfg.StoreBackoff
	for attempt := 1; attempt <= attempts; attempt++ {
		stored, err := o.assets.Store(ctx, payload, t.job.ID)
		if err == nil {
			return stored, nil
		}
		lastErr = err

		if !stderrors.IsRetryableErrorCode(stderrors.CodeOf(err)) || attempt == attempts {
			break
		}

		o.logger.Warn("persist attempt failed, retrying", map[string]interface{}{
			"jobId":   t.job.ID,
			"attempt": attempt,
			"backoff": backoff.String(),
			"error":   err.Error(),
		})

		select {
		case <-ctx.Done():
			return nil, stderrors.NewStorageWriteFailedError(ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (o *Orchestrator) setStatus(ctx context.Context, t *task, status models.JobStatus) {
	t.batch.setResult(t.job.Index, models.JobResult{Index: t.job.Index, Status: status})
	if err := o.jobs.UpdateStatus(ctx, t.job.ID, status); err != nil {
		o.logger.Warn("job status persist failed", map[string]interface{}{
			"jobId":  t.job.ID,
			"status": string(status),
			"error":  err.Error(),
		})
	}
}

func (o *Orchestrator) completeJob(state *batchState, job *models.RenderJob, assetID string) {
	state.finish(models.JobResult{
		Index:   job.Index,
		Status:  models.JobSucceeded,
		AssetID: assetID,
	})

	metrics.RenderJobsCompleted.WithLabelValues(job.TemplateID).Inc()
	if err := o.jobs.MarkSucceeded(context.Background(), job.ID, assetID); err != nil {
		o.logger.Warn("job success persist failed", map[string]interface{}{
			"jobId": job.ID,
			"error": err.Error(),
		})
	}

	o.finalizeIfDone(state)
}

func (o *Orchestrator) failJob(state *batchState, job *models.RenderJob, err error) {
	stdErr := stderrors.AsStandard(err)
	state.finish(models.JobResult{
		Index:        job.Index,
		Status:       models.JobFailed,
		ErrorCode:    string(stdErr.Code),
		ErrorMessage: stdErr.Message,
	})

	metrics.RenderJobsFailed.WithLabelValues(job.TemplateID, string(stdErr.Code)).Inc()
	if perr := o.jobs.MarkFailed(context.Background(), job.ID, string(stdErr.Code), stdErr.Message); perr != nil {
		o.logger.Warn("job failure persist failed", map[string]interface{}{
			"jobId": job.ID,
			"error": perr.Error(),
		})
	}

	o.logger.Info("job failed", map[string]interface{}{
		"jobId":     job.ID,
		"batchId":   job.BatchID,
		"index":     job.Index,
		"errorCode": string(stdErr.Code),
	})

	o.finalizeIfDone(state)
}

func (o *Orchestrator) finalizeIfDone(state *batchState) {
	state.mu.Lock()
	if state.remaining > 0 || state.finalized {
		state.mu.Unlock()
		return
	}
	state.finalized = true
	completed := state.state == models.BatchRunning
	if completed {
		state.state = models.BatchCompleted
	}
	id := state.id
	state.mu.Unlock()

	if completed {
		if err := o.jobs.UpdateBatchState(context.Background(), id, models.BatchCompleted); err != nil {
			o.logger.Warn("batch state persist failed", map[string]interface{}{
				"batchId": id,
				"error":   err.Error(),
			})
		}
	}

	// The report stays queryable for the retention window, then the
	// in-memory entry is dropped. The persisted rows remain.
	time.AfterFunc(o.cfg.BatchRetention, func() {
		o.mu.Lock()
		delete(o.batches, id)
		o.mu.Unlock()
	})
}

func (b *batchState) isCancelled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelled
}

func (b *batchState) setResult(index int, result models.JobResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.results[index].Status.IsTerminal() {
		b.results[index] = result
	}
}

func (b *batchState) finish(result models.JobResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.results[result.Index].Status.IsTerminal() {
		return
	}
	b.results[result.Index] = result
	b.remaining--
}

func (b *batchState) noteStorageFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.storageFailures++
}

func (b *batchState) snapshot() *models.BatchReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	report := &models.BatchReport{
		BatchID:  b.id,
		State:    b.state,
		Results:  make([]models.JobResult, len(b.results)),
		InFlight: b.remaining,
		Degraded: b.storageFailures >= degradedThreshold,
	}
	copy(report.Results, b.results)

	for _, r := range b.results {
		switch r.Status {
		case models.JobSucceeded:
			report.Succeeded++
		case models.JobFailed:
			report.Failed++
		}
	}
	return report
}
