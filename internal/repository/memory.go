// internal/repository/memory.go
package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	stderrors "vdte/internal/common/errors"
	"vdte/internal/models"
)

// MemoryTemplates is an in-memory Templates implementation for tests and
// single-node use.
type MemoryTemplates struct {
	mu        sync.RWMutex
	templates map[string]*models.Template
}

func NewMemoryTemplates() *MemoryTemplates {
	return &MemoryTemplates{templates: make(map[string]*models.Template)}
}

func (r *MemoryTemplates) Create(ctx context.Context, tpl *models.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tpl
	r.templates[tpl.ID] = &cp
	return nil
}

func (r *MemoryTemplates) Get(ctx context.Context, id string) (*models.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.templates[id]
	if !ok {
		return nil, stderrors.NewNotFoundError("template", id)
	}
	cp := *tpl
	return &cp, nil
}

func (r *MemoryTemplates) UpdateState(ctx context.Context, id string, state models.TemplateState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl, ok := r.templates[id]
	if !ok {
		return stderrors.NewNotFoundError("template", id)
	}
	tpl.State = state
	return nil
}

func (r *MemoryTemplates) LatestVersion(ctx context.Context, name string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	max := 0
	for _, tpl := range r.templates {
		if tpl.Name == name && tpl.Version > max {
			max = tpl.Version
		}
	}
	return max, nil
}

func (r *MemoryTemplates) List(ctx context.Context) ([]*models.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := make(map[string]*models.Template)
	for _, tpl := range r.templates {
		if cur, ok := latest[tpl.Name]; !ok || tpl.Version > cur.Version {
			latest[tpl.Name] = tpl
		}
	}

	out := make([]*models.Template, 0, len(latest))
	for _, tpl := range latest {
		cp := *tpl
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryTemplates) ListVersions(ctx context.Context, name string) ([]*models.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Template
	for _, tpl := range r.templates {
		if tpl.Name == name {
			cp := *tpl
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// MemoryJobs is an in-memory Jobs implementation.
type MemoryJobs struct {
	mu      sync.RWMutex
	batches map[string]*models.RenderBatch
	jobs    map[string]*models.RenderJob
}

func NewMemoryJobs() *MemoryJobs {
	return &MemoryJobs{
		batches: make(map[string]*models.RenderBatch),
		jobs:    make(map[string]*models.RenderJob),
	}
}

func (r *MemoryJobs) CreateBatch(ctx context.Context, batch *models.RenderBatch, jobs []*models.RenderJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bcp := *batch
	r.batches[batch.ID] = &bcp
	for _, job := range jobs {
		jcp := *job
		r.jobs[job.ID] = &jcp
	}
	return nil
}

func (r *MemoryJobs) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return stderrors.NewNotFoundError("job", jobID)
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryJobs) MarkSucceeded(ctx context.Context, jobID, assetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return stderrors.NewNotFoundError("job", jobID)
	}
	job.Status = models.JobSucceeded
	job.AssetID = assetID
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryJobs) MarkFailed(ctx context.Context, jobID, errorCode, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return stderrors.NewNotFoundError("job", jobID)
	}
	job.Status = models.JobFailed
	job.ErrorCode = errorCode
	job.ErrorMessage = errorMessage
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryJobs) UpdateBatchState(ctx context.Context, batchID string, state models.BatchState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return stderrors.NewNotFoundError("batch", batchID)
	}
	batch.State = state
	return nil
}

func (r *MemoryJobs) GetBatch(ctx context.Context, batchID string) (*models.RenderBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return nil, stderrors.NewNotFoundError("batch", batchID)
	}
	cp := *batch
	return &cp, nil
}

// MemoryAssets is an in-memory Assets implementation.
type MemoryAssets struct {
	mu     sync.RWMutex
	assets map[string]*models.Asset
	byHash map[string]string
}

func NewMemoryAssets() *MemoryAssets {
	return &MemoryAssets{
		assets: make(map[string]*models.Asset),
		byHash: make(map[string]string),
	}
}

func (r *MemoryAssets) Insert(ctx context.Context, asset *models.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *asset
	r.assets[asset.ID] = &cp
	r.byHash[asset.ContentHash] = asset.ID
	return nil
}

func (r *MemoryAssets) Get(ctx context.Context, id string) (*models.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	asset, ok := r.assets[id]
	if !ok {
		return nil, stderrors.NewNotFoundError("asset", id)
	}
	cp := *asset
	return &cp, nil
}

func (r *MemoryAssets) GetByHash(ctx context.Context, hash string) (*models.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byHash[hash]
	if !ok {
		return nil, stderrors.NewNotFoundError("asset", hash)
	}
	cp := *r.assets[id]
	return &cp, nil
}

func (r *MemoryAssets) IncrementRef(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[id]
	if !ok {
		return stderrors.NewNotFoundError("asset", id)
	}
	asset.RefCount++
	return nil
}

func (r *MemoryAssets) DecrementRef(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[id]
	if !ok {
		return stderrors.NewNotFoundError("asset", id)
	}
	if asset.RefCount > 0 {
		asset.RefCount--
	}
	return nil
}

func (r *MemoryAssets) ListUnreferenced(ctx context.Context, limit int) ([]*models.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Asset
	for _, asset := range r.assets {
		if asset.RefCount == 0 {
			cp := *asset
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MemoryAssets) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if asset, ok := r.assets[id]; ok {
		delete(r.byHash, asset.ContentHash)
		delete(r.assets, id)
	}
	return nil
}
