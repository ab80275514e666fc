// internal/repository/repository.go
package repository

import (
	"context"

	"vdte/internal/models"
)

// Templates persists template definitions.
type Templates interface {
	Create(ctx context.Context, tpl *models.Template) error
	Get(ctx context.Context, id string) (*models.Template, error)
	UpdateState(ctx context.Context, id string, state models.TemplateState) error
	// LatestVersion returns the highest version recorded for a template
	// name, 0 when the name is unused.
	LatestVersion(ctx context.Context, name string) (int, error)
	// List returns the latest version of every template name, ordered by name.
	List(ctx context.Context) ([]*models.Template, error)
	// ListVersions returns every version recorded under a name, oldest first.
	ListVersions(ctx context.Context, name string) ([]*models.Template, error)
}

// Jobs persists render batches and their per-record jobs.
type Jobs interface {
	CreateBatch(ctx context.Context, batch *models.RenderBatch, jobs []*models.RenderJob) error
	UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error
	MarkSucceeded(ctx context.Context, jobID, assetID string) error
	MarkFailed(ctx context.Context, jobID, errorCode, errorMessage string) error
	UpdateBatchState(ctx context.Context, batchID string, state models.BatchState) error
	GetBatch(ctx context.Context, batchID string) (*models.RenderBatch, error)
}

// Assets persists asset metadata and reference counts. Ref-count mutations
// are atomic at the row level.
type Assets interface {
	Insert(ctx context.Context, asset *models.Asset) error
	Get(ctx context.Context, id string) (*models.Asset, error)
	GetByHash(ctx context.Context, hash string) (*models.Asset, error)
	IncrementRef(ctx context.Context, id string) error
	DecrementRef(ctx context.Context, id string) error
	// ListUnreferenced returns up to limit assets with a zero reference count.
	ListUnreferenced(ctx context.Context, limit int) ([]*models.Asset, error)
	Delete(ctx context.Context, id string) error
}
