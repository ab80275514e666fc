// internal/engine/engine.go

// Package engine ties the template store, orchestrator and asset manager
// into one entry point for the routing layer. Inputs arrive already
// authenticated and request-validated.
package engine

import (
	"context"

	"vdte/internal/asset"
	"vdte/internal/common/logger"
	"vdte/internal/models"
	"vdte/internal/orchestrator"
	"vdte/internal/template"
)

// Engine is the public surface of the render service.
type Engine struct {
	templates    *template.Store
	orchestrator *orchestrator.Orchestrator
	assets       *asset.Manager
	logger       logger.Logger
}

func New(templates *template.Store, orch *orchestrator.Orchestrator, assets *asset.Manager, log logger.Logger) *Engine {
	return &Engine{
		templates:    templates,
		orchestrator: orch,
		assets:       assets,
		logger:       log.WithFields(map[string]interface{}{"component": "engine"}),
	}
}

// CreateTemplate validates and stores a new immutable template.
func (e *Engine) CreateTemplate(ctx context.Context, def *template.Definition) (string, error) {
	return e.templates.Create(ctx, def)
}

// GetTemplate returns a template by id, retired ones included.
func (e *Engine) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	return e.templates.Get(ctx, id)
}

// ListTemplates returns the latest version of every template lineage.
func (e *Engine) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	return e.templates.List(ctx)
}

// ListTemplateVersions returns every version recorded under a template
// name, oldest first.
func (e *Engine) ListTemplateVersions(ctx context.Context, name string) ([]*models.Template, error) {
	return e.templates.ListVersions(ctx, name)
}

// RetireTemplate moves a template out of service for new batches.
func (e *Engine) RetireTemplate(ctx context.Context, id string) error {
	return e.templates.Retire(ctx, id)
}

// SubmitBatch renders one job per record against the template and returns
// the batch handle.
func (e *Engine) SubmitBatch(ctx context.Context, templateID string, records []models.DataRecord) (string, error) {
	return e.orchestrator.SubmitBatch(ctx, templateID, records)
}

// GetStatus returns a non-blocking snapshot of a batch.
func (e *Engine) GetStatus(batchID string) (*models.BatchReport, error) {
	return e.orchestrator.GetStatus(batchID)
}

// CancelBatch stops scheduling a batch's remaining jobs.
func (e *Engine) CancelBatch(batchID string) error {
	return e.orchestrator.Cancel(batchID)
}

// FetchAsset returns asset metadata.
func (e *Engine) FetchAsset(ctx context.Context, assetID string) (*models.Asset, error) {
	return e.assets.Fetch(ctx, assetID)
}

// FetchAssetPayload returns the rendered bytes of an asset.
func (e *Engine) FetchAssetPayload(ctx context.Context, assetID string) ([]byte, error) {
	return e.assets.FetchPayload(ctx, assetID)
}

// ReleaseAsset drops one reference to an asset; reclamation is deferred to
// the sweeper.
func (e *Engine) ReleaseAsset(ctx context.Context, assetID string) error {
	return e.assets.Release(ctx, assetID)
}
