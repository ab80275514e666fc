// internal/repository/postgres.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	stderrors "vdte/internal/common/errors"
	"vdte/internal/models"
)

// PostgresTemplates implements Templates over database/sql.
type PostgresTemplates struct {
	db *sql.DB
}

func NewPostgresTemplates(db *sql.DB) *PostgresTemplates {
	return &PostgresTemplates{db: db}
}

func (r *PostgresTemplates) Create(ctx context.Context, tpl *models.Template) error {
	placeholdersJSON, err := json.Marshal(tpl.Placeholders)
	if err != nil {
		return fmt.Errorf("failed to marshal placeholders: %w", err)
	}
	subTypesJSON, err := json.Marshal(tpl.SubTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal sub types: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO templates (
			id, name, sub_types, version, previous_id, state, output_format,
			width, height, background, placeholders, created_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12)`,
		tpl.ID,
		tpl.Name,
		subTypesJSON,
		tpl.Version,
		tpl.PreviousID,
		tpl.State,
		tpl.OutputFormat,
		tpl.Width,
		tpl.Height,
		tpl.Background,
		placeholdersJSON,
		tpl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("template insert failed: %w", err)
	}
	return nil
}

const templateColumns = `id, name, sub_types, version, previous_id, state, output_format, width, height, background, placeholders, created_at`

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row scanner) (*models.Template, error) {
	var (
		tpl              models.Template
		previousID       sql.NullString
		subTypesJSON     []byte
		placeholdersJSON []byte
	)

	err := row.Scan(
		&tpl.ID,
		&tpl.Name,
		&subTypesJSON,
		&tpl.Version,
		&previousID,
		&tpl.State,
		&tpl.OutputFormat,
		&tpl.Width,
		&tpl.Height,
		&tpl.Background,
		&placeholdersJSON,
		&tpl.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	tpl.PreviousID = previousID.String
	if len(subTypesJSON) > 0 {
		if err := json.Unmarshal(subTypesJSON, &tpl.SubTypes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sub types: %w", err)
		}
	}
	if err := json.Unmarshal(placeholdersJSON, &tpl.Placeholders); err != nil {
		return nil, fmt.Errorf("failed to unmarshal placeholders: %w", err)
	}
	return &tpl, nil
}

func (r *PostgresTemplates) Get(ctx context.Context, id string) (*models.Template, error) {
	tpl, err := scanTemplate(r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, stderrors.NewNotFoundError("template", id)
	}
	if err != nil {
		return nil, fmt.Errorf("template query failed: %w", err)
	}
	return tpl, nil
}

func (r *PostgresTemplates) List(ctx context.Context) ([]*models.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+templateColumns+` FROM templates t
		WHERE t.version = (SELECT MAX(version) FROM templates WHERE name = t.name)
		ORDER BY t.name`)
	if err != nil {
		return nil, fmt.Errorf("template list query failed: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("template scan failed: %w", err)
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

func (r *PostgresTemplates) ListVersions(ctx context.Context, name string) ([]*models.Template, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE name = $1 ORDER BY version`, name)
	if err != nil {
		return nil, fmt.Errorf("template version list query failed: %w", err)
	}
	defer rows.Close()

	var versions []*models.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("template scan failed: %w", err)
		}
		versions = append(versions, tpl)
	}
	return versions, rows.Err()
}

func (r *PostgresTemplates) UpdateState(ctx context.Context, id string, state models.TemplateState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE templates SET state = $1 WHERE id = $2`, state, id)
	if err != nil {
		return fmt.Errorf("template state update failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return stderrors.NewNotFoundError("template", id)
	}
	return nil
}

func (r *PostgresTemplates) LatestVersion(ctx context.Context, name string) (int, error) {
	var version int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM templates WHERE name = $1`, name).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("template version query failed: %w", err)
	}
	return version, nil
}

// PostgresJobs implements Jobs over database/sql.
type PostgresJobs struct {
	db *sql.DB
}

func NewPostgresJobs(db *sql.DB) *PostgresJobs {
	return &PostgresJobs{db: db}
}

func (r *PostgresJobs) CreateBatch(ctx context.Context, batch *models.RenderBatch, jobs []*models.RenderJob) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx failed: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO render_batches (id, template_id, state, job_count, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		batch.ID, batch.TemplateID, batch.State, batch.JobCount, batch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("batch insert failed: %w", err)
	}

	for _, job := range jobs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO render_jobs (
				id, batch_id, template_id, record_index, status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $6)`,
			job.ID, job.BatchID, job.TemplateID, job.Index, job.Status, job.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("job insert failed: %w", err)
		}
	}

	return tx.Commit()
}

func (r *PostgresJobs) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE render_jobs SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), jobID,
	)
	if err != nil {
		return fmt.Errorf("job status update failed: %w", err)
	}
	return nil
}

func (r *PostgresJobs) MarkSucceeded(ctx context.Context, jobID, assetID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE render_jobs SET status = $1, asset_id = $2, updated_at = $3 WHERE id = $4`,
		models.JobSucceeded, assetID, time.Now().UTC(), jobID,
	)
	if err != nil {
		return fmt.Errorf("job success update failed: %w", err)
	}
	return nil
}

func (r *PostgresJobs) MarkFailed(ctx context.Context, jobID, errorCode, errorMessage string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE render_jobs SET status = $1, error_code = $2, error_message = $3, updated_at = $4
		WHERE id = $5`,
		models.JobFailed, errorCode, errorMessage, time.Now().UTC(), jobID,
	)
	if err != nil {
		return fmt.Errorf("job failure update failed: %w", err)
	}
	return nil
}

func (r *PostgresJobs) UpdateBatchState(ctx context.Context, batchID string, state models.BatchState) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE render_batches SET state = $1 WHERE id = $2`, state, batchID)
	if err != nil {
		return fmt.Errorf("batch state update failed: %w", err)
	}
	return nil
}

func (r *PostgresJobs) GetBatch(ctx context.Context, batchID string) (*models.RenderBatch, error) {
	var batch models.RenderBatch
	err := r.db.QueryRowContext(ctx, `
		SELECT id, template_id, state, job_count, created_at
		FROM render_batches WHERE id = $1`, batchID).Scan(
		&batch.ID, &batch.TemplateID, &batch.State, &batch.JobCount, &batch.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, stderrors.NewNotFoundError("batch", batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("batch query failed: %w", err)
	}
	return &batch, nil
}

// PostgresAssets implements Assets over database/sql.
type PostgresAssets struct {
	db *sql.DB
}

func NewPostgresAssets(db *sql.DB) *PostgresAssets {
	return &PostgresAssets{db: db}
}

func (r *PostgresAssets) Insert(ctx context.Context, asset *models.Asset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (
			id, content_hash, format, created_by_job_id, size_bytes,
			width, height, storage_path, ref_count, created_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)`,
		asset.ID,
		asset.ContentHash,
		asset.Format,
		asset.CreatedByJobID,
		asset.SizeBytes,
		asset.Width,
		asset.Height,
		asset.StoragePath,
		asset.RefCount,
		asset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("asset insert failed: %w", err)
	}
	return nil
}

func (r *PostgresAssets) scanAsset(row *sql.Row) (*models.Asset, error) {
	var (
		a     models.Asset
		jobID sql.NullString
	)
	err := row.Scan(
		&a.ID,
		&a.ContentHash,
		&a.Format,
		&jobID,
		&a.SizeBytes,
		&a.Width,
		&a.Height,
		&a.StoragePath,
		&a.RefCount,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.CreatedByJobID = jobID.String
	return &a, nil
}

const assetColumns = `id, content_hash, format, created_by_job_id, size_bytes, width, height, storage_path, ref_count, created_at`

func (r *PostgresAssets) Get(ctx context.Context, id string) (*models.Asset, error) {
	asset, err := r.scanAsset(r.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, stderrors.NewNotFoundError("asset", id)
	}
	if err != nil {
		return nil, fmt.Errorf("asset query failed: %w", err)
	}
	return asset, nil
}

func (r *PostgresAssets) GetByHash(ctx context.Context, hash string) (*models.Asset, error) {
	asset, err := r.scanAsset(r.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE content_hash = $1`, hash))
	if err == sql.ErrNoRows {
		return nil, stderrors.NewNotFoundError("asset", hash)
	}
	if err != nil {
		return nil, fmt.Errorf("asset query failed: %w", err)
	}
	return asset, nil
}

func (r *PostgresAssets) IncrementRef(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE assets SET ref_count = ref_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("asset ref increment failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return stderrors.NewNotFoundError("asset", id)
	}
	return nil
}

func (r *PostgresAssets) DecrementRef(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE assets SET ref_count = GREATEST(ref_count - 1, 0) WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("asset ref decrement failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return stderrors.NewNotFoundError("asset", id)
	}
	return nil
}

func (r *PostgresAssets) ListUnreferenced(ctx context.Context, limit int) ([]*models.Asset, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE ref_count = 0 ORDER BY created_at LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("unreferenced asset query failed: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		var (
			a     models.Asset
			jobID sql.NullString
		)
		if err := rows.Scan(
			&a.ID, &a.ContentHash, &a.Format, &jobID, &a.SizeBytes,
			&a.Width, &a.Height, &a.StoragePath, &a.RefCount, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("asset scan failed: %w", err)
		}
		a.CreatedByJobID = jobID.String
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

func (r *PostgresAssets) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("asset delete failed: %w", err)
	}
	return nil
}
