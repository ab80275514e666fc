// internal/template/store.go
package template

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	stderrors "vdte/internal/common/errors"
	"vdte/internal/common/logger"
	"vdte/internal/models"
	"vdte/internal/repository"
)

// Store owns template lifecycle: creation with validation and version
// lineage, cached reads, retirement. Template content is immutable after
// creation.
type Store struct {
	repo     repository.Templates
	redis    *redis.Client
	logger   logger.Logger
	cacheTTL time.Duration
}

func NewStore(repo repository.Templates, rdb *redis.Client, log logger.Logger, cacheTTL time.Duration) *Store {
	return &Store{
		repo:     repo,
		redis:    rdb,
		logger:   log.WithFields(map[string]interface{}{"component": "template-store"}),
		cacheTTL: cacheTTL,
	}
}

// Create validates the definition and persists a new immutable template.
// With PreviousID set, the new template becomes the next version in the
// named lineage and must keep the predecessor's name.
func (s *Store) Create(ctx context.Context, def *Definition) (string, error) {
	if err := ValidateDefinition(def); err != nil {
		return "", err
	}

	version := 1
	if def.PreviousID != "" {
		prev, err := s.Get(ctx, def.PreviousID)
		if err != nil {
			return "", err
		}
		if prev.Name != def.Name {
			return "", stderrors.NewTemplateValidationFailedError(
				"previousId refers to a template with a different name")
		}
		latest, err := s.repo.LatestVersion(ctx, def.Name)
		if err != nil {
			return "", err
		}
		version = latest + 1
	}

	tpl := &models.Template{
		ID:           uuid.New().String(),
		Name:         def.Name,
		SubTypes:     def.SubTypes,
		Version:      version,
		PreviousID:   def.PreviousID,
		State:        models.TemplateActive,
		OutputFormat: def.OutputFormat,
		Width:        def.Width,
		Height:       def.Height,
		Background:   def.Background,
		Placeholders: def.Placeholders,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, tpl); err != nil {
		return "", err
	}

	s.logger.Info("template created", map[string]interface{}{
		"templateId":   tpl.ID,
		"name":         tpl.Name,
		"version":      tpl.Version,
		"placeholders": len(tpl.Placeholders),
	})

	return tpl.ID, nil
}

// Get reads through the cache, falling back to the repository. Cache
// failures degrade to a repository read, never to an error.
func (s *Store) Get(ctx context.Context, id string) (*models.Template, error) {
	cacheKey := "tpl:" + id
	if s.redis != nil {
		if val, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var tpl models.Template
			if err := json.Unmarshal([]byte(val), &tpl); err == nil {
				return &tpl, nil
			}
		}
	}

	tpl, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(tpl); err == nil {
			s.redis.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	return tpl, nil
}

// List returns the latest version of every template lineage. Listings
// read the repository directly, bypassing the cache.
func (s *Store) List(ctx context.Context) ([]*models.Template, error) {
	return s.repo.List(ctx)
}

// ListVersions returns the full lineage recorded under a name, oldest
// first. Unknown names surface as NOT_FOUND.
func (s *Store) ListVersions(ctx context.Context, name string) ([]*models.Template, error) {
	versions, err := s.repo.ListVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, stderrors.NewNotFoundError("template", name)
	}
	return versions, nil
}

// Retire moves a template to the retired state. Retired templates stay
// readable for historical renders but reject new batches.
func (s *Store) Retire(ctx context.Context, id string) error {
	if err := s.repo.UpdateState(ctx, id, models.TemplateRetired); err != nil {
		return err
	}

	if s.redis != nil {
		s.redis.Del(ctx, "tpl:"+id)
	}

	s.logger.Info("template retired", map[string]interface{}{
		"templateId": id,
	})
	return nil
}
