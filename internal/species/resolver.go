// Package species turns classifier labels into species records.
package species

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/internal/metrics"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

// ImageFolder is the storage folder of species representative images.
const ImageFolder = "species"

// ImageStore persists image bytes and returns the stored path.
type ImageStore interface {
	Save(folder, contentType string, data []byte) (string, error)
}

// Candidate is a classified species waiting to be resolved.
type Candidate struct {
	ScientificName string
	Kingdom        models.Kingdom
	BestImage      models.Upload
	UserID         int64
}

type Resolver struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewResolver(logger *slog.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Resolver{logger: logger, metrics: m}
}

// Resolve returns the species named c.ScientificName, creating it when it does
// not exist yet. An existing species is returned unchanged: the first
// submission to name a species decides its image. A new species gets the
// label as both names, no habitat, and c.BestImage as its image.
func (r *Resolver) Resolve(ctx context.Context, store repository.Store, images ImageStore, c Candidate) (*models.Species, error) {
	if c.ScientificName == "" {
		return nil, apperr.Validation("species name is empty")
	}

	existing, err := store.GetSpeciesByScientificName(ctx, c.ScientificName)
	if err != nil {
		return nil, fmt.Errorf("lookup species %q: %w", c.ScientificName, err)
	}
	if existing != nil {
		return existing, nil
	}

	k, err := store.GetKingdomByName(ctx, c.Kingdom.DisplayName())
	if err != nil {
		return nil, fmt.Errorf("lookup kingdom %q: %w", c.Kingdom, err)
	}
	if k == nil {
		return nil, apperr.NotFound("kingdom %s not found", c.Kingdom)
	}

	createdBy := c.UserID
	id, created, err := store.CreateSpecies(ctx, &models.Species{
		Kingdom:        *k,
		CommonName:     c.ScientificName,
		ScientificName: c.ScientificName,
		CreatedBy:      &createdBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create species %q: %w", c.ScientificName, err)
	}

	if created {
		if err := r.attachImage(ctx, store, images, id, c.BestImage); err != nil {
			return nil, err
		}
		r.metrics.SpeciesCreated()
		r.logger.Info("species created", slog.Int64("species_id", id), slog.String("scientific_name", c.ScientificName))
	}

	s, err := store.GetSpecies(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load species %d: %w", id, err)
	}
	if s == nil {
		return nil, apperr.NotFound("species %q not found", c.ScientificName)
	}
	return s, nil
}

func (r *Resolver) attachImage(ctx context.Context, store repository.Store, images ImageStore, speciesID int64, img models.Upload) error {
	if len(img.Data) == 0 {
		return nil
	}

	path, err := images.Save(ImageFolder, img.ContentType, img.Data)
	if err != nil {
		return fmt.Errorf("store species image: %w", err)
	}
	if _, err := store.CreateFile(ctx, &models.FileRecord{
		Path:         path,
		OriginalName: img.Filename,
		ContentType:  img.ContentType,
		OwnerType:    models.OwnerSpecies,
		OwnerID:      speciesID,
	}); err != nil {
		return fmt.Errorf("record species image: %w", err)
	}
	return nil
}
