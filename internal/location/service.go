// Package location serves stored observations: listing with filters, and the
// owner-only update and delete operations.
package location

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/pkg/geo"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

// FileRemover deletes stored files by path.
type FileRemover interface {
	Remove(paths ...string) error
}

// Query is a location listing request. Near and Kilometers together restrict
// results to a radius around a point.
type Query struct {
	models.LocationFilter
	Near       *geo.Point
	Kilometers float64
}

type Service struct {
	store  repository.TxStore
	files  FileRemover
	logger *slog.Logger
}

func NewService(store repository.TxStore, files FileRemover, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Service{store: store, files: files, logger: logger}
}

func (s *Service) List(ctx context.Context, q Query) ([]models.Location, error) {
	f := q.LocationFilter
	radius := q.Near != nil && q.Kilometers > 0
	if radius {
		if err := q.Near.Validate(); err != nil {
			return nil, apperr.Validation("%s", err.Error())
		}
		lo, hi := geo.BoundingBox(*q.Near, q.Kilometers)
		f.Bounds = &models.Bounds{MinLat: lo.Lat, MinLng: lo.Lng, MaxLat: hi.Lat, MaxLng: hi.Lng}
	}

	list, err := s.store.ListLocations(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	out := make([]models.Location, 0, len(list))
	for _, l := range list {
		if radius && geo.DistanceKm(*q.Near, geo.Point{Lat: l.Lat, Lng: l.Lng}) > q.Kilometers {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]models.Location, error) {
	return s.List(ctx, Query{LocationFilter: models.LocationFilter{UserID: userID}})
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Location, error) {
	l, err := s.store.GetLocation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get location %d: %w", id, err)
	}
	if l == nil {
		return nil, apperr.NotFound("location not found")
	}
	return l, nil
}

// UpdateCoords moves a location. Only its owner may do so.
func (s *Service) UpdateCoords(ctx context.Context, userID, id int64, p geo.Point) (*models.Location, error) {
	if err := p.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	var out *models.Location
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := owned(ctx, tx, userID, id); err != nil {
			return err
		}
		if err := tx.UpdateLocationCoords(ctx, id, p.Lat, p.Lng); err != nil {
			return fmt.Errorf("update location %d: %w", id, err)
		}
		l, err := tx.GetLocation(ctx, id)
		if err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a location and its images. Only its owner may do so.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	var paths []string
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		l, err := owned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		for _, img := range l.Images {
			paths = append(paths, img.Path)
		}
		if err := tx.DeleteLocation(ctx, id); err != nil {
			return fmt.Errorf("delete location %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.removeFiles(paths)
	return nil
}

// PurgeUser deletes a user account with its locations, their images and its
// achievement progress. Species the user created are kept.
func (s *Service) PurgeUser(ctx context.Context, userID int64) error {
	var paths []string
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		u, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound("user not found")
		}

		list, err := tx.ListLocations(ctx, models.LocationFilter{UserID: userID})
		if err != nil {
			return err
		}
		for _, l := range list {
			for _, img := range l.Images {
				paths = append(paths, img.Path)
			}
		}
		return tx.DeleteUser(ctx, userID)
	})
	if err != nil {
		return err
	}

	s.removeFiles(paths)
	s.logger.Info("user purged", slog.Int64("user_id", userID), slog.Int("files", len(paths)))
	return nil
}

func (s *Service) removeFiles(paths []string) {
	if len(paths) == 0 || s.files == nil {
		return
	}
	if err := s.files.Remove(paths...); err != nil {
		s.logger.Error("remove location files", slog.Any("err", err))
	}
}

func owned(ctx context.Context, store repository.Store, userID, id int64) (*models.Location, error) {
	l, err := store.GetLocation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get location %d: %w", id, err)
	}
	if l == nil {
		return nil, apperr.NotFound("location not found")
	}
	if l.UserID != userID {
		return nil, apperr.Forbidden("you do not own this location")
	}
	return l, nil
}
