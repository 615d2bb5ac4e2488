package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

const locationSelect = `SELECT l.id, l.user_id, l.species_id, l.lat, l.lng, l.confidence, l.species_name, l.created, l.updated, u.name
FROM locations l
JOIN users u ON u.id = l.user_id
JOIN species s ON s.id = l.species_id`

func scanLocation(row interface{ Scan(...any) error }) (*models.Location, error) {
	var (
		l        models.Location
		userName string
	)
	if err := row.Scan(&l.ID, &l.UserID, &l.SpeciesID, &l.Lat, &l.Lng, &l.Confidence, &l.SpeciesName, &l.Created, &l.Updated, &userName); err != nil {
		return nil, err
	}
	l.User = &models.UserSummary{ID: l.UserID, Name: userName}
	l.Images = []models.FileRecord{}
	return &l, nil
}

func (r *SQLiteRepo) CreateLocation(ctx context.Context, l *models.Location) (int64, error) {
	if l == nil {
		return 0, fmt.Errorf("location is nil")
	}
	if l.SpeciesID == 0 {
		return 0, fmt.Errorf("location species is required")
	}

	ts := now()
	res, err := r.q.ExecContext(ctx, `INSERT INTO locations (user_id, species_id, lat, lng, confidence, species_name, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.UserID, l.SpeciesID, l.Lat, l.Lng, l.Confidence, l.SpeciesName, ts, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	row := r.q.QueryRowContext(ctx, locationSelect+` WHERE l.id = ?`, id)
	l, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	list := []models.Location{*l}
	if err := r.hydrateLocations(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *SQLiteRepo) ListLocations(ctx context.Context, f models.LocationFilter) ([]models.Location, error) {
	var (
		conds []string
		args  []any
	)
	if f.UserID > 0 {
		conds = append(conds, `l.user_id = ?`)
		args = append(args, f.UserID)
	}
	if f.Search != "" {
		conds = append(conds, `(s.common_name LIKE ? OR s.scientific_name LIKE ?)`)
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if len(f.SpeciesIDs) > 0 {
		marks, ids := placeholders(f.SpeciesIDs)
		conds = append(conds, `l.species_id IN (`+marks+`)`)
		args = append(args, ids...)
	}
	if f.From > 0 {
		conds = append(conds, `l.created >= ?`)
		args = append(args, f.From)
	}
	if f.To > 0 {
		conds = append(conds, `l.created < ?`)
		args = append(args, f.To)
	}
	if b := f.Bounds; b != nil {
		conds = append(conds, `l.lat BETWEEN ? AND ?`)
		args = append(args, b.MinLat, b.MaxLat)
		if b.MinLng >= -180 && b.MaxLng <= 180 {
			conds = append(conds, `l.lng BETWEEN ? AND ?`)
			args = append(args, b.MinLng, b.MaxLng)
		}
	}

	q := locationSelect
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY l.created DESC, l.id DESC`

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}

	var out []models.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := r.hydrateLocations(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// hydrateLocations attaches images and fully loaded species.
func (r *SQLiteRepo) hydrateLocations(ctx context.Context, list []models.Location) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]int64, len(list))
	seen := make(map[int64]bool)
	var speciesIDs []int64
	for i := range list {
		ids[i] = list[i].ID
		if !seen[list[i].SpeciesID] {
			seen[list[i].SpeciesID] = true
			speciesIDs = append(speciesIDs, list[i].SpeciesID)
		}
	}

	images, err := r.filesFor(ctx, models.OwnerLocation, ids)
	if err != nil {
		return fmt.Errorf("load location images: %w", err)
	}

	marks, args := placeholders(speciesIDs)
	rows, err := r.q.QueryContext(ctx, speciesSelect+` WHERE s.id IN (`+marks+`)`, args...)
	if err != nil {
		return fmt.Errorf("load location species: %w", err)
	}
	var species []models.Species
	for rows.Next() {
		s, err := scanSpecies(rows)
		if err != nil {
			rows.Close()
			return err
		}
		species = append(species, *s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if err := r.hydrateSpecies(ctx, species); err != nil {
		return err
	}
	byID := make(map[int64]*models.Species, len(species))
	for i := range species {
		byID[species[i].ID] = &species[i]
	}

	for i := range list {
		if imgs, ok := images[list[i].ID]; ok {
			list[i].Images = imgs
		}
		list[i].Species = byID[list[i].SpeciesID]
	}
	return nil
}

func (r *SQLiteRepo) UpdateLocationCoords(ctx context.Context, id int64, lat, lng float64) error {
	_, err := r.q.ExecContext(ctx, `UPDATE locations SET lat = ?, lng = ?, updated = ? WHERE id = ?`, lat, lng, now(), id)
	return err
}

// DeleteLocation removes the location and its attachment records.
func (r *SQLiteRepo) DeleteLocation(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.DeleteFiles(ctx, models.OwnerLocation, id); err != nil {
			return err
		}
		_, err := tx.(*SQLiteRepo).q.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
		return err
	})
}

func (r *SQLiteRepo) CountLocations(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
