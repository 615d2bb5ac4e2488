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

const speciesSelect = `SELECT s.id, s.common_name, s.scientific_name, s.created_by, s.created, s.updated, k.id, k.name, h.id, h.name
FROM species s
JOIN species_kingdoms k ON k.id = s.kingdom_id
LEFT JOIN habitats h ON h.id = s.habitat_id`

func scanSpecies(row interface{ Scan(...any) error }) (*models.Species, error) {
	var (
		s         models.Species
		createdBy sql.NullInt64
		habitatID sql.NullInt64
		habitat   sql.NullString
	)
	if err := row.Scan(&s.ID, &s.CommonName, &s.ScientificName, &createdBy, &s.Created, &s.Updated, &s.Kingdom.ID, &s.Kingdom.Name, &habitatID, &habitat); err != nil {
		return nil, err
	}
	s.CreatedBy = ptrInt64(createdBy)
	if habitatID.Valid {
		s.Habitat = &models.Habitat{ID: habitatID.Int64, Name: habitat.String}
	}
	s.Types = []models.SpeciesType{}
	return &s, nil
}

// CreateSpecies inserts the species, or does nothing when the scientific name
// is already taken; in that case the existing id is returned with created=false.
func (r *SQLiteRepo) CreateSpecies(ctx context.Context, s *models.Species) (int64, bool, error) {
	if s == nil {
		return 0, false, fmt.Errorf("species is nil")
	}

	var habitatID sql.NullInt64
	if s.Habitat != nil {
		habitatID = sql.NullInt64{Int64: s.Habitat.ID, Valid: true}
	}

	ts := now()
	res, err := r.q.ExecContext(ctx, `INSERT INTO species (kingdom_id, habitat_id, common_name, scientific_name, created_by, created, updated)
VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(scientific_name) DO NOTHING`,
		s.Kingdom.ID, habitatID, s.CommonName, s.ScientificName, nullInt64(s.CreatedBy), ts, ts)
	if err != nil {
		return 0, false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		var id int64
		if err := r.q.QueryRowContext(ctx, `SELECT id FROM species WHERE scientific_name = ?`, s.ScientificName).Scan(&id); err != nil {
			return 0, false, fmt.Errorf("lookup existing species: %w", err)
		}
		return id, false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *SQLiteRepo) GetSpecies(ctx context.Context, id int64) (*models.Species, error) {
	return r.getSpeciesWhere(ctx, `s.id = ?`, id)
}

func (r *SQLiteRepo) GetSpeciesByScientificName(ctx context.Context, name string) (*models.Species, error) {
	return r.getSpeciesWhere(ctx, `s.scientific_name = ?`, name)
}

func (r *SQLiteRepo) getSpeciesWhere(ctx context.Context, where string, arg any) (*models.Species, error) {
	row := r.q.QueryRowContext(ctx, speciesSelect+` WHERE `+where, arg)
	s, err := scanSpecies(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	list := []models.Species{*s}
	if err := r.hydrateSpecies(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *SQLiteRepo) ListSpecies(ctx context.Context, f models.SpeciesFilter) ([]models.Species, error) {
	var (
		conds []string
		args  []any
	)
	if f.Search != "" {
		conds = append(conds, `(s.common_name LIKE ? OR s.scientific_name LIKE ?)`)
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if len(f.SpeciesTypeIDs) > 0 {
		marks, ids := placeholders(f.SpeciesTypeIDs)
		conds = append(conds, `s.id IN (SELECT species_id FROM species_species_types WHERE species_type_id IN (`+marks+`))`)
		args = append(args, ids...)
	}
	if f.HabitatID > 0 {
		conds = append(conds, `s.habitat_id = ?`)
		args = append(args, f.HabitatID)
	}

	q := speciesSelect
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY s.common_name`

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}

	var out []models.Species
	for rows.Next() {
		s, err := scanSpecies(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := r.hydrateSpecies(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// hydrateSpecies fills types and representative images. Rows of the outer
// query must already be closed: the pool has a single connection.
func (r *SQLiteRepo) hydrateSpecies(ctx context.Context, list []models.Species) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]int64, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}

	types, err := r.typesFor(ctx, "species_species_types", "species_id", ids)
	if err != nil {
		return fmt.Errorf("load species types: %w", err)
	}
	images, err := r.filesFor(ctx, models.OwnerSpecies, ids)
	if err != nil {
		return fmt.Errorf("load species images: %w", err)
	}

	for i := range list {
		if t, ok := types[list[i].ID]; ok {
			list[i].Types = t
		}
		if imgs := images[list[i].ID]; len(imgs) > 0 {
			img := imgs[len(imgs)-1]
			list[i].Image = &img
		}
	}
	return nil
}

func (r *SQLiteRepo) UpdateSpecies(ctx context.Context, s *models.Species) error {
	if s == nil {
		return fmt.Errorf("species is nil")
	}

	var habitatID sql.NullInt64
	if s.Habitat != nil {
		habitatID = sql.NullInt64{Int64: s.Habitat.ID, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, `UPDATE species SET kingdom_id = ?, habitat_id = ?, common_name = ?, scientific_name = ?, updated = ? WHERE id = ?`,
		s.Kingdom.ID, habitatID, s.CommonName, s.ScientificName, now(), s.ID)
	return err
}

func (r *SQLiteRepo) SetSpeciesTypes(ctx context.Context, speciesID int64, typeIDs []int64) error {
	return r.WithTx(ctx, func(tx repository.Store) error {
		return tx.(*SQLiteRepo).replaceTypes(ctx, "species_species_types", "species_id", speciesID, typeIDs)
	})
}

// DeleteSpecies fails while observations still reference the species.
func (r *SQLiteRepo) DeleteSpecies(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(tx repository.Store) error {
		q := tx.(*SQLiteRepo).q
		if _, err := q.ExecContext(ctx, `DELETE FROM file_records WHERE owner_type = 'species' AND owner_id = ?`, id); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `DELETE FROM species WHERE id = ?`, id)
		return err
	})
}
