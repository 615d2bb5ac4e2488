package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/flyaway/pkg/models"
)

// Kingdoms, habitats and species types are small lookup tables.

func (r *SQLiteRepo) GetKingdomByName(ctx context.Context, name string) (*models.SpeciesKingdom, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, name FROM species_kingdoms WHERE name = ?`, name)
	var k models.SpeciesKingdom
	if err := row.Scan(&k.ID, &k.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &k, nil
}

func (r *SQLiteRepo) ListKingdoms(ctx context.Context) ([]models.SpeciesKingdom, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name FROM species_kingdoms ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SpeciesKingdom
	for rows.Next() {
		var k models.SpeciesKingdom
		if err := rows.Scan(&k.ID, &k.Name); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) CreateHabitat(ctx context.Context, h *models.Habitat) (int64, error) {
	if h == nil {
		return 0, fmt.Errorf("habitat is nil")
	}

	res, err := r.q.ExecContext(ctx, `INSERT INTO habitats (name) VALUES (?)`, h.Name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetHabitat(ctx context.Context, id int64) (*models.Habitat, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, name FROM habitats WHERE id = ?`, id)
	var h models.Habitat
	if err := row.Scan(&h.ID, &h.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

func (r *SQLiteRepo) ListHabitats(ctx context.Context) ([]models.Habitat, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name FROM habitats ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Habitat
	for rows.Next() {
		var h models.Habitat
		if err := rows.Scan(&h.ID, &h.Name); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) UpdateHabitat(ctx context.Context, h *models.Habitat) error {
	if h == nil {
		return fmt.Errorf("habitat is nil")
	}

	_, err := r.q.ExecContext(ctx, `UPDATE habitats SET name = ? WHERE id = ?`, h.Name, h.ID)
	return err
}

func (r *SQLiteRepo) DeleteHabitat(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM habitats WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepo) CreateSpeciesType(ctx context.Context, st *models.SpeciesType) (int64, error) {
	if st == nil {
		return 0, fmt.Errorf("species type is nil")
	}

	res, err := r.q.ExecContext(ctx, `INSERT INTO species_types (name) VALUES (?)`, st.Name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetSpeciesType(ctx context.Context, id int64) (*models.SpeciesType, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, name FROM species_types WHERE id = ?`, id)
	var st models.SpeciesType
	if err := row.Scan(&st.ID, &st.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func (r *SQLiteRepo) ListSpeciesTypes(ctx context.Context) ([]models.SpeciesType, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT t.id, t.name, COUNT(j.species_id)
		FROM species_types t
		LEFT JOIN species_species_types j ON j.species_type_id = t.id
		GROUP BY t.id, t.name
		ORDER BY t.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SpeciesType
	for rows.Next() {
		var st models.SpeciesType
		if err := rows.Scan(&st.ID, &st.Name, &st.SpeciesCount); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) UpdateSpeciesType(ctx context.Context, st *models.SpeciesType) error {
	if st == nil {
		return fmt.Errorf("species type is nil")
	}

	_, err := r.q.ExecContext(ctx, `UPDATE species_types SET name = ? WHERE id = ?`, st.Name, st.ID)
	return err
}

func (r *SQLiteRepo) DeleteSpeciesType(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM species_types WHERE id = ?`, id)
	return err
}

// typesFor loads the species types linked through a join table, keyed by owner id.
func (r *SQLiteRepo) typesFor(ctx context.Context, joinTable, ownerColumn string, ownerIDs []int64) (map[int64][]models.SpeciesType, error) {
	out := make(map[int64][]models.SpeciesType, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}

	marks, args := placeholders(ownerIDs)
	q := fmt.Sprintf(`SELECT j.%[2]s, t.id, t.name FROM %[1]s j JOIN species_types t ON t.id = j.species_type_id WHERE j.%[2]s IN (%[3]s) ORDER BY t.name`, joinTable, ownerColumn, marks)
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var owner int64
		var st models.SpeciesType
		if err := rows.Scan(&owner, &st.ID, &st.Name); err != nil {
			return nil, err
		}
		out[owner] = append(out[owner], st)
	}
	return out, rows.Err()
}

// replaceTypes rewrites the join rows of one owner.
func (r *SQLiteRepo) replaceTypes(ctx context.Context, joinTable, ownerColumn string, ownerID int64, typeIDs []int64) error {
	del := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, joinTable, ownerColumn)
	if _, err := r.q.ExecContext(ctx, del, ownerID); err != nil {
		return err
	}

	ins := fmt.Sprintf(`INSERT OR IGNORE INTO %s (%s, species_type_id) VALUES (?, ?)`, joinTable, ownerColumn)
	for _, tid := range typeIDs {
		if _, err := r.q.ExecContext(ctx, ins, ownerID, tid); err != nil {
			return fmt.Errorf("link species type %d: %w", tid, err)
		}
	}
	return nil
}
