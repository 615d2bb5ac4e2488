package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

const userColumns = `id, name, email, xp, role, password_hash, created, updated`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.XP, &u.Role, &u.PasswordHash, &u.Created, &u.Updated); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if u == nil {
		return 0, fmt.Errorf("user is nil")
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	ts := now()
	res, err := r.q.ExecContext(ctx, `INSERT INTO users (name, email, password_hash, xp, role, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.PasswordHash, u.XP, u.Role, ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (r *SQLiteRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// UpdateUser changes the editable profile fields. XP and role have their own
// methods so a profile edit can never touch them.
func (r *SQLiteRepo) UpdateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}

	_, err := r.q.ExecContext(ctx, `UPDATE users SET name = ?, email = ?, password_hash = ?, updated = ? WHERE id = ?`, u.Name, u.Email, u.PasswordHash, now(), u.ID)
	return err
}

func (r *SQLiteRepo) SetUserRole(ctx context.Context, id int64, role string) error {
	_, err := r.q.ExecContext(ctx, `UPDATE users SET role = ?, updated = ? WHERE id = ?`, role, now(), id)
	return err
}

func (r *SQLiteRepo) AddUserXP(ctx context.Context, id int64, delta int64) error {
	if delta < 0 {
		return fmt.Errorf("xp delta must not be negative: %d", delta)
	}

	res, err := r.q.ExecContext(ctx, `UPDATE users SET xp = xp + ?, updated = ? WHERE id = ?`, delta, now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}

// DeleteUser removes the user with everything it owns. Callers that need the
// attachment files gone from disk must collect their paths first.
func (r *SQLiteRepo) DeleteUser(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(tx repository.Store) error {
		q := tx.(*SQLiteRepo).q
		stmts := []string{
			`DELETE FROM file_records WHERE owner_type = 'location' AND owner_id IN (SELECT id FROM locations WHERE user_id = ?)`,
			`DELETE FROM locations WHERE user_id = ?`,
			`DELETE FROM user_achievements WHERE user_id = ?`,
			`UPDATE species SET created_by = NULL WHERE created_by = ?`,
			`DELETE FROM users WHERE id = ?`,
		}
		for _, s := range stmts {
			if _, err := q.ExecContext(ctx, s, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepo) ListUsersByXP(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY xp DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}

	return out, rows.Err()
}
