package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

const achievementColumns = `a.id, a.name, a.description, a.points_to_complete, a.reward_xp, a.created, a.updated`

func scanAchievement(row interface{ Scan(...any) error }) (*models.Achievement, error) {
	var a models.Achievement
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &a.PointsToComplete, &a.RewardXP, &a.Created, &a.Updated); err != nil {
		return nil, err
	}
	a.Types = []models.SpeciesType{}
	return &a, nil
}

func (r *SQLiteRepo) CreateAchievement(ctx context.Context, a *models.Achievement) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("achievement is nil")
	}
	if a.PointsToComplete <= 0 {
		return 0, fmt.Errorf("points_to_complete must be positive")
	}

	ts := now()
	res, err := r.q.ExecContext(ctx, `INSERT INTO achievements (name, description, points_to_complete, reward_xp, created, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		a.Name, a.Description, a.PointsToComplete, a.RewardXP, ts, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetAchievement(ctx context.Context, id int64) (*models.Achievement, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+achievementColumns+` FROM achievements a WHERE a.id = ?`, id)
	a, err := scanAchievement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	list := []models.Achievement{*a}
	if err := r.hydrateAchievements(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *SQLiteRepo) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	return r.queryAchievements(ctx, `SELECT `+achievementColumns+` FROM achievements a ORDER BY a.id`)
}

func (r *SQLiteRepo) ListAchievementsBySpeciesTypes(ctx context.Context, typeIDs []int64) ([]models.Achievement, error) {
	if len(typeIDs) == 0 {
		return nil, nil
	}

	marks, args := placeholders(typeIDs)
	q := `SELECT ` + achievementColumns + ` FROM achievements a
WHERE a.id IN (SELECT achievement_id FROM achievement_species_types WHERE species_type_id IN (` + marks + `))
ORDER BY a.id`
	return r.queryAchievements(ctx, q, args...)
}

func (r *SQLiteRepo) queryAchievements(ctx context.Context, q string, args ...any) ([]models.Achievement, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}

	var out []models.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := r.hydrateAchievements(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepo) hydrateAchievements(ctx context.Context, list []models.Achievement) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]int64, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	types, err := r.typesFor(ctx, "achievement_species_types", "achievement_id", ids)
	if err != nil {
		return fmt.Errorf("load achievement species types: %w", err)
	}
	for i := range list {
		if t, ok := types[list[i].ID]; ok {
			list[i].Types = t
		}
	}
	return nil
}

func (r *SQLiteRepo) UpdateAchievement(ctx context.Context, a *models.Achievement) error {
	if a == nil {
		return fmt.Errorf("achievement is nil")
	}
	if a.PointsToComplete <= 0 {
		return fmt.Errorf("points_to_complete must be positive")
	}

	_, err := r.q.ExecContext(ctx, `UPDATE achievements SET name = ?, description = ?, points_to_complete = ?, reward_xp = ?, updated = ? WHERE id = ?`,
		a.Name, a.Description, a.PointsToComplete, a.RewardXP, now(), a.ID)
	return err
}

func (r *SQLiteRepo) SetAchievementTypes(ctx context.Context, achievementID int64, typeIDs []int64) error {
	return r.WithTx(ctx, func(tx repository.Store) error {
		return tx.(*SQLiteRepo).replaceTypes(ctx, "achievement_species_types", "achievement_id", achievementID, typeIDs)
	})
}

func (r *SQLiteRepo) DeleteAchievement(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(tx repository.Store) error {
		q := tx.(*SQLiteRepo).q
		for _, s := range []string{
			`DELETE FROM user_achievements WHERE achievement_id = ?`,
			`DELETE FROM achievement_species_types WHERE achievement_id = ?`,
			`DELETE FROM achievements WHERE id = ?`,
		} {
			if _, err := q.ExecContext(ctx, s, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepo) GetUserAchievement(ctx context.Context, userID, achievementID int64) (*models.UserAchievement, error) {
	row := r.q.QueryRowContext(ctx, `SELECT user_id, achievement_id, points, completed_at, updated FROM user_achievements WHERE user_id = ? AND achievement_id = ?`, userID, achievementID)
	var (
		ua        models.UserAchievement
		completed sql.NullInt64
	)
	if err := row.Scan(&ua.UserID, &ua.AchievementID, &ua.Points, &completed, &ua.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ua.CompletedAt = ptrInt64(completed)
	return &ua, nil
}

func (r *SQLiteRepo) UpsertUserAchievement(ctx context.Context, ua *models.UserAchievement) error {
	if ua == nil {
		return fmt.Errorf("user achievement is nil")
	}
	if ua.Points < 0 {
		return fmt.Errorf("points must not be negative")
	}

	ua.Updated = now()
	_, err := r.q.ExecContext(ctx, `INSERT INTO user_achievements (user_id, achievement_id, points, completed_at, updated) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(user_id, achievement_id) DO UPDATE SET points = excluded.points, completed_at = excluded.completed_at, updated = excluded.updated`,
		ua.UserID, ua.AchievementID, ua.Points, nullInt64(ua.CompletedAt), ua.Updated)
	return err
}

// ListUserAchievements returns the user's progress rows with their achievements.
func (r *SQLiteRepo) ListUserAchievements(ctx context.Context, userID int64) ([]models.AchievementProgress, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+achievementColumns+`, ua.points, ua.completed_at
FROM user_achievements ua
JOIN achievements a ON a.id = ua.achievement_id
WHERE ua.user_id = ?
ORDER BY a.id`, userID)
	if err != nil {
		return nil, err
	}

	var out []models.AchievementProgress
	for rows.Next() {
		var (
			p         models.AchievementProgress
			completed sql.NullInt64
		)
		a := &p.Achievement
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.PointsToComplete, &a.RewardXP, &a.Created, &a.Updated, &p.Points, &completed); err != nil {
			rows.Close()
			return nil, err
		}
		a.Types = []models.SpeciesType{}
		p.Completed = completed.Valid
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	achs := make([]models.Achievement, len(out))
	for i := range out {
		achs[i] = out[i].Achievement
	}
	if err := r.hydrateAchievements(ctx, achs); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Achievement = achs[i]
	}
	return out, nil
}

func (r *SQLiteRepo) CountUserAchievements(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_achievements`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
