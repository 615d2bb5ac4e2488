// Package achievement accrues per-user achievement progress and grants XP
// rewards when an achievement is completed.
package achievement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/internal/metrics"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

// Engine applies observations to achievements. It holds no state of its own;
// every call works against the store it is given so it can run inside the
// caller's transaction.
type Engine struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewEngine(logger *slog.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Engine{logger: logger, metrics: m}
}

// Apply adds one point to every achievement sharing a species type with
// species. An achievement that reaches its threshold grants its reward once;
// completed achievements are left untouched.
func (e *Engine) Apply(ctx context.Context, store repository.Store, userID int64, species *models.Species) error {
	if species == nil {
		return fmt.Errorf("apply achievements: species is nil")
	}

	achs, err := store.ListAchievementsBySpeciesTypes(ctx, species.TypeIDs())
	if err != nil {
		return fmt.Errorf("list achievements for species %d: %w", species.ID, err)
	}

	for _, a := range achs {
		ua, err := store.GetUserAchievement(ctx, userID, a.ID)
		if err != nil {
			return fmt.Errorf("get progress for achievement %d: %w", a.ID, err)
		}

		points := 1
		if ua != nil {
			// a completed row keeps accruing if its points were lowered
			// or the threshold raised; save never pays out twice
			if ua.Points >= a.PointsToComplete {
				continue
			}
			points = ua.Points + 1
		}

		next := &models.UserAchievement{UserID: userID, AchievementID: a.ID, Points: points}
		if err := e.save(ctx, store, &a, ua, next); err != nil {
			return err
		}
	}

	return nil
}

// AssignPoints sets a user's progress on one achievement directly, clamped to
// [0, points_to_complete]. Reaching the threshold grants the reward unless it
// was granted before.
func (e *Engine) AssignPoints(ctx context.Context, store repository.TxStore, userID, achievementID int64, points int) (*models.UserAchievement, error) {
	var out *models.UserAchievement
	err := store.WithTx(ctx, func(tx repository.Store) error {
		a, err := tx.GetAchievement(ctx, achievementID)
		if err != nil {
			return err
		}
		if a == nil {
			return apperr.NotFound("achievement %d not found", achievementID)
		}
		u, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound("user %d not found", userID)
		}

		ua, err := tx.GetUserAchievement(ctx, userID, achievementID)
		if err != nil {
			return err
		}

		next := &models.UserAchievement{UserID: userID, AchievementID: achievementID, Points: clamp(points, 0, a.PointsToComplete)}
		if err := e.save(ctx, tx, a, ua, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

// Progress lists the achievements the user has started, with points.
func (e *Engine) Progress(ctx context.Context, store repository.Store, userID int64) ([]models.AchievementProgress, error) {
	out, err := store.ListUserAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress for user %d: %w", userID, err)
	}
	if out == nil {
		out = []models.AchievementProgress{}
	}
	return out, nil
}

// save persists next, granting the reward when next reaches the threshold for
// the first time. prev is the stored row, nil if none.
func (e *Engine) save(ctx context.Context, store repository.Store, a *models.Achievement, prev, next *models.UserAchievement) error {
	if prev != nil {
		next.CompletedAt = prev.CompletedAt
	}

	grant := next.Points >= a.PointsToComplete && next.CompletedAt == nil
	if grant {
		ts := time.Now().UTC().UnixMilli()
		next.CompletedAt = &ts
		if a.RewardXP > 0 {
			if err := store.AddUserXP(ctx, next.UserID, a.RewardXP); err != nil {
				return fmt.Errorf("grant reward for achievement %d: %w", a.ID, err)
			}
		}
	}

	if err := store.UpsertUserAchievement(ctx, next); err != nil {
		return fmt.Errorf("save progress for achievement %d: %w", a.ID, err)
	}

	if grant {
		e.metrics.AchievementCompleted()
		e.logger.Info("achievement completed",
			slog.Int64("user_id", next.UserID),
			slog.Int64("achievement_id", a.ID),
			slog.Int64("reward_xp", a.RewardXP))
	} else {
		e.logger.Debug("achievement progress",
			slog.Int64("user_id", next.UserID),
			slog.Int64("achievement_id", a.ID),
			slog.Int("points", next.Points))
	}
	return nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
