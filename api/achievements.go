package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

// PointsAssigner sets a user's progress on one achievement.
type PointsAssigner interface {
	AssignPoints(ctx context.Context, store repository.TxStore, userID, achievementID int64, points int) (*models.UserAchievement, error)
}

type AchievementsHandler struct {
	store    repository.TxStore
	assigner PointsAssigner
}

func NewAchievementsHandler(store repository.TxStore, assigner PointsAssigner) *AchievementsHandler {
	return &AchievementsHandler{store: store, assigner: assigner}
}

type achievementRequest struct {
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	PointsToComplete int     `json:"points_to_complete"`
	RewardXP         int64   `json:"reward_xp"`
	TypeIDs          []int64 `json:"specie_type_ids"`
}

func (req achievementRequest) build() (*models.Achievement, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if req.PointsToComplete <= 0 {
		return nil, apperr.Validation("points_to_complete must be greater than 0")
	}
	if req.RewardXP < 0 {
		return nil, apperr.Validation("reward_xp must not be negative")
	}
	return &models.Achievement{
		Name:             name,
		Description:      strings.TrimSpace(req.Description),
		PointsToComplete: req.PointsToComplete,
		RewardXP:         req.RewardXP,
	}, nil
}

type assignPointsRequest struct {
	UserID        int64 `json:"user_id"`
	AchievementID int64 `json:"achievement_id"`
	Points        *int  `json:"points"`
}

func (h *AchievementsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListAchievements(r.Context())
	if err != nil {
		writeError(w, r, apperr.Internal("could not list achievements", err))
		return
	}
	if list == nil {
		list = []models.Achievement{}
	}
	writeJSON(w, list, http.StatusOK)
}

func (h *AchievementsHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.store.GetAchievement(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("could not load achievement", err))
		return
	}
	if a == nil {
		writeError(w, r, apperr.NotFound("Achievement not found"))
		return
	}
	writeJSON(w, a, http.StatusOK)
}

func (h *AchievementsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req achievementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := req.build()
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	var out *models.Achievement
	err = h.store.WithTx(ctx, func(tx repository.Store) error {
		if err := checkTypeIDs(ctx, tx, req.TypeIDs); err != nil {
			return err
		}
		id, err := tx.CreateAchievement(ctx, a)
		if err != nil {
			return apperr.Internal("could not create achievement", err)
		}
		if err := tx.SetAchievementTypes(ctx, id, req.TypeIDs); err != nil {
			return apperr.Internal("could not create achievement", err)
		}
		out, err = tx.GetAchievement(ctx, id)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusCreated)
}

func (h *AchievementsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req achievementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := req.build()
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.ID = id

	ctx := r.Context()
	var out *models.Achievement
	err = h.store.WithTx(ctx, func(tx repository.Store) error {
		current, err := tx.GetAchievement(ctx, id)
		if err != nil {
			return apperr.Internal("could not load achievement", err)
		}
		if current == nil {
			return apperr.NotFound("Achievement not found")
		}
		if err := checkTypeIDs(ctx, tx, req.TypeIDs); err != nil {
			return err
		}
		if err := tx.UpdateAchievement(ctx, a); err != nil {
			return apperr.Internal("could not update achievement", err)
		}
		if req.TypeIDs != nil {
			if err := tx.SetAchievementTypes(ctx, id, req.TypeIDs); err != nil {
				return apperr.Internal("could not update achievement", err)
			}
		}
		out, err = tx.GetAchievement(ctx, id)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *AchievementsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.store.GetAchievement(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("could not load achievement", err))
		return
	}
	if a == nil {
		writeError(w, r, apperr.NotFound("Achievement not found"))
		return
	}

	if err := h.store.DeleteAchievement(r.Context(), id); err != nil {
		writeError(w, r, apperr.Internal("could not delete achievement", err))
		return
	}
	writeJSON(w, messageResponse{Message: "Achievement deleted successfully"}, http.StatusOK)
}

// AssignPoints sets a user's progress directly. The reward is still granted
// at most once.
func (h *AchievementsHandler) AssignPoints(w http.ResponseWriter, r *http.Request) {
	var req assignPointsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UserID <= 0 || req.AchievementID <= 0 || req.Points == nil {
		writeError(w, r, apperr.Validation("user_id, achievement_id and points are required"))
		return
	}

	ua, err := h.assigner.AssignPoints(r.Context(), h.store, req.UserID, req.AchievementID, *req.Points)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, ua, http.StatusOK)
}
