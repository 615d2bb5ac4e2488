package api

import (
	"context"
	"net/http"
	"net/mail"
	"strings"

	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/internal/leveling"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

// AchievementProgresser reports a user's progress on every achievement.
type AchievementProgresser interface {
	Progress(ctx context.Context, store repository.Store, userID int64) ([]models.AchievementProgress, error)
}

// AccountPurger deletes a user together with everything the user owns.
type AccountPurger interface {
	PurgeUser(ctx context.Context, userID int64) error
}

type UserHandler struct {
	store        repository.Store
	achievements AchievementProgresser
	purger       AccountPurger
}

func NewUserHandler(store repository.Store, achievements AchievementProgresser, purger AccountPurger) *UserHandler {
	return &UserHandler{store: store, achievements: achievements, purger: purger}
}

type profileResponse struct {
	User         *models.User                 `json:"user"`
	Level        leveling.Progress            `json:"level"`
	Achievements []models.AchievementProgress `json:"achievements"`
}

type updateProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *UserHandler) currentUser(r *http.Request) (*models.User, error) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		return nil, apperr.Unauthorized("Unauthenticated")
	}
	u, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		return nil, apperr.Internal("could not load user", err)
	}
	if u == nil {
		return nil, apperr.Unauthorized("Unauthenticated")
	}
	return u, nil
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	progress, err := h.achievements.Progress(r.Context(), h.store, u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, profileResponse{User: u, Level: leveling.Compute(u.XP), Achievements: progress}, http.StatusOK)
}

func (h *UserHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized("Unauthenticated"))
		return
	}

	progress, err := h.achievements.Progress(r.Context(), h.store, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, progress, http.StatusOK)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		u.Name = name
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != u.Email {
		if _, err := mail.ParseAddress(email); err != nil {
			writeError(w, r, apperr.Validation("Invalid email address"))
			return
		}
		other, err := h.store.GetUserByEmail(r.Context(), email)
		if err != nil {
			writeError(w, r, apperr.Internal("could not update user", err))
			return
		}
		if other != nil {
			writeError(w, r, apperr.Conflict("Email already registered"))
			return
		}
		u.Email = email
	}

	if err := h.store.UpdateUser(r.Context(), u); err != nil {
		if isUniqueViolation(err) {
			writeError(w, r, apperr.Conflict("Email already registered"))
			return
		}
		writeError(w, r, apperr.Internal("could not update user", err))
		return
	}

	writeJSON(w, u, http.StatusOK)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized("Unauthenticated"))
		return
	}

	if err := h.purger.PurgeUser(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, messageResponse{Message: "Account deleted"}, http.StatusOK)
}
