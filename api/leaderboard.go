package api

import (
	"net/http"
	"strconv"

	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/internal/leveling"
	"github.com/garnizeh/flyaway/pkg/repository"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type LeaderboardHandler struct {
	userRepo repository.UserRepo
}

func NewLeaderboardHandler(ur repository.UserRepo) *LeaderboardHandler {
	return &LeaderboardHandler{userRepo: ur}
}

func (h *LeaderboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v <= 0 {
			writeError(w, r, apperr.Validation("limit must be a positive number"))
			return
		}
		limit = min(v, maxLeaderboardLimit)
	}

	users, err := h.userRepo.ListUsersByXP(r.Context(), limit)
	if err != nil {
		writeError(w, r, apperr.Internal("could not load leaderboard", err))
		return
	}

	writeJSON(w, leveling.Rank(users), http.StatusOK)
}

// Level reports level progress for ?xp=N.
func (h *LeaderboardHandler) Level(w http.ResponseWriter, r *http.Request) {
	xp, err := strconv.ParseInt(r.URL.Query().Get("xp"), 10, 64)
	if err != nil || xp < 0 {
		writeError(w, r, apperr.Validation("xp must be a non-negative integer"))
		return
	}
	writeJSON(w, leveling.Compute(xp), http.StatusOK)
}
