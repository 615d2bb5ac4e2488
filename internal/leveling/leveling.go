// Package leveling maps accumulated XP to levels. Levels are never stored;
// they are recomputed from XP on every read.
package leveling

import (
	"math"

	"github.com/garnizeh/flyaway/pkg/models"
)

// xpPerLevelUnit is the XP needed for level 1; level n needs n² of these.
const xpPerLevelUnit = 100

// Progress is the level view of an XP total.
type Progress struct {
	XP              int64 `json:"xp"`
	Level           int   `json:"level"`
	CurrentLevelXP  int64 `json:"current_level_xp"`
	NextLevelXP     int64 `json:"next_level_xp"`
	XPToNextLevel   int64 `json:"xp_to_next_level"`
	ProgressPercent int   `json:"progress_percent"`
}

// maxLevel is the highest level whose threshold fits in an int64.
var maxLevel = isqrt(math.MaxInt64 / xpPerLevelUnit)

// Level returns floor(sqrt(xp / 100)). Negative XP is treated as 0.
func Level(xp int64) int {
	if xp <= 0 {
		return 0
	}
	// n²·100 <= xp exactly when n² <= xp/100, so the division loses nothing
	return int(isqrt(xp / xpPerLevelUnit))
}

// XPThresholdForLevel is the XP at which level n starts: n² × 100. It
// saturates at math.MaxInt64 for levels past maxLevel.
func XPThresholdForLevel(n int) int64 {
	if n <= 0 {
		return 0
	}
	if int64(n) > maxLevel {
		return math.MaxInt64
	}
	return int64(n) * int64(n) * xpPerLevelUnit
}

// isqrt returns floor(sqrt(v)) for v >= 0.
func isqrt(v int64) int64 {
	n := int64(math.Sqrt(float64(v)))
	for n > 0 && n*n > v {
		n--
	}
	for (n+1)*(n+1) <= v {
		n++
	}
	return n
}

// XPToNextLevel is the XP still missing to reach the next level.
func XPToNextLevel(xp int64) int64 {
	if xp < 0 {
		xp = 0
	}
	return XPThresholdForLevel(Level(xp)+1) - xp
}

// Compute returns the full progress view for xp.
func Compute(xp int64) Progress {
	if xp < 0 {
		xp = 0
	}

	lvl := Level(xp)
	cur := XPThresholdForLevel(lvl)
	next := XPThresholdForLevel(lvl + 1)

	return Progress{
		XP:              xp,
		Level:           lvl,
		CurrentLevelXP:  cur,
		NextLevelXP:     next,
		XPToNextLevel:   next - xp,
		ProgressPercent: int((xp - cur) * 100 / (next - cur)),
	}
}

// Rank turns users ordered by xp descending into leaderboard entries.
func Rank(users []models.User) []models.LeaderboardEntry {
	out := make([]models.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		out = append(out, models.LeaderboardEntry{
			Rank:     i + 1,
			UserID:   u.ID,
			Name:     u.Name,
			Email:    u.Email,
			XP:       u.XP,
			Level:    Level(u.XP),
			XPToNext: XPToNextLevel(u.XP),
		})
	}
	return out
}
