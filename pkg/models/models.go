package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Domain models matching the database schema in db/migrations/0001_init.sql

// Kingdom is the top-level taxonomy bucket declared by the uploader.
type Kingdom string

const (
	KingdomPlant    Kingdom = "plant"
	KingdomAnimal   Kingdom = "animal"
	KingdomMushroom Kingdom = "mushroom"
)

// ParseKingdom accepts the lowercase wire form (case-insensitive).
func ParseKingdom(s string) (Kingdom, error) {
	k := Kingdom(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KingdomPlant, KingdomAnimal, KingdomMushroom:
		return k, nil
	}
	return "", fmt.Errorf("invalid kingdom %q: use plant, animal or mushroom", s)
}

// DisplayName is the name stored in species_kingdoms ("Plant", "Animal", "Mushroom").
func (k Kingdom) DisplayName() string {
	return cases.Title(language.Und).String(string(k))
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name" validate:"required"`
	Email        string `json:"email" db:"email" validate:"required,email"`
	XP           int64  `json:"xp" db:"xp"`
	Role         string `json:"role" db:"role"`
	PasswordHash string `json:"-" db:"password_hash"`
	Created      int64  `json:"created" db:"created"`
	Updated      int64  `json:"updated" db:"updated"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type SpeciesKingdom struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Habitat struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type SpeciesType struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	// SpeciesCount is only filled by list queries.
	SpeciesCount int64 `json:"species_count,omitempty" db:"species_count"`
}

// FileRecord is an uploaded image owned by a location or a species.
type FileRecord struct {
	ID           int64  `json:"id" db:"id"`
	Path         string `json:"path" db:"path"`
	OriginalName string `json:"original_name" db:"original_name"`
	ContentType  string `json:"content_type" db:"content_type"`
	OwnerType    string `json:"-" db:"owner_type"`
	OwnerID      int64  `json:"-" db:"owner_id"`
	Created      int64  `json:"created" db:"created"`
}

const (
	OwnerLocation = "location"
	OwnerSpecies  = "species"
)

// Species is shared reference data. Relations are always loaded by the
// repository; nothing here triggers further queries.
type Species struct {
	ID             int64          `json:"id" db:"id"`
	Kingdom        SpeciesKingdom `json:"specie_kingdom"`
	Habitat        *Habitat       `json:"habitat,omitempty"`
	CommonName     string         `json:"common_name" db:"common_name"`
	ScientificName string         `json:"scientific_name" db:"scientific_name"`
	Image          *FileRecord    `json:"image,omitempty"`
	Types          []SpeciesType  `json:"specie_types"`
	CreatedBy      *int64         `json:"user_id,omitempty" db:"created_by"`
	Created        int64          `json:"created" db:"created"`
	Updated        int64          `json:"updated" db:"updated"`
}

// TypeIDs returns the ids of the species' linked species types.
func (s *Species) TypeIDs() []int64 {
	out := make([]int64, 0, len(s.Types))
	for _, t := range s.Types {
		out = append(out, t.ID)
	}
	return out
}

type Achievement struct {
	ID               int64         `json:"id" db:"id"`
	Name             string        `json:"name" db:"name"`
	Description      string        `json:"description" db:"description"`
	PointsToComplete int           `json:"points_to_complete" db:"points_to_complete"`
	RewardXP         int64         `json:"reward_xp" db:"reward_xp"`
	Types            []SpeciesType `json:"specie_types"`
	Created          int64         `json:"created" db:"created"`
	Updated          int64         `json:"updated" db:"updated"`
}

// UserAchievement is the per-user progress row for one achievement.
type UserAchievement struct {
	UserID        int64  `json:"user_id" db:"user_id"`
	AchievementID int64  `json:"achievement_id" db:"achievement_id"`
	Points        int    `json:"points" db:"points"`
	CompletedAt   *int64 `json:"completed_at,omitempty" db:"completed_at"`
	Updated       int64  `json:"updated" db:"updated"`
}

// AchievementProgress pairs an achievement with the caller's accumulated points.
type AchievementProgress struct {
	Achievement Achievement `json:"achievement"`
	Points      int         `json:"points"`
	Completed   bool        `json:"completed"`
}

// Location is one observation: a user saw a species at a point.
type Location struct {
	ID          int64        `json:"id" db:"id"`
	UserID      int64        `json:"user_id" db:"user_id"`
	SpeciesID   int64        `json:"specie_id" db:"species_id"`
	Lat         float64      `json:"lat" db:"lat"`
	Lng         float64      `json:"lng" db:"lng"`
	Confidence  float64      `json:"confidence" db:"confidence"`
	SpeciesName string       `json:"species_name" db:"species_name"`
	Images      []FileRecord `json:"images"`
	Species     *Species     `json:"specie,omitempty"`
	User        *UserSummary `json:"user,omitempty"`
	Created     int64        `json:"created_at" db:"created"`
	Updated     int64        `json:"updated_at" db:"updated"`
}

// UserSummary is the public part of a user embedded in other payloads.
type UserSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LocationFilter narrows GET /v1/locations. Zero values disable a filter.
type LocationFilter struct {
	UserID     int64
	Search     string
	SpeciesIDs []int64
	From       int64 // unix millis, inclusive
	To         int64 // unix millis, exclusive
	Bounds     *Bounds
}

// Bounds is a lat/lng rectangle. Longitudes outside [-180, 180] disable the
// longitude condition.
type Bounds struct {
	MinLat, MinLng float64
	MaxLat, MaxLng float64
}

type SpeciesFilter struct {
	Search         string
	SpeciesTypeIDs []int64
	HabitatID      int64
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	XP       int64  `json:"xp"`
	Level    int    `json:"level"`
	XPToNext int64  `json:"xp_to_next_level"`
}

// Upload is an image received from a client, held in memory until stored.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}
