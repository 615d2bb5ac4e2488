package repository

import (
	"context"

	"github.com/garnizeh/flyaway/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Lookups by key return (nil, nil) when the row does not exist.

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	SetUserRole(ctx context.Context, id int64, role string) error
	AddUserXP(ctx context.Context, id int64, delta int64) error
	DeleteUser(ctx context.Context, id int64) error
	ListUsersByXP(ctx context.Context, limit int) ([]models.User, error)
}

type KingdomRepo interface {
	GetKingdomByName(ctx context.Context, name string) (*models.SpeciesKingdom, error)
	ListKingdoms(ctx context.Context) ([]models.SpeciesKingdom, error)
}

type HabitatRepo interface {
	CreateHabitat(ctx context.Context, h *models.Habitat) (int64, error)
	GetHabitat(ctx context.Context, id int64) (*models.Habitat, error)
	ListHabitats(ctx context.Context) ([]models.Habitat, error)
	UpdateHabitat(ctx context.Context, h *models.Habitat) error
	DeleteHabitat(ctx context.Context, id int64) error
}

type SpeciesTypeRepo interface {
	CreateSpeciesType(ctx context.Context, st *models.SpeciesType) (int64, error)
	GetSpeciesType(ctx context.Context, id int64) (*models.SpeciesType, error)
	ListSpeciesTypes(ctx context.Context) ([]models.SpeciesType, error)
	UpdateSpeciesType(ctx context.Context, st *models.SpeciesType) error
	DeleteSpeciesType(ctx context.Context, id int64) error
}

type SpeciesRepo interface {
	// CreateSpecies inserts a species unless one with the same scientific
	// name already exists. created reports whether this call inserted the row.
	CreateSpecies(ctx context.Context, s *models.Species) (id int64, created bool, err error)
	GetSpecies(ctx context.Context, id int64) (*models.Species, error)
	GetSpeciesByScientificName(ctx context.Context, name string) (*models.Species, error)
	ListSpecies(ctx context.Context, f models.SpeciesFilter) ([]models.Species, error)
	UpdateSpecies(ctx context.Context, s *models.Species) error
	SetSpeciesTypes(ctx context.Context, speciesID int64, typeIDs []int64) error
	DeleteSpecies(ctx context.Context, id int64) error
}

type FileRepo interface {
	CreateFile(ctx context.Context, f *models.FileRecord) (int64, error)
	ListFiles(ctx context.Context, ownerType string, ownerID int64) ([]models.FileRecord, error)
	DeleteFiles(ctx context.Context, ownerType string, ownerID int64) error
}

type LocationRepo interface {
	CreateLocation(ctx context.Context, l *models.Location) (int64, error)
	GetLocation(ctx context.Context, id int64) (*models.Location, error)
	ListLocations(ctx context.Context, f models.LocationFilter) ([]models.Location, error)
	UpdateLocationCoords(ctx context.Context, id int64, lat, lng float64) error
	DeleteLocation(ctx context.Context, id int64) error
	CountLocations(ctx context.Context) (int64, error)
}

type AchievementRepo interface {
	CreateAchievement(ctx context.Context, a *models.Achievement) (int64, error)
	GetAchievement(ctx context.Context, id int64) (*models.Achievement, error)
	ListAchievements(ctx context.Context) ([]models.Achievement, error)
	UpdateAchievement(ctx context.Context, a *models.Achievement) error
	SetAchievementTypes(ctx context.Context, achievementID int64, typeIDs []int64) error
	DeleteAchievement(ctx context.Context, id int64) error

	// ListAchievementsBySpeciesTypes returns every achievement linked to at
	// least one of the given species types.
	ListAchievementsBySpeciesTypes(ctx context.Context, typeIDs []int64) ([]models.Achievement, error)

	GetUserAchievement(ctx context.Context, userID, achievementID int64) (*models.UserAchievement, error)
	UpsertUserAchievement(ctx context.Context, ua *models.UserAchievement) error
	ListUserAchievements(ctx context.Context, userID int64) ([]models.AchievementProgress, error)
	CountUserAchievements(ctx context.Context) (int64, error)
}

// Store groups every repository behind one handle.
type Store interface {
	UserRepo
	KingdomRepo
	HabitatRepo
	SpeciesTypeRepo
	SpeciesRepo
	FileRepo
	LocationRepo
	AchievementRepo
}

// TxStore is a Store that can run a function inside a single transaction.
// The Store passed to fn is bound to the transaction; if fn returns an error
// every write made through it is rolled back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
