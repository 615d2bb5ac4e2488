package location_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/internal/location"
	"github.com/garnizeh/flyaway/internal/repository/sqlite"
	"github.com/garnizeh/flyaway/internal/repository/sqlite/sqlitetest"
	"github.com/garnizeh/flyaway/internal/storage"
	"github.com/garnizeh/flyaway/pkg/geo"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	repo    *sqlite.SQLiteRepo
	files   *storage.Local
	svc     *location.Service
	owner   int64
	other   int64
	species int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	repo := sqlitetest.New(t)
	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	k, err := repo.GetKingdomByName(ctx, "Animal")
	require.NoError(t, err)
	spID, _, err := repo.CreateSpecies(ctx, &models.Species{Kingdom: *k, CommonName: "Buff-tailed bumblebee", ScientificName: "Bombus terrestris"})
	require.NoError(t, err)

	return &env{
		repo:    repo,
		files:   files,
		svc:     location.NewService(repo, files, nil),
		owner:   sqlitetest.User(t, repo, "owner@example.com"),
		other:   sqlitetest.User(t, repo, "other@example.com"),
		species: spID,
	}
}

// add stores a location with one image file.
func (e *env) add(t *testing.T, userID int64, lat, lng float64) (int64, string) {
	t.Helper()
	ctx := context.Background()

	id, err := e.repo.CreateLocation(ctx, &models.Location{UserID: userID, SpeciesID: e.species, Lat: lat, Lng: lng, Confidence: 0.9, SpeciesName: "Bombus terrestris"})
	require.NoError(t, err)

	path, err := e.files.Save("locations", "image/jpeg", []byte("img"))
	require.NoError(t, err)
	_, err = e.repo.CreateFile(ctx, &models.FileRecord{Path: path, OriginalName: "a.jpg", ContentType: "image/jpeg", OwnerType: models.OwnerLocation, OwnerID: id})
	require.NoError(t, err)
	return id, path
}

func (e *env) exists(path string) bool {
	_, err := os.Stat(filepath.Join(e.files.Dir, filepath.FromSlash(path)))
	return err == nil
}

func TestList_Radius(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	near, _ := e.add(t, e.owner, 46.0569, 14.5058) // Ljubljana
	e.add(t, e.owner, 46.5547, 15.6459)            // Maribor, ~104 km away

	list, err := e.svc.List(ctx, location.Query{Near: &geo.Point{Lat: 46.06, Lng: 14.51}, Kilometers: 20})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, near, list[0].ID)

	list, err = e.svc.List(ctx, location.Query{Near: &geo.Point{Lat: 46.06, Lng: 14.51}, Kilometers: 150})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = e.svc.List(ctx, location.Query{Near: &geo.Point{Lat: 120}, Kilometers: 5})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestList_Filters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	mine, _ := e.add(t, e.owner, 46, 14)
	e.add(t, e.other, 46, 14)

	list, err := e.svc.ListByUser(ctx, e.owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine, list[0].ID)
	require.Len(t, list[0].Images, 1)
	require.NotNil(t, list[0].Species)

	list, err = e.svc.List(ctx, location.Query{LocationFilter: models.LocationFilter{Search: "bumblebee"}})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = e.svc.List(ctx, location.Query{LocationFilter: models.LocationFilter{Search: "Quercus"}})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = e.svc.List(ctx, location.Query{LocationFilter: models.LocationFilter{SpeciesIDs: []int64{e.species + 1}}})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id, _ := e.add(t, e.owner, 46, 14)

	l, err := e.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, l.ID)
	require.NotNil(t, l.User)
	assert.Equal(t, e.owner, l.User.ID)

	_, err = e.svc.Get(ctx, id+100)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateCoords_OwnerOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id, _ := e.add(t, e.owner, 46, 14)

	_, err := e.svc.UpdateCoords(ctx, e.other, id, geo.Point{Lat: 45, Lng: 13})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = e.svc.UpdateCoords(ctx, e.owner, id+100, geo.Point{Lat: 45, Lng: 13})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = e.svc.UpdateCoords(ctx, e.owner, id, geo.Point{Lat: 95, Lng: 13})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	l, err := e.svc.UpdateCoords(ctx, e.owner, id, geo.Point{Lat: 45, Lng: 13})
	require.NoError(t, err)
	assert.Equal(t, 45.0, l.Lat)
	assert.Equal(t, 13.0, l.Lng)
}

func TestDelete_OwnerOnlyAndRemovesFiles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id, path := e.add(t, e.owner, 46, 14)

	err := e.svc.Delete(ctx, e.other, id)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.True(t, e.exists(path))

	require.NoError(t, e.svc.Delete(ctx, e.owner, id))
	assert.False(t, e.exists(path))

	_, err = e.svc.Get(ctx, id)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = e.svc.Delete(ctx, e.owner, id)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPurgeUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, mine := e.add(t, e.owner, 46, 14)
	_, theirs := e.add(t, e.other, 46, 14)

	require.NoError(t, e.svc.PurgeUser(ctx, e.owner))

	assert.False(t, e.exists(mine))
	assert.True(t, e.exists(theirs))

	u, err := e.repo.GetUserByID(ctx, e.owner)
	require.NoError(t, err)
	assert.Nil(t, u)

	n, err := e.repo.CountLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sp, err := e.repo.GetSpecies(ctx, e.species)
	require.NoError(t, err)
	assert.NotNil(t, sp)

	err = e.svc.PurgeUser(ctx, e.owner)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
