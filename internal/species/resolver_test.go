package species_test

import (
	"context"
	"errors"
	"testing"

	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/internal/repository/sqlite/sqlitetest"
	"github.com/garnizeh/flyaway/internal/species"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memImages struct {
	saved []string
	err   error
}

func (m *memImages) Save(folder, contentType string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	p := folder + "/" + string(data)
	m.saved = append(m.saved, p)
	return p, nil
}

func bestImage(name string) models.Upload {
	return models.Upload{Filename: name + ".jpg", ContentType: "image/jpeg", Data: []byte(name)}
}

func TestResolve_CreatesNewSpecies(t *testing.T) {
	repo := sqlitetest.New(t)
	userID := sqlitetest.User(t, repo, "ana@example.com")
	images := &memImages{}
	r := species.NewResolver(nil, nil)

	s, err := r.Resolve(context.Background(), repo, images, species.Candidate{
		ScientificName: "Bombus terrestris",
		Kingdom:        models.KingdomAnimal,
		BestImage:      bestImage("best"),
		UserID:         userID,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bombus terrestris", s.ScientificName)
	assert.Equal(t, "Bombus terrestris", s.CommonName)
	assert.Equal(t, "Animal", s.Kingdom.Name)
	assert.Nil(t, s.Habitat)
	require.NotNil(t, s.CreatedBy)
	assert.Equal(t, userID, *s.CreatedBy)
	require.NotNil(t, s.Image)
	assert.Equal(t, "species/best", s.Image.Path)
	assert.Equal(t, []string{"species/best"}, images.saved)
}

func TestResolve_ExistingSpeciesIsNotMutated(t *testing.T) {
	repo := sqlitetest.New(t)
	ctx := context.Background()
	userID := sqlitetest.User(t, repo, "ana@example.com")
	images := &memImages{}
	r := species.NewResolver(nil, nil)

	first, err := r.Resolve(ctx, repo, images, species.Candidate{
		ScientificName: "Amanita muscaria",
		Kingdom:        models.KingdomMushroom,
		BestImage:      bestImage("first"),
		UserID:         userID,
	})
	require.NoError(t, err)

	habitats, err := repo.ListHabitats(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, habitats)
	first.Habitat = &habitats[0]
	require.NoError(t, repo.UpdateSpecies(ctx, first))

	again, err := r.Resolve(ctx, repo, images, species.Candidate{
		ScientificName: "Amanita muscaria",
		Kingdom:        models.KingdomPlant,
		BestImage:      bestImage("second"),
		UserID:         userID,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Mushroom", again.Kingdom.Name)
	require.NotNil(t, again.Habitat)
	assert.Equal(t, habitats[0].ID, again.Habitat.ID)
	require.NotNil(t, again.Image)
	assert.Equal(t, "species/first", again.Image.Path)
	assert.Len(t, images.saved, 1)

	list, err := repo.ListSpecies(ctx, models.SpeciesFilter{Search: "Amanita"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestResolve_ImageFailureIsReturned(t *testing.T) {
	repo := sqlitetest.New(t)
	r := species.NewResolver(nil, nil)

	_, err := r.Resolve(context.Background(), repo, &memImages{err: errors.New("disk full")}, species.Candidate{
		ScientificName: "Quercus robur",
		Kingdom:        models.KingdomPlant,
		BestImage:      bestImage("oak"),
	})
	assert.ErrorContains(t, err, "disk full")
}

func TestResolve_EmptyName(t *testing.T) {
	repo := sqlitetest.New(t)
	r := species.NewResolver(nil, nil)

	_, err := r.Resolve(context.Background(), repo, &memImages{}, species.Candidate{Kingdom: models.KingdomPlant})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
