package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

// FileRemover deletes stored upload files by path.
type FileRemover interface {
	Remove(paths ...string) error
}

type SpeciesHandler struct {
	store repository.TxStore
	files FileRemover
}

func NewSpeciesHandler(store repository.TxStore, files FileRemover) *SpeciesHandler {
	return &SpeciesHandler{store: store, files: files}
}

type speciesRequest struct {
	Kingdom        string  `json:"specie_kingdom"`
	HabitatID      *int64  `json:"habitat_id"`
	CommonName     string  `json:"common_name"`
	ScientificName string  `json:"scientific_name"`
	TypeIDs        []int64 `json:"specie_type_ids"`
}

type dropdownItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (h *SpeciesHandler) List(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	f := models.SpeciesFilter{Search: strings.TrimSpace(v.Get("search"))}

	ids, err := parseIDs("specie_type_ids", v.Get("specie_type_ids"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.SpeciesTypeIDs = ids

	if s := v.Get("habitat_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, apperr.Validation("invalid habitat_id"))
			return
		}
		f.HabitatID = id
	}

	list, err := h.store.ListSpecies(r.Context(), f)
	if err != nil {
		writeError(w, r, apperr.Internal("could not list species", err))
		return
	}
	if list == nil {
		list = []models.Species{}
	}
	writeJSON(w, list, http.StatusOK)
}

func (h *SpeciesHandler) Dropdown(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListSpecies(r.Context(), models.SpeciesFilter{})
	if err != nil {
		writeError(w, r, apperr.Internal("could not list species", err))
		return
	}

	out := make([]dropdownItem, 0, len(list))
	for _, s := range list {
		out = append(out, dropdownItem{ID: s.ID, Name: fmt.Sprintf("%s (%s)", s.CommonName, s.ScientificName)})
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *SpeciesHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s, err := h.store.GetSpecies(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("could not load species", err))
		return
	}
	if s == nil {
		writeError(w, r, apperr.NotFound("Species not found"))
		return
	}
	writeJSON(w, s, http.StatusOK)
}

func (h *SpeciesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req speciesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	var out *models.Species
	err := h.store.WithTx(ctx, func(tx repository.Store) error {
		s, err := buildSpecies(ctx, tx, req)
		if err != nil {
			return err
		}
		if userID, ok := UserIDFrom(ctx); ok {
			s.CreatedBy = &userID
		}

		id, created, err := tx.CreateSpecies(ctx, s)
		if err != nil {
			return apperr.Internal("could not create species", err)
		}
		if !created {
			return apperr.Conflict("Species %s already exists", s.ScientificName)
		}
		if err := tx.SetSpeciesTypes(ctx, id, req.TypeIDs); err != nil {
			return apperr.Internal("could not create species", err)
		}

		out, err = tx.GetSpecies(ctx, id)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusCreated)
}

func (h *SpeciesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req speciesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	var out *models.Species
	err = h.store.WithTx(ctx, func(tx repository.Store) error {
		current, err := tx.GetSpecies(ctx, id)
		if err != nil {
			return apperr.Internal("could not load species", err)
		}
		if current == nil {
			return apperr.NotFound("Species not found")
		}

		s, err := buildSpecies(ctx, tx, req)
		if err != nil {
			return err
		}
		other, err := tx.GetSpeciesByScientificName(ctx, s.ScientificName)
		if err != nil {
			return apperr.Internal("could not update species", err)
		}
		if other != nil && other.ID != id {
			return apperr.Conflict("Species %s already exists", s.ScientificName)
		}

		s.ID = id
		if err := tx.UpdateSpecies(ctx, s); err != nil {
			return apperr.Internal("could not update species", err)
		}
		if req.TypeIDs != nil {
			if err := tx.SetSpeciesTypes(ctx, id, req.TypeIDs); err != nil {
				return apperr.Internal("could not update species", err)
			}
		}

		out, err = tx.GetSpecies(ctx, id)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *SpeciesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	var paths []string
	err = h.store.WithTx(ctx, func(tx repository.Store) error {
		s, err := tx.GetSpecies(ctx, id)
		if err != nil {
			return apperr.Internal("could not load species", err)
		}
		if s == nil {
			return apperr.NotFound("Species not found")
		}

		used, err := tx.ListLocations(ctx, models.LocationFilter{SpeciesIDs: []int64{id}})
		if err != nil {
			return apperr.Internal("could not delete species", err)
		}
		if len(used) > 0 {
			return apperr.Conflict("Species has %d observations and cannot be deleted", len(used))
		}

		images, err := tx.ListFiles(ctx, models.OwnerSpecies, id)
		if err != nil {
			return apperr.Internal("could not delete species", err)
		}
		for _, f := range images {
			paths = append(paths, f.Path)
		}

		if err := tx.DeleteSpecies(ctx, id); err != nil {
			return apperr.Internal("could not delete species", err)
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if len(paths) > 0 && h.files != nil {
		if err := h.files.Remove(paths...); err != nil {
			logger.Error("failed to remove species images", slog.Int64("species_id", id), slog.Any("err", err))
		}
	}
	writeJSON(w, messageResponse{Message: "Species deleted successfully"}, http.StatusOK)
}

// buildSpecies validates an admin species payload against the reference
// tables.
func buildSpecies(ctx context.Context, store repository.Store, req speciesRequest) (*models.Species, error) {
	sci := strings.TrimSpace(req.ScientificName)
	if sci == "" {
		return nil, apperr.Validation("scientific_name is required")
	}
	common := strings.TrimSpace(req.CommonName)
	if common == "" {
		common = sci
	}

	kingdom, err := models.ParseKingdom(req.Kingdom)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	k, err := store.GetKingdomByName(ctx, kingdom.DisplayName())
	if err != nil {
		return nil, apperr.Internal("could not load kingdom", err)
	}
	if k == nil {
		return nil, apperr.NotFound("Kingdom %s not found", kingdom.DisplayName())
	}

	s := &models.Species{Kingdom: *k, CommonName: common, ScientificName: sci}
	if req.HabitatID != nil {
		hab, err := store.GetHabitat(ctx, *req.HabitatID)
		if err != nil {
			return nil, apperr.Internal("could not load habitat", err)
		}
		if hab == nil {
			return nil, apperr.Validation("unknown habitat_id %d", *req.HabitatID)
		}
		s.Habitat = hab
	}

	if err := checkTypeIDs(ctx, store, req.TypeIDs); err != nil {
		return nil, err
	}
	return s, nil
}

func checkTypeIDs(ctx context.Context, store repository.Store, ids []int64) error {
	for _, id := range ids {
		st, err := store.GetSpeciesType(ctx, id)
		if err != nil {
			return apperr.Internal("could not load species type", err)
		}
		if st == nil {
			return apperr.Validation("unknown specie_type_id %d", id)
		}
	}
	return nil
}
