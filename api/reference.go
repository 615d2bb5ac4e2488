package api

import (
	"net/http"
	"strings"

	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/pkg/models"
	"github.com/garnizeh/flyaway/pkg/repository"
)

type nameRequest struct {
	Name string `json:"name"`
}

func (req nameRequest) validate() (string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", apperr.Validation("name is required")
	}
	if len(name) > 255 {
		return "", apperr.Validation("name is too long")
	}
	return name, nil
}

type HabitatsHandler struct {
	repo repository.HabitatRepo
}

func NewHabitatsHandler(repo repository.HabitatRepo) *HabitatsHandler {
	return &HabitatsHandler{repo: repo}
}

func (h *HabitatsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListHabitats(r.Context())
	if err != nil {
		writeError(w, r, apperr.Internal("could not list habitats", err))
		return
	}
	if list == nil {
		list = []models.Habitat{}
	}
	writeJSON(w, list, http.StatusOK)
}

func (h *HabitatsHandler) Dropdown(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListHabitats(r.Context())
	if err != nil {
		writeError(w, r, apperr.Internal("could not list habitats", err))
		return
	}
	out := make([]dropdownItem, 0, len(list))
	for _, hab := range list {
		out = append(out, dropdownItem{ID: hab.ID, Name: hab.Name})
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *HabitatsHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hab, err := h.repo.GetHabitat(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("could not load habitat", err))
		return
	}
	if hab == nil {
		writeError(w, r, apperr.NotFound("Habitat not found"))
		return
	}
	writeJSON(w, hab, http.StatusOK)
}

func (h *HabitatsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name, err := req.validate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	hab := models.Habitat{Name: name}
	id, err := h.repo.CreateHabitat(r.Context(), &hab)
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, r, apperr.Conflict("Habitat %s already exists", name))
			return
		}
		writeError(w, r, apperr.Internal("could not create habitat", err))
		return
	}
	hab.ID = id
	writeJSON(w, hab, http.StatusCreated)
}

func (h *HabitatsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req nameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name, err := req.validate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	hab, err := h.repo.GetHabitat(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("could not load habitat", err))
		return
	}
	if hab == nil {
		writeError(w, r, apperr.NotFound("Habitat not found"))
		return
	}

	hab.Name = name
	if err := h.repo.UpdateHabitat(r.Context(), hab); err != nil {
		if isUniqueViolation(err) {
			writeError(w, r, apperr.Conflict("Habitat %s already exists", name))
			return
		}
		writeError(w, r, apperr.Internal("could not update habitat", err))
		return
	}
	writeJSON(w, hab, http.StatusOK)
}

// Delete clears the habitat from every species that referenced it.
func (h *HabitatsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hab, err := h.repo.GetHabitat(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("could not load habitat", err))
		return
	}
	if hab == nil {
		writeError(w, r, apperr.NotFound("Habitat not found"))
		return
	}

	if err := h.repo.DeleteHabitat(r.Context(), id); err != nil {
		writeError(w, r, apperr.Internal("could not delete habitat", err))
		return
	}
	writeJSON(w, messageResponse{Message: "Habitat deleted successfully"}, http.StatusOK)
}

type SpeciesTypesHandler struct {
	repo repository.SpeciesTypeRepo
}

func NewSpeciesTypesHandler(repo repository.SpeciesTypeRepo) *SpeciesTypesHandler {
	return &SpeciesTypesHandler{repo: repo}
}

// List includes the number of species linked to each type.
func (h *SpeciesTypesHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListSpeciesTypes(r.Context())
	if err != nil {
		writeError(w, r, apperr.Internal("could not list species types", err))
		return
	}
	if list == nil {
		list = []models.SpeciesType{}
	}
	writeJSON(w, list, http.StatusOK)
}

func (h *SpeciesTypesHandler) Dropdown(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListSpeciesTypes(r.Context())
	if err != nil {
		writeError(w, r, apperr.Internal("could not list species types", err))
		return
	}
	out := make([]dropdownItem, 0, len(list))
	for _, st := range list {
		out = append(out, dropdownItem{ID: st.ID, Name: st.Name})
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *SpeciesTypesHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.repo.GetSpeciesType(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("could not load species type", err))
		return
	}
	if st == nil {
		writeError(w, r, apperr.NotFound("Species type not found"))
		return
	}
	writeJSON(w, st, http.StatusOK)
}

func (h *SpeciesTypesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name, err := req.validate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	st := models.SpeciesType{Name: name}
	id, err := h.repo.CreateSpeciesType(r.Context(), &st)
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, r, apperr.Conflict("Species type %s already exists", name))
			return
		}
		writeError(w, r, apperr.Internal("could not create species type", err))
		return
	}
	st.ID = id
	writeJSON(w, st, http.StatusCreated)
}

func (h *SpeciesTypesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req nameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name, err := req.validate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	st, err := h.repo.GetSpeciesType(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("could not load species type", err))
		return
	}
	if st == nil {
		writeError(w, r, apperr.NotFound("Species type not found"))
		return
	}

	st.Name = name
	if err := h.repo.UpdateSpeciesType(r.Context(), st); err != nil {
		if isUniqueViolation(err) {
			writeError(w, r, apperr.Conflict("Species type %s already exists", name))
			return
		}
		writeError(w, r, apperr.Internal("could not update species type", err))
		return
	}
	writeJSON(w, st, http.StatusOK)
}

// Delete unlinks the type from species and achievements.
func (h *SpeciesTypesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.repo.GetSpeciesType(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Internal("could not load species type", err))
		return
	}
	if st == nil {
		writeError(w, r, apperr.NotFound("Species type not found"))
		return
	}

	if err := h.repo.DeleteSpeciesType(r.Context(), id); err != nil {
		writeError(w, r, apperr.Internal("could not delete species type", err))
		return
	}
	writeJSON(w, messageResponse{Message: "Species type deleted successfully"}, http.StatusOK)
}
