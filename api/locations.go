package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/garnizeh/flyaway/internal/apperr"
	"github.com/garnizeh/flyaway/internal/location"
	"github.com/garnizeh/flyaway/internal/submission"
	"github.com/garnizeh/flyaway/pkg/geo"
	"github.com/garnizeh/flyaway/pkg/models"
)

const dateLayout = "2006-01-02"

// multipart parts above this size are spooled to disk by net/http
const multipartMemory = 32 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Submitter stores one observation from uploaded images.
type Submitter interface {
	Submit(ctx context.Context, userID int64, req submission.Request) (*submission.Result, error)
}

type LocationsHandler struct {
	submitter     Submitter
	locations     *location.Service
	maxImageBytes int64
	maxImages     int
}

func NewLocationsHandler(s Submitter, locations *location.Service, maxImageBytes int64, maxImages int) *LocationsHandler {
	return &LocationsHandler{submitter: s, locations: locations, maxImageBytes: maxImageBytes, maxImages: maxImages}
}

type createLocationResponse struct {
	Message  string           `json:"message"`
	FunFact  string           `json:"fun_fact"`
	Location *models.Location `json:"location"`
}

type updateLocationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (h *LocationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized("Unauthenticated"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes*int64(h.maxImages)+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperr.Validation("Request is larger than %s", humanize.IBytes(uint64(tooLarge.Limit))))
			return
		}
		writeError(w, r, apperr.Validation("Invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	lat, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("lat")), 64)
	if err != nil {
		writeError(w, r, apperr.Validation("lat must be a number"))
		return
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("lng")), 64)
	if err != nil {
		writeError(w, r, apperr.Validation("lng must be a number"))
		return
	}

	headers := r.MultipartForm.File["images[]"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["images"]
	}
	if len(headers) > h.maxImages {
		writeError(w, r, apperr.Validation("At most %d images are allowed", h.maxImages))
		return
	}

	uploads := make([]models.Upload, 0, len(headers))
	for _, fh := range headers {
		u, err := h.readImage(fh)
		if err != nil {
			writeError(w, r, err)
			return
		}
		uploads = append(uploads, u)
	}

	res, err := h.submitter.Submit(r.Context(), userID, submission.Request{
		Images:  uploads,
		Lat:     lat,
		Lng:     lng,
		Kingdom: r.FormValue("specie_kingdom"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, createLocationResponse{
		Message:  "Location created successfully",
		FunFact:  res.FunFact,
		Location: res.Location,
	}, http.StatusCreated)
}

// readImage loads one uploaded part, enforcing the size limit and sniffing
// the content type instead of trusting the client header.
func (h *LocationsHandler) readImage(fh *multipart.FileHeader) (models.Upload, error) {
	limit := humanize.IBytes(uint64(h.maxImageBytes))
	if fh.Size > h.maxImageBytes {
		return models.Upload{}, apperr.Validation("Image %s is larger than %s", fh.Filename, limit)
	}

	f, err := fh.Open()
	if err != nil {
		return models.Upload{}, apperr.Validation("Image %s could not be read", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxImageBytes+1))
	if err != nil {
		return models.Upload{}, apperr.Validation("Image %s could not be read", fh.Filename)
	}
	if int64(len(data)) > h.maxImageBytes {
		return models.Upload{}, apperr.Validation("Image %s is larger than %s", fh.Filename, limit)
	}
	if len(data) == 0 {
		return models.Upload{}, apperr.Validation("Image %s is empty", fh.Filename)
	}

	ct := http.DetectContentType(data)
	if !allowedImageTypes[ct] {
		return models.Upload{}, apperr.Validation("Image %s must be a jpeg, png or gif", fh.Filename)
	}

	return models.Upload{Filename: fh.Filename, ContentType: ct, Data: data}, nil
}

func (h *LocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseLocationQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := h.locations.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, list, http.StatusOK)
}

func (h *LocationsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized("Unauthenticated"))
		return
	}

	list, err := h.locations.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, list, http.StatusOK)
}

func (h *LocationsHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	l, err := h.locations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, l, http.StatusOK)
}

func (h *LocationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized("Unauthenticated"))
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, r, apperr.Validation("lat and lng are required"))
		return
	}

	l, err := h.locations.UpdateCoords(r.Context(), userID, id, geo.Point{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, l, http.StatusOK)
}

func (h *LocationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		writeError(w, r, apperr.Unauthorized("Unauthenticated"))
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.locations.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, messageResponse{Message: "Location deleted successfully"}, http.StatusOK)
}

// parseLocationQuery reads the GET /v1/locations filters. Dates are whole
// days in UTC and both ends are inclusive.
func parseLocationQuery(r *http.Request) (location.Query, error) {
	v := r.URL.Query()
	var q location.Query

	q.Search = strings.TrimSpace(v.Get("search"))

	ids, err := parseIDs("specie_ids", v.Get("specie_ids"))
	if err != nil {
		return q, err
	}
	q.SpeciesIDs = ids

	if s := v.Get("start_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return q, apperr.Validation("start_date must be YYYY-MM-DD")
		}
		q.From = t.UnixMilli()
	}
	if s := v.Get("end_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return q, apperr.Validation("end_date must be YYYY-MM-DD")
		}
		q.To = t.AddDate(0, 0, 1).UnixMilli()
	}
	if q.From > 0 && q.To > 0 && q.From >= q.To {
		return q, apperr.Validation("start_date must not be after end_date")
	}

	latS, lngS, kmS := v.Get("lat"), v.Get("lng"), v.Get("kilometers")
	if latS == "" && lngS == "" && kmS == "" {
		return q, nil
	}
	if latS == "" || lngS == "" || kmS == "" {
		return q, apperr.Validation("lat, lng and kilometers must be given together")
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return q, apperr.Validation("lat must be a number")
	}
	lng, err := strconv.ParseFloat(lngS, 64)
	if err != nil {
		return q, apperr.Validation("lng must be a number")
	}
	km, err := strconv.ParseFloat(kmS, 64)
	if err != nil || km <= 0 {
		return q, apperr.Validation("kilometers must be a positive number")
	}
	q.Near = &geo.Point{Lat: lat, Lng: lng}
	q.Kilometers = km

	return q, nil
}
