package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/risingfruit/forage/internal/model"
	"github.com/risingfruit/forage/internal/query"
)

// Querier is the read side of the store the handlers depend on.
type Querier interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*model.Stats, error)
	LocationsInBounds(ctx context.Context, q query.BoundsQuery) ([]model.LocationSummary, error)
	CountInBounds(ctx context.Context, q query.BoundsQuery) (int, error)
	LocationByID(ctx context.Context, id int64) (*model.LocationDetail, error)
	Types(ctx context.Context, f query.TypeFilter) ([]model.Type, error)
	TypeByID(ctx context.Context, id int64) (*model.TypeDetail, error)
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// LocationsResponse is the body of GET /api/locations.
type LocationsResponse struct {
	Count     int                     `json:"count"`
	Total     int                     `json:"total"`
	Locations []model.LocationSummary `json:"locations"`
}

// TypesResponse is the body of GET /api/types.
type TypesResponse struct {
	Count int          `json:"count"`
	Types []model.Type `json:"types"`
}

// Handlers serves the JSON API.
type Handlers struct {
	q Querier
}

// NewHandlers creates handlers over q.
func NewHandlers(q Querier) *Handlers {
	return &Handlers{q: q}
}

// Health always answers 200; a failing database is reported as degraded.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Database: "connected"}
	if err := h.q.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "error: " + err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.q.Stats(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Locations handles GET /api/locations. The page and its total come from two
// statements over the same predicate.
func (h *Handlers) Locations(w http.ResponseWriter, r *http.Request) {
	bq, err := parseBoundsQuery(r.URL.Query())
	if err != nil {
		badRequest(w, r, err)
		return
	}

	locs, err := h.q.LocationsInBounds(r.Context(), bq)
	if err != nil {
		internalError(w, r, err)
		return
	}
	total, err := h.q.CountInBounds(r.Context(), bq)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LocationsResponse{Count: len(locs), Total: total, Locations: locs})
}

func (h *Handlers) Location(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, r, err)
		return
	}
	loc, err := h.q.LocationByID(r.Context(), id)
	if err != nil {
		internalError(w, r, err)
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *Handlers) Types(w http.ResponseWriter, r *http.Request) {
	f, err := parseTypeFilter(r.URL.Query())
	if err != nil {
		badRequest(w, r, err)
		return
	}
	types, err := h.q.Types(r.Context(), f)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TypesResponse{Count: len(types), Types: types})
}

func (h *Handlers) Type(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, r, err)
		return
	}
	t, err := h.q.TypeByID(r.Context(), id)
	if err != nil {
		internalError(w, r, err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "type not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var pe *paramError
	if errors.As(err, &pe) {
		writeError(w, http.StatusBadRequest, pe.msg)
		return
	}
	internalError(w, r, err)
}
