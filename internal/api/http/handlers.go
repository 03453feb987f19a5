package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gitlab.com/nevasik7/alerting/logger"

	"poolstats/internal/domain"
	"poolstats/internal/store"
	"poolstats/pkg/httputil"
)

// HealthChecker pings one external dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Deps struct {
	Log        logger.Logger
	Entities   *store.Entities
	ProtocolID string

	// named dependency healthchecks for /readiness
	Checks map[string]HealthChecker
}

type API struct {
	d Deps
}

func NewAPI(d Deps) *API {
	if d.Entities == nil {
		panic("entities cannot be nil")
	}
	return &API{d: d}
}

func (a *API) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readiness checks health of external services/clients
func (a *API) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range a.d.Checks {
		if err := check.Health(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		a.writeErr(w, r, http.StatusServiceUnavailable, "dependencies_unhealthy", "dependencies check failed", failed)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]string{"dependencies": "healthy"})
}

// Overview returns the protocol-wide aggregate state.
func (a *API) Overview(w http.ResponseWriter, r *http.Request) {
	prot, ok, err := a.d.Entities.Protocols.Find(r.Context(), a.d.ProtocolID)
	if err != nil {
		a.writeErr(w, r, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	if !ok {
		a.writeErr(w, r, http.StatusNotFound, "not_found", "no events processed yet", nil)
		return
	}

	a.writeJSON(w, http.StatusOK, prot)
}

// PoolStats returns a pool entity together with its snapshot for the
// requested day (?day=<index>, default: the current day).
func (a *API) PoolStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	pool, ok, err := a.d.Entities.Pools.Find(r.Context(), id)
	if err != nil {
		a.writeErr(w, r, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	if !ok {
		a.writeErr(w, r, http.StatusNotFound, "not_found", "unknown pool", nil)
		return
	}

	day, err := a.dayParam(r)
	if err != nil {
		a.writeErr(w, r, http.StatusBadRequest, "bad_request", "day must be an integer bucket index", nil)
		return
	}

	snap, _, err := a.d.Entities.PoolDaily.Find(r.Context(), domain.SubjectBucketID(id, day))
	if err != nil {
		a.writeErr(w, r, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"pool":  pool,
		"day":   day,
		"daily": snap, // null when the pool saw no activity that day
	})
}

// Financials returns the protocol financial snapshot for the requested day.
func (a *API) Financials(w http.ResponseWriter, r *http.Request) {
	day, err := a.dayParam(r)
	if err != nil {
		a.writeErr(w, r, http.StatusBadRequest, "bad_request", "day must be an integer bucket index", nil)
		return
	}

	snap, ok, err := a.d.Entities.Financials.Find(r.Context(), domain.BucketID(day))
	if err != nil {
		a.writeErr(w, r, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	if !ok {
		a.writeErr(w, r, http.StatusNotFound, "not_found", "no snapshot for that day", nil)
		return
	}

	a.writeJSON(w, http.StatusOK, snap)
}

// Usage returns the daily usage snapshot for the requested day.
func (a *API) Usage(w http.ResponseWriter, r *http.Request) {
	day, err := a.dayParam(r)
	if err != nil {
		a.writeErr(w, r, http.StatusBadRequest, "bad_request", "day must be an integer bucket index", nil)
		return
	}

	snap, ok, err := a.d.Entities.UsageDaily.Find(r.Context(), domain.BucketID(day))
	if err != nil {
		a.writeErr(w, r, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	if !ok {
		a.writeErr(w, r, http.StatusNotFound, "not_found", "no snapshot for that day", nil)
		return
	}

	a.writeJSON(w, http.StatusOK, snap)
}

func (a *API) dayParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("day")
	if raw == "" {
		return domain.DayIndex(time.Now().Unix()), nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	if err := httputil.JSON(w, status, body, nil); err != nil {
		a.d.Log.Errorf("Failed to write response, error=%v", err)
	}
}

func (a *API) writeErr(w http.ResponseWriter, r *http.Request, status int, code, msg string, details any) {
	if err := httputil.Error(w, r, status, code, msg, details); err != nil {
		a.d.Log.Errorf("Failed to write error response, error=%v", err)
	}
}
