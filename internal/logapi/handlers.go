package logapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"orion/internal/dsl"
	"orion/internal/logdb"
)

func newMux(store Store) *http.ServeMux {
	mux := http.NewServeMux()
	h := &handlers{store: store}
	mux.HandleFunc("GET /logs", h.logs)
	mux.HandleFunc("GET /logs/dsl", h.logsDSL)
	mux.HandleFunc("GET /logs/levels", h.levels)
	mux.HandleFunc("GET /logs/modules", h.facet("module"))
	mux.HandleFunc("GET /logs/sources", h.facet("source"))
	mux.HandleFunc("GET /logs/processes", h.facet("process"))
	mux.HandleFunc("GET /logs/versions", h.facet("version"))
	mux.HandleFunc("GET /logs/event_run_ids", h.eventRunIDs)
	mux.HandleFunc("GET /logs/stats", h.stats)
	return mux
}

type handlers struct {
	store Store
}

// Columns accepted as exact-match query parameters on /logs.
var filterParams = []string{"level", "source", "process", "module", "version", "event_run_id"}

func (h *handlers) logs(w http.ResponseWriter, r *http.Request) {
	var (
		parts  []string
		params []any
	)
	for _, p := range filterParams {
		if v := r.URL.Query().Get(p); v != "" {
			parts = append(parts, p+" = ?")
			params = append(params, v)
		}
	}

	recs, err := h.store.QueryWhere(r.Context(), strings.Join(parts, " AND "), params, queryLimit(r))
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, nonNilRecords(recs))
}

func (h *handlers) logsDSL(w http.ResponseWriter, r *http.Request) {
	q, err := dsl.Compile(r.URL.Query().Get("q"))
	if err != nil {
		// An invalid message regex is the one query error that surfaces.
		httpError(w, http.StatusBadRequest, err)
		return
	}

	recs, err := h.store.QueryWhere(r.Context(), q.Where, q.Params, queryLimit(r))
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	if q.HasPattern() {
		filtered := make([]logdb.Record, 0, len(recs))
		for _, rec := range recs {
			if q.Pattern.MatchString(rec.Message) {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}
	writeJSON(w, nonNilRecords(recs))
}

func (h *handlers) levels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, logdb.Levels)
}

func (h *handlers) facet(column string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vals, err := h.store.Distinct(r.Context(), column)
		if err != nil {
			httpError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, nonNilStrings(vals))
	}
}

func (h *handlers) eventRunIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.EventRunIDs(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, nonNilStrings(ids))
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.store.HourlyStats(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	if buckets == nil {
		buckets = []logdb.HourBucket{}
	}
	writeJSON(w, buckets)
}

func queryLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return logdb.DefaultQueryLimit
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func nonNilRecords(recs []logdb.Record) []logdb.Record {
	if recs == nil {
		return []logdb.Record{}
	}
	return recs
}

func nonNilStrings(vals []string) []string {
	if vals == nil {
		return []string{}
	}
	return vals
}
