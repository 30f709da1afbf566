package api

import (
	"net/http"
	"strconv"

	"codeberg.org/mutker/vitalsd/internal/baseline"
	"codeberg.org/mutker/vitalsd/internal/collector"
)

// beacon is the body page instrumentation posts for each metric update.
type beacon struct {
	Name           string   `json:"name"`
	Value          *float64 `json:"value"`
	Rating         string   `json:"rating"`
	ID             string   `json:"id"`
	NavigationType string   `json:"navigationType"`
	Pathname       string   `json:"pathname"`
	Embedded       bool     `json:"embedded"`
}

func (a *API) postBeacon(rw http.ResponseWriter, r *http.Request) {
	var b beacon
	if !read(rw, r, &b) {
		return
	}
	if b.Name == "" || b.Value == nil || b.Pathname == "" {
		badRequest(rw, "name, value and pathname are required")
		return
	}

	rating := b.Rating
	if rating == "" {
		rating = baseline.Rate(b.Name, *b.Value)
	}

	page := collector.PageContext{
		Pathname: b.Pathname,
		Origin:   r.Header.Get("Origin"),
		Embedded: b.Embedded,
	}
	m := collector.Metric{
		Name:           b.Name,
		Value:          *b.Value,
		Rating:         rating,
		ID:             b.ID,
		NavigationType: b.NavigationType,
	}

	if !a.beacons.Dispatch(r.Context(), page, m) {
		rw.WriteHeader(http.StatusNoContent)
		return
	}
	write(rw, http.StatusAccepted, Response{Message: "accepted"})
}

// snapshot is a direct save, used by lab tooling that also supplies a
// composite score.
type snapshot struct {
	Page         string              `json:"page"`
	Metrics      map[string]*float64 `json:"metrics"`
	OverallScore *float64            `json:"overallScore"`
}

func (a *API) postSnapshots(rw http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		write(rw, http.StatusUnsupportedMediaType, Response{
			Message: "Unsupported media type",
			Detail:  "snapshots must be sent as application/json",
		})
		return
	}

	var s snapshot
	if !read(rw, r, &s) {
		return
	}
	if s.Page == "" {
		badRequest(rw, "page is required")
		return
	}

	a.store.SavePerformanceSnapshot(r.Context(), s.Page, s.Metrics, s.OverallScore)
	rw.WriteHeader(http.StatusNoContent)
}

func (a *API) getHistory(rw http.ResponseWriter, r *http.Request) {
	write(rw, http.StatusOK, a.store.GetPerformanceHistory(r.Context()))
}

func (a *API) getPageHistory(rw http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(rw, r)
	if !ok {
		return
	}

	h, found := a.store.GetHistoryForPage(r.Context(), page)
	if !found {
		write(rw, http.StatusNotFound, Response{Message: "No history for page", Detail: page})
		return
	}
	write(rw, http.StatusOK, h)
}

func (a *API) deleteHistory(rw http.ResponseWriter, r *http.Request) {
	a.store.ClearPerformanceHistory(r.Context())
	rw.WriteHeader(http.StatusNoContent)
}

func (a *API) putBaseline(rw http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(rw, r)
	if !ok {
		return
	}

	ts := a.store.Now()
	if raw := r.URL.Query().Get("timestamp"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(rw, "timestamp must be Unix milliseconds")
			return
		}
		ts = parsed
	}

	if _, found := a.store.GetHistoryForPage(r.Context(), page); !found {
		write(rw, http.StatusNotFound, Response{Message: "No history for page", Detail: page})
		return
	}

	a.store.SetBaseline(r.Context(), page, ts)
	a.logger.Info().Str("page", page).Int64("baseline", ts).Msg("Baseline set")
	rw.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteBaseline(rw http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(rw, r)
	if !ok {
		return
	}

	a.store.ClearBaseline(r.Context(), page)
	rw.WriteHeader(http.StatusNoContent)
}

func (a *API) getCompare(rw http.ResponseWriter, r *http.Request) {
	page, ok := pageParam(rw, r)
	if !ok {
		return
	}

	h, found := a.store.GetHistoryForPage(r.Context(), page)
	if !found {
		write(rw, http.StatusNotFound, Response{Message: "No history for page", Detail: page})
		return
	}

	c, ok := baseline.Compare(h, a.store.Signals())
	if !ok {
		write(rw, http.StatusConflict, Response{Message: "No baseline set for page", Detail: page})
		return
	}
	write(rw, http.StatusOK, c)
}
