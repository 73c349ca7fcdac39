package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"trustpilot_fetcher/internal/app"
	"trustpilot_fetcher/internal/domain"
	"trustpilot_fetcher/internal/schedule"
	"trustpilot_fetcher/internal/scraper"
)

type Handlers struct {
	Q *app.QueryService
	B *app.BusinessService
	// FrequencyHours feeds the display-facing next_due_at field.
	FrequencyHours int
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/businesses", h.createBusiness)
	s.mux.Delete("/v1/businesses", h.deleteBusiness)
	s.mux.Get("/v1/businesses/{id}", h.getBusiness)
	s.mux.Get("/v1/businesses/{id}/reviews", h.listReviews)
	s.mux.Post("/v1/businesses/{id}/scrape", h.scrapeBusiness)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeScrapeError maps the error taxonomy to a specific, actionable
// response; a scrape failure is never a bare 500 "scrape failed".
func writeScrapeError(w http.ResponseWriter, err error) {
	var (
		fetchErr *scraper.FetchError
		tooSoon  *schedule.TooSoonError
	)
	switch {
	case errors.Is(err, scraper.ErrInvalidURL):
		writeProblem(w, http.StatusBadRequest, "Invalid URL", "not a Trustpilot review page URL")
	case errors.Is(err, domain.ErrDuplicateBusiness):
		writeProblem(w, http.StatusConflict, "Already Exists", "business url already recorded")
	case errors.Is(err, domain.ErrBusinessNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "business not found")
	case errors.Is(err, app.ErrScrapeInFlight):
		writeProblem(w, http.StatusConflict, "Scrape In Progress", err.Error())
	case errors.As(err, &tooSoon):
		writeProblem(w, http.StatusConflict, "Too Soon", err.Error())
	case errors.As(err, &fetchErr):
		writeProblem(w, http.StatusBadGateway, "Fetch Failed", fetchErr.Error())
	case errors.Is(err, scraper.ErrNoStructuredData), errors.Is(err, scraper.ErrNoAggregateRating):
		writeProblem(w, http.StatusBadGateway, "Extraction Failed", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal Error", err.Error())
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

type businessURLRequest struct {
	URL string `json:"url"`
}

func (h *Handlers) createBusiness(w http.ResponseWriter, r *http.Request) {
	var req businessURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "body must be {\"url\": \"...\"}")
		return
	}
	res, err := h.B.CreateBusiness(r.Context(), req.URL)
	if err != nil {
		writeScrapeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"business_id":    res.BusinessID,
		"title":          res.Title,
		"reviews_queued": res.ReviewsQueued,
	})
}

func (h *Handlers) deleteBusiness(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		var req businessURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			url = req.URL
		}
	}
	if url == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Request", "url query parameter or body required")
		return
	}
	res, err := h.B.DeleteBusinessByURL(r.Context(), url)
	if err != nil {
		writeScrapeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"business_id":     res.BusinessID,
		"reviews_deleted": res.ReviewsDeleted,
	})
}

func (h *Handlers) scrapeBusiness(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	force := r.URL.Query().Get("force") == "true"
	res, err := h.B.ProcessBusiness(r.Context(), id, force)
	if err != nil {
		writeScrapeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"business_id":    res.BusinessID,
		"reviews_queued": res.ReviewsQueued,
	})
}

func (h *Handlers) getBusiness(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	b, err := h.Q.GetBusiness(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "business not found")
		return
	}

	view := map[string]any{
		"id":               b.ID,
		"source_url":       b.SourceURL,
		"group_key":        b.GroupKey,
		"name":             b.DisplayName,
		"aggregate_rating": b.AggregateRating,
		"review_count":     b.ReviewCount,
		"best_rating":      b.BestRating,
		"worst_rating":     b.WorstRating,
	}
	if b.LastScrapedAt != nil {
		freq := h.FrequencyHours
		if freq <= 0 {
			freq = 24
		}
		view["last_scraped_at"] = b.LastScrapedAt
		view["next_due_at"] = schedule.NextDueAt(*b.LastScrapedAt, freq)
	}

	etag, body := calcETagAndBody(view)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getBusiness body")
	}
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}

	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}

	page := domain.PageQuery{Limit: limit, Sort: "-published_at"}
	out, err := h.Q.ListReviews(r.Context(), id, page)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "reviews not found")
		return
	}

	etag, body := calcETagAndBody(out)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write listReviews body")
	}
}
