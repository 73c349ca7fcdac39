package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trustpilot_fetcher/internal/app"
	"trustpilot_fetcher/internal/domain"
	"trustpilot_fetcher/internal/scraper"
)

type stubScraper struct {
	snap domain.BusinessSnapshot
	err  error
}

func (s *stubScraper) ScrapeBusiness(ctx context.Context, url string) (domain.BusinessSnapshot, error) {
	if s.err != nil {
		return domain.BusinessSnapshot{}, s.err
	}
	snap := s.snap
	snap.SourceURL = url
	return snap, nil
}

type stubStore struct {
	businesses map[int64]domain.Business
}

func (s *stubStore) UpsertBusiness(ctx context.Context, snap domain.BusinessSnapshot) (int64, error) {
	return 1, nil
}
func (s *stubStore) SaveReview(ctx context.Context, businessID, groupID int64, rec domain.ReviewRecord) (int64, error) {
	return 1, nil
}
func (s *stubStore) DeleteBusinessAndReviews(ctx context.Context, businessID int64) (int, error) {
	if _, ok := s.businesses[businessID]; !ok {
		return 0, domain.ErrBusinessNotFound
	}
	return 3, nil
}
func (s *stubStore) FindOrCreateGroup(ctx context.Context, groupKey string) (int64, error) {
	return 1, nil
}
func (s *stubStore) RecordScrapeFailure(ctx context.Context, businessID int64, reason string) (int, error) {
	return 1, nil
}
func (s *stubStore) ClearScrapeFailures(ctx context.Context, businessID int64) error { return nil }
func (s *stubStore) FindByURL(ctx context.Context, sourceURL string) (domain.Business, error) {
	for _, b := range s.businesses {
		if b.SourceURL == sourceURL {
			return b, nil
		}
	}
	return domain.Business{}, domain.ErrBusinessNotFound
}
func (s *stubStore) GetBusiness(ctx context.Context, id int64) (domain.Business, error) {
	b, ok := s.businesses[id]
	if !ok {
		return domain.Business{}, domain.ErrBusinessNotFound
	}
	return b, nil
}
func (s *stubStore) ListBusinesses(ctx context.Context) ([]domain.Business, error) { return nil, nil }
func (s *stubStore) ListReviews(ctx context.Context, businessID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	return domain.ReviewsPage{Items: []domain.Review{{ID: 1, BusinessID: businessID, Title: "Great", Rating: 5}}}, nil
}

type stubQueue struct{ enqueued int }

func (q *stubQueue) Enqueue(ctx context.Context, name string, args any, retryCount int, retryDelay time.Duration) error {
	q.enqueued++
	return nil
}

type missCache struct{}

func (missCache) Get(ctx context.Context, key string, dst any) (bool, error) { return false, nil }
func (missCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	return nil
}
func (missCache) Del(ctx context.Context, key string) error { return nil }

func testServer(t *testing.T, st domain.BusinessStore, sc domain.Scraper) *Server {
	t.Helper()
	biz := app.NewBusinessService(sc, st, &stubQueue{}, nil, app.ServiceConfig{}, zerolog.Nop())
	q := app.NewQueryService(st, missCache{}, time.Minute)

	srv := New()
	srv.MountHandlers(&Handlers{Q: q, B: biz, FrequencyHours: 24})
	return srv
}

func doReq(t *testing.T, srv *Server, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)
	return rec
}

func TestCreateBusinessEndpoint(t *testing.T) {
	sc := &stubScraper{snap: domain.BusinessSnapshot{
		DisplayName: "Acme Corp Reviews | Trustpilot", AggregateRating: 4.2,
		Reviews: []domain.ReviewRecord{{ExternalID: "x/r1", Body: "ok"}},
	}}
	srv := testServer(t, &stubStore{businesses: map[int64]domain.Business{}}, sc)

	rec := doReq(t, srv, http.MethodPost, "/v1/businesses",
		`{"url":"https://www.trustpilot.com/review/acme.com"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["title"] != "Acme Corp" {
		t.Errorf("title = %v", out["title"])
	}
	if out["reviews_queued"] != float64(1) {
		t.Errorf("reviews_queued = %v", out["reviews_queued"])
	}
}

func TestCreateBusinessBadBody(t *testing.T) {
	srv := testServer(t, &stubStore{businesses: map[int64]domain.Business{}}, &stubScraper{})
	rec := doReq(t, srv, http.MethodPost, "/v1/businesses", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestCreateBusinessInvalidURL(t *testing.T) {
	sc := &stubScraper{err: scraper.ErrInvalidURL}
	srv := testServer(t, &stubStore{businesses: map[int64]domain.Business{}}, sc)
	rec := doReq(t, srv, http.MethodPost, "/v1/businesses", `{"url":"https://example.com/"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateBusinessDuplicate(t *testing.T) {
	st := &stubStore{businesses: map[int64]domain.Business{
		1: {ID: 1, SourceURL: "https://www.trustpilot.com/review/acme.com"},
	}}
	srv := testServer(t, st, &stubScraper{})
	rec := doReq(t, srv, http.MethodPost, "/v1/businesses",
		`{"url":"https://www.trustpilot.com/review/acme.com"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateBusinessFetchFailure(t *testing.T) {
	sc := &stubScraper{err: &scraper.FetchError{Kind: scraper.FetchStatus, Status: 403}}
	srv := testServer(t, &stubStore{businesses: map[int64]domain.Business{}}, sc)
	rec := doReq(t, srv, http.MethodPost, "/v1/businesses",
		`{"url":"https://www.trustpilot.com/review/acme.com"}`, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestScrapeTooSoon(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour)
	st := &stubStore{businesses: map[int64]domain.Business{
		1: {ID: 1, SourceURL: "https://www.trustpilot.com/review/acme.com", LastScrapedAt: &recent},
	}}
	srv := testServer(t, st, &stubScraper{})

	rec := doReq(t, srv, http.MethodPost, "/v1/businesses/1/scrape", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}

	rec = doReq(t, srv, http.MethodPost, "/v1/businesses/1/scrape?force=true", "", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("forced status = %d body = %s", rec.Code, rec.Body)
	}
}

func TestGetBusinessETag(t *testing.T) {
	last := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	st := &stubStore{businesses: map[int64]domain.Business{
		1: {ID: 1, SourceURL: "u", DisplayName: "Acme", AggregateRating: 4.2, LastScrapedAt: &last},
	}}
	srv := testServer(t, st, &stubScraper{})

	rec := doReq(t, srv, http.MethodGet, "/v1/businesses/1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["next_due_at"] == nil {
		t.Error("missing next_due_at")
	}

	rec = doReq(t, srv, http.MethodGet, "/v1/businesses/1", "", map[string]string{"If-None-Match": etag})
	if rec.Code != http.StatusNotModified {
		t.Fatalf("conditional status = %d", rec.Code)
	}
}

func TestGetBusinessNotFound(t *testing.T) {
	srv := testServer(t, &stubStore{businesses: map[int64]domain.Business{}}, &stubScraper{})
	if rec := doReq(t, srv, http.MethodGet, "/v1/businesses/9", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := doReq(t, srv, http.MethodGet, "/v1/businesses/abc", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}
}

func TestListReviewsLimitValidation(t *testing.T) {
	st := &stubStore{businesses: map[int64]domain.Business{1: {ID: 1}}}
	srv := testServer(t, st, &stubScraper{})

	if rec := doReq(t, srv, http.MethodGet, "/v1/businesses/1/reviews?limit=500", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	rec := doReq(t, srv, http.MethodGet, "/v1/businesses/1/reviews?limit=5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out domain.ReviewsPage
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Items) != 1 || out.Items[0].Title != "Great" {
		t.Errorf("page = %+v", out)
	}
}

func TestDeleteBusinessEndpoint(t *testing.T) {
	st := &stubStore{businesses: map[int64]domain.Business{
		1: {ID: 1, SourceURL: "https://www.trustpilot.com/review/acme.com"},
	}}
	srv := testServer(t, st, &stubScraper{})

	rec := doReq(t, srv, http.MethodDelete, "/v1/businesses?url=https%3A%2F%2Fwww.trustpilot.com%2Freview%2Facme.com", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["reviews_deleted"] != float64(3) {
		t.Errorf("reviews_deleted = %v", out["reviews_deleted"])
	}

	rec = doReq(t, srv, http.MethodDelete, "/v1/businesses", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing url status = %d", rec.Code)
	}
}
