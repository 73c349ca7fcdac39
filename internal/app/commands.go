package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"trustpilot_fetcher/internal/adapters/observability"
	"trustpilot_fetcher/internal/domain"
	"trustpilot_fetcher/internal/schedule"
)

// ErrScrapeInFlight means another scrape of the same business URL is
// still running. At most one scrape per URL may be in flight, otherwise
// two scrapes race to insert the same reviews.
var ErrScrapeInFlight = errors.New("scrape already in progress for this business")

const saveReviewTask = "save_review"

// SaveReviewArgs is the payload of a queued per-review persistence task.
type SaveReviewArgs struct {
	BusinessID int64               `json:"business_id"`
	GroupID    int64               `json:"group_id"`
	Review     domain.ReviewRecord `json:"review"`
}

type ServiceConfig struct {
	FrequencyHours int
	ReviewLimit    int
	RetryCount     int
	RetryDelay     time.Duration
	AlertThreshold int
}

// BusinessService owns the business lifecycle: create, rescrape, delete,
// and the due-check run across all known businesses. Snapshots come from
// the scraper; per-review persistence is fanned out to the task queue.
type BusinessService struct {
	scraper domain.Scraper
	store   domain.BusinessStore
	queue   domain.TaskQueue
	cache   domain.Cache
	cfg     ServiceConfig
	log     zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewBusinessService(sc domain.Scraper, st domain.BusinessStore, q domain.TaskQueue, c domain.Cache, cfg ServiceConfig, log zerolog.Logger) *BusinessService {
	if cfg.FrequencyHours <= 0 {
		cfg.FrequencyHours = 24
	}
	if cfg.ReviewLimit <= 0 {
		cfg.ReviewLimit = 5
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Minute
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = 3
	}
	return &BusinessService{
		scraper:  sc,
		store:    st,
		queue:    q,
		cache:    c,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		inFlight: map[string]struct{}{},
	}
}

func (s *BusinessService) acquire(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[url]; busy {
		return false
	}
	s.inFlight[url] = struct{}{}
	return true
}

func (s *BusinessService) release(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, url)
}

type CreateResult struct {
	BusinessID    int64
	Title         string
	ReviewsQueued int
}

// CreateBusiness scrapes a not-yet-known URL and persists it. An already
// recorded URL is a no-op signal (ErrDuplicateBusiness), not a failure.
func (s *BusinessService) CreateBusiness(ctx context.Context, url string) (CreateResult, error) {
	if _, err := s.store.FindByURL(ctx, url); err == nil {
		return CreateResult{}, domain.ErrDuplicateBusiness
	} else if !errors.Is(err, domain.ErrBusinessNotFound) {
		return CreateResult{}, err
	}

	if !s.acquire(url) {
		return CreateResult{}, ErrScrapeInFlight
	}
	defer s.release(url)

	snap, err := s.scraper.ScrapeBusiness(ctx, url)
	if err != nil {
		observability.ObserveScrape("failed")
		return CreateResult{}, err
	}

	queued, businessID, err := s.persistSnapshot(ctx, snap)
	if err != nil {
		return CreateResult{}, err
	}
	observability.ObserveScrape("ok")

	return CreateResult{
		BusinessID:    businessID,
		Title:         domain.CleanBusinessTitle(snap.DisplayName),
		ReviewsQueued: queued,
	}, nil
}

type ProcessResult struct {
	BusinessID    int64
	ReviewsQueued int
}

// ProcessBusiness rescrapes a known business. Unless forced, the
// scheduling policy gates the scrape; a premature call returns
// *schedule.TooSoonError. Consecutive failures are tracked so repeated
// breakage surfaces as an alert-level event.
func (s *BusinessService) ProcessBusiness(ctx context.Context, businessID int64, force bool) (ProcessResult, error) {
	b, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return ProcessResult{}, err
	}

	d := schedule.IsDue(b.LastScrapedAt, s.cfg.FrequencyHours, s.now(), force)
	if !d.Due {
		observability.ObserveScrape("skipped")
		return ProcessResult{}, &schedule.TooSoonError{HoursRemaining: d.HoursRemaining}
	}

	if !s.acquire(b.SourceURL) {
		return ProcessResult{}, ErrScrapeInFlight
	}
	defer s.release(b.SourceURL)

	snap, err := s.scraper.ScrapeBusiness(ctx, b.SourceURL)
	if err != nil {
		observability.ObserveScrape("failed")
		s.noteFailure(ctx, b, err)
		return ProcessResult{}, err
	}

	if err := s.store.ClearScrapeFailures(ctx, b.ID); err != nil {
		s.log.Warn().Err(err).Int64("business_id", b.ID).Msg("clear failure counter failed")
	}

	queued, businessID, err := s.persistSnapshot(ctx, snap)
	if err != nil {
		return ProcessResult{}, err
	}
	observability.ObserveScrape("ok")

	return ProcessResult{BusinessID: businessID, ReviewsQueued: queued}, nil
}

// persistSnapshot upserts the business's scalar fields and enqueues one
// retryable task per review, capped at the configured review limit. The
// fan-out means a single failing review save never loses its siblings.
func (s *BusinessService) persistSnapshot(ctx context.Context, snap domain.BusinessSnapshot) (queued int, businessID int64, err error) {
	businessID, err = s.store.UpsertBusiness(ctx, snap)
	if err != nil {
		return 0, 0, fmt.Errorf("upsert business: %w", err)
	}

	groupID, err := s.store.FindOrCreateGroup(ctx, domain.GroupKey(snap.SourceURL))
	if err != nil {
		return 0, businessID, fmt.Errorf("find or create group: %w", err)
	}

	reviews := snap.Reviews
	if len(reviews) > s.cfg.ReviewLimit {
		reviews = reviews[:s.cfg.ReviewLimit]
	}
	for _, rec := range reviews {
		args := SaveReviewArgs{BusinessID: businessID, GroupID: groupID, Review: rec}
		if qerr := s.queue.Enqueue(ctx, saveReviewTask, args, s.cfg.RetryCount, s.cfg.RetryDelay); qerr != nil {
			s.log.Error().Err(qerr).Int64("business_id", businessID).Msg("enqueue review task failed")
			continue
		}
		queued++
	}

	s.invalidateBusiness(ctx, businessID)

	s.log.Info().
		Int64("business_id", businessID).
		Str("url", snap.SourceURL).
		Int("reviews_queued", queued).
		Msg("business processed")
	return queued, businessID, nil
}

// SaveReview persists one review; the worker calls this per task. A
// duplicate is success: the review is already stored and the task is
// idempotent.
func (s *BusinessService) SaveReview(ctx context.Context, args SaveReviewArgs) error {
	rec := args.Review
	rec.Title = domain.ReviewTitle(rec)
	_, err := s.store.SaveReview(ctx, args.BusinessID, args.GroupID, rec)
	if errors.Is(err, domain.ErrDuplicateReview) {
		s.log.Debug().
			Int64("business_id", args.BusinessID).
			Str("hash", domain.ReviewHash(rec.ExternalID)).
			Msg("review already stored, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	s.invalidateBusiness(ctx, args.BusinessID)
	return nil
}

type DeleteResult struct {
	BusinessID     int64
	ReviewsDeleted int
}

// DeleteBusinessByURL removes a business and cascades to every review in
// its group.
func (s *BusinessService) DeleteBusinessByURL(ctx context.Context, url string) (DeleteResult, error) {
	b, err := s.store.FindByURL(ctx, url)
	if err != nil {
		return DeleteResult{}, err
	}
	return s.DeleteBusiness(ctx, b.ID)
}

func (s *BusinessService) DeleteBusiness(ctx context.Context, businessID int64) (DeleteResult, error) {
	n, err := s.store.DeleteBusinessAndReviews(ctx, businessID)
	if err != nil {
		return DeleteResult{}, err
	}
	s.invalidateBusiness(ctx, businessID)
	s.log.Info().Int64("business_id", businessID).Int("reviews_deleted", n).Msg("business deleted")
	return DeleteResult{BusinessID: businessID, ReviewsDeleted: n}, nil
}

// RunReport summarizes one due-check pass across all known businesses.
type RunReport struct {
	Total     int
	Due       int
	Succeeded int
	Failed    int
	Skipped   int
	Errors    []string
}

// ScrapeAllDue runs the due-check over every known business and rescrapes
// the due ones, at most workers concurrently. One business's failure only
// lands in the report; it never stops the run.
func (s *BusinessService) ScrapeAllDue(ctx context.Context, workers int) RunReport {
	if workers <= 0 {
		workers = 1
	}

	var report RunReport
	businesses, err := s.store.ListBusinesses(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list businesses: %v", err))
		return report
	}
	report.Total = len(businesses)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(workers))
	)
	for _, b := range businesses {
		b := b
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			report.Errors = append(report.Errors, fmt.Sprintf("run canceled: %v", err))
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			_, err := s.ProcessBusiness(ctx, b.ID, false)
			mu.Lock()
			defer mu.Unlock()
			var tooSoon *schedule.TooSoonError
			switch {
			case err == nil:
				report.Due++
				report.Succeeded++
			case errors.As(err, &tooSoon):
				report.Skipped++
			default:
				report.Due++
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("business %q: %v", b.DisplayName, err))
			}
		}()
	}
	wg.Wait()

	s.log.Info().
		Int("total", report.Total).
		Int("due", report.Due).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("scrape-all run finished")
	return report
}

// noteFailure bumps the consecutive-failure counter and emits an
// alert-level event once the threshold is crossed; the page structure has
// likely changed and needs a human look.
func (s *BusinessService) noteFailure(ctx context.Context, b domain.Business, cause error) {
	n, err := s.store.RecordScrapeFailure(ctx, b.ID, cause.Error())
	if err != nil {
		s.log.Warn().Err(err).Int64("business_id", b.ID).Msg("record scrape failure failed")
		return
	}
	if n >= s.cfg.AlertThreshold {
		s.log.Error().
			Int64("business_id", b.ID).
			Str("url", b.SourceURL).
			Int("consecutive_failures", n).
			Str("last_error", cause.Error()).
			Msg("scraper failing repeatedly, operator attention required")
	}
}

func (s *BusinessService) invalidateBusiness(ctx context.Context, businessID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, fmt.Sprintf("business:%d", businessID))
	for _, lim := range []int{5, 50, 100} {
		_ = s.cache.Del(ctx, fmt.Sprintf("reviews:%d:%d:%s", businessID, lim, "-published_at"))
	}
}
