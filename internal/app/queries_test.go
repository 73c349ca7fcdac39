package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"trustpilot_fetcher/internal/domain"
)

type fakeCache struct {
	data map[string][]byte
	sets int
	hits int
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (f *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := f.data[key]
	if !ok {
		return false, nil
	}
	f.hits++
	return true, json.Unmarshal(b, dst)
}

func (f *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.sets++
	f.data[key] = b
	return nil
}

func (f *fakeCache) Del(ctx context.Context, key string) error {
	delete(f.data, key)
	return nil
}

type countingStore struct {
	*fakeStore
	gets  int
	lists int
}

func (c *countingStore) GetBusiness(ctx context.Context, id int64) (domain.Business, error) {
	c.gets++
	return c.fakeStore.GetBusiness(ctx, id)
}

func (c *countingStore) ListReviews(ctx context.Context, businessID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	c.lists++
	return domain.ReviewsPage{Items: []domain.Review{
		{ID: 1, BusinessID: businessID, Hash: "r1", Title: "Great", Rating: 5},
		{ID: 2, BusinessID: businessID, Hash: "r2", Title: "Meh", Rating: 3},
	}}, nil
}

func TestGetBusinessCacheMissThenHit(t *testing.T) {
	st := &countingStore{fakeStore: newFakeStore(domain.Business{ID: 1, SourceURL: "u", DisplayName: "Acme"})}
	c := newFakeCache()
	q := NewQueryService(st, c, 15*time.Minute)

	b, err := q.GetBusiness(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.DisplayName != "Acme" {
		t.Errorf("name = %q", b.DisplayName)
	}
	if st.gets != 1 || c.sets != 1 {
		t.Errorf("gets = %d sets = %d after miss", st.gets, c.sets)
	}

	if _, err := q.GetBusiness(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.gets != 1 {
		t.Errorf("store hit again on a warm cache, gets = %d", st.gets)
	}
	if c.hits != 1 {
		t.Errorf("cache hits = %d", c.hits)
	}
}

func TestGetBusinessUnknown(t *testing.T) {
	st := &countingStore{fakeStore: newFakeStore()}
	q := NewQueryService(st, newFakeCache(), time.Minute)

	_, err := q.GetBusiness(context.Background(), 404)
	if !errors.Is(err, domain.ErrBusinessNotFound) {
		t.Fatalf("err = %v, want ErrBusinessNotFound", err)
	}
}

func TestListReviewsCached(t *testing.T) {
	st := &countingStore{fakeStore: newFakeStore()}
	c := newFakeCache()
	q := NewQueryService(st, c, time.Minute)
	pg := domain.PageQuery{Limit: 5, Sort: "-published_at"}

	first, err := q.ListReviews(context.Background(), 1, pg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Items) != 2 {
		t.Fatalf("got %d items", len(first.Items))
	}

	second, err := q.ListReviews(context.Background(), 1, pg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.lists != 1 {
		t.Errorf("store hit again on a warm cache, lists = %d", st.lists)
	}
	if len(second.Items) != 2 || second.Items[0].Title != "Great" {
		t.Errorf("cached page = %+v", second)
	}

	// Mutating the returned page must not bleed into the cache.
	second.Items[0].Title = "tampered"
	third, _ := q.ListReviews(context.Background(), 1, pg)
	if third.Items[0].Title != "Great" {
		t.Errorf("cache poisoned: %q", third.Items[0].Title)
	}
}
