package schedule_test

import (
	"testing"
	"time"

	"trustpilot_fetcher/internal/schedule"
)

func TestIsDue_NeverScraped(t *testing.T) {
	now := time.Now()
	d := schedule.IsDue(nil, 24, now, false)
	if !d.Due {
		t.Fatalf("expected due when never scraped, got %+v", d)
	}
}

func TestIsDue_Force(t *testing.T) {
	now := time.Now()
	last := now.Add(-1 * time.Minute)
	d := schedule.IsDue(&last, 24, now, true)
	if !d.Due {
		t.Fatalf("force should always be due, got %+v", d)
	}
}

func TestIsDue_TenHoursAgo(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-10 * time.Hour)
	d := schedule.IsDue(&last, 24, now, false)
	if d.Due {
		t.Fatalf("expected not due, got %+v", d)
	}
	if d.HoursRemaining != 14 {
		t.Fatalf("expected 14 hours remaining, got %d", d.HoursRemaining)
	}
}

func TestIsDue_ExactlyAtWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-24 * time.Hour)
	d := schedule.IsDue(&last, 24, now, false)
	if !d.Due {
		t.Fatalf("elapsed == window should be due, got %+v", d)
	}
}

func TestIsDue_RemainingRoundsUp(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-23*time.Hour - 30*time.Minute)
	d := schedule.IsDue(&last, 24, now, false)
	if d.Due || d.HoursRemaining != 1 {
		t.Fatalf("expected 1 hour remaining (ceil), got %+v", d)
	}
}

func TestIsDue_Pure(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-10 * time.Hour)
	a := schedule.IsDue(&last, 24, now, false)
	b := schedule.IsDue(&last, 24, now, false)
	if a != b {
		t.Fatalf("identical inputs gave %+v then %+v", a, b)
	}
}

func TestNextDueAt(t *testing.T) {
	last := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	got := schedule.NextDueAt(last, 24)
	want := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("next due: got %v want %v", got, want)
	}
}
