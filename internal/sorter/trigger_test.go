package sorter

import (
	"testing"
	"time"

	"github.com/albumlab/album-organizer/internal/store"
)

func TestEvaluateTrigger(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		stats      *store.UserStats
		wantRun    bool
		wantReason string
	}{
		{
			name:       "no stats record",
			stats:      nil,
			wantReason: ReasonNoStats,
		},
		{
			name:       "zero images",
			stats:      &store.UserStats{UserID: "u1", ImageCount: 0, SortStatus: store.SortStatusNeedsUpdate},
			wantReason: ReasonBelowThreshold,
		},
		{
			name:       "one below threshold",
			stats:      &store.UserStats{UserID: "u1", ImageCount: SortThreshold - 1, SortStatus: store.SortStatusNeedsUpdate},
			wantReason: ReasonBelowThreshold,
		},
		{
			name:    "exactly at threshold",
			stats:   &store.UserStats{UserID: "u1", ImageCount: SortThreshold, SortStatus: store.SortStatusNeedsUpdate},
			wantRun: true,
		},
		{
			name:       "already settled",
			stats:      &store.UserStats{UserID: "u1", ImageCount: 50, SortStatus: store.SortStatusUpdated},
			wantReason: ReasonAlreadySettled,
		},
		{
			name:    "missing status treated as needs update",
			stats:   &store.UserStats{UserID: "u1", ImageCount: 50},
			wantRun: true,
		},
		{
			name: "sorted 30 minutes ago is debounced",
			stats: &store.UserStats{
				UserID:       "u1",
				ImageCount:   50,
				SortStatus:   store.SortStatusNeedsUpdate,
				LastSortedAt: store.Timestamp(now.Add(-30 * time.Minute)),
			},
			wantReason: ReasonDebounced,
		},
		{
			name: "sorted 61 minutes ago runs",
			stats: &store.UserStats{
				UserID:       "u1",
				ImageCount:   50,
				SortStatus:   store.SortStatusNeedsUpdate,
				LastSortedAt: store.Timestamp(now.Add(-61 * time.Minute)),
			},
			wantRun: true,
		},
		{
			name: "malformed timestamp cannot debounce",
			stats: &store.UserStats{
				UserID:       "u1",
				ImageCount:   50,
				SortStatus:   store.SortStatusNeedsUpdate,
				LastSortedAt: "yesterday-ish",
			},
			wantRun: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateTrigger(tc.stats, now)
			if got.Run != tc.wantRun {
				t.Errorf("Run = %v, want %v", got.Run, tc.wantRun)
			}
			if got.Reason != tc.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tc.wantReason)
			}
		})
	}
}

func TestEvaluateTriggerRulePrecedence(t *testing.T) {
	// Below-threshold wins over everything else: even a user marked
	// NEEDS_UPDATE with a stale LastSortedAt must not trigger.
	stats := &store.UserStats{
		UserID:       "u1",
		ImageCount:   3,
		SortStatus:   store.SortStatusNeedsUpdate,
		LastSortedAt: "not-a-timestamp",
	}
	got := EvaluateTrigger(stats, time.Now())
	if got.Run || got.Reason != ReasonBelowThreshold {
		t.Errorf("got %+v, want skip with %q", got, ReasonBelowThreshold)
	}
}
