// Package sorter implements the debounced, incremental album categorization
// pipeline: deciding when a sort pass should run, resolving the input image
// set, and orchestrating the AI grouping call into a validated result.
//
// The package is pure orchestration; persistence belongs to the store
// package and the Lambda handlers wire the two together.
package sorter

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/albumlab/album-organizer/internal/store"
)

const (
	// SortThreshold is the minimum number of images a user must have before
	// a categorization pass is worth an oracle call.
	SortThreshold = 20

	// DebounceWindow is the minimum time between two completed passes for
	// the same user. A burst of uploads re-triggers at most one pass per
	// rolling window regardless of ingestion volume.
	DebounceWindow = time.Hour
)

// Skip reasons, surfaced in the trigger decision for Step Function choice
// states and logs.
const (
	ReasonNoStats        = "no stats"
	ReasonBelowThreshold = "below threshold"
	ReasonAlreadySettled = "already settled"
	ReasonDebounced      = "debounced"
)

// Decision is the outcome of a trigger evaluation: run a sort pass now, or
// skip with a reason.
type Decision struct {
	Run    bool
	Reason string
}

// EvaluateTrigger decides from a stats snapshot whether a categorization
// pass should run now. Rules are evaluated in order: missing stats, image
// count below threshold, status already settled, and the debounce window
// each skip; anything else triggers.
func EvaluateTrigger(stats *store.UserStats, now time.Time) Decision {
	if stats == nil {
		return Decision{Reason: ReasonNoStats}
	}

	if stats.ImageCount < SortThreshold {
		return Decision{Reason: ReasonBelowThreshold}
	}

	// A missing status means no pass has ever settled this user.
	status := stats.SortStatus
	if status == "" {
		status = store.SortStatusNeedsUpdate
	}
	if status != store.SortStatusNeedsUpdate {
		return Decision{Reason: ReasonAlreadySettled}
	}

	if stats.LastSortedAt != "" {
		lastSorted, err := time.Parse(time.RFC3339, stats.LastSortedAt)
		if err != nil {
			// A malformed timestamp cannot debounce; let the pass run.
			log.Warn().
				Str("userId", stats.UserID).
				Str("lastSortedAt", stats.LastSortedAt).
				Msg("Malformed LastSortedAt; ignoring for debounce check")
		} else if now.Sub(lastSorted) < DebounceWindow {
			return Decision{Reason: ReasonDebounced}
		}
	}

	return Decision{Run: true}
}
