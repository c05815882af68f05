package sorter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/albumlab/album-organizer/internal/store"
)

// ObjectLister enumerates every storage key under a user's album prefix.
// The S3 implementation lives in the s3util package.
type ObjectLister interface {
	ListAlbum(ctx context.Context, userID string) ([]string, error)
}

// StatsGetter is the slice of the store needed to resolve a work set.
type StatsGetter interface {
	GetStats(ctx context.Context, userID string) (*store.UserStats, error)
}

// WorkSet is the resolved input for one categorization pass.
type WorkSet struct {
	UserID string

	// Initial marks a first-time run covering the user's full collection.
	// Incremental runs cover only the accumulated pending set and carry the
	// prior result forward as context.
	Initial bool

	Keys  []string
	Prior *store.SortedData
}

// ListBuilder resolves the image set a pass should operate on.
type ListBuilder struct {
	Stats  StatsGetter
	Lister ObjectLister
}

// Build returns the work set for a user. A user with no prior sort result
// gets a full album listing; otherwise only the keys accumulated since the
// last completed pass are included, so settled images are never reprocessed.
func (b *ListBuilder) Build(ctx context.Context, userID string) (*WorkSet, error) {
	stats, err := b.Stats.GetStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve work set for %s: %w", userID, err)
	}

	if stats == nil || stats.SortedData == nil {
		keys, err := b.Lister.ListAlbum(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list album for %s: %w", userID, err)
		}

		// Folder placeholder objects are not images.
		images := make([]string, 0, len(keys))
		for _, k := range keys {
			if strings.HasSuffix(k, "/") {
				continue
			}
			images = append(images, k)
		}
		sort.Strings(images)

		log.Info().
			Str("userId", userID).
			Int("images", len(images)).
			Msg("Initial sort; full album listing resolved")
		return &WorkSet{UserID: userID, Initial: true, Keys: images}, nil
	}

	pending := append([]string(nil), stats.PendingImageKeys...)
	sort.Strings(pending)

	log.Info().
		Str("userId", userID).
		Int("pending", len(pending)).
		Msg("Incremental sort; pending image set resolved")
	return &WorkSet{
		UserID: userID,
		Keys:   pending,
		Prior:  stats.SortedData,
	}, nil
}
