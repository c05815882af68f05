// Package store provides persistent album state storage for the image
// categorization pipeline. Two DynamoDB tables back it: a metadata table
// holding one record per distinct image (partitioned by album, with a
// byOriginalKey GSI for lookup regardless of partition), and a stats table
// holding one aggregate record per user.
//
// The only cross-record atomicity in the system lives here: first sight of
// an image commits the metadata insert and the stats counter/status bump in
// a single TransactWriteItems call, and sort completion settles all stats
// fields in a single UpdateItem.
package store

import (
	"context"
	"time"
)

// Sort status values for UserStats.SortStatus. A missing attribute is
// treated as NEEDS_UPDATE, so a brand-new user is always eligible once the
// image threshold is reached.
const (
	SortStatusUpdated     = "UPDATED"
	SortStatusNeedsUpdate = "NEEDS_UPDATE"
)

// AlbumStore defines the persistence interface for image metadata and
// per-user aggregate stats. Each method is safe for concurrent use across
// different users/images. Get methods return (nil, nil) when the requested
// record does not exist.
type AlbumStore interface {
	// GetStats retrieves the aggregate stats record for a user.
	GetStats(ctx context.Context, userID string) (*UserStats, error)

	// GetImageByOriginalKey looks an image up via the byOriginalKey GSI,
	// regardless of which album partition owns it.
	GetImageByOriginalKey(ctx context.Context, originalKey string) (*ImageRecord, error)

	// QueryByAlbum returns every image record in one album partition.
	QueryByAlbum(ctx context.Context, albumID string) ([]*ImageRecord, error)

	// CreateImage inserts a new image record and, in the same transaction,
	// increments the user's ImageCount, adds the key to PendingImageKeys,
	// and sets SortStatus to NEEDS_UPDATE. Both writes commit or neither does.
	CreateImage(ctx context.Context, rec *ImageRecord) error

	// UpdateImage replaces an existing image record. Stats are not touched:
	// an already-counted image being re-described must not re-trigger sorting.
	UpdateImage(ctx context.Context, rec *ImageRecord) error

	// SettleSort persists a completed categorization pass: stores the result
	// (when non-nil), flips SortStatus to UPDATED, stamps LastSortedAt, and
	// removes exactly the snapshot keys from PendingImageKeys. Keys that
	// arrived after the snapshot survive the settle and flip the status back
	// to NEEDS_UPDATE so the next trigger picks them up.
	SettleSort(ctx context.Context, userID string, result *SortedData, snapshotKeys []string, completedAt time.Time) error
}

// ImageRecord is one per-image metadata record. The table key is
// (AlbumID, OriginalKey); OriginalKey is unique across the table, enforced
// via the byOriginalKey GSI lookup before insert.
type ImageRecord struct {
	UserID       string            `json:"userId" dynamodbav:"UserID"`
	AlbumID      string            `json:"albumId" dynamodbav:"AlbumID"`
	OriginalKey  string            `json:"originalKey" dynamodbav:"OriginalKey"`
	SourceBucket string            `json:"sourceBucket" dynamodbav:"SourceBucket"`
	ProcessedKey string            `json:"processedKey" dynamodbav:"ProcessedKey"`
	Summary      string            `json:"summary" dynamodbav:"ImageSummary"`
	Encoding     map[string]string `json:"encodingParams,omitempty" dynamodbav:"EncodingParams,omitempty"`
	Tags         []string          `json:"tags,omitempty" dynamodbav:"Tags,stringset,omitempty"`
	CreatedAt    string            `json:"createdAt" dynamodbav:"CreatedAt"`
	UpdatedAt    string            `json:"updatedAt,omitempty" dynamodbav:"UpdatedAt,omitempty"`
}

// UserStats is the per-user aggregate record, keyed by UserID.
// ImageCount is monotonically non-decreasing: it is incremented only on
// first sight of each image key.
type UserStats struct {
	UserID           string      `json:"userId" dynamodbav:"UserID"`
	ImageCount       int         `json:"imageCount" dynamodbav:"ImageCount"`
	SortStatus       string      `json:"sortStatus,omitempty" dynamodbav:"SortStatus,omitempty"`
	SortedData       *SortedData `json:"sortedData,omitempty" dynamodbav:"SortedData,omitempty"`
	LastSortedAt     string      `json:"lastSortedAt,omitempty" dynamodbav:"LastSortedAt,omitempty"`
	PendingImageKeys []string    `json:"pendingImageKeys,omitempty" dynamodbav:"PendingImageKeys,stringset,omitempty"`
}

// SortedData is the last-known categorization result for a user: a set of
// categories grouping every sorted image key. It is replaced wholesale on
// each successful pass.
type SortedData struct {
	Categories []Category `json:"categories" dynamodbav:"categories"`
}

// Category is one group of images sharing a theme.
type Category struct {
	Name        string   `json:"categoryName" dynamodbav:"categoryName"`
	Description string   `json:"description" dynamodbav:"description"`
	ImageKeys   []string `json:"imageKeys" dynamodbav:"imageKeys"`
}

// MemberKeys returns the union of all category member keys, in category
// order. Duplicates are preserved so callers can detect them.
func (d *SortedData) MemberKeys() []string {
	if d == nil {
		return nil
	}
	var keys []string
	for _, c := range d.Categories {
		keys = append(keys, c.ImageKeys...)
	}
	return keys
}

// Timestamp formats t the way every timestamp attribute in both tables is
// stored (RFC 3339, UTC).
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
