package store

import (
	"fmt"
	"time"
)

// Analysis is the per-image AI analysis payload delivered by the upstream
// image pipeline. Summary is required for categorization; Encoding and Tags
// are optional.
type Analysis struct {
	Summary  string            `json:"imageSummary"`
	Encoding map[string]string `json:"encodingParams,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
}

// IngestInput is everything needed to upsert one image record.
type IngestInput struct {
	OriginalKey  string
	SourceBucket string
	ProcessedKey string
	Analysis     Analysis
}

// PlanImageWrite decides between create and update for an ingestion event
// and builds the record to persist. existing is the record found via the
// byOriginalKey index, or nil on first sight of the image.
//
// Creates derive the album partition from the key's path and stamp
// CreatedAt. Updates preserve the original partition and CreatedAt and stamp
// UpdatedAt, so re-ingesting the same image any number of times converges to
// one record. The isUpdate flag tells the caller whether the stats counter
// transaction applies (create only).
func PlanImageWrite(existing *ImageRecord, in IngestInput, now time.Time) (rec *ImageRecord, isUpdate bool, err error) {
	if in.OriginalKey == "" {
		return nil, false, fmt.Errorf("originalKey is required")
	}
	if in.Analysis.Summary == "" {
		return nil, false, fmt.Errorf("image summary is required for %q", in.OriginalKey)
	}

	userID, albumID, err := ParseOriginalKey(in.OriginalKey)
	if err != nil {
		return nil, false, err
	}

	rec = &ImageRecord{
		UserID:       userID,
		AlbumID:      albumID,
		OriginalKey:  in.OriginalKey,
		SourceBucket: in.SourceBucket,
		ProcessedKey: in.ProcessedKey,
		Summary:      in.Analysis.Summary,
		Encoding:     in.Analysis.Encoding,
		Tags:         dedupeTags(in.Analysis.Tags),
	}

	if existing != nil {
		rec.AlbumID = existing.AlbumID
		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = Timestamp(now)
		return rec, true, nil
	}

	rec.CreatedAt = Timestamp(now)
	return rec, false, nil
}

// dedupeTags drops empty and repeated tags, preserving first-seen order.
// DynamoDB string sets reject both duplicates and empty members.
func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
