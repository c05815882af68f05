package sorter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/albumlab/album-organizer/internal/jsonutil"
	"github.com/albumlab/album-organizer/internal/store"
)

// Sentinel errors for failed passes. Both leave the pending set untouched so
// the next trigger retries with the same images plus any new arrivals.
var (
	// ErrMalformedOracleResponse means no parseable JSON object was found in
	// the oracle output, or the object did not match the expected shape.
	ErrMalformedOracleResponse = errors.New("malformed oracle response")

	// ErrIncompleteCategorization means the oracle's result dropped images
	// that were passed into the pass.
	ErrIncompleteCategorization = errors.New("incomplete categorization")
)

// MetadataQuerier is the slice of the store the orchestrator reads from.
type MetadataQuerier interface {
	QueryByAlbum(ctx context.Context, albumID string) ([]*store.ImageRecord, error)
}

// Oracle is the external AI boundary: a text prompt in, free-form text out.
// The response is expected; not guaranteed; to contain one JSON object.
type Oracle interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Orchestrator runs one categorization pass: resolve metadata, build the
// prompt, invoke the oracle, and validate the result. It performs no writes;
// the caller settles the outcome through the store.
type Orchestrator struct {
	Meta   MetadataQuerier
	Oracle Oracle
}

// PassResult is the validated outcome of one pass.
type PassResult struct {
	// Sorted is the complete categorization (old + new for incremental
	// runs). Nil when no image metadata could be resolved; the pass still
	// settles, just without a result.
	Sorted *store.SortedData

	// ProcessedKeys is the settle snapshot: the work-set keys whose albums
	// were successfully queried. Keys from failed album queries are excluded
	// so they remain pending for the next pass.
	ProcessedKeys []string
}

// Run executes a pass for the given work set.
func (o *Orchestrator) Run(ctx context.Context, ws *WorkSet) (*PassResult, error) {
	meta, processed := o.resolveMetadata(ctx, ws.Keys)

	if len(meta) == 0 {
		log.Info().
			Str("userId", ws.UserID).
			Int("requested", len(ws.Keys)).
			Msg("No image metadata resolved; nothing to categorize")
		return &PassResult{ProcessedKeys: processed}, nil
	}

	prompt := BuildPrompt(ws, meta)

	log.Info().
		Str("userId", ws.UserID).
		Bool("initial", ws.Initial).
		Int("images", len(meta)).
		Int("promptLength", len(prompt)).
		Msg("Invoking oracle for categorization")

	raw, err := o.Oracle.Invoke(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("oracle invocation for %s: %w", ws.UserID, err)
	}

	result, err := jsonutil.ParseObject[store.SortedData](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOracleResponse, err)
	}

	cleaned, err := validateResult(&result, expectedKeys(ws, meta))
	if err != nil {
		return nil, err
	}

	return &PassResult{Sorted: cleaned, ProcessedKeys: processed}, nil
}

// resolveMetadata fetches stored summaries and tags for the requested keys.
// Keys in the same album share a partition, so lookups are batched as one
// query per album. A failed album query is logged and that album's images
// are dropped from the pass (and from the settle snapshot) instead of
// aborting the run.
func (o *Orchestrator) resolveMetadata(ctx context.Context, keys []string) (map[string]*store.ImageRecord, []string) {
	albums := make(map[string][]string)
	for _, key := range keys {
		album := store.AlbumID(key)
		albums[album] = append(albums[album], key)
	}

	meta := make(map[string]*store.ImageRecord)
	var processed []string

	for album, albumKeys := range albums {
		records, err := o.Meta.QueryByAlbum(ctx, album)
		if err != nil {
			log.Error().Err(err).
				Str("albumId", album).
				Int("images", len(albumKeys)).
				Msg("Album metadata query failed; excluding album from this pass")
			continue
		}

		wanted := make(map[string]bool, len(albumKeys))
		for _, k := range albumKeys {
			wanted[k] = true
		}
		for _, rec := range records {
			if wanted[rec.OriginalKey] {
				meta[rec.OriginalKey] = rec
			}
		}

		// Keys with no stored record are still part of the snapshot: they
		// will never resolve, and keeping them pending would wedge every
		// future pass.
		processed = append(processed, albumKeys...)
	}

	sort.Strings(processed)
	return meta, processed
}

// expectedKeys is the coverage set a result must account for: the resolved
// new images plus, on incremental runs, every image already present in the
// prior structure (the oracle must return the merged whole, never a diff).
func expectedKeys(ws *WorkSet, meta map[string]*store.ImageRecord) map[string]bool {
	expected := make(map[string]bool, len(meta))
	for k := range meta {
		expected[k] = true
	}
	if ws.Prior != nil {
		for _, k := range ws.Prior.MemberKeys() {
			expected[k] = true
		}
	}
	return expected
}

// validateResult converts the parsed oracle output into a trusted
// SortedData. Unknown keys are pruned and repeats keep their first
// placement; a missing expected key fails the pass.
func validateResult(result *store.SortedData, expected map[string]bool) (*store.SortedData, error) {
	if len(result.Categories) == 0 {
		return nil, fmt.Errorf("%w: result has no categories", ErrMalformedOracleResponse)
	}

	seen := make(map[string]bool, len(expected))
	cleaned := &store.SortedData{}

	for _, cat := range result.Categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("%w: category with empty name", ErrMalformedOracleResponse)
		}

		var keys []string
		for _, k := range cat.ImageKeys {
			if !expected[k] {
				log.Warn().Str("key", k).Str("category", cat.Name).Msg("Oracle invented an image key; pruned")
				continue
			}
			if seen[k] {
				log.Warn().Str("key", k).Str("category", cat.Name).Msg("Oracle placed an image in multiple categories; keeping first placement")
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}

		if len(keys) == 0 {
			continue
		}
		cleaned.Categories = append(cleaned.Categories, store.Category{
			Name:        cat.Name,
			Description: cat.Description,
			ImageKeys:   keys,
		})
	}

	var missing []string
	for k := range expected {
		if !seen[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %d image(s) absent from every category: %s",
			ErrIncompleteCategorization, len(missing), strings.Join(missing, ", "))
	}

	return cleaned, nil
}
