package sorter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/albumlab/album-organizer/internal/store"
)

type fakeMeta struct {
	records map[string][]*store.ImageRecord // albumID -> records
	errs    map[string]error                // albumID -> query error
}

func (f *fakeMeta) QueryByAlbum(ctx context.Context, albumID string) ([]*store.ImageRecord, error) {
	if err := f.errs[albumID]; err != nil {
		return nil, err
	}
	return f.records[albumID], nil
}

type fakeOracle struct {
	response string
	err      error
	prompt   string
}

func (f *fakeOracle) Invoke(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func metaFor(keys ...string) *fakeMeta {
	f := &fakeMeta{records: make(map[string][]*store.ImageRecord)}
	for _, k := range keys {
		album := store.AlbumID(k)
		f.records[album] = append(f.records[album], &store.ImageRecord{
			AlbumID:     album,
			OriginalKey: k,
			Summary:     "summary of " + k,
			Tags:        []string{"tag"},
		})
	}
	return f
}

func oracleResponse(t *testing.T, data *store.SortedData) string {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func TestRunCoversEveryImage(t *testing.T) {
	keys := []string{
		"album/u1/trip/a.jpg",
		"album/u1/trip/b.jpg",
		"album/u1/pets/c.jpg",
	}
	resp := &store.SortedData{Categories: []store.Category{
		{Name: "여행", Description: "설명", ImageKeys: []string{"album/u1/trip/a.jpg", "album/u1/trip/b.jpg"}},
		{Name: CatchAllCategory, Description: "설명", ImageKeys: []string{"album/u1/pets/c.jpg"}},
	}}

	orch := &Orchestrator{Meta: metaFor(keys...), Oracle: &fakeOracle{response: oracleResponse(t, resp)}}
	result, err := orch.Run(context.Background(), &WorkSet{UserID: "u1", Initial: true, Keys: keys})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	placed := make(map[string]bool)
	for _, c := range result.Sorted.Categories {
		for _, k := range c.ImageKeys {
			if placed[k] {
				t.Errorf("key %s placed twice", k)
			}
			placed[k] = true
		}
	}
	for _, k := range keys {
		if !placed[k] {
			t.Errorf("key %s missing from result", k)
		}
	}

	wantProcessed := []string{"album/u1/pets/c.jpg", "album/u1/trip/a.jpg", "album/u1/trip/b.jpg"}
	if !reflect.DeepEqual(result.ProcessedKeys, wantProcessed) {
		t.Errorf("ProcessedKeys = %v, want %v", result.ProcessedKeys, wantProcessed)
	}
}

func TestRunAcceptsProseWrappedJSON(t *testing.T) {
	key := "album/u1/trip/a.jpg"
	resp := &store.SortedData{Categories: []store.Category{
		{Name: "여행", ImageKeys: []string{key}},
	}}
	wrapped := "Sure! Here is the categorization you asked for:\n```json\n" +
		oracleResponse(t, resp) + "\n```\nLet me know if you need anything else."

	orch := &Orchestrator{Meta: metaFor(key), Oracle: &fakeOracle{response: wrapped}}
	result, err := orch.Run(context.Background(), &WorkSet{UserID: "u1", Initial: true, Keys: []string{key}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Sorted.Categories) != 1 {
		t.Errorf("Categories = %v", result.Sorted.Categories)
	}
}

func TestRunPrunesInventedAndDuplicateKeys(t *testing.T) {
	key := "album/u1/trip/a.jpg"
	resp := &store.SortedData{Categories: []store.Category{
		{Name: "여행", ImageKeys: []string{key, "album/u1/trip/invented.jpg"}},
		{Name: CatchAllCategory, ImageKeys: []string{key}}, // duplicate placement
	}}

	orch := &Orchestrator{Meta: metaFor(key), Oracle: &fakeOracle{response: oracleResponse(t, resp)}}
	result, err := orch.Run(context.Background(), &WorkSet{UserID: "u1", Initial: true, Keys: []string{key}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Sorted.Categories) != 1 {
		t.Fatalf("Categories = %+v, want only the first placement to survive", result.Sorted.Categories)
	}
	got := result.Sorted.Categories[0]
	if got.Name != "여행" || !reflect.DeepEqual(got.ImageKeys, []string{key}) {
		t.Errorf("surviving category = %+v", got)
	}
}

func TestRunRejectsIncompleteCategorization(t *testing.T) {
	keys := []string{"album/u1/trip/a.jpg", "album/u1/trip/b.jpg"}
	resp := &store.SortedData{Categories: []store.Category{
		{Name: "여행", ImageKeys: []string{keys[0]}}, // b.jpg dropped
	}}

	orch := &Orchestrator{Meta: metaFor(keys...), Oracle: &fakeOracle{response: oracleResponse(t, resp)}}
	_, err := orch.Run(context.Background(), &WorkSet{UserID: "u1", Initial: true, Keys: keys})
	if !errors.Is(err, ErrIncompleteCategorization) {
		t.Errorf("err = %v, want ErrIncompleteCategorization", err)
	}
	if err != nil && !strings.Contains(err.Error(), keys[1]) {
		t.Errorf("error should name the missing key: %v", err)
	}
}

func TestRunRejectsMalformedResponses(t *testing.T) {
	key := "album/u1/trip/a.jpg"
	tests := []struct {
		name     string
		response string
	}{
		{"no JSON at all", "I could not categorize these images."},
		{"empty categories", `{"categories": []}`},
		{"category without a name", fmt.Sprintf(`{"categories": [{"categoryName": "", "imageKeys": [%q]}]}`, key)},
		{"truncated object", `{"categories": [{"categoryName": "여행"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			orch := &Orchestrator{Meta: metaFor(key), Oracle: &fakeOracle{response: tc.response}}
			_, err := orch.Run(context.Background(), &WorkSet{UserID: "u1", Initial: true, Keys: []string{key}})
			if !errors.Is(err, ErrMalformedOracleResponse) {
				t.Errorf("err = %v, want ErrMalformedOracleResponse", err)
			}
		})
	}
}

func TestRunIncrementalRequiresPriorKeys(t *testing.T) {
	// The oracle must return the merged whole; an answer covering only the
	// new image is incomplete even though every new key is present.
	prior := &store.SortedData{Categories: []store.Category{
		{Name: "여행", ImageKeys: []string{"album/u1/trip/old.jpg"}},
	}}
	newKey := "album/u1/trip/new.jpg"
	resp := &store.SortedData{Categories: []store.Category{
		{Name: "여행", ImageKeys: []string{newKey}},
	}}

	orch := &Orchestrator{Meta: metaFor(newKey), Oracle: &fakeOracle{response: oracleResponse(t, resp)}}
	_, err := orch.Run(context.Background(), &WorkSet{UserID: "u1", Keys: []string{newKey}, Prior: prior})
	if !errors.Is(err, ErrIncompleteCategorization) {
		t.Errorf("err = %v, want ErrIncompleteCategorization", err)
	}
}

func TestRunIncrementalMerge(t *testing.T) {
	prior := &store.SortedData{Categories: []store.Category{
		{Name: "여행", Description: "기존", ImageKeys: []string{"album/u1/trip/old.jpg"}},
	}}
	newKey := "album/u1/trip/new.jpg"
	resp := &store.SortedData{Categories: []store.Category{
		{Name: "여행", Description: "기존", ImageKeys: []string{"album/u1/trip/old.jpg", newKey}},
	}}

	oracle := &fakeOracle{response: oracleResponse(t, resp)}
	orch := &Orchestrator{Meta: metaFor(newKey), Oracle: oracle}
	result, err := orch.Run(context.Background(), &WorkSet{UserID: "u1", Keys: []string{newKey}, Prior: prior})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Sorted.Categories) != 1 || len(result.Sorted.Categories[0].ImageKeys) != 2 {
		t.Errorf("merged result = %+v", result.Sorted)
	}
	// Only the new key is consumed from the pending set.
	if !reflect.DeepEqual(result.ProcessedKeys, []string{newKey}) {
		t.Errorf("ProcessedKeys = %v, want %v", result.ProcessedKeys, []string{newKey})
	}
	if !strings.Contains(oracle.prompt, "album/u1/trip/old.jpg") {
		t.Error("prompt should include the existing structure")
	}
}

func TestRunExcludesFailedAlbums(t *testing.T) {
	okKey := "album/u1/trip/a.jpg"
	badKey := "album/u1/pets/b.jpg"

	meta := metaFor(okKey)
	meta.errs = map[string]error{store.AlbumID(badKey): errors.New("throttled")}

	resp := &store.SortedData{Categories: []store.Category{
		{Name: "여행", ImageKeys: []string{okKey}},
	}}

	orch := &Orchestrator{Meta: meta, Oracle: &fakeOracle{response: oracleResponse(t, resp)}}
	result, err := orch.Run(context.Background(), &WorkSet{UserID: "u1", Initial: true, Keys: []string{okKey, badKey}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The failed album's key stays out of the snapshot so it remains pending.
	if !reflect.DeepEqual(result.ProcessedKeys, []string{okKey}) {
		t.Errorf("ProcessedKeys = %v, want %v", result.ProcessedKeys, []string{okKey})
	}
}

func TestRunWithNoResolvedMetadata(t *testing.T) {
	// The album query succeeds but holds no record for the key: the pass
	// settles without a result and the unresolvable key is consumed so it
	// cannot wedge future passes.
	key := "album/u1/trip/ghost.jpg"
	meta := &fakeMeta{records: map[string][]*store.ImageRecord{}}

	oracle := &fakeOracle{response: "should never be called"}
	orch := &Orchestrator{Meta: meta, Oracle: oracle}
	result, err := orch.Run(context.Background(), &WorkSet{UserID: "u1", Initial: true, Keys: []string{key}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Sorted != nil {
		t.Errorf("Sorted = %+v, want nil", result.Sorted)
	}
	if !reflect.DeepEqual(result.ProcessedKeys, []string{key}) {
		t.Errorf("ProcessedKeys = %v, want %v", result.ProcessedKeys, []string{key})
	}
	if oracle.prompt != "" {
		t.Error("oracle must not be invoked with nothing to categorize")
	}
}

func TestRunPropagatesOracleErrors(t *testing.T) {
	boom := errors.New("rate limited")
	key := "album/u1/trip/a.jpg"

	orch := &Orchestrator{Meta: metaFor(key), Oracle: &fakeOracle{err: boom}}
	_, err := orch.Run(context.Background(), &WorkSet{UserID: "u1", Initial: true, Keys: []string{key}})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped oracle error", err)
	}
}
