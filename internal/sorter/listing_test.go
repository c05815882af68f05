package sorter

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/albumlab/album-organizer/internal/store"
)

type fakeStats struct {
	stats *store.UserStats
	err   error
}

func (f *fakeStats) GetStats(ctx context.Context, userID string) (*store.UserStats, error) {
	return f.stats, f.err
}

type fakeLister struct {
	keys   []string
	err    error
	called bool
}

func (f *fakeLister) ListAlbum(ctx context.Context, userID string) ([]string, error) {
	f.called = true
	return f.keys, f.err
}

func TestBuildInitialSort(t *testing.T) {
	lister := &fakeLister{keys: []string{
		"album/u1/trip/b.jpg",
		"album/u1/trip/",
		"album/u1/pets/a.jpg",
	}}
	b := &ListBuilder{Stats: &fakeStats{}, Lister: lister}

	ws, err := b.Build(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !ws.Initial {
		t.Error("expected initial work set for user with no stats")
	}
	if ws.Prior != nil {
		t.Error("initial work set must not carry prior data")
	}
	want := []string{"album/u1/pets/a.jpg", "album/u1/trip/b.jpg"}
	if !reflect.DeepEqual(ws.Keys, want) {
		t.Errorf("Keys = %v, want %v (sorted, folder markers dropped)", ws.Keys, want)
	}
}

func TestBuildInitialWhenNoPriorResult(t *testing.T) {
	// A stats record without SortedData still means first-time sort: the
	// counter may have been bumping for a while before the first pass runs.
	stats := &fakeStats{stats: &store.UserStats{
		UserID:           "u1",
		ImageCount:       25,
		PendingImageKeys: []string{"album/u1/x.jpg"},
	}}
	lister := &fakeLister{keys: []string{"album/u1/x.jpg", "album/u1/y.jpg"}}
	b := &ListBuilder{Stats: stats, Lister: lister}

	ws, err := b.Build(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !ws.Initial {
		t.Error("expected initial sort when no prior result exists")
	}
	if len(ws.Keys) != 2 {
		t.Errorf("Keys = %v, want full listing", ws.Keys)
	}
}

func TestBuildIncrementalSort(t *testing.T) {
	prior := &store.SortedData{Categories: []store.Category{
		{Name: "여행", ImageKeys: []string{"album/u1/old.jpg"}},
	}}
	stats := &fakeStats{stats: &store.UserStats{
		UserID:           "u1",
		SortedData:       prior,
		PendingImageKeys: []string{"album/u1/new2.jpg", "album/u1/new1.jpg"},
	}}
	lister := &fakeLister{keys: []string{"album/u1/old.jpg", "album/u1/new1.jpg", "album/u1/new2.jpg"}}
	b := &ListBuilder{Stats: stats, Lister: lister}

	ws, err := b.Build(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ws.Initial {
		t.Error("expected incremental work set")
	}
	if lister.called {
		t.Error("incremental sort must not list the bucket")
	}
	want := []string{"album/u1/new1.jpg", "album/u1/new2.jpg"}
	if !reflect.DeepEqual(ws.Keys, want) {
		t.Errorf("Keys = %v, want pending set only %v", ws.Keys, want)
	}
	if ws.Prior != prior {
		t.Error("incremental work set must carry the prior result")
	}
}

func TestBuildPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")

	b := &ListBuilder{Stats: &fakeStats{err: boom}, Lister: &fakeLister{}}
	if _, err := b.Build(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Errorf("stats error not propagated: %v", err)
	}

	b = &ListBuilder{Stats: &fakeStats{}, Lister: &fakeLister{err: boom}}
	if _, err := b.Build(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Errorf("lister error not propagated: %v", err)
	}
}
