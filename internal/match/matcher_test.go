package match

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"blendr/internal/core"
)

// fakeSearcher resolves queries containing a known title to a fixed ID.
type fakeSearcher struct {
	hits map[string]string
	err  error

	mutex   sync.Mutex
	queries []string
}

func (f *fakeSearcher) SearchTrack(_ context.Context, query string) (*core.TrackRef, error) {
	f.mutex.Lock()
	f.queries = append(f.queries, query)
	f.mutex.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	for needle, id := range f.hits {
		if strings.Contains(query, needle) {
			return &core.TrackRef{ID: id}, nil
		}
	}
	return nil, nil
}

func TestMatcher_ResolveAll(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string]string{
		"first song":  "sp1",
		"second song": "sp2",
	}}
	matcher := NewMatcher(searcher, DropUnmatched, 4, nil, zap.NewNop())

	resolved, err := matcher.Resolve(context.Background(), []core.TrackRef{
		{ID: "yt1", Title: "First Song", Artist: "Somebody"},
		{ID: "yt2", Title: "Second Song", Artist: "Somebody"},
	})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	slices.Sort(resolved)
	if !slices.Equal(resolved, []string{"sp1", "sp2"}) {
		t.Errorf("Resolve() = %v, want [sp1 sp2]", resolved)
	}
}

func TestMatcher_DropPolicySkipsUnmatched(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string]string{"known song": "sp1"}}
	matcher := NewMatcher(searcher, DropUnmatched, 4, nil, zap.NewNop())

	resolved, err := matcher.Resolve(context.Background(), []core.TrackRef{
		{ID: "yt1", Title: "Known Song", Artist: "Somebody"},
		{ID: "yt2", Title: "Obscure B-Side", Artist: "Nobody"},
	})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if !slices.Equal(resolved, []string{"sp1"}) {
		t.Errorf("Resolve() = %v, want [sp1]", resolved)
	}
}

func TestMatcher_FailPolicyAbortsOnUnmatched(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string]string{}}
	matcher := NewMatcher(searcher, FailOnUnmatched, 4, nil, zap.NewNop())

	_, err := matcher.Resolve(context.Background(), []core.TrackRef{
		{ID: "yt1", Title: "Obscure B-Side", Artist: "Nobody"},
	})
	if err == nil {
		t.Fatal("Resolve() should fail on an unmatched track")
	}
	if !strings.Contains(err.Error(), "no match") {
		t.Errorf("Resolve() error = %v, want a no-match error", err)
	}
}

func TestMatcher_SearchErrorAbortsBatch(t *testing.T) {
	wantErr := errors.New("rate limited")
	searcher := &fakeSearcher{err: wantErr}
	matcher := NewMatcher(searcher, DropUnmatched, 4, nil, zap.NewNop())

	_, err := matcher.Resolve(context.Background(), []core.TrackRef{
		{ID: "yt1", Title: "Anything", Artist: "Anyone"},
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Resolve() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestMatcher_BuildsNormalizedQueries(t *testing.T) {
	searcher := &fakeSearcher{hits: map[string]string{"some song": "sp1"}}
	matcher := NewMatcher(searcher, DropUnmatched, 1, nil, zap.NewNop())

	_, err := matcher.Resolve(context.Background(), []core.TrackRef{
		{ID: "yt1", Title: "Some Song (feat. Guest)", Artist: "Artist feat. Guest"},
	})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if len(searcher.queries) != 1 {
		t.Fatalf("expected 1 search, got %d", len(searcher.queries))
	}
	if got, want := searcher.queries[0], "track:some song artist:artist"; got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}
