// Package match resolves track identities across catalogs: metadata
// from a foreign catalog is turned into structured search queries
// against the target catalog, dispatched over a bounded worker group.
package match

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blendr/internal/core"
	"blendr/internal/store"
	"blendr/pkg/fuzzy"
)

// Policy controls what happens when a source track yields no search hit.
type Policy int

const (
	// DropUnmatched silently skips tracks with no hit. This is the
	// default: migrations are best-effort per track.
	DropUnmatched Policy = iota
	// FailOnUnmatched aborts the batch on the first unmatched track.
	FailOnUnmatched
)

// ParsePolicy maps a config string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "drop", "":
		return DropUnmatched, nil
	case "fail":
		return FailOnUnmatched, nil
	}
	return 0, fmt.Errorf("invalid match policy %q (must be drop or fail)", s)
}

// Searcher is the one catalog capability the matcher needs.
type Searcher interface {
	SearchTrack(ctx context.Context, query string) (*core.TrackRef, error)
}

type Matcher struct {
	searcher   Searcher
	normalizer *fuzzy.Normalizer
	policy     Policy
	limit      int
	cache      *store.MatchCache
	logger     *zap.Logger
}

// NewMatcher creates a matcher dispatching at most limit concurrent
// lookups. cache may be nil to disable persistent match caching.
func NewMatcher(searcher Searcher, policy Policy, limit int, cache *store.MatchCache, logger *zap.Logger) *Matcher {
	if limit < 1 {
		limit = 1
	}
	return &Matcher{
		searcher:   searcher,
		normalizer: fuzzy.NewNormalizer(),
		policy:     policy,
		limit:      limit,
		cache:      cache,
		logger:     logger,
	}
}

// Resolve maps source-catalog tracks to target-catalog IDs. Lookups run
// concurrently and the call blocks until all complete; the first lookup
// transport error aborts the batch. Unmatched tracks are dropped or
// abort the batch depending on the policy. The result carries no
// positional correspondence to the input.
func (m *Matcher) Resolve(ctx context.Context, sourceTracks []core.TrackRef) ([]string, error) {
	results := make([]string, len(sourceTracks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.limit)

	for i, track := range sourceTracks {
		g.Go(func() error {
			id, err := m.resolveOne(gctx, track)
			if err != nil {
				return err
			}
			results[i] = id
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	resolved := make([]string, 0, len(results))
	for _, id := range results {
		if id != "" {
			resolved = append(resolved, id)
		}
	}

	m.logger.Info("Resolved cross-catalog batch",
		zap.Int("requested", len(sourceTracks)),
		zap.Int("resolved", len(resolved)))

	return resolved, nil
}

func (m *Matcher) resolveOne(ctx context.Context, track core.TrackRef) (string, error) {
	if m.cache != nil && track.ID != "" {
		if id, ok, err := m.cache.Lookup(track.ID); err != nil {
			m.logger.Warn("Match cache lookup failed", zap.String("sourceID", track.ID), zap.Error(err))
		} else if ok {
			return id, nil
		}
	}

	query := m.buildQuery(track)

	hit, err := m.searcher.SearchTrack(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search failed for %q: %w", query, err)
	}

	if hit == nil {
		if m.policy == FailOnUnmatched {
			return "", fmt.Errorf("no match for %q by %q", track.Title, track.Artist)
		}
		m.logger.Debug("Dropping unmatched track",
			zap.String("title", track.Title),
			zap.String("artist", track.Artist))
		return "", nil
	}

	if m.cache != nil && track.ID != "" {
		if err := m.cache.Store(track.ID, hit.ID, track.Title, track.Artist); err != nil {
			m.logger.Warn("Match cache store failed", zap.String("sourceID", track.ID), zap.Error(err))
		}
	}

	return hit.ID, nil
}

func (m *Matcher) buildQuery(track core.TrackRef) string {
	return fmt.Sprintf("track:%s artist:%s",
		m.normalizer.NormalizeTitle(track.Title),
		m.normalizer.NormalizeArtist(track.Artist))
}
