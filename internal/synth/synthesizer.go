// Package synth orchestrates the playlist flows: top-tracks playlists,
// seeded recommendations, two-user blends and cross-catalog library
// migration. Flows are short-lived pipelines over the catalog client;
// nothing is cached between invocations, so idempotency is re-derived
// from playlist names and contents on every run.
package synth

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"blendr/internal/core"
	"blendr/internal/match"
)

const (
	// topTracksPageSize is the vendor page cap for top-track listing.
	topTracksPageSize = 50
	// savedTracksPageSize is the page size for the liked-tracks listing.
	savedTracksPageSize = 50
	// playlistPageSize is the vendor maximum for playlist item pages.
	playlistPageSize = 100
	// appendChunkSize stays below the vendor's 100-items-per-append cap.
	appendChunkSize = 99
	// recommendationSeedCount is how many seeds the vendor accepts.
	recommendationSeedCount = 5
	// recommendationMaxLimit is the vendor cap for one recommendations
	// call; requests above it are not chunked.
	recommendationMaxLimit = 100
	// blendSeedCount seeds blend padding from the interleaved prefix.
	blendSeedCount = 3
	// membershipCapacity bounds the per-flow membership index.
	membershipCapacity = 100000
	// membershipFPRate is the Bloom prefilter false positive rate.
	membershipFPRate = 0.001
)

var rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // Seed sampling doesn't need crypto-secure randomness

type Synthesizer struct {
	catalog core.CatalogClient
	source  core.SourceCatalog
	matcher *match.Matcher
	market  string
	logger  *zap.Logger

	now func() time.Time
}

// NewSynthesizer creates a synthesizer over the given catalog. source
// and matcher may be nil when the migration flow is not used.
func NewSynthesizer(catalog core.CatalogClient, source core.SourceCatalog, matcher *match.Matcher, market string, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		catalog: catalog,
		source:  source,
		matcher: matcher,
		market:  market,
		logger:  logger,
		now:     time.Now,
	}
}

// GetTop builds a playlist named top_<range>_<date> from the user's top
// tracks. If a playlist of that name already exists it is returned
// unchanged: the flow is idempotent by skipping, not merging. Returns
// the playlist and its track count.
func (s *Synthesizer) GetTop(ctx context.Context, timeRange core.TimeRange, limit int) (*core.PlaylistRef, int, error) {
	me, err := s.catalog.CurrentUser(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve current user: %w", err)
	}

	flow := core.FlowContext{Username: me, Command: core.CommandGetTop, TimeRange: timeRange}

	name := fmt.Sprintf("top_%s_%s", timeRange, s.today())
	flow.PlaylistName = name

	if existing, err := s.playlistByName(ctx, "", name); err != nil {
		return nil, 0, core.NewOperationError("failed to list playlists", flow, err)
	} else if existing != nil {
		s.logger.Info("Top playlist already exists, reusing",
			zap.String("name", name),
			zap.String("playlistID", existing.ID))

		current, err := s.fetchAllPlaylistItems(ctx, existing.ID)
		if err != nil {
			return nil, 0, core.NewOperationError("failed to fetch existing playlist items", flow, err)
		}
		return existing, len(current), nil
	}

	tops, err := s.accumulateTopTracks(ctx, timeRange, limit)
	if err != nil {
		return nil, 0, core.NewOperationError("failed to fetch top tracks", flow, err)
	}

	if len(tops) == 0 {
		return nil, 0, core.NewUserInputError("no top tracks found for %s: try another time range or listen more", timeRange)
	}

	description := fmt.Sprintf("Generated by blendr for %s", timeRange)
	playlist, err := s.createWithTracks(ctx, me, name, description, trackIDs(tops))
	if err != nil {
		return nil, 0, core.NewOperationError("failed to create top playlist", flow, err)
	}

	return playlist, len(tops), nil
}

// GetRecommendations builds a fresh playlist named
// recommendations_<date> from vendor recommendations seeded by either
// sampled top tracks or top artists. Returns the playlist and its
// track count.
func (s *Synthesizer) GetRecommendations(ctx context.Context, timeRange core.TimeRange, seedKind core.SeedKind, limit int) (*core.PlaylistRef, int, error) {
	me, err := s.catalog.CurrentUser(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve current user: %w", err)
	}

	flow := core.FlowContext{Username: me, Command: core.CommandGetRecommendations, TimeRange: timeRange}

	var seeds core.SeedSpec
	description := "Generated by blendr based on "

	switch seedKind {
	case core.SeedTracks:
		tops, err := s.accumulateTopTracks(ctx, timeRange, limit)
		if err != nil {
			return nil, 0, core.NewOperationError("failed to fetch top tracks", flow, err)
		}
		if len(tops) < recommendationSeedCount {
			return nil, 0, core.NewUserInputError("not enough top tracks for %s (need at least %d): try another time range or listen more",
				timeRange, recommendationSeedCount)
		}

		sampled := sampleWithReplacement(tops, recommendationSeedCount)
		seeds.Tracks = trackIDs(sampled)
		description += fmt.Sprintf("tracks from my %s top: %s", timeRange, joinTrackNames(sampled))

	case core.SeedArtists:
		artists, err := s.catalog.TopArtists(ctx, timeRange, recommendationSeedCount)
		if err != nil {
			return nil, 0, core.NewOperationError("failed to fetch top artists", flow, err)
		}
		if len(artists) == 0 {
			return nil, 0, core.NewUserInputError("no top artists found for %s: try another time range or listen more", timeRange)
		}

		names := make([]string, 0, len(artists))
		for _, a := range artists {
			seeds.Artists = append(seeds.Artists, a.ID)
			names = append(names, a.Name)
		}
		description += fmt.Sprintf("my %s top artists: %s", timeRange, strings.Join(names, ", "))
	}

	recs, err := s.catalog.Recommendations(ctx, seeds, min(recommendationMaxLimit, limit), s.market)
	if err != nil {
		return nil, 0, core.NewOperationError("failed to fetch recommendations", flow, err)
	}

	name := fmt.Sprintf("recommendations_%s", s.today())
	flow.PlaylistName = name

	playlist, err := s.createWithTracks(ctx, me, name, description, trackIDs(recs))
	if err != nil {
		return nil, 0, core.NewOperationError("failed to create recommendations playlist", flow, err)
	}

	return playlist, len(recs), nil
}

// accumulateTopTracks pages through the top-tracks listing in batches
// of at most 50 until limit tracks are collected or the source runs dry.
func (s *Synthesizer) accumulateTopTracks(ctx context.Context, timeRange core.TimeRange, limit int) ([]core.TrackRef, error) {
	var collected []core.TrackRef
	offset := 0
	remaining := limit

	for remaining > 0 {
		batch := min(topTracksPageSize, remaining)

		items, _, err := s.catalog.TopTracks(ctx, timeRange, batch, offset)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}

		collected = append(collected, items...)
		if len(items) < batch {
			break
		}

		remaining -= batch
		offset += batch
	}

	return collected, nil
}

// createWithTracks creates a private playlist and appends trackIDs in
// vendor-safe chunks.
func (s *Synthesizer) createWithTracks(ctx context.Context, ownerID, name, description string, ids []string) (*core.PlaylistRef, error) {
	playlist, err := s.catalog.CreatePlaylist(ctx, ownerID, name, description, false)
	if err != nil {
		return nil, err
	}

	if err := s.appendChunked(ctx, playlist.ID, ids); err != nil {
		return nil, err
	}

	s.logger.Info("Created playlist",
		zap.String("name", name),
		zap.String("playlistID", playlist.ID),
		zap.Int("tracks", len(ids)))

	return playlist, nil
}

// appendChunked appends IDs in chunks of at most 99, preserving order.
func (s *Synthesizer) appendChunked(ctx context.Context, playlistID string, ids []string) error {
	for start := 0; start < len(ids); start += appendChunkSize {
		end := min(start+appendChunkSize, len(ids))
		if err := s.catalog.AppendItems(ctx, playlistID, ids[start:end]); err != nil {
			return fmt.Errorf("failed to append items [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

// playlistByName looks a playlist up by exact name among the given
// user's playlists. Returns nil when absent.
func (s *Synthesizer) playlistByName(ctx context.Context, username, name string) (*core.PlaylistRef, error) {
	playlists, err := s.catalog.UserPlaylists(ctx, username)
	if err != nil {
		return nil, err
	}

	for i := range playlists {
		if playlists[i].Name == name {
			return &playlists[i], nil
		}
	}
	return nil, nil
}

// fetchAllPlaylistItems pages through the whole playlist at the vendor
// maximum page size, preserving playlist order.
func (s *Synthesizer) fetchAllPlaylistItems(ctx context.Context, playlistID string) ([]string, error) {
	var ids []string
	offset := 0

	for {
		items, hasNext, err := s.catalog.PlaylistItems(ctx, playlistID, playlistPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, t := range items {
			ids = append(ids, t.ID)
		}
		if !hasNext {
			return ids, nil
		}
		offset += playlistPageSize
	}
}

func (s *Synthesizer) today() string {
	return s.now().Format("2006-01-02")
}

func trackIDs(tracks []core.TrackRef) []string {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

func sampleWithReplacement(tracks []core.TrackRef, k int) []core.TrackRef {
	out := make([]core.TrackRef, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, tracks[rng.Intn(len(tracks))])
	}
	return out
}

func joinTrackNames(tracks []core.TrackRef) string {
	names := make([]string, 0, len(tracks))
	for _, t := range tracks {
		names = append(names, fmt.Sprintf("%s - %s", t.Artist, t.Title))
	}
	return strings.Join(names, ", ")
}
