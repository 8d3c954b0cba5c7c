package core

import (
	"context"
	"fmt"
)

// Command selects which playlist flow to run. The value is decided at the
// CLI boundary and passed into the synthesizer as a typed value.
type Command int

const (
	// CommandGetTop builds a playlist from the user's top tracks.
	CommandGetTop Command = iota
	// CommandGetRecommendations builds a playlist from seeded recommendations.
	CommandGetRecommendations
	// CommandBlendWithFriend interleaves two users' unique tracks.
	CommandBlendWithFriend
	// CommandMigrateLibrary likes a source-catalog playlist on Spotify.
	CommandMigrateLibrary
	// CommandMergePlaylists unions two playlists into a named playlist.
	CommandMergePlaylists
)

func (c Command) String() string {
	switch c {
	case CommandGetTop:
		return "get_top"
	case CommandGetRecommendations:
		return "get_recommendations"
	case CommandBlendWithFriend:
		return "blend_with_friend"
	case CommandMigrateLibrary:
		return "migrate_library"
	case CommandMergePlaylists:
		return "merge_playlists"
	}
	return "unknown"
}

// TimeRange is the listening-history window for top tracks and artists.
type TimeRange string

const (
	TimeRangeShort  TimeRange = "short_term"
	TimeRangeMedium TimeRange = "medium_term"
	TimeRangeLong   TimeRange = "long_term"
)

// ParseTimeRange validates a time range string from the CLI.
func ParseTimeRange(s string) (TimeRange, error) {
	switch TimeRange(s) {
	case TimeRangeShort, TimeRangeMedium, TimeRangeLong:
		return TimeRange(s), nil
	}
	return "", fmt.Errorf("invalid time range %q (must be short_term, medium_term or long_term)", s)
}

// SeedKind selects what the recommendation flow seeds from.
type SeedKind int

const (
	// SeedTracks seeds recommendations from sampled top tracks.
	SeedTracks SeedKind = iota
	// SeedArtists seeds recommendations from top artists.
	SeedArtists
)

// ParseSeedKind validates a seed kind string from the CLI.
func ParseSeedKind(s string) (SeedKind, error) {
	switch s {
	case "tracks":
		return SeedTracks, nil
	case "artists":
		return SeedArtists, nil
	}
	return 0, fmt.Errorf("invalid seed kind %q (must be tracks or artists)", s)
}

// TrackRef identifies a track within one catalog. IDs are catalog-scoped
// and never comparable across catalogs.
type TrackRef struct {
	ID     string
	Title  string
	Artist string
}

// ArtistRef identifies an artist within one catalog.
type ArtistRef struct {
	ID   string
	Name string
}

// PlaylistRef identifies a playlist. The name acts as the natural key
// for idempotent lookup; no separate mapping is persisted.
type PlaylistRef struct {
	ID      string
	OwnerID string
	Name    string
}

// BlendRequest carries the parameters of one blend operation. It is
// transient and never persisted.
type BlendRequest struct {
	FriendID        string
	FriendsPlaylist string
	MyPlaylist      string
	TargetSize      int
}

// SeedSpec holds recommendation seeds. Exactly one of Tracks or Artists
// is populated.
type SeedSpec struct {
	Tracks  []string
	Artists []string
}

// FlowContext carries diagnostic context attached to error reports.
type FlowContext struct {
	Username     string
	Command      Command
	TimeRange    TimeRange
	PlaylistName string
	Friend       string
}

// CatalogClient is the authenticated, paginated capability the core
// consumes. Implementations own all network-resident state; the core
// re-fetches what it needs on every flow.
type CatalogClient interface {
	// CurrentUser returns the authenticated user's ID.
	CurrentUser(ctx context.Context) (string, error)

	// SearchTrack returns the first hit for a structured query, or nil
	// when the search yields nothing.
	SearchTrack(ctx context.Context, query string) (*TrackRef, error)

	// SavedTracks pages through the user's liked tracks.
	SavedTracks(ctx context.Context, limit, offset int) (items []TrackRef, hasNext bool, err error)

	// PlaylistItems pages through a playlist's tracks.
	PlaylistItems(ctx context.Context, playlistID string, limit, offset int) (items []TrackRef, hasNext bool, err error)

	// TopTracks pages through the user's top tracks for a time range.
	TopTracks(ctx context.Context, timeRange TimeRange, limit, offset int) (items []TrackRef, hasNext bool, err error)

	// TopArtists returns up to limit of the user's top artists.
	TopArtists(ctx context.Context, timeRange TimeRange, limit int) ([]ArtistRef, error)

	// Recommendations returns up to limit recommended tracks for the
	// given seeds. The vendor endpoint does not paginate past 100.
	Recommendations(ctx context.Context, seeds SeedSpec, limit int, market string) ([]TrackRef, error)

	// CreatePlaylist creates a playlist owned by ownerID.
	CreatePlaylist(ctx context.Context, ownerID, name, description string, public bool) (*PlaylistRef, error)

	// AppendItems appends tracks to a playlist. Callers must chunk to
	// at most 99 IDs per call.
	AppendItems(ctx context.Context, playlistID string, trackIDs []string) error

	// LikeTrack saves a single track to the user's library.
	LikeTrack(ctx context.Context, trackID string) error

	// UserPlaylists lists the playlists of the given user. An empty
	// username means the current user.
	UserPlaylists(ctx context.Context, username string) ([]PlaylistRef, error)
}

// SourceCatalog is the foreign catalog a library is migrated from.
type SourceCatalog interface {
	// LibraryPlaylistByName finds a playlist in the user's library by
	// exact title and returns its tracks.
	LibraryPlaylistByName(ctx context.Context, name string) ([]TrackRef, error)
}

// Reporter is the failure notification sink. Implementations must never
// let their own failures mask the error being reported.
type Reporter interface {
	Report(ctx context.Context, flow FlowContext, cause error)
}
