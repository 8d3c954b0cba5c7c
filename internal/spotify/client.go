// Package spotify implements the catalog client capability over the
// Spotify Web API.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"blendr/internal/core"
)

const (
	// FilePermission is the permission for token files.
	FilePermission = 0600
	// requestInterval paces outgoing API calls under the vendor's rate
	// tolerance.
	requestInterval = 100 * time.Millisecond
	// requestBurst allows short bursts before pacing kicks in.
	requestBurst = 5
)

type Client struct {
	config  *core.SpotifyConfig
	logger  *zap.Logger
	client  *spotify.Client
	auth    *spotifyauth.Authenticator
	limiter *rate.Limiter
	timeout time.Duration
}

type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

func NewClient(config *core.SpotifyConfig, callTimeout time.Duration, logger *zap.Logger) *Client {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopeUserTopRead,
			spotifyauth.ScopeUserLibraryRead,
			spotifyauth.ScopeUserLibraryModify,
			spotifyauth.ScopeUserReadPrivate,
		),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	return &Client{
		config:  config,
		logger:  logger,
		auth:    auth,
		limiter: rate.NewLimiter(rate.Every(requestInterval), requestBurst),
		timeout: callTimeout,
	}
}

func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.loadToken()
	if err != nil {
		c.logger.Info("No saved token found, starting OAuth flow")
		return c.startOAuthFlow(ctx)
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn("Saved token invalid, starting OAuth flow", zap.Error(err))
		return c.startOAuthFlow(ctx)
	}

	c.logger.Info("Authenticated successfully", zap.String("user", user.ID))
	return nil
}

func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	ctx, cancel, err := c.lease(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return user.ID, nil
}

// SearchTrack returns the first hit for a structured track query, or
// nil when the search yields nothing.
func (c *Client) SearchTrack(ctx context.Context, query string) (*core.TrackRef, error) {
	ctx, cancel, err := c.lease(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	results, err := c.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, nil
	}

	ref := convertFullTrack(&results.Tracks.Tracks[0])
	return &ref, nil
}

func (c *Client) SavedTracks(ctx context.Context, limit, offset int) ([]core.TrackRef, bool, error) {
	ctx, cancel, err := c.lease(ctx)
	if err != nil {
		return nil, false, err
	}
	defer cancel()

	page, err := c.client.CurrentUsersTracks(ctx, spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get saved tracks: %w", err)
	}

	items := make([]core.TrackRef, 0, len(page.Tracks))
	for i := range page.Tracks {
		items = append(items, convertFullTrack(&page.Tracks[i].FullTrack))
	}
	return items, page.Next != "", nil
}

func (c *Client) PlaylistItems(ctx context.Context, playlistID string, limit, offset int) ([]core.TrackRef, bool, error) {
	ctx, cancel, err := c.lease(ctx)
	if err != nil {
		return nil, false, err
	}
	defer cancel()

	page, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
		spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get playlist items: %w", err)
	}

	items := make([]core.TrackRef, 0, len(page.Items))
	for i := range page.Items {
		// Only tracks, not episodes or null items.
		if page.Items[i].Track.Track != nil {
			items = append(items, convertFullTrack(page.Items[i].Track.Track))
		}
	}
	return items, page.Next != "", nil
}

func (c *Client) TopTracks(ctx context.Context, timeRange core.TimeRange, limit, offset int) ([]core.TrackRef, bool, error) {
	ctx, cancel, err := c.lease(ctx)
	if err != nil {
		return nil, false, err
	}
	defer cancel()

	page, err := c.client.CurrentUsersTopTracks(ctx,
		spotify.Limit(limit), spotify.Offset(offset), spotify.Timerange(convertTimeRange(timeRange)))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get top tracks: %w", err)
	}

	items := make([]core.TrackRef, 0, len(page.Tracks))
	for i := range page.Tracks {
		items = append(items, convertFullTrack(&page.Tracks[i]))
	}
	return items, page.Next != "", nil
}

func (c *Client) TopArtists(ctx context.Context, timeRange core.TimeRange, limit int) ([]core.ArtistRef, error) {
	ctx, cancel, err := c.lease(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	page, err := c.client.CurrentUsersTopArtists(ctx,
		spotify.Limit(limit), spotify.Timerange(convertTimeRange(timeRange)))
	if err != nil {
		return nil, fmt.Errorf("failed to get top artists: %w", err)
	}

	artists := make([]core.ArtistRef, 0, len(page.Artists))
	for i := range page.Artists {
		artists = append(artists, core.ArtistRef{
			ID:   string(page.Artists[i].ID),
			Name: page.Artists[i].Name,
		})
	}
	return artists, nil
}

func (c *Client) Recommendations(ctx context.Context, seeds core.SeedSpec, limit int, market string) ([]core.TrackRef, error) {
	ctx, cancel, err := c.lease(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	spotifySeeds := spotify.Seeds{}
	for _, id := range seeds.Tracks {
		spotifySeeds.Tracks = append(spotifySeeds.Tracks, spotify.ID(id))
	}
	for _, id := range seeds.Artists {
		spotifySeeds.Artists = append(spotifySeeds.Artists, spotify.ID(id))
	}

	opts := []spotify.RequestOption{spotify.Limit(limit)}
	if market != "" {
		opts = append(opts, spotify.Country(market))
	}

	recs, err := c.client.GetRecommendations(ctx, spotifySeeds, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendations: %w", err)
	}

	items := make([]core.TrackRef, 0, len(recs.Tracks))
	for i := range recs.Tracks {
		items = append(items, convertSimpleTrack(&recs.Tracks[i]))
	}
	return items, nil
}

func (c *Client) CreatePlaylist(ctx context.Context, ownerID, name, description string, public bool) (*core.PlaylistRef, error) {
	ctx, cancel, err := c.lease(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	playlist, err := c.client.CreatePlaylistForUser(ctx, ownerID, name, description, public, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	c.logger.Info("Created playlist",
		zap.String("name", name),
		zap.String("playlistID", string(playlist.ID)))

	return &core.PlaylistRef{
		ID:      string(playlist.ID),
		OwnerID: playlist.Owner.ID,
		Name:    playlist.Name,
	}, nil
}

func (c *Client) AppendItems(ctx context.Context, playlistID string, trackIDs []string) error {
	ctx, cancel, err := c.lease(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	ids := make([]spotify.ID, 0, len(trackIDs))
	for _, id := range trackIDs {
		ids = append(ids, spotify.ID(id))
	}

	if _, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return fmt.Errorf("failed to add tracks to playlist: %w", err)
	}

	c.logger.Debug("Appended tracks to playlist",
		zap.String("playlistID", playlistID),
		zap.Int("count", len(trackIDs)))

	return nil
}

func (c *Client) LikeTrack(ctx context.Context, trackID string) error {
	ctx, cancel, err := c.lease(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := c.client.AddTracksToLibrary(ctx, spotify.ID(trackID)); err != nil {
		return fmt.Errorf("failed to like track %s: %w", trackID, err)
	}
	return nil
}

func (c *Client) UserPlaylists(ctx context.Context, username string) ([]core.PlaylistRef, error) {
	var playlists []core.PlaylistRef
	limit := 50
	offset := 0

	for {
		page, err := c.userPlaylistsPage(ctx, username, limit, offset)
		if err != nil {
			return nil, err
		}

		for i := range page.Playlists {
			playlists = append(playlists, core.PlaylistRef{
				ID:      string(page.Playlists[i].ID),
				OwnerID: page.Playlists[i].Owner.ID,
				Name:    page.Playlists[i].Name,
			})
		}

		if page.Next == "" {
			return playlists, nil
		}
		offset += limit
	}
}

func (c *Client) userPlaylistsPage(ctx context.Context, username string, limit, offset int) (*spotify.SimplePlaylistPage, error) {
	ctx, cancel, err := c.lease(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	if username == "" {
		page, err := c.client.CurrentUsersPlaylists(ctx, spotify.Limit(limit), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}
		return page, nil
	}

	page, err := c.client.GetPlaylistsForUser(ctx, username, spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists for %s: %w", username, err)
	}
	return page, nil
}

// lease paces the call under the rate limiter and applies the per-call
// timeout.
func (c *Client) lease(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if c.client == nil {
		return nil, nil, fmt.Errorf("client not authenticated")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return ctx, cancel, nil
}

func convertTimeRange(tr core.TimeRange) spotify.Range {
	switch tr {
	case core.TimeRangeMedium:
		return spotify.MediumTermRange
	case core.TimeRangeLong:
		return spotify.LongTermRange
	default:
		return spotify.ShortTermRange
	}
}

func convertFullTrack(track *spotify.FullTrack) core.TrackRef {
	ref := core.TrackRef{
		ID:    string(track.ID),
		Title: track.Name,
	}
	if len(track.Artists) > 0 {
		ref.Artist = track.Artists[0].Name
	}
	return ref
}

func convertSimpleTrack(track *spotify.SimpleTrack) core.TrackRef {
	ref := core.TrackRef{
		ID:    string(track.ID),
		Title: track.Name,
	}
	if len(track.Artists) > 0 {
		ref.Artist = track.Artists[0].Name
	}
	return ref
}

func (c *Client) startOAuthFlow(ctx context.Context) error {
	state := "blendr-auth-state"
	authURL := c.auth.AuthURL(state)

	fmt.Printf("Please visit the following URL to authorize the application:\n%s\n", authURL)
	fmt.Print("Enter the authorization code: ")

	var code string
	if _, err := fmt.Scanln(&code); err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if saveErr := c.saveToken(token); saveErr != nil {
		c.logger.Warn("Failed to save token", zap.Error(saveErr))
	}

	client := spotify.New(c.auth.Client(ctx, token))
	c.client = client

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	c.logger.Info("OAuth flow completed successfully", zap.String("user", user.ID))
	return nil
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	file, err := os.Open(c.config.TokenPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, err
	}

	return tokenData.Token, nil
}

func (c *Client) saveToken(token *oauth2.Token) error {
	tokenData := TokenData{Token: token}

	data, err := json.MarshalIndent(tokenData, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.config.TokenPath, data, FilePermission)
}
