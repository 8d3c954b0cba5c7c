// Package ytmusic implements the migration source catalog over a
// ytmusicapi HTTP proxy. The proxy wraps the YouTube Music private API;
// this client only needs library playlist listing and playlist tracks.
package ytmusic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"blendr/internal/core"
)

// playlistFetchLimit caps how many tracks one playlist fetch returns.
const playlistFetchLimit = 200

type Client struct {
	config     *core.YTMusicConfig
	httpClient *http.Client
	logger     *zap.Logger
}

type libraryPlaylist struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type playlistArtist struct {
	Name string `json:"name"`
}

type playlistTrack struct {
	VideoID string           `json:"videoId"`
	Title   string           `json:"title"`
	Artists []playlistArtist `json:"artists"`
}

type playlistResponse struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Tracks []playlistTrack `json:"tracks"`
}

func NewClient(config *core.YTMusicConfig, logger *zap.Logger) *Client {
	return &Client{
		config:     config,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

// LibraryPlaylistByName finds a library playlist by exact title and
// returns its tracks as catalog-scoped refs.
func (c *Client) LibraryPlaylistByName(ctx context.Context, name string) ([]core.TrackRef, error) {
	var library []libraryPlaylist
	if err := c.get(ctx, "/library/playlists", &library); err != nil {
		return nil, fmt.Errorf("failed to list library playlists: %w", err)
	}

	var playlistID string
	for _, p := range library {
		if p.Title == name {
			playlistID = p.ID
			break
		}
	}
	if playlistID == "" {
		return nil, fmt.Errorf("playlist %q not found in library", name)
	}

	var playlist playlistResponse
	endpoint := fmt.Sprintf("/playlists/%s?limit=%d", url.PathEscape(playlistID), playlistFetchLimit)
	if err := c.get(ctx, endpoint, &playlist); err != nil {
		return nil, fmt.Errorf("failed to fetch playlist %s: %w", playlistID, err)
	}

	tracks := make([]core.TrackRef, 0, len(playlist.Tracks))
	for _, t := range playlist.Tracks {
		ref := core.TrackRef{ID: t.VideoID, Title: t.Title}
		if len(t.Artists) > 0 {
			ref.Artist = t.Artists[0].Name
		}
		tracks = append(tracks, ref)
	}

	c.logger.Info("Fetched source playlist",
		zap.String("name", name),
		zap.Int("tracks", len(tracks)))

	return tracks, nil
}

func (c *Client) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.config.AuthFile != "" {
		req.Header.Set("X-Auth-File", c.config.AuthFile)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Detail != "" {
			return fmt.Errorf("proxy returned %d: %s", resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("proxy returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
