package synth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"blendr/internal/core"
	"blendr/internal/reconcile"
	"blendr/internal/store"
)

// BlendWithFriend builds a playlist interleaving the tracks unique to
// the friend's playlist and the tracks unique to the current user's
// playlist, padded with recommendations up to the target size. The
// result is upserted into blend_<friend>_<date>: re-running the same
// blend the same day merges instead of duplicating. Returns the
// playlist and its final track count.
func (s *Synthesizer) BlendWithFriend(ctx context.Context, req core.BlendRequest) (*core.PlaylistRef, int, error) {
	me, err := s.catalog.CurrentUser(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve current user: %w", err)
	}

	flow := core.FlowContext{
		Username: me,
		Command:  core.CommandBlendWithFriend,
		Friend:   req.FriendID,
	}

	friendsPlaylist, err := s.playlistByName(ctx, req.FriendID, req.FriendsPlaylist)
	if err != nil {
		return nil, 0, core.NewOperationError("failed to list friend's playlists", flow, err)
	}
	if friendsPlaylist == nil {
		return nil, 0, core.NewOperationError(
			fmt.Sprintf("couldn't find playlist %q for user %s", req.FriendsPlaylist, req.FriendID), flow, nil)
	}

	myPlaylist, err := s.playlistByName(ctx, "", req.MyPlaylist)
	if err != nil {
		return nil, 0, core.NewOperationError("failed to list playlists", flow, err)
	}
	if myPlaylist == nil {
		return nil, 0, core.NewOperationError(
			fmt.Sprintf("couldn't find playlist %q for user %s", req.MyPlaylist, me), flow, nil)
	}

	friendsTracks, err := s.fetchAllPlaylistItems(ctx, friendsPlaylist.ID)
	if err != nil {
		return nil, 0, core.NewOperationError("failed to fetch friend's playlist items", flow, err)
	}
	myTracks, err := s.fetchAllPlaylistItems(ctx, myPlaylist.ID)
	if err != nil {
		return nil, 0, core.NewOperationError("failed to fetch playlist items", flow, err)
	}

	friendsUnique, myUnique := reconcile.SplitUnique(friendsTracks, myTracks)
	blended := reconcile.Interleave(friendsUnique, myUnique)

	s.logger.Info("Computed blend core",
		zap.Int("friendsUnique", len(friendsUnique)),
		zap.Int("myUnique", len(myUnique)),
		zap.Int("interleaved", len(blended)))

	if len(blended) == 0 {
		return nil, 0, core.NewUserInputError("playlists %q and %q have no unique tracks to blend", req.FriendsPlaylist, req.MyPlaylist)
	}

	if len(blended) < req.TargetSize {
		seeds := core.SeedSpec{Tracks: blended[:min(blendSeedCount, len(blended))]}

		// The vendor caps one recommendations call at 100; a shortfall
		// past that stays a shortfall.
		recs, err := s.catalog.Recommendations(ctx, seeds,
			min(recommendationMaxLimit, req.TargetSize-len(blended)), s.market)
		if err != nil {
			return nil, 0, core.NewOperationError("failed to fetch blend padding", flow, err)
		}
		blended = append(blended, trackIDs(recs)...)
	}

	if len(blended) > req.TargetSize {
		blended = blended[:req.TargetSize]
	}

	name := fmt.Sprintf("blend_%s_%s", req.FriendID, s.today())
	flow.PlaylistName = name

	description := fmt.Sprintf("Generated by blendr based on %s's %s and %s's %s",
		req.FriendID, req.FriendsPlaylist, me, req.MyPlaylist)

	playlist, size, err := s.upsertByName(ctx, me, name, description, blended)
	if err != nil {
		return nil, 0, core.NewOperationError("failed to save blend playlist", flow, err)
	}

	return playlist, size, nil
}

// upsertByName creates the named playlist with all tracks, or, when a
// playlist of that name already exists for the owner, appends only the
// tracks not already present. Input order is preserved for whatever
// gets appended. Returns the playlist's resulting track count.
func (s *Synthesizer) upsertByName(ctx context.Context, ownerID, name, description string, ids []string) (*core.PlaylistRef, int, error) {
	existing, err := s.playlistByName(ctx, "", name)
	if err != nil {
		return nil, 0, err
	}

	if existing == nil {
		playlist, err := s.createWithTracks(ctx, ownerID, name, description, ids)
		if err != nil {
			return nil, 0, err
		}
		return playlist, len(ids), nil
	}

	current, err := s.fetchAllPlaylistItems(ctx, existing.ID)
	if err != nil {
		return nil, 0, err
	}

	index := store.NewMembershipIndex(membershipCapacity, membershipFPRate)
	index.Seed(current)

	toAdd := index.MissingFrom(ids)
	if len(toAdd) == 0 {
		s.logger.Info("Playlist already up to date", zap.String("name", name))
		return existing, len(current), nil
	}

	if err := s.appendChunked(ctx, existing.ID, toAdd); err != nil {
		return nil, 0, err
	}

	s.logger.Info("Merged into existing playlist",
		zap.String("name", name),
		zap.Int("appended", len(toAdd)),
		zap.Int("skipped", len(ids)-len(toAdd)))

	return existing, len(current) + len(toAdd), nil
}
