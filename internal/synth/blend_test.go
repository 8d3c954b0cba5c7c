package synth

import (
	"context"
	"errors"
	"slices"
	"testing"

	"blendr/internal/core"
)

// blendFixture has no tracks shared between the two playlists, so the
// unique lists equal the playlists themselves.
func blendFixture() *fakeCatalog {
	catalog := newFakeCatalog()
	catalog.playlists = []core.PlaylistRef{
		{ID: "fp", OwnerID: "friend1", Name: "road trip"},
		{ID: "mp", OwnerID: "me", Name: "mine"},
	}
	catalog.items["fp"] = []core.TrackRef{{ID: "f1"}, {ID: "f2"}, {ID: "f3"}}
	catalog.items["mp"] = []core.TrackRef{{ID: "m1"}, {ID: "m2"}}
	catalog.recs = trackRange("r", 20)
	return catalog
}

func blendRequest(size int) core.BlendRequest {
	return core.BlendRequest{
		FriendID:        "friend1",
		FriendsPlaylist: "road trip",
		MyPlaylist:      "mine",
		TargetSize:      size,
	}
}

func TestSynthesizer_BlendWithFriend_InterleavesAndPads(t *testing.T) {
	catalog := blendFixture()
	s := newTestSynthesizer(catalog)

	playlist, size, err := s.BlendWithFriend(context.Background(), blendRequest(10))
	if err != nil {
		t.Fatalf("BlendWithFriend() failed: %v", err)
	}

	if playlist.Name != "blend_friend1_2024-06-01" {
		t.Errorf("playlist name = %q, want blend_friend1_2024-06-01", playlist.Name)
	}

	got := catalog.appendedIDs(playlist.ID)
	if len(got) != 10 {
		t.Fatalf("blend has %d tracks, want 10: %v", len(got), got)
	}
	if size != 10 {
		t.Errorf("reported size = %d, want 10", size)
	}

	// The unique tracks interleave friend-first before recommendation
	// padding.
	wantPrefix := []string{"f1", "m1", "f2", "m2"}
	if !slices.Equal(got[:4], wantPrefix) {
		t.Errorf("blend prefix = %v, want %v", got[:4], wantPrefix)
	}
	if slices.Contains(got, "f3") {
		t.Error("unpaired friend track must not survive interleaving")
	}

	if len(catalog.recCalls) != 1 {
		t.Fatalf("expected 1 padding call, got %d", len(catalog.recCalls))
	}
	call := catalog.recCalls[0]
	if call.limit != 6 {
		t.Errorf("padding limit = %d, want 6", call.limit)
	}
	if !slices.Equal(call.seeds.Tracks, []string{"f1", "m1", "f2"}) {
		t.Errorf("padding seeds = %v, want the first 3 blended tracks", call.seeds.Tracks)
	}
}

func TestSynthesizer_BlendWithFriend_SharedTrackStaysOnOneSide(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.playlists = []core.PlaylistRef{
		{ID: "fp", OwnerID: "friend1", Name: "road trip"},
		{ID: "mp", OwnerID: "me", Name: "mine"},
	}
	// The first shared track leaves the friend's side but stays on mine.
	catalog.items["fp"] = []core.TrackRef{{ID: "f1"}, {ID: "f2"}, {ID: "f3"}, {ID: "shared"}}
	catalog.items["mp"] = []core.TrackRef{{ID: "m1"}, {ID: "m2"}, {ID: "shared"}}
	s := newTestSynthesizer(catalog)

	playlist, size, err := s.BlendWithFriend(context.Background(), blendRequest(6))
	if err != nil {
		t.Fatalf("BlendWithFriend() failed: %v", err)
	}

	got := catalog.appendedIDs(playlist.ID)
	want := []string{"f1", "m1", "f2", "m2", "f3", "shared"}
	if !slices.Equal(got, want) {
		t.Errorf("blend = %v, want %v", got, want)
	}
	if size != 6 {
		t.Errorf("reported size = %d, want 6", size)
	}
	if len(catalog.recCalls) != 0 {
		t.Errorf("no padding call expected, got %d", len(catalog.recCalls))
	}
}

func TestSynthesizer_BlendWithFriend_NoPaddingWhenFull(t *testing.T) {
	catalog := blendFixture()
	s := newTestSynthesizer(catalog)

	playlist, size, err := s.BlendWithFriend(context.Background(), blendRequest(3))
	if err != nil {
		t.Fatalf("BlendWithFriend() failed: %v", err)
	}

	got := catalog.appendedIDs(playlist.ID)
	if len(got) != 3 {
		t.Fatalf("blend has %d tracks, want the target size 3", len(got))
	}
	if size != 3 {
		t.Errorf("reported size = %d, want 3", size)
	}
	if len(catalog.recCalls) != 0 {
		t.Errorf("no padding call expected, got %d", len(catalog.recCalls))
	}
}

func TestSynthesizer_BlendWithFriend_PaddingCappedAtVendorLimit(t *testing.T) {
	catalog := blendFixture()
	s := newTestSynthesizer(catalog)

	_, size, err := s.BlendWithFriend(context.Background(), blendRequest(150))
	if err != nil {
		t.Fatalf("BlendWithFriend() failed: %v", err)
	}

	if len(catalog.recCalls) != 1 {
		t.Fatalf("expected 1 padding call, got %d", len(catalog.recCalls))
	}
	// 146 tracks are missing but one recommendations call carries at
	// most 100; the playlist simply comes up short.
	if got := catalog.recCalls[0].limit; got != 100 {
		t.Errorf("padding limit = %d, want 100", got)
	}
	if size != 24 {
		t.Errorf("reported size = %d, want 4 interleaved + 20 available recommendations", size)
	}
}

func TestSynthesizer_BlendWithFriend_RerunMergesInsteadOfDuplicating(t *testing.T) {
	catalog := blendFixture()
	catalog.playlists = append(catalog.playlists,
		core.PlaylistRef{ID: "blendpl", OwnerID: "me", Name: "blend_friend1_2024-06-01"})
	catalog.items["blendpl"] = []core.TrackRef{{ID: "f1"}, {ID: "m1"}, {ID: "f2"}, {ID: "m2"}}
	s := newTestSynthesizer(catalog)

	playlist, size, err := s.BlendWithFriend(context.Background(), blendRequest(4))
	if err != nil {
		t.Fatalf("BlendWithFriend() failed: %v", err)
	}

	if playlist.ID != "blendpl" {
		t.Errorf("playlist ID = %q, want the existing blend playlist", playlist.ID)
	}
	if size != 4 {
		t.Errorf("reported size = %d, want 4", size)
	}
	if len(catalog.created) != 0 {
		t.Errorf("rerun should not create a playlist, created %d", len(catalog.created))
	}
	if len(catalog.appends["blendpl"]) != 0 {
		t.Errorf("rerun with identical contents should append nothing, appended %v",
			catalog.appendedIDs("blendpl"))
	}
}

func TestSynthesizer_BlendWithFriend_NothingUniqueIsUserInputError(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.playlists = []core.PlaylistRef{
		{ID: "fp", OwnerID: "friend1", Name: "road trip"},
		{ID: "mp", OwnerID: "me", Name: "mine"},
	}
	// The one shared track leaves the friend's side, emptying it; the
	// interleave of an empty list with anything is empty.
	catalog.items["fp"] = []core.TrackRef{{ID: "s1"}}
	catalog.items["mp"] = []core.TrackRef{{ID: "s1"}}
	s := newTestSynthesizer(catalog)

	_, _, err := s.BlendWithFriend(context.Background(), blendRequest(10))

	var inputErr *core.UserInputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("BlendWithFriend() error = %v, want a UserInputError", err)
	}
}

func TestSynthesizer_BlendWithFriend_MissingFriendPlaylist(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.playlists = []core.PlaylistRef{
		{ID: "mp", OwnerID: "me", Name: "mine"},
	}
	s := newTestSynthesizer(catalog)

	_, _, err := s.BlendWithFriend(context.Background(), blendRequest(10))

	var opErr *core.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("BlendWithFriend() error = %v, want an OperationError", err)
	}
	if opErr.Flow.Friend != "friend1" {
		t.Errorf("error flow friend = %q, want friend1", opErr.Flow.Friend)
	}
}
