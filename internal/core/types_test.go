package core

import (
	"errors"
	"testing"
)

func TestCommand_String(t *testing.T) {
	tests := []struct {
		command  Command
		expected string
	}{
		{CommandGetTop, "get_top"},
		{CommandGetRecommendations, "get_recommendations"},
		{CommandBlendWithFriend, "blend_with_friend"},
		{CommandMigrateLibrary, "migrate_library"},
		{CommandMergePlaylists, "merge_playlists"},
		{Command(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.command.String(); got != tt.expected {
			t.Errorf("Command.String() = %q, want %q", got, tt.expected)
		}
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		input   string
		want    TimeRange
		wantErr bool
	}{
		{"short_term", TimeRangeShort, false},
		{"medium_term", TimeRangeMedium, false},
		{"long_term", TimeRangeLong, false},
		{"yearly", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseTimeRange(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimeRange(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeRange(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseSeedKind(t *testing.T) {
	if kind, err := ParseSeedKind("tracks"); err != nil || kind != SeedTracks {
		t.Errorf("ParseSeedKind(tracks) = %v, %v", kind, err)
	}
	if kind, err := ParseSeedKind("artists"); err != nil || kind != SeedArtists {
		t.Errorf("ParseSeedKind(artists) = %v, %v", kind, err)
	}
	if _, err := ParseSeedKind("albums"); err == nil {
		t.Error("ParseSeedKind(albums) should fail")
	}
}

func TestUserInputError(t *testing.T) {
	err := NewUserInputError("need at least %d tracks", 5)

	if err.Error() != "need at least 5 tracks" {
		t.Errorf("Error() = %q", err.Error())
	}

	var inputErr *UserInputError
	if !errors.As(error(err), &inputErr) {
		t.Error("UserInputError should match errors.As")
	}
}

func TestOperationError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	flow := FlowContext{Username: "me", Command: CommandGetTop}

	err := NewOperationError("failed to fetch top tracks", flow, cause)

	if !errors.Is(error(err), cause) {
		t.Error("OperationError should unwrap to its cause")
	}

	var opErr *OperationError
	if !errors.As(error(err), &opErr) {
		t.Fatal("OperationError should match errors.As")
	}
	if opErr.Flow.Command != CommandGetTop {
		t.Errorf("Flow.Command = %v, want CommandGetTop", opErr.Flow.Command)
	}
}

func TestOperationError_NilCause(t *testing.T) {
	err := NewOperationError("liked count did not grow", FlowContext{Username: "me"}, nil)

	if err.Unwrap() != nil {
		t.Error("Unwrap() should be nil for assertion-style failures")
	}
	if err.Error() == "" {
		t.Error("Error() should describe the failure")
	}
}
