// Package main provides the blendr CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"blendr/internal/core"
	httpserver "blendr/internal/http"
	"blendr/internal/match"
	"blendr/internal/report"
	"blendr/internal/spotify"
	"blendr/internal/store"
	"blendr/internal/synth"
	"blendr/internal/ytmusic"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "blendr",
	Short: "blendr - playlist generation, blending and library migration",
	Long: `blendr builds Spotify playlists from your listening history, blends
two users' playlists into one, and migrates a YouTube Music library
into Spotify likes.`,
	SilenceUsage: true,
}

var getTopCmd = &cobra.Command{
	Use:   "get_top",
	Short: "Build a playlist from your top tracks",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runFlow(core.CommandGetTop)
	},
}

var getRecommendationsCmd = &cobra.Command{
	Use:   "get_recommendations",
	Short: "Build a playlist from seeded recommendations",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runFlow(core.CommandGetRecommendations)
	},
}

var blendCmd = &cobra.Command{
	Use:   "blend_with_friend",
	Short: "Blend your playlist with a friend's",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runFlow(core.CommandBlendWithFriend)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate_library",
	Short: "Like a YouTube Music playlist's tracks on Spotify",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runFlow(core.CommandMigrateLibrary)
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge_playlists",
	Short: "Union two playlists into a named playlist",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runFlow(core.CommandMergePlaylists)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("username", "", "user to be logged in as")
	rootCmd.PersistentFlags().String("time-range", "short_term", "time range for top tracks (short_term, medium_term, long_term)")
	rootCmd.PersistentFlags().Int("limit", 50, "amount of tracks in the final playlist")
	rootCmd.PersistentFlags().String("seed-type", "tracks", "recommendation seeds (tracks or artists)")
	rootCmd.PersistentFlags().String("friend", "", "username of the user to blend with")
	rootCmd.PersistentFlags().String("friends-playlist", "", "name of the friend's playlist to blend")
	rootCmd.PersistentFlags().String("my-playlist", "", "name of your playlist to blend")
	rootCmd.PersistentFlags().String("source-playlist", "", "name of the source-catalog playlist to migrate")
	rootCmd.PersistentFlags().String("playlist-1", "", "first playlist ID to merge")
	rootCmd.PersistentFlags().String("playlist-2", "", "second playlist ID to merge")
	rootCmd.PersistentFlags().String("playlist-name", "", "name of the merged playlist")
	rootCmd.PersistentFlags().String("market", "SE", "market code for recommendations")
	rootCmd.PersistentFlags().Int("concurrency", 8, "concurrent catalog lookups per batch")
	rootCmd.PersistentFlags().String("match-policy", "drop", "unmatched track policy (drop or fail)")
	rootCmd.PersistentFlags().String("match-cache", "", "path to the sqlite match cache (empty disables)")
	rootCmd.PersistentFlags().String("metrics-addr", "", "diagnostics server address (empty disables)")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().String("spotify-redirect-url", "", "Spotify OAuth redirect URL")
	rootCmd.PersistentFlags().String("spotify-token-path", "", "path to the saved Spotify token")
	rootCmd.PersistentFlags().String("ytmusic-base-url", "", "ytmusicapi proxy base URL")
	rootCmd.PersistentFlags().String("ytmusic-auth-file", "", "ytmusicapi auth file path")
	rootCmd.PersistentFlags().Bool("report-enabled", false, "send crash reports by mail")
	rootCmd.PersistentFlags().String("report-from", "", "crash report sender address")
	rootCmd.PersistentFlags().String("report-password", "", "crash report sender password")
	rootCmd.PersistentFlags().String("report-to", "", "crash report recipient address")
	rootCmd.PersistentFlags().String("report-log-dir", "", "log directory attached to crash reports")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(getTopCmd, getRecommendationsCmd, blendCmd, migrateCmd, mergeCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("BLENDR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	if v := viper.GetString("spotify-redirect-url"); v != "" {
		cfg.Spotify.RedirectURL = v
	}
	if v := viper.GetString("spotify-token-path"); v != "" {
		cfg.Spotify.TokenPath = v
	}
	if v := viper.GetString("market"); v != "" {
		cfg.Spotify.Market = v
	}

	if v := viper.GetString("ytmusic-base-url"); v != "" {
		cfg.YTMusic.BaseURL = v
	}
	cfg.YTMusic.AuthFile = viper.GetString("ytmusic-auth-file")

	cfg.Report.Enabled = viper.GetBool("report-enabled")
	cfg.Report.From = viper.GetString("report-from")
	cfg.Report.Password = viper.GetString("report-password")
	cfg.Report.To = viper.GetString("report-to")
	if v := viper.GetString("report-log-dir"); v != "" {
		cfg.Report.LogDir = v
	}

	cfg.Server.Addr = viper.GetString("metrics-addr")
	cfg.Log.Level = viper.GetString("log-level")

	if v := viper.GetInt("concurrency"); v > 0 {
		cfg.App.Concurrency = v
	}
	cfg.App.MatchCachePath = viper.GetString("match-cache")
	if v := viper.GetString("match-policy"); v != "" {
		cfg.App.MatchPolicy = v
	}

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runFlow(command core.Command) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := validateConfig(command); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	spotifyClient := spotify.NewClient(&config.Spotify, config.App.CallTimeout, logger.Named("spotify"))
	if err := spotifyClient.Authenticate(ctx); err != nil {
		return fmt.Errorf("failed to authenticate with Spotify: %w", err)
	}

	var reporter core.Reporter = report.NoopReporter{}
	if config.Report.Enabled {
		reporter = report.NewMailReporter(&config.Report, logger.Named("report"))
	}

	var server *httpserver.Server
	if config.Server.Addr != "" {
		server = httpserver.NewServer(&config.Server, logger.Named("http"))
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Warn("Diagnostics server stopped", zap.Error(err))
			}
		}()
	}

	synthesizer, closeCache, err := buildSynthesizer(command, spotifyClient)
	if err != nil {
		return err
	}
	defer closeCache()

	start := time.Now()
	playlist, count, err := dispatch(ctx, command, synthesizer)
	elapsed := time.Since(start)

	if err != nil {
		if server != nil {
			server.ObserveFlow(command, "error", elapsed)
		}

		var inputErr *core.UserInputError
		if errors.As(err, &inputErr) {
			return err
		}

		reporter.Report(ctx, flowContextOf(command, err), err)
		return err
	}

	if server != nil {
		server.ObserveFlow(command, "ok", elapsed)
	}

	if playlist != nil {
		if server != nil {
			server.SetLastPlaylistSize(count)
		}
		fmt.Println(playlist.Name)
	} else {
		fmt.Printf("liked %d tracks\n", count)
	}

	return nil
}

func buildSynthesizer(command core.Command, spotifyClient *spotify.Client) (*synth.Synthesizer, func(), error) {
	closeCache := func() {}

	var source core.SourceCatalog
	var matcher *match.Matcher

	if command == core.CommandMigrateLibrary {
		policy, err := match.ParsePolicy(config.App.MatchPolicy)
		if err != nil {
			return nil, nil, err
		}

		var cache *store.MatchCache
		if config.App.MatchCachePath != "" {
			cache, err = store.OpenMatchCache(config.App.MatchCachePath)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open match cache: %w", err)
			}
			closeCache = func() {
				if closeErr := cache.Close(); closeErr != nil {
					logger.Warn("Failed to close match cache", zap.Error(closeErr))
				}
			}
		}

		source = ytmusic.NewClient(&config.YTMusic, logger.Named("ytmusic"))
		matcher = match.NewMatcher(spotifyClient, policy, config.App.Concurrency, cache, logger.Named("match"))
	}

	synthesizer := synth.NewSynthesizer(spotifyClient, source, matcher, config.Spotify.Market, logger.Named("synth"))
	return synthesizer, closeCache, nil
}

func dispatch(ctx context.Context, command core.Command, synthesizer *synth.Synthesizer) (*core.PlaylistRef, int, error) {
	timeRange, err := core.ParseTimeRange(viper.GetString("time-range"))
	if err != nil {
		return nil, 0, err
	}
	limit := viper.GetInt("limit")

	switch command {
	case core.CommandGetTop:
		return synthesizer.GetTop(ctx, timeRange, limit)

	case core.CommandGetRecommendations:
		seedKind, err := core.ParseSeedKind(viper.GetString("seed-type"))
		if err != nil {
			return nil, 0, err
		}
		return synthesizer.GetRecommendations(ctx, timeRange, seedKind, limit)

	case core.CommandBlendWithFriend:
		return synthesizer.BlendWithFriend(ctx, core.BlendRequest{
			FriendID:        viper.GetString("friend"),
			FriendsPlaylist: viper.GetString("friends-playlist"),
			MyPlaylist:      viper.GetString("my-playlist"),
			TargetSize:      limit,
		})

	case core.CommandMigrateLibrary:
		liked, err := synthesizer.MigrateLibrary(ctx, viper.GetString("source-playlist"), config.App.Concurrency)
		return nil, liked, err

	case core.CommandMergePlaylists:
		return synthesizer.MergePlaylists(ctx,
			viper.GetString("playlist-1"), viper.GetString("playlist-2"), viper.GetString("playlist-name"))
	}

	return nil, 0, fmt.Errorf("unknown command %s", command)
}

func flowContextOf(command core.Command, err error) core.FlowContext {
	var opErr *core.OperationError
	if errors.As(err, &opErr) {
		return opErr.Flow
	}

	return core.FlowContext{
		Username: viper.GetString("username"),
		Command:  command,
	}
}

func validateConfig(command core.Command) error {
	if config.Spotify.ClientID == "" {
		return fmt.Errorf("spotify client ID is required")
	}

	if config.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client secret is required")
	}

	switch command {
	case core.CommandBlendWithFriend:
		if viper.GetString("friend") == "" {
			return fmt.Errorf("--friend is required for blend_with_friend")
		}
		if viper.GetString("friends-playlist") == "" {
			return fmt.Errorf("--friends-playlist is required for blend_with_friend")
		}
		if viper.GetString("my-playlist") == "" {
			return fmt.Errorf("--my-playlist is required for blend_with_friend")
		}
	case core.CommandMigrateLibrary:
		if viper.GetString("source-playlist") == "" {
			return fmt.Errorf("--source-playlist is required for migrate_library")
		}
	case core.CommandMergePlaylists:
		if viper.GetString("playlist-1") == "" || viper.GetString("playlist-2") == "" {
			return fmt.Errorf("--playlist-1 and --playlist-2 are required for merge_playlists")
		}
		if viper.GetString("playlist-name") == "" {
			return fmt.Errorf("--playlist-name is required for merge_playlists")
		}
	}

	if config.Report.Enabled {
		if config.Report.From == "" || config.Report.To == "" {
			return fmt.Errorf("report sender and recipient are required when reporting is enabled")
		}
	}

	return nil
}
