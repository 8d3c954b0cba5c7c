package core

import (
	"time"
)

type Config struct {
	Spotify SpotifyConfig
	YTMusic YTMusicConfig
	Report  ReportConfig
	Server  ServerConfig
	Log     LogConfig
	App     AppConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string
	Market       string
}

type YTMusicConfig struct {
	BaseURL  string
	AuthFile string
}

type ReportConfig struct {
	Enabled  bool
	SMTPHost string
	SMTPPort int
	From     string
	Password string
	To       string
	LogDir   string
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level string
}

type AppConfig struct {
	Concurrency    int
	CallTimeout    time.Duration
	MatchCachePath string
	MatchPolicy    string
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL: "http://localhost:8888/callback",
			TokenPath:   "./spotify_token.json",
			Market:      "SE",
		},
		YTMusic: YTMusicConfig{
			BaseURL: "http://localhost:8080",
		},
		Report: ReportConfig{
			SMTPHost: "smtp-mail.outlook.com",
			SMTPPort: 587,
			LogDir:   "./logs",
		},
		Server: ServerConfig{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		App: AppConfig{
			Concurrency: 8,
			CallTimeout: 30 * time.Second,
			MatchPolicy: "drop",
		},
	}
}
