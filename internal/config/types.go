package config

import (
	"path/filepath"
	"time"
)

const DefaultCookieName = "session"

type Config struct {
	Version int     `yaml:"version"`
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Auth    Auth    `yaml:"auth"`
	Tools   Tools   `yaml:"tools"`
}

type Server struct {
	Addr                     string `yaml:"addr"`
	StaticDir                string `yaml:"static_dir"`
	LogLevel                 string `yaml:"log_level"`
	ReadHeaderTimeoutSeconds int    `yaml:"read_header_timeout_seconds"`
	IdleTimeoutSeconds       int    `yaml:"idle_timeout_seconds"`
	ShutdownTimeoutSeconds   int    `yaml:"shutdown_timeout_seconds"`
}

type Storage struct {
	DownloadRoot         string `yaml:"download_root"`
	AudioDownloadPath    string `yaml:"audio_download_path"`
	RetentionSeconds     int    `yaml:"retention_seconds"`
	SweepIntervalSeconds int    `yaml:"sweep_interval_seconds"`
	SweepShared          bool   `yaml:"sweep_shared"`
}

type Auth struct {
	AdminUsername     string `yaml:"admin_username"`
	AdminPassword     string `yaml:"admin_password"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
	CookieName        string `yaml:"cookie_name"`
	CookieSecure      bool   `yaml:"cookie_secure"`
}

type Tools struct {
	SpotDLBin             string   `yaml:"spotdl_bin"`
	YTDLPBin              string   `yaml:"ytdlp_bin"`
	AudioFormat           string   `yaml:"audio_format"`
	CommandTimeoutSeconds int      `yaml:"command_timeout_seconds"`
	SpotDLExtraArgs       []string `yaml:"spotdl_extra_args,omitempty"`
	YTDLPExtraArgs        []string `yaml:"ytdlp_extra_args,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: 1,
		Server: Server{
			Addr:                     "0.0.0.0:5000",
			StaticDir:                "./web",
			LogLevel:                 "info",
			ReadHeaderTimeoutSeconds: 5,
			IdleTimeoutSeconds:       60,
			ShutdownTimeoutSeconds:   10,
		},
		Storage: Storage{
			DownloadRoot:         "/app/downloads",
			RetentionSeconds:     300,
			SweepIntervalSeconds: 3600,
		},
		Auth: Auth{
			CookieName: DefaultCookieName,
		},
		Tools: Tools{
			SpotDLBin:   "spotdl",
			YTDLPBin:    "yt-dlp",
			AudioFormat: "mp3",
		},
	}
}

// SharedDir is where authenticated downloads are written. It falls back to
// the download root when no separate path is configured.
func (s Storage) SharedDir() string {
	if s.AudioDownloadPath == "" {
		return s.DownloadRoot
	}
	return s.AudioDownloadPath
}

// AnonymousDir returns the per-job directory for a download without a session.
func (s Storage) AnonymousDir(token string) string {
	return filepath.Join(s.DownloadRoot, token)
}

func (s Storage) Retention() time.Duration {
	return time.Duration(s.RetentionSeconds) * time.Second
}

func (s Storage) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

func (t Tools) CommandTimeout() time.Duration {
	return time.Duration(t.CommandTimeoutSeconds) * time.Second
}

func (a Auth) CredentialsConfigured() bool {
	return a.AdminUsername != "" && (a.AdminPassword != "" || a.AdminPasswordHash != "")
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (s Server) ReadHeaderTimeout() time.Duration { return seconds(s.ReadHeaderTimeoutSeconds) }
func (s Server) IdleTimeout() time.Duration       { return seconds(s.IdleTimeoutSeconds) }
func (s Server) ShutdownTimeout() time.Duration   { return seconds(s.ShutdownTimeoutSeconds) }
