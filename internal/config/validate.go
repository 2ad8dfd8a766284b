package config

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	cookieNamePattern  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	audioFormatPattern = regexp.MustCompile(`^[a-z0-9]+$`)
)

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

func Validate(cfg Config) error {
	problems := []string{}

	if cfg.Version != 1 {
		problems = append(problems, "version must be 1")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		problems = append(problems, "server.addr must be set")
	} else if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		problems = append(problems, fmt.Sprintf("server.addr is invalid: %v", err))
	}
	switch cfg.Server.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("server.log_level %q is not one of debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ReadHeaderTimeoutSeconds <= 0 {
		problems = append(problems, "server.read_header_timeout_seconds must be > 0")
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		problems = append(problems, "server.shutdown_timeout_seconds must be > 0")
	}

	if strings.TrimSpace(cfg.Storage.DownloadRoot) == "" {
		problems = append(problems, "storage.download_root must be set")
	} else if !filepath.IsAbs(cfg.Storage.DownloadRoot) {
		problems = append(problems, "storage.download_root must resolve to an absolute path")
	}
	if cfg.Storage.AudioDownloadPath != "" && !filepath.IsAbs(cfg.Storage.AudioDownloadPath) {
		problems = append(problems, "storage.audio_download_path must resolve to an absolute path")
	}
	if cfg.Storage.RetentionSeconds <= 0 {
		problems = append(problems, "storage.retention_seconds must be > 0")
	}
	if cfg.Storage.SweepIntervalSeconds <= 0 {
		problems = append(problems, "storage.sweep_interval_seconds must be > 0")
	}

	if !cookieNamePattern.MatchString(cfg.Auth.CookieName) {
		problems = append(problems, fmt.Sprintf("auth.cookie_name %q has invalid format", cfg.Auth.CookieName))
	}
	if cfg.Auth.AdminPassword != "" && cfg.Auth.AdminPasswordHash != "" {
		problems = append(problems, "auth.admin_password and auth.admin_password_hash are mutually exclusive")
	}
	if cfg.Auth.AdminPasswordHash != "" && !strings.HasPrefix(cfg.Auth.AdminPasswordHash, "$argon2id$") {
		problems = append(problems, "auth.admin_password_hash must be an argon2id PHC string")
	}

	if strings.TrimSpace(cfg.Tools.SpotDLBin) == "" {
		problems = append(problems, "tools.spotdl_bin must be set")
	}
	if strings.TrimSpace(cfg.Tools.YTDLPBin) == "" {
		problems = append(problems, "tools.ytdlp_bin must be set")
	}
	if !audioFormatPattern.MatchString(cfg.Tools.AudioFormat) {
		problems = append(problems, fmt.Sprintf("tools.audio_format %q has invalid format", cfg.Tools.AudioFormat))
	}
	if cfg.Tools.CommandTimeoutSeconds < 0 {
		problems = append(problems, "tools.command_timeout_seconds must be >= 0")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
