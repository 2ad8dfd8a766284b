package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type LoadOptions struct {
	ExplicitPath string
	WorkingDir   string
	Env          map[string]string
}

type fileConfig struct {
	Version *int        `yaml:"version"`
	Server  fileServer  `yaml:"server"`
	Storage fileStorage `yaml:"storage"`
	Auth    fileAuth    `yaml:"auth"`
	Tools   fileTools   `yaml:"tools"`
}

type fileServer struct {
	Addr                     *string `yaml:"addr"`
	StaticDir                *string `yaml:"static_dir"`
	LogLevel                 *string `yaml:"log_level"`
	ReadHeaderTimeoutSeconds *int    `yaml:"read_header_timeout_seconds"`
	IdleTimeoutSeconds       *int    `yaml:"idle_timeout_seconds"`
	ShutdownTimeoutSeconds   *int    `yaml:"shutdown_timeout_seconds"`
}

type fileStorage struct {
	DownloadRoot         *string `yaml:"download_root"`
	AudioDownloadPath    *string `yaml:"audio_download_path"`
	RetentionSeconds     *int    `yaml:"retention_seconds"`
	SweepIntervalSeconds *int    `yaml:"sweep_interval_seconds"`
	SweepShared          *bool   `yaml:"sweep_shared"`
}

type fileAuth struct {
	AdminUsername     *string `yaml:"admin_username"`
	AdminPassword     *string `yaml:"admin_password"`
	AdminPasswordHash *string `yaml:"admin_password_hash"`
	CookieName        *string `yaml:"cookie_name"`
	CookieSecure      *bool   `yaml:"cookie_secure"`
}

type fileTools struct {
	SpotDLBin             *string   `yaml:"spotdl_bin"`
	YTDLPBin              *string   `yaml:"ytdlp_bin"`
	AudioFormat           *string   `yaml:"audio_format"`
	CommandTimeoutSeconds *int      `yaml:"command_timeout_seconds"`
	SpotDLExtraArgs       *[]string `yaml:"spotdl_extra_args"`
	YTDLPExtraArgs        *[]string `yaml:"ytdlp_extra_args"`
}

func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	cwd := opts.WorkingDir
	if strings.TrimSpace(cwd) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}

	env := opts.Env
	if env == nil {
		env = osEnvMap()
	}

	if explicit := strings.TrimSpace(opts.ExplicitPath); explicit != "" {
		if err := mergeFile(&cfg, explicit, true); err != nil {
			return Config{}, err
		}
	} else {
		userPath, err := UserConfigPath()
		if err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return Config{}, err
		}

		if err := mergeFile(&cfg, ProjectConfigPath(cwd), false); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(payload, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Version != nil {
		cfg.Version = *fc.Version
	}

	setString(&cfg.Server.Addr, fc.Server.Addr)
	setString(&cfg.Server.StaticDir, fc.Server.StaticDir)
	setString(&cfg.Server.LogLevel, fc.Server.LogLevel)
	setInt(&cfg.Server.ReadHeaderTimeoutSeconds, fc.Server.ReadHeaderTimeoutSeconds)
	setInt(&cfg.Server.IdleTimeoutSeconds, fc.Server.IdleTimeoutSeconds)
	setInt(&cfg.Server.ShutdownTimeoutSeconds, fc.Server.ShutdownTimeoutSeconds)

	setString(&cfg.Storage.DownloadRoot, fc.Storage.DownloadRoot)
	setString(&cfg.Storage.AudioDownloadPath, fc.Storage.AudioDownloadPath)
	setInt(&cfg.Storage.RetentionSeconds, fc.Storage.RetentionSeconds)
	setInt(&cfg.Storage.SweepIntervalSeconds, fc.Storage.SweepIntervalSeconds)
	setBool(&cfg.Storage.SweepShared, fc.Storage.SweepShared)

	setString(&cfg.Auth.AdminUsername, fc.Auth.AdminUsername)
	setString(&cfg.Auth.AdminPassword, fc.Auth.AdminPassword)
	setString(&cfg.Auth.AdminPasswordHash, fc.Auth.AdminPasswordHash)
	setString(&cfg.Auth.CookieName, fc.Auth.CookieName)
	setBool(&cfg.Auth.CookieSecure, fc.Auth.CookieSecure)

	setString(&cfg.Tools.SpotDLBin, fc.Tools.SpotDLBin)
	setString(&cfg.Tools.YTDLPBin, fc.Tools.YTDLPBin)
	setString(&cfg.Tools.AudioFormat, fc.Tools.AudioFormat)
	setInt(&cfg.Tools.CommandTimeoutSeconds, fc.Tools.CommandTimeoutSeconds)
	if fc.Tools.SpotDLExtraArgs != nil {
		cfg.Tools.SpotDLExtraArgs = append([]string{}, (*fc.Tools.SpotDLExtraArgs)...)
	}
	if fc.Tools.YTDLPExtraArgs != nil {
		cfg.Tools.YTDLPExtraArgs = append([]string{}, (*fc.Tools.YTDLPExtraArgs)...)
	}

	return nil
}

// applyEnvOverrides honors the historical AUDIO_DOWNLOAD_PATH / ADMIN_*
// variables alongside the SOUNDGRAB_* ones.
func applyEnvOverrides(cfg *Config, env map[string]string) error {
	stringVars := []struct {
		key string
		dst *string
	}{
		{"SOUNDGRAB_ADDR", &cfg.Server.Addr},
		{"SOUNDGRAB_STATIC_DIR", &cfg.Server.StaticDir},
		{"SOUNDGRAB_LOG_LEVEL", &cfg.Server.LogLevel},
		{"SOUNDGRAB_DOWNLOAD_ROOT", &cfg.Storage.DownloadRoot},
		{"AUDIO_DOWNLOAD_PATH", &cfg.Storage.AudioDownloadPath},
		{"ADMIN_USERNAME", &cfg.Auth.AdminUsername},
		{"ADMIN_PASSWORD", &cfg.Auth.AdminPassword},
		{"ADMIN_PASSWORD_HASH", &cfg.Auth.AdminPasswordHash},
		{"SOUNDGRAB_SPOTDL_BIN", &cfg.Tools.SpotDLBin},
		{"SOUNDGRAB_YTDLP_BIN", &cfg.Tools.YTDLPBin},
		{"SOUNDGRAB_AUDIO_FORMAT", &cfg.Tools.AudioFormat},
	}
	for _, v := range stringVars {
		if value := strings.TrimSpace(env[v.key]); value != "" {
			*v.dst = value
		}
	}

	intVars := []struct {
		key string
		dst *int
	}{
		{"SOUNDGRAB_RETENTION_SECONDS", &cfg.Storage.RetentionSeconds},
		{"SOUNDGRAB_SWEEP_INTERVAL_SECONDS", &cfg.Storage.SweepIntervalSeconds},
		{"SOUNDGRAB_COMMAND_TIMEOUT_SECONDS", &cfg.Tools.CommandTimeoutSeconds},
	}
	for _, v := range intVars {
		value := strings.TrimSpace(env[v.key])
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", v.key, value, err)
		}
		*v.dst = parsed
	}

	boolVars := []struct {
		key string
		dst *bool
	}{
		{"SOUNDGRAB_SWEEP_SHARED", &cfg.Storage.SweepShared},
		{"SOUNDGRAB_COOKIE_SECURE", &cfg.Auth.CookieSecure},
	}
	for _, v := range boolVars {
		value := strings.TrimSpace(env[v.key])
		if value == "" {
			continue
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", v.key, value, err)
		}
		*v.dst = parsed
	}
	return nil
}

func normalize(cfg *Config) error {
	root, err := ExpandPath(cfg.Storage.DownloadRoot)
	if err != nil {
		return err
	}
	cfg.Storage.DownloadRoot = root

	shared, err := ExpandPath(cfg.Storage.AudioDownloadPath)
	if err != nil {
		return err
	}
	cfg.Storage.AudioDownloadPath = shared

	static, err := ExpandPath(cfg.Server.StaticDir)
	if err != nil {
		return err
	}
	cfg.Server.StaticDir = static

	if strings.TrimSpace(cfg.Auth.CookieName) == "" {
		cfg.Auth.CookieName = DefaultCookieName
	}
	cfg.Server.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Server.LogLevel))
	cfg.Tools.AudioFormat = strings.ToLower(strings.TrimSpace(cfg.Tools.AudioFormat))
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func osEnvMap() map[string]string {
	result := map[string]string{}
	for _, pair := range os.Environ() {
		pieces := strings.SplitN(pair, "=", 2)
		if len(pieces) == 2 {
			result[pieces[0]] = pieces[1]
		}
	}
	return result
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}
	return nil
}
