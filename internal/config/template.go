package config

import "fmt"

func DefaultTemplate() string {
	defaults := DefaultConfig()
	return fmt.Sprintf(`version: 1
server:
  addr: %q
  static_dir: %q
  log_level: %q
storage:
  download_root: %q
  # Authenticated downloads land here; empty means download_root.
  audio_download_path: ""
  retention_seconds: %d
  sweep_interval_seconds: %d
  sweep_shared: false
auth:
  # Set ADMIN_USERNAME and ADMIN_PASSWORD (or ADMIN_PASSWORD_HASH) in the
  # environment instead of committing them here.
  admin_username: ""
  cookie_name: %q
  cookie_secure: false
tools:
  spotdl_bin: %q
  ytdlp_bin: %q
  audio_format: %q
  command_timeout_seconds: 0
  spotdl_extra_args: []
  ytdlp_extra_args: []
`,
		defaults.Server.Addr,
		defaults.Server.StaticDir,
		defaults.Server.LogLevel,
		defaults.Storage.DownloadRoot,
		defaults.Storage.RetentionSeconds,
		defaults.Storage.SweepIntervalSeconds,
		defaults.Auth.CookieName,
		defaults.Tools.SpotDLBin,
		defaults.Tools.YTDLPBin,
		defaults.Tools.AudioFormat,
	)
}
