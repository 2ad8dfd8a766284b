package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jaa/soundgrab/internal/config"
	"github.com/jaa/soundgrab/internal/engine"
	"github.com/jaa/soundgrab/internal/fileops"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type Check struct {
	Severity Severity `json:"severity"`
	Name     string   `json:"name"`
	Message  string   `json:"message"`
}

type Report struct {
	Checks []Check `json:"checks"`
}

func (r Report) HasErrors() bool {
	return r.ErrorCount() > 0
}

func (r Report) ErrorCount() int {
	count := 0
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			count++
		}
	}
	return count
}

func (r *Report) add(severity Severity, name string, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Severity: severity, Name: name, Message: fmt.Sprintf(format, args...)})
}

// Checker inspects the downloader binaries and directories the service
// depends on. Every check is a field so tests can replace it.
type Checker struct {
	LookPath      func(string) (string, error)
	ReadVersion   func(context.Context, string) (string, error)
	CheckWritable func(string) error
	Stat          func(string) (os.FileInfo, error)
	ReadFile      func(string) ([]byte, error)
	HomeDir       func() (string, error)
	// KnownBad maps an adapter kind to versions that must not be used.
	KnownBad map[string]map[string]string
}

func NewChecker() *Checker {
	return &Checker{
		LookPath:      exec.LookPath,
		ReadVersion:   defaultReadVersion,
		CheckWritable: fileops.CheckWritable,
		Stat:          os.Stat,
		ReadFile:      os.ReadFile,
		HomeDir:       os.UserHomeDir,
		KnownBad:      map[string]map[string]string{},
	}
}

type maxVersioner interface {
	MaxVersion() string
}

func (c *Checker) Check(ctx context.Context, cfg config.Config, adapters []engine.Adapter) Report {
	report := Report{Checks: []Check{}}

	for _, adapter := range adapters {
		c.checkAdapter(ctx, &report, adapter)
		if adapter.Kind() == "spotdl" {
			if check, ok := c.sharedSpotDLCredentialsCheck(); ok {
				report.Checks = append(report.Checks, check)
			}
		}
	}

	dirs := []struct {
		label string
		path  string
	}{
		{"download_root", cfg.Storage.DownloadRoot},
	}
	if shared := cfg.Storage.SharedDir(); shared != cfg.Storage.DownloadRoot {
		dirs = append(dirs, struct {
			label string
			path  string
		}{"audio_download_path", shared})
	}
	for _, dir := range dirs {
		if err := c.CheckWritable(dir.path); err != nil {
			report.add(SeverityError, "filesystem", "%s %s is not writable: %v", dir.label, dir.path, err)
		} else {
			report.add(SeverityInfo, "filesystem", "%s %s is writable", dir.label, dir.path)
		}
	}

	if strings.TrimSpace(cfg.Server.StaticDir) != "" {
		if _, err := c.stat(filepath.Join(cfg.Server.StaticDir, "index.html")); err != nil {
			report.add(SeverityWarn, "static", "static_dir %s has no index.html: %v", cfg.Server.StaticDir, err)
		}
	}

	if cfg.Auth.CredentialsConfigured() {
		report.add(SeverityInfo, "auth", "admin credentials are configured for %s", cfg.Auth.AdminUsername)
	} else {
		report.add(SeverityWarn, "auth", "admin credentials are not configured; every download is anonymous")
	}
	if cfg.Auth.AdminPassword != "" {
		report.add(SeverityWarn, "auth", "admin password is stored in plain text; prefer ADMIN_PASSWORD_HASH (see soundgrab hash-password)")
	}

	return report
}

func (c *Checker) checkAdapter(ctx context.Context, report *Report, adapter engine.Adapter) {
	binary := adapter.Binary()
	location, err := c.LookPath(binary)
	if err != nil {
		report.add(SeverityError, "dependency", "%s not found in PATH", binary)
		return
	}
	report.add(SeverityInfo, "dependency", "%s found at %s", binary, location)

	output, err := c.ReadVersion(ctx, binary)
	if err != nil {
		report.add(SeverityWarn, "dependency", "%s version could not be read: %v", binary, err)
		return
	}
	version, err := extractVersion(output)
	if err != nil {
		report.add(SeverityWarn, "dependency", "%s version output is unrecognized: %q", binary, strings.TrimSpace(output))
		return
	}

	minVersion := adapter.MinVersion()
	if minVersion != "" && compareVersions(version, minVersion) < 0 {
		report.add(SeverityError, "dependency", "%s version %s is below minimum %s", binary, version, minVersion)
		return
	}
	if reason, bad := c.KnownBad[adapter.Kind()][version]; bad {
		if strings.TrimSpace(reason) == "" {
			report.add(SeverityError, "dependency", "%s version %s is known to be broken", binary, version)
		} else {
			report.add(SeverityError, "dependency", "%s version %s is known to be broken: %s", binary, version, reason)
		}
		return
	}
	if mv, ok := adapter.(maxVersioner); ok && mv.MaxVersion() != "" {
		if compareVersions(version, mv.MaxVersion()) >= 0 {
			report.add(SeverityError, "dependency", "%s version %s is outside supported range >=%s and <%s", binary, version, minVersion, mv.MaxVersion())
			return
		}
		report.add(SeverityInfo, "dependency", "%s version %s is within supported range >=%s and <%s", binary, version, minVersion, mv.MaxVersion())
		return
	}
	report.add(SeverityInfo, "dependency", "%s version %s is compatible", binary, version)
}

func (c *Checker) stat(path string) (os.FileInfo, error) {
	if c.Stat == nil {
		return os.Stat(path)
	}
	return c.Stat(path)
}

type spotDLConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// sharedSpotDLCredentialsCheck warns when spotdl still uses the client id
// it ships with; those credentials are heavily rate limited.
func (c *Checker) sharedSpotDLCredentialsCheck() (Check, bool) {
	readFile := c.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	homeDir := c.HomeDir
	if homeDir == nil {
		homeDir = os.UserHomeDir
	}
	home, err := homeDir()
	if err != nil {
		return Check{}, false
	}
	configPath := filepath.Join(home, ".spotdl", "config.json")
	raw, err := readFile(configPath)
	if err != nil {
		return Check{}, false
	}

	var cfg spotDLConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Check{}, false
	}
	if !usesSharedSpotDLCredentials(cfg.ClientID, cfg.ClientSecret) {
		return Check{}, false
	}

	return Check{
		Severity: SeverityWarn,
		Name:     "auth",
		Message:  fmt.Sprintf("spotdl config at %s is using shared default Spotify credentials; set your own client_id/client_secret to avoid API throttling", configPath),
	}, true
}

func usesSharedSpotDLCredentials(clientID string, clientSecret string) bool {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return false
	}

	knownPairs := [][2]string{
		{"5f573c9620494bae87890c0f08a60293", "212476d9b0f3472eaa762d90b19b0ba8"},
		{"f8a606e5583643beaa27ce62c48e3fc1", "f6f4c8f73f0649939286cf417c811607"},
	}
	for _, pair := range knownPairs {
		if clientID == pair[0] && clientSecret == pair[1] {
			return true
		}
	}
	return false
}

func defaultReadVersion(ctx context.Context, binary string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, "--version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

func extractVersion(raw string) (string, error) {
	matches := versionPattern.FindStringSubmatch(raw)
	if len(matches) != 4 {
		return "", fmt.Errorf("no semantic version found")
	}
	return fmt.Sprintf("%s.%s.%s", matches[1], matches[2], matches[3]), nil
}

// compareVersions compares dotted numeric versions. yt-dlp date versions
// such as 2024.08.06 compare correctly since each part is parsed as a number.
func compareVersions(lhs string, rhs string) int {
	leftParts := strings.Split(lhs, ".")
	rightParts := strings.Split(rhs, ".")
	for i := 0; i < 3; i++ {
		leftValue := 0
		rightValue := 0
		if i < len(leftParts) {
			leftValue, _ = strconv.Atoi(leftParts[i])
		}
		if i < len(rightParts) {
			rightValue, _ = strconv.Atoi(rightParts[i])
		}
		if leftValue > rightValue {
			return 1
		}
		if leftValue < rightValue {
			return -1
		}
	}
	return 0
}
