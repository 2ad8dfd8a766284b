package cli

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/jaa/soundgrab/internal/exitcode"
	"github.com/jaa/soundgrab/internal/session"
)

func newTestApp(stdin string) (*AppContext, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	app := &AppContext{
		Build: BuildInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-02"},
		IO:    IOStreams{In: strings.NewReader(stdin), Out: stdout, ErrOut: stderr},
	}
	return app, stdout, stderr
}

func writeConfig(t *testing.T, dir string, extra string) string {
	t.Helper()
	downloadRoot := filepath.Join(dir, "downloads")
	payload := `version: 1
storage:
  download_root: "` + downloadRoot + `"
` + extra
	path := filepath.Join(dir, "soundgrab.yaml")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func writeScript(t *testing.T, dir string, name string, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	app, stdout, _ := newTestApp("")
	root := newRootCommand(app)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(stdout.String(), "soundgrab version 1.2.3") || !strings.Contains(stdout.String(), "commit: abc123") {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestValidateCommand(t *testing.T) {
	tmp := t.TempDir()
	configPath := writeConfig(t, tmp, "")

	app, stdout, _ := newTestApp("")
	root := newRootCommand(app)
	root.SetArgs([]string{"validate", "--config", configPath, "--json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		t.Fatalf("decode output %q: %v", stdout.String(), err)
	}
	if payload["valid"] != true {
		t.Fatalf("expected valid=true, got %+v", payload)
	}
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	tmp := t.TempDir()
	configPath := writeConfig(t, tmp, "tools:\n  audio_format: \"mp3!\"\n")

	app, _, _ := newTestApp("")
	root := newRootCommand(app)
	root.SetArgs([]string{"validate", "--config", configPath})
	err := root.Execute()
	if got := mapExitCode(err); got != exitcode.InvalidConfig {
		t.Fatalf("exit code = %d, want %d (err=%v)", got, exitcode.InvalidConfig, err)
	}
}

func TestUnknownFlagIsInvalidUsage(t *testing.T) {
	app, _, _ := newTestApp("")
	root := newRootCommand(app)
	root.SetArgs([]string{"validate", "--bogus"})
	if got := mapExitCode(root.Execute()); got != exitcode.InvalidUsage {
		t.Fatalf("exit code = %d, want %d", got, exitcode.InvalidUsage)
	}
}

func TestInitWritesTemplate(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "config.yaml")

	app, stdout, _ := newTestApp("")
	root := newRootCommand(app)
	root.SetArgs([]string{"init", "--config", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(stdout.String(), "Wrote config") {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(payload), "download_root") {
		t.Fatalf("template missing download_root: %s", payload)
	}

	app, _, _ = newTestApp("")
	app.Opts.NoInput = true
	root = newRootCommand(app)
	root.SetArgs([]string{"init", "--config", path, "--no-input"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected init without --force to refuse overwrite")
	}
}

func TestHashPasswordCommand(t *testing.T) {
	app, stdout, _ := newTestApp("hunter2\n")
	root := newRootCommand(app)
	root.SetArgs([]string{"hash-password", "--quiet"})
	if err := root.Execute(); err != nil {
		t.Fatalf("hash-password: %v", err)
	}

	hash := strings.TrimSpace(stdout.String())
	ok, err := session.VerifyPassword(hash, "hunter2")
	if err != nil || !ok {
		t.Fatalf("VerifyPassword(%q) = %v, %v", hash, ok, err)
	}
}

func TestHashPasswordRejectsEmptyInput(t *testing.T) {
	app, _, _ := newTestApp("\n")
	root := newRootCommand(app)
	root.SetArgs([]string{"hash-password", "--quiet"})
	if got := mapExitCode(root.Execute()); got != exitcode.InvalidUsage {
		t.Fatalf("exit code = %d, want %d", got, exitcode.InvalidUsage)
	}
}

func TestFetchPackagesPlaylist(t *testing.T) {
	tmp := t.TempDir()
	script := writeScript(t, tmp, "fake-spotdl", `echo "Found 2 songs in Road Trip (Playlist)"
mkdir -p Artist
printf 'a' > Artist/one.mp3
printf 'b' > Artist/two.mp3
`)
	configPath := writeConfig(t, tmp, "tools:\n  spotdl_bin: \""+script+"\"\n")

	app, stdout, stderr := newTestApp("")
	root := newRootCommand(app)
	root.SetArgs([]string{"fetch", "--config", configPath, "--package", "https://open.spotify.com/playlist/abc"})
	if err := root.Execute(); err != nil {
		t.Fatalf("fetch: %v (stderr=%q)", err, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, "Found 2 songs in Road Trip (Playlist)") {
		t.Fatalf("missing downloader line in %q", out)
	}
	if !strings.Contains(out, "/Road%20Trip.zip") {
		t.Fatalf("missing archive reference in %q", out)
	}

	matches, err := filepath.Glob(filepath.Join(tmp, "downloads", "*", "Road Trip.zip"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one archive, got %v (err=%v)", matches, err)
	}
	zr, err := zip.OpenReader(matches[0])
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 2 {
		t.Fatalf("archive entries = %d, want 2", len(zr.File))
	}
}

func TestFetchSharedKeepsFilesInPlace(t *testing.T) {
	tmp := t.TempDir()
	script := writeScript(t, tmp, "fake-ytdlp", "printf 'x' > clip.m4a\n")
	configPath := writeConfig(t, tmp, "tools:\n  ytdlp_bin: \""+script+"\"\n")

	app, stdout, _ := newTestApp("")
	root := newRootCommand(app)
	root.SetArgs([]string{"fetch", "--config", configPath, "https://example.com/watch?v=1"})
	if err := root.Execute(); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(stdout.String(), "Download completed") {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(tmp, "downloads", "clip.m4a")); err != nil {
		t.Fatalf("expected file in shared dir: %v", err)
	}
}

func TestFetchExitCodes(t *testing.T) {
	tmp := t.TempDir()
	failing := writeScript(t, tmp, "failing", "echo nope\nexit 3\n")
	empty := writeScript(t, tmp, "empty", "echo nothing here\n")

	tests := []struct {
		name string
		bin  string
		want int
	}{
		{name: "non-zero exit", bin: failing, want: exitcode.RuntimeFailure},
		{name: "no audio", bin: empty, want: exitcode.PartialSuccess},
		{name: "missing binary", bin: filepath.Join(tmp, "does-not-exist"), want: exitcode.MissingDependency},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			configPath := writeConfig(t, dir, "tools:\n  ytdlp_bin: \""+tc.bin+"\"\n")

			app, _, _ := newTestApp("")
			root := newRootCommand(app)
			root.SetArgs([]string{"fetch", "--config", configPath, "--quiet", "https://example.com/a"})
			if got := mapExitCode(root.Execute()); got != tc.want {
				t.Fatalf("exit code = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestInitMkdirCreatesDownloadRoot(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	root := filepath.Join(tmp, "dl")
	t.Setenv("SOUNDGRAB_DOWNLOAD_ROOT", root)

	app, stdout, _ := newTestApp("")
	cmd := newRootCommand(app)
	cmd.SetArgs([]string{"init", "--config", path, "--mkdir"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init --mkdir: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Fatalf("expected %s to exist: %v", root, err)
	}
	if !strings.Contains(stdout.String(), "Ensured download dir: "+root) {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestDoctorCommandReportsMissingBinaries(t *testing.T) {
	tmp := t.TempDir()
	configPath := writeConfig(t, tmp, "tools:\n  spotdl_bin: \"/nonexistent/spotdl\"\n  ytdlp_bin: \"/nonexistent/yt-dlp\"\n")
	if err := os.MkdirAll(filepath.Join(tmp, "downloads"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	app, stdout, _ := newTestApp("")
	root := newRootCommand(app)
	root.SetArgs([]string{"doctor", "--config", configPath})
	err := root.Execute()
	if got := mapExitCode(err); got != exitcode.MissingDependency {
		t.Fatalf("exit code = %d, want %d (err=%v)", got, exitcode.MissingDependency, err)
	}
	if !strings.Contains(stdout.String(), "/nonexistent/spotdl not found in PATH") {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}
