package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jaa/soundgrab/internal/config"
	"github.com/jaa/soundgrab/internal/engine"
)

type fakeRunner struct {
	lines    []string
	files    map[string]string
	exitCode int
	block    bool
}

func (r *fakeRunner) Run(ctx context.Context, spec engine.ExecSpec, onLine engine.LineFunc) engine.ExecResult {
	for _, line := range r.lines {
		onLine(line)
	}
	for rel, content := range r.files {
		path := filepath.Join(spec.Dir, filepath.FromSlash(rel))
		_ = os.MkdirAll(filepath.Dir(path), 0o755)
		_ = os.WriteFile(path, []byte(content), 0o644)
	}
	if r.block {
		<-ctx.Done()
		return engine.ExecResult{ExitCode: 130, Interrupted: true, Err: engine.ErrInterrupted}
	}
	return engine.ExecResult{ExitCode: r.exitCode}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.StaticDir = t.TempDir()
	cfg.Storage.DownloadRoot = t.TempDir()
	cfg.Auth.AdminUsername = "admin"
	cfg.Auth.AdminPassword = "secret"
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config, runner engine.ExecRunner) *App {
	t.Helper()
	app, err := New(cfg, discardLogger(), AppOptions{Runner: runner})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return app
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func readSSE(t *testing.T, body io.Reader) []string {
	t.Helper()
	var messages []string
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			messages = append(messages, strings.TrimPrefix(line, "data: "))
		}
	}
	return messages
}

func checkLogin(t *testing.T, client *http.Client, base string) bool {
	t.Helper()
	resp, err := client.Get(base + "/check-login")
	if err != nil {
		t.Fatalf("check-login: %v", err)
	}
	defer resp.Body.Close()
	var status loginStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode check-login: %v", err)
	}
	return status.LoggedIn
}

func TestLoginCheckLogout(t *testing.T) {
	app := newTestApp(t, testConfig(t), &fakeRunner{})
	ts := httptest.NewServer(app.Handler())
	defer ts.Close()
	client := newClient(t)

	if checkLogin(t, client, ts.URL) {
		t.Fatalf("expected logged out before login")
	}

	resp, err := client.Post(ts.URL+"/login", "application/json", strings.NewReader(`{"username":"admin","password":"wrong"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", resp.StatusCode)
	}

	resp, err = client.Post(ts.URL+"/login", "application/json", strings.NewReader(`{"username":"admin","password":"secret"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var body successResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Fatalf("login status = %d success = %v", resp.StatusCode, body.Success)
	}
	if !checkLogin(t, client, ts.URL) {
		t.Fatalf("expected logged in after login")
	}

	resp, err = client.Post(ts.URL+"/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()
	if checkLogin(t, client, ts.URL) {
		t.Fatalf("expected logged out after logout")
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	app := newTestApp(t, testConfig(t), &fakeRunner{})
	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/login", "application/json", strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDownloadRequiresLink(t *testing.T) {
	app := newTestApp(t, testConfig(t), &fakeRunner{})
	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/download?spotify_link=%20")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body downloadError
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "error" || body.Output != "No link provided" {
		t.Fatalf("body = %+v", body)
	}
}

func TestDownloadStreamsSingleFileAndServesIt(t *testing.T) {
	cfg := testConfig(t)
	runner := &fakeRunner{
		lines: []string{"  Processing query  ", "Downloaded \"Song\""},
		files: map[string]string{"Artist/Album/01 - Song Name.mp3": "audio"},
	}
	app := newTestApp(t, cfg, runner)
	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/download?spotify_link=https://open.spotify.com/track/abc")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}
	messages := readSSE(t, resp.Body)
	resp.Body.Close()

	if len(messages) != 3 {
		t.Fatalf("messages = %#v, want 3", messages)
	}
	if messages[0] != "Processing query" {
		t.Fatalf("first message = %q, want trimmed line", messages[0])
	}
	last := messages[len(messages)-1]
	if !strings.HasPrefix(last, "DOWNLOAD: ") {
		t.Fatalf("last message = %q, want DOWNLOAD reference", last)
	}
	ref := strings.TrimPrefix(last, "DOWNLOAD: ")
	if !strings.HasSuffix(ref, "/Artist/Album/01%20-%20Song%20Name.mp3") {
		t.Fatalf("reference = %q", ref)
	}

	fileResp, err := http.Get(ts.URL + "/downloads/" + ref)
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	defer fileResp.Body.Close()
	if fileResp.StatusCode != http.StatusOK {
		t.Fatalf("file status = %d, want 200", fileResp.StatusCode)
	}
	if cd := fileResp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, "01 - Song Name.mp3") {
		t.Fatalf("content-disposition = %q", cd)
	}
	payload, _ := io.ReadAll(fileResp.Body)
	if string(payload) != "audio" {
		t.Fatalf("payload = %q", payload)
	}
}

func TestDownloadReportsExitCode(t *testing.T) {
	app := newTestApp(t, testConfig(t), &fakeRunner{lines: []string{"boom"}, exitCode: 2})
	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/download?spotify_link=https://example.com/watch?v=1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	messages := readSSE(t, resp.Body)
	resp.Body.Close()

	want := []string{"boom", "Error: Download exited with code 2."}
	if strings.Join(messages, "|") != strings.Join(want, "|") {
		t.Fatalf("messages = %#v, want %#v", messages, want)
	}
}

func TestAuthenticatedDownloadCompletesWithoutReference(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.AudioDownloadPath = t.TempDir()
	app := newTestApp(t, cfg, &fakeRunner{files: map[string]string{"a.mp3": "x", "b.flac": "y"}})
	ts := httptest.NewServer(app.Handler())
	defer ts.Close()
	client := newClient(t)

	resp, err := client.Post(ts.URL+"/login", "application/json", strings.NewReader(`{"username":"admin","password":"secret"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()

	resp, err = client.Get(ts.URL + "/download?spotify_link=https://open.spotify.com/album/x")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	messages := readSSE(t, resp.Body)
	resp.Body.Close()

	if len(messages) != 1 || messages[0] != engine.MessageCompleted {
		t.Fatalf("messages = %#v", messages)
	}
	if _, err := os.Stat(filepath.Join(cfg.Storage.AudioDownloadPath, "a.mp3")); err != nil {
		t.Fatalf("expected file in shared dir: %v", err)
	}
}

func TestHandleFileRejectsBadRequests(t *testing.T) {
	root := t.TempDir()
	token := "0b4a3c4e-8a51-4d4b-9b6f-3a2f1c0d9e8f"
	if err := os.MkdirAll(filepath.Join(root, token, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	s := NewServer(Options{Logger: discardLogger(), DownloadRoot: root})

	tests := []struct {
		name  string
		token string
		path  string
		want  int
	}{
		{name: "parent traversal", token: token, path: "../secret.mp3", want: http.StatusBadRequest},
		{name: "embedded dots", token: token, path: "a/../../b.mp3", want: http.StatusBadRequest},
		{name: "absolute", token: token, path: "/etc/passwd", want: http.StatusBadRequest},
		{name: "backslash", token: token, path: `\windows`, want: http.StatusBadRequest},
		{name: "bad token", token: "not-a-uuid", path: "a.mp3", want: http.StatusBadRequest},
		{name: "missing", token: token, path: "missing.mp3", want: http.StatusNotFound},
		{name: "directory", token: token, path: "sub", want: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/downloads/x/y", nil)
			req.SetPathValue("token", tc.token)
			req.SetPathValue("path", tc.path)
			rec := httptest.NewRecorder()
			s.handleFile(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestRequestLoggingSetsIDAndKeepsFlusher(t *testing.T) {
	var flushed bool
	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestID(r.Context()) == "" {
			t.Errorf("missing request id in context")
		}
		f, ok := w.(http.Flusher)
		if !ok {
			t.Errorf("wrapped writer is not a Flusher")
			return
		}
		_, _ = w.Write([]byte("data: x\n\n"))
		f.Flush()
		flushed = true
	}), discardLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("missing %s header", RequestIDHeader)
	}
	if !flushed || !rec.Flushed {
		t.Fatalf("expected flush to reach recorder")
	}
}

func TestReadyzChecksDownloadRoot(t *testing.T) {
	root := t.TempDir()
	s := NewServer(Options{Logger: discardLogger(), DownloadRoot: root})
	rec := httptest.NewRecorder()
	s.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	s = NewServer(Options{Logger: discardLogger(), DownloadRoot: filepath.Join(root, "missing")})
	rec = httptest.NewRecorder()
	s.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestStaticHidesDirectories(t *testing.T) {
	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(static, "assets"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	s := NewServer(Options{Logger: discardLogger(), StaticDir: static})
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<html>") {
		t.Fatalf("index status = %d body = %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("directory status = %d, want 404", rec.Code)
	}
}

func TestAppServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg, &fakeRunner{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(base + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve() did not return after cancel")
	}
}

func TestFileRoutesRejectParentSegmentsThroughMux(t *testing.T) {
	root := t.TempDir()
	token := "0b4a3c4e-8a51-4d4b-9b6f-3a2f1c0d9e8f"
	if err := os.MkdirAll(filepath.Join(root, token, "a"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, token, "b.mp3"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h := NewServer(Options{Logger: discardLogger(), DownloadRoot: root}).Handler()

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "dot segment to existing file", path: "/downloads/" + token + "/a/../b.mp3", want: http.StatusBadRequest},
		{name: "dot segment escaping token", path: "/downloads/" + token + "/../" + token + "/b.mp3", want: http.StatusBadRequest},
		{name: "encoded dot segment", path: "/downloads/" + token + "/a/%2e%2e/b.mp3", want: http.StatusBadRequest},
		{name: "dots inside a name", path: "/downloads/" + token + "/b..mp3", want: http.StatusBadRequest},
		{name: "plain file", path: "/downloads/" + token + "/b.mp3", want: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rec.Code != tc.want {
				t.Fatalf("GET %s status = %d, want %d", tc.path, rec.Code, tc.want)
			}
		})
	}
}
