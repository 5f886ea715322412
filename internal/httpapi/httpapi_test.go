package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/famish99/musicradio/internal/backends"
	"github.com/famish99/musicradio/internal/backends/mock"
	"github.com/famish99/musicradio/internal/config"
	"github.com/famish99/musicradio/internal/player"
	"github.com/famish99/musicradio/internal/update"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSource struct {
	available atomic.Bool
}

func (f *fakeSource) Name() string { return "fake" }
func (f *fakeSource) Watch(ctx context.Context, _ func(string)) error {
	<-ctx.Done()
	return nil
}
func (f *fakeSource) Check(context.Context) (bool, error) { return f.available.Load(), nil }
func (f *fakeSource) Activate(context.Context) error      { return nil }
func (f *fakeSource) PollInterval() time.Duration         { return 0 }

type fixture struct {
	server  *Server
	player  *player.Player
	factory *mock.Factory
	source  *fakeSource
	monitor *update.Monitor
	reloads atomic.Int32
}

func newFixture(t *testing.T, withMonitor bool) *fixture {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Audio.BasePath = "https://cdn.example.com/audio"
	cfg.Audio.Songs = []config.Track{
		{ID: 7, Title: "Seven", Filename: "seven.mp3"},
		{ID: 8, Title: "Eight", Filename: "eight.mp3"},
	}

	f := &fixture{factory: mock.NewFactory(), source: &fakeSource{}}
	p, err := player.NewPlayer(cfg, player.Options{
		Factory: f.factory.New,
		Random:  func(int) int { return 0 },
	})
	if err != nil {
		t.Fatalf("NewPlayer failed: %v", err)
	}
	t.Cleanup(p.Stop)
	f.player = p

	if withMonitor {
		m, err := update.NewMonitor(update.Options{
			Source: f.source,
			Reloader: update.ReloaderFunc(func() error {
				f.reloads.Add(1)
				return nil
			}),
		})
		if err != nil {
			t.Fatalf("NewMonitor failed: %v", err)
		}
		t.Cleanup(m.Stop)
		f.monitor = m
	}

	f.server = NewServer("127.0.0.1:0", p, f.monitor)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return f
}

func (f *fixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return v
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestGetState(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/api/state")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[stateResponse](t, w)

	if got.Track == nil || got.Track.ID != 7 {
		t.Fatalf("track = %+v, want id 7", got.Track)
	}
	if got.Track.URL != "https://cdn.example.com/audio/seven.mp3" {
		t.Errorf("url = %q", got.Track.URL)
	}
	if !got.Loading || got.Playing {
		t.Errorf("loading/playing = %v/%v, want true/false", got.Loading, got.Playing)
	}
	if got.State != "loading" {
		t.Errorf("state = %q, want loading", got.State)
	}
	if !got.Online || got.UpdateAvailable || got.UpdateSource != "fake" {
		t.Errorf("online/update/source = %v/%v/%q", got.Online, got.UpdateAvailable, got.UpdateSource)
	}
}

func TestGetTracks(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodGet, "/api/tracks")
	got := decode[struct {
		Tracks []trackResponse `json:"tracks"`
	}](t, w)

	if len(got.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(got.Tracks))
	}
	if got.Tracks[1].Title != "Eight" || got.Tracks[1].ID != 8 {
		t.Errorf("second track = %+v", got.Tracks[1])
	}
}

func TestTogglePlayback(t *testing.T) {
	f := newFixture(t, false)
	f.factory.Last().Emit(backends.EventCanPlay)

	w := f.do(t, http.MethodPost, "/api/playback/toggle")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := decode[stateResponse](t, w); !got.Playing || got.State != "playing" {
		t.Errorf("after toggle: playing=%v state=%q", got.Playing, got.State)
	}

	w = f.do(t, http.MethodPost, "/api/playback/toggle")
	if got := decode[stateResponse](t, w); got.Playing || got.State != "paused" {
		t.Errorf("after second toggle: playing=%v state=%q", got.Playing, got.State)
	}
}

func TestToggleBlocked(t *testing.T) {
	f := newFixture(t, false)
	f.factory.Last().SetPlayErr(backends.ErrPlaybackBlocked)
	f.factory.Last().Emit(backends.EventCanPlay)

	w := f.do(t, http.MethodPost, "/api/playback/toggle")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	got := decode[map[string]any](t, w)
	if got["blocked"] != true {
		t.Errorf("blocked = %v, want true", got["blocked"])
	}

	state := decode[stateResponse](t, f.do(t, http.MethodGet, "/api/state"))
	if !state.Blocked || state.Error == "" {
		t.Errorf("state blocked/error = %v/%q", state.Blocked, state.Error)
	}
}

func TestNextAndReload(t *testing.T) {
	f := newFixture(t, false)

	if w := f.do(t, http.MethodPost, "/api/playback/next"); w.Code != http.StatusOK {
		t.Fatalf("next status = %d", w.Code)
	}
	if n := len(f.factory.Elements()); n != 2 {
		t.Fatalf("elements after next = %d, want 2", n)
	}
	f.factory.Last().Emit(backends.EventCanPlay)
	if !f.factory.Last().Playing() {
		t.Error("next did not auto-play")
	}

	if w := f.do(t, http.MethodPost, "/api/playback/reload"); w.Code != http.StatusOK {
		t.Fatalf("reload status = %d", w.Code)
	}
	if n := len(f.factory.Elements()); n != 3 {
		t.Fatalf("elements after reload = %d, want 3", n)
	}
	f.factory.Last().Emit(backends.EventCanPlay)
	if f.factory.Last().Playing() {
		t.Error("reload auto-played")
	}
}

func TestUpdateEndpointsWithoutMonitor(t *testing.T) {
	f := newFixture(t, false)

	for _, path := range []string{"/api/update/check", "/api/update/apply"} {
		if w := f.do(t, http.MethodPost, path); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, w.Code)
		}
	}
	if w := f.do(t, http.MethodPost, "/api/app/resume"); w.Code != http.StatusNoContent {
		t.Errorf("resume status = %d, want 204", w.Code)
	}
}

func TestCheckForUpdates(t *testing.T) {
	f := newFixture(t, true)

	got := decode[map[string]bool](t, f.do(t, http.MethodPost, "/api/update/check"))
	if got["update_available"] {
		t.Error("update reported before one exists")
	}

	f.source.available.Store(true)
	got = decode[map[string]bool](t, f.do(t, http.MethodPost, "/api/update/check"))
	if !got["update_available"] {
		t.Error("update not reported")
	}
}

func TestApplyUpdateReloadsOnce(t *testing.T) {
	f := newFixture(t, true)

	if w := f.do(t, http.MethodPost, "/api/update/apply"); w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	waitFor(t, "reload", func() bool { return f.reloads.Load() == 1 })

	if w := f.do(t, http.MethodPost, "/api/update/apply"); w.Code != http.StatusConflict {
		t.Errorf("second apply status = %d, want 409", w.Code)
	}
	time.Sleep(10 * time.Millisecond)
	if n := f.reloads.Load(); n != 1 {
		t.Errorf("reloads = %d, want 1", n)
	}
}

// readEvent reads one server-sent event and decodes its data
func readEvent(t *testing.T, r *bufio.Reader) (string, stateResponse) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if name != "" || data != "" {
				break
			}
			continue
		}
		if v, ok := strings.CutPrefix(line, "event:"); ok {
			name = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "data:"); ok {
			data = strings.TrimSpace(v)
		}
	}

	var state stateResponse
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		t.Fatalf("invalid event data %q: %v", data, err)
	}
	return name, state
}

func TestEventStream(t *testing.T) {
	f := newFixture(t, true)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	name, state := readEvent(t, r)
	if name != "state" {
		t.Errorf("event = %q, want state", name)
	}
	if !state.Loading {
		t.Error("initial event is not loading")
	}

	f.factory.Last().Emit(backends.EventCanPlay)

	// Changes may coalesce; wait for the ready state
	deadline := time.Now().Add(2 * time.Second)
	for state.Loading {
		if time.Now().After(deadline) {
			t.Fatal("no event for the ready track")
		}
		_, state = readEvent(t, r)
	}
	if state.State != "ready" {
		t.Errorf("state = %q, want ready", state.State)
	}
}

func TestServerStartShutdown(t *testing.T) {
	f := newFixture(t, false)
	if err := f.server.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get("http://" + f.server.Addr() + "/api/state")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.server.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
