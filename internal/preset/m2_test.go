package preset

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wearejh/bs-proxy/internal/config"
	"github.com/wearejh/bs-proxy/internal/planner"
	"github.com/wearejh/bs-proxy/internal/reqlog"
	"github.com/wearejh/bs-proxy/internal/state"
)

func newTestM2(t *testing.T) (*M2, *state.AppState) {
	t.Helper()
	app := state.New(config.Default(), planner.BundleConfig{})
	m2 := NewM2(M2Options{
		RequirePath:     "/requirejs.js",
		RequireConfPath: "/js/requirejs-config.js",
		ShimBody:        "/* shim */",
	}, app)
	return m2, app
}

func TestM2Routes_IncludesConfiguredPaths(t *testing.T) {
	m2, _ := newTestM2(t)
	routes := m2.Routes()

	paths := map[string]bool{}
	for _, r := range routes {
		paths[r.Path] = true
	}
	for _, want := range []string{"/requirejs.js", "/js/requirejs-config.js", "/__bs/post", "/__bs/reqs.json", "/__bs/config.json", "/__bs/build.json", "/__bs/loaders.js", "/__bs/seed.json"} {
		if !paths[want] {
			t.Errorf("expected route %q to be registered", want)
		}
	}
}

func TestM2HandleShim_ServesVerbatimBody(t *testing.T) {
	m2, _ := newTestM2(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/requirejs.js", nil)
	m2.handleShim(rec, req)

	if rec.Body.String() != "/* shim */" {
		t.Errorf("expected shim body verbatim, got %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/javascript" {
		t.Errorf("expected javascript content type, got %q", ct)
	}
}

func TestM2HandlePost_UpdatesSharedClientConfig(t *testing.T) {
	m2, app := newTestM2(t)

	body := `{"deps":["app/main"],"paths":{"jquery":"lib/jquery"},"map":{},"config":{},"shim":{}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/__bs/post", strings.NewReader(body))
	m2.handlePost(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cfg := app.ClientConfig.Snapshot()
	if len(cfg.Deps) != 1 || cfg.Deps[0] != "app/main" {
		t.Errorf("expected deps to be updated, got %+v", cfg.Deps)
	}
}

func TestM2HandlePost_InvalidBodyReturns500WithMessage(t *testing.T) {
	m2, _ := newTestM2(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/__bs/post", strings.NewReader("not json"))
	m2.handlePost(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q", rec.Body.String())
	}
	if _, ok := body["message"]; !ok {
		t.Errorf("expected a message field, got %+v", body)
	}
}

func TestM2Capture_MergesConfigAndAppendsSnippet(t *testing.T) {
	m2, app := newTestM2(t)

	script := `var config = {deps: ["app/main"]}; require.config(config);`
	out := m2.Capture("/js/requirejs-config.js", "application/javascript", []byte(script))

	if !strings.Contains(string(out), postBackSnippet) {
		t.Error("expected post-back snippet to be appended")
	}
	cfg := app.ClientConfig.Snapshot()
	if len(cfg.Deps) != 1 || cfg.Deps[0] != "app/main" {
		t.Errorf("expected deps captured from script, got %+v", cfg.Deps)
	}
}

func TestM2Capture_IgnoresUnrelatedPaths(t *testing.T) {
	m2, _ := newTestM2(t)

	out := m2.Capture("/other/path.js", "application/javascript", []byte("untouched"))
	if string(out) != "untouched" {
		t.Errorf("expected body unchanged for an unrelated path, got %q", out)
	}
}

func TestM2BeforeMiddleware_CapturesBsTrackParam(t *testing.T) {
	m2, app := newTestM2(t)
	handler := m2.BeforeMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	payload, _ := json.Marshal(reqlog.ModuleData{URL: "/a.js", ID: "a", Referrer: "/home"})
	req := httptest.NewRequest(http.MethodGet, "/some/path?bs_track="+string(payload), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	snapshot := app.ReqLog.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != "a" {
		t.Errorf("expected tracked module to be appended, got %+v", snapshot)
	}
}

func TestM2HandleConfCapture_WithoutPipelineReturns503(t *testing.T) {
	m2, _ := newTestM2(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/js/requirejs-config.js", nil)
	m2.handleConfCapture(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when pipeline unset, got %d", rec.Code)
	}
}
