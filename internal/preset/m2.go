package preset

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wearejh/bs-proxy/internal/buildconfig"
	"github.com/wearejh/bs-proxy/internal/planner"
	"github.com/wearejh/bs-proxy/internal/reqlog"
	"github.com/wearejh/bs-proxy/internal/rewrite"
	"github.com/wearejh/bs-proxy/internal/rjsconfig"
	"github.com/wearejh/bs-proxy/internal/state"
)

// postBackSnippet is appended to the buffered requirejs-config response
// so the browser posts its own merged configuration (after the host
// framework's mixins have run) back to this process.
const postBackSnippet = `
<script>
(function () {
  if (typeof require === "undefined" || !require.s || !require.s.contexts) {
    return;
  }
  var cfg = require.s.contexts._.config;
  fetch("/__bs/post", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({
      deps: cfg.deps || [],
      paths: cfg.paths || {},
      map: cfg.map || {},
      config: cfg.config || {},
      shim: cfg.shim || {},
      baseUrl: cfg.baseUrl
    })
  });
})();
</script>
`

// M2Options configures the m2 preset: the loader-shim path, the
// loader-config capture path, the bundle plan it should use to answer
// /__bs/build.json and /__bs/loaders.js, and the module ids to exclude
// regardless of what's in the request log.
type M2Options struct {
	RequirePath     string
	RequireConfPath string
	ShimBody        string
}

// M2 is the Magento 2 preset: it serves the instrumented loader shim,
// captures the generated requirejs-config.js into the shared
// ClientConfig, and exposes the /__bs/* build/introspection endpoints.
// Its only rewrite strips an inline cookie-domain assertion the host
// framework serialises directly into page state, which otherwise blocks
// session-bound actions once served through the proxy.
type M2 struct {
	opts     M2Options
	app      *state.AppState
	pipeline http.Handler
}

// NewM2 builds the m2 preset. Call SetPipeline once the proxy pipeline
// exists — it can't be known at construction time since the pipeline's
// own OnBufferedBody hook is this preset's Capture method.
func NewM2(opts M2Options, app *state.AppState) *M2 {
	return &M2{opts: opts, app: app}
}

// SetPipeline wires in the single-upstream proxy handler the
// loader-config route delegates to, so that route gets the exact same
// header/body rewriting as every other proxied request.
func (m *M2) SetPipeline(pipeline http.Handler) {
	m.pipeline = pipeline
}

// Routes implements Preset.
func (m *M2) Routes() []Route {
	routes := []Route{
		{Method: http.MethodPost, Path: "/__bs/post", Handler: m.handlePost},
		{Method: http.MethodGet, Path: "/__bs/reqs.json", Handler: m.handleReqs},
		{Method: http.MethodGet, Path: "/__bs/config.json", Handler: m.handleConfig},
		{Method: http.MethodGet, Path: "/__bs/build.json", Handler: m.handleBuild},
		{Method: http.MethodGet, Path: "/__bs/loaders.js", Handler: m.handleLoaders},
		{Method: http.MethodGet, Path: "/__bs/seed.json", Handler: m.handleSeed},
	}
	if m.opts.RequirePath != "" {
		routes = append(routes, Route{Method: http.MethodGet, Path: m.opts.RequirePath, Handler: m.handleShim})
	}
	if m.opts.RequireConfPath != "" {
		routes = append(routes, Route{Method: http.MethodGet, Path: m.opts.RequireConfPath, Handler: m.handleConfCapture})
	}
	return routes
}

// Rewriters implements Preset.
func (m *M2) Rewriters() []rewrite.Func {
	return []rewrite.Func{rewrite.RewriteCookieDomainOnPage}
}

// BeforeMiddleware implements Preset: every outgoing response is
// inspected for a bs_track query parameter on the originating request.
func (m *M2) BeforeMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			captureTrackedModule(m.app.ReqLog, r.URL.Query().Get("bs_track"))
		})
	}
}

func captureTrackedModule(log *reqlog.Log, raw string) {
	if raw == "" {
		return
	}
	var data reqlog.ModuleData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return
	}
	log.Append(data)
}

func (m *M2) handleShim(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = w.Write([]byte(m.opts.ShimBody))
}

// handleConfCapture delegates to the single-upstream pipeline so this
// route behaves exactly like the catch-all proxy (headers cloned, body
// buffered since the path matches "requirejs-config.js"); the pipeline's
// OnBufferedBody hook (see Capture, wired in by cmd/bs) is what actually
// performs the §4.B parse-and-merge and appends postBackSnippet.
func (m *M2) handleConfCapture(w http.ResponseWriter, r *http.Request) {
	if m.pipeline == nil {
		http.Error(w, "proxy not ready", http.StatusServiceUnavailable)
		return
	}
	m.pipeline.ServeHTTP(w, r)
}

// Capture implements the proxy pipeline's OnBufferedBody hook: for any
// buffered response whose request path is the configured loader-config
// path, parse it into the shared ClientConfig and append the
// postBackSnippet so the browser reports back its own merged view.
func (m *M2) Capture(path, _ string, body []byte) []byte {
	if m.opts.RequireConfPath == "" || !strings.Contains(path, m.opts.RequireConfPath) {
		return body
	}
	if err := m.app.ClientConfig.MergeFromScript(string(body)); err != nil {
		return body
	}
	return append(body, []byte(postBackSnippet)...)
}

func (m *M2) handlePost(w http.ResponseWriter, r *http.Request) {
	var cfg rjsconfig.ClientConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	m.app.ClientConfig.UpdateFields(cfg)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (m *M2) handleReqs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.app.ReqLog.Snapshot())
}

func (m *M2) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.app.ClientConfig.Snapshot())
}

func (m *M2) handleBuild(w http.ResponseWriter, _ *http.Request) {
	client := m.app.ClientConfig.Snapshot()
	modules := planner.Plan(m.app.ReqLog.Snapshot(), m.app.BundleConfig)
	writeJSON(w, http.StatusOK, buildconfig.Synthesize(&client, modules))
}

func (m *M2) handleLoaders(w http.ResponseWriter, _ *http.Request) {
	client := m.app.ClientConfig.Snapshot()
	modules := planner.Plan(m.app.ReqLog.Snapshot(), m.app.BundleConfig)
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = w.Write([]byte(buildconfig.LoaderScript(&client, modules)))
}

func (m *M2) handleSeed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.app.SnapshotSeed())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
