// Package proxy implements the proxy request/response pipeline: a
// single-upstream reverse proxy that rewrites headers and text bodies,
// joins cookies, and decides per-request whether to stream or buffer the
// response for transformation.
package proxy

import (
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wearejh/bs-proxy/internal/logging"
	"github.com/wearejh/bs-proxy/internal/rewrite"
)

// DefaultTimeout is the outbound request timeout used when Config.Timeout
// is zero.
const DefaultTimeout = 5 * time.Second

// maxBufferedBody is the byte limit applied when a response body is
// buffered for rewriting.
const maxBufferedBody = 1_000_000

// BasicAuth is a credential pair forwarded verbatim to the upstream on
// every request, when configured.
type BasicAuth struct {
	Username string
	Password string
}

// Config describes the single upstream this pipeline forwards to.
type Config struct {
	Upstream  *Upstream
	Timeout   time.Duration
	BasicAuth *BasicAuth
}

// Upstream is the origin the proxy forwards every non-reserved request
// to.
type Upstream struct {
	Scheme string
	Host   string // host:port
}

// Hooks lets callers (the preset registry) contribute body rewriters and
// observe buffered bodies without this package depending on any preset
// or loader-config type.
type Hooks struct {
	// Rewriters are applied, in order, to every buffered text body.
	Rewriters []rewrite.Func
	// OnBufferedBody is called after rewriters run, for the request
	// path and content type, and may return a modified body (e.g. to
	// append a client-side snippet). A nil return leaves body as-is.
	OnBufferedBody func(path, contentType string, body []byte) []byte
}

// Pipeline is the per-process proxy handler for one configured upstream.
type Pipeline struct {
	cfg    Config
	hooks  Hooks
	client *http.Client
}

// New builds a Pipeline. The outbound client disables TLS peer
// verification, matching this tool's development-only posture (§6).
func New(cfg Config, hooks Hooks) *Pipeline {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Pipeline{
		cfg:   cfg,
		hooks: hooks,
		client: &http.Client{
			Transport: insecureTransport(),
			// Redirects must be relayed to the browser unchanged, not
			// followed here, so Location rewriting (§4.A) can run.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ServeHTTP dispatches WebSocket upgrade requests to the hijack-based
// bridge and everything else through the buffered/streamed forward path.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isWebSocketUpgrade(r) {
		p.bridgeWebSocket(w, r)
		return
	}
	p.forward(w, r)
}

func (p *Pipeline) forward(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), p.cfg.Timeout)
	defer cancel()

	proxyHost, proxyPort := splitHostPort(r.Host)

	outReq, err := p.buildOutboundRequest(ctx, r)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	resp, err := p.client.Do(outReq)
	if err != nil {
		logging.Warn("upstream request failed", "source", "proxy", "error", err)
		writeUpstreamError(w, err)
		return
	}
	defer resp.Body.Close()

	respHeaders := rewrite.CloneHeaders(resp.Header, p.cfg.Upstream.Host, r.Host)

	bodyReader := resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		if gz, err := newGzipReader(resp.Body); err == nil {
			bodyReader = gz
			respHeaders.Del("Content-Encoding")
		}
	}

	// POST responses are always buffered and rewritten, regardless of
	// content type or path; the content-sniffing decision below only
	// applies to every other method.
	mustBuffer := r.Method == http.MethodPost || shouldBufferForRewrite(resp.Header.Get("Content-Type"), r.URL.Path)
	if !mustBuffer {
		copyHeaders(w.Header(), respHeaders)
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, bodyReader)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(bodyReader, maxBufferedBody))
	if err != nil {
		logging.Warn("failed reading buffered response body", "source", "proxy", "error", err)
		raw = []byte{}
	}

	rewriteCtx := rewrite.Context{
		HostToReplace: p.cfg.Upstream.Host,
		TargetHost:    proxyHost,
		TargetPort:    proxyPort,
	}
	text := string(raw)
	text = rewrite.Compose(text, rewriteCtx, p.hooks.Rewriters...)
	body := []byte(text)

	if p.hooks.OnBufferedBody != nil {
		if modified := p.hooks.OnBufferedBody(r.URL.Path, resp.Header.Get("Content-Type"), body); modified != nil {
			body = modified
		}
	}

	respHeaders.Del("Content-Length")
	respHeaders.Set("Content-Length", strconv.Itoa(len(body)))
	copyHeaders(w.Header(), respHeaders)
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
}

func (p *Pipeline) buildOutboundRequest(ctx context.Context, r *http.Request) (*http.Request, error) {
	outURL := *r.URL
	outURL.Scheme = p.cfg.Upstream.Scheme
	outURL.Host = p.cfg.Upstream.Host

	var body io.Reader
	if r.Method == http.MethodPost {
		buf, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		body = strings.NewReader(string(buf))
	}

	outReq, err := http.NewRequestWithContext(ctx, r.Method, outURL.String(), body)
	if err != nil {
		return nil, err
	}

	outReq.Header = rewrite.CloneHeaders(r.Header, r.Host, p.cfg.Upstream.Host)
	if cookie := joinedCookies(r); cookie != "" {
		outReq.Header.Set("Cookie", cookie)
	}
	outReq.Host = p.cfg.Upstream.Host
	outReq.Header.Set("Host", p.cfg.Upstream.Host)
	outReq.Header.Set("Origin", p.cfg.Upstream.Scheme+"://"+p.cfg.Upstream.Host)
	outReq.Header.Set("Accept-Encoding", "gzip, identity")

	if p.cfg.BasicAuth != nil {
		token := base64.StdEncoding.EncodeToString([]byte(p.cfg.BasicAuth.Username + ":" + p.cfg.BasicAuth.Password))
		outReq.Header.Set("Authorization", "Basic "+token)
	}

	return outReq, nil
}

// joinedCookies collapses every incoming Cookie header into a single
// "; "-joined value, per §4.F point 4.
func joinedCookies(r *http.Request) string {
	return strings.Join(r.Header.Values("Cookie"), "; ")
}

// shouldBufferForRewrite decides, for non-POST requests, whether a
// response body must be materialised for transformation: HTML responses
// (with or without a charset parameter, case-insensitive) and any
// request whose path contains "requirejs-config.js". POST requests skip
// this check entirely — their responses are always buffered (see
// forward).
func shouldBufferForRewrite(contentType, path string) bool {
	if strings.Contains(path, "requirejs-config.js") {
		return true
	}
	ct := strings.ToLower(contentType)
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.TrimSpace(ct) == "text/html"
}

func copyHeaders(dst http.Header, src http.Header) {
	for k, vv := range src {
		dst[k] = vv
	}
}

func splitHostPort(hostport string) (string, int) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

// writeUpstreamError converts an outbound-pipeline error into a 5xx JSON
// error response, per the UpstreamConnect/Timeout error-handling row.
func writeUpstreamError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte(`{"message":` + strconv.Quote(err.Error()) + `}`))
}
