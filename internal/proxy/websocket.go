package proxy

import (
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/wearejh/bs-proxy/internal/logging"
	"github.com/wearejh/bs-proxy/internal/rewrite"
)

// isWebSocketUpgrade reports whether r is an HTTP/1.1 Upgrade request for
// the "websocket" protocol.
func isWebSocketUpgrade(r *http.Request) bool {
	return headerContainsToken(r.Header, "Connection", "upgrade") &&
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func headerContainsToken(h http.Header, key, token string) bool {
	for _, v := range h.Values(key) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

// bridgeWebSocket hijacks the client connection, opens a raw connection
// to the upstream, replays the upgrade request, and then pipes bytes in
// both directions until either side closes. Header/body rewriting (§4.A)
// does not apply to the WebSocket data plane, only to the upgrade
// handshake's own headers.
func (p *Pipeline) bridgeWebSocket(w http.ResponseWriter, r *http.Request) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "websocket upgrade not supported", http.StatusInternalServerError)
		return
	}

	upstreamConn, err := p.dialUpstream()
	if err != nil {
		logging.Warn("websocket upstream dial failed", "source", "proxy", "error", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer upstreamConn.Close()

	outHeader := rewrite.CloneHeaders(r.Header, r.Host, p.cfg.Upstream.Host)
	outHeader.Set("Host", p.cfg.Upstream.Host)
	if err := writeUpgradeRequest(upstreamConn, r, outHeader); err != nil {
		logging.Warn("websocket upgrade replay failed", "source", "proxy", "error", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}

	clientConn, clientBuf, err := hijacker.Hijack()
	if err != nil {
		logging.Warn("websocket hijack failed", "source", "proxy", "error", err)
		return
	}
	defer clientConn.Close()

	if clientBuf.Reader.Buffered() > 0 {
		buffered := make([]byte, clientBuf.Reader.Buffered())
		_, _ = clientBuf.Read(buffered)
		_, _ = upstreamConn.Write(buffered)
	}

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(upstreamConn, clientConn)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(clientConn, upstreamConn)
		done <- struct{}{}
	}()
	<-done
}

func (p *Pipeline) dialUpstream() (net.Conn, error) {
	if strings.EqualFold(p.cfg.Upstream.Scheme, "https") {
		return tls.Dial("tcp", p.cfg.Upstream.Host, &tls.Config{InsecureSkipVerify: true}) //nolint:gosec // dev-only upstream
	}
	return net.Dial("tcp", p.cfg.Upstream.Host)
}

// writeUpgradeRequest re-serialises the original upgrade request line
// and headers (rewritten) to the upstream connection.
func writeUpgradeRequest(conn net.Conn, r *http.Request, header http.Header) error {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.URL.RequestURI())
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString("Host: " + header.Get("Host") + "\r\n")
	for k, vv := range header {
		if k == "Host" {
			continue
		}
		for _, v := range vv {
			b.WriteString(k + ": " + v + "\r\n")
		}
	}
	b.WriteString("\r\n")
	_, err := conn.Write([]byte(b.String()))
	return err
}
