package proxy

import (
	"compress/gzip"
	"crypto/tls"
	"io"
	"net/http"
)

// insecureTransport builds the outbound RoundTripper. The upstream is
// reached over a loopback/dev network in the intended use (pointing the
// proxy at a local dev box with a self-signed certificate), so peer
// verification is disabled rather than requiring the operator to import
// a CA (§6).
func insecureTransport() http.RoundTripper {
	return &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // intentional, dev-only upstream
	}
}

func newGzipReader(r io.ReadCloser) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}
