// Package rewrite implements the header and body rewriting rules that
// re-point upstream absolute URLs and cookie attributes at the proxy's
// own host, so a browser session bound to the upstream origin continues
// to work when served through the proxy.
package rewrite

import (
	"net/http"
	"regexp"
)

// CloneHeaders builds a new header collection from src, dropping any
// Cookie header (the proxy pipeline rebuilds a single joined cookie
// header elsewhere) and rewriting every remaining value's occurrences of
// hostToMatch to substitute. Set-Cookie values additionally have their
// Domain attribute cleared before the regex pass. Multi-valued headers
// are preserved as multiple values, never folded into one.
func CloneHeaders(src http.Header, hostToMatch, substitute string) http.Header {
	out := make(http.Header, len(src))
	matcher := regexp.MustCompile(regexp.QuoteMeta(hostToMatch))

	for name, values := range src {
		if http.CanonicalHeaderKey(name) == "Cookie" {
			continue
		}
		for _, v := range values {
			if http.CanonicalHeaderKey(name) == "Set-Cookie" {
				v = clearCookieDomain(v)
			}
			out.Add(name, matcher.ReplaceAllString(v, substitute))
		}
	}
	return out
}

// clearCookieDomain parses v as a Set-Cookie value, empties its Domain
// attribute, and re-serialises it. If v does not parse as a cookie it is
// returned unchanged.
func clearCookieDomain(v string) string {
	header := http.Header{}
	header.Add("Set-Cookie", v)
	resp := http.Response{Header: header}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return v
	}

	c := cookies[0]
	c.Domain = ""
	return c.String()
}
