package rewrite

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Context carries the host/target triple a body rewriter function needs.
// Functions must not retain a reference to it beyond their return.
type Context struct {
	HostToReplace string
	TargetHost    string
	TargetPort    int
}

// Func is a pure body rewriter: given the previous stage's output and
// the rewrite context, it returns the next stage's input.
type Func func(text string, ctx Context) string

// Compose threads text through fns in order, left fold style, each
// function receiving the previous one's output.
func Compose(text string, ctx Context, fns ...Func) string {
	for _, fn := range fns {
		text = fn(text, ctx)
	}
	return text
}

// RewriteAbsoluteURLs replaces every absolute URL in text that points at
// ctx.HostToReplace with the equivalent URL pointing at ctx.TargetHost:
// ctx.TargetPort. It matches both plain ("https://host") and
// JSON-escaped ("https:\/\/host") forms. A match that fails to parse as
// a URL is replaced with the empty string (fail-soft).
func RewriteAbsoluteURLs(text string, ctx Context) string {
	pattern := `https?:(?:\\)?/(?:\\)?/` + regexp.QuoteMeta(ctx.HostToReplace)
	matcher := regexp.MustCompile(pattern)

	return matcher.ReplaceAllStringFunc(text, func(match string) string {
		rewritten, ok := rehost(match, ctx)
		if !ok {
			return ""
		}
		return rewritten
	})
}

func rehost(match string, ctx Context) (string, bool) {
	u, err := url.Parse(match)
	if err != nil {
		return "", false
	}
	u.Host = fmt.Sprintf("%s:%d", ctx.TargetHost, ctx.TargetPort)
	s := u.String()
	return strings.TrimSuffix(s, "/"), true
}

// RewriteCookieDomainOnPage removes inline `"domain": ".<host>",` JSON
// fragments embedded in a page payload, matching the m2 preset's extra
// rewrite that strips cookie-domain assertions the host framework may
// have serialised directly into inline page state.
func RewriteCookieDomainOnPage(text string, ctx Context) string {
	pattern := regexp.MustCompile(`"domain": "\.` + regexp.QuoteMeta(ctx.HostToReplace) + `",`)
	return pattern.ReplaceAllString(text, "")
}
