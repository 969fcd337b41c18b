// Package preset implements the preset interface, the ordered registry
// that composes presets into a single HTTP handler in front of the
// catch-all proxy pipeline, and the one preset this tool currently
// ships: "m2".
package preset

import (
	"net/http"

	"github.com/wearejh/bs-proxy/internal/rewrite"
)

// Route is a single HTTP endpoint a preset wants registered ahead of the
// catch-all proxy handler.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Preset bundles a list of routes, a list of body-rewriter functions,
// and an optional before-middleware, mirroring the donor implementation's
// three-responsibility preset trait.
type Preset interface {
	Routes() []Route
	Rewriters() []rewrite.Func
	// BeforeMiddleware may return nil if the preset contributes none.
	BeforeMiddleware() func(http.Handler) http.Handler
}

// Registry composes an ordered sequence of presets in front of a
// catch-all fallback handler. Routes registered by earlier presets take
// priority in the usual net/http.ServeMux sense, and every preset's
// before-middleware wraps the whole thing, outermost-first in
// declaration order.
type Registry struct {
	presets  []Preset
	fallback http.Handler
}

// NewRegistry builds a Registry. fallback handles any request not
// claimed by a preset route (the single-upstream proxy pipeline).
func NewRegistry(fallback http.Handler, presets ...Preset) *Registry {
	return &Registry{presets: presets, fallback: fallback}
}

// Handler builds the final composed http.Handler: preset routes first,
// the fallback mounted at "/", with every before-middleware wrapped
// around the result.
func (r *Registry) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, p := range r.presets {
		for _, route := range p.Routes() {
			mux.HandleFunc(route.Path, methodGuard(route.Method, route.Handler))
		}
	}
	mux.Handle("/", r.fallback)

	var handler http.Handler = mux
	for i := len(r.presets) - 1; i >= 0; i-- {
		if mw := r.presets[i].BeforeMiddleware(); mw != nil {
			handler = mw(handler)
		}
	}
	return handler
}

// Rewriters concatenates every preset's body rewriters in registration
// order.
func (r *Registry) Rewriters() []rewrite.Func {
	var out []rewrite.Func
	for _, p := range r.presets {
		out = append(out, p.Rewriters()...)
	}
	return out
}

func methodGuard(method string, handler http.HandlerFunc) http.HandlerFunc {
	if method == "" {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
