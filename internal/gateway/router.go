package gateway

import (
	"net/http"
)

type Middleware func(http.Handler) http.Handler

// Router wraps http.ServeMux with a global middleware chain and optional
// per-route middleware.
type Router struct {
	mux   *http.ServeMux
	chain []Middleware
}

// NewRouter creates a router. The first middleware in chain is the outermost.
func NewRouter(chain ...Middleware) *Router {
	return &Router{
		mux:   http.NewServeMux(),
		chain: chain,
	}
}

// Mux returns the underlying http.ServeMux
func (r *Router) Mux() *http.ServeMux {
	return r.mux
}

// Handle registers handler for pattern behind the given route middleware.
func (r *Router) Handle(pattern string, handler http.Handler, mw ...Middleware) {
	r.mux.Handle(pattern, wrap(handler, mw))
}

func (r *Router) HandleFunc(pattern string, handler http.HandlerFunc, mw ...Middleware) {
	r.Handle(pattern, handler, mw...)
}

// Handler returns the mux behind the global chain.
func (r *Router) Handler() http.Handler {
	return wrap(r.mux, r.chain)
}

func wrap(h http.Handler, mw []Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
