package server

import (
	"net/http"
	"strings"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Uses [http.ServeMux] method patterns internally. Once [BasicRouter.NotFound] registers the catch-all,
// a known path requested with the wrong method falls through to it as well.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		middlewares: []Middleware{},
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
//
// Only routes registered after the call are wrapped.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for the specified HTTP method and path.
//
// The handler is wrapped with the route middleware mw first, then with all registered middleware.
// A path of "/" matches only the root; use [BasicRouter.NotFound] for the catch-all.
func (r *BasicRouter) Handle(method, path string, handler http.Handler, mw ...Middleware) {
	if path == "/" {
		path = "/{$}"
	}

	wrapped := handler
	for i := len(mw) - 1; i >= 0; i-- {
		wrapped = mw[i](wrapped)
	}

	r.mux.Handle(strings.ToUpper(method)+" "+path, r.Apply(wrapped))
}

// Handler registers a custom Handler implementation.
//
// All routes returned by [Handler.Routes] are registered with this handler.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)

	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

// NotFound registers the handler for every request no other route matches.
func (r *BasicRouter) NotFound(handler http.Handler) {
	r.mux.Handle("/", r.Apply(handler))
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}
