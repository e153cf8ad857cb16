// Package server provides HTTP routing, middleware, sessions and handlers for the credential proxy web app.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /health") internally.
// Routes can carry their own middleware, which is how the rate limits are attached.
//
// # Middleware
//
//   - [RequestLogger] : method, path, status, duration
//   - [Recoverer] : panics become 500s
//   - [SecurityHeaders] : X-Frame-Options, X-Content-Type-Options, Referrer-Policy
//   - [RateLimiter] : in-memory token buckets keyed by client IP or session subject
//
// # OAuth Handler
//
// [OAuthHandler] implements the authorization code flow for browsers.
//
// The login route stores a random state in a short-lived cookie and the callback compares it with the
// query parameter before exchanging the code. Any failure redirects to "/" without a session.
//
// # Sessions
//
// [Sessions] keeps the logged in provider id in an HS256 JWT cookie. Nothing is stored server side.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
