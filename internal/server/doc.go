// Package server provides HTTP routing, middleware, and OAuth handling for CLI and web interfaces.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with "METHOD /path" patterns.
//
// Provided middleware: [RequestID], [Logging] (charmbracelet/log, one line per request) and [Recover].
//
// # OAuth Callback Handler
//
// OAuthHandler completes an [auth.Session] from the loopback redirect.
//
// The session validates the state parameter (CSRF protection) and exchanges the authorization code for tokens;
// the handler sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Lifecycle
//
// [New] and [Serve] give both the web app and the temporary CLI callback server the same timeouts
// and graceful shutdown on context cancellation.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
