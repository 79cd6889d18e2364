// Package server provides HTTP routing, middleware, and the loopback OAuth callback receiver.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [BasicRouter] implements it over [http.ServeMux] with method filtering.
// [Middleware] is applied so the first one added runs outermost.
//
// # OAuth Callback Handler
//
// [CallbackHandler] receives the Spotify authorization redirect on
// http://host:port/callback. It validates the state parameter and passes the
// redirect URL back through a channel. It only processes one callback.
//
// The code exchange happens in the auth package, because the PKCE verifier
// must be sent alongside the code and never leaves the authenticator.
//
// # Listeners
//
// [Listen] binds eagerly and serves in the background. It backs both the
// temporary callback server started per login and the optional metrics endpoint.
package server
