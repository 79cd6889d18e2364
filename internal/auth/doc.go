// Package auth implements Spotify's Authorization Code with PKCE flow.
//
// [Authenticator.Authenticate] reads the client id from the store, builds the
// authorization URL with an S256 challenge, hands it to a [Launcher] and
// exchanges the returned code (with the verifier and no client secret) for an
// access token through golang.org/x/oauth2.
//
// [LoopbackLauncher] is the default launcher. It serves the redirect URI on the
// loopback interface for the duration of one login and opens the browser.
package auth
