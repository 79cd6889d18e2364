package server

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
)

// CallbackResult is what the authorization server redirected back with.
//
// RedirectURL is the full URL the browser landed on; the caller extracts the code from it.
type CallbackResult struct {
	RedirectURL *url.URL
	Err         error
}

// CallbackHandler receives the OAuth2 authorization redirect on the loopback interface.
//
// It checks the state parameter and hands the redirect URL to the waiting caller. It does not
// exchange the code: that needs the PKCE verifier, which never leaves the authenticator.
// Only the first callback is processed.
type CallbackHandler struct {
	path   string
	state  string
	result chan CallbackResult
	once   sync.Once
	mu     sync.Mutex
	hit    bool
}

// NewCallbackHandler creates a handler serving path that expects the given state token.
func NewCallbackHandler(path, state string) *CallbackHandler {
	if path == "" {
		path = "/callback"
	}
	return &CallbackHandler{
		path:   path,
		state:  state,
		result: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP handles the redirect.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.send(CallbackResult{Err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	redirect := *r.URL
	h.send(CallbackResult{RedirectURL: &redirect})

	w.Header().Set("Content-Type", "text/html")
	if query.Get("code") == "" {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, callbackPage("Authorization Cancelled", "No authorization code was returned. You can close this window."))
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, callbackPage("✓ Authorization Successful", "You can close this window and return to the terminal."))
}

func (h *CallbackHandler) send(result CallbackResult) {
	h.once.Do(func() {
		h.result <- result
		close(h.result)
	})
}

// Result receives exactly one [CallbackResult] and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.result
}

func callbackPage(title, message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #121212; color: #fff; }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #b3b3b3; margin: 0; }
    </style>
</head>
<body>
    <div>
        <h1>%[1]s</h1>
        <p>%[2]s</p>
    </div>
</body>
</html>
`, title, message)
}
