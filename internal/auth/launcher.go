package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/server"
	"github.com/desertthunder/spotbar/internal/shared"
)

// LoopbackLauncher opens the system browser and waits for the redirect on a temporary local server.
type LoopbackLauncher struct {
	RedirectURI string
	Timeout     time.Duration
	Open        func(string) error // defaults to [shared.OpenBrowser]
	Out         io.Writer          // receives the URL when the browser cannot be opened
	Logger      *log.Logger
}

var _ Launcher = (*LoopbackLauncher)(nil)

// Launch needs the user, so a non-interactive launch fails with [shared.ErrInteractionRequired].
func (l *LoopbackLauncher) Launch(ctx context.Context, authURL string, interactive bool) (string, error) {
	if !interactive {
		return "", shared.ErrInteractionRequired
	}

	redirect, err := url.Parse(l.RedirectURI)
	if err != nil || redirect.Host == "" {
		return "", fmt.Errorf("%w: redirect uri %q", shared.ErrInvalidConfig, l.RedirectURI)
	}
	parsed, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("%w: authorization url: %v", shared.ErrInvalidArgument, err)
	}

	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}

	handler := server.NewCallbackHandler(redirect.Path, parsed.Query().Get("state"))
	router := server.NewBasicRouter()
	router.Use(server.Logging(logger))
	router.Handler(handler)

	srv, err := server.Listen(redirect.Host, router, logger)
	if err != nil {
		return "", err
	}
	defer srv.Shutdown()

	open := l.Open
	if open == nil {
		open = shared.OpenBrowser
	}
	if err := open(authURL); err != nil {
		logger.Warn("could not open browser", "error", err)
		if l.Out != nil {
			fmt.Fprintf(l.Out, "Open this URL in your browser to authorize spotbar:\n\n%s\n\n", authURL)
		}
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case res := <-handler.Result():
		if res.Err != nil {
			return "", res.Err
		}
		return res.RedirectURL.String(), nil
	case err, ok := <-srv.Errors():
		if ok && err != nil {
			return "", fmt.Errorf("callback server failed: %w", err)
		}
		return "", shared.ErrAuthCancelled
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: no authorization callback after %s", shared.ErrTimeout, timeout)
		}
		return "", shared.ErrAuthCancelled
	}
}
