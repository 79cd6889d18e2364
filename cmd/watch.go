package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/metrics"
	"github.com/desertthunder/spotbar/internal/server"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/desertthunder/spotbar/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// Watch runs the now-playing TUI. The session stays attached until the TUI exits.
//
// Alongside the TUI it runs the store watcher and, when enabled, a metrics listener.
// The first of them to fail ends the others.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := r.tuiLogger()
	if err != nil {
		return err
	}
	r.SetLogger(fileLogger)

	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	m := metrics.New()
	ctl := r.newController(st, m)

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	if cmd.Bool("metrics") || r.config.Metrics.Enabled {
		srv, err := r.serveMetrics(m)
		if err != nil {
			return err
		}
		defer srv.Shutdown()

		g.Go(func() error {
			select {
			case err, ok := <-srv.Errors():
				if ok && err != nil {
					return fmt.Errorf("metrics server failed: %w", err)
				}
				return nil
			case <-gctx.Done():
				return nil
			}
		})
	}

	g.Go(func() error { return ctl.Watch(gctx) })

	presenter := ui.NewPresenter()
	model := ui.NewModel(gctx, ctl, st, presenter, r.config.Server.RedirectURI())

	g.Go(func() error {
		defer cancel()
		defer ctl.Detach()
		defer presenter.Close()

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (r *Runner) tuiLogger() (*log.Logger, error) {
	path := r.config.Log.File
	if path == "" {
		return shared.NewLogger(io.Discard), nil
	}

	logger, err := shared.NewFileLogger(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(logger, r.config.Log.ParsedLevel())
	return logger, nil
}

// serveMetrics exposes the session metrics at /metrics on the configured address.
func (r *Runner) serveMetrics(m *metrics.Metrics) (*server.Server, error) {
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handle(http.MethodGet, "/metrics", m.Handler())

	srv, err := server.Listen(r.config.Metrics.Addr, router, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}
	r.logger.Info("serving metrics", "addr", srv.Addr())
	return srv, nil
}
