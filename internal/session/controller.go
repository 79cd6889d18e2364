package session

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/metrics"
	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/services"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/desertthunder/spotbar/internal/store"
	"golang.org/x/time/rate"
)

// Controller owns the session state and drives the poller.
//
// Every mutation happens under mu, so alarm callbacks, fetch completions and
// UI commands never interleave. The network call itself runs unlocked; its
// result is discarded if the session was stopped or detached in the meantime.
type Controller struct {
	store   *store.Store
	fetcher services.Fetcher
	alarm   Alarm
	logger  *log.Logger
	metrics *metrics.Metrics
	limiter *rate.Limiter
	now     func() time.Time

	openURI   func(string) error
	openSetup func()

	authMu sync.RWMutex
	auth   Authenticator

	mu            sync.Mutex
	visible       bool
	presenter     Presenter
	ctx           context.Context
	cancel        context.CancelFunc
	state         schedState
	graceDeadline *time.Time
	seq           uint64 // identifies the armed timer
	epoch         uint64 // bumped on every stop; in-flight fetches from an older epoch are dropped
	inFlight      bool
	pendingForce  bool
	cancelFetch   context.CancelFunc
}

// NewController creates a detached controller in the stopped state.
func NewController(opts Options) *Controller {
	opts.withDefaults()
	return &Controller{
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		alarm:     opts.Alarm,
		logger:    shared.WithLogger(opts.Logger, "component", "session"),
		metrics:   opts.Metrics,
		limiter:   rate.NewLimiter(opts.ForcePollLimit, opts.ForcePollBurst),
		now:       opts.Now,
		openURI:   opts.OpenURI,
		openSetup: opts.OpenSetup,
		ctx:       context.Background(),
	}
}

// UseAuthenticator sets the authenticator used by [Controller.Login].
//
// The authenticator usually emits through this controller, hence the late binding.
func (c *Controller) UseAuthenticator(a Authenticator) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	c.auth = a
}

// Attach marks the presenter visible and starts polling.
//
// Attachments are not reference counted: attaching again replaces the presenter
// and restarts polling, and a single [Controller.Detach] ends the session.
func (c *Controller) Attach(ctx context.Context, p Presenter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.presenter = p
	if !c.visible {
		c.visible = true
		c.ctx, c.cancel = context.WithCancel(ctx)
		c.metrics.SetAttached(true)
		c.logger.Info("presenter attached, polling started")
	}
	c.startPollingLocked()
}

// Detach marks the presenter gone, stops polling and abandons any in-flight fetch.
func (c *Controller) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.visible {
		return
	}
	c.visible = false
	c.presenter = nil
	c.stopLocked()
	if c.cancel != nil {
		c.cancel()
	}
	c.metrics.SetAttached(false)
	c.logger.Info("presenter detached, polling stopped")
}

// Visible reports whether a presenter is attached.
func (c *Controller) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// Emit delivers u to the attached presenter. Nothing is delivered while detached.
func (c *Controller) Emit(u models.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitLocked(u)
}

func (c *Controller) emitLocked(u models.Update) {
	if !c.visible || c.presenter == nil {
		return
	}
	c.metrics.ObserveEmit(string(u.State))
	c.presenter.Present(u)
}

// ForcePoll collapses any pending delay to zero.
//
// It is a no-op while detached. A request during an in-flight fetch is
// deferred until that fetch completes, so two fetches never overlap.
func (c *Controller) ForcePoll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forcePollLocked()
}

func (c *Controller) forcePollLocked() {
	switch {
	case !c.visible:
		c.metrics.ObserveForcePoll("detached")
	case !c.limiter.Allow():
		c.logger.Debug("force poll throttled")
		c.metrics.ObserveForcePoll("throttled")
	case c.inFlight:
		c.pendingForce = true
		c.metrics.ObserveForcePoll("deferred")
	default:
		c.scheduleLocked(0)
		c.metrics.ObserveForcePoll("scheduled")
	}
}

// Login runs the interactive authorization flow and resumes polling on success.
func (c *Controller) Login(ctx context.Context) (string, bool) {
	c.authMu.RLock()
	a := c.auth
	c.authMu.RUnlock()

	if a == nil {
		c.logger.Error("login requested without an authenticator")
		return "", false
	}

	token, ok := a.Authenticate(ctx, true)
	if !ok {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visible {
		c.startPollingLocked()
	}
	return token, true
}

// Logout forgets the access token, stops polling and asks the presenter to log in.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.store.RemoveToken(ctx); err != nil {
		c.logger.Error("failed to remove access token", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.emitLocked(models.Update{State: models.StateLogin})
}

// OpenSetup surfaces the setup flow.
func (c *Controller) OpenSetup() {
	c.mu.Lock()
	p, _ := c.presenter.(SetupPresenter)
	visible := c.visible
	c.mu.Unlock()

	switch {
	case visible && p != nil:
		p.ShowSetup()
	case c.openSetup != nil:
		c.openSetup()
	default:
		c.logger.Info("no client id configured, run `spotbar setup client`")
	}
}

// OpenURI hands a spotify: URI to the OS handler.
func (c *Controller) OpenURI(uri string) error {
	if c.openURI == nil {
		return shared.ErrNotImplemented
	}
	if err := c.openURI(uri); err != nil {
		c.logger.Warn("failed to open uri", "uri", uri, "error", err)
		return err
	}
	return nil
}

// State returns the scheduler state name, for status output and tests.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.String()
}

// startPollingLocked arms an immediate poll when a client id and token exist,
// otherwise it stops and tells the presenter what the user must do.
func (c *Controller) startPollingLocked() {
	if !c.visible {
		return
	}

	clientID, err := c.store.ClientID(c.ctx)
	if err != nil {
		c.logger.Error("failed to read client id", "error", err)
		return
	}
	if clientID == "" {
		c.stopLocked()
		c.emitLocked(models.Update{State: models.StateSetupRequired})
		return
	}

	token, err := c.store.Token(c.ctx)
	if err != nil {
		c.logger.Error("failed to read access token", "error", err)
		return
	}
	if token == "" {
		c.stopLocked()
		c.emitLocked(models.Update{State: models.StateLogin})
		return
	}

	c.scheduleLocked(0)
}

// scheduleLocked arms the next poll, superseding any pending timer.
func (c *Controller) scheduleLocked(d time.Duration) {
	if !c.visible {
		return
	}
	c.seq++
	seq := c.seq
	c.state = stateScheduled
	c.alarm.Schedule(d, func() { c.fire(seq) })
	c.logger.Debug("next poll scheduled", "in", d)
}

// stopLocked cancels the pending timer and any in-flight fetch and clears the grace deadline.
func (c *Controller) stopLocked() {
	c.alarm.Cancel()
	c.seq++
	c.epoch++
	c.state = stateStopped
	c.graceDeadline = nil
	c.pendingForce = false
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
}

// fire is the alarm callback for the timer identified by seq.
func (c *Controller) fire(seq uint64) {
	c.mu.Lock()
	if seq != c.seq || !c.visible || c.state != stateScheduled {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.pendingForce = true
		c.mu.Unlock()
		return
	}

	token, err := c.store.Token(c.ctx)
	if err != nil {
		c.logger.Error("failed to read access token", "error", err)
		c.scheduleAfterStoreFailureLocked()
		c.mu.Unlock()
		return
	}
	if token == "" {
		clientID, _ := c.store.ClientID(c.ctx)
		c.stopLocked()
		if clientID == "" {
			c.emitLocked(models.Update{State: models.StateSetupRequired})
		} else {
			c.emitLocked(models.Update{State: models.StateLogin})
		}
		c.mu.Unlock()
		return
	}

	settings, err := c.store.LoadSettings(c.ctx)
	if err != nil {
		c.logger.Warn("failed to load settings, using defaults", "error", err)
		settings = models.DefaultSettings()
	}

	c.state = stateFiring
	c.inFlight = true
	epoch := c.epoch
	fetchCtx, cancel := context.WithCancel(c.ctx)
	c.cancelFetch = cancel
	c.mu.Unlock()

	start := time.Now()
	res := c.fetcher.FetchOnce(fetchCtx, token)
	cancel()

	c.complete(epoch, settings, res, time.Since(start))
}

// scheduleAfterStoreFailureLocked keeps the timer chain alive at the idle rate.
func (c *Controller) scheduleAfterStoreFailureLocked() {
	c.scheduleLocked(models.DefaultSettings().IdleDelay())
}

// complete applies a fetch result: emission, grace bookkeeping and the next timer.
func (c *Controller) complete(epoch uint64, settings models.Settings, res services.Result, took time.Duration) {
	if res.Kind == services.KindUnauthorized {
		if err := c.store.RemoveToken(context.Background()); err != nil {
			c.logger.Error("failed to remove rejected access token", "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false
	c.cancelFetch = nil

	if epoch != c.epoch || !c.visible || res.Cancelled() {
		c.logger.Debug("discarding stale poll result", "result", res.Kind)
		if c.pendingForce && c.visible && res.Kind != services.KindUnauthorized {
			c.pendingForce = false
			c.scheduleLocked(0)
		}
		return
	}

	c.metrics.ObservePoll(string(res.Kind), took)
	state := res.State()

	switch res.Kind {
	case services.KindPlaying:
		c.graceDeadline = nil
		c.emitLocked(models.Update{State: state, Data: res.Snapshot})
		c.scheduleLocked(settings.PlayingDelay())
	case services.KindPaused:
		delay, deadline := nextPausedDelay(c.now(), c.graceDeadline, settings)
		c.graceDeadline = deadline
		c.emitLocked(models.Update{State: state, Data: res.Snapshot})
		c.scheduleLocked(delay)
	case services.KindIdle, services.KindAPIError, services.KindNetworkError:
		if res.Kind != services.KindIdle {
			c.logger.Warn("poll failed", "result", res.Kind, "error", res.Err)
		}
		c.graceDeadline = nil
		c.emitLocked(models.Update{State: state})
		c.scheduleLocked(settings.IdleDelay())
	case services.KindUnauthorized:
		c.logger.Info("access token rejected, login required")
		c.emitLocked(models.Update{State: state})
		c.stopLocked()
		return
	default:
		c.logger.Warn("poll returned an unhandled status, polling halted", "status", res.StatusCode)
		c.state = stateStopped
	}

	if c.pendingForce {
		c.pendingForce = false
		c.scheduleLocked(0)
	}
}
