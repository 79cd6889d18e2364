package session

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/metrics"
	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/services"
	"github.com/desertthunder/spotbar/internal/store"
	"golang.org/x/time/rate"
)

// Presenter receives state updates in the order they are produced.
//
// Present is called with the session lock held and must not call back into the [Controller].
type Presenter interface {
	Present(update models.Update)
}

// PresenterFunc adapts a function to [Presenter].
type PresenterFunc func(models.Update)

func (f PresenterFunc) Present(u models.Update) { f(u) }

// SetupPresenter is implemented by presenters that can show the setup flow in place.
type SetupPresenter interface {
	ShowSetup()
}

// Authenticator obtains an access token, persisting it on success.
type Authenticator interface {
	Authenticate(ctx context.Context, interactive bool) (string, bool)
}

// schedState is the poller's position in its stopped → scheduled → firing cycle.
type schedState int

const (
	stateStopped schedState = iota
	stateScheduled
	stateFiring
)

func (s schedState) String() string {
	switch s {
	case stateScheduled:
		return "scheduled"
	case stateFiring:
		return "firing"
	}
	return "stopped"
}

// Options configures a [Controller]. Store and Fetcher are required.
type Options struct {
	Store   *store.Store
	Fetcher services.Fetcher
	Alarm   Alarm
	Logger  *log.Logger
	Metrics *metrics.Metrics

	// OpenURI hands spotify: URIs (and setup links) to the OS.
	OpenURI func(uri string) error
	// OpenSetup runs when setup is requested and the attached presenter cannot show it.
	OpenSetup func()

	// Now is the clock used for the pause grace deadline.
	Now func() time.Time

	ForcePollLimit rate.Limit
	ForcePollBurst int
}

const (
	defaultForcePollLimit = rate.Limit(4)
	defaultForcePollBurst = 4
)

func (o *Options) withDefaults() {
	if o.Alarm == nil {
		o.Alarm = NewTimerAlarm()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.ForcePollLimit == 0 {
		o.ForcePollLimit = defaultForcePollLimit
	}
	if o.ForcePollBurst == 0 {
		o.ForcePollBurst = defaultForcePollBurst
	}
}
