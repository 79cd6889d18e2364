package session

import (
	"time"

	"github.com/desertthunder/spotbar/internal/models"
)

// nextPausedDelay decides the delay after a paused result.
//
// The first paused result arms the deadline at now+grace. Until it passes the
// poller stays at the playing rate; afterwards it drops to the idle rate. The
// deadline is returned unchanged once set and is only cleared by a non-paused result.
func nextPausedDelay(now time.Time, deadline *time.Time, settings models.Settings) (time.Duration, *time.Time) {
	if deadline == nil {
		d := now.Add(settings.Grace())
		deadline = &d
	}

	if !now.Before(*deadline) {
		return settings.IdleDelay(), deadline
	}
	return settings.PlayingDelay(), deadline
}
