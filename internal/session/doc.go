// Package session drives the now-playing poller for an attached presenter.
//
// # Controller
//
// [Controller] owns the visibility flag, the pause grace deadline and the
// pending timer. A presenter calls [Controller.Attach] when it becomes visible
// and [Controller.Detach] when it goes away; polling only runs in between.
//
// # Scheduling
//
// Timers are armed through the [Alarm] port. Each poll runs in three steps:
//
//  1. the alarm fires and the current token and settings are read from the store
//  2. one fetch runs without the lock held
//  3. the result is classified, emitted and the next timer is armed
//
// Delays come from the stored settings: the playing interval after a playing
// result, the idle interval after idle and error results, and the grace policy
// ([nextPausedDelay]) after a paused result. A 401 clears the token and stops
// the poller; it is the only result that halts the timer chain.
//
// # Commands
//
// Presenters talk to the session through [Command] values passed to
// [Controller.Dispatch]. [Controller.Watch] subscribes to the settings store
// so client id and album display edits take effect without a restart.
package session
