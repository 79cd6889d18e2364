package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotbar/internal/models"
	"github.com/desertthunder/spotbar/internal/session"
)

const updateBuffer = 64

var (
	_ session.Presenter      = (*Presenter)(nil)
	_ session.SetupPresenter = (*Presenter)(nil)
)

// Presenter bridges the session to the bubbletea loop through a channel.
//
// Present blocks only while the buffer is full and returns immediately once
// [Presenter.Close] has been called, so the session lock is never held
// against a program that has exited.
type Presenter struct {
	updates chan models.Update
	setup   chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewPresenter() *Presenter {
	return &Presenter{
		updates: make(chan models.Update, updateBuffer),
		setup:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Present queues u for the UI, preserving order.
func (p *Presenter) Present(u models.Update) {
	select {
	case p.updates <- u:
	case <-p.done:
	}
}

// ShowSetup asks the UI to switch to the setup view. Repeated requests collapse into one.
func (p *Presenter) ShowSetup() {
	select {
	case p.setup <- struct{}{}:
	default:
	}
}

// Close releases any blocked Present call. Safe to call more than once.
func (p *Presenter) Close() {
	p.once.Do(func() { close(p.done) })
}

// wait returns a [tea.Cmd] that delivers the next queued event.
//
// Updates are drained before a setup request so a setup view is never
// overwritten by an older state.
func (p *Presenter) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-p.updates:
			return stateUpdateMsg(u)
		default:
		}

		select {
		case u := <-p.updates:
			return stateUpdateMsg(u)
		case <-p.setup:
			return setupRequestedMsg()
		case <-p.done:
			return presenterClosedMsg()
		}
	}
}
