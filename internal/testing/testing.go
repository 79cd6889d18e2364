// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotbar/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// FakeAlarm records scheduled delays and only runs a callback when Fire is called.
type FakeAlarm struct {
	mu        sync.Mutex
	pending   func()
	delay     time.Duration
	scheduled []time.Duration
	cancels   int
}

func (a *FakeAlarm) Schedule(d time.Duration, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = fn
	a.delay = d
	a.scheduled = append(a.scheduled, d)
}

func (a *FakeAlarm) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = nil
	a.cancels++
}

// Pending reports the delay of the armed timer, if any.
func (a *FakeAlarm) Pending() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.delay, a.pending != nil
}

// Scheduled returns every delay passed to Schedule, in order.
func (a *FakeAlarm) Scheduled() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Duration(nil), a.scheduled...)
}

// Fire runs the pending callback synchronously and reports whether one was armed.
func (a *FakeAlarm) Fire() bool {
	a.mu.Lock()
	fn := a.pending
	a.pending = nil
	a.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// FireAsync runs the pending callback on a goroutine; the returned channel closes when it returns.
func (a *FakeAlarm) FireAsync() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Fire()
	}()
	return done
}

// RecordingPresenter stores every update it is given.
type RecordingPresenter struct {
	mu      sync.Mutex
	updates []models.Update
	setups  int
}

func (p *RecordingPresenter) Present(u models.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
}

func (p *RecordingPresenter) ShowSetup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setups++
}

func (p *RecordingPresenter) Updates() []models.Update {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Update(nil), p.updates...)
}

// States returns the state of each recorded update.
func (p *RecordingPresenter) States() []models.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	states := make([]models.State, 0, len(p.updates))
	for _, u := range p.updates {
		states = append(states, u.State)
	}
	return states
}

func (p *RecordingPresenter) SetupsShown() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setups
}

// StubLauncher returns a canned redirect URL instead of opening a browser.
type StubLauncher struct {
	mu          sync.Mutex
	RedirectURL string
	Err         error
	URLs        []string
	Interactive []bool

	// Redirect, when set, builds the redirect from the authorization URL (e.g. to echo state).
	Redirect func(authURL string) (string, error)
}

func (l *StubLauncher) Launch(ctx context.Context, authURL string, interactive bool) (string, error) {
	l.mu.Lock()
	l.URLs = append(l.URLs, authURL)
	l.Interactive = append(l.Interactive, interactive)
	l.mu.Unlock()

	if l.Redirect != nil {
		return l.Redirect(authURL)
	}
	return l.RedirectURL, l.Err
}

// Calls returns how many times Launch ran.
func (l *StubLauncher) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.URLs)
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
