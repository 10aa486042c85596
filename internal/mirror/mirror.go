// Package mirror keeps client-side auth state in step with the server
// session. A Mirror is mounted on a view, re-checks the session on every
// path change with bounded retries, and settles into either rendering the
// view or redirecting.
package mirror

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ailawyer-pro/ailawyer/internal/models"
)

// ErrClosed is returned by operations on an unmounted Mirror
var ErrClosed = errors.New("mirror closed")

// State of a Mirror
type State int

const (
	Idle State = iota
	Loading
	Authenticated
	Unauthenticated
	Rendered
	Redirected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	case Rendered:
		return "rendered"
	case Redirected:
		return "redirected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further polling happens in this state
func (s State) Terminal() bool {
	return s == Rendered || s == Redirected
}

// Policy is the access rule of the guarded view
type Policy int

const (
	RequireAuth Policy = iota
	RequireAdmin
)

// SessionStatus is what a session check reports
type SessionStatus struct {
	Authenticated bool
	Role          string
}

// SessionChecker queries the session store
type SessionChecker interface {
	CheckSession(ctx context.Context) (SessionStatus, error)
}

// CheckerFunc adapts a function to SessionChecker
type CheckerFunc func(ctx context.Context) (SessionStatus, error)

func (f CheckerFunc) CheckSession(ctx context.Context) (SessionStatus, error) {
	return f(ctx)
}

// Timer is a pending scheduled call
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d on its own goroutine
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Outcome describes how a navigation settled
type Outcome struct {
	State         State
	Path          string
	Authenticated bool
	Role          string
	// RedirectTo and From are set when State is Redirected. From is the
	// originally requested path, kept for post-login return.
	RedirectTo string
	From       string
	// Evaluations is the number of session checks it took to settle
	Evaluations int
}

// Config configures a Mirror
type Config struct {
	Policy        Policy
	MaxAttempts   int           // retries after the initial check (default 3)
	RetryInterval time.Duration // delay between checks (default 300ms)
	SignInPath    string        // default "/sign-in"
	HomePath      string        // default "/"
	Scheduler     Scheduler     // default time.AfterFunc
	OnSettle      func(Outcome)
	Logger        zerolog.Logger
}

func (c *Config) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 300 * time.Millisecond
	}
	if c.SignInPath == "" {
		c.SignInPath = "/sign-in"
	}
	if c.HomePath == "" {
		c.HomePath = "/"
	}
	if c.Scheduler == nil {
		c.Scheduler = clockScheduler{}
	}
}

// Mirror is the state machine
// Idle → Loading → {Authenticated, Unauthenticated} → Rendered | Redirected.
// Loading is re-entered on every Navigate. Each navigation runs one polling
// loop owned by a cancellable context; a superseded or unmounted loop never
// touches state again.
type Mirror struct {
	checker SessionChecker
	cfg     Config
	logger  zerolog.Logger

	mu      sync.Mutex
	state   State
	path    string
	attempt int
	outcome Outcome
	cancel  context.CancelFunc
	timer   Timer
	settled chan struct{}
	closed  bool
}

// New creates an idle Mirror. Nothing is checked until Navigate.
func New(checker SessionChecker, cfg Config) *Mirror {
	cfg.setDefaults()
	return &Mirror{
		checker: checker,
		cfg:     cfg,
		logger:  cfg.Logger.With().Str("component", "auth_mirror").Logger(),
		state:   Idle,
		settled: make(chan struct{}),
	}
}

// Navigate mounts the mirror on path, or moves it there. Any loop in flight
// is cancelled and a new one starts from Loading.
func (m *Mirror) Navigate(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.stopLoop()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = Loading
	m.path = path
	m.attempt = 0
	m.outcome = Outcome{State: Loading, Path: path}
	m.settled = make(chan struct{})

	m.logger.Debug().Str("path", path).Msg("Checking session")
	m.schedule(ctx, 0)
	return nil
}

// Close unmounts the mirror. Pending checks finish without effect.
func (m *Mirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.stopLoop()
}

// State returns the current state
func (m *Mirror) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Outcome returns the latest outcome. Its State is terminal once settled.
func (m *Mirror) Outcome() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// Wait blocks until the current navigation settles. A navigation superseded
// by a newer Navigate is followed to the newer one.
func (m *Mirror) Wait(ctx context.Context) (Outcome, error) {
	for {
		m.mu.Lock()
		if m.state.Terminal() {
			out := m.outcome
			m.mu.Unlock()
			return out, nil
		}
		if m.closed {
			m.mu.Unlock()
			return Outcome{}, ErrClosed
		}
		if m.state == Idle {
			m.mu.Unlock()
			return Outcome{}, errors.New("mirror not navigated")
		}
		settled := m.settled
		m.mu.Unlock()

		select {
		case <-settled:
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}
}

// stopLoop cancels the active loop and releases its waiters. Caller holds mu.
func (m *Mirror) stopLoop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.release()
}

func (m *Mirror) release() {
	select {
	case <-m.settled:
	default:
		close(m.settled)
	}
}

// schedule queues the next check of the loop owning ctx. Caller holds mu.
func (m *Mirror) schedule(ctx context.Context, delay time.Duration) {
	m.timer = m.cfg.Scheduler.AfterFunc(delay, func() {
		m.evaluate(ctx)
	})
}

func (m *Mirror) evaluate(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	status, err := m.checker.CheckSession(ctx)

	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}

	m.timer = nil
	evaluations := m.attempt + 1
	ok := err == nil && status.Authenticated
	if !ok && m.attempt < m.cfg.MaxAttempts {
		m.attempt++
		m.logger.Debug().
			Err(err).
			Str("path", m.path).
			Int("attempt", m.attempt).
			Msg("No session yet, retrying")
		m.schedule(ctx, m.cfg.RetryInterval)
		m.mu.Unlock()
		return
	}

	if ok {
		m.state = Authenticated
	} else {
		m.state = Unauthenticated
	}
	m.outcome = Outcome{
		State:         m.state,
		Path:          m.path,
		Authenticated: ok,
		Role:          status.Role,
		Evaluations:   evaluations,
	}
	// The render pass that acts on the new state runs as its own step
	m.timer = m.cfg.Scheduler.AfterFunc(0, func() {
		m.decide(ctx)
	})
	m.mu.Unlock()
}

// decide turns Authenticated or Unauthenticated into Rendered or Redirected
func (m *Mirror) decide(ctx context.Context) {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	out := m.settle()
	onSettle := m.cfg.OnSettle
	m.mu.Unlock()

	if onSettle != nil {
		onSettle(out)
	}
}

// settle records the terminal decision. Caller holds mu.
func (m *Mirror) settle() Outcome {
	out := m.outcome

	switch {
	case !out.Authenticated:
		out.State = Redirected
		out.RedirectTo = m.cfg.SignInPath
		out.From = m.path
	case m.cfg.Policy == RequireAdmin && out.Role != models.RoleAdmin:
		out.State = Redirected
		out.RedirectTo = m.cfg.HomePath
		out.From = m.path
	default:
		out.State = Rendered
	}

	m.state = out.State
	m.outcome = out
	m.release()

	m.logger.Debug().
		Str("path", out.Path).
		Str("state", out.State.String()).
		Str("redirect_to", out.RedirectTo).
		Int("evaluations", out.Evaluations).
		Msg("Session check settled")
	return out
}
