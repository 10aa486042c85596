package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ailawyer-pro/ailawyer/internal/models"
)

// manualScheduler queues callbacks until the test fires them
type manualScheduler struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: d, f: f}
	s.pending = append(s.pending, t)
	return t
}

// next pops the oldest queued callback
func (s *manualScheduler) next(t *testing.T) *manualTimer {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.pending, "no scheduled callback")
	timer := s.pending[0]
	s.pending = s.pending[1:]
	return timer
}

// fire runs the oldest queued callback even if it was stopped, the way a
// timer that already started firing would.
func (s *manualScheduler) fire(t *testing.T) time.Duration {
	t.Helper()
	timer := s.next(t)
	timer.f()
	return timer.delay
}

func (s *manualScheduler) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// scriptedChecker returns results in order, then repeats the last one
type scriptedChecker struct {
	mu      sync.Mutex
	results []checkResult
	calls   int
}

type checkResult struct {
	status SessionStatus
	err    error
}

func (c *scriptedChecker) CheckSession(context.Context) (SessionStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.results) {
		i = len(c.results) - 1
	}
	c.calls++
	return c.results[i].status, c.results[i].err
}

func (c *scriptedChecker) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var (
	signedOut     = checkResult{status: SessionStatus{}}
	storeDown     = checkResult{err: errors.New("network error")}
	signedIn      = checkResult{status: SessionStatus{Authenticated: true, Role: models.RoleUser}}
	signedInAdmin = checkResult{status: SessionStatus{Authenticated: true, Role: models.RoleAdmin}}
)

func newTestMirror(checker SessionChecker, policy Policy) (*Mirror, *manualScheduler, *[]Outcome) {
	sched := &manualScheduler{}
	var settled []Outcome
	m := New(checker, Config{
		Policy:    policy,
		Scheduler: sched,
		OnSettle:  func(o Outcome) { settled = append(settled, o) },
	})
	return m, sched, &settled
}

func TestMirror_SettlesUnauthenticatedOnFourthEvaluation(t *testing.T) {
	checker := &scriptedChecker{results: []checkResult{storeDown, signedOut, storeDown, signedOut}}
	m, sched, settled := newTestMirror(checker, RequireAuth)

	require.NoError(t, m.Navigate("/dashboard"))
	assert.Equal(t, Loading, m.State())

	assert.Equal(t, time.Duration(0), sched.fire(t), "initial check runs immediately")
	for i := 1; i <= 3; i++ {
		assert.Equal(t, Loading, m.State(), "still loading after evaluation %d", i)
		assert.Equal(t, 300*time.Millisecond, sched.fire(t))
	}
	assert.Equal(t, 4, checker.Calls())
	assert.Equal(t, Unauthenticated, m.State())

	sched.fire(t)
	assert.Equal(t, Redirected, m.State())
	assert.Zero(t, sched.queued(), "no polling after settling")

	require.Len(t, *settled, 1)
	out := (*settled)[0]
	assert.Equal(t, "/sign-in", out.RedirectTo)
	assert.Equal(t, "/dashboard", out.From)
	assert.Equal(t, 4, out.Evaluations)
	assert.False(t, out.Authenticated)
}

func TestMirror_RetryRecoversLateSession(t *testing.T) {
	// Cookie not yet visible on the first check after sign-in
	checker := &scriptedChecker{results: []checkResult{signedOut, signedIn}}
	m, sched, settled := newTestMirror(checker, RequireAuth)

	require.NoError(t, m.Navigate("/cases"))
	sched.fire(t)
	sched.fire(t)
	assert.Equal(t, Authenticated, m.State())
	sched.fire(t)

	assert.Equal(t, Rendered, m.State())
	require.Len(t, *settled, 1)
	assert.Equal(t, 2, (*settled)[0].Evaluations)
	assert.Empty(t, (*settled)[0].RedirectTo)
}

func TestMirror_AdminPolicy(t *testing.T) {
	t.Run("non-admin goes home", func(t *testing.T) {
		m, sched, _ := newTestMirror(&scriptedChecker{results: []checkResult{signedIn}}, RequireAdmin)
		require.NoError(t, m.Navigate("/admin"))
		sched.fire(t)
		sched.fire(t)

		out := m.Outcome()
		assert.Equal(t, Redirected, out.State)
		assert.Equal(t, "/", out.RedirectTo)
		assert.Equal(t, "/admin", out.From)
		assert.Equal(t, models.RoleUser, out.Role)
	})

	t.Run("admin renders", func(t *testing.T) {
		m, sched, _ := newTestMirror(&scriptedChecker{results: []checkResult{signedInAdmin}}, RequireAdmin)
		require.NoError(t, m.Navigate("/admin"))
		sched.fire(t)
		sched.fire(t)
		assert.Equal(t, Rendered, m.State())
	})

	t.Run("signed out goes to sign-in", func(t *testing.T) {
		m, sched, _ := newTestMirror(&scriptedChecker{results: []checkResult{signedOut}}, RequireAdmin)
		require.NoError(t, m.Navigate("/admin"))
		for i := 0; i < 5; i++ {
			sched.fire(t)
		}
		assert.Equal(t, "/sign-in", m.Outcome().RedirectTo)
	})
}

func TestMirror_CloseDuringPendingCheck(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	checker := CheckerFunc(func(ctx context.Context) (SessionStatus, error) {
		close(started)
		<-release
		return SessionStatus{}, errors.New("late failure")
	})
	m, sched, settled := newTestMirror(checker, RequireAuth)
	require.NoError(t, m.Navigate("/dashboard"))

	timer := sched.next(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		timer.f()
	}()

	<-started
	m.Close()
	close(release)
	<-done

	assert.Equal(t, Loading, m.State(), "state untouched after unmount")
	assert.Zero(t, sched.queued(), "no retry scheduled after unmount")
	assert.Empty(t, *settled)
	assert.ErrorIs(t, m.Navigate("/elsewhere"), ErrClosed)
}

func TestMirror_CloseStopsPendingRetry(t *testing.T) {
	m, sched, settled := newTestMirror(&scriptedChecker{results: []checkResult{signedOut}}, RequireAuth)
	require.NoError(t, m.Navigate("/dashboard"))
	sched.fire(t)

	m.Close()
	m.Close()

	// A timer that fires anyway is inert
	sched.fire(t)
	assert.Zero(t, sched.queued())
	assert.Empty(t, *settled)
}

func TestMirror_NavigateSupersedesLoop(t *testing.T) {
	checker := &scriptedChecker{results: []checkResult{signedOut, signedOut, signedIn}}
	m, sched, settled := newTestMirror(checker, RequireAuth)

	require.NoError(t, m.Navigate("/a"))
	sched.fire(t) // first loop fails and schedules a retry

	require.NoError(t, m.Navigate("/b"))
	assert.Equal(t, Loading, m.State())

	// Stale retry from /a runs but has no effect
	sched.fire(t)
	assert.Equal(t, 1, checker.Calls())
	assert.Equal(t, 1, sched.queued())

	sched.fire(t) // /b initial check: signed out
	sched.fire(t) // /b retry: signed in
	sched.fire(t) // render
	require.Len(t, *settled, 1)
	assert.Equal(t, "/b", (*settled)[0].Path)
	assert.Equal(t, Rendered, (*settled)[0].State)
}

func TestMirror_ReentersLoadingOnPathChange(t *testing.T) {
	m, sched, settled := newTestMirror(&scriptedChecker{results: []checkResult{signedIn}}, RequireAuth)

	require.NoError(t, m.Navigate("/one"))
	sched.fire(t)
	sched.fire(t)
	assert.Equal(t, Rendered, m.State())

	require.NoError(t, m.Navigate("/two"))
	assert.Equal(t, Loading, m.State())
	sched.fire(t)
	sched.fire(t)
	assert.Equal(t, Rendered, m.State())
	assert.Len(t, *settled, 2)
}

func TestMirror_Wait(t *testing.T) {
	m := New(&scriptedChecker{results: []checkResult{signedIn}}, Config{RetryInterval: time.Millisecond})
	defer m.Close()

	_, err := m.Wait(context.Background())
	assert.Error(t, err, "wait before navigate")

	require.NoError(t, m.Navigate("/dashboard"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := m.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Rendered, out.State)
}

func TestMirror_WaitRealTimerRetries(t *testing.T) {
	checker := &scriptedChecker{results: []checkResult{storeDown}}
	m := New(checker, Config{RetryInterval: time.Millisecond})
	defer m.Close()

	require.NoError(t, m.Navigate("/dashboard"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := m.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Redirected, out.State)
	assert.Equal(t, 4, checker.Calls())
}

func TestMirror_WaitAfterClose(t *testing.T) {
	m, _, _ := newTestMirror(&scriptedChecker{results: []checkResult{signedIn}}, RequireAuth)
	require.NoError(t, m.Navigate("/dashboard"))
	m.Close()

	_, err := m.Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "redirected", Redirected.String())
	assert.True(t, Rendered.Terminal())
	assert.False(t, Authenticated.Terminal())
}
