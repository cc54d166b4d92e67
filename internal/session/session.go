// Package session tracks the terminal's unlocked state and enforces the
// idle-lock policy: an unlocked terminal relocks after sixty seconds
// without operator activity.
package session

import (
	"context"
	"sync"
	"time"
)

// IdleTimeout is how long the terminal may sit without activity before the
// session expires.
const IdleTimeout = 60 * time.Second

// State is the persisted session record.
type State struct {
	Authenticated  bool      `json:"authenticated"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Store holds one session state. The bool reports presence so an absent
// record is distinguishable from a zero one.
type Store interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, state State) error
	Clear(ctx context.Context) error
}

// Guard applies the idle policy on top of a Store. All methods are safe for
// concurrent use; store errors are treated as an expired session, never as
// a crash.
type Guard struct {
	mu    sync.Mutex
	store Store
	idle  time.Duration
	now   func() time.Time
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store, idle: IdleTimeout, now: time.Now}
}

// SetClock overrides the time source. Test helper.
func (g *Guard) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// IsAuthenticated reports whether the session is still live. A set flag
// without a usable activity timestamp, or one older than the idle timeout,
// forcibly clears the session.
func (g *Guard) IsAuthenticated(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok, err := g.store.Load(ctx)
	if err != nil || !ok || !state.Authenticated {
		return false
	}
	if state.LastActivityAt.IsZero() || g.now().Sub(state.LastActivityAt) > g.idle {
		_ = g.store.Clear(ctx)
		return false
	}
	return true
}

// SetAuthenticated unlocks or locks the session. Unlocking stamps the
// activity clock so the idle window starts now.
func (g *Guard) SetAuthenticated(ctx context.Context, v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !v {
		_ = g.store.Clear(ctx)
		return
	}
	_ = g.store.Save(ctx, State{Authenticated: true, LastActivityAt: g.now()})
}

// Touch refreshes the activity timestamp. It never resurrects an expired or
// locked session.
func (g *Guard) Touch(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, ok, err := g.store.Load(ctx)
	if err != nil || !ok || !state.Authenticated {
		return
	}
	state.LastActivityAt = g.now()
	_ = g.store.Save(ctx, state)
}

// Logout clears the session unconditionally.
func (g *Guard) Logout(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_ = g.store.Clear(ctx)
}
