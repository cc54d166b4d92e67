package session

import (
	"context"
	"time"
)

// EventKind is one of the operator-interaction event classes that count as
// activity.
type EventKind string

const (
	EventPointerMove EventKind = "pointer_move"
	EventPointerDown EventKind = "pointer_down"
	EventKeyDown     EventKind = "key_down"
	EventWheel       EventKind = "wheel"
	EventTouchStart  EventKind = "touch_start"
)

// WatchedEvents is the fixed set of event classes the watch subscribes to.
var WatchedEvents = []EventKind{
	EventPointerMove,
	EventPointerDown,
	EventKeyDown,
	EventWheel,
	EventTouchStart,
}

// ActivitySource delivers operator-interaction events. Subscribe returns a
// cancel function that stops delivery to the given handler.
type ActivitySource interface {
	Subscribe(kind EventKind, fn func()) (cancel func())
}

// PollInterval is how often the watch re-checks expiry. Polling is
// deliberate, not a fallback: expiry must fire even with zero activity, so
// a timer independent of the event subscriptions is required.
const PollInterval = 2 * time.Second

// StartWatch wires the guard to an activity source: every watched event
// touches the session, and a periodic check calls onExpired on each tick
// that finds the session no longer valid. The poll keeps running until
// stop, so a lock screen that missed one callback gets another. The
// returned stop function cancels the subscriptions and the poll; it is
// safe to call more than once.
func (g *Guard) StartWatch(ctx context.Context, src ActivitySource, onExpired func()) (stop func()) {
	return g.startWatch(ctx, src, onExpired, PollInterval)
}

func (g *Guard) startWatch(ctx context.Context, src ActivitySource, onExpired func(), every time.Duration) (stop func()) {
	cancels := make([]func(), 0, len(WatchedEvents))
	for _, kind := range WatchedEvents {
		cancels = append(cancels, src.Subscribe(kind, func() {
			g.Touch(ctx)
		}))
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !g.IsAuthenticated(ctx) {
					onExpired()
				}
			}
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		for _, cancel := range cancels {
			cancel()
		}
		close(done)
	}
}
