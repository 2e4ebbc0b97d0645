package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis"
	"github.com/voxd/voxd/pkg/logger"
)

// queueCapacity bounds the per-session event queue. A subscriber that is not
// reading keeps events queued up to this limit; beyond it the oldest queued
// event is evicted so a terminal event can never be lost.
const queueCapacity = 256

// maxRetained bounds how many last-event entries survive channel teardown for
// slow-polling observers.
const maxRetained = 512

// Channel is the single-subscriber status feed for one session.
type Channel struct {
	sessionID string
	openedAt  time.Time
	events    chan Event
	done      chan struct{}
	teardown  sync.Once
}

// Events returns the subscriber side of the feed.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Done is closed exactly once when the channel is torn down.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Registry owns every live status channel, keyed by session id. It replaces
// ambient global state so the orchestrator and the status handlers share one
// injected instance, and multiple instances can coexist in tests.
type Registry struct {
	logger *logger.Logger

	mu       sync.RWMutex
	channels map[string]*Channel
	last     map[string]Event

	rc  *redis.Client // optional last-event mirror
	ttl time.Duration
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		logger:   log,
		channels: make(map[string]*Channel),
		last:     make(map[string]Event),
	}
}

// WithRedisMirror mirrors each session's last event into redis so
// current-status lookups survive process restarts.
func (r *Registry) WithRedisMirror(rc *redis.Client, ttl time.Duration) *Registry {
	r.rc = rc
	r.ttl = ttl
	return r
}

func lastEventKey(sessionID string) string {
	return fmt.Sprintf("voxd:session:%s:last", sessionID)
}

// Open creates the status channel for a session. It must be called before the
// first Publish for that session.
func (r *Registry) Open(sessionID string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[sessionID]; ok {
		return ch
	}
	ch := &Channel{
		sessionID: sessionID,
		openedAt:  time.Now(),
		events:    make(chan Event, queueCapacity),
		done:      make(chan struct{}),
	}
	r.channels[sessionID] = ch
	return ch
}

// Subscribe returns the channel for a session, or an error if none exists.
// Delivery is at-least-once to a single subscriber; there is no fan-out.
func (r *Registry) Subscribe(sessionID string) (*Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	return ch, nil
}

// Publish queues an event on the session's feed and refreshes the last-event
// cache. Publishing to an unknown or torn-down session only updates the cache,
// so a late error report still reaches a reconnecting observer.
func (r *Registry) Publish(ev Event) {
	ev.Timestamp = time.Now()

	r.mu.Lock()
	r.rememberLocked(ev)
	ch, ok := r.channels[ev.SessionID]
	r.mu.Unlock()

	r.mirror(ev)

	if !ok {
		r.logger.Debugf("status publish for unknown session %s dropped to cache only", ev.SessionID)
		return
	}

	select {
	case <-ch.done:
		return
	default:
	}

	for {
		select {
		case ch.events <- ev:
			return
		default:
			// queue full: evict the oldest queued event to make room
			select {
			case old := <-ch.events:
				r.logger.Warnf("status queue full for session %s, dropping %s event", ev.SessionID, old.Status)
			default:
			}
		}
	}
}

// Notifier returns the publish callback pipeline stages use for one session.
func (r *Registry) Notifier(sessionID string) Notifier {
	return func(status Status, message string, progress *int) {
		r.Publish(Event{
			SessionID: sessionID,
			Status:    status,
			Message:   message,
			Progress:  progress,
		})
	}
}

// LastEvent returns the most recent event seen for a session, consulting the
// redis mirror when the in-process cache has nothing.
func (r *Registry) LastEvent(sessionID string) (Event, bool) {
	r.mu.RLock()
	ev, ok := r.last[sessionID]
	r.mu.RUnlock()
	if ok {
		return ev, true
	}

	if r.rc != nil {
		raw, err := r.rc.Get(lastEventKey(sessionID)).Result()
		if err == nil {
			var mirrored Event
			if err := json.Unmarshal([]byte(raw), &mirrored); err == nil {
				return mirrored, true
			}
		}
	}
	return Event{}, false
}

// Cleanup releases a session's resources. It is safe to call from the
// terminal-event path, the observer-disconnect path and the panic-recovery
// path concurrently; the release runs exactly once. The last-event cache is
// deliberately retained so slow pollers still see the final status.
func (r *Registry) Cleanup(sessionID string) bool {
	r.mu.Lock()
	ch, ok := r.channels[sessionID]
	if ok {
		delete(r.channels, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	released := false
	ch.teardown.Do(func() {
		close(ch.done)
		released = true
		r.logger.Infof("cleaned up session %s", sessionID)
	})
	return released
}

// Live reports the number of open channels.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// SweepIdle tears down sessions with no event activity for longer than
// maxIdle, so channels whose observer never connects do not accumulate. It
// returns how many sessions were released.
func (r *Registry) SweepIdle(maxIdle time.Duration) int {
	now := time.Now()

	r.mu.RLock()
	var stale []string
	for id, ch := range r.channels {
		lastSeen := ch.openedAt
		if ev, ok := r.last[id]; ok && ev.Timestamp.After(lastSeen) {
			lastSeen = ev.Timestamp
		}
		if now.Sub(lastSeen) > maxIdle {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	swept := 0
	for _, id := range stale {
		if r.Cleanup(id) {
			swept++
		}
	}
	return swept
}

// StartJanitor sweeps idle sessions on an interval until ctx ends.
func (r *Registry) StartJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.SweepIdle(maxIdle); n > 0 {
					r.logger.Infof("swept %d idle sessions", n)
				}
			}
		}
	}()
}

func (r *Registry) rememberLocked(ev Event) {
	if len(r.last) >= maxRetained {
		// evict the stalest retained entry
		var oldestKey string
		var oldest time.Time
		for k, v := range r.last {
			if oldestKey == "" || v.Timestamp.Before(oldest) {
				oldestKey, oldest = k, v.Timestamp
			}
		}
		delete(r.last, oldestKey)
	}
	r.last[ev.SessionID] = ev
}

func (r *Registry) mirror(ev Event) {
	if r.rc == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := r.rc.Set(lastEventKey(ev.SessionID), data, r.ttl).Err(); err != nil {
		r.logger.Warnf("failed to mirror status for session %s: %v", ev.SessionID, err)
	}
}
