package room

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Clock is the subset of time operations the round timer needs. In
// production, use clockwork.NewRealClock(); in tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
	NewTicker(d time.Duration) clockwork.Ticker
}

// ExpireFunc is invoked when a round countdown reaches zero.
type ExpireFunc func(roomCode string)

// TickFunc is invoked once per second while a countdown is armed.
type TickFunc func(roomCode string, remainingSec int)

type countdown struct {
	deadline time.Time
	cancel   chan struct{}
}

// RoundTimer manages one outstanding countdown per room, keyed by room code.
// Starting a countdown for a room always supersedes any existing one, so at
// most one timer is ever armed per room. Callbacks receive only the room
// code; the engine re-resolves the room from the store, tolerating its
// absence.
type RoundTimer struct {
	clock    Clock
	onExpire ExpireFunc
	onTick   TickFunc

	mu     sync.Mutex
	active map[string]*countdown
}

// NewRoundTimer creates a round timer. onTick may be nil to disable
// per-second updates.
func NewRoundTimer(clock Clock, onExpire ExpireFunc, onTick TickFunc) *RoundTimer {
	return &RoundTimer{
		clock:    clock,
		onExpire: onExpire,
		onTick:   onTick,
		active:   make(map[string]*countdown),
	}
}

// Start arms a one-shot countdown for the room, cancelling any prior one.
func (t *RoundTimer) Start(roomCode string, d time.Duration) {
	t.mu.Lock()
	if existing, ok := t.active[roomCode]; ok {
		close(existing.cancel)
		log.Debug().Str("room_code", roomCode).Msg("superseded existing round timer")
	}
	cd := &countdown{
		deadline: t.clock.Now().Add(d),
		cancel:   make(chan struct{}),
	}
	t.active[roomCode] = cd
	t.mu.Unlock()

	go t.run(roomCode, cd, d)

	log.Debug().
		Str("room_code", roomCode).
		Dur("duration", d).
		Msg("round timer armed")
}

// Cancel removes and clears the room's countdown if one is armed. Safe to
// call when none exists.
func (t *RoundTimer) Cancel(roomCode string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cd, ok := t.active[roomCode]; ok {
		close(cd.cancel)
		delete(t.active, roomCode)
		log.Debug().Str("room_code", roomCode).Msg("round timer cancelled")
	}
}

// Active reports whether a countdown is currently armed for the room.
func (t *RoundTimer) Active(roomCode string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[roomCode]
	return ok
}

func (t *RoundTimer) run(roomCode string, cd *countdown, d time.Duration) {
	timer := t.clock.NewTimer(d)
	ticker := t.clock.NewTicker(time.Second)
	defer func() {
		stopAndDrainTimer(timer)
		ticker.Stop()
	}()

	for {
		select {
		case <-cd.cancel:
			return

		case <-ticker.Chan():
			if t.onTick == nil {
				continue
			}
			remaining := int(cd.deadline.Sub(t.clock.Now()).Round(time.Second) / time.Second)
			if remaining < 0 {
				remaining = 0
			}
			t.onTick(roomCode, remaining)

		case <-timer.Chan():
			// A superseding Start or a Cancel may have replaced or removed
			// this countdown while the expiry was in flight; only the
			// current one may fire the callback.
			t.mu.Lock()
			current, ok := t.active[roomCode]
			if !ok || current != cd {
				t.mu.Unlock()
				return
			}
			delete(t.active, roomCode)
			t.mu.Unlock()

			log.Debug().Str("room_code", roomCode).Msg("round timer expired")
			t.onExpire(roomCode)
			return
		}
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel, following
// the pattern from the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
