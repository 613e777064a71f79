package room

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expiryRecorder collects expiry callbacks so tests can assert on count and
// order without racing the timer goroutine.
type expiryRecorder struct {
	mu    sync.Mutex
	codes []string
	ch    chan string
}

func newExpiryRecorder() *expiryRecorder {
	return &expiryRecorder{ch: make(chan string, 16)}
}

func (r *expiryRecorder) record(roomCode string) {
	r.mu.Lock()
	r.codes = append(r.codes, roomCode)
	r.mu.Unlock()
	r.ch <- roomCode
}

func (r *expiryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

func (r *expiryRecorder) await(t *testing.T) string {
	t.Helper()
	select {
	case code := <-r.ch:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for expiry callback")
		return ""
	}
}

func (r *expiryRecorder) awaitNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case code := <-r.ch:
		t.Fatalf("unexpected expiry callback for %s", code)
	case <-time.After(d):
	}
}

func TestRoundTimerExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := newExpiryRecorder()
	rt := NewRoundTimer(clock, rec.record, nil)

	rt.Start("ROOM01", 30*time.Second)
	require.True(t, rt.Active("ROOM01"))

	// One timer and one ticker per armed countdown.
	clock.BlockUntil(2)
	clock.Advance(30 * time.Second)

	assert.Equal(t, "ROOM01", rec.await(t))
	require.Eventually(t, func() bool { return !rt.Active("ROOM01") },
		time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestRoundTimerCancelPreventsExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := newExpiryRecorder()
	rt := NewRoundTimer(clock, rec.record, nil)

	rt.Start("ROOM01", 30*time.Second)
	clock.BlockUntil(2)

	rt.Cancel("ROOM01")
	assert.False(t, rt.Active("ROOM01"))

	clock.Advance(time.Minute)
	rec.awaitNone(t, 100*time.Millisecond)
}

func TestRoundTimerCancelUnknownRoomIsNoop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rt := NewRoundTimer(clock, func(string) {}, nil)

	rt.Cancel("NOSUCH")
	assert.False(t, rt.Active("NOSUCH"))
}

func TestRoundTimerStartSupersedes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := newExpiryRecorder()
	rt := NewRoundTimer(clock, rec.record, nil)

	rt.Start("ROOM01", 30*time.Second)
	clock.BlockUntil(2)

	rt.Start("ROOM01", 60*time.Second)
	// Let the superseded goroutine drain out so only the replacement's timer
	// and ticker are registered with the fake clock.
	time.Sleep(50 * time.Millisecond)
	clock.BlockUntil(2)

	// The original deadline passing must not fire the callback.
	clock.Advance(30 * time.Second)
	rec.awaitNone(t, 100*time.Millisecond)
	assert.True(t, rt.Active("ROOM01"))

	clock.Advance(30 * time.Second)
	assert.Equal(t, "ROOM01", rec.await(t))
	assert.Equal(t, 1, rec.count())
}

func TestRoundTimerIndependentRooms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := newExpiryRecorder()
	rt := NewRoundTimer(clock, rec.record, nil)

	rt.Start("ROOM01", 10*time.Second)
	clock.BlockUntil(2)
	rt.Start("ROOM02", 20*time.Second)
	clock.BlockUntil(4)

	clock.Advance(10 * time.Second)
	assert.Equal(t, "ROOM01", rec.await(t))
	assert.True(t, rt.Active("ROOM02"))

	clock.Advance(10 * time.Second)
	assert.Equal(t, "ROOM02", rec.await(t))
}

func TestRoundTimerTicks(t *testing.T) {
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	var ticks []int
	onTick := func(roomCode string, remaining int) {
		mu.Lock()
		defer mu.Unlock()
		ticks = append(ticks, remaining)
	}

	rec := newExpiryRecorder()
	rt := NewRoundTimer(clock, rec.record, onTick)

	rt.Start("ROOM01", 5*time.Second)
	clock.BlockUntil(2)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) == 1 && ticks[0] == 4
	}, time.Second, 10*time.Millisecond)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) == 2 && ticks[1] == 3
	}, time.Second, 10*time.Millisecond)
}
