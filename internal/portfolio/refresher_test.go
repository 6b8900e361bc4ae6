package portfolio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoPortfolioBot/internal/events"
)

// stubSnapshotter hands out snapshots through a user supplied function.
type stubSnapshotter struct {
	fn func(ctx context.Context, userID string, windowDays int) (Snapshot, error)
}

func (s stubSnapshotter) Snapshot(ctx context.Context, userID string, windowDays int) (Snapshot, error) {
	return s.fn(ctx, userID, windowDays)
}

type stubUsers []string

func (u stubUsers) Users(context.Context) ([]string, error) { return u, nil }

func TestRefreshUser_StoresAndForgets(t *testing.T) {
	r := NewRefresher(stubSnapshotter{fn: func(_ context.Context, userID string, days int) (Snapshot, error) {
		return Snapshot{UserID: userID, WindowDays: days}, nil
	}}, stubUsers{"u1"}, events.NewBus(nil), 30, nil)

	require.True(t, r.RefreshUser(context.Background(), "u1"))

	snap, ok := r.Latest("u1")
	require.True(t, ok)
	assert.Equal(t, "u1", snap.UserID)
	assert.Equal(t, 30, snap.WindowDays)

	r.Forget("u1")
	_, ok = r.Latest("u1")
	assert.False(t, ok)

	require.True(t, r.RefreshUser(context.Background(), "u1"))
	_, ok = r.Latest("u1")
	assert.True(t, ok)
}

func TestRefresher_KeepNeverReplacesNewerGeneration(t *testing.T) {
	r := NewRefresher(nil, nil, nil, 7, nil)

	require.True(t, r.keep("u1", &versioned{gen: 2, snap: Snapshot{Currency: "new"}}))
	assert.False(t, r.keep("u1", &versioned{gen: 1, snap: Snapshot{Currency: "old"}}))
	assert.False(t, r.keep("u1", &versioned{gen: 2, snap: Snapshot{Currency: "same"}}))

	snap, ok := r.Latest("u1")
	require.True(t, ok)
	assert.Equal(t, "new", snap.Currency)

	assert.True(t, r.keep("u1", &versioned{gen: 3, snap: Snapshot{Currency: "newer"}}))
	snap, _ = r.Latest("u1")
	assert.Equal(t, "newer", snap.Currency)
}

func TestRefresher_ConcurrentKeepsEndOnHighestGeneration(t *testing.T) {
	r := NewRefresher(nil, nil, nil, 7, nil)

	var wg sync.WaitGroup
	for g := uint64(1); g <= 64; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.keep("u1", &versioned{gen: g, snap: Snapshot{WindowDays: int(g)}})
		}()
	}
	wg.Wait()

	snap, ok := r.Latest("u1")
	require.True(t, ok)
	assert.Equal(t, 64, snap.WindowDays)
}

func TestRefreshUser_ForgetDuringRefreshWins(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	r := NewRefresher(stubSnapshotter{fn: func(_ context.Context, userID string, _ int) (Snapshot, error) {
		close(started)
		<-release
		return Snapshot{UserID: userID}, nil
	}}, stubUsers{"u1"}, nil, 7, nil)

	done := make(chan bool)
	go func() { done <- r.RefreshUser(context.Background(), "u1") }()
	<-started
	r.Forget("u1")
	close(release)

	assert.False(t, <-done)
	_, ok := r.Latest("u1")
	assert.False(t, ok)
}

func TestRefreshUser_StaleResultIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32

	r := NewRefresher(stubSnapshotter{fn: func(_ context.Context, userID string, _ int) (Snapshot, error) {
		n := calls.Add(1)
		if n == 1 {
			<-release
			return Snapshot{UserID: userID, Currency: "old"}, nil
		}
		return Snapshot{UserID: userID, Currency: "new"}, nil
	}}, stubUsers{"u1"}, events.NewBus(nil), 7, nil)

	var wg sync.WaitGroup
	var slowKept atomic.Bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowKept.Store(r.RefreshUser(context.Background(), "u1"))
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	assert.True(t, r.RefreshUser(context.Background(), "u1"))
	close(release)
	wg.Wait()

	assert.False(t, slowKept.Load())
	snap, ok := r.Latest("u1")
	require.True(t, ok)
	assert.Equal(t, "new", snap.Currency)
}

func TestRefreshUser_ErrorKeepsPrevious(t *testing.T) {
	fail := false
	r := NewRefresher(stubSnapshotter{fn: func(_ context.Context, userID string, _ int) (Snapshot, error) {
		if fail {
			return Snapshot{}, errors.New("provider down")
		}
		return Snapshot{UserID: userID}, nil
	}}, stubUsers{"u1"}, nil, 7, nil)

	require.True(t, r.RefreshUser(context.Background(), "u1"))
	fail = true
	assert.False(t, r.RefreshUser(context.Background(), "u1"))
	_, ok := r.Latest("u1")
	assert.True(t, ok)
}

func TestRefresher_RunReactsToPositionChanges(t *testing.T) {
	bus := events.NewBus(nil)
	var refreshed sync.Map

	r := NewRefresher(stubSnapshotter{fn: func(_ context.Context, userID string, _ int) (Snapshot, error) {
		refreshed.Store(userID, true)
		return Snapshot{UserID: userID}, nil
	}}, stubUsers{"u1"}, bus, 7, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := refreshed.Load("u1")
		return ok
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return bus.Publish(events.Event{Name: events.PositionsChanged, UserID: "u2"}) == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := refreshed.Load("u2")
		return ok
	}, time.Second, time.Millisecond)

	require.Equal(t, 1, bus.Publish(events.Event{Name: events.WatchlistChanged, UserID: "u3"}))
	require.Eventually(t, func() bool {
		_, ok := refreshed.Load("u3")
		return ok
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}
