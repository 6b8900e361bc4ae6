package portfolio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cryptoPortfolioBot/internal/common"
	"cryptoPortfolioBot/internal/events"
)

// Snapshotter computes a snapshot; *Service implements it.
type Snapshotter interface {
	Snapshot(ctx context.Context, userID string, windowDays int) (Snapshot, error)
}

// UserLister enumerates users that hold positions.
type UserLister interface {
	Users(ctx context.Context) ([]string, error)
}

// Refresher recomputes snapshots on a timer and when positions, the
// watchlist or the display currency change. Each user has a generation
// counter and the kept snapshot is stored with the generation that produced
// it: an entry is only ever replaced by a higher generation, so a slow
// refresh never overwrites a newer one.
type Refresher struct {
	snap       Snapshotter
	users      UserLister
	bus        *events.Bus
	logger     *common.Logger
	windowDays int

	gens   sync.Map // user -> *atomic.Uint64
	latest sync.Map // user -> *versioned
}

// versioned is a kept snapshot. A forgotten entry has no snapshot and only
// blocks older refreshes from coming back.
type versioned struct {
	gen       uint64
	snap      Snapshot
	forgotten bool
}

func NewRefresher(snap Snapshotter, users UserLister, bus *events.Bus, windowDays int, logger *common.Logger) *Refresher {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Refresher{snap: snap, users: users, bus: bus, windowDays: windowDays, logger: logger}
}

func (r *Refresher) generation(userID string) *atomic.Uint64 {
	g, _ := r.gens.LoadOrStore(userID, new(atomic.Uint64))
	return g.(*atomic.Uint64)
}

// RefreshUser recomputes one user's snapshot. It reports whether the result
// was kept; false means it failed or a newer refresh started meanwhile.
func (r *Refresher) RefreshUser(ctx context.Context, userID string) bool {
	gen := r.generation(userID)
	mine := gen.Add(1)

	snap, err := r.snap.Snapshot(ctx, userID, r.windowDays)
	if err != nil {
		r.logger.Warn().Err(err).Str("user", userID).Msg("Snapshot refresh failed")
		return false
	}
	if gen.Load() != mine || !r.keep(userID, &versioned{gen: mine, snap: snap}) {
		r.logger.Debug().Str("user", userID).Uint64("generation", mine).Msg("Discarding stale snapshot")
		return false
	}
	return true
}

// keep stores e unless the entry already holds the same or a newer
// generation.
func (r *Refresher) keep(userID string, e *versioned) bool {
	for {
		cur, loaded := r.latest.LoadOrStore(userID, e)
		if !loaded {
			return true
		}
		if cur.(*versioned).gen >= e.gen {
			return false
		}
		if r.latest.CompareAndSwap(userID, cur, e) {
			return true
		}
	}
}

// Refresh recomputes every user's snapshot.
func (r *Refresher) Refresh(ctx context.Context) {
	users, err := r.users.Users(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to list users for refresh")
		return
	}
	for _, u := range users {
		if ctx.Err() != nil {
			return
		}
		r.RefreshUser(ctx, u)
	}
}

// Latest returns the last kept snapshot for the user.
func (r *Refresher) Latest(userID string) (Snapshot, bool) {
	v, ok := r.latest.Load(userID)
	if !ok {
		return Snapshot{}, false
	}
	e := v.(*versioned)
	if e.forgotten {
		return Snapshot{}, false
	}
	return e.snap, true
}

// Forget drops the cached snapshot, e.g. after a reset. Refreshes that
// started before the call can no longer store their result.
func (r *Refresher) Forget(userID string) {
	r.keep(userID, &versioned{gen: r.generation(userID).Add(1), forgotten: true})
}

// Run refreshes all users every interval and single users on change events
// until ctx is done.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	positions := r.bus.Subscribe(events.PositionsChanged)
	defer positions.Cancel()
	currency := r.bus.Subscribe(events.CurrencyChanged)
	defer currency.Cancel()
	watchlist := r.bus.Subscribe(events.WatchlistChanged)
	defer watchlist.Cancel()

	task := Every(ctx, interval, r.Refresh)
	defer task.Cancel()

	r.logger.Info().Dur("interval", interval).Int("window_days", r.windowDays).Msg("Portfolio refresher started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Portfolio refresher stopped")
			return
		case e, ok := <-positions.C:
			if !ok {
				return
			}
			go r.RefreshUser(ctx, e.UserID)
		case e, ok := <-currency.C:
			if !ok {
				return
			}
			go r.RefreshUser(ctx, e.UserID)
		case e, ok := <-watchlist.C:
			if !ok {
				return
			}
			go r.RefreshUser(ctx, e.UserID)
		}
	}
}
