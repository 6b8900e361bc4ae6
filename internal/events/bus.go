// Package events is a small in-process publish/subscribe bus used to tell
// background refreshers that positions, the watchlist or display settings
// changed.
package events

import (
	"sync"

	"cryptoPortfolioBot/internal/common"
)

const (
	PositionsChanged = "positions.changed"
	CurrencyChanged  = "currency.changed"
	WatchlistChanged = "watchlist.changed"
)

// Event is delivered to every subscriber of Name.
type Event struct {
	Name    string
	UserID  string
	Payload any
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	logger *common.Logger
	buffer int
}

// Subscription receives events on C until Cancel is called.
type Subscription struct {
	C <-chan Event

	bus  *Bus
	name string
	ch   chan Event
	once sync.Once
}

func NewBus(logger *common.Logger) *Bus {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Bus{subs: map[string]map[*Subscription]struct{}{}, logger: logger, buffer: 16}
}

func (b *Bus) Subscribe(name string) *Subscription {
	ch := make(chan Event, b.buffer)
	s := &Subscription{C: ch, bus: b, name: name, ch: ch}
	b.mu.Lock()
	if b.subs[name] == nil {
		b.subs[name] = map[*Subscription]struct{}{}
	}
	b.subs[name][s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish returns the number of subscribers the event was delivered to.
func (b *Bus) Publish(e Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for s := range b.subs[e.Name] {
		select {
		case s.ch <- e:
			delivered++
		default:
			b.logger.Warn().Str("event", e.Name).Str("user", e.UserID).Msg("Subscriber buffer full, dropping event")
		}
	}
	return delivered
}

// Cancel unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs[s.name], s)
		if len(s.bus.subs[s.name]) == 0 {
			delete(s.bus.subs, s.name)
		}
		s.bus.mu.Unlock()
		close(s.ch)
	})
}
