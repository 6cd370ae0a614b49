package app

import (
	"sync"

	"quiz-arena-service/internal/domain"
)

// Board holds the latest published global ranking and fans it out to live subscribers.
type Board struct {
	mu          sync.RWMutex
	current     domain.Ranking
	subscribers map[chan domain.Ranking]struct{}
}

func NewBoard() *Board {
	return &Board{
		current:     domain.Ranking{Timeframe: domain.TimeframeAllTime, Entries: []domain.Standing{}},
		subscribers: make(map[chan domain.Ranking]struct{}),
	}
}

// Publish replaces the current ranking and notifies subscribers.
func (b *Board) Publish(ranking domain.Ranking) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = ranking
	for ch := range b.subscribers {
		select {
		case ch <- ranking:
		default:
			// drop the stale update so a slow reader never blocks publishing
			select {
			case <-ch:
			default:
			}
			ch <- ranking
		}
	}
}

func (b *Board) Snapshot() domain.Ranking {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Subscribe returns a channel that first receives the current ranking and then
// every published one. The caller must invoke the returned cancel function.
func (b *Board) Subscribe() (<-chan domain.Ranking, func()) {
	ch := make(chan domain.Ranking, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	ch <- b.current
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers reports the number of live subscriptions.
func (b *Board) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
