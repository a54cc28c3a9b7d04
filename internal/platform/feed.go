package platform

import (
	"sync"

	"chartevo/internal/model"
)

// Feed queues generation stats between the trainer goroutine and a consumer.
type Feed struct {
	mu      sync.Mutex
	pending []model.GenerationStats
}

func NewFeed() *Feed {
	return &Feed{}
}

func (f *Feed) Publish(stats model.GenerationStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, stats)
}

// Drain returns everything published since the last drain, oldest first.
// It returns nil when nothing is pending.
func (f *Feed) Drain() []model.GenerationStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	drained := f.pending
	f.pending = nil
	return drained
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
