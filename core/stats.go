package core

import (
	"sync"
	"time"
)

// Statistics is a consistent snapshot of a compress call's counters.
// Derived fields (rates, estimates) are computed at query time.
type Statistics struct {
	ItemsTotal      int
	ItemsCompleted  int
	ItemsFailed     int
	ItemsInProgress int

	TotalIn  uint64
	TotalOut uint64

	BytesPerSec     uint64
	FilesPerSecX100 uint64
	ElapsedMs       uint64
	EstRemainingMs  uint64
	RatioX100       uint64
	ActiveThreads   int
}

// counters aggregates progress under a single mutex so snapshots are
// consistent across fields. The same mutex serializes the completion
// notifier.
type counters struct {
	mu sync.Mutex

	itemsTotal     int
	itemsCompleted int
	itemsFailed    int
	inProgress     int

	totalIn  uint64
	totalOut uint64

	started time.Time
}

func (c *counters) reset(items int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.itemsTotal = items
	c.itemsCompleted = 0
	c.itemsFailed = 0
	c.inProgress = 0
	c.totalIn = 0
	c.totalOut = 0
	c.started = time.Now()
}

func (c *counters) jobStarted() {
	c.mu.Lock()
	c.inProgress++
	c.mu.Unlock()
}

func (c *counters) snapshot() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Statistics{
		ItemsTotal:      c.itemsTotal,
		ItemsCompleted:  c.itemsCompleted,
		ItemsFailed:     c.itemsFailed,
		ItemsInProgress: c.inProgress,
		TotalIn:         c.totalIn,
		TotalOut:        c.totalOut,
		ActiveThreads:   c.inProgress,
	}
	if c.started.IsZero() {
		return s
	}
	elapsed := time.Since(c.started)
	s.ElapsedMs = uint64(elapsed.Milliseconds())
	if s.ElapsedMs > 0 {
		s.BytesPerSec = c.totalIn * 1000 / s.ElapsedMs
		s.FilesPerSecX100 = uint64(c.itemsCompleted) * 100_000 / s.ElapsedMs
	}
	terminal := c.itemsCompleted + c.itemsFailed
	if terminal > 0 {
		remaining := c.itemsTotal - terminal
		if remaining > 0 {
			s.EstRemainingMs = s.ElapsedMs * uint64(remaining) / uint64(terminal)
		}
	}
	if c.totalIn > 0 {
		s.RatioX100 = c.totalOut * 100 / c.totalIn
	}
	return s
}
