package sequence

import (
	"errors"
	"math"
	"sync"
)

var ErrExhausted = errors.New("sequence_exhausted")

const ceiling = math.MaxInt64

// Allocator hands out strictly increasing credit ids starting at 1.
// It is safe for concurrent use; no two callers observe the same value.
type Allocator struct {
	mu   sync.Mutex
	next int64
}

// New returns an allocator whose first Next() call yields start.
func New(start int64) *Allocator {
	if start < 1 {
		start = 1
	}
	return &Allocator{next: start}
}

func (a *Allocator) Next() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.next == ceiling {
		return 0, ErrExhausted
	}
	id := a.next
	a.next++
	return id, nil
}
