package split

import (
	"sync"
	"time"

	"github.com/searchgrid/grid/coordinator/statistics"
)

// Timer measures a split and its phases as a tree. Stopping a phase also
// feeds the phase latency statistics.
type Timer struct {
	mu       sync.Mutex
	name     string
	start    time.Time
	elapsed  time.Duration
	running  bool
	children []*Timer
}

func NewTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now(), running: true}
}

// Sub starts a child timer.
func (t *Timer) Sub(name string) *Timer {
	child := NewTimer(name)
	t.mu.Lock()
	t.children = append(t.children, child)
	t.mu.Unlock()
	return child
}

// Stop is idempotent and returns the measured time.
func (t *Timer) Stop() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return t.elapsed
	}
	t.running = false
	t.elapsed = time.Since(t.start)
	statistics.RecordPhase(t.name, t.elapsed)
	return t.elapsed
}

func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return time.Since(t.start)
	}
	return t.elapsed
}

// ToMap renders {"time": ms, <phase>: {...}} for responses.
func (t *Timer) ToMap() map[string]any {
	ret := map[string]any{
		"time": float64(t.Elapsed().Microseconds()) / 1000,
	}
	t.mu.Lock()
	children := append([]*Timer(nil), t.children...)
	t.mu.Unlock()
	for _, c := range children {
		ret[c.name] = c.ToMap()
	}
	return ret
}
