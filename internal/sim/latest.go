package sim

import "sync"

// Latest keeps the result of the most recently started run. Each run takes a
// ticket from Begin; Finish stores a result only if no newer run has begun
// since, so stale runs finish normally and are dropped.
type Latest struct {
	mu     sync.Mutex
	issued uint64
	stored uint64
	result *Result
	err    error
}

func (l *Latest) Begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued++
	return l.issued
}

// Finish reports whether the result was kept.
func (l *Latest) Finish(ticket uint64, res *Result, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ticket != l.issued {
		return false
	}
	l.stored = ticket
	l.result, l.err = res, err
	return true
}

func (l *Latest) Result() (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result, l.err
}

// Pending is true while the newest run has not finished.
func (l *Latest) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stored != l.issued
}
