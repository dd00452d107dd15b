package tsqlfmt

import "sync/atomic"

// Snapshot is a point-in-time copy of a Formatter's counters.
type Snapshot struct {
	Concurrency int   `json:"concurrency" yaml:"concurrency"`
	Active      int64 `json:"active" yaml:"active"`
	Peak        int64 `json:"peak" yaml:"peak"`
	Completed   int64 `json:"completed" yaml:"completed"`
	Failed      int64 `json:"failed" yaml:"failed"`
	Cancelled   int64 `json:"cancelled" yaml:"cancelled"`
}

type counters struct {
	active    atomic.Int64
	peak      atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
}

// enter marks the start of an async call and raises the peak if needed.
func (c *counters) enter() {
	n := c.active.Add(1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (c *counters) leave() {
	c.active.Add(-1)
}

func (c *counters) record(res Result) {
	if res.Success {
		c.completed.Add(1)
	} else {
		c.failed.Add(1)
	}
}

// Stats returns the current counters. Completed and Failed count every
// format call, synchronous or not; Active and Peak track FormatAsync only.
func (f *Formatter) Stats() Snapshot {
	return Snapshot{
		Concurrency: f.concurrency,
		Active:      f.stats.active.Load(),
		Peak:        f.stats.peak.Load(),
		Completed:   f.stats.completed.Load(),
		Failed:      f.stats.failed.Load(),
		Cancelled:   f.stats.cancelled.Load(),
	}
}
