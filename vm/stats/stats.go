// Package stats counts page faults and their outcomes.
package stats

import (
	"fmt"
	"io"
	"sync/atomic"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats is a point-in-time copy of the counters.
type Stats struct {
	TotalFaults    uint64 `json:"total_faults"`
	ResolvedFaults uint64 `json:"resolved_faults"`
	SwapIns        uint64 `json:"swap_ins"`
	SwapOuts       uint64 `json:"swap_outs"`

	// Breakdown of resolved faults that did not swap in.
	FirstTouches uint64 `json:"first_touches"`
	CopyOnWrites uint64 `json:"copy_on_writes"`
	Spurious     uint64 `json:"spurious"`
}

// ResolutionRate returns resolved / total * 100, or 0 when there were no faults.
func (s Stats) ResolutionRate() float64 {
	if s.TotalFaults == 0 {
		return 0
	}
	return float64(s.ResolvedFaults) / float64(s.TotalFaults) * 100.0
}

// Unresolved returns the number of faults that ended in an error.
func (s Stats) Unresolved() uint64 {
	return s.TotalFaults - s.ResolvedFaults
}

// Collector holds the live counters. The zero value is ready to use and
// safe for concurrent use.
type Collector struct {
	total    atomic.Uint64
	resolved atomic.Uint64
	swapIns  atomic.Uint64
	swapOuts atomic.Uint64
	first    atomic.Uint64
	cow      atomic.Uint64
	spurious atomic.Uint64
}

// Fault counts a fault entering the dispatcher.
func (c *Collector) Fault() { c.total.Add(1) }

// FirstTouch counts a fault resolved with a zero-filled frame.
func (c *Collector) FirstTouch() {
	c.first.Add(1)
	c.resolved.Add(1)
}

// SwapIn counts a fault resolved by reading the page back from swap.
func (c *Collector) SwapIn() {
	c.swapIns.Add(1)
	c.resolved.Add(1)
}

// CopyOnWrite counts a fault resolved by duplicating a shared frame.
func (c *Collector) CopyOnWrite() {
	c.cow.Add(1)
	c.resolved.Add(1)
}

// Spurious counts a fault that found its page already resolved by a
// concurrent fault.
func (c *Collector) Spurious() {
	c.spurious.Add(1)
	c.resolved.Add(1)
}

// SwapOut counts a page pushed to swap.
func (c *Collector) SwapOut() { c.swapOuts.Add(1) }

// Snapshot returns the current counters. Each counter is read atomically,
// but the set is not read as one unit.
func (c *Collector) Snapshot() Stats {
	return Stats{
		TotalFaults:    c.total.Load(),
		ResolvedFaults: c.resolved.Load(),
		SwapIns:        c.swapIns.Load(),
		SwapOuts:       c.swapOuts.Load(),
		FirstTouches:   c.first.Load(),
		CopyOnWrites:   c.cow.Load(),
		Spurious:       c.spurious.Load(),
	}
}

// Reset zeroes every counter. Only subsystem shutdown calls it.
func (c *Collector) Reset() {
	c.total.Store(0)
	c.resolved.Store(0)
	c.swapIns.Store(0)
	c.swapOuts.Store(0)
	c.first.Store(0)
	c.cow.Store(0)
	c.spurious.Store(0)
}

// Dump writes a human-readable report of s to w.
func Dump(w io.Writer, s Stats) error {
	p := message.NewPrinter(language.English)
	rows := []struct {
		label string
		value uint64
	}{
		{"Total faults", s.TotalFaults},
		{"Resolved faults", s.ResolvedFaults},
		{"  first touch", s.FirstTouches},
		{"  swap-in", s.SwapIns},
		{"  copy-on-write", s.CopyOnWrites},
		{"  spurious", s.Spurious},
		{"Unresolved faults", s.Unresolved()},
		{"Swap-outs", s.SwapOuts},
	}
	if _, err := fmt.Fprintln(w, "Page fault statistics:"); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := p.Fprintf(w, "  %-20s %12d\n", r.label, r.value); err != nil {
			return err
		}
	}
	_, err := p.Fprintf(w, "  %-20s %11.2f%%\n", "Resolution rate", s.ResolutionRate())
	return err
}
