package system

import (
	"strings"
	"sync/atomic"
)

// Signal is a bit in the runtime execution field.
type Signal uint32

// Runtime execution bits.
const (
	ExecStatusReport Signal = 1 << iota
	ExecCycleStart
	ExecCycleStop
	ExecFeedHold
	ExecReset
	ExecAlarm
)

var signalNames = []struct {
	sig  Signal
	name string
}{
	{ExecStatusReport, "status-report"},
	{ExecCycleStart, "cycle-start"},
	{ExecCycleStop, "cycle-stop"},
	{ExecFeedHold, "feed-hold"},
	{ExecReset, "reset"},
	{ExecAlarm, "alarm"},
}

// Has checks if all bits in mask are set.
func (s Signal) Has(mask Signal) bool {
	return s&mask == mask
}

// Names lists the names of the set bits.
func (s Signal) Names() []string {
	var names []string
	for _, n := range signalNames {
		if s&n.sig != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

// String implements fmt.Stringer.
func (s Signal) String() string {
	if s == 0 {
		return "none"
	}
	return strings.Join(s.Names(), "|")
}

// Signals is the runtime execution bit field shared by interrupt
// handlers and the foreground loop.
//
// The receive handler owns StatusReport, CycleStart and FeedHold, the
// reset path owns Reset and Alarm. Any side may set bits, only the
// foreground clears them.
type Signals struct {
	bits atomic.Uint32
}

// Set ORs mask into the field.
func (s *Signals) Set(mask Signal) {
	s.Raise(mask)
}

// Raise ORs mask into the field and returns the bits which were not set
// before.
func (s *Signals) Raise(mask Signal) Signal {
	for {
		old := s.bits.Load()
		raised := uint32(mask) &^ old
		if raised == 0 || s.bits.CompareAndSwap(old, old|raised) {
			return Signal(raised)
		}
	}
}

// Clear clears the bits in mask.
func (s *Signals) Clear(mask Signal) {
	for {
		old := s.bits.Load()
		if old&uint32(mask) == 0 || s.bits.CompareAndSwap(old, old&^uint32(mask)) {
			return
		}
	}
}

// Load returns the current bits.
func (s *Signals) Load() Signal {
	return Signal(s.bits.Load())
}

// Take clears the bits in mask and returns those which were set.
func (s *Signals) Take(mask Signal) Signal {
	for {
		old := s.bits.Load()
		taken := old & uint32(mask)
		if taken == 0 || s.bits.CompareAndSwap(old, old&^uint32(mask)) {
			return Signal(taken)
		}
	}
}

// Reset clears every bit.
func (s *Signals) Reset() {
	s.bits.Store(0)
}
