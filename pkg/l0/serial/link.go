package serial

import (
	"runtime"
	"sync/atomic"

	"github.com/robotalks/cnc.go/pkg/system"
)

// Buffer and flow control defaults.
const (
	DefaultRxSize = 128
	DefaultTxSize = 64
	// DefaultRxHigh is the RX occupancy which triggers XOFF.
	DefaultRxHigh = DefaultRxSize - 32
	// DefaultRxLow is the RX occupancy below which XON is sent again.
	DefaultRxLow = DefaultRxSize / 2
)

// Flow control characters.
const (
	XON  byte = 0x11
	XOFF byte = 0x13
)

// NoData is returned by Read when nothing is buffered.
const NoData byte = 0xff

// Realtime command characters.
const (
	CmdStatusReport byte = '?'
	CmdCycleStart   byte = '~'
	CmdFeedHold     byte = '!'
	CmdReset        byte = 0x18 // ctrl-x
)

// IsRealtime checks if b is a realtime command character.
func IsRealtime(b byte) bool {
	switch b {
	case CmdStatusReport, CmdCycleStart, CmdFeedHold, CmdReset:
		return true
	}
	return false
}

// FlowState is the software flow control state.
type FlowState uint32

// Flow control states.
const (
	FlowXONSent FlowState = iota
	FlowXOFFPending
	FlowXOFFSent
	FlowXONPending
)

// String implements fmt.Stringer.
func (s FlowState) String() string {
	switch s {
	case FlowXONSent:
		return "xon"
	case FlowXOFFPending:
		return "xoff-pending"
	case FlowXOFFSent:
		return "xoff"
	case FlowXONPending:
		return "xon-pending"
	}
	return "unknown"
}

// Stats are running counters of the link.
type Stats struct {
	Received    uint64
	Dropped     uint64
	Realtime    uint64
	Transmitted uint64
}

// Link is the serial link context: ring buffers, indices and flow
// control state. Read, Write and ResetReadBuffer are foreground only,
// OnReceive and OnTransmitReady are the interrupt handlers.
type Link struct {
	port  Port
	clock int

	rx ring
	tx ring

	flowControl bool
	rxHigh      int
	rxLow       int
	flow        atomic.Uint32

	signals    *system.Signals
	abortHook  func()
	abortCheck func() bool

	received    atomic.Uint64
	dropped     atomic.Uint64
	realtime    atomic.Uint64
	transmitted atomic.Uint64
}

// Option configures a Link.
type Option func(*Link)

// WithBufferSizes sets the ring sizes. One slot of each stays unused.
func WithBufferSizes(rx, tx int) Option {
	return func(l *Link) {
		l.rx.init(rx)
		l.tx.init(tx)
	}
}

// WithFlowControl enables XON/XOFF with the given RX watermarks.
func WithFlowControl(high, low int) Option {
	return func(l *Link) {
		l.flowControl, l.rxHigh, l.rxLow = true, high, low
	}
}

// WithSignals sets the runtime signal field realtime commands publish to.
func WithSignals(signals *system.Signals) Option {
	return func(l *Link) {
		l.signals = signals
	}
}

// WithAbortHook sets the func invoked from the receive handler on a
// reset command.
func WithAbortHook(hook func()) Option {
	return func(l *Link) {
		l.abortHook = hook
	}
}

// WithAbortCheck sets the predicate which cancels a Write blocked on a
// full TX ring.
func WithAbortCheck(check func() bool) Option {
	return func(l *Link) {
		l.abortCheck = check
	}
}

// WithClock sets the CPU clock used to derive the rate divisor.
func WithClock(hz int) Option {
	return func(l *Link) {
		l.clock = hz
	}
}

// New creates a Link on port.
func New(port Port, opts ...Option) *Link {
	l := &Link{port: port, clock: DefaultClock}
	l.rx.init(DefaultRxSize)
	l.tx.init(DefaultTxSize)
	for _, opt := range opts {
		opt(l)
	}
	if l.signals == nil {
		l.signals = &system.Signals{}
	}
	return l
}

// Init configures the port for rate with 8N1 framing.
func (l *Link) Init(rate int) Settings {
	if rate <= 0 {
		rate = DefaultRate
	}
	settings := ComputeSettings(l.clock, rate)
	l.port.Configure(settings)
	return settings
}

// Signals returns the runtime signal field.
func (l *Link) Signals() *system.Signals {
	return l.signals
}

// Write queues b for transmission. If the TX ring is full it spins until
// space frees up, giving up without queuing when the abort check fires.
// It returns whether b was queued.
func (l *Link) Write(b byte) bool {
	for !l.tx.put(b) {
		if l.abortCheck != nil && l.abortCheck() {
			return false
		}
		runtime.Gosched()
	}
	l.port.ArmTransmit(true)
	return true
}

// WriteString queues s and returns the number of bytes queued.
func (l *Link) WriteString(s string) int {
	for n := 0; n < len(s); n++ {
		if !l.Write(s[n]) {
			return n
		}
	}
	return len(s)
}

// Read dequeues one received byte. It returns NoData and false when the
// RX ring is empty.
func (l *Link) Read() (byte, bool) {
	b, ok := l.rx.get()
	if !ok {
		return NoData, false
	}
	if l.flowControl && l.rx.count() < l.rxLow &&
		l.flow.CompareAndSwap(uint32(FlowXOFFSent), uint32(FlowXONPending)) {
		l.port.ArmTransmit(true)
	}
	return b, true
}

// ResetReadBuffer discards all received bytes and resets flow control.
// The caller must keep the receive handler from running meanwhile.
func (l *Link) ResetReadBuffer() {
	l.rx.discard()
	l.flow.Store(uint32(FlowXONSent))
}

// OnReceive is the receive-complete handler.
func (l *Link) OnReceive(b byte) {
	switch b {
	case CmdStatusReport:
		l.raise(system.ExecStatusReport)
		return
	case CmdCycleStart:
		l.raise(system.ExecCycleStart)
		return
	case CmdFeedHold:
		l.raise(system.ExecFeedHold)
		return
	case CmdReset:
		l.realtime.Add(1)
		if l.abortHook != nil {
			l.abortHook()
		}
		return
	}
	if !l.rx.put(b) {
		l.dropped.Add(1)
		return
	}
	l.received.Add(1)
	if l.flowControl && l.rx.count() >= l.rxHigh &&
		l.flow.CompareAndSwap(uint32(FlowXONSent), uint32(FlowXOFFPending)) {
		l.port.ArmTransmit(true)
	}
}

// OnTransmitReady is the transmit-ready handler. It sends one byte and
// disarms itself once nothing is left to send.
func (l *Link) OnTransmitReady() {
	switch {
	case l.flowControl && l.flow.CompareAndSwap(uint32(FlowXOFFPending), uint32(FlowXOFFSent)):
		l.port.Transmit(XOFF)
		// RX drained while XOFF was pending: Read will not see XOFFSent
		// again, so schedule XON here
		if l.rx.count() < l.rxLow {
			l.flow.CompareAndSwap(uint32(FlowXOFFSent), uint32(FlowXONPending))
		}
	case l.flowControl && l.flow.CompareAndSwap(uint32(FlowXONPending), uint32(FlowXONSent)):
		l.port.Transmit(XON)
	default:
		if b, ok := l.tx.get(); ok {
			l.port.Transmit(b)
			l.transmitted.Add(1)
		}
	}
	if l.tx.empty() && !l.flowPending() {
		l.port.ArmTransmit(false)
		// the foreground may have queued or scheduled between the
		// check and the disarm
		if !l.tx.empty() || l.flowPending() {
			l.port.ArmTransmit(true)
		}
	}
}

// FlowState returns the flow control state.
func (l *Link) FlowState() FlowState {
	return FlowState(l.flow.Load())
}

// Available is the number of received bytes waiting in RX.
func (l *Link) Available() int {
	return l.rx.count()
}

// Pending is the number of bytes waiting in TX.
func (l *Link) Pending() int {
	return l.tx.count()
}

// Stats returns a snapshot of the counters.
func (l *Link) Stats() Stats {
	return Stats{
		Received:    l.received.Load(),
		Dropped:     l.dropped.Load(),
		Realtime:    l.realtime.Load(),
		Transmitted: l.transmitted.Load(),
	}
}

func (l *Link) raise(sig system.Signal) {
	l.realtime.Add(1)
	l.signals.Set(sig)
}

func (l *Link) flowPending() bool {
	if !l.flowControl {
		return false
	}
	state := FlowState(l.flow.Load())
	return state == FlowXOFFPending || state == FlowXONPending
}
