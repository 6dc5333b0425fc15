// Package system holds the process-wide machine state shared between
// interrupt handlers and the foreground loop.
package system

import "sync/atomic"

// State is the operational state of the machine.
type State int32

// Machine states.
const (
	StateInit State = iota
	StateIdle
	StateQueued
	StateCycle
	StateHold
	StateHoming
	StateAlarm
)

var stateNames = map[State]string{
	StateInit:   "Init",
	StateIdle:   "Idle",
	StateQueued: "Queue",
	StateCycle:  "Run",
	StateHold:   "Hold",
	StateHoming: "Home",
	StateAlarm:  "Alarm",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Hooks are the collaborators acting on runtime signals.
// All of them are optional.
type Hooks struct {
	// Halt stops all motion and outputs. It runs in the context calling
	// Reset, which may be an interrupt handler.
	Halt func()
	// StatusReport, FeedHold, CycleStop and CycleStart run in the
	// foreground when the corresponding signal is consumed.
	StatusReport func()
	FeedHold     func()
	CycleStop    func()
	CycleStart   func()
	// Alarm runs in the foreground when the alarm signal is consumed.
	Alarm func()
	// Startup runs at the end of a reset window unless the machine is
	// left in alarm.
	Startup func()
	// Consumed observes every batch of signals consumed by ExecuteRuntime.
	Consumed func(Signal)
}

// System is the shared machine state.
type System struct {
	Exec  Signals
	Hooks Hooks

	// HomingLock puts the machine into alarm after power up, forcing a
	// homing cycle or an explicit unlock.
	HomingLock bool

	abort      atomic.Bool
	state      atomic.Int32
	resetSteps []func()
}

// New creates a System pending its first reset, as after power up.
func New() *System {
	s := &System{}
	s.abort.Store(true)
	return s
}

// OnReset registers steps executed in order inside every reset window.
func (s *System) OnReset(steps ...func()) *System {
	s.resetSteps = append(s.resetSteps, steps...)
	return s
}

// State returns the operational state.
func (s *System) State() State {
	return State(s.state.Load())
}

// SetState changes the operational state.
func (s *System) SetState(state State) {
	s.state.Store(int32(state))
}

// Aborted reports the foreground must unwind to the reset window.
func (s *System) Aborted() bool {
	return s.abort.Load()
}

// ResetRequested reports a reset has been signaled but not yet serviced.
// Blocking loops poll it to avoid spinning forever during shutdown.
func (s *System) ResetRequested() bool {
	return s.Exec.Load()&ExecReset != 0 || s.abort.Load()
}

// Reset requests a system reset. It is safe to call from interrupt
// context and only acts on the first call until the reset is serviced.
func (s *System) Reset() {
	if s.Exec.Raise(ExecReset) == 0 {
		return
	}
	if h := s.Hooks.Halt; h != nil {
		h()
	}
	switch s.State() {
	case StateCycle, StateHoming:
		// position is lost when motion is killed
		s.Exec.Set(ExecAlarm)
	}
}

// ExecuteRuntime consumes pending runtime signals in the foreground.
// It returns false when the foreground must unwind for a reset.
func (s *System) ExecuteRuntime() bool {
	exec := s.Exec.Load()
	if exec == 0 {
		return !s.abort.Load()
	}
	if exec&ExecAlarm != 0 {
		s.SetState(StateAlarm)
		s.Exec.Clear(ExecAlarm)
		s.call(s.Hooks.Alarm)
	}
	if exec&ExecReset != 0 {
		s.abort.Store(true)
		s.consumed(exec & (ExecReset | ExecAlarm))
		return false
	}
	taken := s.Exec.Take(ExecStatusReport | ExecFeedHold | ExecCycleStop | ExecCycleStart)
	if taken&ExecStatusReport != 0 {
		s.call(s.Hooks.StatusReport)
	}
	if taken&ExecFeedHold != 0 {
		s.call(s.Hooks.FeedHold)
	}
	if taken&ExecCycleStop != 0 {
		s.call(s.Hooks.CycleStop)
	}
	if taken&ExecCycleStart != 0 {
		s.call(s.Hooks.CycleStart)
	}
	s.consumed(taken | exec&ExecAlarm)
	return !s.abort.Load()
}

// ServiceAbort runs the reset window if an abort is pending and reports
// whether it did. Runtime signals are cleared before the reset steps run,
// so a reset requested by a step is kept for the next window.
func (s *System) ServiceAbort() bool {
	if !s.abort.Load() {
		return false
	}
	s.Exec.Reset()
	s.abort.Store(false)
	for _, step := range s.resetSteps {
		step()
	}

	if s.State() == StateInit && s.HomingLock {
		s.SetState(StateAlarm)
	}
	if s.State() != StateAlarm {
		s.SetState(StateIdle)
		s.call(s.Hooks.Startup)
	}
	return true
}

// Unlock leaves the alarm state without homing.
func (s *System) Unlock() bool {
	if s.State() != StateAlarm {
		return false
	}
	s.SetState(StateIdle)
	return true
}

func (s *System) call(fn func()) {
	if fn != nil {
		fn()
	}
}

func (s *System) consumed(sig Signal) {
	if sig != 0 && s.Hooks.Consumed != nil {
		s.Hooks.Consumed(sig)
	}
}
