package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Task is a unit of foreground work polled by the super-loop.
// It must return quickly, long running work is split across iterations.
type Task interface {
	Poll(PollContext) error
}

// PollFunc is the func form of Task.
type PollFunc func(PollContext) error

// Poll implements Task.
func (f PollFunc) Poll(ctx PollContext) error {
	return f(ctx)
}

// TimeSource provides the time of the current iteration.
type TimeSource interface {
	Time() time.Time
}

// PollContext provides the context of current loop iteration.
type PollContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// Iteration is the sequence number of the current iteration.
	Iteration() uint64
	// PriorityLevel gets the current priority level.
	PriorityLevel() int
	// PostRun injects post-run one-shot hooks at current
	// priority level. If called in post-run hooks, new hooks
	// are installed for next iteration.
	PostRun(hooks ...Task)

	LoopControl
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 16

// Predefine priority levels
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvReset is the priority level of the reset window.
	PrLvReset = PrLvTop
	// PrLvRuntime is the priority level servicing runtime signals.
	PrLvRuntime = PrLvHigh
	// PrLvProtocol is the priority level processing received lines.
	PrLvProtocol = PrLvNormal
	// PrLvPersist is the priority level for flushing state to the host.
	PrLvPersist = PrLvIdle - 1
)

// LoopControl exposes access to the super-loop.
type LoopControl interface {
	// PreRunAt injects one-shot pre-run hooks at specified priority level.
	PreRunAt(priorityLevel int, tasks ...Task)
	// PostRunAt injects one-shot post-run hooks at specified priority level.
	PostRunAt(priorityLevel int, tasks ...Task)
	// TriggerNext schedules the next iteration to be executed
	// immediately after the current iteration.
	TriggerNext()
}
