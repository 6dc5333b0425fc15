package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recordTask(out *[]string, name string) Task {
	return PollFunc(func(PollContext) error {
		*out = append(*out, name)
		return nil
	})
}

func TestLoopPriorityOrder(t *testing.T) {
	var order []string
	l := NewLoop()
	l.AddTask(PrLvProtocol, recordTask(&order, "protocol"))
	l.AddTask(PrLvReset, recordTask(&order, "reset"))
	l.AddTask(PrLvRuntime, recordTask(&order, "runtime"), recordTask(&order, "runtime2"))
	l.AddTask(PrLvPersist, recordTask(&order, "persist"))
	l.RunIteration(context.Background())
	require.Equal(t, []string{"reset", "runtime", "runtime2", "protocol", "persist"}, order)
	require.Equal(t, uint64(1), l.Iterations())
}

func TestLoopHooks(t *testing.T) {
	var order []string
	l := NewLoop()
	l.AddTask(PrLvNormal, PollFunc(func(ctx PollContext) error {
		order = append(order, "task")
		require.Equal(t, PrLvNormal, ctx.PriorityLevel())
		if ctx.Iteration() == 0 {
			ctx.PostRun(recordTask(&order, "post"))
			ctx.PreRunAt(PrLvLow, recordTask(&order, "low-pre"))
		}
		return nil
	}))
	l.PreRunAt(PrLvNormal, recordTask(&order, "pre"))
	l.RunIteration(context.Background())
	require.Equal(t, []string{"pre", "task", "post", "low-pre"}, order)

	order = nil
	l.RunIteration(context.Background())
	require.Equal(t, []string{"task"}, order)
}

func TestLoopTaskErrorContinues(t *testing.T) {
	var order []string
	l := NewLoop()
	l.AddTask(PrLvHigh, PollFunc(func(PollContext) error { return errors.New("failed") }))
	l.AddTask(PrLvLow, recordTask(&order, "low"))
	l.RunIteration(context.Background())
	require.Equal(t, []string{"low"}, order)
}

func TestLoopTriggerNext(t *testing.T) {
	l := &Loop{Interval: time.Hour}
	polled := make(chan uint64, 4)
	l.AddTask(PrLvNormal, PollFunc(func(ctx PollContext) error {
		polled <- ctx.Iteration()
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	require.Equal(t, uint64(0), <-polled)
	l.TriggerNext()
	select {
	case seq := <-polled:
		require.Equal(t, uint64(1), seq)
	case <-time.After(time.Second):
		t.Fatal("iteration not triggered")
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestLoopStopsOnRunnableFailure(t *testing.T) {
	failure := errors.New("port closed")
	l := &Loop{Interval: time.Hour}
	l.AddRunnable(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	l.AddRunnable(NamedRun("port", RunFunc(func(context.Context) error { return failure })))
	err := l.Run(context.Background())
	require.True(t, errors.Is(err, failure))
}

type runnableTask struct {
	started chan struct{}
}

func (r *runnableTask) Poll(PollContext) error { return nil }

func (r *runnableTask) Run(ctx context.Context) error {
	close(r.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestLoopStartsRunnableTasks(t *testing.T) {
	task := &runnableTask{started: make(chan struct{})}
	l := NewLoop().AddTask(PrLvIdle, task)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	<-task.started
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}
