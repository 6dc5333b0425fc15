package framework

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the idle period between iterations.
const DefaultInterval = 10 * time.Millisecond

// Loop is the foreground super-loop. Each iteration polls the registered
// tasks level by level, starting at PrLvTop. An iteration starts on every
// interval tick or after TriggerNext.
type Loop struct {
	Interval time.Duration

	tasks   [PriorityLevels]taskList
	runners []Runnable

	iterations atomic.Uint64
	wakeUpOnce sync.Once
	wakeUpCh   chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	*Loop
	ctx           context.Context
	time          time.Time
	seq           uint64
	priorityLevel int
}

type taskList struct {
	preHooks  []Task
	tasks     []Task
	postHooks []Task
	lock      sync.Mutex
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddTask registers tasks at the priority level. Tasks implementing
// Runnable are also started with the loop.
func (l *Loop) AddTask(priorityLevel int, tasks ...Task) *Loop {
	lst := &l.tasks[priorityLevel]
	lst.tasks = append(lst.tasks, tasks...)
	for _, task := range tasks {
		if runner, ok := task.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions started with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Iterations returns the number of completed iterations.
func (l *Loop) Iterations() uint64 {
	return l.iterations.Load()
}

// Run implements Runnable. It stops when ctx is done or any of the
// Runnables added to the loop fails.
func (l *Loop) Run(ctx context.Context) error {
	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)

	interval := l.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	wakeUpCh := l.wakeUp()
	l.RunIteration(ctx)
	for {
		select {
		case <-ctx.Done():
			if err := runner.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		case <-runner.Failed():
			return runner.Wait()
		case <-ticker.C:
			l.RunIteration(ctx)
		case <-wakeUpCh:
			l.RunIteration(ctx)
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail() {
	if err := l.Run(context.TODO()); err != nil {
		log.Fatalln(err)
	}
}

// PreRunAt implements LoopControl.
func (l *Loop) PreRunAt(priorityLevel int, hooks ...Task) {
	lst := &l.tasks[priorityLevel]
	lst.lock.Lock()
	lst.preHooks = append(lst.preHooks, hooks...)
	lst.lock.Unlock()
}

// PostRunAt implements LoopControl.
func (l *Loop) PostRunAt(priorityLevel int, hooks ...Task) {
	lst := &l.tasks[priorityLevel]
	lst.lock.Lock()
	lst.postHooks = append(lst.postHooks, hooks...)
	lst.lock.Unlock()
}

// TriggerNext implements LoopControl. It is safe to call from any
// goroutine, including interrupt handlers.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUp() <- struct{}{}:
	default:
	}
}

func (l *Loop) wakeUp() chan struct{} {
	l.wakeUpOnce.Do(func() {
		l.wakeUpCh = make(chan struct{}, 1)
	})
	return l.wakeUpCh
}

// RunIteration runs a single iteration in the calling goroutine.
func (l *Loop) RunIteration(ctx context.Context) {
	iter := &loopIteration{Loop: l, ctx: ctx, time: time.Now(), seq: l.iterations.Load()}
	for i := 0; i < PriorityLevels; i++ {
		iter.priorityLevel = i
		l.tasks[i].run(iter)
	}
	l.iterations.Add(1)
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) Iteration() uint64 {
	return t.seq
}

func (t *loopIteration) PriorityLevel() int {
	return t.priorityLevel
}

func (t *loopIteration) PostRun(hooks ...Task) {
	t.PostRunAt(t.priorityLevel, hooks...)
}

func (c *taskList) run(iter *loopIteration) {
	c.lock.Lock()
	hooks := c.preHooks
	c.preHooks = nil
	c.lock.Unlock()
	pollTasks(iter, hooks)
	pollTasks(iter, c.tasks)
	c.lock.Lock()
	hooks, c.postHooks = c.postHooks, nil
	c.lock.Unlock()
	pollTasks(iter, hooks)
}

func pollTasks(iter *loopIteration, tasks []Task) {
	for _, task := range tasks {
		if err := task.Poll(iter); err != nil {
			glog.Errorf("task error at level %d: %v", iter.priorityLevel, err)
		}
	}
}
