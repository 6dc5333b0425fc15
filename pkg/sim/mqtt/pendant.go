package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/cnc.go/pkg/l0/serial"
	"github.com/robotalks/cnc.go/pkg/system"
)

// Topics relative to <prefix><board>/.
const (
	TopicRealtime = "realtime"
	TopicSignal   = "signal"
)

// DefaultEventBuffer is the number of events queued for publishing.
const DefaultEventBuffer = 16

// Injector feeds bytes into the receive line of the board.
type Injector interface {
	Inject([]byte)
}

// Pendant is a remote pendant over MQTT. Payloads received on the
// realtime topic are injected into the receive line, and every batch of
// consumed runtime signals is published as a SignalEvent.
type Pendant struct {
	Queue *Queue
	Board string
	RX    Injector
	// RealtimeOnly drops injected bytes other than realtime commands.
	RealtimeOnly bool

	events  chan *SignalEvent
	dropped atomic.Uint64
}

// NewPendant creates a Pendant.
func NewPendant(q *Queue, board string, rx Injector) (*Pendant, error) {
	if board == "" {
		return nil, ErrNoBoardID
	}
	return &Pendant{
		Queue:  q,
		Board:  board,
		RX:     rx,
		events: make(chan *SignalEvent, DefaultEventBuffer),
	}, nil
}

// Name implements framework.Named.
func (p *Pendant) Name() string {
	return "pendant"
}

// Topic returns the board topic of name.
func (p *Pendant) Topic(name string) string {
	return p.Board + "/" + name
}

// Notify queues a SignalEvent without blocking. The event is dropped
// when the queue is full.
func (p *Pendant) Notify(sig system.Signal, state system.State) bool {
	ev := NewSignalEvent(p.Board, sig, state, time.Now())
	select {
	case p.events <- ev:
		return true
	default:
		p.dropped.Add(1)
		glog.V(2).Infof("pendant event dropped: %v", sig)
		return false
	}
}

// Dropped returns the number of events dropped.
func (p *Pendant) Dropped() uint64 {
	return p.dropped.Load()
}

// Run implements framework.Runnable.
func (p *Pendant) Run(ctx context.Context) error {
	sub := p.Queue.Sub(p.Topic(TopicRealtime), p.handleRealtime)
	defer sub.Close()
	token := p.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect MQTT broker: %w", err)
	}
	defer p.Queue.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.events:
			p.publish(ev)
		}
	}
}

func (p *Pendant) publish(ev *SignalEvent) {
	data, err := proto.Marshal(ev)
	if err != nil {
		glog.Errorf("encode signal event: %v", err)
		return
	}
	p.Queue.Pub(p.Topic(TopicSignal), data)
}

func (p *Pendant) handleRealtime(_ string, payload []byte) {
	if p.RealtimeOnly {
		filtered := make([]byte, 0, len(payload))
		for _, b := range payload {
			if serial.IsRealtime(b) {
				filtered = append(filtered, b)
			}
		}
		payload = filtered
	}
	if len(payload) > 0 {
		p.RX.Inject(payload)
	}
}
