package sim

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/cnc.go/pkg/l0/serial"
)

// Handler is the set of UART interrupt handlers.
type Handler interface {
	OnReceive(byte)
	OnTransmitReady()
}

// UART simulates the UART of the board on top of a byte stream.
// Received bytes and transmit-ready events are dispatched to Handler
// in interrupt context.
type UART struct {
	Reader  io.Reader
	Writer  io.Writer
	Handler Handler
	IRQ     *Interrupts
	// Pace throttles transmission to the configured symbol rate.
	Pace bool

	settings   serial.Settings
	configLock sync.RWMutex

	armed    atomic.Bool
	wakeCh   chan struct{}
	injectCh chan []byte
	out      []byte
}

// NewUART creates a UART reading from r and writing to w. Either may be nil.
func NewUART(r io.Reader, w io.Writer, irq *Interrupts) *UART {
	if irq == nil {
		irq = &Interrupts{}
	}
	return &UART{
		Reader:   r,
		Writer:   w,
		IRQ:      irq,
		wakeCh:   make(chan struct{}, 1),
		injectCh: make(chan []byte, 16),
	}
}

// Configure implements serial.Port.
func (u *UART) Configure(s serial.Settings) {
	u.configLock.Lock()
	u.settings = s
	u.configLock.Unlock()
	glog.V(2).Infof("UART %d baud divisor=%d double=%v", s.Rate, s.Divisor, s.DoubleSpeed)
}

// Settings returns the line settings last configured.
func (u *UART) Settings() serial.Settings {
	u.configLock.RLock()
	defer u.configLock.RUnlock()
	return u.settings
}

// ArmTransmit implements serial.Port.
func (u *UART) ArmTransmit(enabled bool) {
	u.armed.Store(enabled)
	if enabled {
		select {
		case u.wakeCh <- struct{}{}:
		default:
		}
	}
}

// Armed reports whether the transmit-ready interrupt is enabled.
func (u *UART) Armed() bool {
	return u.armed.Load()
}

// Transmit implements serial.Port. It is only called from a handler.
func (u *UART) Transmit(b byte) {
	u.out = append(u.out, b)
}

// Inject feeds bytes into the receive line as if they arrived on the wire.
func (u *UART) Inject(p []byte) {
	if len(p) > 0 {
		u.injectCh <- append([]byte(nil), p...)
	}
}

// Run dispatches interrupts until ctx is done or the stream fails.
func (u *UART) Run(ctx context.Context) error {
	byteCh, errCh := make(chan []byte), make(chan error, 1)
	if u.Reader != nil {
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go u.readLoop(subCtx, byteCh, errCh)
	}
	for {
		if u.armed.Load() {
			select {
			case p := <-byteCh:
				u.receive(p)
			case p := <-u.injectCh:
				u.receive(p)
			case err := <-errCh:
				return err
			case <-ctx.Done():
				return ctx.Err()
			default:
				if err := u.transmitReady(); err != nil {
					return err
				}
			}
			continue
		}
		select {
		case p := <-byteCh:
			u.receive(p)
		case p := <-u.injectCh:
			u.receive(p)
		case <-u.wakeCh:
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (u *UART) readLoop(ctx context.Context, byteCh chan []byte, errCh chan error) {
	buf := make([]byte, 64)
	for {
		n, err := u.Reader.Read(buf)
		if n > 0 {
			select {
			case byteCh <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

func (u *UART) receive(p []byte) {
	if u.Handler == nil {
		return
	}
	glog.V(3).Infof("UART RX % x", p)
	for _, b := range p {
		b := b
		u.IRQ.Dispatch(func() { u.Handler.OnReceive(b) })
	}
}

func (u *UART) transmitReady() error {
	if u.Handler == nil {
		u.armed.Store(false)
		return nil
	}
	u.IRQ.Dispatch(u.Handler.OnTransmitReady)
	if len(u.out) == 0 {
		return nil
	}
	out := u.out
	u.out = u.out[:0]
	if u.Pace {
		if rate := u.Settings().Rate; rate > 0 {
			time.Sleep(time.Duration(len(out)*10) * time.Second / time.Duration(rate))
		}
	}
	if u.Writer == nil {
		return nil
	}
	glog.V(3).Infof("UART TX % x", out)
	_, err := u.Writer.Write(out)
	return err
}
