package board

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/robotalks/cnc.go/pkg/framework"
	"github.com/robotalks/cnc.go/pkg/l0/eeprom"
	"github.com/robotalks/cnc.go/pkg/l0/serial"
	"github.com/robotalks/cnc.go/pkg/protocol"
	"github.com/robotalks/cnc.go/pkg/settings"
	"github.com/robotalks/cnc.go/pkg/sim"
	"github.com/robotalks/cnc.go/pkg/sim/mqtt"
	"github.com/robotalks/cnc.go/pkg/system"
)

// MinEEPROMSize is the smallest EEPROM holding all settings records.
const MinEEPROMSize = int(settings.AddrStartupBlock) + settings.NumStartupLines*(settings.LineBufferSize+1)

// Board is a simulated controller board.
type Board struct {
	Config   *Config
	IRQ      *sim.Interrupts
	UART     *sim.UART
	Link     *serial.Link
	EEPROM   *sim.EEPROM
	Store    *eeprom.Store
	Settings *settings.Manager
	System   *system.System
	Protocol *protocol.Processor
	Loop     *fx.Loop
	Pendant  *mqtt.Pendant

	closers  []io.Closer
	initErr  error
	dirty    atomic.Bool
	programs [4]atomic.Uint64
}

// NewBoard creates a Board talking over r and w.
func (c *Config) NewBoard(r io.Reader, w io.Writer) (*Board, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	b := &Board{
		Config: c,
		IRQ:    &sim.Interrupts{},
		System: system.New(),
		Loop:   &fx.Loop{Interval: c.Interval},
	}
	b.System.HomingLock = c.HomingLock

	b.UART = sim.NewUART(r, w, b.IRQ)
	b.UART.Pace = c.Realistic
	opts := []serial.Option{
		serial.WithSignals(&b.System.Exec),
		serial.WithAbortHook(b.System.Reset),
		serial.WithAbortCheck(b.System.ResetRequested),
	}
	if c.FlowControl {
		opts = append(opts, serial.WithFlowControl(serial.DefaultRxHigh, serial.DefaultRxLow))
	}
	b.Link = serial.New(b.UART, opts...)
	b.UART.Handler = &wakeHandler{Handler: b.Link, wake: b.Loop.TriggerNext}
	b.Link.Init(c.Baud)

	b.EEPROM = sim.NewEEPROM(c.EEPROMSize)
	if c.Realistic {
		b.EEPROM.Timing = sim.DatasheetTiming
	}
	if c.EEPROMImage != "" {
		if err := b.EEPROM.LoadFile(c.EEPROMImage); err != nil {
			return nil, fmt.Errorf("load EEPROM image: %w", err)
		}
	}
	b.Store = eeprom.New(b.EEPROM, b.IRQ, eeprom.WithObserver(b.observeProgram))
	b.Settings = settings.NewManager(b.Store)
	b.initErr = b.Settings.Init()

	b.Protocol = &protocol.Processor{
		Link:     b.Link,
		System:   b.System,
		Settings: b.Settings,
		Banner:   c.Banner,
	}
	b.System.Hooks = system.Hooks{
		Halt:         b.halt,
		StatusReport: b.statusReport,
		FeedHold:     b.feedHold,
		CycleStop:    b.cycleStop,
		CycleStart:   b.cycleStart,
		Alarm:        b.alarm,
		Startup:      b.Protocol.ExecuteStartup,
	}
	// Steps must not mask interrupts while already masked, and must not
	// write the EEPROM inside IRQ.Masked: the mask does not nest.
	b.System.OnReset(
		func() { b.IRQ.Masked(b.Link.ResetReadBuffer) },
		b.Protocol.Reset,
		b.reportInit,
	)

	if c.MQTTBrokerURL != "" {
		q, err := mqtt.NewQueueFromURL(c.MQTTBrokerURL, "cnc:"+c.BoardID)
		if err != nil {
			return nil, fmt.Errorf("create MQTT queue: %w", err)
		}
		if b.Pendant, err = mqtt.NewPendant(q, c.BoardID, b.UART); err != nil {
			return nil, err
		}
		b.Pendant.RealtimeOnly = c.RealtimeOnly
		b.System.Hooks.Consumed = b.notifyPendant
		b.Loop.AddRunnable(b.Pendant)
	}

	b.Loop.AddRunnable(fx.NamedRun("uart", b.UART))
	b.Loop.AddTask(fx.PrLvReset, fx.PollFunc(b.serviceReset))
	b.Loop.AddTask(fx.PrLvRuntime, fx.PollFunc(b.executeRuntime))
	b.Loop.AddTask(fx.PrLvProtocol, fx.PollFunc(b.processLines))
	b.Loop.AddTask(fx.PrLvPersist, fx.PollFunc(b.persist))
	return b, nil
}

// Open creates the Board on the configured serial device or on stdio.
func (c *Config) Open() (*Board, error) {
	if c.Device == "" {
		return c.NewBoard(os.Stdin, os.Stdout)
	}
	port, err := OpenPort(c.Device, c.Baud)
	if err != nil {
		return nil, err
	}
	b, err := c.NewBoard(port, port)
	if err != nil {
		port.Close()
		return nil, err
	}
	b.closers = append(b.closers, port)
	return b, nil
}

// Run implements framework.Runnable.
func (b *Board) Run(ctx context.Context) error {
	glog.Infof("board %s running at %d baud", b.Config.BoardID, b.UART.Settings().Rate)
	return fx.RunWithContextCloser(ctx, closerFunc(b.shutdown), func() error {
		return b.Loop.Run(ctx)
	})
}

// Programs returns the number of EEPROM program cycles of mode issued
// by the store.
func (b *Board) Programs(mode eeprom.Mode) uint64 {
	if mode < 0 || int(mode) >= len(b.programs) {
		return 0
	}
	return b.programs[mode].Load()
}

// Save writes the EEPROM image when it has changed.
func (b *Board) Save() error {
	if b.Config.EEPROMImage == "" || !b.dirty.Swap(false) {
		return nil
	}
	if err := b.EEPROM.SaveFile(b.Config.EEPROMImage); err != nil {
		b.dirty.Store(true)
		return fmt.Errorf("save EEPROM image: %w", err)
	}
	glog.V(1).Infof("EEPROM image saved to %s", b.Config.EEPROMImage)
	return nil
}

func (b *Board) shutdown() error {
	var errs fx.AggregatedError
	errs.Add(b.Save())
	for _, c := range b.closers {
		errs.Add(c.Close())
	}
	err := errs.Aggregate()
	if err != nil {
		glog.Errorf("board shutdown: %v", err)
	}
	return err
}

func (b *Board) observeProgram(addr uint16, mode eeprom.Mode) {
	if mode == eeprom.ModeNone {
		return
	}
	b.programs[mode].Add(1)
	b.dirty.Store(true)
	glog.V(3).Infof("EEPROM %04x %s", addr, mode)
}

func (b *Board) serviceReset(fx.PollContext) error {
	if b.System.ServiceAbort() {
		glog.V(1).Infof("reset serviced, state %s", b.System.State())
	}
	return nil
}

func (b *Board) executeRuntime(fx.PollContext) error {
	b.System.ExecuteRuntime()
	return nil
}

func (b *Board) processLines(ctx fx.PollContext) error {
	if b.System.Aborted() {
		ctx.TriggerNext()
		return nil
	}
	b.Protocol.Process()
	if b.System.Aborted() {
		ctx.TriggerNext()
	}
	return nil
}

func (b *Board) persist(fx.PollContext) error {
	return b.Save()
}

func (b *Board) reportInit() {
	if err := b.initErr; err != nil {
		b.initErr = nil
		b.Protocol.Report(err)
	}
}

func (b *Board) halt() {
	glog.V(1).Info("halt")
}

func (b *Board) statusReport() {
	b.Link.WriteString("<" + b.System.State().String() + ">\r\n")
}

func (b *Board) feedHold() {
	if b.System.State() == system.StateCycle {
		b.System.SetState(system.StateHold)
	}
}

func (b *Board) cycleStop() {
	switch b.System.State() {
	case system.StateCycle, system.StateHold:
		b.System.SetState(system.StateIdle)
	}
}

func (b *Board) cycleStart() {
	switch b.System.State() {
	case system.StateQueued, system.StateHold:
		b.System.SetState(system.StateCycle)
	}
}

func (b *Board) alarm() {
	glog.Warning("alarm, position lost")
	b.Link.WriteString("ALARM: Abort during cycle\r\n")
}

func (b *Board) notifyPendant(sig system.Signal) {
	b.Pendant.Notify(sig, b.System.State())
}

type wakeHandler struct {
	sim.Handler
	wake func()
}

func (h *wakeHandler) OnReceive(c byte) {
	h.Handler.OnReceive(c)
	h.wake()
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}
