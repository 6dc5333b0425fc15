// Package sh provides an interactive console driving an in-process
// simulated board.
package sh

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/cnc.go/pkg/board"
)

const (
	// ResponseTimeout is the longest wait for the reply of a line.
	ResponseTimeout = time.Second
	// QuietTime is the silence on the wire ending unsolicited output.
	QuietTime = 50 * time.Millisecond
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoPowerOn bool

	Shell  *ishell.Shell
	Config *board.Config
	Board  *RunningBoard
}

// RunningBoard is a board running in background with its wire attached
// to the shell.
type RunningBoard struct {
	*board.Board
	Cancel func()

	in    *io.PipeWriter
	out   *Output
	errCh chan error
}

const (
	shellKey    = "$shell"
	offPrompt   = "[off] > "
	boardPrompt = "%s > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&PowerOnCmd,
		&PowerOffCmd,
		&SendCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *board.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(offPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBePoweredOn wraps command func requires a running board.
func MustBePoweredOn(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Board == nil {
			c.Err(ErrPoweredOff)
			return
		}
		fn(c)
	}
}

// PrintResult prints v as JSON with -json, otherwise with text.
func PrintResult(c *ishell.Context, v interface{}, text string) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Print(text)
}

// WithAutoPowerOn sets AutoPowerOn.
func (s *Shell) WithAutoPowerOn(en bool) *Shell {
	s.AutoPowerOn = en
	return s
}

// PowerOn starts a board from the config. A running board is stopped first.
func (s *Shell) PowerOn() (string, error) {
	s.PowerOff()
	r, w := io.Pipe()
	out := NewOutput()
	b, err := s.Config.NewBoard(r, out)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithCancel(context.Background())
	rb := &RunningBoard{Board: b, Cancel: cancel, in: w, out: out, errCh: make(chan error, 1)}
	go func() { rb.errCh <- b.Run(ctx) }()
	s.Board = rb
	s.Shell.SetPrompt(fmt.Sprintf(boardPrompt, s.Config.BoardID))
	banner := strings.TrimSpace(s.Config.Banner)
	greeting := out.WaitFor(func(s string) bool { return strings.Contains(s, banner) }, ResponseTimeout)
	return greeting + out.WaitQuiet(QuietTime, ResponseTimeout), nil
}

// PowerOff stops the running board.
func (s *Shell) PowerOff() error {
	if s.Board == nil {
		return nil
	}
	rb := s.Board
	s.Board = nil
	s.Shell.SetPrompt(offPrompt)
	rb.Cancel()
	err := <-rb.errCh
	rb.in.Close()
	if err == context.Canceled {
		return nil
	}
	return err
}

// SendLine sends a line and waits for its status line.
func (b *RunningBoard) SendLine(line string) (string, error) {
	if _, err := b.in.Write([]byte(line + "\n")); err != nil {
		return "", err
	}
	return b.out.WaitFor(hasStatusLine, ResponseTimeout), nil
}

// SendRealtime sends a realtime byte and collects the output within d.
func (b *RunningBoard) SendRealtime(c byte, d time.Duration) (string, error) {
	if _, err := b.in.Write([]byte{c}); err != nil {
		return "", err
	}
	return b.out.WaitFor(func(string) bool { return false }, d), nil
}

func hasStatusLine(s string) bool {
	for _, line := range strings.Split(s, "\r\n") {
		if line == "ok" || strings.HasPrefix(line, "error:") {
			return true
		}
	}
	return false
}

// Output collects the bytes transmitted by the board.
type Output struct {
	lock sync.Mutex
	buf  bytes.Buffer
	ch   chan struct{}
}

// NewOutput creates an Output.
func NewOutput() *Output {
	return &Output{ch: make(chan struct{}, 1)}
}

// Write implements io.Writer.
func (o *Output) Write(p []byte) (int, error) {
	o.lock.Lock()
	n, err := o.buf.Write(p)
	o.lock.Unlock()
	select {
	case o.ch <- struct{}{}:
	default:
	}
	return n, err
}

// WaitFor waits until the collected output satisfies match or timeout
// expires, then takes and returns the collected output.
func (o *Output) WaitFor(match func(string) bool, timeout time.Duration) string {
	deadline := time.After(timeout)
	for {
		o.lock.Lock()
		s := o.buf.String()
		if match(s) {
			o.buf.Reset()
			o.lock.Unlock()
			return s
		}
		o.lock.Unlock()
		select {
		case <-o.ch:
		case <-deadline:
			return o.Take()
		}
	}
}

// WaitQuiet collects output until nothing is written for quiet or
// timeout expires, then takes and returns the collected output.
func (o *Output) WaitQuiet(quiet, timeout time.Duration) string {
	deadline := time.After(timeout)
	for {
		select {
		case <-o.ch:
		case <-time.After(quiet):
			return o.Take()
		case <-deadline:
			return o.Take()
		}
	}
}

// Take takes all collected output.
func (o *Output) Take() string {
	o.lock.Lock()
	defer o.lock.Unlock()
	s := o.buf.String()
	o.buf.Reset()
	return s
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoPowerOn {
		out, err := s.PowerOn()
		if err != nil {
			log.Fatalf("power on failed: %v", err)
		}
		if s.Interactive {
			s.Shell.Print(out)
		}
	}
	defer s.PowerOff()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// PowerOnCmd starts the board.
	PowerOnCmd = ishell.Cmd{
		Name:    "on",
		Aliases: []string{"power"},
		Help:    "power on (or cycle) the board",
		Func: func(c *ishell.Context) {
			out, err := ShellFrom(c).PowerOn()
			if err != nil {
				c.Err(err)
				return
			}
			c.Print(out)
		},
	}

	// PowerOffCmd stops the board.
	PowerOffCmd = ishell.Cmd{
		Name: "off",
		Help: "power off the board, the EEPROM image is saved",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).PowerOff(); err != nil {
				c.Err(err)
			}
		},
	}

	// SendCmd sends a line.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "LINE",
		Func: MustBePoweredOn(func(c *ishell.Context) {
			out, err := ShellFrom(c).Board.SendLine(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			c.Print(out)
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(board.MustLoadConfig()).WithAutoPowerOn(true).Run(flag.Args()...)
}
