package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/cnc.go/pkg/l0/eeprom"
	"github.com/robotalks/cnc.go/pkg/settings"
	"github.com/robotalks/cnc.go/pkg/sim"
	"github.com/robotalks/cnc.go/pkg/system"
)

type testLink struct {
	in  []byte
	out strings.Builder
}

func (l *testLink) Read() (byte, bool) {
	if len(l.in) == 0 {
		return 0, false
	}
	b := l.in[0]
	l.in = l.in[1:]
	return b, true
}

func (l *testLink) WriteString(s string) int {
	l.out.WriteString(s)
	return len(s)
}

func (l *testLink) send(s string) {
	l.in = append(l.in, s...)
}

func (l *testLink) output() string {
	out := l.out.String()
	l.out.Reset()
	return out
}

type processorTestCtx struct {
	link  *testLink
	sys   *system.System
	mgr   *settings.Manager
	store *eeprom.Store
	lines []string
	proc  *Processor
}

func newProcessorTestCtx(t *testing.T) *processorTestCtx {
	c := &processorTestCtx{link: &testLink{}, sys: system.New()}
	c.store = eeprom.New(sim.NewEEPROM(sim.DefaultEEPROMSize), &sim.Interrupts{})
	c.mgr = settings.NewManager(c.store)
	require.Equal(t, settings.ErrReadFail, c.mgr.Init())
	c.proc = &Processor{
		Link:     c.link,
		System:   c.sys,
		Settings: c.mgr,
		Handler: ExecuteLineFunc(func(line string) error {
			c.lines = append(c.lines, line)
			return nil
		}),
	}
	require.True(t, c.sys.ServiceAbort())
	return c
}

func (c *processorTestCtx) run(in string) string {
	c.link.send(in)
	c.proc.Process()
	return c.link.output()
}

func TestProcessorProgramLines(t *testing.T) {
	c := newProcessorTestCtx(t)
	require.Equal(t, "ok\r\nok\r\nok\r\n", c.run("g0 x1\n(comment)\nG1 Y2 F100\r\n"))
	require.Equal(t, []string{"G0X1", "G1Y2F100"}, c.lines)
}

func TestProcessorPartialLine(t *testing.T) {
	c := newProcessorTestCtx(t)
	require.Empty(t, c.run("G0"))
	require.Equal(t, "ok\r\n", c.run("X1\n"))
	require.Equal(t, []string{"G0X1"}, c.lines)
}

func TestProcessorLineError(t *testing.T) {
	c := newProcessorTestCtx(t)
	c.proc.Handler = ExecuteLineFunc(func(string) error { return ErrUnsupportedStatement })
	require.Equal(t, "error: unsupported statement\r\n", c.run("M6\n"))
}

func TestProcessorNoHandler(t *testing.T) {
	c := newProcessorTestCtx(t)
	c.proc.Handler = nil
	require.Equal(t, "ok\r\n", c.run("G0X1\n"))
}

func TestProcessorOverflow(t *testing.T) {
	c := newProcessorTestCtx(t)
	require.Equal(t, "error: line overflow\r\nok\r\n", c.run(strings.Repeat("X", 80)+"\n"))
	require.Equal(t, []string{strings.Repeat("X", 80-LineBufferSize)}, c.lines)
}

func TestProcessorDumpSettings(t *testing.T) {
	c := newProcessorTestCtx(t)
	out := c.run("$$\n")
	require.True(t, strings.HasPrefix(out, "$0=250 (x, step/mm)\r\n"))
	require.Contains(t, out, "$3=10 (step pulse, usec)\r\n")
	require.Contains(t, out, "$8=10 (acceleration, mm/sec^2)\r\n")
	require.Contains(t, out, "$9=0.05 (junction deviation, mm)\r\n")
	require.Contains(t, out, "$14=1 (auto start, bool)\r\n")
	require.True(t, strings.HasSuffix(out, "$22=1 (homing pull-off, mm)\r\nok\r\n"))
	require.Equal(t, len(settings.Params)+1, strings.Count(out, "\r\n"))
}

func TestProcessorStoreSetting(t *testing.T) {
	c := newProcessorTestCtx(t)
	require.Equal(t, "ok\r\n", c.run("$1=100\n"))
	require.Equal(t, float32(100), c.mgr.Settings.StepsPerMM[1])

	reloaded := settings.NewManager(c.store)
	require.NoError(t, reloaded.Init())
	require.Equal(t, float32(100), reloaded.Settings.StepsPerMM[1])
}

func TestProcessorSystemErrors(t *testing.T) {
	testCases := []struct {
		in     string
		expect string
	}{
		{in: "$3=2\n", expect: "error: value < 3 usec\r\n"},
		{in: "$3=300\n", expect: "error: value out of range\r\n"},
		{in: "$7=-1\n", expect: "error: value out of range\r\n"},
		{in: "$0=-1\n", expect: "error: value < 0.0\r\n"},
		{in: "$30=1\n", expect: "error: invalid statement\r\n"},
		{in: "$A=1\n", expect: "error: bad number format\r\n"},
		{in: "$1=ABC\n", expect: "error: bad number format\r\n"},
		{in: "$Q\n", expect: "error: unsupported statement\r\n"},
		{in: "$N5=G20\n", expect: "error: invalid statement\r\n"},
		{in: "$N0\n", expect: "error: unsupported statement\r\n"},
	}
	for _, tc := range testCases {
		t.Run(strings.TrimSpace(tc.in), func(t *testing.T) {
			c := newProcessorTestCtx(t)
			require.Equal(t, tc.expect, c.run(tc.in))
		})
	}
}

func TestProcessorHelp(t *testing.T) {
	c := newProcessorTestCtx(t)
	require.Equal(t, helpText+"ok\r\n", c.run("$\n"))
}

func TestProcessorStartupLines(t *testing.T) {
	c := newProcessorTestCtx(t)
	require.Equal(t, "ok\r\n", c.run("$n0=g21 (metric)\n"))
	require.Equal(t, "$N0=G21\r\n$N1=\r\nok\r\n", c.run("$N\n"))

	c.proc.ExecuteStartup()
	require.Equal(t, "G21ok\r\n", c.link.output())
	require.Equal(t, []string{"G21"}, c.lines)
}

func TestProcessorCoordinates(t *testing.T) {
	c := newProcessorTestCtx(t)
	require.NoError(t, c.mgr.WriteCoordData(settings.IndexG28, settings.Coord{1, 2.5, -3}))
	out := c.run("$#\n")
	require.True(t, strings.HasPrefix(out, "[G54:0.000,0.000,0.000]\r\n"))
	require.Contains(t, out, "[G28:1.000,2.500,-3.000]\r\n")
	require.True(t, strings.HasSuffix(out, "[G30:0.000,0.000,0.000]\r\nok\r\n"))
}

func TestProcessorAlarmLock(t *testing.T) {
	c := newProcessorTestCtx(t)
	c.sys.SetState(system.StateAlarm)
	require.Equal(t, "error: alarm lock\r\n", c.run("G0X1\n"))
	require.Equal(t, "ok\r\n", c.run("$1=200\n"))
	require.Equal(t, "[Caution: Unlocked]\r\nok\r\n", c.run("$X\n"))
	require.Equal(t, system.StateIdle, c.sys.State())
	require.Equal(t, "ok\r\n", c.run("G0X1\n"))
	require.Equal(t, []string{"G0X1"}, c.lines)
	require.Equal(t, "ok\r\n", c.run("$X\n"))
}

func TestProcessorUnwindsOnReset(t *testing.T) {
	c := newProcessorTestCtx(t)
	c.proc.Handler = ExecuteLineFunc(func(line string) error {
		c.lines = append(c.lines, line)
		c.sys.Reset()
		return nil
	})
	require.Equal(t, "ok\r\n", c.run("G0\nG1\n"))
	require.Equal(t, []string{"G0"}, c.lines)
	require.True(t, c.sys.Aborted())
	require.Equal(t, []byte("G1\n"), c.link.in)
}

func TestProcessorRuntimeSignals(t *testing.T) {
	c := newProcessorTestCtx(t)
	var reports int
	c.sys.Hooks.StatusReport = func() { reports++ }
	c.sys.Exec.Set(system.ExecStatusReport)
	require.Equal(t, "ok\r\n", c.run("G0\n"))
	require.Equal(t, 1, reports)
}

func TestProcessorBanner(t *testing.T) {
	c := newProcessorTestCtx(t)
	c.link.send("G0")
	c.proc.Banner = "Grbl 0.8c ['$' for help]"
	c.proc.Reset()
	require.Equal(t, "\r\nGrbl 0.8c ['$' for help]\r\n", c.link.output())
	require.Equal(t, "ok\r\n", c.run("X1\n"))
	require.Equal(t, []string{"G0X1"}, c.lines)
}
