package realtime

import (
	"fmt"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/cnc.go/pkg/cli/sh"
	"github.com/robotalks/cnc.go/pkg/l0/serial"
)

// CollectTime is how long output is collected after a realtime command.
const CollectTime = 100 * time.Millisecond

// Commands maps names to realtime command bytes.
var Commands = map[string]byte{
	"status": serial.CmdStatusReport,
	"start":  serial.CmdCycleStart,
	"hold":   serial.CmdFeedHold,
	"reset":  serial.CmdReset,
}

// LinkStatus is the serial link report.
type LinkStatus struct {
	serial.Stats
	Rate      int    `json:"rate"`
	Available int    `json:"available"`
	Pending   int    `json:"pending"`
	Flow      string `json:"flow"`
	State     string `json:"state"`
}

var (
	// RealtimeCmd sends a realtime command.
	RealtimeCmd = ishell.Cmd{
		Name:    "rt",
		Aliases: []string{"!"},
		Help:    "status|start|hold|reset",
		Func: sh.MustBePoweredOn(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(sh.ErrUsage)
				return
			}
			cmd, ok := Commands[c.Args[0]]
			if !ok {
				c.Err(fmt.Errorf("%w: unknown realtime command %q", sh.ErrUsage, c.Args[0]))
				return
			}
			out, err := sh.ShellFrom(c).Board.SendRealtime(cmd, CollectTime)
			if err != nil {
				c.Err(err)
				return
			}
			c.Print(out)
		}),
	}

	// LinkCmd reports the serial link.
	LinkCmd = ishell.Cmd{
		Name: "link",
		Help: "",
		Func: sh.MustBePoweredOn(func(c *ishell.Context) {
			b := sh.ShellFrom(c).Board
			st := LinkStatus{
				Stats:     b.Link.Stats(),
				Rate:      b.UART.Settings().Rate,
				Available: b.Link.Available(),
				Pending:   b.Link.Pending(),
				Flow:      b.Link.FlowState().String(),
				State:     b.System.State().String(),
			}
			sh.PrintResult(c, st, fmt.Sprintf(
				"rate=%d state=%s flow=%s rx=%d tx=%d\nreceived=%d dropped=%d realtime=%d transmitted=%d\n",
				st.Rate, st.State, st.Flow, st.Available, st.Pending,
				st.Received, st.Dropped, st.Realtime, st.Transmitted))
		}),
	}
)

func init() {
	sh.AddCmds(
		&RealtimeCmd,
		&LinkCmd,
	)
}
