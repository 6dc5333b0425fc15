package eeprom

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/cnc.go/pkg/cli/sh"
	"github.com/robotalks/cnc.go/pkg/l0/eeprom"
)

func parseAddr(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: address %q", sh.ErrUsage, s)
	}
	return uint16(n), nil
}

// FormatDump formats bytes as a hex dump starting at addr.
func FormatDump(addr uint16, data []byte) string {
	var sb strings.Builder
	for n := 0; n < len(data); n += 16 {
		end := n + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(&sb, "%04x:", int(addr)+n)
		for _, b := range data[n:end] {
			fmt.Fprintf(&sb, " %02x", b)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Stats is the EEPROM wear report.
type Stats struct {
	Size        int               `json:"size"`
	Programs    map[string]uint64 `json:"programs"`
	Cycles      map[string]uint64 `json:"cycles"`
	MaxErases   uint32            `json:"max_erases"`
	MaxErasesAt uint16            `json:"max_erases_addr"`
}

var modes = []eeprom.Mode{eeprom.ModeEraseOnly, eeprom.ModeWriteOnly, eeprom.ModeEraseAndWrite}

var (
	// GetCmd dumps EEPROM bytes.
	GetCmd = ishell.Cmd{
		Name:    "ee.get",
		Aliases: []string{"eeg"},
		Help:    "ADDR [LEN]",
		Func: sh.MustBePoweredOn(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(sh.ErrUsage)
				return
			}
			addr, err := parseAddr(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			length := 1
			if len(c.Args) > 1 {
				if length, err = strconv.Atoi(c.Args[1]); err != nil || length <= 0 {
					c.Err(sh.ErrUsage)
					return
				}
			}
			b := sh.ShellFrom(c).Board
			data := make([]byte, length)
			for n := range data {
				data[n] = b.Store.GetByte(addr + uint16(n))
			}
			sh.PrintResult(c, data, FormatDump(addr, data))
		}),
	}

	// PutCmd writes an EEPROM byte through the store.
	PutCmd = ishell.Cmd{
		Name:    "ee.put",
		Aliases: []string{"eep"},
		Help:    "ADDR VALUE",
		Func: sh.MustBePoweredOn(func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(sh.ErrUsage)
				return
			}
			addr, err := parseAddr(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			value, err := strconv.ParseUint(c.Args[1], 0, 8)
			if err != nil {
				c.Err(fmt.Errorf("%w: value %q", sh.ErrUsage, c.Args[1]))
				return
			}
			b := sh.ShellFrom(c).Board
			old := b.Store.GetByte(addr)
			mode := eeprom.SelectMode(old, byte(value))
			b.Store.PutByte(addr, byte(value))
			sh.PrintResult(c, map[string]interface{}{"addr": addr, "old": old, "value": value, "mode": mode.String()},
				fmt.Sprintf("%04x: %02x -> %02x (%s)\n", addr, old, value, mode))
		}),
	}

	// StatsCmd reports EEPROM wear.
	StatsCmd = ishell.Cmd{
		Name:    "ee.stats",
		Aliases: []string{"ees"},
		Help:    "",
		Func: sh.MustBePoweredOn(func(c *ishell.Context) {
			b := sh.ShellFrom(c).Board
			stats := Stats{
				Size:     b.Store.Size(),
				Programs: make(map[string]uint64),
				Cycles:   make(map[string]uint64),
			}
			var sb strings.Builder
			for _, mode := range modes {
				stats.Programs[mode.String()] = b.Programs(mode)
				stats.Cycles[mode.String()] = b.EEPROM.Cycles(mode)
				fmt.Fprintf(&sb, "%-12s programs=%d cycles=%d\n", mode, b.Programs(mode), b.EEPROM.Cycles(mode))
			}
			for addr := 0; addr < stats.Size; addr++ {
				if n := b.EEPROM.Erases(uint16(addr)); n > stats.MaxErases {
					stats.MaxErases, stats.MaxErasesAt = n, uint16(addr)
				}
			}
			fmt.Fprintf(&sb, "size=%d max erases=%d at %04x\n", stats.Size, stats.MaxErases, stats.MaxErasesAt)
			sh.PrintResult(c, stats, sb.String())
		}),
	}
)

func init() {
	sh.AddCmds(
		&GetCmd,
		&PutCmd,
		&StatsCmd,
	)
}
