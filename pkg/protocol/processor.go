// Package protocol processes the line protocol received on the serial link.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/cnc.go/pkg/settings"
	"github.com/robotalks/cnc.go/pkg/system"
)

// Link is the foreground side of the serial link.
type Link interface {
	Read() (byte, bool)
	WriteString(string) int
}

// LineHandler executes program lines.
type LineHandler interface {
	ExecuteLine(line string) error
}

// ExecuteLineFunc is func form of LineHandler.
type ExecuteLineFunc func(string) error

// ExecuteLine implements LineHandler.
func (f ExecuteLineFunc) ExecuteLine(line string) error {
	return f(line)
}

// Processor reads lines from the link, executes them and replies with a
// status line for each.
type Processor struct {
	Link     Link
	System   *system.System
	Settings *settings.Manager
	// Handler executes program lines. Lines are accepted as-is without one.
	Handler LineHandler
	// Banner is printed on every reset.
	Banner string

	assembler Assembler
}

// Reset discards the partial line and prints the banner.
func (p *Processor) Reset() {
	p.assembler.Reset()
	if p.Banner != "" {
		p.Link.WriteString("\r\n" + p.Banner + "\r\n")
	}
}

// Process executes all buffered lines. Runtime signals are serviced
// after every byte, and it returns early when an abort is pending.
func (p *Processor) Process() {
	for {
		b, ok := p.Link.Read()
		if !ok {
			return
		}
		line, done, err := p.assembler.Assemble(b)
		if err != nil {
			p.Report(err)
		} else if done {
			p.Report(p.ExecuteLine(line))
		}
		if !p.System.ExecuteRuntime() {
			return
		}
	}
}

// Report writes the status line for err.
func (p *Processor) Report(err error) {
	if err == nil {
		p.Link.WriteString("ok\r\n")
		return
	}
	p.Link.WriteString("error: " + err.Error() + "\r\n")
}

// ExecuteLine executes an assembled line.
func (p *Processor) ExecuteLine(line string) error {
	switch {
	case line == "":
		return nil
	case line[0] == '$':
		return p.executeSystem(line[1:])
	case p.System.State() == system.StateAlarm:
		return ErrAlarmLock
	case p.Handler != nil:
		return p.Handler.ExecuteLine(line)
	}
	return nil
}

// ExecuteStartup runs the stored startup lines.
func (p *Processor) ExecuteStartup() {
	for n := 0; n < settings.NumStartupLines; n++ {
		line, ok := p.Settings.ReadStartupLine(n)
		if !ok {
			p.Report(settings.ErrReadFail)
			continue
		}
		if line != "" {
			glog.V(1).Infof("startup line %d: %s", n, line)
			p.Link.WriteString(line)
			p.Report(p.ExecuteLine(line))
		}
	}
}

const helpText = "$$ (view settings)\r\n" +
	"$# (view # parameters)\r\n" +
	"$N (view startup blocks)\r\n" +
	"$x=value (save setting)\r\n" +
	"$Nx=line (save startup block)\r\n" +
	"$X (kill alarm lock)\r\n"

var coordNames = [settings.NumCoordRecords]string{"G54", "G55", "G56", "G57", "G58", "G59", "G28", "G30"}

func (p *Processor) executeSystem(cmd string) error {
	switch cmd {
	case "":
		p.Link.WriteString(helpText)
		return nil
	case "$":
		p.printSettings()
		return nil
	case "#":
		p.printCoords()
		return nil
	case "X":
		if p.System.Unlock() {
			p.Link.WriteString("[Caution: Unlocked]\r\n")
		}
		return nil
	case "N":
		for n := 0; n < settings.NumStartupLines; n++ {
			line, ok := p.Settings.ReadStartupLine(n)
			if !ok {
				p.Report(settings.ErrReadFail)
				continue
			}
			p.Link.WriteString(fmt.Sprintf("$N%d=%s\r\n", n, line))
		}
		return nil
	}
	if strings.HasPrefix(cmd, "N") {
		return p.storeStartupLine(cmd[1:])
	}
	key, value, ok := strings.Cut(cmd, "=")
	if !ok {
		return ErrUnsupportedStatement
	}
	param, err := strconv.Atoi(key)
	if err != nil {
		return ErrBadNumberFormat
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return ErrBadNumberFormat
	}
	return p.Settings.StoreGlobal(param, v)
}

func (p *Processor) storeStartupLine(cmd string) error {
	key, line, ok := strings.Cut(cmd, "=")
	if !ok {
		return ErrUnsupportedStatement
	}
	n, err := strconv.Atoi(key)
	if err != nil {
		return ErrBadNumberFormat
	}
	return p.Settings.StoreStartupLine(n, line)
}

func (p *Processor) printSettings() {
	s := &p.Settings.Settings
	for _, param := range settings.Params {
		v, _ := s.Get(param.Number)
		p.Link.WriteString(fmt.Sprintf("$%d=%s (%s)\r\n",
			param.Number, strconv.FormatFloat(v, 'f', -1, 32), param.Description))
	}
}

func (p *Processor) printCoords() {
	for n, name := range coordNames {
		coord, _ := p.Settings.ReadCoordData(n)
		p.Link.WriteString(fmt.Sprintf("[%s:%.3f,%.3f,%.3f]\r\n", name, coord[0], coord[1], coord[2]))
	}
}
