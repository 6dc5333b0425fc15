package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/robotalks/cnc.go/pkg/l0/eeprom"
)

// DefaultEEPROMSize is the cell count of the simulated EEPROM.
const DefaultEEPROMSize = 1024

// Timing is the duration of each programming cycle.
type Timing struct {
	EraseAndWrite time.Duration
	EraseOnly     time.Duration
	WriteOnly     time.Duration
}

// DatasheetTiming is the typical programming time of an AVR EEPROM.
var DatasheetTiming = Timing{
	EraseAndWrite: 3400 * time.Microsecond,
	EraseOnly:     1800 * time.Microsecond,
	WriteOnly:     1800 * time.Microsecond,
}

// EEPROM simulates EEPROM cells. Erasing sets every bit of a cell,
// writing clears the bits which are 0 in the value.
type EEPROM struct {
	Timing Timing

	lock      sync.Mutex
	cells     []byte
	erases    []uint32
	cycles    [eeprom.ModeEraseAndWrite + 1]uint64
	busyUntil time.Time
	now       func() time.Time
}

// NewEEPROM creates an erased EEPROM with size cells and zero
// programming time.
func NewEEPROM(size int) *EEPROM {
	e := &EEPROM{
		cells:  make([]byte, size),
		erases: make([]uint32, size),
		now:    time.Now,
	}
	for n := range e.cells {
		e.cells[n] = 0xff
	}
	return e
}

// Size implements eeprom.Sizer.
func (e *EEPROM) Size() int {
	return len(e.cells)
}

// Busy implements eeprom.Device.
func (e *EEPROM) Busy() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.now().Before(e.busyUntil)
}

// Read implements eeprom.Device. Addresses wrap around the cell array.
func (e *EEPROM) Read(addr uint16) byte {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.cells[int(addr)%len(e.cells)]
}

// Program implements eeprom.Device.
func (e *EEPROM) Program(addr uint16, value byte, mode eeprom.Mode) {
	e.lock.Lock()
	defer e.lock.Unlock()
	n := int(addr) % len(e.cells)
	var d time.Duration
	switch mode {
	case eeprom.ModeEraseOnly:
		e.cells[n] = 0xff
		e.erases[n]++
		d = e.Timing.EraseOnly
	case eeprom.ModeWriteOnly:
		e.cells[n] &= value
		d = e.Timing.WriteOnly
	case eeprom.ModeEraseAndWrite:
		e.cells[n] = value
		e.erases[n]++
		d = e.Timing.EraseAndWrite
	default:
		return
	}
	e.cycles[mode]++
	e.busyUntil = e.now().Add(d)
}

// Cycles returns the number of programming cycles issued in mode.
func (e *EEPROM) Cycles(mode eeprom.Mode) uint64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	if mode < 0 || int(mode) >= len(e.cycles) {
		return 0
	}
	return e.cycles[mode]
}

// Erases returns the number of erase cycles the cell at addr went through.
func (e *EEPROM) Erases(addr uint16) uint32 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.erases[int(addr)%len(e.erases)]
}

// Flip inverts one bit of a cell without a programming cycle, simulating
// a corrupted cell.
func (e *EEPROM) Flip(addr uint16, bit uint) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.cells[int(addr)%len(e.cells)] ^= 1 << (bit & 7)
}

// Dump copies length cells starting at addr.
func (e *EEPROM) Dump(addr uint16, length int) []byte {
	e.lock.Lock()
	defer e.lock.Unlock()
	out := make([]byte, length)
	for n := range out {
		out[n] = e.cells[(int(addr)+n)%len(e.cells)]
	}
	return out
}

// Load replaces the content with an image. A short image leaves the
// remaining cells erased.
func (e *EEPROM) Load(r io.Reader) error {
	image := make([]byte, len(e.cells))
	n, err := io.ReadFull(r, image)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	copy(e.cells, image[:n])
	for i := n; i < len(e.cells); i++ {
		e.cells[i] = 0xff
	}
	return nil
}

// Save writes the content as an image.
func (e *EEPROM) Save(w io.Writer) error {
	e.lock.Lock()
	image := append([]byte(nil), e.cells...)
	e.lock.Unlock()
	_, err := w.Write(image)
	return err
}

// LoadFile loads an image file. A missing file leaves the EEPROM erased.
func (e *EEPROM) LoadFile(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	if err = e.Load(f); err != nil {
		return fmt.Errorf("load EEPROM image %s: %w", path, err)
	}
	return nil
}

// SaveFile writes an image file.
func (e *EEPROM) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = e.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("save EEPROM image %s: %w", path, err)
	}
	return f.Close()
}
