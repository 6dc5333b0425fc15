package eeprom

import "runtime"

// Device is the register-level surface of the EEPROM.
type Device interface {
	// Busy reports a programming cycle is still in flight.
	Busy() bool
	// Read returns the cell at addr. Only valid when not Busy.
	Read(addr uint16) byte
	// Program starts a programming cycle on the cell at addr.
	Program(addr uint16, value byte, mode Mode)
}

// Sizer is optionally implemented by a Device to report its capacity.
type Sizer interface {
	Size() int
}

// Masker suppresses interrupt handlers.
type Masker interface {
	// DisableInterrupts masks interrupts and returns the func restoring
	// the previous state.
	DisableInterrupts() (restore func())
}

// MaskerFunc is func form of Masker.
type MaskerFunc func() func()

// DisableInterrupts implements Masker.
func (f MaskerFunc) DisableInterrupts() func() {
	return f()
}

// ModeObserver is notified of every mode decision made by PutByte.
type ModeObserver func(addr uint16, mode Mode)

// Store is the non-volatile byte store.
type Store struct {
	dev      Device
	irq      Masker
	observer ModeObserver
}

// Option configures a Store.
type Option func(*Store)

// WithObserver installs a ModeObserver.
func WithObserver(observer ModeObserver) Option {
	return func(s *Store) {
		s.observer = observer
	}
}

// New creates a Store on a device. Writes mask interrupts using irq.
func New(dev Device, irq Masker, opts ...Option) *Store {
	s := &Store{dev: dev, irq: irq}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Size returns the number of addressable cells, or 0 if unknown.
func (s *Store) Size() int {
	if sizer, ok := s.dev.(Sizer); ok {
		return sizer.Size()
	}
	return 0
}

// GetByte reads the cell at addr, waiting for any write in flight.
func (s *Store) GetByte(addr uint16) byte {
	s.waitReady()
	return s.dev.Read(addr)
}

// PutByte stores value at addr using the cheapest programming cycle.
// Interrupts stay masked for the whole read-decide-program sequence.
func (s *Store) PutByte(addr uint16, value byte) {
	restore := s.irq.DisableInterrupts()
	defer restore()

	s.waitReady()
	mode := SelectMode(s.dev.Read(addr), value)
	if s.observer != nil {
		s.observer(addr, mode)
	}
	if mode != ModeNone {
		s.dev.Program(addr, value, mode)
	}
}

// PutChecksummed writes data at dest followed by its checksum at
// dest+len(data).
func (s *Store) PutChecksummed(dest uint16, data []byte) {
	var checksum byte
	for _, b := range data {
		checksum = ChecksumStep(checksum, b)
		s.PutByte(dest, b)
		dest++
	}
	s.PutByte(dest, checksum)
}

// GetChecksummed reads length bytes at src and verifies them against the
// checksum stored at src+length. A negative length fails verification.
func (s *Store) GetChecksummed(src uint16, length int) ([]byte, bool) {
	if length < 0 {
		return nil, false
	}
	data := make([]byte, length)
	return data, s.GetChecksummedInto(src, data)
}

// GetChecksummedInto is GetChecksummed reading into a caller-owned buffer.
func (s *Store) GetChecksummedInto(src uint16, data []byte) bool {
	var checksum byte
	for n := range data {
		data[n] = s.GetByte(src)
		checksum = ChecksumStep(checksum, data[n])
		src++
	}
	return checksum == s.GetByte(src)
}

func (s *Store) waitReady() {
	for s.dev.Busy() {
		runtime.Gosched()
	}
}
