package settings

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/golang/glog"
)

// Persistent layout.
const (
	AddrVersion      uint16 = 0
	AddrGlobal       uint16 = 1
	AddrParameters   uint16 = 512
	AddrStartupBlock uint16 = 768
)

// Coordinate records.
const (
	// NumCoordSystems is the number of work coordinate systems (G54-G59).
	NumCoordSystems = 6
	// IndexG28 is the record of the first home position.
	IndexG28 = NumCoordSystems
	// IndexG30 is the record of the second home position.
	IndexG30 = NumCoordSystems + 1
	// NumCoordRecords counts all coordinate records.
	NumCoordRecords = NumCoordSystems + 2

	coordRecordSize = 4 * NumAxes
)

// Startup lines.
const (
	NumStartupLines = 2
	// LineBufferSize is the fixed size of a startup line record,
	// including the terminating zero.
	LineBufferSize = 70
)

// Coord is a position record.
type Coord [NumAxes]float32

// Storage is the non-volatile store used by Manager.
type Storage interface {
	GetByte(addr uint16) byte
	PutByte(addr uint16, value byte)
	PutChecksummed(dest uint16, data []byte)
	GetChecksummed(src uint16, length int) ([]byte, bool)
}

// Manager loads and saves records in Storage.
type Manager struct {
	Store    Storage
	Settings Settings
}

// NewManager creates a Manager with default settings.
func NewManager(store Storage) *Manager {
	return &Manager{Store: store, Settings: Defaults()}
}

// Init loads the global settings. Records failing verification are
// reset and ErrReadFail is returned, the manager is usable either way.
func (m *Manager) Init() error {
	var err error
	if !m.readGlobal() {
		glog.Warning("global settings invalid, restoring defaults")
		m.Reset(true)
		err = ErrReadFail
	}
	for n := 0; n < NumCoordRecords; n++ {
		if _, ok := m.ReadCoordData(n); !ok {
			glog.Warningf("coordinate record %d invalid, cleared", n)
			err = ErrReadFail
		}
	}
	return err
}

// Reset restores defaults and clears coordinate records. With all, the
// global settings and startup lines are reset as well.
func (m *Manager) Reset(all bool) {
	if all {
		m.Settings = Defaults()
		m.WriteGlobal()
		for n := 0; n < NumStartupLines; n++ {
			m.StoreStartupLine(n, "")
		}
	}
	for n := 0; n < NumCoordRecords; n++ {
		m.WriteCoordData(n, Coord{})
	}
}

// WriteGlobal persists the version byte and the global settings.
func (m *Manager) WriteGlobal() {
	m.Store.PutByte(AddrVersion, Version)
	m.Store.PutChecksummed(AddrGlobal, m.Settings.Encode())
}

// StoreGlobal changes a numbered setting and persists it.
func (m *Manager) StoreGlobal(param int, value float64) error {
	if err := m.Settings.Set(param, value); err != nil {
		return err
	}
	m.WriteGlobal()
	return nil
}

func (m *Manager) readGlobal() bool {
	if m.Store.GetByte(AddrVersion) != Version {
		return false
	}
	data, ok := m.Store.GetChecksummed(AddrGlobal, RecordSize)
	if !ok {
		return false
	}
	var s Settings
	if err := s.Decode(data); err != nil {
		return false
	}
	m.Settings = s
	return true
}

func coordAddr(index int) uint16 {
	return AddrParameters + uint16(index*(coordRecordSize+1))
}

// WriteCoordData persists a coordinate record.
func (m *Manager) WriteCoordData(index int, coord Coord) error {
	if index < 0 || index >= NumCoordRecords {
		return ErrInvalidStatement
	}
	data := make([]byte, coordRecordSize)
	for n, v := range coord {
		binary.LittleEndian.PutUint32(data[n*4:], math.Float32bits(v))
	}
	m.Store.PutChecksummed(coordAddr(index), data)
	return nil
}

// ReadCoordData loads a coordinate record. A record failing
// verification is cleared, and zero is returned with false.
func (m *Manager) ReadCoordData(index int) (Coord, bool) {
	var coord Coord
	if index < 0 || index >= NumCoordRecords {
		return coord, false
	}
	data, ok := m.Store.GetChecksummed(coordAddr(index), coordRecordSize)
	if !ok {
		m.WriteCoordData(index, coord)
		return coord, false
	}
	for n := range coord {
		coord[n] = math.Float32frombits(binary.LittleEndian.Uint32(data[n*4:]))
	}
	return coord, true
}

func startupAddr(n int) uint16 {
	return AddrStartupBlock + uint16(n*(LineBufferSize+1))
}

// StoreStartupLine persists a startup line.
func (m *Manager) StoreStartupLine(n int, line string) error {
	if n < 0 || n >= NumStartupLines {
		return ErrInvalidStatement
	}
	if len(line) >= LineBufferSize {
		return ErrLineTooLong
	}
	data := make([]byte, LineBufferSize)
	copy(data, line)
	m.Store.PutChecksummed(startupAddr(n), data)
	return nil
}

// ReadStartupLine loads a startup line. A record failing verification
// is cleared, and an empty line is returned with false.
func (m *Manager) ReadStartupLine(n int) (string, bool) {
	if n < 0 || n >= NumStartupLines {
		return "", false
	}
	data, ok := m.Store.GetChecksummed(startupAddr(n), LineBufferSize)
	if !ok {
		m.StoreStartupLine(n, "")
		return "", false
	}
	if end := bytes.IndexByte(data, 0); end >= 0 {
		data = data[:end]
	}
	return string(data), true
}
