package eeprom

// Mode is the programming cycle issued for a cell.
type Mode int

const (
	// ModeNone means the cell already holds the value, no cycle is issued.
	ModeNone Mode = iota
	// ModeEraseOnly raises every bit of the cell to 1.
	ModeEraseOnly
	// ModeWriteOnly clears bits without erasing first.
	ModeWriteOnly
	// ModeEraseAndWrite erases the cell then programs the value.
	ModeEraseAndWrite
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeEraseOnly:
		return "erase"
	case ModeWriteOnly:
		return "write"
	case ModeEraseAndWrite:
		return "erase+write"
	}
	return "unknown"
}

// SelectMode decides the programming cycle turning old into value.
func SelectMode(old, value byte) Mode {
	diff := old ^ value
	if diff&value != 0 {
		// some bits must rise to 1
		if value != 0xff {
			return ModeEraseAndWrite
		}
		return ModeEraseOnly
	}
	if diff != 0 {
		return ModeWriteOnly
	}
	return ModeNone
}
