package board

import "errors"

var (
	// ErrInvalidBaud indicates a non-positive baud rate.
	ErrInvalidBaud = errors.New("invalid baud rate")
	// ErrEEPROMTooSmall indicates the EEPROM can't hold the settings layout.
	ErrEEPROMTooSmall = errors.New("EEPROM too small")
	// ErrNoBoardID indicates the pendant is enabled without a board ID.
	ErrNoBoardID = errors.New("board id required")
)
