package settings

import "errors"

var (
	// ErrInvalidStatement indicates an unknown setting or record index.
	ErrInvalidStatement = errors.New("invalid statement")
	// ErrNegativeValue indicates a value which must be positive.
	ErrNegativeValue = errors.New("value < 0.0")
	// ErrStepPulseMin indicates a step pulse shorter than supported.
	ErrStepPulseMin = errors.New("value < 3 usec")
	// ErrValueRange indicates a value not fitting the setting's field.
	ErrValueRange = errors.New("value out of range")
	// ErrReadFail indicates a record failed verification and was reset.
	ErrReadFail = errors.New("EEPROM read fail, using defaults")
	// ErrLineTooLong indicates a startup line exceeding the record size.
	ErrLineTooLong = errors.New("line overflow")
)
