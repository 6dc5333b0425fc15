package protocol

import "errors"

var (
	// ErrOverflow indicates a line longer than the line buffer.
	ErrOverflow = errors.New("line overflow")
	// ErrAlarmLock indicates the line was refused in alarm state.
	ErrAlarmLock = errors.New("alarm lock")
	// ErrUnsupportedStatement indicates a system command not handled here.
	ErrUnsupportedStatement = errors.New("unsupported statement")
	// ErrBadNumberFormat indicates a malformed number.
	ErrBadNumberFormat = errors.New("bad number format")
)
