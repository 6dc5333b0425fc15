package sh

import "errors"

var (
	// ErrPoweredOff indicates the command requires a running board.
	ErrPoweredOff = errors.New("board is powered off")
	// ErrUsage indicates invalid command arguments.
	ErrUsage = errors.New("invalid arguments")
)
