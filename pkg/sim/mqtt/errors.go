package mqtt

import "errors"

var (
	// ErrInvalidQoS indicates the qos parameter of the broker URL is not 0, 1 or 2.
	ErrInvalidQoS = errors.New("invalid qos")
	// ErrNoBoardID indicates the pendant is created without a board ID.
	ErrNoBoardID = errors.New("board id required")
)
