package board

import (
	"fmt"

	"github.com/tarm/serial"
)

// OpenPort opens a host serial device as the wire of the board.
func OpenPort(device string, baud int) (*serial.Port, error) {
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	return port, nil
}
