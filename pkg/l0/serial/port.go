package serial

// Framing and clocking defaults.
const (
	// DefaultClock is the CPU clock the rate divisor is derived from.
	DefaultClock = 16000000
	// DefaultRate is the symbol rate used when none is given.
	DefaultRate = 9600
	// DoubleSpeedRate is the lowest rate clocked in double-speed mode.
	DoubleSpeedRate = 57600
)

// Parity defines the parity bit mode.
type Parity int

// Parity modes.
const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// Settings is the line configuration applied to the port.
type Settings struct {
	Rate        int
	Divisor     uint16
	DoubleSpeed bool
	DataBits    int
	Parity      Parity
	StopBits    int
}

// ComputeSettings derives 8N1 line settings for rate from the CPU clock.
// Rates at or above DoubleSpeedRate use double-speed clocking, which
// halves the sampling and keeps the divisor error small.
func ComputeSettings(clock, rate int) Settings {
	s := Settings{Rate: rate, DataBits: 8, Parity: ParityNone, StopBits: 1}
	if rate < DoubleSpeedRate {
		s.Divisor = uint16(((clock / (8 * rate)) - 1) / 2)
	} else {
		s.Divisor = uint16(((clock / (4 * rate)) - 1) / 2)
		s.DoubleSpeed = true
	}
	return s
}

// ActualRate is the symbol rate the divisor really produces.
func (s Settings) ActualRate(clock int) float64 {
	samples := 16.0
	if s.DoubleSpeed {
		samples = 8
	}
	return float64(clock) / (samples * float64(int(s.Divisor)+1))
}

// Port is the register-level surface of the UART.
type Port interface {
	// Configure applies line settings and enables the receiver, the
	// transmitter and the receive-complete interrupt.
	Configure(Settings)
	// ArmTransmit enables or disables the transmit-ready interrupt.
	ArmTransmit(enabled bool)
	// Transmit loads b into the transmit data register.
	Transmit(b byte)
}
