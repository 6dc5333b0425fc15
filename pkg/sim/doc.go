// Package sim provides simulated board hardware for the L0 firmware.
package sim

// The simulation maps interrupt context onto a single goroutine. UART
// handlers only run through Interrupts, which also backs the interrupt
// mask used by the foreground, so handlers never overlap each other or a
// masked foreground section.
//
// Producer: host (serial device, console, pendant)
// Consumer: L0 firmware
