// Package serial provides the interrupt-driven serial link of the L0 firmware.
package serial

// The link owns two single-producer/single-consumer rings. The receive
// handler produces into RX and the foreground consumes it, the foreground
// produces into TX and the transmit-ready handler drains it. Each index is
// written by exactly one side, so no locks are taken.
//
// Realtime command bytes are picked off the stream in the receive handler
// before buffering. They never show up from Read, and their latency does
// not depend on how full the RX ring is.
//
// With flow control enabled, XOFF is sent once RX occupancy reaches the
// high watermark and XON once it drains below the low watermark again.
// Both take priority over queued payload in the transmit-ready handler.
