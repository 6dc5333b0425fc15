package sim

import "sync"

// Interrupts serializes interrupt handlers and implements the global
// interrupt mask. Masking does not nest: masking again while masked, for
// example by calling eeprom.Store.PutByte inside Masked, deadlocks.
type Interrupts struct {
	lock sync.Mutex
}

// DisableInterrupts implements eeprom.Masker.
func (c *Interrupts) DisableInterrupts() func() {
	c.lock.Lock()
	return c.lock.Unlock
}

// Dispatch runs a handler in interrupt context.
func (c *Interrupts) Dispatch(handler func()) {
	c.lock.Lock()
	defer c.lock.Unlock()
	handler()
}

// Masked runs fn with interrupts disabled.
func (c *Interrupts) Masked(fn func()) {
	restore := c.DisableInterrupts()
	defer restore()
	fn()
}
