// Package eeprom provides the non-volatile byte store.
package eeprom

// Cells are programmed with the cheapest cycle that yields the requested
// value. Erasing drives every bit of a cell to 1, writing can only clear
// bits, so a cell only needs an erase when some bit must rise.
//
// Records are stored as a payload followed by one trailing checksum byte.
// A record is current only once the trailing byte has been written, and
// a torn record fails verification on the next read. Nothing here tries
// to repair it.
