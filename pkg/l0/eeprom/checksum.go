package eeprom

import "math/bits"

// ChecksumStep folds one byte into a running checksum.
func ChecksumStep(checksum, b byte) byte {
	return bits.RotateLeft8(checksum, 1) + b
}

// Checksum computes the record checksum of data.
func Checksum(data []byte) byte {
	var checksum byte
	for _, b := range data {
		checksum = ChecksumStep(checksum, b)
	}
	return checksum
}
