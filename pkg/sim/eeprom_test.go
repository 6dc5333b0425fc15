package sim

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/cnc.go/pkg/l0/eeprom"
)

func newTestStore(size int) (*eeprom.Store, *EEPROM) {
	dev := NewEEPROM(size)
	return eeprom.New(dev, &Interrupts{}), dev
}

func TestEEPROMModeCycles(t *testing.T) {
	testCases := []struct {
		name  string
		old   byte
		value byte
		mode  eeprom.Mode
	}{
		{name: "erase only", old: 0x00, value: 0xff, mode: eeprom.ModeEraseOnly},
		{name: "write only", old: 0xff, value: 0x00, mode: eeprom.ModeWriteOnly},
		{name: "erase and write", old: 0x3c, value: 0xc3, mode: eeprom.ModeEraseAndWrite},
		{name: "no cycle", old: 0x42, value: 0x42, mode: eeprom.ModeNone},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, dev := newTestStore(64)
			store.PutByte(5, tc.old)
			before := make(map[eeprom.Mode]uint64)
			for m := eeprom.ModeNone; m <= eeprom.ModeEraseAndWrite; m++ {
				before[m] = dev.Cycles(m)
			}
			store.PutByte(5, tc.value)
			for m := eeprom.ModeEraseOnly; m <= eeprom.ModeEraseAndWrite; m++ {
				expect := before[m]
				if m == tc.mode {
					expect++
				}
				require.Equal(t, expect, dev.Cycles(m), m.String())
			}
			require.Equal(t, tc.value, store.GetByte(5))
		})
	}
}

func TestEEPROMRoundTripAllValues(t *testing.T) {
	store, dev := newTestStore(16)
	for old := 0; old < 256; old++ {
		for v := 0; v < 256; v++ {
			store.PutByte(3, byte(old))
			store.PutByte(3, byte(v))
			require.Equal(t, byte(v), store.GetByte(3))
		}
	}
	// write-only cycles never erase
	require.True(t, dev.Erases(3) < 2*256*256)
	require.Equal(t, uint32(0), dev.Erases(4))
}

func TestEEPROMWearOnRepeatedWrite(t *testing.T) {
	store, dev := newTestStore(16)
	for n := 0; n < 100; n++ {
		store.PutByte(0, 0x55)
	}
	require.Equal(t, uint64(1), dev.Cycles(eeprom.ModeWriteOnly))
	require.Equal(t, uint32(0), dev.Erases(0))
}

func TestEEPROMBusy(t *testing.T) {
	dev := NewEEPROM(16)
	dev.Timing = DatasheetTiming
	now := time.Unix(0, 0)
	dev.now = func() time.Time { return now }

	dev.Program(0, 0x00, eeprom.ModeWriteOnly)
	require.True(t, dev.Busy())
	now = now.Add(time.Millisecond)
	require.True(t, dev.Busy())
	now = now.Add(800 * time.Microsecond)
	require.False(t, dev.Busy())

	dev.Program(0, 0x12, eeprom.ModeEraseAndWrite)
	now = now.Add(3 * time.Millisecond)
	require.True(t, dev.Busy())
	now = now.Add(400 * time.Microsecond)
	require.False(t, dev.Busy())
}

func TestEEPROMStoreWaitsWhileBusy(t *testing.T) {
	store, dev := newTestStore(16)
	dev.Timing = Timing{EraseAndWrite: 5 * time.Millisecond}
	start := time.Now()
	store.PutByte(1, 0x12)
	require.Equal(t, byte(0x12), store.GetByte(1))
	require.True(t, time.Since(start) >= 5*time.Millisecond)
}

func TestEEPROMChecksummedCorruption(t *testing.T) {
	store, dev := newTestStore(DefaultEEPROMSize)
	store.PutChecksummed(100, []byte{0x01, 0x02, 0x03})
	data, ok := store.GetChecksummed(100, 3)
	require.True(t, ok)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, data)

	dev.Flip(101, 4)
	_, ok = store.GetChecksummed(100, 3)
	require.False(t, ok)
	dev.Flip(101, 4)
	_, ok = store.GetChecksummed(100, 3)
	require.True(t, ok)
}

func TestEEPROMImage(t *testing.T) {
	dev := NewEEPROM(8)
	dev.Program(0, 0x12, eeprom.ModeEraseAndWrite)
	dev.Program(7, 0x00, eeprom.ModeWriteOnly)
	var buf bytes.Buffer
	require.NoError(t, dev.Save(&buf))
	require.Equal(t, []byte{0x12, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}, buf.Bytes())

	restored := NewEEPROM(8)
	require.NoError(t, restored.Load(bytes.NewReader([]byte{1, 2, 3})))
	require.Equal(t, []byte{1, 2, 3, 0xff, 0xff, 0xff, 0xff, 0xff}, restored.Dump(0, 8))
	require.Equal(t, []byte{0xff, 1}, restored.Dump(7, 2))
}

func TestEEPROMImageFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "eeprom")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "eeprom.bin")

	dev := NewEEPROM(32)
	require.NoError(t, dev.LoadFile(path))
	require.Equal(t, byte(0xff), dev.Read(0))
	dev.Program(0, 0xa5, eeprom.ModeEraseAndWrite)
	require.NoError(t, dev.SaveFile(path))

	restored := NewEEPROM(32)
	require.NoError(t, restored.LoadFile(path))
	require.Equal(t, byte(0xa5), restored.Read(0))
}
