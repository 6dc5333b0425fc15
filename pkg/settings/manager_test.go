package settings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/cnc.go/pkg/l0/eeprom"
	"github.com/robotalks/cnc.go/pkg/sim"
)

func newTestManager(t *testing.T) (*Manager, *sim.EEPROM) {
	dev := sim.NewEEPROM(sim.DefaultEEPROMSize)
	m := NewManager(eeprom.New(dev, &sim.Interrupts{}))
	require.Equal(t, ErrReadFail, m.Init())
	return m, dev
}

func TestManagerFirstBoot(t *testing.T) {
	m, dev := newTestManager(t)
	require.Equal(t, Defaults(), m.Settings)
	require.Equal(t, byte(Version), dev.Read(AddrVersion))

	reloaded := NewManager(m.Store)
	reloaded.Settings = Settings{}
	require.NoError(t, reloaded.Init())
	require.Equal(t, Defaults(), reloaded.Settings)
}

func TestManagerVersionMismatch(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.StoreGlobal(4, 300))
	m.Store.PutByte(AddrVersion, Version-1)

	reloaded := NewManager(m.Store)
	require.Equal(t, ErrReadFail, reloaded.Init())
	require.Equal(t, Defaults(), reloaded.Settings)
	require.Equal(t, byte(Version), m.Store.GetByte(AddrVersion))
}

func TestManagerStoreGlobal(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.StoreGlobal(8, 20))
	require.NoError(t, m.StoreGlobal(16, 1))
	require.Equal(t, ErrStepPulseMin, m.StoreGlobal(3, 1))
	require.Equal(t, ErrInvalidStatement, m.StoreGlobal(len(Params), 1))

	reloaded := NewManager(m.Store)
	require.NoError(t, reloaded.Init())
	require.Equal(t, float32(20*60*60), reloaded.Settings.Acceleration)
	require.True(t, reloaded.Settings.HasFlag(FlagHardLimitEnable))
	require.Equal(t, uint8(10), reloaded.Settings.PulseMicroseconds)
}

func TestManagerCorruptGlobal(t *testing.T) {
	m, dev := newTestManager(t)
	require.NoError(t, m.StoreGlobal(0, 400))
	dev.Flip(AddrGlobal+3, 0)

	reloaded := NewManager(m.Store)
	require.Equal(t, ErrReadFail, reloaded.Init())
	require.Equal(t, Defaults(), reloaded.Settings)

	again := NewManager(m.Store)
	require.NoError(t, again.Init())
}

func TestManagerCoordData(t *testing.T) {
	m, dev := newTestManager(t)
	for n := 0; n < NumCoordRecords; n++ {
		coord, ok := m.ReadCoordData(n)
		require.True(t, ok)
		require.Equal(t, Coord{}, coord)
	}
	require.NoError(t, m.WriteCoordData(IndexG30, Coord{1.5, -2, 100}))
	coord, ok := m.ReadCoordData(IndexG30)
	require.True(t, ok)
	require.Equal(t, Coord{1.5, -2, 100}, coord)

	dev.Flip(coordAddr(IndexG30)+1, 7)
	coord, ok = m.ReadCoordData(IndexG30)
	require.False(t, ok)
	require.Equal(t, Coord{}, coord)
	_, ok = m.ReadCoordData(IndexG30)
	require.True(t, ok)

	require.Equal(t, ErrInvalidStatement, m.WriteCoordData(NumCoordRecords, Coord{}))
	_, ok = m.ReadCoordData(-1)
	require.False(t, ok)
}

func TestManagerCoordLayout(t *testing.T) {
	require.Equal(t, AddrParameters, coordAddr(0))
	require.Equal(t, AddrParameters+13, coordAddr(1))
	require.True(t, coordAddr(NumCoordRecords) <= AddrStartupBlock)
	require.True(t, int(startupAddr(NumStartupLines)) <= sim.DefaultEEPROMSize)
	require.True(t, int(AddrGlobal)+RecordSize+1 <= int(AddrParameters))
}

func TestManagerStartupLines(t *testing.T) {
	m, dev := newTestManager(t)
	line, ok := m.ReadStartupLine(1)
	require.True(t, ok)
	require.Empty(t, line)

	require.NoError(t, m.StoreStartupLine(1, "G20G91"))
	line, ok = m.ReadStartupLine(1)
	require.True(t, ok)
	require.Equal(t, "G20G91", line)

	long := strings.Repeat("X", LineBufferSize-1)
	require.NoError(t, m.StoreStartupLine(0, long))
	line, _ = m.ReadStartupLine(0)
	require.Equal(t, long, line)
	require.Equal(t, ErrLineTooLong, m.StoreStartupLine(0, long+"X"))
	require.Equal(t, ErrInvalidStatement, m.StoreStartupLine(NumStartupLines, ""))

	dev.Flip(startupAddr(1), 1)
	line, ok = m.ReadStartupLine(1)
	require.False(t, ok)
	require.Empty(t, line)
}

func TestManagerResetCoords(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.StoreGlobal(1, 123))
	require.NoError(t, m.WriteCoordData(0, Coord{1, 1, 1}))
	require.NoError(t, m.StoreStartupLine(0, "G21"))

	m.Reset(false)
	coord, _ := m.ReadCoordData(0)
	require.Equal(t, Coord{}, coord)
	line, _ := m.ReadStartupLine(0)
	require.Equal(t, "G21", line)
	require.Equal(t, float32(123), m.Settings.StepsPerMM[1])

	m.Reset(true)
	line, _ = m.ReadStartupLine(0)
	require.Empty(t, line)
	require.Equal(t, Defaults(), m.Settings)
}
