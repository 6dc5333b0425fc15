// Package settings manages the configuration records kept in the
// non-volatile store.
package settings

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Version of the settings record layout. A store holding any other
// version is restored to defaults.
const Version = 5

// Flag bits of Settings.Flags.
const (
	FlagReportInches uint8 = 1 << iota
	FlagAutoStart
	FlagInvertStepEnable
	FlagHardLimitEnable
	FlagHomingEnable
)

// NumAxes is the number of axes of every coordinate record.
const NumAxes = 3

// Settings is the global settings record. The field order and types
// define the persistent layout, packed little-endian.
type Settings struct {
	StepsPerMM          [NumAxes]float32
	Microsteps          uint8
	PulseMicroseconds   uint8
	DefaultFeedRate     float32 // mm/min
	DefaultSeekRate     float32 // mm/min
	InvertMask          uint8
	MMPerArcSegment     float32
	Acceleration        float32 // mm/min^2
	JunctionDeviation   float32 // mm
	Flags               uint8
	HomingDirMask       uint8
	HomingFeedRate      float32 // mm/min
	HomingSeekRate      float32 // mm/min
	HomingDebounceDelay uint16  // ms
	HomingPulloff       float32 // mm
	StepperIdleLockTime uint8   // ms, 255 keeps steppers enabled
	DecimalPlaces       uint8
	NArcCorrection      uint8
}

// RecordSize is the encoded size of Settings, without checksum.
var RecordSize = binary.Size(Settings{})

// Defaults returns the factory settings.
func Defaults() Settings {
	return Settings{
		StepsPerMM:          [NumAxes]float32{250, 250, 250},
		Microsteps:          8,
		PulseMicroseconds:   10,
		DefaultFeedRate:     250,
		DefaultSeekRate:     500,
		InvertMask:          0x1c,
		MMPerArcSegment:     0.1,
		Acceleration:        10 * 60 * 60,
		JunctionDeviation:   0.05,
		Flags:               FlagAutoStart,
		HomingDirMask:       0,
		HomingFeedRate:      25,
		HomingSeekRate:      250,
		HomingDebounceDelay: 100,
		HomingPulloff:       1,
		StepperIdleLockTime: 25,
		DecimalPlaces:       3,
		NArcCorrection:      25,
	}
}

// Encode encodes the record.
func (s *Settings) Encode() []byte {
	var buf bytes.Buffer
	buf.Grow(RecordSize)
	// writing fixed-size fields into a bytes.Buffer cannot fail
	binary.Write(&buf, binary.LittleEndian, s)
	return buf.Bytes()
}

// Decode decodes the record from data.
func (s *Settings) Decode(data []byte) error {
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, s)
}

// HasFlag checks a flag bit.
func (s *Settings) HasFlag(flag uint8) bool {
	return s.Flags&flag != 0
}

func (s *Settings) setFlag(flag uint8, on bool) {
	if on {
		s.Flags |= flag
	} else {
		s.Flags &^= flag
	}
}

// Param describes a numbered global setting.
type Param struct {
	Number      int
	Description string
	get         func(*Settings) float64
	set         func(*Settings, float64) error
}

// Params lists the numbered settings in order.
var Params = []Param{
	stepsParam(0, "x, step/mm"),
	stepsParam(1, "y, step/mm"),
	stepsParam(2, "z, step/mm"),
	{Number: 3, Description: "step pulse, usec",
		get: func(s *Settings) float64 { return float64(s.PulseMicroseconds) },
		set: func(s *Settings, v float64) error {
			if v < 3 {
				return ErrStepPulseMin
			}
			n, err := toUint(math.Round(v), math.MaxUint8)
			if err != nil {
				return err
			}
			s.PulseMicroseconds = uint8(n)
			return nil
		}},
	floatParam(4, "default feed, mm/min", func(s *Settings) *float32 { return &s.DefaultFeedRate }),
	floatParam(5, "default seek, mm/min", func(s *Settings) *float32 { return &s.DefaultSeekRate }),
	{Number: 6, Description: "step port invert mask",
		get: func(s *Settings) float64 { return float64(s.InvertMask) },
		set: func(s *Settings, v float64) error {
			n, err := toUint(math.Trunc(v), math.MaxUint8)
			if err != nil {
				return err
			}
			s.InvertMask = uint8(n)
			return nil
		}},
	roundParam(7, "step idle delay, msec", func(s *Settings) *uint8 { return &s.StepperIdleLockTime }),
	{Number: 8, Description: "acceleration, mm/sec^2",
		get: func(s *Settings) float64 { return float64(s.Acceleration) / (60 * 60) },
		set: func(s *Settings, v float64) error { s.Acceleration = float32(v * 60 * 60); return nil }},
	{Number: 9, Description: "junction deviation, mm",
		get: func(s *Settings) float64 { return float64(s.JunctionDeviation) },
		set: func(s *Settings, v float64) error { s.JunctionDeviation = float32(math.Abs(v)); return nil }},
	floatParam(10, "arc, mm/segment", func(s *Settings) *float32 { return &s.MMPerArcSegment }),
	roundParam(11, "n-arc correction, int", func(s *Settings) *uint8 { return &s.NArcCorrection }),
	roundParam(12, "n-decimals, int", func(s *Settings) *uint8 { return &s.DecimalPlaces }),
	flagParam(13, "report inches, bool", FlagReportInches),
	flagParam(14, "auto start, bool", FlagAutoStart),
	flagParam(15, "invert step enable, bool", FlagInvertStepEnable),
	flagParam(16, "hard limits, bool", FlagHardLimitEnable),
	flagParam(17, "homing cycle, bool", FlagHomingEnable),
	{Number: 18, Description: "homing dir invert mask",
		get: func(s *Settings) float64 { return float64(s.HomingDirMask) },
		set: func(s *Settings, v float64) error {
			n, err := toUint(math.Trunc(v), math.MaxUint8)
			if err != nil {
				return err
			}
			s.HomingDirMask = uint8(n)
			return nil
		}},
	floatParam(19, "homing feed, mm/min", func(s *Settings) *float32 { return &s.HomingFeedRate }),
	floatParam(20, "homing seek, mm/min", func(s *Settings) *float32 { return &s.HomingSeekRate }),
	{Number: 21, Description: "homing debounce, msec",
		get: func(s *Settings) float64 { return float64(s.HomingDebounceDelay) },
		set: func(s *Settings, v float64) error {
			n, err := toUint(math.Round(v), math.MaxUint16)
			if err != nil {
				return err
			}
			s.HomingDebounceDelay = uint16(n)
			return nil
		}},
	floatParam(22, "homing pull-off, mm", func(s *Settings) *float32 { return &s.HomingPulloff }),
}

// Get returns the value of a numbered setting in user units.
func (s *Settings) Get(param int) (float64, error) {
	if param < 0 || param >= len(Params) {
		return 0, ErrInvalidStatement
	}
	return Params[param].get(s), nil
}

// Set changes a numbered setting from a value in user units.
func (s *Settings) Set(param int, value float64) error {
	if param < 0 || param >= len(Params) {
		return ErrInvalidStatement
	}
	return Params[param].set(s, value)
}

func stepsParam(axis int, desc string) Param {
	return Param{Number: axis, Description: desc,
		get: func(s *Settings) float64 { return float64(s.StepsPerMM[axis]) },
		set: func(s *Settings, v float64) error {
			if v <= 0 {
				return ErrNegativeValue
			}
			s.StepsPerMM[axis] = float32(v)
			return nil
		}}
}

func floatParam(num int, desc string, field func(*Settings) *float32) Param {
	return Param{Number: num, Description: desc,
		get: func(s *Settings) float64 { return float64(*field(s)) },
		set: func(s *Settings, v float64) error { *field(s) = float32(v); return nil }}
}

func roundParam(num int, desc string, field func(*Settings) *uint8) Param {
	return Param{Number: num, Description: desc,
		get: func(s *Settings) float64 { return float64(*field(s)) },
		set: func(s *Settings, v float64) error {
			n, err := toUint(math.Round(v), math.MaxUint8)
			if err != nil {
				return err
			}
			*field(s) = uint8(n)
			return nil
		}}
}

func flagParam(num int, desc string, flag uint8) Param {
	return Param{Number: num, Description: desc,
		get: func(s *Settings) float64 {
			if s.HasFlag(flag) {
				return 1
			}
			return 0
		},
		set: func(s *Settings, v float64) error { s.setFlag(flag, v != 0); return nil }}
}

// toUint checks v fits an integer field holding at most limit.
func toUint(v float64, limit uint64) (uint64, error) {
	if !(v >= 0 && v <= float64(limit)) {
		return 0, ErrValueRange
	}
	return uint64(v), nil
}
