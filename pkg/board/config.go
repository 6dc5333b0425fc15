// Package board assembles a simulated CNC controller board from the
// firmware core and the host side simulation.
package board

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/cnc.go/pkg/l0/serial"
	"github.com/robotalks/cnc.go/pkg/sim"
)

// Config provides the options to build a Board.
type Config struct {
	// BoardID identifies the board on the MQTT broker.
	BoardID string
	// Device is the host serial device. Stdio is used when empty.
	Device string
	// Baud is the line rate.
	Baud int
	// FlowControl enables XON/XOFF on the receive line.
	FlowControl bool

	// EEPROMImage is the file persisting the EEPROM content.
	// The content is lost on exit when empty.
	EEPROMImage string
	EEPROMSize  int
	// Realistic applies datasheet EEPROM timing and paces transmission
	// to the line rate.
	Realistic bool

	// HomingLock starts the machine in alarm state.
	HomingLock bool
	Banner     string
	Interval   time.Duration

	// MQTTBrokerURL specifies the MQTT broker of the remote pendant.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// RealtimeOnly restricts the pendant to realtime commands.
	RealtimeOnly bool
}

// DefaultBanner is printed after every reset.
const DefaultBanner = "Grbl 0.8c ['$' for help]"

var defaultConfig = Config{
	Baud:        serial.DefaultRate,
	FlowControl: true,
	EEPROMSize:  sim.DefaultEEPROMSize,
	Banner:      DefaultBanner,
	Interval:    10 * time.Millisecond,
}

var configFile string

func init() {
	if val := os.Getenv("CNC_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("CNC_DEVICE"); val != "" {
		defaultConfig.Device = val
	}
	defaultConfig.BoardID = MachineID()
}

// MachineID derives the default board ID from the host machine ID.
func MachineID() string {
	id, err := machineid.ProtectedID("cnc")
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return "cnc"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "Board config file (TOML), overrides other flags")
	flag.StringVar(&defaultConfig.BoardID, "id", defaultConfig.BoardID, "Board ID")
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Serial device, stdio if empty")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Baud rate")
	flag.BoolVar(&defaultConfig.FlowControl, "xonxoff", defaultConfig.FlowControl, "Enable XON/XOFF flow control")
	flag.StringVar(&defaultConfig.EEPROMImage, "eeprom", defaultConfig.EEPROMImage, "EEPROM image file")
	flag.IntVar(&defaultConfig.EEPROMSize, "eeprom-size", defaultConfig.EEPROMSize, "EEPROM size in bytes")
	flag.BoolVar(&defaultConfig.Realistic, "realistic", defaultConfig.Realistic, "Simulate hardware timing")
	flag.BoolVar(&defaultConfig.HomingLock, "homing-lock", defaultConfig.HomingLock, "Start in alarm state")
	flag.DurationVar(&defaultConfig.Interval, "interval", defaultConfig.Interval, "Idle loop interval")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL of remote pendant")
	flag.BoolVar(&defaultConfig.RealtimeOnly, "realtime-only", defaultConfig.RealtimeOnly, "Pendant injects realtime commands only")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadConfig creates a Config with default configurations, overridden
// by the config file given in flags.
func LoadConfig() (*Config, error) {
	conf := NewConfig()
	if configFile != "" {
		if err := conf.LoadFile(configFile); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

// MustLoadConfig calls LoadConfig and fails on error.
func MustLoadConfig() *Config {
	conf, err := LoadConfig()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

type fileConfig struct {
	ID           string `toml:"id"`
	Device       string `toml:"device"`
	Baud         int    `toml:"baud"`
	FlowControl  bool   `toml:"xonxoff"`
	EEPROMImage  string `toml:"eeprom_image"`
	EEPROMSize   int    `toml:"eeprom_size"`
	Realistic    bool   `toml:"realistic"`
	HomingLock   bool   `toml:"homing_lock"`
	Banner       string `toml:"banner"`
	Interval     string `toml:"interval"`
	MQTT         string `toml:"mqtt"`
	RealtimeOnly bool   `toml:"realtime_only"`
}

// LoadFile overrides the config with the keys defined in a TOML file.
func (c *Config) LoadFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load board config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		glog.Warningf("board config %s: unknown keys %v", path, undecoded)
	}
	if meta.IsDefined("id") {
		c.BoardID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined("device") {
		c.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("baud") {
		c.Baud = raw.Baud
	}
	if meta.IsDefined("xonxoff") {
		c.FlowControl = raw.FlowControl
	}
	if meta.IsDefined("eeprom_image") {
		c.EEPROMImage = strings.TrimSpace(raw.EEPROMImage)
	}
	if meta.IsDefined("eeprom_size") {
		c.EEPROMSize = raw.EEPROMSize
	}
	if meta.IsDefined("realistic") {
		c.Realistic = raw.Realistic
	}
	if meta.IsDefined("homing_lock") {
		c.HomingLock = raw.HomingLock
	}
	if meta.IsDefined("banner") {
		c.Banner = raw.Banner
	}
	if meta.IsDefined("interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Interval))
		if err != nil {
			return fmt.Errorf("parse interval: %w", err)
		}
		c.Interval = d
	}
	if meta.IsDefined("mqtt") {
		c.MQTTBrokerURL = strings.TrimSpace(raw.MQTT)
	}
	if meta.IsDefined("realtime_only") {
		c.RealtimeOnly = raw.RealtimeOnly
	}
	return nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBaud, c.Baud)
	}
	if c.EEPROMSize < MinEEPROMSize {
		return fmt.Errorf("%w: %d < %d", ErrEEPROMTooSmall, c.EEPROMSize, MinEEPROMSize)
	}
	if c.MQTTBrokerURL != "" && c.BoardID == "" {
		return ErrNoBoardID
	}
	return nil
}
