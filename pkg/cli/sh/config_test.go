package sh

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/robotalks/cnc.go/pkg/board"
)

func testConfig(t *testing.T) *board.Config {
	conf := board.NewConfig()
	conf.BoardID = "test"
	conf.Banner = "Grbl test"
	conf.Interval = time.Millisecond
	conf.MQTTBrokerURL = ""
	conf.EEPROMImage = filepath.Join(t.TempDir(), "eeprom.bin")
	return conf
}
