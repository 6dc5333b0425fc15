// Package all registers all console commands.
package all

import (
	// Import all commands providers.
	_ "github.com/robotalks/cnc.go/pkg/cli/cmds/eeprom"
	_ "github.com/robotalks/cnc.go/pkg/cli/cmds/realtime"
)
