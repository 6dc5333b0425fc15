package main

import (
	"github.com/robotalks/cnc.go/pkg/board"
	"github.com/robotalks/cnc.go/pkg/cli/sh"

	_ "github.com/robotalks/cnc.go/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func init() {
	board.SetupFlags()
}

func main() {
	sh.Main()
}
