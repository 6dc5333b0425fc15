package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/robotalks/cnc.go/pkg/board"
	fx "github.com/robotalks/cnc.go/pkg/framework"
)

func init() {
	board.SetupFlags()
}

func main() {
	flag.Parse()

	b, err := board.MustLoadConfig().Open()
	if err != nil {
		log.Fatalln(err)
	}
	if err := fx.NewRunner().HandleSignals().Go(b).Wait(); err != nil {
		log.Fatalln(err)
	}
}
