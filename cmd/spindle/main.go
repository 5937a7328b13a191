// Package main is the spindle command line player.
// spindle plays a playlist on the default output device, publishes itself to
// desktop media controls and accepts commands on a control socket.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	boa.CmdT[boa.NoParams]{
		Use:     "spindle",
		Short:   "Playlist audio player with a control socket",
		Version: Version,
		SubCmds: []*cobra.Command{
			playCmd(),
			ctlCmd(),
			probeCmd(),
			configCmd(),
		},
	}.Run()
}

func paramEnricher() boa.ParamEnricher {
	return boa.ParamEnricherCombine(
		boa.ParamEnricherBool,
		boa.ParamEnricherName,
		boa.ParamEnricherShort,
	)
}

// setupLogging points the global logger at stderr. quiet raises the level
// to warnings so log lines do not tear the terminal status line.
func setupLogging(debug, quiet bool) {
	level := zerolog.InfoLevel
	switch {
	case debug:
		level = zerolog.DebugLevel
	case quiet:
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "spindle: %v\n", err)
	os.Exit(1)
}
