// Package main is the entry point for skyplayer.
package main

import (
	"os"

	"github.com/jmylchreest/skyplayer/cmd/skyplayer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
