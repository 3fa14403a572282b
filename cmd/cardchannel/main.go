package main

import (
	"os"

	"github.com/mwolff-dev/cardchannel/cmd/cardchannel/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
