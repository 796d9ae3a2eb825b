package main

import (
	"os"

	"rchat/cmd/rchat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
