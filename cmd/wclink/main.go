package main

import (
	"os"

	"wclink/cmd/wclink/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
