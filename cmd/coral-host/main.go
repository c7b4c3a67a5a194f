package main

import (
	"os"

	"github.com/Kirdow/Coral/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
