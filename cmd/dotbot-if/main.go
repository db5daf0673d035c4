package main

import (
	"os"

	"github.com/sol-strategies/dotbot-if/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
