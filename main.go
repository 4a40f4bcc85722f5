package main

import (
	"os"

	"github.com/ben4mn/Pulse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
