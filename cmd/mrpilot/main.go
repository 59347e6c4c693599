package main

import (
	"os"

	"github.com/devflowkit/mrpilot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
