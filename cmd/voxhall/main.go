package main

import (
	"os"

	"github.com/voxhall/voxhall/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
