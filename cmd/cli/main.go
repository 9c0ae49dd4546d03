package main

import (
	"os"

	"github.com/tripsplit/tripsplit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
