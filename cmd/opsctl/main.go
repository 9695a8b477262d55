package main

import (
	"os"

	"github.com/kmrl/opsboard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
