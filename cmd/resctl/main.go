package main

import (
	"os"

	"github.com/danpasecinic/reservable/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
