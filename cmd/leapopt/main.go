// Package main is the entry point of the leapopt CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapopt/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
