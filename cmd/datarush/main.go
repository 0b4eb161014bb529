// Package main provides the datarush command-line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/datarush/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
