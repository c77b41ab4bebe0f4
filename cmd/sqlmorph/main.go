// Package main is the sqlmorph command-line entry point.
package main

import (
	"os"

	"github.com/sqlmorph/sqlmorph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
