// Package main provides the Quarry CLI.
package main

import (
	"os"

	"github.com/quarrylabs/quarry/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
