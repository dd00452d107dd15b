// Package main provides the tsqlfmt command-line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/tsqlfmt/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
