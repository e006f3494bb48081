// Package main provides the entry point for the catindex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/catindex/cmd/catindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
