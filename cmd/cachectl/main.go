// Package main provides the cachectl CLI tool for inspecting and
// manipulating a Redis-backed cache through the namespaced cache manager.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
