package main

import (
	"os"
)

// main hands off to cobra. Each subcommand builds only what it needs from
// the environment-derived config.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
