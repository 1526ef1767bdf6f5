// ./main.go
package main

import (
	"github.com/kvasirlabs/gatewright/cmd"
)

// main is the entry point for the gatewright CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
