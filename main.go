// The main package for the quicli executable.
package main

import (
	"os"

	"github.com/kylealanhale/quicli/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	os.Exit(cmd.Execute())
}
