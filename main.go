// The main package for the feedlens executable.
package main

import (
	"github.com/feedlens/feedlens/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
