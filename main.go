// The main package for the fontsnatcher executable.
package main

import (
	"github.com/JakeFAU/fontsnatcher/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
