// The main package for the newsforge executable.
package main

import (
	"github.com/newsforge/newsforge/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
