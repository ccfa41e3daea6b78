// atlantis CLI - command-line interface for the atlantis mock server
package main

import (
	"github.com/echsylon/atlantis/pkg/cli"

	// Register the built-in token helper in the strategy registry so
	// configurations can reference it by name.
	_ "github.com/echsylon/atlantis/pkg/token"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	cli.Version = Version
	cli.Execute()
}
