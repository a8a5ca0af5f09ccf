// journeyctl is the operator CLI for a Cosmic Journey server.
package main

import (
	"fmt"
	"os"

	"github.com/ashureev/cosmic-journey/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
