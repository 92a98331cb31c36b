package main

import (
	"fmt"
	"os"

	"github.com/marl-kit/modelhost/commands"
)

// main is the entry point for both roles: the supervisor-side commands and
// the hidden worker subcommand the supervisor spawns.
func main() {
	rootCommand := commands.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
