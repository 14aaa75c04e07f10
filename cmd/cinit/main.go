// Command cinit is a container-oriented process supervisor: a PID-1
// replacement that launches a declared set of programs with controlled
// identity, capabilities, and environment, orders them by a dependency
// graph, runs a subset on a cron schedule, reaps orphans, and exposes a
// status and notification interface over UNIX sockets. Grounded on the
// subcommands.Register / subcommands.Execute entrypoint shape of
// runsc/cli/main.go.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
