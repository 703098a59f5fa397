package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/wardenhq/warden/cli"
)

// Version is provided at compile time
var Version = "dev"

func main() {
	app := kingpin.New("warden", "Policy-driven access control for remote sessions")
	app.Version(Version)

	w := cli.ConfigureGlobals(app)

	// Policy commands
	cli.ConfigurePolicyLintCommand(app)
	cli.ConfigureEvaluateCommand(app, w)

	// Approval workflow commands
	cli.ConfigureRequestCommands(app, w)

	// MFA commands
	cli.ConfigureMFACommands(app, w)

	// Infrastructure commands
	cli.ConfigureBootstrapCommand(app, w)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
