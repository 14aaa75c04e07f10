package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/cinit-project/cinit/internal/analyse"
	"github.com/cinit-project/cinit/internal/config"
	"github.com/cinit-project/cinit/internal/exitcode"
	"github.com/cinit-project/cinit/internal/logging"
	"github.com/cinit-project/cinit/internal/preflight"
	"github.com/cinit-project/cinit/internal/supervisor"
)

const (
	defaultConfigPath = "/etc/cinit.yml"
	defaultStatusPath = "/run/cinit.socket"
	defaultNotifyPath = "/run/cinit-notify.socket"
)

// runCommand implements subcommands.Command for cinit's only real
// subcommand: reading a config, analysing it, and running the
// supervisor event loop. Grounded on the SetFlags/Execute shape of
// runsc/cmd/state.go.
type runCommand struct {
	configPath string
	verbosity  int
	dryRun     bool
}

func (*runCommand) Name() string     { return "run" }
func (*runCommand) Synopsis() string { return "run the supervisor against a configuration" }
func (*runCommand) Usage() string {
	return `run [-c config] [-v]... [-n]:
  start the process supervisor
`
}

func (c *runCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "c", defaultConfigPath, "config file or directory")
	f.StringVar(&c.configPath, "config", defaultConfigPath, "config file or directory")
	f.BoolVar(&c.dryRun, "n", false, "parse and analyse the configuration, then exit without spawning anything")
	f.BoolVar(&c.dryRun, "dry-run", false, "parse and analyse the configuration, then exit without spawning anything")

	// -v is repeatable: each occurrence increments verbosity.
	f.BoolFunc("v", "increase verbosity (repeatable: -v debug, -v -v trace)", func(string) error {
		c.verbosity++
		return nil
	})
	f.BoolFunc("verbose", "increase verbosity (repeatable: -v debug, -v -v trace)", func(string) error {
		c.verbosity++
		return nil
	})
}

func (c *runCommand) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	log := logging.Setup(c.verbosity)

	cfg, err := config.LoadPath(c.configPath)
	if err != nil {
		log.Errorf("loading config from %s: %v", c.configPath, err)
		return subcommands.ExitStatus(exitcode.ConfigError)
	}

	result, err := analyse.Build(cfg, analyse.OSUsers, analyse.LookupFunc(os.LookupEnv), time.Now(), log)
	if err != nil {
		log.Errorf("analysing configuration: %v", err)
		return subcommands.ExitStatus(exitcode.AnalysisError)
	}

	if c.dryRun {
		log.Infof("configuration is valid: %d program(s) declared", len(result.Records))
		return subcommands.ExitSuccess
	}

	if err := preflight.Check(); err != nil {
		log.Errorf("preflight check failed: %v", err)
		return subcommands.ExitStatus(exitcode.PreflightError)
	}

	sup, err := supervisor.New(result, defaultStatusPath, defaultNotifyPath, log)
	if err != nil {
		log.Errorf("runtime setup failed: %v", err)
		return subcommands.ExitStatus(exitcode.RuntimeSetupError)
	}
	defer sup.Close()

	logging.NotifyOuterSupervisor(log)

	return subcommands.ExitStatus(runLoop(sup, log))
}

func runLoop(sup *supervisor.Supervisor, log logrus.FieldLogger) int {
	code := sup.Run()
	log.Infof("supervisor exiting with code %d", code)
	return code
}
