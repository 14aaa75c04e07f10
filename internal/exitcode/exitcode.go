// Package exitcode names the supervisor's own process exit codes.
package exitcode

const (
	OK = 0

	// ConfigError is returned for configuration read/parse/merge failure.
	ConfigError = 1

	// AnalysisError is returned for identity resolution, cronjob-with-
	// dependency, unknown reference, cycle, cron expression syntax,
	// missing binary path, or drop-in merge conflict failures.
	AnalysisError = 2

	// RuntimeSetupError is returned for socket/signal-pipe/epoll
	// creation failure.
	RuntimeSetupError = 3

	// ChildSetupError is reported by a child that failed its own setup
	// before exec; it surfaces to the parent as that child's exit code,
	// not the supervisor's own.
	ChildSetupError = 4

	// PreflightError is returned when the running kernel is too old for
	// ambient capabilities, or the supervisor is not running as root.
	PreflightError = 5

	// ChildCrashed is returned when any supervised child exited with a
	// non-zero code.
	ChildCrashed = 6
)
