// Package config parses the cinit configuration document into the
// immutable Config tree consumed by internal/analyse.
package config

// ProcessType tags how a process participates in startup: Oneshot and
// Notify are part of the dependency graph, Cronjob is driven by the cron
// scheduler and must not declare before/after edges.
type ProcessType struct {
	Kind  ProcessKind
	Timer string // only set when Kind == KindCronjob
}

// ProcessKind enumerates the tag of ProcessType.
type ProcessKind int

const (
	KindOneshot ProcessKind = iota
	KindNotify
	KindCronjob
)

func (k ProcessKind) String() string {
	switch k {
	case KindOneshot:
		return "oneshot"
	case KindNotify:
		return "notify"
	case KindCronjob:
		return "cronjob"
	default:
		return "unknown"
	}
}

// EnvLayer is one entry of the ordered env list: a single variable name
// mapped to an optional template string. A nil Value means "inherit the
// supervisor's current value for this name".
type EnvLayer struct {
	Name  string
	Value *string
}

// ProcessConfig is the immutable, as-parsed description of one declared
// process before identity/environment resolution (internal/analyse).
type ProcessConfig struct {
	Name    string
	Path    string
	HasPath bool
	Args    []string

	Workdir    string
	HasWorkdir bool

	Type ProcessType

	UID    uint32
	HasUID bool
	GID    uint32
	HasGID bool
	User   string
	Group  string

	Before []string
	After  []string

	EmulatePTY bool

	Capabilities []string

	Env []EnvLayer

	// SourceFile is provenance used only for diagnostics (merge conflict
	// messages); it is never serialized and has no bearing on identity.
	SourceFile string
}

// Config is the top-level parsed document: an ordered list of process
// declarations, already merged across every file of a directory tree.
type Config struct {
	Programs []ProcessConfig
}
