// Package analyse transforms a parsed config.Config into the runtime
// instances the supervisor drives: a process.Record per program, a
// depgraph.Graph, and a cron.Scheduler sharing one id assignment.
// Grounded on an earlier implementation's per-process builder,
// generalized from its single-process constructor into a whole-config
// Build.
package analyse

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/cinit-project/cinit/internal/config"
	"github.com/cinit-project/cinit/internal/cron"
	"github.com/cinit-project/cinit/internal/depgraph"
	"github.com/cinit-project/cinit/internal/process"
	"github.com/sirupsen/logrus"
)

// forwardedVars is the whitelist of variables seeded from the
// supervisor's own environment before any layer or identity overlay
// is applied.
var forwardedVars = []string{
	"HOME", "LANG", "LANGUAGE", "LOGNAME", "PATH", "PWD", "SHELL", "TERM", "USER",
}

// Error reports an analysis failure naming the offending process and
// the problem, for the process-naming diagnostics an analysis failure
// exit requires.
type Error struct {
	Process string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("process %q: %s", e.Process, e.Reason)
}

// Result is everything the supervisor needs to run the event loop,
// sharing one id assignment (the index into Records) across the record
// vector, the dependency graph, and the cron scheduler.
type Result struct {
	Records []*process.Record
	Graph   *depgraph.Graph
	Cron    *cron.Scheduler
}

// Environ abstracts os.Environ/os.LookupEnv so tests can supply a fixed
// ambient environment instead of the real process environment.
type Environ interface {
	Lookup(key string) (string, bool)
}

// osEnviron reads the real process environment via os.LookupEnv.
type osEnviron struct{ lookup func(string) (string, bool) }

func (e osEnviron) Lookup(key string) (string, bool) { return e.lookup(key) }

// LookupFunc adapts a lookup function (typically os.LookupEnv) to Environ.
func LookupFunc(f func(string) (string, bool)) Environ { return osEnviron{lookup: f} }

// UserLookup abstracts os/user so tests can supply a fake directory.
type UserLookup interface {
	Lookup(name string) (*user.User, error)
	LookupGroup(name string) (*user.Group, error)
}

type osUserLookup struct{}

func (osUserLookup) Lookup(name string) (*user.User, error)   { return user.Lookup(name) }
func (osUserLookup) LookupGroup(name string) (*user.Group, error) { return user.LookupGroup(name) }

// OSUsers is the real host user/group database.
var OSUsers UserLookup = osUserLookup{}

// Build transforms cfg into a Result. now seeds the cron scheduler's
// first next-execution computation.
func Build(cfg config.Config, users UserLookup, env Environ, now time.Time, log logrus.FieldLogger) (*Result, error) {
	records := make([]*process.Record, len(cfg.Programs))
	cronExprs := make(map[int]string)
	refs := make([]depgraph.ProcessRef, len(cfg.Programs))

	for i, pc := range cfg.Programs {
		if pc.Type.Kind == config.KindCronjob && (len(pc.Before) > 0 || len(pc.After) > 0) {
			return nil, &Error{Process: pc.Name, Reason: "cronjobs may not declare before/after dependencies"}
		}
		if !pc.HasPath {
			return nil, &Error{Process: pc.Name, Reason: "missing required path"}
		}

		uid, err := resolveUID(pc, users)
		if err != nil {
			return nil, &Error{Process: pc.Name, Reason: err.Error()}
		}
		gid, err := resolveGID(pc, users)
		if err != nil {
			return nil, &Error{Process: pc.Name, Reason: err.Error()}
		}

		envMap, order := assembleEnv(pc, uid, env, log)

		typ := toRecordType(pc.Type.Kind)
		if typ == process.Notify {
			if _, ok := envMap[process.NotifySocketVar]; ok {
				log.Warnf("process %s: NOTIFY_SOCKET is reserved and will be overwritten", pc.Name)
			}
			envMap[process.NotifySocketVar] = ""
			if !containsString(order, process.NotifySocketVar) {
				order = append(order, process.NotifySocketVar)
			}
		} else if _, ok := envMap[process.NotifySocketVar]; ok {
			log.Warnf("process %s: NOTIFY_SOCKET is reserved for notify processes and will be removed", pc.Name)
			delete(envMap, process.NotifySocketVar)
			kept := order[:0]
			for _, k := range order {
				if k != process.NotifySocketVar {
					kept = append(kept, k)
				}
			}
			order = kept
		}

		argv := make([]string, 0, len(pc.Args)+1)
		argv = append(argv, pc.Path)
		for _, raw := range pc.Args {
			argv = append(argv, renderTemplate(raw, envMap, pc.Name, log))
		}

		workdir := pc.Workdir
		if !pc.HasWorkdir {
			workdir = "."
		}

		envList := make([]string, 0, len(order))
		for _, k := range order {
			envList = append(envList, k+"="+envMap[k])
		}

		records[i] = process.NewRecord(i, pc.Name, pc.Path, argv, workdir, uid, gid,
			pc.EmulatePTY, pc.Capabilities, envList, typ)

		if pc.Type.Kind == config.KindCronjob {
			cronExprs[i] = pc.Type.Timer
		}

		refs[i] = depgraph.ProcessRef{
			ID:      i,
			Name:    pc.Name,
			Cronjob: pc.Type.Kind == config.KindCronjob,
			Before:  pc.Before,
			After:   pc.After,
		}
	}

	graph, err := depgraph.Build(refs)
	if err != nil {
		return nil, err
	}

	scheduler, err := cron.NewScheduler(now, cronExprs)
	if err != nil {
		return nil, err
	}

	return &Result{Records: records, Graph: graph, Cron: scheduler}, nil
}

func toRecordType(k config.ProcessKind) process.Type {
	switch k {
	case config.KindNotify:
		return process.Notify
	case config.KindCronjob:
		return process.Cronjob
	default:
		return process.Oneshot
	}
}

func resolveUID(pc config.ProcessConfig, users UserLookup) (uint32, error) {
	if pc.HasUID && pc.User != "" {
		return 0, fmt.Errorf("at most one of uid/user may be set")
	}
	if pc.HasUID {
		return pc.UID, nil
	}
	if pc.User != "" {
		u, err := users.Lookup(pc.User)
		if err != nil {
			return 0, fmt.Errorf("unknown user %q", pc.User)
		}
		n, err := strconv.ParseUint(u.Uid, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("user %q has unparseable uid %q", pc.User, u.Uid)
		}
		return uint32(n), nil
	}
	return 0, nil
}

func resolveGID(pc config.ProcessConfig, users UserLookup) (uint32, error) {
	if pc.HasGID && pc.Group != "" {
		return 0, fmt.Errorf("at most one of gid/group may be set")
	}
	if pc.HasGID {
		return pc.GID, nil
	}
	if pc.Group != "" {
		g, err := users.LookupGroup(pc.Group)
		if err != nil {
			return 0, fmt.Errorf("unknown group %q", pc.Group)
		}
		n, err := strconv.ParseUint(g.Gid, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("group %q has unparseable gid %q", pc.Group, g.Gid)
		}
		return uint32(n), nil
	}
	return 0, nil
}

// assembleEnv builds the env map and its declaration order: whitelist
// seed, identity overlay, then each configured layer in order.
func assembleEnv(pc config.ProcessConfig, uid uint32, env Environ, log logrus.FieldLogger) (map[string]string, []string) {
	result := make(map[string]string)
	var order []string

	set := func(key, value string) {
		if _, exists := result[key]; !exists {
			order = append(order, key)
		}
		result[key] = value
	}

	for _, key := range forwardedVars {
		v, _ := env.Lookup(key)
		set(key, v)
	}

	if u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10)); err == nil {
		set("HOME", u.HomeDir)
		set("PWD", u.HomeDir)
		set("USER", u.Username)
		set("LOGNAME", u.Username)
	}
	set("SHELL", "/bin/sh")

	for _, layer := range pc.Env {
		if layer.Value == nil {
			if v, ok := env.Lookup(layer.Name); ok {
				set(layer.Name, v)
			}
			continue
		}
		rendered := renderTemplate(*layer.Value, result, pc.Name, log)
		set(layer.Name, rendered)
	}

	return result, order
}

func renderTemplate(raw string, context map[string]string, procName string, log logrus.FieldLogger) string {
	rendered, err := render(raw, context)
	if err != nil {
		log.Warnf("process %s: template %q failed to render: %v", procName, raw, err)
		return raw
	}
	if strings.ContainsAny(rendered, "{}") {
		log.Warnf("process %s: rendered value %q still looks like a template", procName, rendered)
	}
	return rendered
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
