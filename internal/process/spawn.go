package process

import (
	"fmt"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"
)

// NotifySocketVar is the reserved environment variable name forced
// onto Notify records and forbidden from every other record by
// internal/analyse.
const NotifySocketVar = "NOTIFY_SOCKET"

// StdioEnd is the parent-side read end of a child's stdout or stderr
// channel: either a pipe read end (*os.File) or a PTY master
// (console.Console), made uniform so internal/supervisor can register
// either with epoll without caring which.
type StdioEnd interface {
	Read(p []byte) (int, error)
	Close() error
	Fd() uintptr
}

// SpawnResult is what Spawn hands back to the supervisor: the new PID
// and the two parent-side stdio read ends.
type SpawnResult struct {
	PID    int
	Stdout StdioEnd
	Stderr StdioEnd
}

// Spawn forks, installs the child's identity/ambient-capability set, and
// execs the resolved argv. notifySocketPath is used only for Notify
// records, to force NOTIFY_SOCKET.
func (r *Record) Spawn(notifySocketPath string, log logrus.FieldLogger) (*SpawnResult, error) {
	stdout, stdoutChild, err := newStdioPair(r.EmulatePTY, r.UID, r.GID)
	if err != nil {
		return nil, fmt.Errorf("setting up stdout for %s: %w", r.Name, err)
	}
	stderr, stderrChild, err := newStdioPair(r.EmulatePTY, r.UID, r.GID)
	if err != nil {
		stdout.Close()
		stdoutChild.Close()
		return nil, fmt.Errorf("setting up stderr for %s: %w", r.Name, err)
	}

	resolvedCaps, unknown := resolveCapabilities(r.Capabilities)
	for _, name := range unknown {
		log.Warnf("process %s: unknown capability %q, skipping", r.Name, name)
	}

	env := r.Env
	if r.Type == Notify {
		env = setEnvVar(env, NotifySocketVar, notifySocketPath)
	}

	cmd := &exec.Cmd{
		Path: r.Path,
		Args: r.Argv,
		Env:  env,
		Dir:  r.Workdir,
		Stdin:  nil,
		Stdout: stdoutChild,
		Stderr: stderrChild,
		SysProcAttr: &syscall.SysProcAttr{
			Credential: &syscall.Credential{
				Uid:    r.UID,
				Gid:    r.GID,
				Groups: []uint32{r.GID},
			},
			// Go's runtime performs the PR_SET_KEEPCAPS / setuid /
			// re-raise-effective / ambient-raise sequence internally
			// whenever Credential and AmbientCaps are both set (see
			// DESIGN.md's internal/process entry).
			AmbientCaps: capsToAmbient(resolvedCaps),
			Setsid:      r.EmulatePTY,
		},
	}

	log.Infof("starting %s", r.Name)
	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		stdoutChild.Close()
		stderrChild.Close()
		return nil, fmt.Errorf("spawning %s: %w", r.Name, err)
	}
	stdoutChild.Close()
	stderrChild.Close()

	log.Infof("started %s as pid %d", r.Name, cmd.Process.Pid)
	r.MarkSpawned(cmd.Process.Pid)

	return &SpawnResult{PID: cmd.Process.Pid, Stdout: stdout, Stderr: stderr}, nil
}

func setEnvVar(env []string, key, value string) []string {
	entry := key + "=" + value
	for i, kv := range env {
		if len(kv) > len(key) && kv[:len(key)] == key && kv[len(key)] == '=' {
			result := make([]string, len(env))
			copy(result, env)
			result[i] = entry
			return result
		}
	}
	return append(append([]string{}, env...), entry)
}
