// Package supervisor implements the single-threaded event loop driving
// process.Record, proctable.Table, depgraph.Graph and cron.Scheduler
// from one epoll-based readiness poller. Grounded on the sandbox
// process-management loop of runsc/sandbox/sandbox.go (Wait4/SysProcAttr/
// subreaper idioms).
package supervisor

import (
	"github.com/cinit-project/cinit/internal/analyse"
	"github.com/cinit-project/cinit/internal/exitcode"
	"github.com/cinit-project/cinit/internal/process"
	"github.com/cinit-project/cinit/internal/proctable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	// maxLineRead is the per-fd read chunk size for child stdio input.
	maxLineRead = 4096
)

// Supervisor owns the event loop and every fd it multiplexes: the
// signal self-pipe, the status and notify sockets, and each running
// child's stdio read ends.
type Supervisor struct {
	log logrus.FieldLogger

	table  *proctable.Table
	result *analyse.Result

	notifySocketPath string
	statusFd         int
	notifyFd         int

	poller  *poller
	sigpipe *signalPipe

	stdioByFd map[int]stdioChannel

	keepRunning  bool
	shuttingDown bool
	crashed      bool
}

type stdioChannel struct {
	id       int
	end      process.StdioEnd
	isStdout bool
}

// New wires a Result (the output of internal/analyse.Build) into a
// ready-to-run Supervisor, performing runtime setup: subreaper flag,
// signal self-pipe, status and notify sockets, and epoll registration
// of all three.
func New(result *analyse.Result, statusSocketPath, notifySocketPath string, log logrus.FieldLogger) (*Supervisor, error) {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return nil, &setupError{"setting child-subreaper flag", err}
	}

	sigpipe, err := newSignalPipe()
	if err != nil {
		return nil, &setupError{"creating signal self-pipe", err}
	}

	statusFd, err := listenStatusSocket(statusSocketPath)
	if err != nil {
		sigpipe.close()
		return nil, &setupError{"creating status socket", err}
	}

	notifyFd, err := openNotifySocket(notifySocketPath)
	if err != nil {
		sigpipe.close()
		unix.Close(statusFd)
		return nil, &setupError{"creating notify socket", err}
	}

	p, err := newPoller()
	if err != nil {
		sigpipe.close()
		unix.Close(statusFd)
		unix.Close(notifyFd)
		return nil, &setupError{"creating epoll instance", err}
	}

	s := &Supervisor{
		log:              log,
		table:            proctable.New(result.Records),
		result:           result,
		notifySocketPath: notifySocketPath,
		statusFd:         statusFd,
		notifyFd:         notifyFd,
		poller:           p,
		sigpipe:          sigpipe,
		stdioByFd:        make(map[int]stdioChannel),
		keepRunning:      true,
	}

	for _, fd := range []int{sigpipe.readFd, statusFd, notifyFd} {
		if err := p.add(fd); err != nil {
			s.Close()
			return nil, &setupError{"registering fd with epoll", err}
		}
	}

	return s, nil
}

type setupError struct {
	step string
	err  error
}

func (e *setupError) Error() string { return e.step + ": " + e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

// ExitCode returns the process-level exit code to use once Run returns.
func (s *Supervisor) ExitCode() int {
	if s.crashed {
		return exitcode.ChildCrashed
	}
	return exitcode.OK
}

// Close releases every fd the supervisor owns. Safe to call after Run
// returns or during early setup failure unwinding.
func (s *Supervisor) Close() {
	s.poller.close()
	s.sigpipe.close()
	unix.Close(s.statusFd)
	unix.Close(s.notifyFd)
}
