package supervisor

import (
	"bytes"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cinit-project/cinit/internal/exitcode"
	"github.com/cinit-project/cinit/internal/process"
)

// Run drives the event loop until no process remains running and
// either nothing is left runnable or shutdown has been requested, then
// returns the process-level exit code.
func (s *Supervisor) Run() int {
	for s.keepRunning && (s.table.HasRunningProcesses() || s.anyRunnableLeft()) {
		s.spawnDueChildren()
		s.pollOnce()
		s.reapFinishedChildren()
	}

	for s.table.HasRunningProcesses() {
		s.pollOnce()
		s.reapFinishedChildren()
	}

	return s.ExitCode()
}

func (s *Supervisor) anyRunnableLeft() bool {
	return s.result.Graph.HasRunnables() || s.result.Cron.HasJobs()
}

func (s *Supervisor) pollOnce() {
	ready, err := s.poller.wait()
	if err != nil {
		s.log.Errorf("epoll_wait: %v", err)
		return
	}
	s.dispatch(ready)
}

// spawnDueChildren drains both the dependency-runnable queue and the
// cron due-ticks.
func (s *Supervisor) spawnDueChildren() {
	for {
		id, ok := s.result.Graph.PopRunnable()
		if !ok {
			break
		}
		record := s.result.Records[id]
		if record.Type == process.Cronjob {
			// The graph only tracked this id so is_runnable(id) can gate
			// cron firing; cronjobs are spawned from the cron timeline,
			// never from the dependency queue.
			continue
		}
		s.spawnOne(id)
	}

	now := time.Now()
	for {
		id, ok := s.result.Cron.PopRunnable(now)
		if !ok {
			break
		}
		if !s.result.Graph.IsRunnable(id) {
			s.log.Debugf("cronjob %s due but its dependencies are not yet satisfied, skipping this tick",
				s.result.Records[id].Name)
			continue
		}
		s.spawnOne(id)
	}
}

func (s *Supervisor) spawnOne(id int) {
	record := s.result.Records[id]
	if !record.CanSpawn() {
		s.log.Debugf("process %s: refusing to spawn from state %s", record.Name, record.State)
		return
	}

	res, err := record.Spawn(s.notifySocketPath, s.log)
	if err != nil {
		s.log.Errorf("process %s: %v", record.Name, err)
		// No pid ever came into existence, so this never reaches
		// reapFinishedChildren; treat it the same way a reaped crash
		// would be treated, using exitcode.ChildSetupError as the
		// child's own exit code per exitcode.go's convention.
		record.MarkExited(exitcode.ChildSetupError)
		s.crashed = true
		s.initiateShutdown(syscall.SIGINT)
		if record.Type != process.Cronjob {
			s.result.Graph.NotifyProcessFinished(id)
		}
		return
	}

	s.table.RegisterPID(id, res.PID)
	s.registerStdio(id, res.Stdout, true)
	s.registerStdio(id, res.Stderr, false)
}

func (s *Supervisor) registerStdio(id int, end process.StdioEnd, isStdout bool) {
	fd := int(end.Fd())
	if err := s.poller.add(fd); err != nil {
		s.log.Warnf("process %d: failed to register stdio fd %d with epoll: %v", id, fd, err)
	}
	if isStdout {
		s.table.RegisterStdout(id, fd)
	} else {
		s.table.RegisterStderr(id, fd)
	}
	s.stdioByFd[fd] = stdioChannel{id: id, end: end, isStdout: isStdout}
}

// reapFinishedChildren drains waitpid(-1, WNOHANG).
func (s *Supervisor) reapFinishedChildren() {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err != nil {
			if err == unix.ECHILD {
				return
			}
			s.log.Warnf("wait4: %v", err)
			return
		}
		if pid <= 0 {
			return
		}

		record, ok := s.table.ProcessForPID(pid)
		if !ok {
			s.table.NoteOrphanReaped()
			s.log.Debugf("reaped unknown pid %d (adopted orphan)", pid)
			continue
		}

		id, _ := s.table.ProcessIDForPID(pid)
		rc := exitRC(status)
		record.MarkExited(rc)
		s.table.DeregisterPID(pid)

		if rc != 0 {
			s.crashed = true
			s.initiateShutdown(syscall.SIGINT)
		}

		if record.Type != process.Cronjob {
			s.result.Graph.NotifyProcessFinished(id)
		}
	}
}

func exitRC(status unix.WaitStatus) int {
	if status.Exited() {
		return status.ExitStatus()
	}
	if status.Signaled() {
		return 128 + int(status.Signal())
	}
	return -1
}

// dispatch handles one readiness batch.
func (s *Supervisor) dispatch(readyFds []int) {
	for _, fd := range readyFds {
		switch fd {
		case s.sigpipe.readFd:
			s.handleSignals()
		case s.statusFd:
			s.handleStatusConn()
		case s.notifyFd:
			s.handleNotifyDatagram()
		default:
			s.handleStdio(fd)
		}
	}
}

func (s *Supervisor) handleSignals() {
	s.sigpipe.drain()
	for _, sig := range s.sigpipe.pending() {
		switch sig {
		case syscall.SIGINT, syscall.SIGQUIT:
			s.initiateShutdown(sig.(syscall.Signal))
		case syscall.SIGTERM:
			// Workaround for children with no TTY: escalate as SIGINT.
			s.initiateShutdown(syscall.SIGINT)
		case syscall.SIGCHLD:
			s.log.Trace("received SIGCHLD")
		}
	}
}

func (s *Supervisor) handleStatusConn() {
	connFd, err := acceptStatusConn(s.statusFd)
	if err != nil {
		s.log.Warnf("accepting status connection: %v", err)
		return
	}
	defer unix.Close(connFd)

	report := s.buildStatusReport()
	if _, err := unix.Write(connFd, report); err != nil {
		s.log.Debugf("writing status report: %v", err)
	}
}

func (s *Supervisor) handleNotifyDatagram() {
	data, pid, hasCreds, err := recvNotifyDatagram(s.notifyFd)
	if err != nil {
		s.log.Warnf("reading notify datagram: %v", err)
		return
	}
	if !hasCreds {
		s.log.Warn("notify datagram missing sender credentials, discarding")
		return
	}

	record, ok := s.table.ProcessForPID(int(pid))
	if !ok {
		s.log.Warnf("notify datagram from unknown pid %d, discarding", pid)
		return
	}
	id, _ := s.table.ProcessIDForPID(int(pid))
	if record.Type != process.Notify {
		s.log.Warnf("notify datagram from %s, which is not a notify-type process, discarding", record.Name)
		return
	}

	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		oldPID := record.PID
		event := record.HandleNotifyLine(string(line), s.log)
		if event.BecameReady {
			s.result.Graph.NotifyProcessFinished(id)
		}
		if event.MainPIDMoved {
			s.table.RepointPID(oldPID, event.NewMainPID)
		}
	}
}

func (s *Supervisor) handleStdio(fd int) {
	ch, ok := s.stdioByFd[fd]
	if !ok {
		return
	}

	buf := make([]byte, maxLineRead)
	n, err := ch.end.Read(buf)
	if n <= 0 || err == os.ErrClosed {
		s.deregisterStdio(fd)
		return
	}

	channel := "stdout"
	if !ch.isStdout {
		channel = "stderr"
	}
	record := s.result.Records[ch.id]

	for _, line := range bytes.Split(buf[:n], []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		s.log.WithField("process", record.Name).WithField("channel", channel).Info(string(line))
	}

	if err != nil {
		s.deregisterStdio(fd)
	}
}

func (s *Supervisor) deregisterStdio(fd int) {
	s.poller.remove(fd)
	s.table.DeregisterFd(fd)
	if ch, ok := s.stdioByFd[fd]; ok {
		ch.end.Close()
		delete(s.stdioByFd, fd)
	}
}

// initiateShutdown begins graceful shutdown: stop spawning, signal
// every Running child, and let the drain loop continue until the
// process table reports no more running processes.
func (s *Supervisor) initiateShutdown(sig syscall.Signal) {
	if s.shuttingDown {
		return
	}
	s.shuttingDown = true
	s.keepRunning = false

	for _, record := range s.result.Records {
		if record.State == process.Running {
			if err := syscall.Kill(record.PID, sig); err != nil {
				s.log.Debugf("signaling %s (pid %d): %v", record.Name, record.PID, err)
			}
		}
	}
}

