package supervisor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// signalPipe is the self-pipe substitute for Linux signalfd:
// os/signal.Notify already does the job of intercepting
// SIGCHLD/SIGINT/SIGTERM/SIGQUIT that signalfd+sigprocmask would do in
// a language without a managed runtime; a background goroutine copies
// each received signal into a queue and a pipe byte so the
// single-threaded event loop can learn about it through the same epoll
// it already polls everything else on, keeping the loop's suspension
// point singular.
type signalPipe struct {
	readFd  int
	writeFd int
	ch      chan os.Signal

	mu       sync.Mutex
	received []os.Signal
}

func newSignalPipe() (*signalPipe, error) {
	fds, err := unix.Pipe2(unix.O_CLOEXEC | unix.O_NONBLOCK)
	if err != nil {
		return nil, err
	}

	ch := make(chan os.Signal, 16)
	signal.Notify(ch, syscall.SIGCHLD, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sp := &signalPipe{readFd: fds[0], writeFd: fds[1], ch: ch}
	go sp.pump()
	return sp, nil
}

func (sp *signalPipe) pump() {
	for sig := range sp.ch {
		sp.mu.Lock()
		sp.received = append(sp.received, sig)
		sp.mu.Unlock()
		unix.Write(sp.writeFd, []byte{0})
	}
}

// drain reads and discards the self-pipe's backlog, called once per
// readiness notification; the actual signal values are fetched
// separately via pending().
func (sp *signalPipe) drain() {
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(sp.readFd, buf)
		if n <= 0 || err != nil {
			return
		}
	}
}

// pending returns and clears every signal queued since the last call.
func (sp *signalPipe) pending() []os.Signal {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sigs := sp.received
	sp.received = nil
	return sigs
}

func (sp *signalPipe) close() {
	signal.Stop(sp.ch)
	unix.Close(sp.readFd)
	unix.Close(sp.writeFd)
}
