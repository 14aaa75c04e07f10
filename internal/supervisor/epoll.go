package supervisor

import (
	"golang.org/x/sys/unix"
)

// poller wraps the event loop's single readiness-polling file
// descriptor: an epoll instance registered with every fd the loop
// cares about.
type poller struct {
	epfd int
}

func newPoller() (*poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &poller{epfd: fd}, nil
}

func (p *poller) add(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	})
}

func (p *poller) remove(fd int) {
	// EpollCtl del can legitimately fail if the fd was already closed
	// (closing an fd auto-removes it from every epoll instance); this is
	// not logged as an error.
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait blocks for up to one second, the loop's only bounded
// suspension point, and returns the ready fds.
func (p *poller) wait() ([]int, error) {
	events := make([]unix.EpollEvent, 32)
	n, err := unix.EpollWait(p.epfd, events, 1000)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	ready := make([]int, n)
	for i := 0; i < n; i++ {
		ready[i] = int(events[i].Fd)
	}
	return ready, nil
}

func (p *poller) close() error {
	return unix.Close(p.epfd)
}
