package supervisor

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// listenStatusSocket creates the UNIX stream status socket:
// world-accessible, peer-credential passing enabled, listening.
// Any stale socket file at path is removed first (ENOENT tolerated).
func listenStatusSocket(path string) (int, error) {
	return listenUnixSocket(path, unix.SOCK_STREAM)
}

// openNotifySocket creates the UNIX datagram notify socket:
// world-accessible, peer-credential passing enabled, bound but
// not listening (datagram sockets have no accept step).
func openNotifySocket(path string) (int, error) {
	return listenUnixSocket(path, unix.SOCK_DGRAM)
}

func listenUnixSocket(path string, sockType int) (int, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return -1, fmt.Errorf("removing stale socket %s: %w", path, err)
	}

	fd, err := unix.Socket(unix.AF_UNIX, sockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket(%s): %w", path, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_PASSCRED, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("SO_PASSCRED on %s: %w", path, err)
	}

	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind(%s): %w", path, err)
	}

	if err := os.Chmod(path, 0o777); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("chmod(%s): %w", path, err)
	}

	if sockType == unix.SOCK_STREAM {
		if err := unix.Listen(fd, 16); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("listen(%s): %w", path, err)
		}
	}

	return fd, nil
}

// acceptStatusConn accepts one connection on the status listener,
// called only after the listener is reported readable by epoll.
func acceptStatusConn(listenerFd int) (int, error) {
	fd, _, err := unix.Accept4(listenerFd, unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// recvNotifyDatagram reads one datagram plus the sender's credentials
// off the notify socket via SCM_CREDENTIALS ancillary data.
func recvNotifyDatagram(fd int) (data []byte, pid int32, ok bool, err error) {
	buf := make([]byte, 4096)
	oob := make([]byte, unix.CmsgSpace(unix.SizeofUcred))

	n, oobn, _, _, err := unix.Recvmsg(fd, buf, oob, 0)
	if err != nil {
		return nil, 0, false, err
	}

	messages, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, 0, false, err
	}
	for _, m := range messages {
		if m.Header.Level != unix.SOL_SOCKET || m.Header.Type != unix.SCM_CREDENTIALS {
			continue
		}
		ucred, err := unix.ParseUnixCredentials(&m)
		if err != nil {
			continue
		}
		return buf[:n], ucred.Pid, true, nil
	}
	return buf[:n], 0, false, nil
}
