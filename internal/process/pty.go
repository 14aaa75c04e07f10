package process

import (
	"os"

	"github.com/containerd/console"
	"github.com/kr/pty"
	"golang.org/x/term"
)

// defaultRows/defaultCols is the fallback window size when the
// supervisor has no controlling terminal of its own to inherit.
const (
	defaultRows = 24
	defaultCols = 80
)

// newStdioPair builds one parent/child stdio channel: a PTY pair when
// emulatePTY is set (one pair per stdout/stderr), otherwise a plain pipe. uid/gid own the PTY slave so
// the child can open and use its own controlling terminal.
func newStdioPair(emulatePTY bool, uid, gid uint32) (parent StdioEnd, child *os.File, err error) {
	if !emulatePTY {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, nil, err
		}
		return r, w, nil
	}
	return newPTYPair(uid, gid)
}

func newPTYPair(uid, gid uint32) (StdioEnd, *os.File, error) {
	master, slavePath, err := console.NewPty()
	if err != nil {
		return nil, nil, err
	}

	if err := os.Chown(slavePath, int(uid), int(gid)); err != nil {
		master.Close()
		return nil, nil, err
	}
	if err := os.Chmod(slavePath, 0o620); err != nil {
		master.Close()
		return nil, nil, err
	}

	slave, err := os.OpenFile(slavePath, os.O_RDWR, 0)
	if err != nil {
		master.Close()
		return nil, nil, err
	}

	resizeToController(master)

	return master, slave, nil
}

// resizeToController copies the supervisor's own controlling-terminal
// size onto the new PTY, falling back to 24x80 when the supervisor has
// no terminal of its own (e.g. running as container pid 1). golang.org/x/term
// answers "is stdin a terminal at all"; when it is, github.com/kr/pty's
// Getsize does the TIOCGWINSZ ioctl to read its size, and a failed query
// also leaves the 24x80 default in place.
func resizeToController(master console.Console) {
	rows, cols := defaultRows, defaultCols

	if term.IsTerminal(int(os.Stdin.Fd())) {
		if ws, err := pty.Getsize(os.Stdin); err == nil {
			rows, cols = int(ws.Rows), int(ws.Cols)
		}
	}

	_ = master.Resize(console.WinSize{
		Width:  uint16(cols),
		Height: uint16(rows),
	})
}
