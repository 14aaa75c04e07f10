package supervisor

import (
	"syscall"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestSignalPipeWakesEpollOnSignal(t *testing.T) {
	sp, err := newSignalPipe()
	assert.NilError(t, err)
	defer sp.close()

	p, err := newPoller()
	assert.NilError(t, err)
	defer p.close()
	assert.NilError(t, p.add(sp.readFd))

	assert.NilError(t, syscall.Kill(syscall.Getpid(), syscall.SIGCHLD))

	deadline := time.Now().Add(2 * time.Second)
	var sigs []string
	for time.Now().Before(deadline) {
		ready, err := p.wait()
		assert.NilError(t, err)
		if len(ready) == 0 {
			continue
		}
		sp.drain()
		for _, s := range sp.pending() {
			sigs = append(sigs, s.String())
		}
		if len(sigs) > 0 {
			break
		}
	}
	assert.Assert(t, len(sigs) > 0, "expected to observe a signal through the self-pipe")
}
