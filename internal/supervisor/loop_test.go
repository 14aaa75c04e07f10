package supervisor

import (
	"os"
	"testing"
	"time"

	"github.com/cinit-project/cinit/internal/analyse"
	"github.com/cinit-project/cinit/internal/cron"
	"github.com/cinit-project/cinit/internal/depgraph"
	"github.com/cinit-project/cinit/internal/exitcode"
	"github.com/cinit-project/cinit/internal/process"
	"github.com/cinit-project/cinit/internal/proctable"
	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"
)

func TestSpawnOneTreatsSpawnFailureAsCrash(t *testing.T) {
	uid := uint32(os.Getuid())
	gid := uint32(os.Getgid())

	rec := process.NewRecord(0, "broken", "/nonexistent/path/to/binary", []string{"/nonexistent/path/to/binary"}, "/",
		uid, gid, false, nil, nil, process.Oneshot)

	graph, err := depgraph.Build([]depgraph.ProcessRef{{ID: 0, Name: "broken"}})
	assert.NilError(t, err)
	_, ok := graph.PopRunnable()
	assert.Assert(t, ok)

	sched, err := cron.NewScheduler(time.Now(), map[int]string{})
	assert.NilError(t, err)

	s := &Supervisor{
		log:         logrus.StandardLogger(),
		table:       proctable.New([]*process.Record{rec}),
		result:      &analyse.Result{Records: []*process.Record{rec}, Graph: graph, Cron: sched},
		keepRunning: true,
	}

	s.spawnOne(0)

	assert.Equal(t, rec.State, process.Crashed)
	assert.Equal(t, rec.ExitCode, exitcode.ChildSetupError)
	assert.Assert(t, s.crashed)
	assert.Assert(t, !s.keepRunning)
	assert.Assert(t, !s.table.HasRunningProcesses())
	assert.Assert(t, !graph.HasRunnables())
}
