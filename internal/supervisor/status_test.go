package supervisor

import (
	"strings"
	"testing"
	"time"

	"github.com/cinit-project/cinit/internal/analyse"
	"github.com/cinit-project/cinit/internal/cron"
	"github.com/cinit-project/cinit/internal/depgraph"
	"github.com/cinit-project/cinit/internal/process"
	"gotest.tools/v3/assert"
)

func TestBuildStatusReportIncludesPidAndState(t *testing.T) {
	rec := process.NewRecord(0, "worker", "/bin/true", []string{"/bin/true"}, "/", 0, 0, false, nil, nil, process.Oneshot)
	rec.MarkSpawned(4242)

	graph, err := depgraph.Build([]depgraph.ProcessRef{{ID: 0, Name: "worker"}})
	assert.NilError(t, err)

	sched, err := cron.NewScheduler(time.Now(), map[int]string{})
	assert.NilError(t, err)

	s := &Supervisor{
		result: &analyse.Result{Records: []*process.Record{rec}, Graph: graph, Cron: sched},
	}

	report := string(s.buildStatusReport())
	assert.Assert(t, strings.Contains(report, "name=worker"))
	assert.Assert(t, strings.Contains(report, "state=running"))
	assert.Assert(t, strings.Contains(report, "pid=4242"))
}

func TestBuildStatusReportIncludesScheduledAtForCronjobs(t *testing.T) {
	rec := process.NewRecord(0, "ticker", "/bin/true", []string{"/bin/true"}, "/", 0, 0, false, nil, nil, process.Cronjob)

	graph, err := depgraph.Build([]depgraph.ProcessRef{{ID: 0, Name: "ticker", Cronjob: true}})
	assert.NilError(t, err)

	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	sched, err := cron.NewScheduler(now, map[int]string{0: "* * * * *"})
	assert.NilError(t, err)

	s := &Supervisor{
		result: &analyse.Result{Records: []*process.Record{rec}, Graph: graph, Cron: sched},
	}

	report := string(s.buildStatusReport())
	assert.Assert(t, strings.Contains(report, "name=ticker"))
	assert.Assert(t, strings.Contains(report, "scheduled_at="))
}
