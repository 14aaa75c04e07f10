package supervisor

import (
	"fmt"
	"strings"
	"time"
)

// buildStatusReport renders the text document the status socket writes
// on each connection: one block per program naming, state, and
// whichever optional fields apply to it.
func (s *Supervisor) buildStatusReport() []byte {
	var b strings.Builder

	for id, record := range s.result.Records {
		fmt.Fprintf(&b, "name=%s\n", record.Name)
		fmt.Fprintf(&b, "state=%s\n", record.State)

		if record.Status != "" {
			fmt.Fprintf(&b, "status=%s\n", record.Status)
		}
		if record.State.String() == "done" || record.State.String() == "crashed" {
			fmt.Fprintf(&b, "exit_code=%d\n", record.ExitCode)
		}
		if record.PID != 0 {
			fmt.Fprintf(&b, "pid=%d\n", record.PID)
		}
		if s.result.Cron.IsCronjob(id) {
			if next, ok := s.result.Cron.NextExecution(id); ok {
				fmt.Fprintf(&b, "scheduled_at=%s\n", next.Format(time.RFC3339))
			}
		}
		b.WriteString("\n")
	}

	return []byte(b.String())
}
