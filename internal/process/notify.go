package process

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// NotifyEvent is the outcome of handling one notify datagram key/value
// pair, used by the supervisor to decide whether to release dependents
// or re-index a pid.
type NotifyEvent struct {
	BecameReady  bool
	MainPIDMoved bool
	NewMainPID   int
}

// HandleNotifyLine applies one "KEY=VALUE" line from a notify datagram
// to the record.
func (r *Record) HandleNotifyLine(line string, log logrus.FieldLogger) NotifyEvent {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		log.Warnf("process %s: malformed notify line %q, ignoring", r.Name, line)
		return NotifyEvent{}
	}

	switch key {
	case "READY":
		if value != "1" {
			log.Warnf("process %s: ignoring READY with unexpected value %q", r.Name, value)
			return NotifyEvent{}
		}
		if r.State != Starting {
			// Idempotent: a second READY=1, or one after the record left
			// Starting, is ignored.
			return NotifyEvent{}
		}
		r.State = Running
		return NotifyEvent{BecameReady: true}

	case "STOPPING":
		if value != "1" {
			log.Warnf("process %s: ignoring STOPPING with unexpected value %q", r.Name, value)
			return NotifyEvent{}
		}
		// STOPPING does not release dependents, only READY does.
		r.State = Stopping
		return NotifyEvent{}

	case "STATUS":
		r.Status = value
		return NotifyEvent{}

	case "MAINPID":
		pid, err := strconv.Atoi(value)
		if err != nil {
			log.Warnf("process %s: ignoring malformed MAINPID %q", r.Name, value)
			return NotifyEvent{}
		}
		if pid == r.PID {
			return NotifyEvent{}
		}
		r.PID = pid
		return NotifyEvent{MainPIDMoved: true, NewMainPID: pid}

	default:
		log.Debugf("process %s: ignoring unknown notify key %q", r.Name, key)
		return NotifyEvent{}
	}
}
