// Package logging sets up the process-wide logrus logger and the
// optional journald forwarder. Grounded on the logrus.FieldLogger usage
// pattern of pkg/supervisor and go-systemd/v22's journal/daemon
// packages for the systemd-native paths.
package logging

import (
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

// Setup configures the root logrus logger's level from the CLI's
// repeated -v flag count (0 => info, 1 => debug, 2+ => trace).
func Setup(verbosity int) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	switch {
	case verbosity >= 2:
		log.SetLevel(logrus.TraceLevel)
	case verbosity == 1:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	if journal.Enabled() {
		log.AddHook(&journalHook{})
	}

	return log
}

// journalHook forwards every log entry to the systemd journal in
// addition to logrus's normal stderr output, when running under a
// systemd unit that supports it.
type journalHook struct{}

func (h *journalHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *journalHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	return journal.Send(line, journalPriority(entry.Level), nil)
}

func journalPriority(level logrus.Level) journal.Priority {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return journal.PriEmerg
	case logrus.ErrorLevel:
		return journal.PriErr
	case logrus.WarnLevel:
		return journal.PriWarning
	case logrus.InfoLevel:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// NotifyOuterSupervisor signals this cinit instance's own readiness to
// an outer systemd-style supervisor, reusing the same protocol this
// supervisor implements one level down for its own Notify children.
func NotifyOuterSupervisor(log logrus.FieldLogger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warnf("failed to notify outer supervisor: %v", err)
		return
	}
	if sent {
		log.Debug("notified outer supervisor of readiness")
	}
}
