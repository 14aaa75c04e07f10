// Package proctable owns the pid/stdout-fd/stderr-fd indices the
// supervisor uses to turn a raw waitpid or epoll event back into a
// process record. Grounded on the reaping indices of
// runsc/sandbox/sandbox.go and an earlier implementation's process-tree
// orphan accounting.
package proctable

import "github.com/cinit-project/cinit/internal/process"

// Table holds the record vector plus the three active-process indices.
// Process id is always the index of Records.
type Table struct {
	Records []*process.Record

	pidToID    map[int]int
	stdoutToID map[int]int
	stderrToID map[int]int

	orphansReaped int
}

// New builds a Table over an already-constructed record vector. Records
// are addressed by their position, matching the id assignment made when
// internal/analyse built the dependency graph and cron scheduler from
// the same config list.
func New(records []*process.Record) *Table {
	return &Table{
		Records:    records,
		pidToID:    make(map[int]int),
		stdoutToID: make(map[int]int),
		stderrToID: make(map[int]int),
	}
}

// RegisterPID indexes a freshly spawned pid under its process id.
func (t *Table) RegisterPID(id, pid int) {
	t.pidToID[pid] = id
}

// DeregisterPID drops a pid from the index. A no-op on an unknown pid.
func (t *Table) DeregisterPID(pid int) {
	delete(t.pidToID, pid)
}

// RepointPID re-indexes a process id under a new pid, for the MAINPID=
// notify line: drops the old pid entry and inserts the
// new one, leaving the stdout/stderr fd entries untouched since those
// still belong to the same spawned child's pipes.
func (t *Table) RepointPID(oldPID, newPID int) {
	id, ok := t.pidToID[oldPID]
	if !ok {
		return
	}
	delete(t.pidToID, oldPID)
	t.pidToID[newPID] = id
}

// RegisterStdout indexes a parent-side stdout fd under its process id.
func (t *Table) RegisterStdout(id, fd int) {
	t.stdoutToID[fd] = id
}

// RegisterStderr indexes a parent-side stderr fd under its process id.
func (t *Table) RegisterStderr(id, fd int) {
	t.stderrToID[fd] = id
}

// DeregisterFd removes fd from whichever of the two fd maps contains
// it. A no-op on an unknown fd.
func (t *Table) DeregisterFd(fd int) {
	delete(t.stdoutToID, fd)
	delete(t.stderrToID, fd)
}

// IsStdout reports whether fd is currently registered as a stdout fd,
// the discriminator the event loop needs alongside ProcessForFd.
func (t *Table) IsStdout(fd int) bool {
	_, ok := t.stdoutToID[fd]
	return ok
}

// ProcessForFd resolves an epoll-ready fd back to its record, checking
// both the stdout and stderr indices.
func (t *Table) ProcessForFd(fd int) (*process.Record, bool) {
	if id, ok := t.stdoutToID[fd]; ok {
		return t.Records[id], true
	}
	if id, ok := t.stderrToID[fd]; ok {
		return t.Records[id], true
	}
	return nil, false
}

// ProcessForPID resolves a reaped pid back to its record.
func (t *Table) ProcessForPID(pid int) (*process.Record, bool) {
	id, ok := t.pidToID[pid]
	if !ok {
		return nil, false
	}
	return t.Records[id], true
}

// ProcessIDForPID resolves a reaped pid back to its process id.
func (t *Table) ProcessIDForPID(pid int) (int, bool) {
	id, ok := t.pidToID[pid]
	return id, ok
}

// HasRunningProcesses is true iff any of the three index maps is
// non-empty — used by the event loop to decide whether it still has
// anything left to wait on.
func (t *Table) HasRunningProcesses() bool {
	return len(t.pidToID) > 0 || len(t.stdoutToID) > 0 || len(t.stderrToID) > 0
}

// NoteOrphanReaped records one waitpid() result for a pid this table
// never registered: an adopted orphan from a grandchild exec, reaped
// silently but still worth surfacing on the status socket.
func (t *Table) NoteOrphanReaped() {
	t.orphansReaped++
}

// OrphanCount reports how many unknown pids have been reaped over this
// supervisor's lifetime.
func (t *Table) OrphanCount() int {
	return t.orphansReaped
}
