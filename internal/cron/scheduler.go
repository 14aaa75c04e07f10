package cron

import (
	"fmt"
	"time"

	"github.com/google/btree"
)

// fireKey is the btree key for the timeline: (instant, seq). seq breaks
// ties between two jobs scheduled for the same instant so neither
// collides with nor silently overwrites the other.
type fireKey struct {
	instant time.Time
	seq     uint64
	id      int
}

func (k fireKey) Less(than btree.Item) bool {
	other := than.(fireKey)
	if !k.instant.Equal(other.instant) {
		return k.instant.Before(other.instant)
	}
	return k.seq < other.seq
}

// Scheduler is the ordered timeline of (next-fire-instant -> id) plus
// the per-id parsed expression.
type Scheduler struct {
	exprs    map[int]*Expression
	timeline *btree.BTree
	nextSeq  uint64
}

// NewScheduler parses every (id, expression) pair and seeds the timeline
// with each job's first next-execution from `now`.
func NewScheduler(now time.Time, jobs map[int]string) (*Scheduler, error) {
	s := &Scheduler{
		exprs:    make(map[int]*Expression, len(jobs)),
		timeline: btree.New(32),
	}
	for id, raw := range jobs {
		expr, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("cron job %d: %w", id, err)
		}
		s.exprs[id] = expr
		s.insert(expr.NextExecution(now), id)
	}
	return s, nil
}

func (s *Scheduler) insert(instant time.Time, id int) {
	key := fireKey{instant: instant, seq: s.nextSeq, id: id}
	s.nextSeq++
	s.timeline.ReplaceOrInsert(key)
}

// PopRunnable returns the id whose scheduled instant is <= now, if any,
// removes it from the timeline, computes its next fire from now, and
// re-inserts it. Never returns more than one id per call, and never
// fires a later scheduled instant before an earlier one (the timeline is
// always popped in instant order).
func (s *Scheduler) PopRunnable(now time.Time) (int, bool) {
	var earliest btree.Item
	s.timeline.Ascend(func(item btree.Item) bool {
		earliest = item
		return false
	})
	if earliest == nil {
		return 0, false
	}
	key := earliest.(fireKey)
	if key.instant.After(now) {
		return 0, false
	}
	s.timeline.Delete(key)
	next := s.exprs[key.id].NextExecution(now)
	s.insert(next, key.id)
	return key.id, true
}

// IsCronjob reports whether id is scheduled by this Scheduler.
func (s *Scheduler) IsCronjob(id int) bool {
	_, ok := s.exprs[id]
	return ok
}

// HasJobs reports whether any cronjob was ever registered, used by the
// event loop to decide whether cron due-ticks can keep it alive even
// when every other process has finished.
func (s *Scheduler) HasJobs() bool {
	return len(s.exprs) > 0
}

// NextExecution returns id's currently-scheduled next-fire instant, for
// status reporting.
func (s *Scheduler) NextExecution(id int) (time.Time, bool) {
	var result time.Time
	found := false
	s.timeline.Ascend(func(item btree.Item) bool {
		key := item.(fireKey)
		if key.id == id {
			result = key.instant
			found = true
			return false
		}
		return true
	})
	return result, found
}
