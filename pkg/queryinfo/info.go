package queryinfo

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage is the lifecycle position of a query.
type Stage int

const (
	StageWaiting Stage = iota
	StageExecuting
	StageReporting
	StageFinished
)

func (s Stage) String() string {
	switch s {
	case StageWaiting:
		return "waiting"
	case StageExecuting:
		return "executing"
	case StageReporting:
		return "reporting"
	default:
		return "finished"
	}
}

// Info records how long a query spent in each stage.
type Info struct {
	ID         uuid.UUID
	Query      string
	ReceivedAt time.Time

	WaitDuration      time.Duration
	ExecutionDuration time.Duration
	ReportingDuration time.Duration

	stage      Stage
	stageStart time.Time
	now        func() time.Time
}

// NewInfo starts tracking a query in the waiting stage.
func NewInfo(id uuid.UUID, query string) *Info {
	return newInfoWithClock(id, query, time.Now)
}

func newInfoWithClock(id uuid.UUID, query string, now func() time.Time) *Info {
	t := now()
	return &Info{ID: id, Query: query, ReceivedAt: t, stageStart: t, now: now}
}

// Stage returns the current stage.
func (i *Info) Stage() Stage { return i.stage }

// StartExecution closes the waiting stage.
func (i *Info) StartExecution() { i.advance(StageExecuting) }

// StartReporting closes the execution stage.
func (i *Info) StartReporting() { i.advance(StageReporting) }

// Finish closes the current stage.
func (i *Info) Finish() { i.advance(StageFinished) }

// advance moves forward to next, charging elapsed time to the stage being
// left. Stages never move backwards.
func (i *Info) advance(next Stage) {
	if next <= i.stage {
		return
	}
	t := i.now()
	elapsed := t.Sub(i.stageStart)
	switch i.stage {
	case StageWaiting:
		i.WaitDuration += elapsed
	case StageExecuting:
		i.ExecutionDuration += elapsed
	case StageReporting:
		i.ReportingDuration += elapsed
	}
	i.stage = next
	i.stageStart = t
}

// Total is the time spent in every closed stage.
func (i *Info) Total() time.Duration {
	return i.WaitDuration + i.ExecutionDuration + i.ReportingDuration
}

// Tracker keeps the most recent finished queries, evicting the oldest.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	history *CircularBuffer[Info]
}

// NewTracker keeps up to capacity finished queries.
func NewTracker(capacity int) *Tracker {
	return &Tracker{history: NewCircularBuffer[Info](capacity)}
}

// Record adds a snapshot of info to the history.
func (t *Tracker) Record(info *Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.history.Full() {
		t.history.Remove()
	}
	t.history.Add(*info)
}

// Recent returns the tracked queries, oldest first.
func (t *Tracker) Recent() []Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.Items()
}
