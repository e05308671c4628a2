package execution

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/nornicexec/pkg/queryinfo"
	"github.com/orneryd/nornicexec/pkg/resultset"
	"github.com/orneryd/nornicexec/pkg/storage"
)

// Errors surfaced by Plan.Execute.
var (
	// ErrQueryAborted wraps the cause when the driver stopped pulling rows,
	// for example because the caller's context was cancelled.
	ErrQueryAborted = errors.New("query aborted")

	// ErrResultSetLimit is the cause when Results hits the row limit.
	ErrResultSetLimit = resultset.ErrRowLimit
)

// Options tune a single query execution.
type Options struct {
	// ResultSetLimit caps the rows Results accepts. 0 means unlimited.
	ResultSetLimit int
	// QueryLog logs start and finish of every execution.
	QueryLog bool
	// SlowQueryThreshold logs executions slower than this. 0 disables it.
	SlowQueryThreshold time.Duration
	// Tracker, when set, receives the query info once the query finishes.
	Tracker *queryinfo.Tracker
}

// QueryContext carries everything one execution of a plan needs: the graph,
// the statistics and result set it fills, and the abort signal operators
// raise instead of returning errors from Consume.
//
// Every cloned plan gets its own QueryContext.
type QueryContext struct {
	ID        uuid.UUID
	Query     string
	Graph     storage.Engine
	Stats     *resultset.Statistics
	ResultSet *resultset.ResultSet
	Info      *queryinfo.Info
	Options   Options

	mu  sync.Mutex
	err error
}

// NewQueryContext creates a context for one execution of query against graph.
func NewQueryContext(graph storage.Engine, query string, opts Options) *QueryContext {
	id := uuid.New()
	return &QueryContext{
		ID:      id,
		Query:   query,
		Graph:   graph,
		Stats:   &resultset.Statistics{},
		Info:    queryinfo.NewInfo(id, query),
		Options: opts,
	}
}

// Abort records err as the reason the execution must stop. The first error
// wins; later calls are ignored.
func (q *QueryContext) Abort(err error) {
	if err == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err == nil {
		q.err = err
	}
}

// Err returns the abort cause, if any.
func (q *QueryContext) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// clearAbort forgets the abort cause so the context can drive another run.
func (q *QueryContext) clearAbort() {
	q.mu.Lock()
	q.err = nil
	q.mu.Unlock()
}

// Aborted reports whether Abort has been called.
func (q *QueryContext) Aborted() bool {
	return q.Err() != nil
}

// Finish closes the query info and hands it to the tracker, if any.
func (q *QueryContext) Finish() {
	q.Info.Finish()
	if q.Options.Tracker != nil {
		q.Options.Tracker.Record(q.Info)
	}
}

// logExecution emits the per-query log lines once the pull loop ends.
func (q *QueryContext) logExecution(rows int, elapsed time.Duration) {
	if err := q.Err(); err != nil {
		log.Printf("[exec] query %s aborted after %d rows: %v", q.ID, rows, err)
	} else if q.Options.QueryLog {
		log.Printf("[exec] query %s finished rows=%d elapsed=%s", q.ID, rows, elapsed)
	}
	if t := q.Options.SlowQueryThreshold; t > 0 && elapsed > t {
		log.Printf("[exec] slow query %s took %s (threshold %s): %s", q.ID, elapsed, t, q.Query)
	}
}
