package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/models"
)

// Pipeline is one preprocessing flow runnable by the queue.
type Pipeline interface {
	Name() string
	Run(ctx context.Context) (*RunReport, error)
}

// RunOptions override a pipeline's configured input for a single run.
type RunOptions struct {
	SourceFile string `json:"source_file,omitempty"` // document or data file; empty keeps the configured one
	Force      bool   `json:"force,omitempty"`
}

// optionable pipelines can be re-targeted per run.
type optionable interface {
	WithOptions(RunOptions) Pipeline
}

// Run statuses reported through models.RunStatus.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusPartial = "partial" // rows committed, service not declared
	StatusFailed  = "failed"
)

var (
	ErrUnknownPipeline = errors.New("unknown pipeline")
	ErrQueueFull       = errors.New("run queue is full")
)

// RunQueue serialises pipeline runs on a single worker so two runs never touch the
// warehouse at the same time.
type RunQueue struct {
	pipelines map[string]Pipeline
	jobs      chan string
	log       *zap.Logger

	mu       sync.RWMutex
	status   map[string]*models.RunStatus
	reports  map[string]*RunReport
	pending  map[string]queuedRun
	onFinish []func(*RunReport)
}

type queuedRun struct {
	pipeline string
	opts     RunOptions
}

// NewRunQueue constructs the queue with a bounded backlog (64).
func NewRunQueue(log *zap.Logger, pipelines ...Pipeline) *RunQueue {
	if log == nil {
		log = zap.NewNop()
	}
	q := &RunQueue{
		pipelines: make(map[string]Pipeline, len(pipelines)),
		jobs:      make(chan string, 64),
		log:       log,
		status:    make(map[string]*models.RunStatus),
		reports:   make(map[string]*RunReport),
		pending:   make(map[string]queuedRun),
	}
	for _, p := range pipelines {
		q.pipelines[p.Name()] = p
	}
	return q
}

// OnFinish registers a callback for every report a finished run produces. Register
// callbacks before Start.
func (q *RunQueue) OnFinish(fn func(*RunReport)) {
	q.onFinish = append(q.onFinish, fn)
}

// Start runs the single worker until ctx is cancelled.
func (q *RunQueue) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				q.log.Info("run queue: worker shutting down")
				return
			case id := <-q.jobs:
				q.process(ctx, id)
			}
		}
	}()
}

// Enqueue schedules a run of the named pipeline and returns its queued status.
func (q *RunQueue) Enqueue(pipeline string, opts RunOptions) (*models.RunStatus, error) {
	if _, ok := q.pipelines[pipeline]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPipeline, pipeline)
	}

	now := time.Now().UTC()
	st := &models.RunStatus{ID: uuid.NewString(), Pipeline: pipeline, Status: StatusQueued, CreatedAt: now, UpdatedAt: now}

	q.mu.Lock()
	q.status[st.ID] = st
	q.pending[st.ID] = queuedRun{pipeline: pipeline, opts: opts}
	q.mu.Unlock()

	select {
	case q.jobs <- st.ID:
	default:
		q.mu.Lock()
		delete(q.status, st.ID)
		delete(q.pending, st.ID)
		q.mu.Unlock()
		return nil, ErrQueueFull
	}

	q.log.Info("run queued", zap.String("id", st.ID), zap.String("pipeline", pipeline))
	out := *st
	return &out, nil
}

// Status returns a snapshot of the run and, once finished, its report.
func (q *RunQueue) Status(id string) (*models.RunStatus, *RunReport, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	st, ok := q.status[id]
	if !ok {
		return nil, nil, false
	}
	out := *st
	return &out, q.reports[id], true
}

func (q *RunQueue) process(ctx context.Context, id string) {
	q.mu.Lock()
	job := q.pending[id]
	delete(q.pending, id)
	q.mu.Unlock()

	name := job.pipeline
	p := q.pipelines[name]
	if o, ok := p.(optionable); ok {
		p = o.WithOptions(job.opts)
	}

	q.setStatus(id, StatusRunning, "")
	report, err := p.Run(ctx)

	q.mu.Lock()
	q.reports[id] = report
	q.mu.Unlock()

	if report != nil {
		for _, fn := range q.onFinish {
			fn(report)
		}
	}

	switch {
	case err == nil:
		q.setStatus(id, StatusDone, "")
	case report != nil && report.DataDurable:
		q.setStatus(id, StatusPartial, err.Error())
	default:
		q.setStatus(id, StatusFailed, err.Error())
	}
	if err != nil {
		q.log.Error("run queue: run failed", zap.String("id", id), zap.String("pipeline", name), zap.Error(err))
	}
}

func (q *RunQueue) setStatus(id, status, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if st, ok := q.status[id]; ok {
		st.Status = status
		st.Error = msg
		st.UpdatedAt = time.Now().UTC()
	}
}
