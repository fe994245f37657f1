// Package host runs schedule computations off the caller's goroutine.
//
// A Host holds at most one computation in flight and at most one pending
// request. Submitting while the pending slot is full replaces the pending
// request, so after a burst of edits the latest project is always computed
// and intermediate ones are skipped.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/ui"
)

// Response message types.
const (
	TypeCompute    = "compute"
	TypeResult     = "result"
	TypeError      = "error"
	TypeSuperseded = "superseded"
	TypePing       = "ping"
	TypePong       = "pong"
)

var (
	ErrClosed     = errors.New("host closed")
	ErrNilProject = errors.New("nil project")
)

// ComputeFunc produces a schedule from a project snapshot.
type ComputeFunc func(p *project.Project) *cpm.Result

// Request is one computation: a private snapshot of a project.
type Request struct {
	ID      string
	Project *project.Project
}

// Response is the reply to a computed request.
type Response struct {
	Type  string      `json:"type"`
	ID    string      `json:"id,omitempty"`
	CPM   *cpm.Result `json:"cpm,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Stats counts what the host has done.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Computed  uint64 `json:"computed"`
	Coalesced uint64 `json:"coalesced"`
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger for lifecycle messages.
func WithLogger(l *ui.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithResultBuffer sets how many responses may wait unread before the
// worker blocks. The default is 1.
func WithResultBuffer(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.resultBuf = n
		}
	}
}

// WithOnSuperseded registers a callback invoked with the id of every
// pending request replaced by a newer one before it was computed.
func WithOnSuperseded(fn func(id string)) Option {
	return func(h *Host) { h.onSuperseded = fn }
}

// Host owns the in-flight and pending slots.
type Host struct {
	compute      ComputeFunc
	log          *ui.Logger
	resultBuf    int
	onSuperseded func(id string)

	pending chan Request
	results chan Response
	closed  chan struct{}

	mu       sync.Mutex // serializes Submit and Close
	isClosed bool
	busy     atomic.Bool

	submitted atomic.Uint64
	computed  atomic.Uint64
	coalesced atomic.Uint64
}

// New creates a Host. A nil compute function defaults to cpm.Compute.
func New(compute ComputeFunc, opts ...Option) *Host {
	if compute == nil {
		compute = cpm.Compute
	}
	h := &Host{compute: compute, resultBuf: 1}
	for _, opt := range opts {
		opt(h)
	}
	h.pending = make(chan Request, 1)
	h.results = make(chan Response, h.resultBuf)
	h.closed = make(chan struct{})
	return h
}

// Submit queues a deep copy of p for computation and returns the request
// id. An empty id is replaced by a generated one. Submit never blocks on
// the computation: when a request is already pending it is replaced.
func (h *Host) Submit(id string, p *project.Project) (string, error) {
	if p == nil {
		return "", ErrNilProject
	}
	if id == "" {
		id = uuid.NewString()
	}
	req := Request{ID: id, Project: p.Clone()}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.isClosed {
		return "", ErrClosed
	}

	h.submitted.Add(1)
	for {
		select {
		case h.pending <- req:
			h.log.Debugf("queued request %s", id)
			return id, nil
		default:
		}
		select {
		case old := <-h.pending:
			h.coalesced.Add(1)
			h.log.Debugf("request %s superseded by %s", old.ID, id)
			if h.onSuperseded != nil {
				h.onSuperseded(old.ID)
			}
		default:
			// The worker took the pending request; retry the send.
		}
	}
}

// Results delivers exactly one response per computed request. The channel
// is closed when Run returns.
func (h *Host) Results() <-chan Response {
	return h.results
}

// Busy reports whether a computation is running or waiting to deliver.
func (h *Host) Busy() bool {
	return h.busy.Load()
}

// Pending reports whether a request is waiting for the worker.
func (h *Host) Pending() bool {
	return len(h.pending) > 0
}

// Stats returns a snapshot of the counters.
func (h *Host) Stats() Stats {
	return Stats{
		Submitted: h.submitted.Load(),
		Computed:  h.computed.Load(),
		Coalesced: h.coalesced.Load(),
	}
}

// Close stops accepting requests. Run computes whatever is still pending
// and then returns. Close is idempotent.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.isClosed {
		return
	}
	h.isClosed = true
	close(h.closed)
}

// Run is the worker loop. It returns nil after Close once the pending
// request has been computed, or the context error on cancellation. A
// request that has started always completes; cancellation only stops the
// loop from taking new work or blocking on delivery.
func (h *Host) Run(ctx context.Context) error {
	defer close(h.results)
	h.log.Debugf("host worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-h.pending:
			if err := h.process(ctx, req); err != nil {
				return err
			}
		case <-h.closed:
			select {
			case req := <-h.pending:
				if err := h.process(ctx, req); err != nil {
					return err
				}
			default:
			}
			h.log.Debugf("host worker stopped")
			return nil
		}
	}
}

func (h *Host) process(ctx context.Context, req Request) error {
	h.busy.Store(true)
	defer h.busy.Store(false)

	resp := h.run(req)
	h.computed.Add(1)

	select {
	case h.results <- resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) run(req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorf("compute %s panicked: %v", req.ID, r)
			resp = Response{Type: TypeError, ID: req.ID, Error: fmt.Sprintf("compute failed: %v", r)}
		}
	}()

	result := h.compute(req.Project)
	h.log.Debugf("computed %s: %d tasks, finish day %d", req.ID, len(result.Tasks), result.FinishDays)
	return Response{Type: TypeResult, ID: req.ID, CPM: result}
}
