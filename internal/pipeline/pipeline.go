// ABOUTME: Shared payload processing for the server and client pipeline roles
// ABOUTME: Splits batches, fans children out in order and journals traffic

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"

	"github.com/harper/rpc-engine/internal/errors"
	"github.com/harper/rpc-engine/internal/jsonrpc"
	"github.com/harper/rpc-engine/internal/logger"
)

// DefaultIdleTimeout is how long a worker waits for new work before stopping.
const DefaultIdleTimeout = 5 * time.Second

// Direction tells a journal which way a payload travelled.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Journal persists the payloads a pipeline receives and emits.
type Journal interface {
	Record(pipelineID string, direction Direction, payload string) error
}

type options struct {
	idleTimeout time.Duration
	journal     Journal
	name        string
	ctx         context.Context
}

type Option func(*options)

// WithIdleTimeout sets the quiescence window after which the worker stops.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.idleTimeout = d
		}
	}
}

// WithJournal records inbound payloads and non-empty outbound texts.
func WithJournal(j Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithName names the pipeline in log lines.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithContext sets the context handlers are invoked with.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// pipeline holds what both roles share. single processes one non-batch
// payload; serialize controls whether results carry wire text.
type pipeline struct {
	id        string
	opts      options
	log       *logger.Logger
	worker    *worker
	single    func(ctx context.Context, payload string) Result
	serialize bool
}

func newPipeline(role string, opts []Option) *pipeline {
	o := options{idleTimeout: DefaultIdleTimeout, ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	id := uuid.NewString()
	if o.name == "" {
		o.name = fmt.Sprintf("%s-%s", role, id[:8])
	}

	p := &pipeline{
		id:   id,
		opts: o,
		log:  logger.Named(o.name),
	}
	p.worker = newWorker(o.idleTimeout, p.log)
	p.worker.process = p.handle
	p.worker.onPanic = func(payload string, panicked any) Result {
		err := errors.NewInternalError(fmt.Sprintf("Processing panicked: %v", panicked))
		return p.failure(err, jsonrpc.RecoverID(payload))
	}
	return p
}

// ID uniquely identifies the pipeline, for instance in a journal.
func (p *pipeline) ID() string { return p.id }

// Name is the label used in log lines.
func (p *pipeline) Name() string { return p.opts.name }

// State reports whether the worker is currently running.
func (p *pipeline) State() State { return p.worker.State() }

// Submit enqueues payload and returns immediately.
func (p *pipeline) Submit(payload string) *Future {
	return p.worker.submit(payload)
}

func (p *pipeline) handle(payload string) Result {
	p.record(Inbound, payload)
	res := p.process(p.opts.ctx, payload)
	if res.text != "" {
		p.record(Outbound, res.text)
	}
	return res
}

func (p *pipeline) record(dir Direction, payload string) {
	if p.opts.journal == nil {
		return
	}
	if err := p.opts.journal.Record(p.id, dir, payload); err != nil {
		p.log.Warn("journal %s payload: %v", dir, err)
	}
}

// process handles a payload that may be a batch. Payloads that do not parse
// as a batch go through the single path, which reports the precise error.
func (p *pipeline) process(ctx context.Context, payload string) Result {
	parts, err := jsonrpc.SplitBatch(payload)
	if err != nil || len(parts) == 0 {
		return p.single(ctx, payload)
	}

	// children run outside the queue, so the worker never waits on itself
	children := iter.Map(parts, func(part *string) Result {
		return p.single(ctx, *part)
	})

	res := Result{batch: true, responses: make([]jsonrpc.Response, len(children))}
	for i, child := range children {
		res.responses[i] = child.response
		res.hasError = res.hasError || child.hasError
	}
	if p.serialize {
		text, err := jsonrpc.EncodeBatchResponse(res.responses)
		if err != nil {
			p.log.Error("serialize batch response: %v", err)
			return p.failure(err, jsonrpc.NullID())
		}
		res.text = text
	}
	p.log.Debug("processed batch of %d, error=%t", len(parts), res.hasError)
	return res
}

// failure turns err into an errored single Result answering id.
func (p *pipeline) failure(err error, id jsonrpc.ID) Result {
	resp := jsonrpc.ErrorFrom(err, id)
	res := Result{hasError: true, response: resp}
	if p.serialize {
		text, encErr := jsonrpc.EncodeResponse(resp)
		if encErr != nil {
			p.log.Error("serialize error response: %v", encErr)
		}
		res.text = text
	}
	return res
}
