package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/agentflow/kernel/observability"
)

// RunnerConfig controls scheduling behavior. Zero-value fields are filled
// in by DefaultRunnerConfig; Merge only overwrites fields the source
// explicitly set, following the config-merge idiom used throughout this
// codebase.
type RunnerConfig struct {
	// MaxConcurrency bounds how many executors run simultaneously within
	// one superstep. 0 means auto-detect (NumCPU*2, capped at 64).
	MaxConcurrency int

	// MaxSupersteps bounds the number of scheduling rounds before a run
	// is aborted as non-terminating. 0 means DefaultMaxSupersteps.
	MaxSupersteps int

	// MaxConsecutiveExecutorErrors, once reached by the same executor id
	// failing on that many consecutive messages with no success between
	// them, fails the run even when ContinueOnError is set. 0 means DefaultMaxConsecutiveExecutorErrors.
	MaxConsecutiveExecutorErrors int

	// ContinueOnError lets a superstep's other executors keep running
	// after one HandlerError; failures accumulate into a RunError
	// returned at the end of the run instead of aborting immediately.
	ContinueOnError bool

	// CheckpointEvery, if > 0, saves a Checkpoint after every N
	// supersteps in addition to the automatic checkpoint taken whenever
	// a run pauses for external input.
	CheckpointEvery int

	// StrictMessageTypes, when set, turns an executor receiving a message
	// of a type it has no handler for into a fatal HandlerError. By
	// default such a message is logged as a warning and dropped, since an
	// unhandled type commonly means only some participants of a broadcast
	// (e.g. a fan-out edge) care about a given message shape.
	StrictMessageTypes bool

	Observer   observability.Observer
	Checkpoint CheckpointStorage
}

const (
	DefaultMaxSupersteps                = 1000
	DefaultMaxConsecutiveExecutorErrors = 3
)

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxConcurrency:               defaultConcurrency(),
		MaxSupersteps:                DefaultMaxSupersteps,
		MaxConsecutiveExecutorErrors: DefaultMaxConsecutiveExecutorErrors,
		Observer:                     observability.NoOpObserver{},
		Checkpoint:                   NewMemoryCheckpointStorage(),
	}
}

func defaultConcurrency() int {
	n := runtime.NumCPU() * 2
	if n > 64 {
		n = 64
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Merge overwrites only the non-zero fields of src onto a copy of cfg.
func (cfg RunnerConfig) Merge(src RunnerConfig) RunnerConfig {
	if src.MaxConcurrency != 0 {
		cfg.MaxConcurrency = src.MaxConcurrency
	}
	if src.MaxSupersteps != 0 {
		cfg.MaxSupersteps = src.MaxSupersteps
	}
	if src.MaxConsecutiveExecutorErrors != 0 {
		cfg.MaxConsecutiveExecutorErrors = src.MaxConsecutiveExecutorErrors
	}
	if src.ContinueOnError {
		cfg.ContinueOnError = true
	}
	if src.CheckpointEvery != 0 {
		cfg.CheckpointEvery = src.CheckpointEvery
	}
	if src.StrictMessageTypes {
		cfg.StrictMessageTypes = true
	}
	if src.Observer != nil {
		cfg.Observer = src.Observer
	}
	if src.Checkpoint != nil {
		cfg.Checkpoint = src.Checkpoint
	}
	return cfg
}

// RunnerOption configures a Runner at construction.
type RunnerOption func(*RunnerConfig)

func WithConcurrency(n int) RunnerOption {
	return func(c *RunnerConfig) { c.MaxConcurrency = n }
}

func WithMaxSupersteps(n int) RunnerOption {
	return func(c *RunnerConfig) { c.MaxSupersteps = n }
}

func WithContinueOnError() RunnerOption {
	return func(c *RunnerConfig) { c.ContinueOnError = true }
}

func WithCheckpointEvery(n int) RunnerOption {
	return func(c *RunnerConfig) { c.CheckpointEvery = n }
}

func WithObserver(o observability.Observer) RunnerOption {
	return func(c *RunnerConfig) { c.Observer = o }
}

func WithCheckpointStorage(s CheckpointStorage) RunnerOption {
	return func(c *RunnerConfig) { c.Checkpoint = s }
}

func WithStrictMessageTypes() RunnerOption {
	return func(c *RunnerConfig) { c.StrictMessageTypes = true }
}

// RunResult is returned by Run, Respond, and RunFromCheckpoint.
type RunResult struct {
	RunID           string
	State           RunState
	Outputs         []any
	PendingRequests map[string]ExternalRequest
}

// Runner schedules a Workflow's executors: it advances the graph in
// supersteps, running every executor with a pending message concurrently
// (bounded by MaxConcurrency) while serializing each executor's own
// messages within a superstep.
type Runner struct {
	wf  *Workflow
	cfg RunnerConfig

	bus *eventBus

	runID     string
	superstep int

	mu                 sync.Mutex
	nextQueue          []QueuedMessage
	outputs            []any
	pendingRequests    map[string]ExternalRequest
	consecutiveErrors  map[string]int
	fanInBuffers       map[string]map[string]*Message // edgeID -> sourceID -> message
	fanInNextRound     map[string]map[string]*Message // messages arriving after their slot already filled this round
}

// NewRunner constructs a Runner for wf with the given options layered over
// DefaultRunnerConfig.
func NewRunner(wf *Workflow, opts ...RunnerOption) (*Runner, error) {
	if wf == nil {
		return nil, &ValidationError{Reason: "workflow is nil"}
	}
	cfg := DefaultRunnerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runner{
		wf:                wf,
		cfg:               cfg,
		bus:               newEventBus(cfg.Observer),
		pendingRequests:   make(map[string]ExternalRequest),
		consecutiveErrors: make(map[string]int),
		fanInBuffers:      make(map[string]map[string]*Message),
		fanInNextRound:    make(map[string]map[string]*Message),
	}, nil
}

// Events returns a channel streaming every event published during the run.
// Subscribe before calling Run to avoid missing early events.
func (r *Runner) Events() <-chan observability.Event {
	return r.bus.Subscribe()
}

// Run starts a fresh run seeded by input delivered to the workflow's start
// executor.
func (r *Runner) Run(ctx context.Context, input any) (*RunResult, error) {
	r.runID = newID()
	r.nextQueue = []QueuedMessage{{Message: *NewMessage("", input).WithTrace(r.runID)}}
	return r.loop(ctx)
}

// RunFromCheckpoint resumes a run previously paused (for external input) or
// interrupted, validating that wf's structural hash still matches the one
// recorded in the checkpoint before any executor runs.
func (r *Runner) RunFromCheckpoint(ctx context.Context, cp Checkpoint) (*RunResult, error) {
	if cp.GraphHash != r.wf.GraphHash() {
		return nil, &GraphMismatchError{Expected: cp.GraphHash, Actual: r.wf.GraphHash()}
	}
	r.runID = cp.RunID
	r.superstep = cp.Superstep
	r.nextQueue = append([]QueuedMessage(nil), cp.PendingQueue...)
	r.outputs = append([]any(nil), cp.OutputsSoFar...)
	r.pendingRequests = make(map[string]ExternalRequest, len(cp.PendingInputs))
	for k, v := range cp.PendingInputs {
		r.pendingRequests[k] = v
	}
	return r.loop(ctx)
}

// Respond answers a paused run's external-input request with data, and
// resumes scheduling in the same call.
func (r *Runner) Respond(ctx context.Context, requestID string, data any) (*RunResult, error) {
	r.mu.Lock()
	req, ok := r.pendingRequests[requestID]
	if ok {
		delete(r.pendingRequests, requestID)
	}
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no pending external-input request with id %s", requestID)
	}

	resp := ExternalResponse{RequestID: requestID, Data: data, OriginalRequest: req.Prompt, Handled: true}
	r.nextQueue = append(r.nextQueue, QueuedMessage{
		Message: *NewMessage(req.SourceID, resp).WithTrace(r.runID),
	})
	r.publishStatus(ctx, RunInProgress)
	return r.loop(ctx)
}

func (r *Runner) loop(ctx context.Context) (*RunResult, error) {
	defer r.bus.Close()
	r.publishStatus(ctx, RunInProgress)

	maxSteps := r.cfg.MaxSupersteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSupersteps
	}

	var runErr RunError

	for len(r.nextQueue) > 0 {
		r.superstep++
		if r.superstep > maxSteps {
			err := &TimeoutError{Scope: "workflow run", Timeout: fmt.Sprintf("%d supersteps", maxSteps)}
			r.publishStatus(ctx, RunFailed)
			return nil, err
		}

		current := r.nextQueue
		r.nextQueue = nil

		r.bus.Publish(ctx, observability.Event{
			Type: EventSuperstepBegan, Level: observability.LevelVerbose, Timestamp: time.Now(),
			Source: r.wf.name, Data: map[string]any{"superstep": r.superstep, "messages": len(current)},
		})

		stepErrs := r.runSuperstep(ctx, current)
		runErr.Errors = append(runErr.Errors, stepErrs...)

		r.bus.Publish(ctx, observability.Event{
			Type: EventSuperstepEnded, Level: observability.LevelVerbose, Timestamp: time.Now(),
			Source: r.wf.name, Data: map[string]any{"superstep": r.superstep, "errors": len(stepErrs)},
		})

		if len(stepErrs) > 0 && !r.cfg.ContinueOnError {
			r.publishStatus(ctx, RunFailed)
			return nil, &runErr
		}
		if r.circuitBroken() {
			r.publishStatus(ctx, RunFailed)
			return nil, &runErr
		}

		if ctx.Err() != nil {
			r.publishStatus(ctx, RunFailed)
			return nil, ctx.Err()
		}

		if len(r.pendingRequests) > 0 {
			return r.pausedResult(ctx)
		}

		if r.cfg.CheckpointEvery > 0 && r.superstep%r.cfg.CheckpointEvery == 0 {
			r.saveCheckpoint(ctx)
		}
	}

	state := RunCompleted
	if len(runErr.Errors) > 0 {
		state = RunFailed
	}
	r.publishStatus(ctx, state)

	result := &RunResult{RunID: r.runID, State: state, Outputs: append([]any(nil), r.outputs...)}
	if len(runErr.Errors) > 0 {
		return result, &runErr
	}
	return result, nil
}

func (r *Runner) pausedResult(ctx context.Context) (*RunResult, error) {
	r.saveCheckpoint(ctx)
	r.publishStatus(ctx, RunInProgressPaused)
	r.mu.Lock()
	pending := make(map[string]ExternalRequest, len(r.pendingRequests))
	for k, v := range r.pendingRequests {
		pending[k] = v
	}
	r.mu.Unlock()
	return &RunResult{
		RunID:           r.runID,
		State:           RunInProgressPaused,
		Outputs:         append([]any(nil), r.outputs...),
		PendingRequests: pending,
	}, nil
}

func (r *Runner) saveCheckpoint(ctx context.Context) {
	if r.cfg.Checkpoint == nil {
		return
	}
	r.mu.Lock()
	cp := Checkpoint{
		RunID:         r.runID,
		WorkflowName:  r.wf.name,
		GraphHash:     r.wf.hash,
		Superstep:     r.superstep,
		PendingQueue:  append([]QueuedMessage(nil), r.nextQueue...),
		OutputsSoFar:  append([]any(nil), r.outputs...),
		PendingInputs: make(map[string]ExternalRequest, len(r.pendingRequests)),
		SavedAt:       time.Now(),
	}
	for k, v := range r.pendingRequests {
		cp.PendingInputs[k] = v
	}
	r.mu.Unlock()

	if err := r.cfg.Checkpoint.Save(ctx, cp); err != nil {
		r.bus.Publish(ctx, observability.Event{
			Type: EventCheckpointSaved, Level: observability.LevelError, Timestamp: time.Now(),
			Source: r.wf.name, Data: map[string]any{"error": err.Error()},
		})
		return
	}
	r.bus.Publish(ctx, observability.Event{
		Type: EventCheckpointSaved, Level: observability.LevelInfo, Timestamp: time.Now(),
		Source: r.wf.name, Data: map[string]any{"run_id": r.runID, "superstep": r.superstep},
	})
}

// runSuperstep groups current's messages by resolved target executor and
// runs each target's batch in its own goroutine, bounded by MaxConcurrency.
// Returns every HandlerError raised, in no particular order.
func (r *Runner) runSuperstep(ctx context.Context, current []QueuedMessage) []executorError {
	batches := r.route(current)

	limit := r.cfg.MaxConcurrency
	if limit <= 0 {
		limit = defaultConcurrency()
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []executorError

	for targetID, msgs := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(targetID string, msgs []*Message) {
			defer wg.Done()
			defer func() { <-sem }()

			exec, ok := r.wf.executor(targetID)
			if !ok {
				return
			}
			for _, msg := range msgs {
				if err := r.invoke(ctx, exec, msg); err != nil {
					mu.Lock()
					errs = append(errs, executorError{ExecutorID: targetID, Err: err})
					mu.Unlock()
					r.mu.Lock()
					r.consecutiveErrors[targetID]++
					r.mu.Unlock()
					continue
				}
				r.mu.Lock()
				r.consecutiveErrors[targetID] = 0
				r.mu.Unlock()
			}
		}(targetID, msgs)
	}

	wg.Wait()
	return errs
}

func (r *Runner) invoke(ctx context.Context, exec Executor, msg *Message) error {
	wctx := &Context{ctx: ctx, executorID: exec.ID(), traceID: msg.TraceID, runner: r}

	r.bus.Publish(ctx, observability.Event{
		Type: EventExecutorInvoked, Level: observability.LevelVerbose, Timestamp: time.Now(),
		Source: exec.ID(), Data: map[string]any{"message_id": msg.ID},
	})

	started := time.Now()
	err := exec.Handle(wctx, msg)
	duration := time.Since(started).Seconds()

	if err != nil {
		var unhandled *ErrUnhandledType
		if !r.cfg.StrictMessageTypes && errors.As(err, &unhandled) {
			r.bus.Publish(ctx, observability.Event{
				Type: EventMessageDropped, Level: observability.LevelWarning, Timestamp: time.Now(),
				Source: exec.ID(), Data: map[string]any{"message_id": msg.ID, "type": unhandled.Type.String()},
			})
			return nil
		}

		r.bus.Publish(ctx, observability.Event{
			Type: EventExecutorFailed, Level: observability.LevelError, Timestamp: time.Now(),
			Source: exec.ID(), Data: map[string]any{"message_id": msg.ID, "error": err.Error(), "duration_seconds": duration},
		})
		return &HandlerError{ExecutorID: exec.ID(), MessageID: msg.ID, Err: err}
	}

	r.bus.Publish(ctx, observability.Event{
		Type: EventExecutorCompleted, Level: observability.LevelVerbose, Timestamp: time.Now(),
		Source: exec.ID(), Data: map[string]any{"message_id": msg.ID, "duration_seconds": duration},
	})
	return nil
}

// route resolves each queued message to the executor id(s) that should
// receive it this superstep, expanding fan-out/conditional edges and
// aggregating fan-in edges. A message with a pinned TargetID bypasses edge
// evaluation entirely.
func (r *Runner) route(queued []QueuedMessage) map[string][]*Message {
	batches := make(map[string][]*Message)

	deliver := func(targetID string, msg *Message) {
		batches[targetID] = append(batches[targetID], msg)
	}

	for _, qm := range queued {
		msg := qm.Message
		if qm.TargetID != "" {
			deliver(qm.TargetID, &msg)
			continue
		}

		if msg.SourceID == "" {
			// seed message: deliver straight to the start executor.
			deliver(r.wf.startID, &msg)
			continue
		}

		for _, edge := range r.wf.outgoing(msg.SourceID) {
			switch edge.Kind() {
			case FanIn:
				if aggregated := r.aggregateFanIn(edge, msg.SourceID, &msg); aggregated != nil {
					deliver(edge.TargetIDs()[0], aggregated)
				}
			default:
				if !edge.CanHandle(&msg) {
					continue
				}
				for _, t := range edge.TargetIDs() {
					m := msg
					deliver(t, &m)
				}
			}
		}
	}

	return batches
}

// aggregateFanIn buffers one message per source for edge; once every
// source has contributed in the current round it returns the aggregated
// batch (as a []any payload of each source's Data, in Sources order) and
// clears the round. An extra message
// from a source that already contributed this round is held for the next
// round rather than dropped.
func (r *Runner) aggregateFanIn(edge Edge, sourceID string, msg *Message) *Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	edgeID := edge.ID()
	buf, ok := r.fanInBuffers[edgeID]
	if !ok {
		buf = make(map[string]*Message)
		r.fanInBuffers[edgeID] = buf
	}

	if _, already := buf[sourceID]; already {
		next, ok := r.fanInNextRound[edgeID]
		if !ok {
			next = make(map[string]*Message)
			r.fanInNextRound[edgeID] = next
		}
		next[sourceID] = msg
		return nil
	}
	buf[sourceID] = msg

	if len(buf) < len(edge.Sources()) {
		return nil
	}

	batch := make([]any, 0, len(edge.Sources()))
	for _, s := range edge.Sources() {
		batch = append(batch, buf[s].Data)
	}
	delete(r.fanInBuffers, edgeID)

	if next, ok := r.fanInNextRound[edgeID]; ok {
		r.fanInBuffers[edgeID] = next
		delete(r.fanInNextRound, edgeID)
	}

	return NewMessage(sourceID, batch).WithTrace(msg.TraceID)
}

func (r *Runner) circuitBroken() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := r.cfg.MaxConsecutiveExecutorErrors
	if max == 0 {
		max = DefaultMaxConsecutiveExecutorErrors
	}
	for _, n := range r.consecutiveErrors {
		if n >= max {
			return true
		}
	}
	return false
}

func (r *Runner) publishStatus(ctx context.Context, state RunState) {
	r.bus.Publish(ctx, observability.Event{
		Type: EventWorkflowStatus, Level: observability.LevelInfo, Timestamp: time.Now(),
		Source: r.wf.name, Data: map[string]any{"run_id": r.runID, "state": string(state), "superstep": r.superstep},
	})
}

// enqueue is called by Context.SendMessage during executor invocation. It
// is safe for concurrent use by the executors running within one
// superstep.
func (r *Runner) enqueue(ctx context.Context, msg *Message, targetID string) error {
	r.mu.Lock()
	r.nextQueue = append(r.nextQueue, QueuedMessage{Message: *msg, TargetID: targetID})
	r.mu.Unlock()

	r.bus.Publish(ctx, observability.Event{
		Type: EventEdgeTraversed, Level: observability.LevelVerbose, Timestamp: time.Now(),
		Source: msg.SourceID, Data: map[string]any{"message_id": msg.ID, "target": targetID},
	})
	return nil
}

func (r *Runner) yieldOutput(ctx context.Context, sourceID string, data any) error {
	r.mu.Lock()
	r.outputs = append(r.outputs, data)
	r.mu.Unlock()

	r.bus.Publish(ctx, observability.Event{
		Type: EventWorkflowOutput, Level: observability.LevelInfo, Timestamp: time.Now(),
		Source: sourceID, Data: map[string]any{"output": data},
	})
	return nil
}

// emit publishes a caller-supplied event type, for executors (e.g.
// orchestration patterns) that need to surface a domain-specific state
// transition on the observability stream alongside the Runner's own
// automatic events.
func (r *Runner) emit(ctx context.Context, sourceID string, eventType observability.EventType, data map[string]any) {
	r.bus.Publish(ctx, observability.Event{
		Type: eventType, Level: observability.LevelInfo, Timestamp: time.Now(),
		Source: sourceID, Data: data,
	})
}

func (r *Runner) requestExternalInput(ctx context.Context, sourceID string, prompt any) (string, error) {
	id := newID()
	req := ExternalRequest{ID: id, SourceID: sourceID, Prompt: prompt, RaisedAt: time.Now()}

	r.mu.Lock()
	r.pendingRequests[id] = req
	r.mu.Unlock()

	r.bus.Publish(ctx, observability.Event{
		Type: EventRequestInfoRaised, Level: observability.LevelInfo, Timestamp: time.Now(),
		Source: sourceID, Data: map[string]any{"request_id": id},
	})
	return id, nil
}
