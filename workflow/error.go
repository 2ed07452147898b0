package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError is returned by Builder.Build when the assembled graph is
// structurally unsound (dangling edge, duplicate executor id or edge, no
// start executor, empty or duplicate fan-in sources, executor unreachable
// from start). Cycles are not rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow validation failed: %s", e.Reason)
}

// HandlerError wraps a failure raised by an Executor's handler while
// processing a message.
type HandlerError struct {
	ExecutorID string
	MessageID  string
	Err        error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("executor %s failed on message %s: %v", e.ExecutorID, e.MessageID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// GraphMismatchError is returned by RunFromCheckpoint when the checkpoint's
// recorded graph hash does not match the workflow being resumed.
type GraphMismatchError struct {
	Expected string
	Actual   string
}

func (e *GraphMismatchError) Error() string {
	return fmt.Sprintf("workflow graph has changed: checkpoint hash %s does not match current graph hash %s", e.Expected, e.Actual)
}

// TimeoutError is returned when a run exceeds its superstep limit
// (RunnerConfig.MaxSupersteps). The runtime sets no deadline on executor
// invocations or pending external-input requests.
type TimeoutError struct {
	Scope   string
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Scope, e.Timeout)
}

// CheckpointError wraps a failure from a CheckpointStorage backend.
type CheckpointError struct {
	Op  string
	ID  string
	Err error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s failed for %s: %v", e.Op, e.ID, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// executorError pairs a failure with the executor id it occurred at, so
// RunError can aggregate a run's failures.
type executorError struct {
	ExecutorID string
	Err        error
}

// RunError aggregates every HandlerError raised during a run. Without
// ContinueOnError the run stops after the first superstep that has a
// failure, so it holds only that superstep's failures. It
// supports Go 1.20+ multi-unwrap so errors.Is/errors.As can search across
// every underlying failure.
type RunError struct {
	Errors []executorError
}

func (e *RunError) Error() string {
	if len(e.Errors) == 0 {
		return "workflow run failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("workflow run failed: executor %s: %v", e.Errors[0].ExecutorID, e.Errors[0].Err)
	}

	counts := make(map[string]int)
	for _, ee := range e.Errors {
		counts[ee.Err.Error()]++
	}
	type summary struct {
		msg   string
		count int
	}
	var summaries []summary
	for msg, c := range counts {
		summaries = append(summaries, summary{msg, c})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].count > summaries[j].count })

	var parts []string
	for _, s := range summaries {
		parts = append(parts, fmt.Sprintf("'%s' (%d)", s.msg, s.count))
	}
	return fmt.Sprintf("workflow run failed: %d executors failed: %s", len(e.Errors), strings.Join(parts, ", "))
}

func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, ee := range e.Errors {
		errs[i] = ee.Err
	}
	return errs
}
