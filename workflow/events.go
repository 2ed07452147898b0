package workflow

import "github.com/agentflow/kernel/observability"

// Event type constants emitted onto the unified observability.Event stream
// by the Runner. Past-tense, matching the run-state vocabulary used by the
// system this API was modeled on (WorkflowStatusEvent / RequestInfoEvent).
const (
	EventWorkflowStarted   observability.EventType = "workflow.started"
	EventWorkflowStatus    observability.EventType = "workflow.status"
	EventWorkflowOutput    observability.EventType = "workflow.output"
	EventWorkflowCompleted observability.EventType = "workflow.completed"
	EventWorkflowFailed    observability.EventType = "workflow.failed"

	EventExecutorInvoked   observability.EventType = "executor.invoked"
	EventExecutorCompleted observability.EventType = "executor.completed"
	EventExecutorFailed    observability.EventType = "executor.failed"
	EventMessageDropped    observability.EventType = "message.dropped"

	EventEdgeEvaluated  observability.EventType = "edge.evaluated"
	EventEdgeTraversed  observability.EventType = "edge.traversed"
	EventSuperstepBegan observability.EventType = "superstep.began"
	EventSuperstepEnded observability.EventType = "superstep.ended"

	EventCheckpointSaved  observability.EventType = "checkpoint.saved"
	EventCheckpointLoaded observability.EventType = "checkpoint.loaded"

	EventRequestInfoRaised    observability.EventType = "request_info.raised"
	EventRequestInfoResponded observability.EventType = "request_info.responded"

	// EventOrchestrationReset marks an orchestration pattern (e.g. Magentic)
	// discarding in-progress state and re-entering an earlier stage, such as
	// a rejected plan sending the task back to the planner.
	EventOrchestrationReset observability.EventType = "orchestration.reset"
)

// RunState describes the lifecycle stage of a Workflow run, reported on
// WorkflowStatusEvent.
type RunState string

const (
	RunIdle             RunState = "idle"
	RunInProgress       RunState = "in_progress"
	RunInProgressPaused RunState = "in_progress_pending_request"
	RunCompleted        RunState = "completed"
	RunFailed           RunState = "failed"
)
