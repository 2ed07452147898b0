// Package declarative loads a Workflow graph from a YAML document instead
// of Go code, mirroring the shape (if not the exact vocabulary) of nodes,
// edges, and conditions used by the original declarative workflow samples.
package declarative

import "fmt"

// NodeKind identifies what a NodeSpec becomes once built: a plain function
// executor, a chat-client-backed agent, a request-info (human-in-the-loop)
// executor, or a nested sub-workflow.
type NodeKind string

const (
	NodeKindFunction    NodeKind = "function"
	NodeKindAgent       NodeKind = "agent"
	NodeKindRequestInfo NodeKind = "request_info"
	NodeKindSubWorkflow NodeKind = "sub_workflow"
	NodeKindSetVariable NodeKind = "set_variable"
)

// NodeSpec describes one executor in the YAML document. Type selects which
// registered provider builds it; Kind distinguishes the executor
// shapes the loader knows how to construct without a custom factory.
// Variable and Params["from"] are only read for Kind == NodeKindSetVariable:
// the node stores Params["from"] (a field of the incoming map payload, or
// the whole payload if empty) under Variable in the run's ambient scope,
// then forwards the message unchanged.
type NodeSpec struct {
	ID       string         `yaml:"id"`
	Kind     NodeKind       `yaml:"kind"`
	Type     string         `yaml:"type,omitempty"`
	Prompt   string         `yaml:"prompt,omitempty"`
	Variable string         `yaml:"variable,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
}

// EdgeSpec describes one routing rule. Kind mirrors workflow.Kind; Condition
// is only read for "conditional" edges and evaluated against the run's
// variable scope (see condition.go).
type EdgeSpec struct {
	Kind      string   `yaml:"kind"`
	From      string   `yaml:"from"`
	To        string   `yaml:"to,omitempty"`
	Sources   []string `yaml:"sources,omitempty"`
	Targets   []string `yaml:"targets,omitempty"`
	Condition string   `yaml:"condition,omitempty"`
}

// Spec is the top-level YAML document: a named workflow, its nodes in
// declaration order (not a map, so execution order printing matches
// authoring order), and its edges.
type Spec struct {
	Name  string     `yaml:"name"`
	Start string     `yaml:"start"`
	Nodes []NodeSpec `yaml:"nodes"`
	Edges []EdgeSpec `yaml:"edges"`
}

// DeclarativeLoaderError wraps a failure reading or parsing a YAML document.
type DeclarativeLoaderError struct {
	Path string
	Err  error
}

func (e *DeclarativeLoaderError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("declarative: load %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("declarative: load: %v", e.Err)
}

func (e *DeclarativeLoaderError) Unwrap() error { return e.Err }

// DeclarativeWorkflowError wraps a failure building a Workflow graph from an
// otherwise-valid Spec (unknown node type or kind, malformed edge, or a
// graph the builder rejects). A conditional edge's condition is not checked
// at build time; one that fails to evaluate at run time makes the edge not
// fire.
type DeclarativeWorkflowError struct {
	WorkflowName string
	Err          error
}

func (e *DeclarativeWorkflowError) Error() string {
	return fmt.Sprintf("declarative: build workflow %q: %v", e.WorkflowName, e.Err)
}

func (e *DeclarativeWorkflowError) Unwrap() error { return e.Err }

// ProviderLookupError reports a NodeSpec.Type with no registered factory.
type ProviderLookupError struct {
	Type string
}

func (e *ProviderLookupError) Error() string {
	return fmt.Sprintf("declarative: no provider registered for node type %q", e.Type)
}
