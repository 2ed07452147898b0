package declarative

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentflow/kernel/agentexec"
	"github.com/agentflow/kernel/workflow"
)

// ProviderFunc builds an Executor for a NodeSpec of NodeKindFunction whose
// Type matched the name it was registered under.
type ProviderFunc func(node NodeSpec) (workflow.Executor, error)

// AgentProviderFunc builds an agentexec.Config for a NodeSpec of
// NodeKindAgent whose Type matched the name it was registered under --
// node.Params carries whatever the caller's factory needs to pick a
// chat client, instructions, and tool registry for this node.
type AgentProviderFunc func(node NodeSpec) (agentexec.Config, error)

// WorkflowFactory turns a parsed Spec into a runnable workflow.Workflow.
// Node types are resolved through the provider tables the caller fills in
// with RegisterProvider/RegisterAgentProvider/RegisterSubWorkflow before
// loading a document that
// references them -- a YAML document describes topology, not Go code, so
// the behavior behind each node type must already exist in the process.
type WorkflowFactory struct {
	mu             sync.RWMutex
	providers      map[string]ProviderFunc
	agentProviders map[string]AgentProviderFunc
	subWorkflows   map[string]*workflow.Workflow
	vars           *runVariables
}

// NewWorkflowFactory returns an empty factory. Register providers and
// sub-workflows before calling CreateWorkflowFromYAML(Path).
func NewWorkflowFactory() *WorkflowFactory {
	return &WorkflowFactory{
		providers:      make(map[string]ProviderFunc),
		agentProviders: make(map[string]AgentProviderFunc),
		subWorkflows:   make(map[string]*workflow.Workflow),
		vars:           newRunVariables(),
	}
}

// RegisterProvider maps a NodeSpec.Type string to the function that builds
// its executor. Used for nodes with Kind == NodeKindFunction.
func (f *WorkflowFactory) RegisterProvider(typeName string, fn ProviderFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[typeName] = fn
}

// RegisterAgentProvider maps a NodeSpec.Type string to the function that
// builds an agentexec.Config. Used for nodes with Kind == NodeKindAgent.
func (f *WorkflowFactory) RegisterAgentProvider(typeName string, fn AgentProviderFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agentProviders[typeName] = fn
}

// RegisterSubWorkflow maps a NodeSpec.Type string to an already-built child
// Workflow. Used for nodes with Kind == NodeKindSubWorkflow.
func (f *WorkflowFactory) RegisterSubWorkflow(typeName string, child *workflow.Workflow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subWorkflows[typeName] = child
}

// CreateWorkflowFromYAMLPath loads and builds a Workflow from a file path.
func (f *WorkflowFactory) CreateWorkflowFromYAMLPath(path string) (*workflow.Workflow, error) {
	spec, err := LoadSpecFromPath(path)
	if err != nil {
		return nil, err
	}
	return f.build(spec)
}

// CreateWorkflowFromYAML loads and builds a Workflow from raw YAML bytes.
func (f *WorkflowFactory) CreateWorkflowFromYAML(data []byte) (*workflow.Workflow, error) {
	spec, err := LoadSpec(data)
	if err != nil {
		return nil, err
	}
	return f.build(spec)
}

func (f *WorkflowFactory) build(spec *Spec) (*workflow.Workflow, error) {
	b := workflow.NewBuilder(spec.Name)

	for _, node := range spec.Nodes {
		exec, err := f.buildExecutor(node)
		if err != nil {
			return nil, &DeclarativeWorkflowError{WorkflowName: spec.Name, Err: fmt.Errorf("node %q: %w", node.ID, err)}
		}
		b.AddExecutor(exec)
		if a, ok := exec.(*agentexec.Executor); ok && a.HasGatedTools() {
			b.AddEdge(workflow.NewDirectEdge(a.ID(), a.ID()))
		}
	}
	b.SetStart(spec.Start)

	for _, edgeSpec := range spec.Edges {
		edge, err := f.buildEdge(edgeSpec)
		if err != nil {
			return nil, &DeclarativeWorkflowError{WorkflowName: spec.Name, Err: err}
		}
		b.AddEdge(edge)
	}

	wf, err := b.Build()
	if err != nil {
		return nil, &DeclarativeWorkflowError{WorkflowName: spec.Name, Err: err}
	}
	return wf, nil
}

func (f *WorkflowFactory) buildExecutor(node NodeSpec) (workflow.Executor, error) {
	switch node.Kind {
	case "", NodeKindFunction:
		f.mu.RLock()
		provider, ok := f.providers[node.Type]
		f.mu.RUnlock()
		if !ok {
			return nil, &ProviderLookupError{Type: node.Type}
		}
		return provider(node)

	case NodeKindAgent:
		f.mu.RLock()
		provider, ok := f.agentProviders[node.Type]
		f.mu.RUnlock()
		if !ok {
			return nil, &ProviderLookupError{Type: node.Type}
		}
		cfg, err := provider(node)
		if err != nil {
			return nil, err
		}
		return agentexec.New(node.ID, cfg), nil

	case NodeKindRequestInfo:
		return workflow.NewRequestInfoExecutor(node.ID), nil

	case NodeKindSubWorkflow:
		f.mu.RLock()
		child, ok := f.subWorkflows[node.Type]
		f.mu.RUnlock()
		if !ok {
			return nil, &ProviderLookupError{Type: node.Type}
		}
		return workflow.AsExecutor(child, node.ID), nil

	case NodeKindSetVariable:
		return f.buildSetVariableExecutor(node)

	default:
		return nil, fmt.Errorf("unknown node kind %q", node.Kind)
	}
}

// buildSetVariableExecutor builds a pass-through node that records one
// variable in the run's ambient scope (see runVariables) before forwarding
// the incoming payload unchanged, so downstream conditional edges can read
// what an earlier node observed instead of only the message passing through
// them directly.
func (f *WorkflowFactory) buildSetVariableExecutor(node NodeSpec) (workflow.Executor, error) {
	name := node.Variable
	if name == "" {
		return nil, fmt.Errorf("set_variable node %q missing \"variable\"", node.ID)
	}
	field, _ := node.Params["from"].(string)

	return workflow.FuncExecutor(node.ID, func(wctx *workflow.Context, data map[string]any) error {
		value := any(data)
		if field != "" {
			value = data[field]
		}
		f.vars.set(wctx.TraceID(), name, value)
		return wctx.SendMessage(data)
	}), nil
}

func (f *WorkflowFactory) buildEdge(spec EdgeSpec) (workflow.Edge, error) {
	switch spec.Kind {
	case "", "direct":
		if spec.To == "" {
			return workflow.Edge{}, fmt.Errorf("direct edge from %q missing \"to\"", spec.From)
		}
		return workflow.NewDirectEdge(spec.From, spec.To), nil

	case "fan_out":
		if len(spec.Targets) == 0 {
			return workflow.Edge{}, fmt.Errorf("fan_out edge from %q needs at least one target", spec.From)
		}
		return workflow.NewFanOutEdge(spec.From, spec.Targets...), nil

	case "fan_in":
		if spec.To == "" || len(spec.Sources) == 0 {
			return workflow.Edge{}, fmt.Errorf("fan_in edge needs \"to\" and at least one source")
		}
		return workflow.NewFanInEdge(spec.To, spec.Sources...), nil

	case "chain":
		if len(spec.Targets) == 0 {
			return workflow.Edge{}, fmt.Errorf("chain edge from %q needs at least one target", spec.From)
		}
		return workflow.NewChainEdge(spec.From, spec.Targets...), nil

	case "conditional":
		if spec.To == "" {
			return workflow.Edge{}, fmt.Errorf("conditional edge from %q missing \"to\"", spec.From)
		}
		condition := spec.Condition
		predicate := func(msg *workflow.Message) bool {
			fields, err := scopeFromMessage(msg)
			if err != nil {
				fields = map[string]any{}
			}
			scope := make(map[string]any, len(fields))
			for name, value := range fields {
				scope[name] = value
			}
			for name, value := range f.vars.scope(msg.TraceID) {
				scope[name] = value
			}
			ok, err := evalCondition(condition, scope)
			return err == nil && ok
		}
		return workflow.NewConditionalEdge(spec.From, spec.To, predicate), nil

	default:
		return workflow.Edge{}, fmt.Errorf("unknown edge kind %q", spec.Kind)
	}
}

// scopeFromMessage exposes a message's Data as a variable scope for
// condition evaluation: a map payload is used as-is, anything else is
// round-tripped through JSON so struct fields become named variables.
func scopeFromMessage(msg *workflow.Message) (map[string]any, error) {
	if m, ok := msg.Data.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		return nil, err
	}
	var scope map[string]any
	if err := json.Unmarshal(raw, &scope); err != nil {
		return nil, err
	}
	return scope, nil
}
