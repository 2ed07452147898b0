package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/agentflow/kernel/observability"
)

// Workflow is an immutable, validated graph of Executors connected by
// Edges. Build it with Builder; construct a Runner from it to execute.
type Workflow struct {
	name       string
	startID    string
	executors  map[string]Executor
	edgesFrom  map[string][]Edge // keyed by Edge.SourceID() for Direct/FanOut/Conditional (Chain is flattened to Direct)
	fanInEdges []Edge            // FanIn edges, matched by membership in Sources()
	hash       string
}

func (w *Workflow) Name() string      { return w.name }
func (w *Workflow) StartID() string   { return w.startID }
func (w *Workflow) GraphHash() string { return w.hash }

func (w *Workflow) executor(id string) (Executor, bool) {
	e, ok := w.executors[id]
	return e, ok
}

// outgoing returns every edge that could fire for a message emitted by
// sourceID, in declaration order.
func (w *Workflow) outgoing(sourceID string) []Edge {
	edges := append([]Edge(nil), w.edgesFrom[sourceID]...)
	for _, e := range w.fanInEdges {
		for _, s := range e.Sources() {
			if s == sourceID {
				edges = append(edges, e)
				break
			}
		}
	}
	return edges
}

// Builder assembles a Workflow: accumulate state via chained calls,
// validate once at Build.
type Builder struct {
	name      string
	startID   string
	executors map[string]Executor
	edges     []Edge
	observer  observability.Observer
	err       error
}

// NewBuilder starts a Builder named name. name is used only for event
// Source attribution.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:      name,
		executors: make(map[string]Executor),
		observer:  observability.NoOpObserver{},
	}
}

func (b *Builder) WithObserver(o observability.Observer) *Builder {
	if o != nil {
		b.observer = o
	}
	return b
}

// AddExecutor registers e. The first executor added becomes the start
// executor unless SetStart is called explicitly.
func (b *Builder) AddExecutor(e Executor) *Builder {
	if b.err != nil {
		return b
	}
	if _, exists := b.executors[e.ID()]; exists {
		b.err = &ValidationError{Reason: fmt.Sprintf("duplicate executor id %q", e.ID())}
		return b
	}
	b.executors[e.ID()] = e
	if b.startID == "" {
		b.startID = e.ID()
	}
	return b
}

// SetStart designates id as the workflow's entry executor.
func (b *Builder) SetStart(id string) *Builder {
	b.startID = id
	return b
}

// AddEdge adds a routing edge. Every executor id referenced must already be
// registered via AddExecutor.
func (b *Builder) AddEdge(e Edge) *Builder {
	if b.err != nil {
		return b
	}
	b.edges = append(b.edges, e)
	return b
}

// Build validates the accumulated graph and returns an immutable Workflow.
func (b *Builder) Build() (*Workflow, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.executors) == 0 {
		return nil, &ValidationError{Reason: "workflow has no executors"}
	}
	if b.startID == "" {
		return nil, &ValidationError{Reason: "no start executor set"}
	}
	if _, ok := b.executors[b.startID]; !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("start executor %q not registered", b.startID)}
	}

	edgesFrom := make(map[string][]Edge)
	var fanIn []Edge
	seenEdgeIDs := make(map[string]bool)
	for _, e := range b.edges {
		if id := e.ID(); seenEdgeIDs[id] {
			return nil, &ValidationError{Reason: fmt.Sprintf("duplicate edge %q", id)}
		} else {
			seenEdgeIDs[id] = true
		}

		switch e.Kind() {
		case FanIn:
			sources := e.Sources()
			if len(sources) == 0 {
				return nil, &ValidationError{Reason: fmt.Sprintf("fan-in edge to %q has no sources", e.TargetIDs()[0])}
			}
			seenSources := make(map[string]bool, len(sources))
			for _, s := range sources {
				if _, ok := b.executors[s]; !ok {
					return nil, &ValidationError{Reason: fmt.Sprintf("fan-in source %q not registered", s)}
				}
				if seenSources[s] {
					return nil, &ValidationError{Reason: fmt.Sprintf("fan-in edge to %q has duplicate source %q", e.TargetIDs()[0], s)}
				}
				seenSources[s] = true
			}
			for _, t := range e.TargetIDs() {
				if _, ok := b.executors[t]; !ok {
					return nil, &ValidationError{Reason: fmt.Sprintf("edge target %q not registered", t)}
				}
			}
			fanIn = append(fanIn, e)
		case Chain:
			if _, ok := b.executors[e.SourceID()]; !ok {
				return nil, &ValidationError{Reason: fmt.Sprintf("edge source %q not registered", e.SourceID())}
			}
			prev := e.SourceID()
			for _, t := range e.TargetIDs() {
				if _, ok := b.executors[t]; !ok {
					return nil, &ValidationError{Reason: fmt.Sprintf("edge target %q not registered", t)}
				}
				edgesFrom[prev] = append(edgesFrom[prev], NewDirectEdge(prev, t))
				prev = t
			}
		default:
			if _, ok := b.executors[e.SourceID()]; !ok {
				return nil, &ValidationError{Reason: fmt.Sprintf("edge source %q not registered", e.SourceID())}
			}
			for _, t := range e.TargetIDs() {
				if _, ok := b.executors[t]; !ok {
					return nil, &ValidationError{Reason: fmt.Sprintf("edge target %q not registered", t)}
				}
			}
			edgesFrom[e.SourceID()] = append(edgesFrom[e.SourceID()], e)
		}
	}

	w := &Workflow{
		name:       b.name,
		startID:    b.startID,
		executors:  b.executors,
		edgesFrom:  edgesFrom,
		fanInEdges: fanIn,
	}

	if unreachable := unreachableExecutors(w); len(unreachable) > 0 {
		sort.Strings(unreachable)
		return nil, &ValidationError{Reason: fmt.Sprintf("executor(s) unreachable from start %q: %s", w.startID, strings.Join(unreachable, ", "))}
	}

	w.hash = computeGraphHash(w)
	return w, nil
}

// unreachableExecutors returns the ids of every executor that cannot be
// reached from w.startID by following outgoing edges (fan-out, direct,
// conditional, and fan-in, the last reached through any one of its
// sources), in arbitrary order.
func unreachableExecutors(w *Workflow) []string {
	visited := map[string]bool{w.startID: true}
	queue := []string{w.startID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range w.outgoing(id) {
			for _, t := range e.TargetIDs() {
				if !visited[t] {
					visited[t] = true
					queue = append(queue, t)
				}
			}
		}
	}

	var unreachable []string
	for id := range w.executors {
		if !visited[id] {
			unreachable = append(unreachable, id)
		}
	}
	return unreachable
}

// computeGraphHash produces a stable hash over the graph's structural
// shape (executor ids, their handler signatures, and edge identities),
// independent of map iteration order, so two builds of the same declared
// graph always agree and a checkpoint from a structurally changed workflow
// (including one whose handler input types changed, not just its shape)
// is detected at resume.
func computeGraphHash(w *Workflow) string {
	ids := make([]string, 0, len(w.executors))
	for id := range w.executors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var signatures []string
	for _, id := range ids {
		hr, ok := w.executors[id].(interface{ HandledTypes() []reflect.Type })
		if !ok {
			continue
		}
		for _, t := range hr.HandledTypes() {
			signatures = append(signatures, id+":"+t.String())
		}
	}

	var edgeIDs []string
	for _, edges := range w.edgesFrom {
		for _, e := range edges {
			edgeIDs = append(edgeIDs, fmt.Sprintf("%d:%s", e.Kind(), e.ID()))
		}
	}
	for _, e := range w.fanInEdges {
		edgeIDs = append(edgeIDs, fmt.Sprintf("%d:%s", e.Kind(), e.ID()))
	}
	sort.Strings(edgeIDs)

	h := sha256.New()
	h.Write([]byte(w.startID))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(ids, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(signatures, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(edgeIDs, ",")))
	return hex.EncodeToString(h.Sum(nil))
}
