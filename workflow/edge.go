package workflow

import "strings"

// edgeIDSeparator joins a source and target executor id into one Edge id,
// matching the separator format used by the runtime this package was
// modeled on.
const edgeIDSeparator = "->"

// Kind identifies the routing behavior of an Edge.
type Kind int

const (
	// Direct forwards every message from Source straight to Target.
	Direct Kind = iota
	// FanOut forwards every message from Source to all Targets.
	FanOut
	// FanIn waits for one message from each of Sources before forwarding
	// the aggregated batch to Target.
	FanIn
	// Conditional forwards a message from Source to Target only when
	// Predicate(message) is true.
	Conditional
	// Chain forwards a message through Targets in order, each one's
	// output becoming the next one's input. Builder.Build flattens a Chain
	// edge into a sequence of Direct edges before a Workflow ever sees it;
	// a Workflow's routing table never holds a raw Chain edge.
	Chain
)

// Predicate decides whether a Conditional edge should fire for a message.
type Predicate func(msg *Message) bool

// Always returns a Predicate that fires unconditionally.
func Always() Predicate {
	return func(*Message) bool { return true }
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(m *Message) bool { return !p(m) }
}

// And combines predicates: all must fire.
func And(ps ...Predicate) Predicate {
	return func(m *Message) bool {
		for _, p := range ps {
			if !p(m) {
				return false
			}
		}
		return true
	}
}

// Or combines predicates: at least one must fire.
func Or(ps ...Predicate) Predicate {
	return func(m *Message) bool {
		for _, p := range ps {
			if p(m) {
				return true
			}
		}
		return false
	}
}

// Edge is a directed routing rule between executors in a Workflow graph.
type Edge struct {
	kind      Kind
	sourceID  string
	sources   []string
	targetIDs []string
	predicate Predicate
}

// NewDirectEdge routes every message from source straight to target.
func NewDirectEdge(source, target string) Edge {
	return Edge{kind: Direct, sourceID: source, targetIDs: []string{target}}
}

// NewFanOutEdge routes every message from source to all targets.
func NewFanOutEdge(source string, targets ...string) Edge {
	return Edge{kind: FanOut, sourceID: source, targetIDs: targets}
}

// NewFanInEdge waits for one message from each of sources before emitting
// the aggregated batch to target.
func NewFanInEdge(target string, sources ...string) Edge {
	return Edge{kind: FanIn, sourceID: "", targetIDs: []string{target}, predicate: nil}.withSources(sources)
}

func (e Edge) withSources(sources []string) Edge {
	e.sources = sources
	return e
}

// NewConditionalEdge routes a message from source to target only when
// predicate(message) is true.
func NewConditionalEdge(source, target string, predicate Predicate) Edge {
	if predicate == nil {
		predicate = Always()
	}
	return Edge{kind: Conditional, sourceID: source, targetIDs: []string{target}, predicate: predicate}
}

// NewChainEdge declares that a message should pass through targets in
// order, each one's output becoming the next one's input. This Edge value
// is only ever consumed by Builder.Build, which expands it into sequential
// Direct edges ("prev" rewired to each target in turn) before the Workflow
// is constructed; Runner.route's switch over Kind has no Chain case
// because a built Workflow never holds one. Do not AddEdge the result of
// this and then bypass Build's expansion (e.g. by constructing a Workflow
// any other way) -- routed directly, a Chain edge's Kind causes Runner to
// fall into the fan-out default, delivering to every target at once rather
// than one at a time.
func NewChainEdge(source string, targets ...string) Edge {
	return Edge{kind: Chain, sourceID: source, targetIDs: targets}
}

func (e Edge) Kind() Kind          { return e.kind }
func (e Edge) SourceID() string    { return e.sourceID }
func (e Edge) TargetIDs() []string { return append([]string(nil), e.targetIDs...) }
func (e Edge) Sources() []string   { return append([]string(nil), e.sources...) }

// CanHandle reports whether this edge would forward msg, evaluating its
// predicate (if any) against the message.
func (e Edge) CanHandle(msg *Message) bool {
	if e.predicate == nil {
		return true
	}
	return e.predicate(msg)
}

// ID returns the canonical identity of the edge, source and target(s)
// joined by the separator, matching source_and_target_from_id's inverse.
func (e Edge) ID() string {
	switch e.kind {
	case FanIn:
		return strings.Join(e.sources, ",") + edgeIDSeparator + e.targetIDs[0]
	default:
		return e.sourceID + edgeIDSeparator + strings.Join(e.targetIDs, ",")
	}
}

// EdgeID joins a source and target id the way Edge.ID does, for callers
// that need to compute an id without constructing an Edge.
func EdgeID(source, target string) string {
	return source + edgeIDSeparator + target
}

// SplitEdgeID is the inverse of EdgeID.
func SplitEdgeID(id string) (source, target string, ok bool) {
	parts := strings.SplitN(id, edgeIDSeparator, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
