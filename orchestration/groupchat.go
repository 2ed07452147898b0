package orchestration

import (
	"fmt"
	"sync"

	"github.com/agentflow/kernel/workflow"
)

// GroupChatTurn is one round's transcript: what the manager prompted with,
// and what each participant replied.
type GroupChatTurn struct {
	Round   int
	Prompt  any
	Replies []any
}

// TerminateFunc decides, after each round, whether the group chat is done.
// transcript holds every round so far, most recent last.
type TerminateFunc func(transcript []GroupChatTurn) bool

// manager is the built-in executor driving a group chat: it fans the
// current prompt out to every participant, waits for all replies via a
// fan-in edge back to itself, and either starts another round or yields
// the full transcript as output.
type manager struct {
	*workflow.BaseExecutor

	mu         sync.Mutex
	transcript []GroupChatTurn
	lastPrompt any
	terminate  TerminateFunc
	maxRounds  int
}

func newManager(id string, terminate TerminateFunc, maxRounds int) *manager {
	m := &manager{BaseExecutor: workflow.NewBaseExecutor(id), terminate: terminate, maxRounds: maxRounds}
	// The manager's fan-out edge and every participant's handler must agree
	// on one topic type, so the initial string topic is wrapped into the
	// same []any shape the round-N re-broadcast (a participant reply batch)
	// already uses. Participants register a single []any handler and never
	// see a bare string.
	workflow.RegisterHandler(m.BaseExecutor, func(wctx *workflow.Context, topic string) error {
		prompt := []any{topic}
		m.mu.Lock()
		m.lastPrompt = prompt
		m.mu.Unlock()
		return wctx.SendMessage(prompt)
	})
	workflow.RegisterHandler(m.BaseExecutor, func(wctx *workflow.Context, replies []any) error {
		m.mu.Lock()
		round := len(m.transcript) + 1
		m.transcript = append(m.transcript, GroupChatTurn{Round: round, Prompt: m.lastPrompt, Replies: replies})
		m.lastPrompt = replies
		transcript := append([]GroupChatTurn(nil), m.transcript...)
		m.mu.Unlock()

		done := m.terminate != nil && m.terminate(transcript)
		if !done && m.maxRounds > 0 && round >= m.maxRounds {
			done = true
		}
		if done {
			return wctx.YieldOutput(transcript)
		}
		return wctx.SendMessage(transcript[len(transcript)-1].Replies)
	})
	return m
}

// GroupChat builds a manager-moderated multi-participant conversation: the
// manager broadcasts a prompt, every participant replies, and the manager
// decides (via terminate, or after maxRounds) whether to continue or
// yield the full transcript. maxRounds<=0 means unbounded (terminate must
// eventually return true).
func GroupChat(name string, participants []workflow.Executor, terminate TerminateFunc, maxRounds int) (*workflow.Workflow, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("orchestration.GroupChat: at least one participant required")
	}

	mgr := newManager("manager", terminate, maxRounds)
	participantIDs := make([]string, len(participants))
	for i, p := range participants {
		participantIDs[i] = p.ID()
	}

	b := workflow.NewBuilder(name).AddExecutor(mgr)
	for _, p := range participants {
		b.AddExecutor(p)
	}
	b.AddEdge(workflow.NewFanOutEdge(mgr.ID(), participantIDs...))
	b.AddEdge(workflow.NewFanInEdge(mgr.ID(), participantIDs...))

	return b.Build()
}
