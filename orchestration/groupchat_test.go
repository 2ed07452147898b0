package orchestration

import (
	"context"
	"testing"

	"github.com/agentflow/kernel/workflow"
)

func TestGroupChatTerminatesAfterRound(t *testing.T) {
	speak := func(id, reply string) workflow.Executor {
		return workflow.FuncExecutor(id, func(wctx *workflow.Context, _ []any) error {
			return wctx.SendMessage(reply)
		})
	}

	alice := speak("alice", "alice-says-hi")
	bob := speak("bob", "bob-says-hi")

	terminate := func(transcript []GroupChatTurn) bool {
		return len(transcript) >= 1
	}

	wf, err := GroupChat("standup", []workflow.Executor{alice, bob}, terminate, 5)
	if err != nil {
		t.Fatalf("GroupChat: %v", err)
	}

	runner, err := workflow.NewRunner(wf)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), "status updates please")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Outputs) != 1 {
		t.Fatalf("outputs = %v, want exactly 1 transcript", result.Outputs)
	}
	transcript, ok := result.Outputs[0].([]GroupChatTurn)
	if !ok || len(transcript) != 1 || len(transcript[0].Replies) != 2 {
		t.Fatalf("transcript = %v", result.Outputs[0])
	}
}
