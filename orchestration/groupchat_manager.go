package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentflow/kernel/chatclient"
	"github.com/agentflow/kernel/core/protocol"
)

// PromptManager builds a TerminateFunc backed by a chat client instead of a
// hand-written policy: after each round it asks the model, given the
// transcript so far, whether the group chat should stop. This is the
// prompt-based manager variant alongside the deterministic TerminateFunc a
// caller can write by hand; both plug into the same GroupChat constructor
// since a manager is just "whatever decides when to stop", not a distinct
// topology.
func PromptManager(client chatclient.ChatClient, instructions string) TerminateFunc {
	return func(transcript []GroupChatTurn) bool {
		prompt := renderTranscript(transcript)
		resp, err := client.GetResponse(context.Background(), []protocol.Message{
			protocol.NewMessage(protocol.RoleUser, prompt),
		}, chatclient.Options{Instructions: instructions})
		if err != nil {
			// A manager that cannot be reached does not silently keep the
			// conversation going forever; fail closed and stop the chat.
			return true
		}
		reply, _ := resp.Message.Content.(string)
		return strings.Contains(strings.ToUpper(reply), "TERMINATE")
	}
}

func renderTranscript(transcript []GroupChatTurn) string {
	var b strings.Builder
	for _, turn := range transcript {
		fmt.Fprintf(&b, "round %d:\n", turn.Round)
		for i, reply := range turn.Replies {
			fmt.Fprintf(&b, "  participant %d: %v\n", i+1, reply)
		}
	}
	b.WriteString("\nReply with TERMINATE if the conversation should stop, otherwise CONTINUE.")
	return b.String()
}
