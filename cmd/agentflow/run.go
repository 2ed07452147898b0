package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentflow/kernel/agentexec"
	"github.com/agentflow/kernel/declarative"
	"github.com/agentflow/kernel/tool"
	"github.com/agentflow/kernel/workflow"
)

func newRunCommand() *cobra.Command {
	var (
		workflowPath string
		instructions string
	)

	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run a declarative workflow (or a single agent) against a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]

			client, err := buildClient(viper.GetString("provider"), viper.GetString("model"))
			if err != nil {
				return err
			}

			var wf *workflow.Workflow
			if workflowPath != "" {
				factory := declarative.NewWorkflowFactory()
				factory.RegisterAgentProvider("agent", func(node declarative.NodeSpec) (agentexec.Config, error) {
					return agentexec.Config{
						Client:       client,
						Instructions: instructions,
						Tools:        tool.NewRegistry(),
						Terminal:     true,
					}, nil
				})
				wf, err = factory.CreateWorkflowFromYAMLPath(workflowPath)
				if err != nil {
					return fmt.Errorf("load workflow %s: %w", workflowPath, err)
				}
			} else {
				b := workflow.NewBuilder("agentflow-single-agent")
				agentexec.AddTo(b, "agent", agentexec.Config{
					Client:       client,
					Instructions: instructions,
					Tools:        tool.NewRegistry(),
					Terminal:     true,
				})
				b.SetStart("agent")
				wf, err = b.Build()
				if err != nil {
					return fmt.Errorf("build default workflow: %w", err)
				}
			}

			runner, err := workflow.NewRunner(wf)
			if err != nil {
				return fmt.Errorf("create runner: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			result, err := runner.Run(ctx, prompt)
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}

			if result.State == workflow.RunInProgressPaused {
				fmt.Println("Run paused pending external input:")
				for id, req := range result.PendingRequests {
					fmt.Printf("  [%s] from %s: %v\n", id, req.SourceID, req.Prompt)
				}
				return nil
			}

			for _, out := range result.Outputs {
				fmt.Println(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowPath, "workflow", "", "path to a declarative workflow YAML file; a single terminal agent otherwise")
	cmd.Flags().StringVar(&instructions, "instructions", "", "system instructions for the agent")
	return cmd
}
