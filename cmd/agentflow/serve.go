package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentflow/kernel/agentexec"
	"github.com/agentflow/kernel/declarative"
	"github.com/agentflow/kernel/tool"
	"github.com/agentflow/kernel/transport/a2a"
	"github.com/agentflow/kernel/transport/agui"
	"github.com/agentflow/kernel/transport/devui"
	"github.com/agentflow/kernel/workflow"

	"github.com/agentflow/kernel/observability"
)

// tee splits a single event channel into two independent readers so devui
// and agui can each drain the same run's events without racing for frames.
func tee(in <-chan observability.Event) (<-chan observability.Event, <-chan observability.Event) {
	a := make(chan observability.Event, 32)
	b := make(chan observability.Event, 32)
	go func() {
		defer close(a)
		defer close(b)
		for e := range in {
			a <- e
			b <- e
		}
	}()
	return a, b
}

func newServeCommand() *cobra.Command {
	var (
		workflowPath string
		instructions string
		addr         string
		agentID      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a workflow over the a2a task API, with agui/devui live event feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient(viper.GetString("provider"), viper.GetString("model"))
			if err != nil {
				return err
			}

			newRun := func() (*workflow.Workflow, error) {
				if workflowPath != "" {
					factory := declarative.NewWorkflowFactory()
					factory.RegisterAgentProvider("agent", func(node declarative.NodeSpec) (agentexec.Config, error) {
						return agentexec.Config{Client: client, Instructions: instructions, Tools: tool.NewRegistry(), Terminal: true}, nil
					})
					return factory.CreateWorkflowFromYAMLPath(workflowPath)
				}
				b := workflow.NewBuilder("agentflow-single-agent")
				agentexec.AddTo(b, "agent", agentexec.Config{Client: client, Instructions: instructions, Tools: tool.NewRegistry(), Terminal: true})
				b.SetStart("agent")
				return b.Build()
			}

			broadcaster := agui.NewBroadcaster()
			devServer := devui.NewServer(slog.Default())

			a2aServer := a2a.NewServer(fmt.Sprintf("http://%s", addr))
			a2aServer.RegisterWorkflow(agentID, agentID, "agentflow-hosted agent", func() (*workflow.Runner, error) {
				wf, err := newRun()
				if err != nil {
					return nil, err
				}
				runner, err := workflow.NewRunner(wf)
				if err != nil {
					return nil, err
				}
				devEvents, guiEvents := tee(runner.Events())
				devServer.Watch(wf.Name(), devEvents)
				go broadcaster.Pump(wf.Name(), guiEvents)
				return runner, nil
			})

			mux := http.NewServeMux()
			mux.Handle("/", a2aServer.Handler())
			mux.Handle("/ws", devServer)
			mux.Handle("/agui/", http.StripPrefix("/agui", agui.NewServer(broadcaster).Engine()))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			server := &http.Server{Addr: addr, Handler: mux}
			go func() {
				<-ctx.Done()
				_ = server.Close()
			}()

			fmt.Printf("agentflow serving %s on %s (a2a: /agents, devui: /ws, agui: /agui/events)\n", agentID, addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowPath, "workflow", "", "path to a declarative workflow YAML file; a single terminal agent otherwise")
	cmd.Flags().StringVar(&instructions, "instructions", "", "system instructions for the agent")
	cmd.Flags().StringVar(&addr, "addr", "localhost:8090", "listen address")
	cmd.Flags().StringVar(&agentID, "agent-id", "default", "agent id advertised in the a2a directory")
	return cmd
}
