// Command agentflow hosts agentflow workflows: run one against a prompt
// from the command line, or serve one over the a2a/agui/devui transports.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		provider string
		model    string
		envFile  string
		verbose  bool
	)

	root := &cobra.Command{
		Use:   "agentflow",
		Short: "Run and serve agentflow workflows",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load env file %s: %w", envFile, err)
				}
			} else {
				// A missing default .env is not an error; credentials may
				// already be in the environment.
				_ = godotenv.Load()
			}

			viper.SetConfigName("agentflow")
			viper.SetConfigType("yaml")
			viper.AddConfigPath(".")
			viper.AddConfigPath("$HOME/.config/agentflow")
			viper.SetEnvPrefix("AGENTFLOW")
			viper.AutomaticEnv()
			if err := viper.ReadInConfig(); err != nil {
				if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
					return fmt.Errorf("read config: %w", err)
				}
			}
			if viper.GetBool("verbose") {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&provider, "provider", "openai", "chat model provider: openai, anthropic, bedrock, ollama")
	root.PersistentFlags().StringVar(&model, "model", "", "model name (provider-specific default if empty)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default: ./.env if present)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	viper.BindPFlag("provider", root.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("model", root.PersistentFlags().Lookup("model"))
	viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(newRunCommand())
	root.AddCommand(newServeCommand())
	return root
}
