package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/classpilot/tool-runtime/internal/app"
	"github.com/classpilot/tool-runtime/internal/config"
)

const version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "tool-runtime",
		Short: "Tool runtime is a confirmation-gated tool dispatch service for LLM agents",
	}

	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newCallCommand())
	root.AddCommand(newPendingCommand())
	root.AddCommand(newApproveCommand())
	root.AddCommand(newDenyCommand())
	root.AddCommand(newTasksCommand())
	root.AddCommand(newToolsCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tool dispatch service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
