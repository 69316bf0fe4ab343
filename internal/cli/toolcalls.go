package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/classpilot/tool-runtime/internal/apiclient"
	"github.com/classpilot/tool-runtime/internal/config"
)

func newCallCommand() *cobra.Command {
	var argsJSON string
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Dispatch a tool call through the runtime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New(config.FromEnv())
			outcome, err := client.DispatchToolCall(cmd.Context(), args[0], json.RawMessage(argsJSON))
			if err != nil {
				return err
			}
			if outcome.Deferred() {
				cmd.Printf("awaiting confirmation: %s (expires %s)\n",
					outcome.PendingID, time.Unix(outcome.ExpiresAtUnix, 0).UTC().Format(time.RFC3339))
				return nil
			}
			cmd.Println(outcome.Result)
			return nil
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "", "tool arguments as a JSON object")
	return cmd
}

func newPendingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List tool calls awaiting confirmation",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New(config.FromEnv())
			items, err := client.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				cmd.Println("no pending confirmations")
				return nil
			}
			for _, item := range items {
				cmd.Printf("%s  %s  expires=%s  args=%s\n",
					item.PendingID,
					item.Tool,
					time.Unix(item.ExpiresAtUnix, 0).UTC().Format(time.RFC3339),
					string(item.Arguments),
				)
			}
			return nil
		},
	}
}

func newApproveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <pending-id>",
		Short: "Approve a pending tool call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New(config.FromEnv())
			result, err := client.Approve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Println(result)
			return nil
		},
	}
}

func newDenyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deny <pending-id>",
		Short: "Deny a pending tool call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New(config.FromEnv())
			result, err := client.Deny(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Println(result)
			return nil
		},
	}
}

func newTasksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List scheduled tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New(config.FromEnv())
			tasks, err := client.ListScheduledTasks(cmd.Context())
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				cmd.Println("no scheduled tasks")
				return nil
			}
			for _, task := range tasks {
				line := fmt.Sprintf("%s  %s=%q  status=%s", task.ID, task.TriggerType, task.TriggerValue, task.Status)
				if task.NextRunUnix > 0 {
					line += "  next=" + time.Unix(task.NextRunUnix, 0).UTC().Format(time.RFC3339)
				}
				if task.LastError != "" {
					line += "  last_error=" + task.LastError
				}
				cmd.Println(line)
			}
			return nil
		},
	}
}

func newToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New(config.FromEnv())
			items, err := client.ListTools(cmd.Context())
			if err != nil {
				return err
			}
			for _, item := range items {
				marker := " "
				if item.RequiresConfirmation {
					marker = "!"
				}
				cmd.Printf("%s %s  %s\n", marker, item.Name, item.Description)
			}
			return nil
		},
	}
}
