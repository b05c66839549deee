package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/safeguard/internal/report"
)

var (
	chatJSON    string
	chatTimeout time.Duration
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the base model and gate its answer",
	Long: `Chat sends a question to the configured chat model, evaluates the
answer and only shows it when the decision is ALLOW or ALLOW_WITH_WARNING.

Example:
  safeguard chat "Does egg contain vitamin B12?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatJSON, "json", "", `write the JSON result to a path ("-" for stdout)`)
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 2*time.Minute, "overall timeout")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), chatTimeout)
	defer cancel()

	p, shutdown, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	if !p.ChatEnabled() {
		return fmt.Errorf("no chat model configured: set llm.chat.provider and its API key")
	}

	result, err := p.Chat(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	return writeResult(cmd, chatJSON, result, func(t *report.Terminal) error {
		return t.Chat(result)
	})
}
