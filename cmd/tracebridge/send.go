package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/tracebridge/pkg/cli"
	"mercator-hq/tracebridge/pkg/trace"
)

var sendFlags struct {
	email            string
	chatID           string
	role             string
	response         string
	model            string
	sessionID        string
	promptTokens     int
	completionTokens int
	format           string
}

var sendCmd = &cobra.Command{
	Use:   "send MESSAGE",
	Short: "Deliver one trace event to the collector",
	Long: `Deliver a single user message or assistant response to the configured
collector and print the result.

Without --session the event goes through a fresh conversation: the session id
follows the configured mint policy. With --session the id is sent verbatim.

Examples:
  # User message
  tracebridge send --email ada@example.com --chat chat-1 "How do I reset my password?"

  # Assistant response with usage
  tracebridge send --role assistant --chat chat-1 --model gpt-4o \
    --response "Open settings and choose Reset." \
    --prompt-tokens 12 --completion-tokens 9 "How do I reset my password?"

  # Continue an existing session
  tracebridge send --chat chat-1 --session 6f1c... "And my username?"`,
	Args: cobra.ExactArgs(1),
	RunE: sendEvent,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendFlags.email, "email", "", "user email (default anonymous)")
	sendCmd.Flags().StringVar(&sendFlags.chatID, "chat", "", "chat id (default unknown)")
	sendCmd.Flags().StringVar(&sendFlags.role, "role", string(trace.RoleUser), "event role: user, assistant")
	sendCmd.Flags().StringVar(&sendFlags.response, "response", "", "assistant response text (role assistant)")
	sendCmd.Flags().StringVar(&sendFlags.model, "model", "", "model that produced the response")
	sendCmd.Flags().StringVar(&sendFlags.sessionID, "session", "", "send under this session id")
	sendCmd.Flags().IntVar(&sendFlags.promptTokens, "prompt-tokens", 0, "prompt token count")
	sendCmd.Flags().IntVar(&sendFlags.completionTokens, "completion-tokens", 0, "completion token count")
	sendCmd.Flags().StringVar(&sendFlags.format, "format", "text", "output format: text, json")
}

type sendOutput struct {
	trace.Result
	ChatID    string `json:"chatId"`
	SessionID string `json:"sessionId,omitempty"`
}

func (o sendOutput) String() string {
	if !o.Success {
		return fmt.Sprintf("✗ delivery failed: %s", o.Error)
	}
	return fmt.Sprintf("✓ delivered (chat %s, session %s)", o.ChatID, orNone(o.SessionID))
}

func sendEvent(cmd *cobra.Command, args []string) error {
	role := trace.Role(sendFlags.role)
	if !role.Valid() {
		return fmt.Errorf("invalid role %q (expected user or assistant)", sendFlags.role)
	}
	if role == trace.RoleAssistant && sendFlags.response == "" {
		return fmt.Errorf("--response is required for assistant events")
	}

	formatter, err := cli.NewFormatter(cli.OutputFormat(sendFlags.format))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := buildStack(cfg, os.Stderr)
	if err != nil {
		return cli.NewCommandError("send", err)
	}
	defer s.Close()

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	var usage *trace.Usage
	if sendFlags.promptTokens > 0 || sendFlags.completionTokens > 0 {
		usage = &trace.Usage{
			PromptTokens:     sendFlags.promptTokens,
			CompletionTokens: sendFlags.completionTokens,
		}
	}

	message := args[0]
	out := sendOutput{ChatID: sendFlags.chatID, SessionID: sendFlags.sessionID}

	if sendFlags.sessionID != "" {
		switch role {
		case trace.RoleAssistant:
			out.Result = s.client.SendAssistantResponse(ctx, sendFlags.email, message, sendFlags.response,
				sendFlags.chatID, sendFlags.model, usage, sendFlags.sessionID)
		default:
			out.Result = s.client.SendUserMessage(ctx, sendFlags.email, message, sendFlags.chatID, sendFlags.sessionID)
		}
	} else {
		conversation := s.registry.Get(sendFlags.email, sendFlags.chatID)
		switch role {
		case trace.RoleAssistant:
			out.Result = conversation.TraceAssistantResponse(ctx, message, sendFlags.response, sendFlags.model, usage)
		default:
			out.Result = conversation.TraceUserMessage(ctx, message)
		}
		out.ChatID = conversation.ChatID()
		out.SessionID = conversation.SessionID()
	}
	if out.ChatID == "" {
		out.ChatID = trace.UnknownChatID
	}

	if err := formatter.FormatTo(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if !out.Success {
		return cli.NewCommandError("send", fmt.Errorf("%s", out.Error))
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
