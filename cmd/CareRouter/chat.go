package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BTreeMap/CareRouter/internal/messaging"
	"github.com/BTreeMap/CareRouter/internal/models"
	"github.com/BTreeMap/CareRouter/internal/state"
)

var chatFlags struct {
	userID  string
	backend string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Long: `Start an interactive session. Besides ordinary messages the prompt accepts:
  /state  print the conversation state as JSON
  /reset  forget the conversation
  /quit   leave`,
	RunE: runChatCmd,
}

func init() {
	chatCmd.Flags().StringVar(&chatFlags.userID, "user", "terminal-user", "user id for the session")
	chatCmd.Flags().StringVar(&chatFlags.backend, "backend", "", "generation backend: openai, gemini or none (overrides $CARE_BACKEND)")
}

// conversation is the part of flow.Manager the terminal chat uses.
type conversation interface {
	ProcessMessage(ctx context.Context, userID, message string) models.Envelope
	State(ctx context.Context, userID string) (*models.ConversationState, error)
	Reset(ctx context.Context, userID string) error
}

func runChatCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = chatFlags.backend
	}
	// Logs go to stderr so they do not interleave with the conversation.
	if err := initializeLogger(os.Stderr, cfg.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	recCtx, stopRecorder := context.WithCancel(gctx)
	g.Go(func() error { return a.recorder.Run(recCtx) })
	g.Go(func() error {
		defer stopRecorder()
		return runChat(gctx, a.manager, chatFlags.userID, cmd.InOrStdin(), cmd.OutOrStdout())
	})
	return g.Wait()
}

// runChat reads messages from in until EOF or /quit and writes each reply to out.
func runChat(ctx context.Context, conv conversation, userID string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "CareRouter chat as %s. Type /quit to leave.\n", userID)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), models.MaxMessageLength*4)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/state":
			printState(ctx, conv, userID, out)
			continue
		case "/reset":
			if err := conv.Reset(ctx, userID); err != nil {
				fmt.Fprintf(out, "reset failed: %v\n", err)
			} else {
				fmt.Fprintln(out, "Conversation reset.")
			}
			continue
		}
		if utf8.RuneCountInString(line) > models.MaxMessageLength {
			fmt.Fprintf(out, "Message too long (max %d characters)\n", models.MaxMessageLength)
			continue
		}

		env := conv.ProcessMessage(ctx, userID, line)
		fmt.Fprintf(out, "\n%s\n\n", messaging.FormatReply(env))
		if ctx.Err() != nil {
			return nil
		}
	}
}

func printState(ctx context.Context, conv conversation, userID string, out io.Writer) {
	st, err := conv.State(ctx, userID)
	if errors.Is(err, state.ErrNotFound) {
		fmt.Fprintln(out, "No conversation yet.")
		return
	}
	if err != nil {
		fmt.Fprintf(out, "state unavailable: %v\n", err)
		return
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "state unavailable: %v\n", err)
		return
	}
	fmt.Fprintln(out, string(data))
}
