package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/spf13/cobra"
)

const noAssistantMessage = "(no assistant message)"

func newChatCommand(g *globalFlags) *cobra.Command {
	var thread string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal. Type 'exit' to quit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if thread != "" {
				cfg.SessionID = thread
			}
			logger := newLogger(cfg)

			a, err := newAssistant(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			submit := func(text string) (*core.ConversationState, error) {
				return a.SubmitTurn(cmd.Context(), cfg.SessionID, text)
			}
			return chatLoop(cmd.InOrStdin(), cmd.OutOrStdout(), cfg.SessionID, submit)
		},
	}
	cmd.Flags().StringVarP(&thread, "thread", "t", "", "thread id (overrides SESSION_ID)")
	return cmd
}

// chatLoop reads utterances line by line until EOF or "exit".
func chatLoop(in io.Reader, out io.Writer, threadID string, submit func(string) (*core.ConversationState, error)) error {
	fmt.Fprintln(out, "CLI chatbot ready. Type 'exit' to quit.")
	fmt.Fprintf(out, "thread_id: %s\n", threadID)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\nYou> ")
		if !scanner.Scan() {
			fmt.Fprintln(out, "\nGoodbye!")
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "exit") {
			return nil
		}

		st, err := submit(text)
		if err != nil {
			fmt.Fprintf(out, "\nError> %v\n", err)
			continue
		}
		answer, _ := core.LastAIText(st.Messages)
		if answer == "" {
			answer = noAssistantMessage
		}
		fmt.Fprintf(out, "\nBot> %s\n", answer)
	}
}
