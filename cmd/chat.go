package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	statex "github.com/tanpawarit/table-reservation-agent/agent/state"
)

const historyLines = 10

func newChatCmd() *cobra.Command {
	var (
		identity  contractx.Identity
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent in the terminal",
		Long:  "Talk to the agent in the terminal. /history shows recent turns, /reset starts over, /quit exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s\n", sessionID)

			in := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !in.Scan() {
					return in.Err()
				}
				line := strings.TrimSpace(in.Text())
				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				case "/history":
					summary, err := a.agent.Summary(ctx, sessionID, historyLines)
					if err != nil && !errors.Is(err, statex.ErrStateNotFound) {
						return err
					}
					if summary == "" {
						summary = "(no messages yet)"
					}
					fmt.Fprintln(out, summary)
					continue
				case "/reset":
					if err := a.agent.Reset(ctx, sessionID); err != nil {
						return err
					}
					fmt.Fprintln(out, "(conversation cleared)")
					continue
				}

				reply, err := a.agent.ProcessTurn(ctx, sessionID, line, identity)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				fmt.Fprintln(out, reply)
			}
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "resume a session id")
	cmd.Flags().StringVar(&identity.UserID, "user-id", "", "signed-in user id")
	cmd.Flags().StringVar(&identity.DisplayName, "name", "", "name used for reservations")
	cmd.Flags().StringVar(&identity.Email, "email", "", "email used for reservations")
	return cmd
}
