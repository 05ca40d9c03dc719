package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/crew"
	"github.com/hupe1980/agentcrew/model"
)

type chatOptions struct {
	SessionID string
	Message   string
	Stream    bool
}

func newChatCmd(state *cliState) *cobra.Command {
	var options chatOptions

	cmd := &cobra.Command{
		Use:   "chat [flags]",
		Short: "Chat with the crew",
		Example: `  # Start an interactive session
  agentcrew chat

  # Ask a single question and resume the session later
  agentcrew chat --session sales -m "What was the revenue per shopping mall?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			c, err := crew.Open(state.cfg, func(o *crew.OpenOptions) {
				o.Model = state.deps.model
				o.Logger = state.logger
				if options.Stream {
					o.OnPartial = func(agentName string, chunk model.Response) {
						if agentName == crew.SupervisorName {
							fmt.Fprint(out, chunk.Message.Content)
						}
					}
				}
			})
			if err != nil {
				return err
			}
			defer c.Close()

			sessionID := options.SessionID
			if sessionID == "" {
				sessionID = core.NewID()
			}

			ask := func(input string) error {
				res, err := c.Runner.Run(cmd.Context(), sessionID, input)
				if res == nil {
					return err
				}

				if options.Stream {
					fmt.Fprintln(out)
				} else {
					fmt.Fprintln(out, res.Final.Content)
				}

				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "run ended with outcome %s: %v\n", res.Outcome, err)
				}

				return cmd.Context().Err()
			}

			if options.Message != "" {
				return ask(options.Message)
			}

			fmt.Fprintf(out, "Session %s. Type 'exit' to quit.\n", sessionID)

			return repl(cmd.InOrStdin(), out, ask)
		},
	}

	cmd.Flags().StringVar(&options.SessionID, "session", "", "session id to resume (default: new session)")
	cmd.Flags().StringVarP(&options.Message, "message", "m", "", "send a single message and exit")
	cmd.Flags().BoolVar(&options.Stream, "stream", false, "stream the supervisor's answer as it is generated")

	return cmd
}

func repl(in io.Reader, out io.Writer, ask func(string) error) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

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
		case "exit", "quit":
			return nil
		}

		if err := ask(line); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, core.ErrAborted) {
				return err
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}
