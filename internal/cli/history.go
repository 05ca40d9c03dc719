package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/crew"
)

type historyOptions struct {
	Output string
}

func newHistoryCmd(state *cliState) *cobra.Command {
	var options historyOptions

	cmd := &cobra.Command{
		Use:   "history [session-id] [flags]",
		Short: "List sessions or show the messages of one session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if options.Output != "text" && options.Output != "json" {
				return fmt.Errorf("unsupported output format %q", options.Output)
			}

			store, err := crew.OpenStore(state.cfg.Checkpoint, state.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if len(args) == 0 {
				infos, err := store.List(cmd.Context())
				if err != nil {
					return err
				}

				if options.Output == "json" {
					return writeJSON(out, infos)
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SESSION\tMESSAGES\tUPDATED")
				for _, info := range infos {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", info.SessionID, info.Messages, info.UpdatedAt.Local().Format(time.DateTime))
				}
				return tw.Flush()
			}

			log, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if len(log) == 0 {
				return fmt.Errorf("session %s not found", args[0])
			}

			if options.Output == "json" {
				return writeJSON(out, log)
			}

			printLog(out, log)

			return nil
		},
	}

	cmd.Flags().StringVarP(&options.Output, "output", "o", "text", "output format (text, json)")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLog(w io.Writer, log core.Log) {
	for _, msg := range log {
		who := string(msg.Role)
		if msg.Author != "" {
			who += "/" + msg.Author
		}

		switch {
		case msg.HasToolCalls():
			names := make([]string, len(msg.ToolCalls))
			for i, c := range msg.ToolCalls {
				names[i] = fmt.Sprintf("%s(%s)", c.Name, string(c.Arguments))
			}
			if msg.Content != "" {
				fmt.Fprintf(w, "[%s] %s\n", who, msg.Content)
			}
			fmt.Fprintf(w, "[%s] calls %s\n", who, strings.Join(names, ", "))
		case msg.Role == core.RoleTool:
			status := "result"
			if msg.IsError {
				status = "error"
			}
			fmt.Fprintf(w, "[%s] %s %s: %s\n", who, status, msg.ToolCallID, msg.Content)
		default:
			fmt.Fprintf(w, "[%s] %s\n", who, msg.Content)
		}
	}
}
