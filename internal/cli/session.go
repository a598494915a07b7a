package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/coopchat-go/internal/domain/ports"
	"github.com/0xcro3dile/coopchat-go/internal/domain/usecases"
)

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show the stage and collected facts of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, d := range App.Chatbot.Domains() {
			res, err := App.Chatbot.Status(cmd.Context(), d, args[0])
			if errors.Is(err, ports.ErrSessionNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			printStatus(res)
			return nil
		}
		return fmt.Errorf("session %s: %w", args[0], ports.ErrSessionNotFound)
	},
}

func printStatus(res usecases.Result) {
	fmt.Fprintf(out, "session:  %s\ndomain:   %s\nstage:    %s\nprogress: %d/%d\n",
		res.SessionID, res.Domain, res.Stage, res.Progress.Collected, res.Progress.Total)
	if res.RecordID != "" {
		fmt.Fprintf(out, "record:   %s\n", res.RecordID)
	}
	if len(res.LinkedRecordIDs) > 0 {
		fmt.Fprintf(out, "linked:   %s\n", strings.Join(res.LinkedRecordIDs, ", "))
	}
	if len(res.Missing) > 0 {
		fmt.Fprintf(out, "missing:  %s\n", strings.Join(res.Missing, ", "))
	}
	if keys := res.Facts.Keys(); len(keys) > 0 {
		fmt.Fprintln(out, "facts:")
		for _, k := range keys {
			fmt.Fprintf(out, "  %s: %v\n", k, res.Facts[k])
		}
	}
}

var abandonIdleFor time.Duration

var abandonCmd = &cobra.Command{
	Use:   "abandon [session-id]",
	Short: "Abandon one session or every idle session",
	Long: `Mark a session as abandoned. Without a session id, every open session
idle for longer than --idle-for (default chat.session_ttl) is abandoned.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			if err := App.Chatbot.Abandon(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(out, "Abandoned session %s\n", args[0])
			return nil
		}

		idleFor := abandonIdleFor
		if idleFor <= 0 {
			idleFor = App.Config.Chat.SessionTTL
		}
		if idleFor <= 0 {
			return errors.New("--idle-for is required when chat.session_ttl is disabled")
		}
		n, err := App.Chatbot.AbandonIdle(cmd.Context(), idleFor)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Abandoned %d idle sessions\n", n)
		return nil
	},
}

func init() {
	abandonCmd.Flags().DurationVar(&abandonIdleFor, "idle-for", 0, "abandon sessions idle for longer than this")
	rootCmd.AddCommand(statusCmd, abandonCmd)
}
