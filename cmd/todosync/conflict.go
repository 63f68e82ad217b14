package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jos-todo/todosync/internal/engine"
	"github.com/jos-todo/todosync/internal/model"
	"github.com/jos-todo/todosync/internal/ui"
)

var conflictCmd = &cobra.Command{
	Use:     "conflict",
	GroupID: "sync",
	Short:   "Inspect and resolve a local/remote divergence",
}

var conflictShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Describe the pending conflict",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context(), true)
		defer closeApp()

		conflict := a.controller.Conflict()
		if conflict == nil {
			fmt.Println(ui.RenderPass("No conflict pending."))
			return
		}
		fmt.Println(renderConflict(conflict.Summary))
	},
}

var conflictResolveCmd = &cobra.Command{
	Use:   "resolve [local|remote]",
	Short: "Keep one side of the pending conflict",
	Long: `Keep either the local or the remote copy. The copy that is about to be
replaced is saved as a snapshot first, so either choice can be undone with
'todosync snapshot restore'.

Without an argument you are asked interactively.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := openApp(ctx, true)
		defer closeApp()

		conflict := a.controller.Conflict()
		if conflict == nil {
			fmt.Println(ui.RenderPass("No conflict pending."))
			return
		}

		choice := ""
		if len(args) == 1 {
			choice = args[0]
		} else {
			if !interactive() {
				fatalf("specify local or remote")
			}
			fmt.Println(renderConflict(conflict.Summary))
			var err error
			choice, err = choose("Which copy do you want to keep?",
				[2]string{string(engine.StrategyLocal), "Keep local (overwrite remote)"},
				[2]string{string(engine.StrategyRemote), "Keep remote (overwrite local)"},
			)
			if err != nil {
				fatalf("%v", err)
			}
		}

		strategy, ok := engine.ParseStrategy(choice)
		if !ok {
			fatalf("unknown strategy %q (want local or remote)", choice)
		}

		if _, err := a.controller.ResolveConflict(ctx, strategy); err != nil {
			if errors.Is(err, engine.ErrNoConflict) {
				fmt.Println(ui.RenderPass("No conflict pending."))
				return
			}
			fatalf("%v", err)
		}

		st := a.controller.Status()
		if st.State == engine.StateRemoteError {
			fmt.Printf("%s %s\n", ui.RenderWarn("!"), st.Message)
			return
		}
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), st.Message)
	},
}

func renderConflict(s model.ConflictSummary) string {
	body := fmt.Sprintf("%s\n\n%s  %s, %s, updated %s\n%s %s, %s, updated %s",
		ui.RenderWarn("Local and remote copies differ."),
		ui.RenderHeader("Local:"),
		ui.Count(s.LocalTaskCount, "task"), ui.Count(s.LocalProjectCount, "project"), ui.Ago(s.LocalUpdatedAt),
		ui.RenderHeader("Remote:"),
		ui.Count(s.RemoteTaskCount, "task"), ui.Count(s.RemoteProjectCount, "project"), ui.Ago(s.RemoteUpdatedAt),
	)
	return ui.RenderBox(body)
}

func init() {
	conflictCmd.AddCommand(conflictShowCmd, conflictResolveCmd)
	rootCmd.AddCommand(conflictCmd)
}
