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

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show sync state and document counts",
	Long: `Load the local document, reconcile with the remote when remote_auto is
enabled, and report the resulting sync state.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context(), true)
		defer closeApp()

		st := a.controller.Status()
		doc := a.controller.Document()
		meta := a.store.ReadMetadata()

		if statusJSON {
			printJSON(map[string]any{
				"status":    st,
				"tasks":     len(doc.Tasks),
				"projects":  len(doc.Projects),
				"updatedAt": meta.UpdatedAt,
				"snapshots": len(a.controller.Snapshots()),
			})
			return
		}

		fmt.Printf("%s %s\n", ui.RenderHeader("State:"), ui.RenderState(string(st.State)))
		fmt.Printf("%s %s\n", ui.RenderHeader("Mode: "), st.Mode)
		if st.Message != "" {
			fmt.Printf("       %s\n", st.Message)
		}
		if st.Diverged {
			fmt.Println(ui.RenderWarn("Local copy differs from the remote, run 'todosync sync' to retry."))
		}
		fmt.Println()
		fmt.Printf("%s, %s, last saved %s\n",
			ui.Count(len(doc.Tasks), "task"),
			ui.Count(len(doc.Projects), "project"),
			ui.Ago(meta.UpdatedAt))
		fmt.Printf("%s retained\n", ui.Count(len(a.controller.Snapshots()), "snapshot"))

		if a.controller.Conflict() != nil {
			fmt.Println()
			fmt.Println(ui.RenderWarn("Run 'todosync conflict show' to review the divergence."))
		}
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Upload the local document now",
	Long: `Reconcile with the remote and, if no conflict is pending, upload the
local document immediately instead of waiting for the debounce.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := openApp(ctx, true)
		defer closeApp()

		if err := a.controller.SyncNow(ctx); err != nil {
			switch {
			case errors.Is(err, engine.ErrLocalOnly):
				fatalf("sync mode is %s, run 'todosync mode %s' first", model.ModeLocalOnly, model.ModeRemoteAuto)
			case errors.Is(err, engine.ErrMissingCredential):
				fatalf("no key configured, run 'todosync key set' first")
			case errors.Is(err, engine.ErrConflictPending):
				fatalf("a conflict is pending, run 'todosync conflict resolve' first")
			default:
				fatalf("%s", a.controller.Status().Message)
			}
		}
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), a.controller.Status().Message)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
}

