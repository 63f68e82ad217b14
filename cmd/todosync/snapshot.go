package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jos-todo/todosync/internal/engine"
	"github.com/jos-todo/todosync/internal/model"
	"github.com/jos-todo/todosync/internal/ui"
)

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	GroupID: "sync",
	Short:   "List and restore conflict snapshots",
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retained snapshots, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context(), false)
		defer closeApp()

		snaps := a.controller.Snapshots()
		if len(snaps) == 0 {
			fmt.Println(ui.RenderMuted("No snapshots."))
			return
		}

		rows := make([][]string, 0, len(snaps))
		for _, s := range snaps {
			created := s.CreatedAt
			rows = append(rows, []string{
				shortID(model.ID(s.ID)),
				ui.Ago(&created),
				describeReason(s.Reason),
				fmt.Sprintf("%d/%d", len(s.State.Tasks), len(s.State.Projects)),
			})
		}
		fmt.Print(ui.Table([]string{"ID", "TAKEN", "BEFORE", "TASKS/PROJECTS"}, rows))
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore [id]",
	Short: "Replace the document with a snapshot",
	Long: `Replace the local document with a retained snapshot, the newest one when
no id is given. In remote_auto mode with a key configured, the restored
document is uploaded immediately.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := openApp(ctx, true)
		defer closeApp()

		snaps := a.controller.Snapshots()
		if len(snaps) == 0 {
			fatalf("no snapshots retained")
		}

		id := snaps[0].ID
		if len(args) == 1 {
			id = args[0]
			var matches []string
			for _, s := range snaps {
				if strings.HasPrefix(s.ID, id) {
					matches = append(matches, s.ID)
				}
			}
			if len(matches) > 1 {
				fatalf("snapshot id %q is ambiguous", id)
			}
			if len(matches) == 1 {
				id = matches[0]
			}
		}

		if _, err := a.controller.RestoreSnapshot(ctx, id); err != nil {
			if errors.Is(err, engine.ErrSnapshotNotFound) {
				fatalf("no snapshot matches %q", id)
			}
			fatalf("%v", err)
		}
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), a.controller.Status().Message)
	},
}

func describeReason(r model.SnapshotReason) string {
	switch r {
	case model.ReasonBeforeLocalOverwriteRemote:
		return "keeping local"
	case model.ReasonBeforeRemoteOverwriteLocal:
		return "keeping remote"
	}
	return string(r)
}

func init() {
	snapshotCmd.AddCommand(snapshotListCmd, snapshotRestoreCmd)
	rootCmd.AddCommand(snapshotCmd)
}
