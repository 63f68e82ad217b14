package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jos-todo/todosync/internal/model"
	"github.com/jos-todo/todosync/internal/remote"
	"github.com/jos-todo/todosync/internal/ui"
)

var modeCmd = &cobra.Command{
	Use:     "mode [local_only|remote_auto]",
	GroupID: "sync",
	Short:   "Show or change the sync mode",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context(), false)
		defer closeApp()

		choice := ""
		switch {
		case len(args) == 1:
			choice = args[0]
		case interactive():
			var err error
			choice, err = choose("Sync mode",
				[2]string{string(model.ModeLocalOnly), "Local only (never contact the remote)"},
				[2]string{string(model.ModeRemoteAuto), "Remote auto (upload changes automatically)"},
			)
			if err != nil {
				fatalf("%v", err)
			}
		default:
			fmt.Println(a.controller.Mode())
			return
		}

		if choice != string(model.ModeLocalOnly) && choice != string(model.ModeRemoteAuto) {
			fatalf("unknown mode %q (want %s or %s)", choice, model.ModeLocalOnly, model.ModeRemoteAuto)
		}
		if err := a.controller.SetMode(model.Mode(choice)); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Sync mode set to %s\n", ui.RenderPass("✓"), ui.RenderAccent(choice))
		if choice == string(model.ModeRemoteAuto) && a.cfg.Remote.URL == "" {
			fmt.Println(ui.RenderWarn("No remote.url configured, todosync will keep working locally."))
		}
	},
}

var keyCmd = &cobra.Command{
	Use:     "key",
	GroupID: "sync",
	Short:   "Manage the shared secret sent to the remote",
}

var keySetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store the shared secret",
	Long: `Store the shared secret used to authenticate with the remote. Without an
argument the key is read from stdin, hidden when stdin is a terminal.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			var err error
			key, err = readSecret("Key: ")
			if err != nil {
				fatalf("%v", err)
			}
		}
		if key == "" {
			fatalf("key is empty, use 'todosync key clear' to remove it")
		}

		a := openApp(cmd.Context(), false)
		defer closeApp()

		if err := a.controller.SetCredential(key); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Key saved\n", ui.RenderPass("✓"))
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored shared secret",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context(), false)
		defer closeApp()

		if err := a.controller.ClearCredential(); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Key cleared\n", ui.RenderPass("✓"))
	},
}

var keyVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the stored key against the remote",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := openApp(ctx, false)
		defer closeApp()

		if a.client == nil {
			fatalf("no remote.url configured")
		}
		if a.store.Credential() == "" {
			fatalf("no key configured, run 'todosync key set' first")
		}

		if err := a.client.Verify(ctx); err != nil {
			if remote.IsAuth(err) {
				fatalf("the remote rejected the key")
			}
			fatalf("%v", err)
		}
		fmt.Printf("%s Key accepted by %s\n", ui.RenderPass("✓"), a.cfg.Remote.URL)
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyClearCmd, keyVerifyCmd)
	rootCmd.AddCommand(modeCmd, keyCmd)
}
