// Command todosync is a personal task and project tracker that keeps a local
// document in sync with an optional remote document store.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	dataDir    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "todosync",
	Short: "Task and project tracker with optional remote sync",
	Long: `todosync keeps your tasks and projects in a local database and, in
remote_auto mode, mirrors them to a remote document store.

Every change is saved locally first. Uploads are batched: a burst of edits
produces a single remote save once things go quiet. If the local and remote
copies have diverged when todosync starts, it stops uploading and asks you
to pick a side with 'todosync conflict resolve'.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $TODOSYNC_HOME/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the local database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log sync activity to stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "work", Title: "Tasks and projects:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "advanced", Title: "Servers and setup:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fatalf reports an error, releases the open app and exits.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	closeApp()
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("failed to encode output: %v", err)
	}
}
