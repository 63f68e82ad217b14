package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jos-todo/todosync/internal/remote/server"
	"github.com/jos-todo/todosync/internal/ui"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "advanced",
	Short:   "Run the reference remote document server",
	Long: `Serve the remote document protocol (state-get, state-save, state-migrate,
auth-verify) from a local SQLite database. Requests must carry the shared
secret configured as server.magic_key or server.magic_key_hash.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if cfg.Server.MagicKey == "" && cfg.Server.MagicKeyHash == "" {
			fatalf("set server.magic_key or server.magic_key_hash (or TODOSYNC_SERVER_MAGIC_KEY)")
		}

		logs := newDaemonLogs(cfg)
		defer logs.Close()

		if err := os.MkdirAll(filepath.Dir(cfg.Server.Database), 0o750); err != nil {
			fatalf("failed to create %s: %v", filepath.Dir(cfg.Server.Database), err)
		}
		state, err := server.OpenStateDB(cfg.Server.Database)
		if err != nil {
			fatalf("%v", err)
		}
		defer state.Close()

		srv := server.New(state, server.Config{
			Addr:         cfg.Server.Addr,
			MagicKey:     cfg.Server.MagicKey,
			MagicKeyHash: cfg.Server.MagicKeyHash,
			Logger:       logs.Logger("server"),
		})
		if err := srv.Start(); err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Serving %s on %s\n", ui.RenderPass("✓"), cfg.Server.Database, ui.RenderAccent(srv.Addr()))
		fmt.Println("Press Ctrl+C to stop")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		fmt.Println("\nServer stopped")
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr)")
	rootCmd.AddCommand(serveCmd)
}
