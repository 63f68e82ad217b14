package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jos-todo/todosync/internal/dashboard"
	"github.com/jos-todo/todosync/internal/ui"
	"github.com/jos-todo/todosync/internal/watch"
)

var (
	dashboardPort int
	runImportDir  string
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Stream sync status over WebSocket",
	Long: `Start the sync controller and a WebSocket server that pushes every status
change and document statistics to connected clients.

Connect with any WebSocket client:
  websocat ws://localhost:8080/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, srv, handler := startDashboard(ctx)
		defer closeApp()
		defer srv.Stop()

		fmt.Println("Press Ctrl+C to stop")
		handler.Run(ctx, a.controller)
		fmt.Println("\nDashboard stopped")
	},
}

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: "advanced",
	Short:   "Run the controller, dashboard and import watcher together",
	Long: `Keep the sync controller running with the status dashboard attached. When
watch.import_dir is set, JSON and YAML backups dropped into that directory
replace the document once they stop changing, and are renamed with an
.imported or .failed suffix.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, srv, handler := startDashboard(ctx)
		defer closeApp()
		defer srv.Stop()

		dir := a.cfg.Watch.ImportDir
		if runImportDir != "" {
			dir = runImportDir
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			handler.Run(gctx, a.controller)
			return nil
		})

		if dir != "" {
			wcfg := watch.DefaultConfig()
			wcfg.Logger = a.logs.Logger("watch")
			fw, err := watch.NewFileWatcher(wcfg)
			if err != nil {
				fatalf("%v", err)
			}
			if err := fw.Start(dir); err != nil {
				fatalf("%v", err)
			}
			defer fw.Stop()
			fmt.Printf("%s Watching %s for backups\n", ui.RenderPass("✓"), ui.RenderAccent(fw.Dir()))

			apply := func(ctx context.Context, ev watch.FileEvent) error {
				doc, err := readBackup(ev.Path)
				if err != nil {
					return err
				}
				return a.controller.Import(doc)
			}
			done := func(ev watch.FileEvent, err error) {
				tasks := 0
				if err == nil {
					tasks = len(a.controller.Document().Tasks)
				}
				handler.OnImport(ev.Path, tasks, err)
			}
			g.Go(func() error {
				watch.Consume(gctx, fw, apply, done, a.logs.Logger("watch"))
				return nil
			})
		}

		fmt.Println("Press Ctrl+C to stop")
		if err := g.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		fmt.Println("\nStopped")
	},
}

// startDashboard opens the controller and starts the WebSocket server.
func startDashboard(ctx context.Context) (*app, *dashboard.Server, *dashboard.Handler) {
	cfg := loadConfig()
	if dashboardPort != 0 {
		cfg.Dashboard.Port = dashboardPort
	}
	logs := newDaemonLogs(cfg)
	a := openAppWith(ctx, cfg, logs, true)

	dcfg := dashboard.DefaultConfig()
	dcfg.Port = cfg.Dashboard.Port
	dcfg.Logger = logs.Logger("dashboard")
	srv := dashboard.NewServer(dcfg)
	if err := srv.Start(); err != nil {
		fatalf("failed to start dashboard: %v", err)
	}

	st := a.controller.Status()
	fmt.Printf("%s Dashboard on %s (%s)\n", ui.RenderPass("✓"),
		ui.RenderAccent("ws://"+srv.Addr()+"/ws"), ui.RenderState(string(st.State)))
	return a, srv, dashboard.NewHandler(srv, logs.Logger("dashboard"))
}

func init() {
	for _, c := range []*cobra.Command{dashboardCmd, runCmd} {
		c.Flags().IntVar(&dashboardPort, "port", 0, "dashboard port (default dashboard.port)")
	}
	runCmd.Flags().StringVar(&runImportDir, "import-dir", "", "directory to watch for backups (default watch.import_dir)")
	rootCmd.AddCommand(dashboardCmd, runCmd)
}
