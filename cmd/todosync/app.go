package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jos-todo/todosync/internal/config"
	"github.com/jos-todo/todosync/internal/engine"
	"github.com/jos-todo/todosync/internal/logging"
	"github.com/jos-todo/todosync/internal/remote"
	"github.com/jos-todo/todosync/internal/store"
)

// closeTimeout bounds the final upload when a command exits.
const closeTimeout = 30 * time.Second

// app is the wiring shared by commands that work on the document.
type app struct {
	cfg        *config.Config
	logs       *logging.Factory
	store      *store.Store
	client     *remote.Client
	controller *engine.Controller
}

var current *app

// loadConfig reads the config file and applies --data-dir.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatalf("%v", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg
}

// newLogs returns the log factory: quiet unless --verbose or a log file is
// configured, since command output goes to the terminal.
func newLogs(cfg *config.Config) *logging.Factory {
	logs, err := logging.New(logging.Options{
		File:      cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Quiet:     !verbose && cfg.Log.File == "",
	})
	if err != nil {
		fatalf("%v", err)
	}
	return logs
}

// newDaemonLogs always logs, to the configured file or stderr.
func newDaemonLogs(cfg *config.Config) *logging.Factory {
	logs, err := logging.New(logging.Options{
		File:      cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB,
	})
	if err != nil {
		fatalf("%v", err)
	}
	return logs
}

// openApp opens the local store and controller. With start set, the
// controller loads the document and reconciles with the remote.
func openApp(ctx context.Context, start bool) *app {
	cfg := loadConfig()
	return openAppWith(ctx, cfg, newLogs(cfg), start)
}

func openAppWith(ctx context.Context, cfg *config.Config, logs *logging.Factory, start bool) *app {
	st, err := store.Open(cfg.DatabasePath(), logs.Logger("store"))
	if err != nil {
		fatalf("failed to open local store: %v", err)
	}

	a := &app{cfg: cfg, logs: logs, store: st}
	current = a

	if cfg.Remote.URL != "" {
		client, err := remote.NewClient(remote.Config{
			BaseURL:    cfg.Remote.URL,
			Credential: st.Credential,
			Logger:     logs.Logger("remote"),
		})
		if err != nil {
			fatalf("%v", err)
		}
		a.client = client
	}

	ecfg := engine.Config{
		Store:    st,
		Debounce: cfg.Remote.Debounce,
		Logger:   logs.Logger("engine"),
	}
	// A nil *remote.Client must not become a non-nil interface.
	if a.client != nil {
		ecfg.Remote = a.client
	}
	c, err := engine.New(ecfg)
	if err != nil {
		fatalf("%v", err)
	}
	a.controller = c

	if start {
		c.Start(ctx)
	}
	return a
}

// close flushes pending uploads and releases the store.
func (a *app) close() {
	if a.controller != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := a.controller.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
}

func closeApp() {
	if current != nil {
		a := current
		current = nil
		a.close()
	}
}
