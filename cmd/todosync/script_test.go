package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/tools/txtar"
	"rsc.io/script"
	"rsc.io/script/scripttest"

	"github.com/jos-todo/todosync/internal/model"
	"github.com/jos-todo/todosync/internal/remote/server"
)

// runMainEnv makes the test binary act as the todosync command, so scripts
// run the real CLI in a child process.
const runMainEnv = "TODOSYNC_TEST_MAIN"

const scriptKey = "secret"

func TestMain(m *testing.M) {
	if os.Getenv(runMainEnv) == "1" {
		main()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// TestScripts runs every testdata/script/*.txt against a fresh local home
// and a fresh reference server.
func TestScripts(t *testing.T) {
	if testing.Short() {
		t.Skip("script tests start a child process per command")
	}
	bin, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable() failed: %v", err)
	}

	files, err := filepath.Glob(filepath.Join("testdata", "script", "*.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no scripts found")
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".txt")
		t.Run(name, func(t *testing.T) {
			ar, err := txtar.ParseFile(file)
			if err != nil {
				t.Fatalf("failed to parse %s: %v", file, err)
			}

			state, err := server.OpenStateDB(filepath.Join(t.TempDir(), "remote.db"))
			if err != nil {
				t.Fatalf("OpenStateDB() failed: %v", err)
			}
			t.Cleanup(func() { _ = state.Close() })

			srv := server.New(state, server.Config{
				MagicKey: scriptKey,
				Logger:   log.New(io.Discard, "", 0),
			})
			ts := httptest.NewServer(srv.Handler())
			t.Cleanup(ts.Close)

			work := t.TempDir()
			for _, f := range ar.Files {
				path := filepath.Join(work, filepath.FromSlash(f.Name))
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(path, f.Data, 0o644); err != nil {
					t.Fatal(err)
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			s, err := script.NewState(ctx, work, []string{
				"WORK=" + work,
				"HOME=" + work,
				"PATH=" + os.Getenv("PATH"),
				"NO_COLOR=1",
				runMainEnv + "=1",
				"TODOSYNC_HOME=" + filepath.Join(work, "home"),
				"TODOSYNC_REMOTE_URL=" + ts.URL + "/api/",
				"TODOSYNC_REMOTE_DEBOUNCE=10ms",
			})
			if err != nil {
				t.Fatalf("NewState() failed: %v", err)
			}

			e := script.NewEngine()
			e.Cmds["todosync"] = todosyncCmd(bin)
			e.Cmds["remote"] = remoteCmd(state)

			scripttest.Run(t, e, s, file, strings.NewReader(string(ar.Comment)))
		})
	}
}

// todosyncCmd runs the CLI in a child process.
func todosyncCmd(bin string) script.Cmd {
	run := script.Exec(func(cmd *exec.Cmd) error {
		return cmd.Process.Signal(os.Interrupt)
	}, 5*time.Second)

	return script.Command(
		script.CmdUsage{
			Summary: "run todosync",
			Args:    "args...",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			return run.Run(s, append([]string{bin}, args...)...)
		})
}

// remoteCmd inspects and edits the reference server's document directly.
//
//	remote show          prints the stored document as JSON
//	remote seed <file>   stores the document in file as-is
func remoteCmd(state *server.StateDB) script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "inspect or seed the remote document",
			Args:    "show | seed file",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) == 0 {
				return nil, script.ErrUsage
			}
			switch args[0] {
			case "show":
				doc, err := state.Get(s.Context())
				if err != nil {
					return nil, err
				}
				out, err := json.Marshal(doc)
				if err != nil {
					return nil, err
				}
				return func(*script.State) (string, string, error) {
					return string(out) + "\n", "", nil
				}, nil

			case "seed":
				if len(args) != 2 {
					return nil, script.ErrUsage
				}
				data, err := os.ReadFile(s.Path(args[1]))
				if err != nil {
					return nil, err
				}
				tasks, projects, err := model.SplitPayload(data)
				if err != nil {
					return nil, err
				}
				return nil, state.Upsert(s.Context(), tasks, projects)
			}
			return nil, errors.New("unknown remote subcommand " + args[0])
		})
}
