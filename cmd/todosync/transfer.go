package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jos-todo/todosync/internal/model"
	"github.com/jos-todo/todosync/internal/transfer"
	"github.com/jos-todo/todosync/internal/ui"
	"github.com/jos-todo/todosync/internal/watch"
)

var (
	exportFormat string
	exportOutput string
	importForce  bool
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "work",
	Short:   "Write a backup of the local document",
	Run: func(cmd *cobra.Command, args []string) {
		format, err := transfer.ParseFormat(exportFormat)
		if err != nil {
			fatalf("%v", err)
		}

		a := openApp(cmd.Context(), false)
		defer closeApp()

		data, err := transfer.Export(a.store.Load(), format, time.Now())
		if err != nil {
			fatalf("%v", err)
		}

		if exportOutput == "" || exportOutput == "-" {
			_, _ = os.Stdout.Write(data)
			return
		}
		if err := os.WriteFile(exportOutput, data, 0o600); err != nil {
			fatalf("failed to write %s: %v", exportOutput, err)
		}
		fmt.Fprintf(os.Stderr, "%s Exported to %s\n", ui.RenderPass("✓"), exportOutput)
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "work",
	Short:   "Replace the document with a backup file",
	Long: `Replace the whole local document with the contents of a JSON or YAML
backup written by 'todosync export' or the web client. Trashed items older
than the retention period are dropped. In remote_auto mode the imported
document is uploaded like any other change.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		doc, err := readBackup(path)
		if err != nil {
			fatalf("%v", err)
		}
		if !importForce && !confirm(fmt.Sprintf("Replace the current document with %s and %s from %s?",
			ui.Count(len(doc.Tasks), "task"), ui.Count(len(doc.Projects), "project"), path)) {
			fatalf("refusing to import without confirmation (use --force)")
		}

		a := openApp(cmd.Context(), true)
		defer closeApp()

		if err := a.controller.Import(doc); err != nil {
			fatalf("%v", err)
		}
		imported := a.controller.Document()
		fmt.Printf("%s Imported %s and %s\n", ui.RenderPass("✓"),
			ui.Count(len(imported.Tasks), "task"), ui.Count(len(imported.Projects), "project"))
	},
}

// readBackup decodes a backup file, choosing the format by extension.
func readBackup(path string) (model.Document, error) {
	wf, ok := watch.FormatOf(path)
	if !ok {
		return model.Document{}, fmt.Errorf("unsupported file type %s (want .json, .yaml or .yml)", path)
	}
	format, err := transfer.ParseFormat(wf.String())
	if err != nil {
		return model.Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := transfer.Decode(data, format)
	if err != nil {
		return model.Document{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return doc, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json or yaml)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	importCmd.Flags().BoolVarP(&importForce, "force", "f", false, "skip confirmation")
	rootCmd.AddCommand(exportCmd, importCmd)
}
