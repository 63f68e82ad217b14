package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jos-todo/todosync/internal/model"
	"github.com/jos-todo/todosync/internal/ui"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	GroupID: "work",
	Short:   "Manage projects",
}

var (
	projectDesc   string
	projectStatus string
	projectStart  string
	projectEnd    string
)

var projectAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a project",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p := model.Project{
			ID:          model.NewID(),
			Title:       strings.Join(args, " "),
			Description: projectDesc,
			Status:      model.ProjectStatus(projectStatus),
			StartDate:   calendarDate(projectStart),
			EndDate:     calendarDate(projectEnd),
			CreatedAt:   time.Now().UTC(),
		}
		if err := p.Validate(); err != nil {
			fatalf("%v", err)
		}

		a := openApp(cmd.Context(), true)
		defer closeApp()

		err := a.controller.Mutate(func(doc *model.Document) error {
			doc.AddProject(p)
			return nil
		})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Added project %s: %s\n", ui.RenderPass("✓"), ui.RenderAccent(shortID(p.ID)), p.Title)
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Move a project to the trash",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context(), true)
		defer closeApp()

		now := time.Now()
		var title string
		err := a.controller.Mutate(func(doc *model.Document) error {
			p, err := findProject(doc, args[0])
			if err != nil {
				return err
			}
			p.SoftDelete(now)
			title = p.Title
			return nil
		})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Moved %s to the trash\n", ui.RenderPass("✓"), title)
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context(), false)
		defer closeApp()

		doc := a.store.Load()
		open := make(map[model.ID]int)
		for _, t := range doc.Tasks {
			if t.ProjectID != nil && !t.IsDeleted && !t.Completed {
				open[*t.ProjectID]++
			}
		}

		var rows [][]string
		for _, p := range doc.Projects {
			if p.IsDeleted != listTrash {
				continue
			}
			rows = append(rows, []string{
				shortID(p.ID),
				string(p.Status),
				dateOrBlank(p.StartDate) + ".." + dateOrBlank(p.EndDate),
				fmt.Sprint(open[p.ID]),
				p.Title,
			})
		}
		if len(rows) == 0 {
			fmt.Println(ui.RenderMuted("No projects."))
			return
		}
		fmt.Print(ui.Table([]string{"ID", "STATUS", "DATES", "OPEN", "TITLE"}, rows))
	},
}

// calendarDate parses a user-entered date into the project date layout.
func calendarDate(text string) *string {
	if text == "" {
		return nil
	}
	t, err := parseDue(text, time.Now())
	if err != nil {
		fatalf("%v", err)
	}
	d := t.Format(model.DateLayout)
	return &d
}

func dateOrBlank(d *string) string {
	if d == nil {
		return ""
	}
	return *d
}

func init() {
	projectAddCmd.Flags().StringVarP(&projectDesc, "desc", "d", "", "description")
	projectAddCmd.Flags().StringVar(&projectStatus, "status", string(model.StatusNotStarted), "status (not_started, in_progress, completed)")
	projectAddCmd.Flags().StringVar(&projectStart, "start", "", "start date")
	projectAddCmd.Flags().StringVar(&projectEnd, "end", "", "end date")

	projectListCmd.Flags().BoolVar(&listTrash, "trash", false, "show trashed projects")

	projectCmd.AddCommand(projectAddCmd, projectRmCmd, projectListCmd)
	rootCmd.AddCommand(projectCmd)
}
