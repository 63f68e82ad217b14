package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jos-todo/todosync/internal/model"
	"github.com/jos-todo/todosync/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "work",
	Short:   "Manage tasks",
}

var (
	taskDesc     string
	taskPriority string
	taskDue      string
	taskProject  string
	taskType     string
	taskContact  string
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context(), true)
		defer closeApp()

		now := time.Now().UTC()
		task := model.Task{
			ID:          model.NewID(),
			Title:       strings.Join(args, " "),
			Description: taskDesc,
			Priority:    model.Priority(taskPriority),
			TaskType:    taskType,
			Contact:     taskContact,
			CreatedAt:   now,
		}
		if !task.Priority.Valid() {
			fatalf("invalid priority %q (want high, medium, low or none)", taskPriority)
		}
		if taskDue != "" {
			due, err := parseDue(taskDue, time.Now())
			if err != nil {
				fatalf("%v", err)
			}
			task.DueDate = &due
		}

		err := a.controller.Mutate(func(doc *model.Document) error {
			if taskProject != "" {
				p, err := findProject(doc, taskProject)
				if err != nil {
					return err
				}
				task.ProjectID = &p.ID
			}
			doc.Tasks = append(doc.Tasks, task)
			return nil
		})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Added task %s: %s\n", ui.RenderPass("✓"), ui.RenderAccent(shortID(task.ID)), task.Title)
	},
}

var taskUndo bool

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		title := editTask(cmd, args[0], func(t *model.Task) { t.Completed = !taskUndo })
		if taskUndo {
			fmt.Printf("%s Reopened %s\n", ui.RenderPass("✓"), title)
			return
		}
		fmt.Printf("%s Completed %s\n", ui.RenderPass("✓"), title)
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Move a task to the trash",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		now := time.Now()
		title := editTask(cmd, args[0], func(t *model.Task) { t.SoftDelete(now) })
		fmt.Printf("%s Moved %s to the trash\n", ui.RenderPass("✓"), title)
	},
}

var taskRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Bring a task back from the trash",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		title := editTask(cmd, args[0], func(t *model.Task) { t.Restore() })
		fmt.Printf("%s Restored %s\n", ui.RenderPass("✓"), title)
	},
}

var purgeForce bool

var taskPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Permanently delete everything in the trash",
	Run: func(cmd *cobra.Command, args []string) {
		if !purgeForce && !confirm("Permanently delete all trashed tasks and projects?") {
			fatalf("refusing to purge without confirmation (use --force)")
		}

		a := openApp(cmd.Context(), true)
		defer closeApp()

		var tasks, projects int
		err := a.controller.Mutate(func(doc *model.Document) error {
			tasks, projects = doc.EmptyTrash()
			return nil
		})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Purged %s and %s\n", ui.RenderPass("✓"),
			ui.Count(tasks, "task"), ui.Count(projects, "project"))
	},
}

var (
	listAll   bool
	listTrash bool
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd.Context(), false)
		defer closeApp()

		doc := a.store.Load()
		var projectID *model.ID
		if taskProject != "" {
			p, err := findProject(&doc, taskProject)
			if err != nil {
				fatalf("%v", err)
			}
			projectID = &p.ID
		}

		tasks := make([]model.Task, 0, len(doc.Tasks))
		for _, t := range doc.Tasks {
			if t.IsDeleted != listTrash {
				continue
			}
			if t.Completed && !listAll && !listTrash {
				continue
			}
			if projectID != nil && (t.ProjectID == nil || *t.ProjectID != *projectID) {
				continue
			}
			tasks = append(tasks, t)
		}
		sortTasks(tasks)

		if len(tasks) == 0 {
			fmt.Println(ui.RenderMuted("No tasks."))
			return
		}

		rows := make([][]string, 0, len(tasks))
		for _, t := range tasks {
			mark := " "
			if t.Completed {
				mark = "x"
			}
			due := ""
			if t.DueDate != nil {
				due = ui.Ago(t.DueDate)
			}
			rows = append(rows, []string{shortID(t.ID), "[" + mark + "]", string(t.Priority), due, t.Title})
		}
		fmt.Print(ui.Table([]string{"ID", "", "PRIORITY", "DUE", "TITLE"}, rows))
	},
}

// sortTasks orders open tasks before completed ones, then by priority and
// earliest due date.
func sortTasks(tasks []model.Task) {
	slices.SortStableFunc(tasks, func(a, b model.Task) int {
		if a.Completed != b.Completed {
			if a.Completed {
				return 1
			}
			return -1
		}
		if d := b.Priority.Weight() - a.Priority.Weight(); d != 0 {
			return d
		}
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(*b.DueDate)
	})
}

// editTask applies fn to the task matching prefix and returns its title.
func editTask(cmd *cobra.Command, prefix string, fn func(t *model.Task)) string {
	a := openApp(cmd.Context(), true)
	defer closeApp()

	var title string
	err := a.controller.Mutate(func(doc *model.Document) error {
		t, err := findTask(doc, prefix)
		if err != nil {
			return err
		}
		fn(t)
		title = t.Title
		return nil
	})
	if err != nil {
		fatalf("%v", err)
	}
	return title
}

// shortID abbreviates long ids for display; any unique prefix is accepted
// back on input.
func shortID(id model.ID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func findTask(doc *model.Document, prefix string) (*model.Task, error) {
	if t := doc.FindTask(model.ID(prefix)); t != nil {
		return t, nil
	}
	var match *model.Task
	for i := range doc.Tasks {
		if strings.HasPrefix(doc.Tasks[i].ID.String(), prefix) {
			if match != nil {
				return nil, fmt.Errorf("task id %q is ambiguous", prefix)
			}
			match = &doc.Tasks[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no task matches %q", prefix)
	}
	return match, nil
}

func findProject(doc *model.Document, prefix string) (*model.Project, error) {
	if p := doc.FindProject(model.ID(prefix)); p != nil {
		return p, nil
	}
	var match *model.Project
	for i := range doc.Projects {
		if strings.HasPrefix(doc.Projects[i].ID.String(), prefix) {
			if match != nil {
				return nil, fmt.Errorf("project id %q is ambiguous", prefix)
			}
			match = &doc.Projects[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no project matches %q", prefix)
	}
	return match, nil
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskDesc, "desc", "d", "", "description")
	taskAddCmd.Flags().StringVarP(&taskPriority, "priority", "p", string(model.PriorityNone), "priority (high, medium, low, none)")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", `due date, e.g. "2026-11-01" or "next friday 5pm"`)
	taskAddCmd.Flags().StringVar(&taskProject, "project", "", "project id or prefix")
	taskAddCmd.Flags().StringVar(&taskType, "type", "", "task type")
	taskAddCmd.Flags().StringVar(&taskContact, "contact", "", "contact")

	taskDoneCmd.Flags().BoolVar(&taskUndo, "undo", false, "reopen instead of completing")
	taskPurgeCmd.Flags().BoolVarP(&purgeForce, "force", "f", false, "skip confirmation")

	taskListCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include completed tasks")
	taskListCmd.Flags().BoolVar(&listTrash, "trash", false, "show trashed tasks")
	taskListCmd.Flags().StringVar(&taskProject, "project", "", "only tasks in this project")

	taskCmd.AddCommand(taskAddCmd, taskDoneCmd, taskRmCmd, taskRestoreCmd, taskPurgeCmd, taskListCmd)
	rootCmd.AddCommand(taskCmd)
}
