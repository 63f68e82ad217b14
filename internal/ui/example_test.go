package ui_test

import (
	"fmt"

	"github.com/jos-todo/todosync/internal/ui"
)

func ExampleCount() {
	fmt.Println(ui.Count(1, "task"))
	fmt.Println(ui.Count(0, "snapshot"))
	fmt.Println(ui.Count(1200, "project"))
	// Output:
	// 1 task
	// 0 snapshots
	// 1,200 projects
}
