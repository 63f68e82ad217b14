package transfer_test

import (
	"fmt"

	"github.com/jos-todo/todosync/internal/transfer"
)

func ExampleDecode() {
	backup := `
tasks:
  - id: 1
    title: Buy milk
    color: blue
projects: []
`
	format, err := transfer.ParseFormat("yml")
	if err != nil {
		panic(err)
	}
	doc, err := transfer.Decode([]byte(backup), format)
	if err != nil {
		panic(err)
	}

	task := doc.Tasks[0]
	fmt.Println(task.ID, task.Title, task.Priority)
	fmt.Println(string(task.Extra["color"]))
	// Output:
	// 1 Buy milk none
	// "blue"
}
