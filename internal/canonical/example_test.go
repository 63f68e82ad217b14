package canonical_test

import (
	"fmt"

	"github.com/jos-todo/todosync/internal/canonical"
	"github.com/jos-todo/todosync/internal/model"
)

func ExampleEncode() {
	v, err := canonical.FromJSON([]byte(`{"b": 1.0, "a": {"y": [3, 2], "x": null}}`))
	if err != nil {
		panic(err)
	}
	fmt.Println(string(canonical.Encode(v)))
	// Output: {"a":{"y":[3,2]},"b":1}
}

func ExampleDocumentsEqual() {
	parse := func(s string) model.Document {
		doc, err := model.ParsePayload([]byte(s))
		if err != nil {
			panic(err)
		}
		return doc
	}

	local := parse(`{"tasks":[{"id":1,"title":"A","categories":["work"]}],"projects":[]}`)
	reordered := parse(`{"projects":[],"tasks":[{"categories":["work"],"title":"A","id":1}]}`)
	recategorized := parse(`{"tasks":[{"id":1,"title":"A","categories":["home"]}],"projects":[]}`)

	fmt.Println(canonical.DocumentsEqual(local, reordered))
	fmt.Println(canonical.DocumentsEqual(local, recategorized))
	// Output:
	// true
	// false
}
