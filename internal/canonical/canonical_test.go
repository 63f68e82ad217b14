package canonical

import (
	"testing"
	"time"

	"github.com/jos-todo/todosync/internal/model"
)

func TestEncode_KeyOrderIndependent(t *testing.T) {
	a, err := FromJSON([]byte(`{"b": 1, "a": {"y": [3, 2, 1], "x": "s"}}`))
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	b, err := FromJSON([]byte(`{"a": {"x": "s", "y": [3, 2, 1]}, "b": 1.0}`))
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}

	got := string(Encode(a))
	want := `{"a":{"x":"s","y":[3,2,1]},"b":1}`
	if got != want {
		t.Errorf("Encode = %s, want %s", got, want)
	}
	if string(Encode(b)) != want {
		t.Errorf("reordered input encoded as %s, want %s", Encode(b), want)
	}
}

func TestEncode_OmitsNullMembers(t *testing.T) {
	v, err := FromJSON([]byte(`{"a": null, "b": [null, 1]}`))
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if got, want := string(Encode(v)), `{"b":[null,1]}`; got != want {
		t.Errorf("Encode = %s, want %s", got, want)
	}
}

func TestEncode_SequenceOrderMatters(t *testing.T) {
	if Equal([]int{1, 2}, []int{2, 1}) {
		t.Error("sequences with different order compared equal")
	}
}

func TestDocumentsEqual(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	base := model.Document{
		Tasks:    []model.Task{{ID: "1", Title: "A", Priority: model.PriorityLow, CreatedAt: created}},
		Projects: []model.Project{},
	}

	same := base.Clone()
	if !DocumentsEqual(base, same) {
		t.Error("clone should be canonically equal")
	}

	changed := base.Clone()
	changed.Tasks[0].Completed = true
	if DocumentsEqual(base, changed) {
		t.Error("documents differing in completed flag compared equal")
	}

	// nil and empty sequences are the same document.
	if !DocumentsEqual(model.Document{}, model.Document{Tasks: []model.Task{}, Projects: []model.Project{}}) {
		t.Error("nil and empty documents should be equal")
	}
}

func TestDocumentsEqual_ForeignKeyOrder(t *testing.T) {
	var left, right model.Document
	if err := left.UnmarshalJSON([]byte(`{"tasks":[{"id":1,"title":"A","isDeleted":false}],"projects":[]}`)); err != nil {
		t.Fatalf("decode left: %v", err)
	}
	if err := right.UnmarshalJSON([]byte(`{"projects":[],"tasks":[{"isDeleted":false,"title":"A","id":1}]}`)); err != nil {
		t.Fatalf("decode right: %v", err)
	}
	if !DocumentsEqual(left, right) {
		t.Error("documents differing only in key order compared unequal")
	}
}

func TestDocumentsEqual_CategoriesDiffer(t *testing.T) {
	var left, right model.Document
	if err := left.UnmarshalJSON([]byte(`{"tasks":[{"id":1,"title":"A","categories":["x","y"]}],"projects":[]}`)); err != nil {
		t.Fatalf("decode left: %v", err)
	}
	if err := right.UnmarshalJSON([]byte(`{"tasks":[{"id":1,"title":"A","categories":["x","z"]}],"projects":[]}`)); err != nil {
		t.Fatalf("decode right: %v", err)
	}
	if DocumentsEqual(left, right) {
		t.Error("documents differing only in categories compared equal")
	}
}

func TestDocumentsEqual_UnknownMembers(t *testing.T) {
	var left, right model.Document
	if err := left.UnmarshalJSON([]byte(`{"tasks":[{"id":1,"title":"A","color":"red"}],"projects":[{"id":2,"title":"P","budget":5}]}`)); err != nil {
		t.Fatalf("decode left: %v", err)
	}
	if err := right.UnmarshalJSON([]byte(`{"tasks":[{"id":1,"title":"A","color":"blue"}],"projects":[{"id":2,"title":"P","budget":5}]}`)); err != nil {
		t.Fatalf("decode right: %v", err)
	}
	if DocumentsEqual(left, right) {
		t.Error("documents differing in an unmodeled task member compared equal")
	}

	right.Tasks[0].Extra["color"] = []byte(`"red"`)
	if !DocumentsEqual(left, right) {
		t.Error("documents with identical unmodeled members compared unequal")
	}
}
