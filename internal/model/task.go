package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Priority ranks a task. The zero value is not valid; Normalize maps it to PriorityNone.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityNone   Priority = "none"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow, PriorityNone:
		return true
	}
	return false
}

// Weight returns the sort weight of p, higher first.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Task is a single to-do item.
type Task struct {
	ID          ID
	Title       string
	Description string
	Priority    Priority
	DueDate     *time.Time
	TaskType    string
	Contact     string
	ProjectID   *ID
	Completed   bool
	IsDeleted   bool
	DeletedAt   *time.Time
	CreatedAt   time.Time

	// Categories is the web client's label list. It is kept as written;
	// its first entry supplies TaskType when taskType is absent.
	Categories []string

	// Extra carries members written by other clients.
	Extra Extra
}

var taskMembers = knownMembers(
	"id", "title", "desc", "priority", "dueDate", "taskType", "contact",
	"projectId", "completed", "isDeleted", "deletedAt", "createdAt", "categories",
)

type taskWire struct {
	ID          ID       `json:"id"`
	Title       string   `json:"title"`
	Description *string  `json:"desc,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	DueDate     *string  `json:"dueDate,omitempty"`
	TaskType    *string  `json:"taskType,omitempty"`
	Contact     *string  `json:"contact,omitempty"`
	ProjectID   *ID      `json:"projectId"`
	Completed   bool     `json:"completed"`
	IsDeleted   bool     `json:"isDeleted"`
	DeletedAt   *string  `json:"deletedAt"`
	CreatedAt   *string  `json:"createdAt,omitempty"`

	// An empty list is written back as [], only a missing one is omitted.
	Categories *[]string `json:"categories,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t Task) MarshalJSON() ([]byte, error) {
	w := taskWire{
		ID:          t.ID,
		Title:       t.Title,
		Description: &t.Description,
		Priority:    t.Priority,
		DueDate:     instantPtr(t.DueDate),
		TaskType:    &t.TaskType,
		Contact:     &t.Contact,
		ProjectID:   t.ProjectID,
		Completed:   t.Completed,
		IsDeleted:   t.IsDeleted,
		DeletedAt:   instantPtr(t.DeletedAt),
	}
	if !t.CreatedAt.IsZero() {
		w.CreatedAt = instantPtr(&t.CreatedAt)
	}
	if t.Categories != nil {
		categories := t.Categories
		w.Categories = &categories
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return mergeExtra(data, t.Extra)
}

// UnmarshalJSON implements json.Unmarshaler. Missing text fields default to
// "" and, without a taskType, the first category supplies TaskType.
// Unknown members are kept in Extra.
func (t *Task) UnmarshalJSON(data []byte) error {
	var w taskWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*t = Task{
		ID:        w.ID,
		Title:     w.Title,
		Priority:  w.Priority,
		DueDate:   derefInstant(w.DueDate),
		ProjectID: w.ProjectID,
		Completed: w.Completed,
		IsDeleted: w.IsDeleted,
		DeletedAt: derefInstant(w.DeletedAt),
	}
	if w.Description != nil {
		t.Description = *w.Description
	}
	if w.Contact != nil {
		t.Contact = *w.Contact
	}
	if w.Categories != nil {
		t.Categories = *w.Categories
	}
	switch {
	case w.TaskType != nil:
		t.TaskType = *w.TaskType
	case len(t.Categories) > 0:
		t.TaskType = t.Categories[0]
	}
	if created := derefInstant(w.CreatedAt); created != nil {
		t.CreatedAt = *created
	}
	if t.ProjectID != nil && (t.ProjectID.IsZero() || *t.ProjectID == "none") {
		t.ProjectID = nil
	}

	extra, err := splitExtra(data, taskMembers)
	if err != nil {
		return err
	}
	t.Extra = extra
	return nil
}

// Normalize applies defaults and enforces the soft-delete invariant: a task
// that is not deleted carries no deletion instant.
func (t *Task) Normalize() {
	if t.Priority == "" {
		t.Priority = PriorityNone
	}
	if !t.IsDeleted {
		t.DeletedAt = nil
	}
}

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if t.ID.IsZero() {
		return fmt.Errorf("id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	if !t.IsDeleted && t.DeletedAt != nil {
		return fmt.Errorf("deletedAt set on task that is not deleted")
	}
	return nil
}

// SoftDelete moves the task to the trash at the given instant.
func (t *Task) SoftDelete(at time.Time) {
	at = at.UTC()
	t.IsDeleted = true
	t.DeletedAt = &at
}

// Restore brings the task back from the trash.
func (t *Task) Restore() {
	t.IsDeleted = false
	t.DeletedAt = nil
}
