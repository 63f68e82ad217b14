package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TrashRetention is how long soft-deleted items survive before they are purged.
const TrashRetention = 30 * 24 * time.Hour

// ErrInvalidPayload is returned by ParsePayload when tasks and projects are
// not both present as arrays.
var ErrInvalidPayload = errors.New("invalid payload: tasks and projects must both be arrays")

// Document is the combined tasks+projects structure that is the unit of
// persistence and synchronization. Sequence order is preserved for stable
// display but carries no other meaning.
type Document struct {
	Tasks    []Task    `json:"tasks"`
	Projects []Project `json:"projects"`
}

// Empty reports whether the document holds neither tasks nor projects.
func (d Document) Empty() bool {
	return len(d.Tasks) == 0 && len(d.Projects) == 0
}

// MarshalJSON implements json.Marshaler. Nil sequences encode as [].
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	out := plain(d)
	if out.Tasks == nil {
		out.Tasks = []Task{}
	}
	if out.Projects == nil {
		out.Projects = []Project{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Missing sequences decode as
// empty, and projects without a stored sortOrder are given one spaced by
// SortSpacing in sequence order.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		Tasks    []Task            `json:"tasks"`
		Projects []json.RawMessage `json:"projects"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	projects := make([]Project, 0, len(raw.Projects))
	for i, rp := range raw.Projects {
		var p Project
		if err := json.Unmarshal(rp, &p); err != nil {
			return fmt.Errorf("project %d: %w", i, err)
		}
		var probe struct {
			SortOrder *int `json:"sortOrder"`
		}
		if err := json.Unmarshal(rp, &probe); err == nil && probe.SortOrder == nil {
			p.SortOrder = i * SortSpacing
		}
		projects = append(projects, p)
	}

	d.Tasks = raw.Tasks
	if d.Tasks == nil {
		d.Tasks = []Task{}
	}
	d.Projects = projects
	return nil
}

// SplitPayload checks that a request body carries both tasks and projects
// as arrays and returns them undecoded. Anything else yields ErrInvalidPayload.
func SplitPayload(data []byte) (tasks, projects json.RawMessage, err error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(data, &shape); err != nil || shape == nil {
		return nil, nil, ErrInvalidPayload
	}
	for _, key := range []string{"tasks", "projects"} {
		v, ok := shape[key]
		if !ok || !bytes.HasPrefix(bytes.TrimSpace(v), []byte("[")) {
			return nil, nil, ErrInvalidPayload
		}
	}
	return shape["tasks"], shape["projects"], nil
}

// ParsePayload decodes a request body that must carry both tasks and
// projects as arrays. Anything else yields ErrInvalidPayload.
func ParsePayload(data []byte) (Document, error) {
	if _, _, err := SplitPayload(data); err != nil {
		return Document{}, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return doc, nil
}

// Normalize applies per-item defaults in place.
func (d *Document) Normalize() {
	for i := range d.Tasks {
		d.Tasks[i].Normalize()
	}
	for i := range d.Projects {
		d.Projects[i].Normalize()
	}
}

// Validate checks every task and project.
func (d Document) Validate() error {
	for i := range d.Tasks {
		if err := d.Tasks[i].Validate(); err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
	}
	for i := range d.Projects {
		if err := d.Projects[i].Validate(); err != nil {
			return fmt.Errorf("project %d: %w", i, err)
		}
	}
	return nil
}

// PurgeExpired returns a copy of d without soft-deleted items whose deletion
// instant is older than retention relative to now. A deleted item with no
// deletion instant counts as expired.
func (d Document) PurgeExpired(now time.Time, retention time.Duration) Document {
	deadline := now.Add(-retention)
	out := Document{
		Tasks:    make([]Task, 0, len(d.Tasks)),
		Projects: make([]Project, 0, len(d.Projects)),
	}
	for _, t := range d.Tasks {
		if t.IsDeleted && (t.DeletedAt == nil || !t.DeletedAt.After(deadline)) {
			continue
		}
		out.Tasks = append(out.Tasks, cloneTask(t))
	}
	for _, p := range d.Projects {
		if p.IsDeleted && (p.DeletedAt == nil || !p.DeletedAt.After(deadline)) {
			continue
		}
		out.Projects = append(out.Projects, cloneProject(p))
	}
	return out
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := Document{
		Tasks:    make([]Task, len(d.Tasks)),
		Projects: make([]Project, len(d.Projects)),
	}
	for i, t := range d.Tasks {
		out.Tasks[i] = cloneTask(t)
	}
	for i, p := range d.Projects {
		out.Projects[i] = cloneProject(p)
	}
	return out
}

// FindTask returns a pointer into d for the task with the given id, or nil.
func (d *Document) FindTask(id ID) *Task {
	for i := range d.Tasks {
		if d.Tasks[i].ID == id {
			return &d.Tasks[i]
		}
	}
	return nil
}

// FindProject returns a pointer into d for the project with the given id, or nil.
func (d *Document) FindProject(id ID) *Project {
	for i := range d.Projects {
		if d.Projects[i].ID == id {
			return &d.Projects[i]
		}
	}
	return nil
}

// AddProject appends p, giving it the next sort key after the current maximum.
func (d *Document) AddProject(p Project) {
	next := 0
	for i, existing := range d.Projects {
		if i == 0 || existing.SortOrder+SortSpacing > next {
			next = existing.SortOrder + SortSpacing
		}
	}
	p.SortOrder = next
	d.Projects = append(d.Projects, p)
}

// EmptyTrash permanently removes every soft-deleted task and project.
func (d *Document) EmptyTrash() (tasks, projects int) {
	keptTasks := d.Tasks[:0]
	for _, t := range d.Tasks {
		if t.IsDeleted {
			tasks++
			continue
		}
		keptTasks = append(keptTasks, t)
	}
	d.Tasks = keptTasks

	keptProjects := d.Projects[:0]
	for _, p := range d.Projects {
		if p.IsDeleted {
			projects++
			continue
		}
		keptProjects = append(keptProjects, p)
	}
	d.Projects = keptProjects
	return tasks, projects
}

func cloneTask(t Task) Task {
	t.DueDate = cloneTime(t.DueDate)
	t.DeletedAt = cloneTime(t.DeletedAt)
	if t.ProjectID != nil {
		id := *t.ProjectID
		t.ProjectID = &id
	}
	if t.Categories != nil {
		t.Categories = append([]string{}, t.Categories...)
	}
	t.Extra = t.Extra.Clone()
	return t
}

func cloneProject(p Project) Project {
	p.DeletedAt = cloneTime(p.DeletedAt)
	p.StartDate = cloneString(p.StartDate)
	p.EndDate = cloneString(p.EndDate)
	p.Extra = p.Extra.Clone()
	return p
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
