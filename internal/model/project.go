package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProjectStatus is the lifecycle stage of a project.
type ProjectStatus string

const (
	StatusNotStarted ProjectStatus = "not_started"
	StatusInProgress ProjectStatus = "in_progress"
	StatusCompleted  ProjectStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// SortSpacing is the gap between default sort keys, leaving room to reorder
// without renumbering every project.
const SortSpacing = 1000

// Project groups tasks.
type Project struct {
	ID           ID
	Title        string
	Description  string
	Status       ProjectStatus
	StartDate    *string
	EndDate      *string
	ProjectType  string
	EventType    string
	BusinessLine string
	SortOrder    int
	IsDeleted    bool
	DeletedAt    *time.Time
	CreatedAt    time.Time

	// Extra carries members written by other clients.
	Extra Extra
}

var projectMembers = knownMembers(
	"id", "title", "desc", "status", "startDate", "endDate", "projectType",
	"eventType", "businessLine", "sortOrder", "isDeleted", "deletedAt", "createdAt",
)

type projectWire struct {
	ID           ID            `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"desc"`
	Status       ProjectStatus `json:"status,omitempty"`
	StartDate    *string       `json:"startDate"`
	EndDate      *string       `json:"endDate"`
	ProjectType  string        `json:"projectType,omitempty"`
	EventType    string        `json:"eventType,omitempty"`
	BusinessLine string        `json:"businessLine,omitempty"`
	SortOrder    *int          `json:"sortOrder,omitempty"`
	IsDeleted    bool          `json:"isDeleted"`
	DeletedAt    *string       `json:"deletedAt"`
	CreatedAt    *string       `json:"createdAt,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p Project) MarshalJSON() ([]byte, error) {
	sort := p.SortOrder
	w := projectWire{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Status:       p.Status,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		ProjectType:  p.ProjectType,
		EventType:    p.EventType,
		BusinessLine: p.BusinessLine,
		SortOrder:    &sort,
		IsDeleted:    p.IsDeleted,
		DeletedAt:    instantPtr(p.DeletedAt),
	}
	if !p.CreatedAt.IsZero() {
		w.CreatedAt = instantPtr(&p.CreatedAt)
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return mergeExtra(data, p.Extra)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Project) UnmarshalJSON(data []byte) error {
	var w projectWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*p = Project{
		ID:           w.ID,
		Title:        w.Title,
		Description:  w.Description,
		Status:       w.Status,
		StartDate:    normalizeDate(w.StartDate),
		EndDate:      normalizeDate(w.EndDate),
		ProjectType:  w.ProjectType,
		EventType:    w.EventType,
		BusinessLine: w.BusinessLine,
		IsDeleted:    w.IsDeleted,
		DeletedAt:    derefInstant(w.DeletedAt),
	}
	if w.SortOrder != nil {
		p.SortOrder = *w.SortOrder
	}
	if created := derefInstant(w.CreatedAt); created != nil {
		p.CreatedAt = *created
	}

	extra, err := splitExtra(data, projectMembers)
	if err != nil {
		return err
	}
	p.Extra = extra
	return nil
}

// normalizeDate keeps only the calendar part of a date string.
func normalizeDate(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	t := ParseInstant(*s)
	if t == nil {
		return nil
	}
	d := t.Format(DateLayout)
	return &d
}

// Normalize applies defaults and enforces the soft-delete invariant.
func (p *Project) Normalize() {
	if p.Status == "" {
		p.Status = StatusNotStarted
	}
	if !p.IsDeleted {
		p.DeletedAt = nil
	}
}

// Validate checks if the Project has valid field values.
func (p *Project) Validate() error {
	if p.ID.IsZero() {
		return fmt.Errorf("id is required")
	}
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	for _, d := range []*string{p.StartDate, p.EndDate} {
		if d == nil {
			continue
		}
		if _, err := time.Parse(DateLayout, *d); err != nil {
			return fmt.Errorf("invalid date %q: %w", *d, err)
		}
	}
	if !p.IsDeleted && p.DeletedAt != nil {
		return fmt.Errorf("deletedAt set on project that is not deleted")
	}
	return nil
}

// SoftDelete moves the project to the trash at the given instant.
func (p *Project) SoftDelete(at time.Time) {
	at = at.UTC()
	p.IsDeleted = true
	p.DeletedAt = &at
}

// Restore brings the project back from the trash.
func (p *Project) Restore() {
	p.IsDeleted = false
	p.DeletedAt = nil
}
