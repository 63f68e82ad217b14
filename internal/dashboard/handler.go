package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jos-todo/todosync/internal/engine"
	"github.com/jos-todo/todosync/internal/model"
)

// Source is the part of the sync controller the dashboard observes.
type Source interface {
	Subscribe() (<-chan engine.Status, func())
	Document() model.Document
}

// StatusData is the payload of a status message.
type StatusData struct {
	State    engine.State `json:"state"`
	Message  string       `json:"message"`
	Mode     model.Mode   `json:"mode"`
	Diverged bool         `json:"diverged"`
}

// StatsData contains document statistics
type StatsData struct {
	Tasks           int `json:"tasks"`
	OpenTasks       int `json:"open_tasks"`
	CompletedTasks  int `json:"completed_tasks"`
	TrashedTasks    int `json:"trashed_tasks"`
	Projects        int `json:"projects"`
	TrashedProjects int `json:"trashed_projects"`
}

// ImportData reports the outcome of an imported file.
type ImportData struct {
	Path  string `json:"path"`
	Tasks int    `json:"tasks"`
	Error string `json:"error,omitempty"`
}

// Handler turns controller events into dashboard messages.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{server: server, logger: logger}
}

// Run relays every status change from src until ctx is cancelled or the
// subscription closes. Each status is followed by fresh document statistics.
func (h *Handler) Run(ctx context.Context, src Source) {
	updates, cancel := src.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			h.OnStatus(st)
			h.OnDocument(src.Document())
		}
	}
}

// OnStatus broadcasts a status change.
func (h *Handler) OnStatus(st engine.Status) {
	h.send(MessageTypeStatus, st.ChangedAt, StatusData{
		State:    st.State,
		Message:  st.Message,
		Mode:     st.Mode,
		Diverged: st.Diverged,
	})
}

// OnDocument broadcasts statistics for doc.
func (h *Handler) OnDocument(doc model.Document) {
	h.send(MessageTypeStats, time.Now(), ComputeStats(doc))
}

// OnImport broadcasts the outcome of an import.
func (h *Handler) OnImport(path string, tasks int, err error) {
	data := ImportData{Path: path, Tasks: tasks}
	if err != nil {
		data.Error = err.Error()
	}
	h.send(MessageTypeImport, time.Now(), data)
}

func (h *Handler) send(typ MessageType, at time.Time, payload any) {
	dataJSON, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: at, Data: dataJSON})
}

// ComputeStats counts the tasks and projects in doc.
func ComputeStats(doc model.Document) StatsData {
	var s StatsData
	for _, t := range doc.Tasks {
		if t.IsDeleted {
			s.TrashedTasks++
			continue
		}
		s.Tasks++
		if t.Completed {
			s.CompletedTasks++
		} else {
			s.OpenTasks++
		}
	}
	for _, p := range doc.Projects {
		if p.IsDeleted {
			s.TrashedProjects++
			continue
		}
		s.Projects++
	}
	return s
}
