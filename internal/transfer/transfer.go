// Package transfer reads and writes backup files of the document in JSON or
// YAML.
package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jos-todo/todosync/internal/model"
)

// Version is written into every export.
const Version = "2.0"

// Format is a backup encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" and "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
}

// Envelope is the exported file layout: the document plus provenance.
type Envelope struct {
	Tasks      []model.Task    `json:"tasks"`
	Projects   []model.Project `json:"projects"`
	Version    string          `json:"version"`
	ExportDate string          `json:"exportDate"`
}

// Export encodes doc with an export timestamp of now.
func Export(doc model.Document, format Format, now time.Time) ([]byte, error) {
	env := Envelope{
		Tasks:      doc.Tasks,
		Projects:   doc.Projects,
		Version:    Version,
		ExportDate: model.FormatInstant(&now),
	}
	if env.Tasks == nil {
		env.Tasks = []model.Task{}
	}
	if env.Projects == nil {
		env.Projects = []model.Project{}
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	if format == FormatJSON {
		return append(data, '\n'), nil
	}

	// YAML goes through the JSON form so field names and value formats match.
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to re-read export: %w", err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("failed to encode yaml export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode yaml export: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a backup file. Both tasks and projects must be present as
// sequences; anything else yields model.ErrInvalidPayload.
func Decode(data []byte, format Format) (model.Document, error) {
	if format == FormatYAML {
		var tree any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return model.Document{}, fmt.Errorf("%w: %v", model.ErrInvalidPayload, err)
		}
		converted, err := json.Marshal(tree)
		if err != nil {
			return model.Document{}, fmt.Errorf("%w: %v", model.ErrInvalidPayload, err)
		}
		data = converted
	}

	doc, err := model.ParsePayload(data)
	if err != nil {
		return model.Document{}, err
	}
	doc.Normalize()
	return doc, nil
}
