// Package project holds the project document (tasks plus calendar
// settings) and reads and writes it as JSON or YAML.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/joshharrison/critpath/internal/calendar"
)

// IsActive reports whether the task takes part in scheduling. A task with
// no active field is active.
func (t *Task) IsActive() bool {
	return t.Active == nil || *t.Active
}

// Days returns the parsed duration, zero when it does not parse.
func (t *Task) Days() int {
	return t.Duration.Days()
}

// Constraint returns the effective start constraint. The legacy fixedStart
// field reads as SNET when no startConstraint is set.
func (t *Task) Constraint() *StartConstraint {
	if t.StartConstraint != nil {
		return t.StartConstraint
	}
	if t.FixedStart != nil {
		return &StartConstraint{Type: SNET, Day: *t.FixedStart}
	}
	return nil
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	if t.Deps != nil {
		c.Deps = append([]string(nil), t.Deps...)
	}
	if t.Active != nil {
		v := *t.Active
		c.Active = &v
	}
	if t.StartConstraint != nil {
		sc := *t.StartConstraint
		c.StartConstraint = &sc
	}
	if t.FixedStart != nil {
		v := *t.FixedStart
		c.FixedStart = &v
	}
	return c
}

// Clone returns a deep copy of the project. Nothing in the copy aliases p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	if p.Holidays != nil {
		c.Holidays = append([]string(nil), p.Holidays...)
	}
	if p.Tasks != nil {
		c.Tasks = make([]Task, len(p.Tasks))
		for i := range p.Tasks {
			c.Tasks[i] = p.Tasks[i].Clone()
		}
	}
	return &c
}

// Start parses the project start date.
func (p *Project) Start() (time.Time, error) {
	return calendar.ParseDate(p.StartDate)
}

// BuildCalendar returns the project's calendar. Unparseable holidays are
// ignored.
func (p *Project) BuildCalendar() calendar.Calendar {
	return calendar.New(p.Calendar, calendar.ParseHolidays(p.Holidays))
}

// ActiveCount returns the number of active tasks.
func (p *Project) ActiveCount() int {
	n := 0
	for i := range p.Tasks {
		if p.Tasks[i].IsActive() {
			n++
		}
	}
	return n
}

// Task returns the first task with the given id.
func (p *Project) Task(id string) (*Task, bool) {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i], true
		}
	}
	return nil, false
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Parse decodes a project document. YAML is used when yamlDoc is set,
// JSON otherwise.
func Parse(data []byte, yamlDoc bool) (*Project, error) {
	var p Project
	if yamlDoc {
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse project yaml: %w", err)
		}
		return &p, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parse project json: not a valid JSON document")
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("parse project json: expected a JSON object")
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project json: %w", err)
	}
	return &p, nil
}

// Load reads a project file. Files ending in .yaml or .yml are YAML.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	return Parse(data, isYAML(path))
}

// Marshal encodes the project as indented JSON or YAML.
func Marshal(p *Project, yamlDoc bool) ([]byte, error) {
	if yamlDoc {
		return yaml.Marshal(p)
	}
	return json.MarshalIndent(p, "", "  ")
}

// Save writes the project in the format implied by the path extension.
func Save(path string, p *Project) error {
	data, err := Marshal(p, isYAML(path))
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
