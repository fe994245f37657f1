package project

import (
	"github.com/joshharrison/critpath/internal/calendar"
	"github.com/joshharrison/critpath/internal/duration"
)

// SchemaVersion is the project document version this build reads and writes.
const SchemaVersion = "1.0.0"

// ConstraintType is a start constraint kind.
type ConstraintType string

const (
	SNET ConstraintType = "SNET" // start no earlier than
	MSO  ConstraintType = "MSO"  // must start on
)

// StartConstraint pins a task's start relative to the project start.
type StartConstraint struct {
	Type ConstraintType `json:"type" yaml:"type"`
	Day  int            `json:"day" yaml:"day"`
}

// Task is a single schedulable unit of work. Id uniqueness is the caller's
// responsibility.
type Task struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name" yaml:"name"`
	Duration        duration.Value   `json:"duration" yaml:"duration"`
	Deps            []string         `json:"deps,omitempty" yaml:"deps,omitempty"`
	Active          *bool            `json:"active,omitempty" yaml:"active,omitempty"`
	StartConstraint *StartConstraint `json:"startConstraint,omitempty" yaml:"startConstraint,omitempty"`
	FixedStart      *int             `json:"fixedStart,omitempty" yaml:"fixedStart,omitempty"` // legacy SNET
	Phase           string           `json:"phase,omitempty" yaml:"phase,omitempty"`
	Subsystem       string           `json:"subsystem,omitempty" yaml:"subsystem,omitempty"`
}

// Project is the document the scheduler consumes.
type Project struct {
	SchemaVersion string        `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty"`
	StartDate     string        `json:"startDate" yaml:"startDate"` // DD-MM-YYYY
	Calendar      calendar.Mode `json:"calendar" yaml:"calendar"`
	Holidays      []string      `json:"holidays,omitempty" yaml:"holidays,omitempty"`
	Tasks         []Task        `json:"tasks" yaml:"tasks"`
}
