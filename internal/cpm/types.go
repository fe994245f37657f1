package cpm

import "github.com/joshharrison/critpath/internal/project"

// Status tells callers whether every active task was scheduled.
type Status string

const (
	StatusScheduled        Status = "scheduled"
	StatusPartialWithCycle Status = "partial_with_cycle"
)

// Warning is a structural issue the engine found while computing.
type Warning struct {
	Sev    string `json:"sev"`
	Msg    string `json:"msg"`
	TaskID string `json:"taskId,omitempty"`
}

// Result holds the complete critical path analysis. It is a fresh snapshot
// per Compute call and is never updated in place.
type Result struct {
	Order        []string        `json:"order"` // topological, cyclic tasks excluded
	Tasks        []ScheduledTask `json:"tasks"` // input order
	FinishDays   int             `json:"finishDays"`
	Warnings     []Warning       `json:"warnings"`
	Status       Status          `json:"status"`
	Excluded     []string        `json:"excluded,omitempty"`     // active tasks left out by a cycle
	CriticalPath []string        `json:"criticalPath,omitempty"` // critical task ids in topological order
	Waves        []Wave          `json:"waves,omitempty"`        // tasks grouped by earliest start
}

// ScheduledTask is an input task extended with its computed schedule.
type ScheduledTask struct {
	project.Task
	ES       int    `json:"es"` // earliest start/finish
	EF       int    `json:"ef"`
	LS       int    `json:"ls"` // latest start/finish
	LF       int    `json:"lf"`
	Slack    int    `json:"slack"`
	Critical bool   `json:"critical"`
	Start    string `json:"start"` // DD-MM-YYYY, empty when the project start date is invalid
	Finish   string `json:"finish"`
	Wave     int    `json:"wave"` // which start-day group this belongs to
}

// Wave represents a group of tasks sharing the same earliest start.
type Wave struct {
	Index      int      `json:"index"`
	Day        int      `json:"day"`
	TaskIDs    []string `json:"taskIds"`
	IsCritical bool     `json:"isCritical"` // true if wave contains critical path tasks
}

// Task returns the scheduled task with the given id.
func (r *Result) Task(id string) (*ScheduledTask, bool) {
	for i := range r.Tasks {
		if r.Tasks[i].ID == id {
			return &r.Tasks[i], true
		}
	}
	return nil, false
}
