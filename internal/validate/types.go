package validate

import (
	"fmt"
	"strings"
)

// Severity ranks how badly an issue affects the schedule.
type Severity string

const (
	Critical Severity = "critical"
	Error    Severity = "error"
	Warn     Severity = "warn"
	Info     Severity = "info"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{Critical, Error, Warn, Info}

// Rank orders severities; higher is worse. Unknown severities rank below info.
func (s Severity) Rank() int {
	switch s {
	case Critical:
		return 3
	case Error:
		return 2
	case Warn:
		return 1
	case Info:
		return 0
	}
	return -1
}

// ParseSeverity accepts a severity name in any case.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Rank() < 0 {
		return "", fmt.Errorf("unknown severity %q (want critical, error, warn or info)", s)
	}
	return sev, nil
}

// FixKind names an automatic repair for an issue.
type FixKind string

const (
	FixDedupeIDs           FixKind = "dedupe-ids"
	FixAssignID            FixKind = "assign-id"
	FixAssignName          FixKind = "assign-name"
	FixSetDuration         FixKind = "set-duration"
	FixRemoveSelfDep       FixKind = "remove-self-dep"
	FixAddMissingTask      FixKind = "add-missing-task"
	FixRemoveDuplicateDeps FixKind = "remove-duplicate-deps"
	FixActivatePredecessor FixKind = "activate-predecessor"
	FixSetStartDate        FixKind = "set-start-date"
	FixMSODay              FixKind = "mso-day"
)

// Fix describes how Apply repairs an issue. Index is the task's position
// in the project's task list. Day is the new MSO day for FixMSODay.
type Fix struct {
	Kind  FixKind `json:"kind"`
	Index int     `json:"index"`
	Pred  string  `json:"pred,omitempty"`
	Token string  `json:"token,omitempty"`
	Day   int     `json:"day,omitempty"`
}

// Issue is a single diagnostic about a project or its schedule.
type Issue struct {
	Sev    Severity `json:"sev"`
	Msg    string   `json:"msg"`
	TaskID string   `json:"taskId,omitempty"`
	Fix    *Fix     `json:"fix,omitempty"`
}

func (i Issue) key() string {
	return string(i.Sev) + "|" + i.Msg + "|" + i.TaskID
}

// Report is the outcome of Migrate.
type Report struct {
	OK       bool    `json:"ok"`
	Migrated bool    `json:"migrated"`
	Issues   []Issue `json:"issues"`
}
