package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joshharrison/critpath/internal/calendar"
	"github.com/joshharrison/critpath/internal/project"
)

var startDateRe = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)

// NewTaskID generates a fresh task id.
func NewTaskID() string {
	return "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// Migrate upgrades a freshly loaded project to the current schema and
// repairs what it safely can: it marks tasks active, resets a missing or
// malformed start date to today and regenerates missing or duplicate task
// ids. p is modified in place. Report.OK is false when the project cannot
// be used.
func Migrate(p *project.Project, now time.Time) Report {
	var r Report
	if p == nil {
		r.Issues = append(r.Issues, Issue{Sev: Critical, Msg: "Invalid project file format. Expected a JSON object."})
		return r
	}

	if p.SchemaVersion == "" {
		r.Issues = append(r.Issues, Issue{Sev: Warn, Msg: "No schemaVersion found. Assuming older format and attempting to migrate."})
		p.SchemaVersion = "0.0.0"
	}

	switch c := compareVersions(p.SchemaVersion, project.SchemaVersion); {
	case c < 0:
		r.Migrated = true
		if p.Tasks != nil {
			for i := range p.Tasks {
				if p.Tasks[i].Active == nil {
					on := true
					p.Tasks[i].Active = &on
				}
			}
			r.Issues = append(r.Issues, Issue{Sev: Info, Msg: `Project migrated to schema v1.0.0: ensured all tasks have an "active" status.`})
		}
		p.SchemaVersion = project.SchemaVersion
	case c > 0:
		r.Issues = append(r.Issues, Issue{Sev: Critical, Msg: fmt.Sprintf(
			"Project schema version (%s) is newer than this application's supported version (%s). Please update the application.",
			p.SchemaVersion, project.SchemaVersion)})
		return r
	}

	if !validStartDate(p.StartDate) {
		r.Issues = append(r.Issues,
			Issue{Sev: Error, Msg: `Project is missing a valid "startDate".`},
			Issue{Sev: Warn, Msg: `Project "startDate" was missing or invalid. It has been reset to today.`},
		)
		p.StartDate = calendar.FormatDate(now)
	}

	if p.Tasks == nil {
		r.Issues = append(r.Issues, Issue{Sev: Critical, Msg: `Project is missing a valid "tasks" array.`})
		return r
	}

	seen := make(map[string]bool, len(p.Tasks))
	for i := range p.Tasks {
		t := &p.Tasks[i]
		if strings.TrimSpace(t.ID) == "" {
			r.Issues = append(r.Issues, Issue{Sev: Warn, Msg: "A task is missing an ID. A new one will be generated."})
			t.ID = NewTaskID()
			r.Migrated = true
		}
		if seen[t.ID] {
			r.Issues = append(r.Issues, Issue{Sev: Warn, Msg: fmt.Sprintf("Duplicate task ID found: %s. A new ID will be generated.", t.ID)})
			t.ID = NewTaskID()
			r.Migrated = true
		}
		seen[t.ID] = true
	}

	r.OK = true
	return r
}

func validStartDate(s string) bool {
	if !startDateRe.MatchString(s) {
		return false
	}
	_, err := calendar.ParseDate(s)
	return err == nil
}

// compareVersions compares dotted numeric versions. Missing or
// non-numeric components count as zero.
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < max(len(as), len(bs)); i++ {
		var x, y int
		if i < len(as) {
			x, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			y, _ = strconv.Atoi(bs[i])
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}
