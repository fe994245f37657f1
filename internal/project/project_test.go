package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/critpath/internal/calendar"
	"github.com/joshharrison/critpath/internal/duration"
)

const sampleJSON = `{
  "schemaVersion": "1.0.0",
  "startDate": "02-01-2023",
  "calendar": "workdays",
  "holidays": ["06-01-2023"],
  "tasks": [
    {"id": "a", "name": "Design", "duration": "2w", "phase": "Plan"},
    {"id": "b", "name": "Build", "duration": 5, "deps": ["FS:a+1d"], "startConstraint": {"type": "MSO", "day": 3}},
    {"id": "c", "name": "Old", "duration": 1, "active": false, "fixedStart": 4}
  ]
}`

func TestParse_JSON(t *testing.T) {
	p, err := Parse([]byte(sampleJSON), false)
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", p.SchemaVersion)
	assert.Equal(t, calendar.ModeWorkdays, p.Calendar)
	require.Len(t, p.Tasks, 3)
	assert.Equal(t, "2w", p.Tasks[0].Duration.Raw())
	assert.Equal(t, 10, p.Tasks[0].Days())
	assert.Equal(t, 5, p.Tasks[1].Duration.Raw())
	assert.Equal(t, &StartConstraint{Type: MSO, Day: 3}, p.Tasks[1].Constraint())
	assert.False(t, p.Tasks[2].IsActive())
	assert.Equal(t, &StartConstraint{Type: SNET, Day: 4}, p.Tasks[2].Constraint())
	assert.Equal(t, 2, p.ActiveCount())
}

func TestParse_RejectsNonObject(t *testing.T) {
	_, err := Parse([]byte(`[1,2,3]`), false)
	assert.Error(t, err)

	_, err = Parse([]byte(`{"tasks": [`), false)
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	p, err := Parse([]byte(sampleJSON), false)
	require.NoError(t, err)

	for _, name := range []string{"project.json", "project.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Save(path, p))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoad_YAMLDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yml")
	doc := "startDate: 02-01-2023\ncalendar: calendar\ntasks:\n  - id: a\n    name: A\n    duration: 3\n  - id: b\n    name: B\n    duration: 1w\n    deps: [a]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Tasks[0].Duration.Raw())
	assert.Equal(t, "1w", p.Tasks[1].Duration.Raw())
	assert.Equal(t, []string{"a"}, p.Tasks[1].Deps)
}

func TestClone_Deep(t *testing.T) {
	on := true
	day := 2
	p := &Project{
		StartDate: "02-01-2023",
		Holidays:  []string{"06-01-2023"},
		Tasks: []Task{{
			ID: "a", Name: "A", Duration: duration.Of(1),
			Deps: []string{"b"}, Active: &on, FixedStart: &day,
			StartConstraint: &StartConstraint{Type: SNET, Day: 1},
		}},
	}
	c := p.Clone()
	c.Holidays[0] = "x"
	c.Tasks[0].Deps[0] = "x"
	*c.Tasks[0].Active = false
	*c.Tasks[0].FixedStart = 9
	c.Tasks[0].StartConstraint.Day = 9

	assert.Equal(t, "06-01-2023", p.Holidays[0])
	assert.Equal(t, "b", p.Tasks[0].Deps[0])
	assert.True(t, *p.Tasks[0].Active)
	assert.Equal(t, 2, *p.Tasks[0].FixedStart)
	assert.Equal(t, 1, p.Tasks[0].StartConstraint.Day)
	assert.Nil(t, (*Project)(nil).Clone())
}

func TestTaskLookupAndCalendar(t *testing.T) {
	p, err := Parse([]byte(sampleJSON), false)
	require.NoError(t, err)

	task, ok := p.Task("b")
	require.True(t, ok)
	assert.Equal(t, "Build", task.Name)
	_, ok = p.Task("zzz")
	assert.False(t, ok)

	cal := p.BuildCalendar()
	holiday, err := calendar.ParseDate("06-01-2023")
	require.NoError(t, err)
	assert.False(t, cal.IsWorkday(holiday))

	start, err := p.Start()
	require.NoError(t, err)
	assert.Equal(t, "02-01-2023", calendar.FormatDate(start))
}
