package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/critpath/internal/project"
)

var migrateNow = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

func TestMigrate_LegacyProject(t *testing.T) {
	off := false
	p := &project.Project{
		StartDate: "02-01-2023",
		Tasks: []project.Task{
			{ID: "a", Name: "A"},
			{ID: "b", Name: "B", Active: &off},
		},
	}

	r := Migrate(p, migrateNow)
	assert.True(t, r.OK)
	assert.True(t, r.Migrated)
	assert.Equal(t, project.SchemaVersion, p.SchemaVersion)
	require.NotNil(t, p.Tasks[0].Active)
	assert.True(t, *p.Tasks[0].Active)
	assert.False(t, *p.Tasks[1].Active)

	_, ok := find(r.Issues, Warn, "No schemaVersion found.")
	assert.True(t, ok)
	_, ok = find(r.Issues, Info, "Project migrated to schema v1.0.0")
	assert.True(t, ok)
}

func TestMigrate_NewerVersion(t *testing.T) {
	p := &project.Project{SchemaVersion: "1.10.0", StartDate: "02-01-2023", Tasks: []project.Task{}}

	r := Migrate(p, migrateNow)
	assert.False(t, r.OK)
	_, ok := find(r.Issues, Critical, "(1.10.0) is newer")
	assert.True(t, ok)
}

func TestMigrate_StartDateReset(t *testing.T) {
	for _, start := range []string{"", "2023-01-02", "31-02-2023"} {
		p := &project.Project{SchemaVersion: project.SchemaVersion, StartDate: start, Tasks: []project.Task{}}

		r := Migrate(p, migrateNow)
		assert.True(t, r.OK, start)
		assert.Equal(t, "05-03-2024", p.StartDate, start)
		_, ok := find(r.Issues, Error, `missing a valid "startDate"`)
		assert.True(t, ok, start)
	}
}

func TestMigrate_MissingTasks(t *testing.T) {
	p := &project.Project{SchemaVersion: project.SchemaVersion, StartDate: "02-01-2023"}

	r := Migrate(p, migrateNow)
	assert.False(t, r.OK)
	_, ok := find(r.Issues, Critical, `missing a valid "tasks" array`)
	assert.True(t, ok)
}

func TestMigrate_RegeneratesIDs(t *testing.T) {
	p := &project.Project{
		SchemaVersion: project.SchemaVersion,
		StartDate:     "02-01-2023",
		Tasks:         []project.Task{{ID: "a"}, {ID: ""}, {ID: "a"}},
	}

	r := Migrate(p, migrateNow)
	assert.True(t, r.OK)
	assert.True(t, r.Migrated)
	assert.Equal(t, "a", p.Tasks[0].ID)
	assert.NotEmpty(t, p.Tasks[1].ID)
	assert.NotEqual(t, "a", p.Tasks[2].ID)
	assert.NotEqual(t, p.Tasks[1].ID, p.Tasks[2].ID)
}

func TestMigrate_Nil(t *testing.T) {
	r := Migrate(nil, migrateNow)
	assert.False(t, r.OK)
	assert.Len(t, r.Issues, 1)
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 0, compareVersions("1.0.0", "1.0.0"))
	assert.Equal(t, -1, compareVersions("0.0.0", "1.0.0"))
	assert.Equal(t, 1, compareVersions("1.10.0", "1.9.0"))
	assert.Equal(t, 0, compareVersions("1.0", "1.0.0"))
}
