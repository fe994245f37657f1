package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/host"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/state"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const chainProject = `{
	"schemaVersion": "1.0.0",
	"startDate": "02-01-2023",
	"calendar": "workdays",
	"tasks": [
		{"id": "a", "name": "Design", "duration": 3},
		{"id": "b", "name": "Build", "duration": "1w", "deps": ["a"]},
		{"id": "c", "name": "Docs", "duration": 2, "deps": ["SS:a+1d"]}
	]
}`

func startViewer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	v := New(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Run(ctx)
	}()
	srv := httptest.NewServer(v.Handler())
	t.Cleanup(func() {
		srv.Close()
		v.Close()
		cancel()
		<-done
	})
	return v, srv
}

func postProject(t *testing.T, base, body string) string {
	t.Helper()
	resp, err := http.Post(base+"/project", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.ID)
	return out.ID
}

func waitForSchedule(t *testing.T, base string) *cpm.Result {
	t.Helper()
	var out struct {
		ID  string      `json:"id"`
		CPM *cpm.Result `json:"cpm"`
	}
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/schedule")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		return json.NewDecoder(resp.Body).Decode(&out) == nil
	}, 2*time.Second, 10*time.Millisecond)
	return out.CPM
}

func TestGetSchedule_NotFoundBeforeFirstResult(t *testing.T) {
	_, srv := startViewer(t)

	for _, path := range []string{"/schedule", "/graph", "/issues"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestPostProject_ComputesSchedule(t *testing.T) {
	_, srv := startViewer(t)

	postProject(t, srv.URL, chainProject)
	res := waitForSchedule(t, srv.URL)

	require.NotNil(t, res)
	assert.Equal(t, cpm.StatusScheduled, res.Status)
	assert.Equal(t, 8, res.FinishDays)
	assert.Equal(t, []string{"a", "b"}, res.CriticalPath)
}

func TestPostProject_RejectsInvalidJSON(t *testing.T) {
	_, srv := startViewer(t)

	resp, err := http.Post(srv.URL+"/project", "application/json", strings.NewReader(`[1, 2]`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostProject_UsesRequestedID(t *testing.T) {
	_, srv := startViewer(t)

	resp, err := http.Post(srv.URL+"/project?id=edit-7", "application/json", strings.NewReader(chainProject))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "edit-7", out["id"])
}

func TestPostProject_ReusedIDPublishesNewest(t *testing.T) {
	v := New()
	srv := httptest.NewServer(v.Handler())
	defer srv.Close()

	// Both arrive before the host runs, so the first is superseded.
	for _, body := range []string{chainProject, `{
		"startDate": "02-01-2023",
		"tasks": [{"id": "z", "name": "Only", "duration": 4}]
	}`} {
		resp, err := http.Post(srv.URL+"/project?id=edit", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Run(ctx)
	}()
	defer func() {
		v.Close()
		cancel()
		<-done
	}()

	res := waitForSchedule(t, srv.URL)
	require.NotNil(t, res)
	assert.Equal(t, 4, res.FinishDays)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "z", res.Tasks[0].ID)

	resp, err := http.Get(srv.URL + "/schedule")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "edit", out.ID)

	stats := v.Stats()
	assert.Equal(t, uint64(2), stats.Submitted)
	assert.Equal(t, uint64(1), stats.Coalesced)
}

func TestSubmit_ReusedIDWhileInFlightPairsCorrectProject(t *testing.T) {
	v, _ := startViewer(t)

	first, err := project.Parse([]byte(chainProject), false)
	require.NoError(t, err)
	second, err := project.Parse([]byte(`{
		"startDate": "02-01-2023",
		"tasks": [{"id": "z", "name": "Only", "duration": 4, "deps": ["ghost"]}]
	}`), false)
	require.NoError(t, err)

	_, err = v.Submit("edit", first)
	require.NoError(t, err)
	_, err = v.Submit("edit", second)
	require.NoError(t, err)

	// Whichever results arrive, the last published one is the second
	// project and its issues are validated against that project.
	require.Eventually(t, func() bool {
		snap := v.latest()
		return snap != nil && snap.result.FinishDays == 4
	}, 2*time.Second, 10*time.Millisecond)
	snap := v.latest()
	assert.Same(t, second, snap.project)
	assert.Equal(t, "edit", snap.id)
	require.NotEmpty(t, snap.issues)
	assert.Equal(t, "z", snap.issues[0].TaskID)
}

func TestPostProject_AfterCloseUnavailable(t *testing.T) {
	v, srv := startViewer(t)
	v.Close()

	resp, err := http.Post(srv.URL+"/project", "application/json", strings.NewReader(chainProject))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetIssues_ReportsValidation(t *testing.T) {
	_, srv := startViewer(t)

	postProject(t, srv.URL, `{
		"startDate": "02-01-2023",
		"tasks": [
			{"id": "a", "name": "A", "duration": 2, "deps": ["ghost"]}
		]
	}`)
	waitForSchedule(t, srv.URL)

	resp, err := http.Get(srv.URL + "/issues")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Issues []struct {
			Sev    string `json:"sev"`
			Msg    string `json:"msg"`
			TaskID string `json:"taskId"`
		} `json:"issues"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Issues)

	found := false
	for _, is := range out.Issues {
		if is.TaskID == "a" && strings.Contains(is.Msg, "ghost") {
			found = true
		}
	}
	assert.True(t, found, "expected missing predecessor issue, got %+v", out.Issues)

	bad, err := http.Get(srv.URL + "/issues?min=bogus")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestGetGraph_NodesAndEdges(t *testing.T) {
	_, srv := startViewer(t)

	postProject(t, srv.URL, chainProject)
	waitForSchedule(t, srv.URL)

	resp, err := http.Get(srv.URL + "/graph")
	require.NoError(t, err)
	defer resp.Body.Close()

	var g Graph
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&g))
	assert.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 2)
	assert.Equal(t, GraphEdge{From: "a", To: "b", Type: "FS"}, g.Edges[0])
	assert.Equal(t, GraphEdge{From: "a", To: "c", Type: "SS", Lag: 1}, g.Edges[1])
	assert.Equal(t, 3, g.Metadata.TotalTasks)
}

func TestWebSocket_ReceivesResults(t *testing.T) {
	v, srv := startViewer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait until the server has registered the client.
	require.Eventually(t, func() bool { return v.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	id := postProject(t, srv.URL, chainProject)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var u Update
	require.NoError(t, conn.ReadJSON(&u))
	assert.Equal(t, host.TypeResult, u.Type)
	assert.Equal(t, id, u.ID)
	require.NotNil(t, u.CPM)
	assert.Equal(t, 8, u.CPM.FinishDays)
	require.NotNil(t, u.Graph)
	assert.Len(t, u.Graph.Nodes, 3)
}

func TestWebSocket_LateClientGetsLastResult(t *testing.T) {
	_, srv := startViewer(t)

	id := postProject(t, srv.URL, chainProject)
	waitForSchedule(t, srv.URL)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var u Update
	require.NoError(t, conn.ReadJSON(&u))
	assert.Equal(t, id, u.ID)
}

func TestPersistsToState(t *testing.T) {
	store := state.New(t.TempDir())
	_, srv := startViewer(t, WithState(store))

	id := postProject(t, srv.URL, chainProject)
	waitForSchedule(t, srv.URL)

	require.Eventually(t, store.Exists, 2*time.Second, 10*time.Millisecond)
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, id, snap.RequestID)
	assert.Equal(t, 8, snap.Result.FinishDays)
}

func TestPrepareHookApplied(t *testing.T) {
	_, srv := startViewer(t, WithPrepare(func(p *project.Project) {
		p.Calendar = "calendar"
	}))

	postProject(t, srv.URL, `{
		"startDate": "06-01-2023",
		"calendar": "workdays",
		"tasks": [{"id": "a", "name": "A", "duration": 2}]
	}`)
	res := waitForSchedule(t, srv.URL)

	// 06-01-2023 is a Friday; calendar days do not skip the weekend.
	assert.Equal(t, "08-01-2023", res.Tasks[0].Finish)
}

func TestNoRoute_ServesAssets(t *testing.T) {
	dist := fstest.MapFS{
		"index.html": {Data: []byte("<html>critpath</html>")},
	}
	_, srv := startViewer(t, WithAssets(dist))

	resp, err := http.Get(srv.URL + "/some/client/route")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostProjectClient(t *testing.T) {
	_, srv := startViewer(t)

	p, err := project.Parse([]byte(chainProject), false)
	require.NoError(t, err)

	id, err := PostProject(srv.URL, p)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	waitForSchedule(t, srv.URL)
}

func TestIsPortOpen(t *testing.T) {
	_, srv := startViewer(t)
	assert.True(t, IsPortOpen(strings.TrimPrefix(srv.URL, "http://")))
}
