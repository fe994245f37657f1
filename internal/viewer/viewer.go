// Package viewer serves the latest schedule to a browser UI. Projects
// posted to the API are computed by a host.Host; every result is
// validated, cached in the run state and pushed to websocket clients.
package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/host"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/state"
	"github.com/joshharrison/critpath/internal/ui"
	"github.com/joshharrison/critpath/internal/validate"
)

// Update is the message broadcast to websocket clients after every
// computation.
type Update struct {
	Type   string           `json:"type"`
	ID     string           `json:"id,omitempty"`
	CPM    *cpm.Result      `json:"cpm,omitempty"`
	Graph  *Graph           `json:"graph,omitempty"`
	Issues []validate.Issue `json:"issues,omitempty"`
	Error  string           `json:"error,omitempty"`
}

type snapshot struct {
	id      string
	project *project.Project
	result  *cpm.Result
	graph   *Graph
	issues  []validate.Issue
	at      time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithState caches every result in the run state store.
func WithState(s *state.Store) Option {
	return func(v *Server) { v.store = s }
}

// WithLogger sets the logger for request and broadcast messages.
func WithLogger(l *ui.Logger) Option {
	return func(v *Server) { v.log = l }
}

// WithAssets serves a built single-page UI from dist.
func WithAssets(dist fs.FS) Option {
	return func(v *Server) { v.assets = dist }
}

// WithPrepare registers a hook applied to every posted project before it
// is submitted, such as filling config defaults.
func WithPrepare(fn func(*project.Project)) Option {
	return func(v *Server) { v.prepare = fn }
}

// WithHostOptions passes options through to the underlying host.
func WithHostOptions(opts ...host.Option) Option {
	return func(v *Server) { v.hostOpts = append(v.hostOpts, opts...) }
}

// Server is the viewer API.
type Server struct {
	host     *host.Host
	hostOpts []host.Option
	store    *state.Store
	log      *ui.Logger
	assets   fs.FS
	prepare  func(*project.Project)
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	inbox   map[string]pending // by host request id; submitted, not yet answered
	last    *snapshot
	clients map[*client]struct{}
}

type pending struct {
	label   string
	project *project.Project
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(u Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(u)
}

// New creates a viewer with its own computation host.
func New(opts ...Option) *Server {
	v := &Server{
		inbox:   make(map[string]pending),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	hostOpts := append([]host.Option{
		host.WithLogger(v.log),
		host.WithOnSuperseded(v.forget),
	}, v.hostOpts...)
	v.host = host.New(cpm.Compute, hostOpts...)
	return v
}

// Stats reports the underlying host's counters.
func (v *Server) Stats() host.Stats { return v.host.Stats() }

// Submit queues p for computation and returns the request id. An empty
// id is replaced by a generated one. The id is only a label: the host is
// keyed by a fresh id per call, so reusing an id never loses the newer
// project.
func (v *Server) Submit(id string, p *project.Project) (string, error) {
	key := uuid.NewString()
	if id == "" {
		id = key
	}
	// Register before submitting so a fast result always finds its project.
	v.mu.Lock()
	v.inbox[key] = pending{label: id, project: p}
	v.mu.Unlock()

	if _, err := v.host.Submit(key, p); err != nil {
		v.forget(key)
		return "", err
	}
	return id, nil
}

// forget drops a request that will never be answered.
func (v *Server) forget(key string) {
	v.mu.Lock()
	delete(v.inbox, key)
	v.mu.Unlock()
}

// Run drives the host and publishes its results until ctx is cancelled or
// the host is closed.
func (v *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- v.host.Run(ctx) }()

	for resp := range v.host.Results() {
		v.publish(resp)
	}
	return <-errCh
}

// Close stops accepting projects and disconnects websocket clients.
func (v *Server) Close() {
	v.host.Close()
	v.mu.Lock()
	defer v.mu.Unlock()
	for c := range v.clients {
		c.conn.Close()
		delete(v.clients, c)
	}
}

func (v *Server) publish(resp host.Response) {
	v.mu.Lock()
	req, ok := v.inbox[resp.ID]
	delete(v.inbox, resp.ID)
	v.mu.Unlock()
	if !ok {
		req.label = resp.ID
	}

	u := Update{Type: resp.Type, ID: req.label, Error: resp.Error}
	if resp.Type == host.TypeResult && req.project != nil {
		snap := &snapshot{
			id:      req.label,
			project: req.project,
			result:  resp.CPM,
			graph:   toGraph(resp.CPM),
			issues:  validate.Run(req.project, resp.CPM),
			at:      time.Now(),
		}
		v.mu.Lock()
		v.last = snap
		v.mu.Unlock()

		u.CPM, u.Graph, u.Issues = snap.result, snap.graph, snap.issues
		v.persist(snap)
		v.log.Infof("schedule %s: %d tasks, finish day %d", req.label, len(resp.CPM.Tasks), resp.CPM.FinishDays)
	} else if resp.Type == host.TypeError {
		v.log.Errorf("schedule %s: %s", req.label, resp.Error)
	}
	v.broadcast(u)
}

func (v *Server) persist(snap *snapshot) {
	if v.store == nil {
		return
	}
	err := v.store.Save(&state.Snapshot{
		RequestID:  snap.id,
		ComputedAt: snap.at,
		Result:     snap.result,
		Issues:     snap.issues,
	})
	if err != nil {
		v.log.Warnf("save state: %v", err)
	}
}

func (v *Server) broadcast(u Update) {
	v.mu.RLock()
	clients := make([]*client, 0, len(v.clients))
	for c := range v.clients {
		clients = append(clients, c)
	}
	v.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(u); err != nil {
			v.log.Debugf("drop websocket client: %v", err)
			v.dropClient(c)
		}
	}
}

// ClientCount returns the number of connected websocket clients.
func (v *Server) ClientCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.clients)
}

func (v *Server) dropClient(c *client) {
	v.mu.Lock()
	delete(v.clients, c)
	v.mu.Unlock()
	c.conn.Close()
}

// --- HTTP server ---

// Handler builds the gin router.
func (v *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/project", v.handlePostProject)
	router.GET("/schedule", v.handleGetSchedule)
	router.GET("/graph", v.handleGetGraph)
	router.GET("/issues", v.handleGetIssues)
	router.GET("/stats", v.handleGetStats)
	router.GET("/ws", v.handleWS)

	if v.assets != nil && hasContent(v.assets) {
		spa := spaHandler(v.assets)
		router.NoRoute(gin.WrapH(spa))
	} else {
		router.NoRoute(func(c *gin.Context) {
			c.String(http.StatusNotFound, "No frontend assets configured.\n")
		})
	}
	return router
}

func (v *Server) handlePostProject(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := project.Parse(body, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project: " + err.Error()})
		return
	}
	if v.prepare != nil {
		v.prepare(p)
	}

	id, err := v.Submit(c.Query("id"), p)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (v *Server) latest() *snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.last
}

func (v *Server) handleGetSchedule(c *gin.Context) {
	snap := v.latest()
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no schedule computed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": snap.id, "computed_at": snap.at, "cpm": snap.result})
}

func (v *Server) handleGetGraph(c *gin.Context) {
	snap := v.latest()
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no graph loaded"})
		return
	}
	c.JSON(http.StatusOK, snap.graph)
}

func (v *Server) handleGetIssues(c *gin.Context) {
	snap := v.latest()
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no schedule computed"})
		return
	}
	issues := snap.issues
	if m := c.Query("min"); m != "" {
		floor, err := validate.ParseSeverity(m)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		issues = validate.FilterMin(issues, floor)
	}
	if issues == nil {
		issues = []validate.Issue{}
	}
	c.JSON(http.StatusOK, gin.H{"id": snap.id, "issues": issues, "counts": validate.Counts(issues)})
}

func (v *Server) handleGetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":   v.Stats(),
		"busy":    v.host.Busy(),
		"pending": v.host.Pending(),
		"clients": v.ClientCount(),
	})
}

func (v *Server) handleWS(c *gin.Context) {
	conn, err := v.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		v.log.Warnf("websocket upgrade: %v", err)
		return
	}
	cl := &client{conn: conn}

	v.mu.Lock()
	v.clients[cl] = struct{}{}
	last := v.last
	v.mu.Unlock()

	if last != nil {
		err := cl.send(Update{
			Type:   host.TypeResult,
			ID:     last.id,
			CPM:    last.result,
			Graph:  last.graph,
			Issues: last.issues,
		})
		if err != nil {
			v.dropClient(cl)
			return
		}
	}

	// Clients only listen; reading detects the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				v.dropClient(cl)
				return
			}
		}
	}()
}

// spaHandler serves the SPA static files with index.html fallback.
func spaHandler(distSub fs.FS) http.Handler {
	fileServer := http.FileServer(http.FS(distSub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Try to serve the exact file
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		f, err := distSub.Open(path)
		if err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}

		// Fallback to index.html for SPA client-side routing
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}

// hasContent reports whether dist holds real files (not just .gitkeep).
func hasContent(dist fs.FS) bool {
	found := false
	fs.WalkDir(dist, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() != ".gitkeep" {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// ListenAndServe runs the viewer on addr until ctx is cancelled.
func (v *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: v.Handler(), ReadHeaderTimeout: 10 * time.Second}
	runErr := make(chan error, 1)
	go func() { runErr <- v.Run(ctx) }()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	v.log.Infof("viewer listening on http://%s", ln.Addr())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			v.Close()
			<-runErr
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// PostProject sends a project to a running viewer and returns the
// request id.
func PostProject(addr string, p *project.Project) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal project: %w", err)
	}

	resp, err := http.Post(addr+"/project", "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("POST /project: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("POST /project returned %d", resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.ID, nil
}

// IsPortOpen checks if something is listening on the given address.
func IsPortOpen(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
