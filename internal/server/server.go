package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
	"github.com/danielpatrickdp/speaking-coach/internal/metrics"
	"github.com/danielpatrickdp/speaking-coach/internal/session"
	"github.com/danielpatrickdp/speaking-coach/internal/store"
)

// #region server

// Server is the coach's HTTP and websocket front end.
type Server struct {
	registry *session.Registry
	catalog  *lesson.Catalog
	archive  *store.Store
	hub      *Hub
	metrics  *metrics.Metrics
	router   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithArchive serves reports of reaped sessions from the SQLite archive.
func WithArchive(s *store.Store) Option {
	return func(srv *Server) { srv.archive = s }
}

// WithHub mounts the websocket hub at /ws.
func WithHub(h *Hub) Option {
	return func(srv *Server) { srv.hub = h }
}

// WithMetrics records request metrics and mounts /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(srv *Server) { srv.metrics = m }
}

// New builds the router.
func New(reg *session.Registry, catalog *lesson.Catalog, opts ...Option) *Server {
	s := &Server{registry: reg, catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.observe)
	r.POST("/start-module", s.handleStart)
	r.POST("/submit-response", s.handleSubmit)
	r.POST("/skip", s.handleSkip)
	r.GET("/get-summary", s.handleSummary)
	r.GET("/list-modules", s.handleListModules)
	r.GET("/sessions", s.handleListSessions)
	r.GET("/sessions/:id", s.handleSnapshot)
	r.GET("/sessions/:id/events", s.handleEvents)
	r.GET("/sessions/:id/report", s.handleReport)
	r.GET("/healthz", s.handleHealth)
	if s.hub != nil {
		r.GET("/ws", gin.WrapH(s.hub))
	}
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[HTTP] listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.hub != nil {
		s.hub.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Printf("[HTTP] stopped")
	return nil
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()
	d := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveHTTP(c.FullPath(), c.Request.Method, c.Writer.Status(), d)
	}
	if c.FullPath() != "/metrics" && c.FullPath() != "/healthz" {
		log.Printf("[HTTP] %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), d.Round(time.Millisecond))
	}
}

// #endregion

// #region session-handlers

func (s *Server) handleStart(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "missing config name")
		return
	}
	sess, err := s.registry.Start(c.Request.Context(), req.Config)
	if err != nil {
		abortWithError(c, err)
		return
	}
	snap := sess.Snapshot()
	c.JSON(http.StatusOK, StartResponse{
		Status:      "started",
		SessionID:   snap.SessionID,
		Module:      snap.ModuleID,
		State:       snap.State,
		ActiveField: snap.ActiveField,
	})
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "session_id and field are required")
		return
	}
	sess, err := s.registry.Get(req.SessionID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	ack, err := sess.Submit(c.Request.Context(), req.Field, req.Text)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

func (s *Server) handleSkip(c *gin.Context) {
	var req SkipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "session_id and field are required")
		return
	}
	sess, err := s.registry.Get(req.SessionID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	ack, err := sess.Skip(c.Request.Context(), req.Field)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

func (s *Server) handleSummary(c *gin.Context) {
	id := c.Query("session_id")
	if id == "" {
		badRequest(c, "session_id is required")
		return
	}
	sess, err := s.registry.Get(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	filled, scores := sess.Summary()
	c.JSON(http.StatusOK, SummaryResponse{SessionID: id, FilledFields: filled, FieldScores: scores})
}

func (s *Server) handleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.registry.List()})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	sess, err := s.registry.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) handleEvents(c *gin.Context) {
	sess, err := s.registry.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	since := 0
	if v := c.Query("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "since must be a non-negative integer")
			return
		}
		since = n
	}
	events := sess.History.Since(since)
	c.JSON(http.StatusOK, EventsResponse{
		SessionID: sess.ID(),
		Events:    events,
		Next:      since + len(events),
	})
}

func (s *Server) handleReport(c *gin.Context) {
	id := c.Param("id")
	sess, err := s.registry.Get(id)
	if err == nil {
		rep, ok := sess.Report()
		if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{
				Error: fmt.Sprintf("session %s is still %s", id, sess.State()),
				Code:  "NOT_FINISHED",
			})
			return
		}
		c.JSON(http.StatusOK, rep)
		return
	}
	if s.archive == nil || !errors.Is(err, session.ErrNotFound) {
		abortWithError(c, err)
		return
	}
	rec, aerr := s.archive.Latest(id)
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", rec.Report)
}

// #endregion

// #region catalog-handlers

func (s *Server) handleListModules(c *gin.Context) {
	mods, err := s.catalog.List()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if mods == nil {
		mods = []string{}
	}
	c.JSON(http.StatusOK, ModulesResponse{Modules: mods})
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Sessions: s.registry.Len()}
	if s.hub != nil {
		resp.Clients = s.hub.ClientCount()
	}
	c.JSON(http.StatusOK, resp)
}

// #endregion
