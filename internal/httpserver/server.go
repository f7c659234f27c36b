// Package httpserver exposes a small read-only HTTP API over the ingestion
// store: health, row statistics, recent documents, failures and ad-hoc SQL.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codelibs/fess-ds-csv/internal/model"
	"github.com/codelibs/fess-ds-csv/internal/stats"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// QueryStore is the narrow store contract required by the HTTP API.
type QueryStore interface {
	ExecuteQuery(query string) ([]map[string]any, error)
	GetSchemaDescription() string
	TableRowCounts() (map[string]int64, error)
	RecentDocuments(limit int) ([]model.StoredDocument, error)
	ListFailures(jobID string, limit int) ([]model.FailureRecord, error)
}

// StatsSource reports live row statistics.
type StatsSource interface {
	Snapshot() stats.Snapshot
}

// Server provides the HTTP API.
type Server struct {
	addr      string
	store     QueryStore
	stats     StatsSource
	jobID     string
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. stats may be nil.
func NewServer(addr string, store QueryStore, st StatsSource, jobID string) *Server {
	if addr == "" {
		addr = "127.0.0.1:8484"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		store:     store,
		stats:     st,
		jobID:     jobID,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/schema", s.handleSchema)
	api.GET("/documents", s.handleDocuments)
	api.GET("/failures", s.handleFailures)
	api.POST("/query", s.handleQuery)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	counts, err := s.store.TableRowCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"job_id":    s.jobID,
		"uptime":    time.Since(s.startTime).String(),
		"documents": counts["documents"],
		"failures":  counts["failure_urls"],
	})
}

func (s *Server) handleStats(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "statistics are not enabled"})
		return
	}
	snap := s.stats.Snapshot()
	counts, err := s.store.TableRowCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read table row counts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rows":       snap,
		"row_counts": counts,
	})
}

func (s *Server) handleSchema(c *gin.Context) {
	tables, err := s.store.ExecuteQuery(
		"SELECT table_name, column_name, data_type FROM information_schema.columns WHERE table_schema = 'main' ORDER BY table_name, ordinal_position",
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read schema metadata"})
		return
	}

	schema := make(map[string][]map[string]string)
	for _, row := range tables {
		tableName := fmt.Sprintf("%v", row["table_name"])
		schema[tableName] = append(schema[tableName], map[string]string{
			"column": fmt.Sprintf("%v", row["column_name"]),
			"type":   fmt.Sprintf("%v", row["data_type"]),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"description": s.store.GetSchemaDescription(),
		"tables":      schema,
	})
}

func (s *Server) handleDocuments(c *gin.Context) {
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	docs, err := s.store.RecentDocuments(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read documents"})
		return
	}
	if docs == nil {
		docs = []model.StoredDocument{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (s *Server) handleFailures(c *gin.Context) {
	limit, ok := listLimit(c)
	if !ok {
		return
	}
	jobID := c.DefaultQuery("job_id", s.jobID)
	failures, err := s.store.ListFailures(jobID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read failures"})
		return
	}
	if failures == nil {
		failures = []model.FailureRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"failures": failures, "count": len(failures)})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req struct {
		SQL string `json:"sql" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing sql field"})
		return
	}

	results, err := s.store.ExecuteQuery(req.SQL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var columns []string
	if len(results) > 0 {
		for col := range results[0] {
			columns = append(columns, col)
		}
		sort.Strings(columns)
	}

	c.JSON(http.StatusOK, gin.H{
		"columns":   columns,
		"rows":      results,
		"row_count": len(results),
	})
}

// listLimit reads ?limit=, writing a 400 response when it is invalid.
func listLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return min(n, maxListLimit), true
}
