// Package http implements the orchestrator's HTTP surface: the six spec §6
// endpoints plus the supplemented websocket stream and Prometheus exposition
// endpoint. Grounded on the teacher's gin-based webui server (engine field,
// REST + "/stream" websocket upgrade sibling routes) and gin-contrib/cors
// for the CORS middleware both declared in the teacher's go.mod.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paperpost-orchestrator/internal/domain/task"
	"paperpost-orchestrator/internal/logging"
)

// JobRunner launches one job in the background for taskID, returning once
// the job goroutine has been scheduled (not once it completes). Supplied by
// main.go, which owns wiring the governor/graph/tracker together.
type JobRunner interface {
	StartGeneration(taskID string, req task.RequestData)
	RunVerification(ctx context.Context, postContent, paperReference string) (*task.VerificationReport, error)
}

// HealthChecker reports whether a dependency is currently usable. LLM and
// search adapters implement it optionally; a nil checker reports healthy
// (spec §6 /health is best-effort, not a hard dependency gate).
type HealthChecker interface {
	Healthy() bool
}

// Server wraps the gin engine and its dependencies.
type Server struct {
	engine  *gin.Engine
	store   task.Store
	jobs    JobRunner
	hub     *streamHub
	logger  logging.Logger
	version string
	llm     HealthChecker
	search  HealthChecker
}

// Config configures the Server.
type Config struct {
	CORSAllowOrigins []string
	Version          string
	LLMHealth        HealthChecker
	SearchHealth     HealthChecker
}

// New builds a Server with every route registered.
func New(cfg Config, store task.Store, jobs JobRunner, logger logging.Logger) *Server {
	logger = logging.OrNop(logger)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSAllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	engine.Use(cors.New(corsConfig))

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		engine:  engine,
		store:   store,
		jobs:    jobs,
		hub:     newStreamHub(logger),
		logger:  logger,
		version: version,
		llm:     cfg.LLMHealth,
		search:  cfg.SearchHealth,
	}
	s.routes()
	return s
}

// Handler returns the underlying http.Handler, for http.Server / httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// SetJobs binds the JobRunner after construction, letting main.go build the
// Server (as the jobs.Runner's progress.Publisher) before the Runner itself
// exists, breaking what would otherwise be a construction cycle.
func (s *Server) SetJobs(jobs JobRunner) { s.jobs = jobs }

// Publish satisfies progress.Publisher, feeding task snapshots to any
// connected /stream clients without the tracker depending on transport code.
func (s *Server) Publish(t *task.Task) {
	s.hub.broadcast(t)
}

func (s *Server) routes() {
	s.engine.POST("/generate-post", s.handleGeneratePost)
	s.engine.GET("/status/:task_id", s.handleGetStatus)
	s.engine.GET("/status/:task_id/stream", s.handleStatusStream)
	s.engine.GET("/tasks", s.handleListTasks)
	s.engine.POST("/verify-post", s.handleVerifyPost)
	s.engine.POST("/batch-generate", s.handleBatchGenerate)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

type generatePostRequest struct {
	PaperTitle              string `json:"paper_title" binding:"required,min=5,max=500"`
	AdditionalContext       string `json:"additional_context"`
	TargetAudience          string `json:"target_audience"`
	Tone                    string `json:"tone"`
	IncludeTechnicalDetails bool   `json:"include_technical_details"`
	MaxHashtags             int    `json:"max_hashtags"`
}

var validAudiences = map[string]bool{"": true, "academic": true, "professional": true, "general": true}
var validTones = map[string]bool{"": true, "professional": true, "casual": true, "enthusiastic": true, "academic": true}

func (r generatePostRequest) validate() string {
	if !validAudiences[r.TargetAudience] {
		return "target_audience must be one of academic, professional, general"
	}
	if !validTones[r.Tone] {
		return "tone must be one of professional, casual, enthusiastic, academic"
	}
	if r.MaxHashtags != 0 && (r.MaxHashtags < 1 || r.MaxHashtags > 20) {
		return "max_hashtags must be between 1 and 20"
	}
	return ""
}

func (r generatePostRequest) toRequestData() task.RequestData {
	maxHashtags := r.MaxHashtags
	if maxHashtags == 0 {
		maxHashtags = 5
	}
	return task.RequestData{
		PaperTitle:              r.PaperTitle,
		AdditionalContext:       r.AdditionalContext,
		TargetAudience:          r.TargetAudience,
		Tone:                    r.Tone,
		IncludeTechnicalDetails: r.IncludeTechnicalDetails,
		MaxHashtags:             maxHashtags,
	}
}

// handleGeneratePost accepts a job, persists its PENDING Task record, then
// hands off to the background job runner and returns 202 immediately (spec
// §6: generate-post is asynchronous).
func (s *Server) handleGeneratePost(c *gin.Context) {
	var req generatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	taskID := uuid.NewString()
	t := task.NewTask(taskID, req.toRequestData(), time.Now().UTC())
	if err := s.store.PutIfAbsent(c.Request.Context(), t, 0); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.jobs.StartGeneration(taskID, t.RequestData)
	c.JSON(http.StatusAccepted, gin.H{
		"task_id":                   taskID,
		"status":                    t.Status,
		"message":                   "post generation started",
		"estimated_completion_time": estimatedGenerationSeconds,
	})
}

// estimatedGenerationSeconds is a rough, fixed estimate surfaced to clients
// in the accept response (spec §6 "estimated_completion_time"); the
// orchestrator itself makes no scheduling guarantee tied to this number.
const estimatedGenerationSeconds = 60

func (s *Server) handleGetStatus(c *gin.Context) {
	taskID := c.Param("task_id")
	t, err := s.store.Get(c.Request.Context(), taskID)
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.store.List(c.Request.Context())
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

type verifyPostRequest struct {
	PostContent    string `json:"post_content" binding:"required"`
	PaperReference string `json:"paper_reference"`
}

// handleVerifyPost runs a standalone Verification-team pass against
// throwaway state, bypassing the Task record entirely (spec §9 open
// question #2, resolved in SPEC_FULL.md §8).
func (s *Server) handleVerifyPost(c *gin.Context) {
	var req verifyPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := s.jobs.RunVerification(c.Request.Context(), req.PostContent, req.PaperReference)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "verification timed out"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"technical":       report.Technical,
		"style":           report.Style,
		"overall_score":   report.OverallScore,
		"recommendations": report.Recommendations,
		"rating":          report.Rating,
		"verification_id": uuid.NewString(),
		"verified_at":     time.Now().UTC(),
	})
}

type batchGenerateRequest struct {
	Papers []generatePostRequest `json:"papers" binding:"required,min=1,max=20"`
}

// handleBatchGenerate fans out N independent generate-post jobs, each
// governed by the same ConcurrencyGovernor as single requests -- batching
// is a client-side convenience, not a separate concurrency lane.
func (s *Server) handleBatchGenerate(c *gin.Context) {
	var req batchGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	taskIDs := make([]string, 0, len(req.Papers))
	for _, item := range req.Papers {
		if msg := item.validate(); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		taskID := uuid.NewString()
		t := task.NewTask(taskID, item.toRequestData(), time.Now().UTC())
		if err := s.store.PutIfAbsent(c.Request.Context(), t, 0); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		s.jobs.StartGeneration(taskID, t.RequestData)
		taskIDs = append(taskIDs, taskID)
	}
	c.JSON(http.StatusAccepted, gin.H{
		"batch_id":    uuid.NewString(),
		"total_posts": len(taskIDs),
		"task_ids":    taskIDs,
	})
}

// degradable is implemented by store.DegradingStore; checked via type
// assertion so the server package does not depend on the concrete store.
type degradable interface {
	Degraded() bool
}

func checkerHealthy(c HealthChecker) bool {
	return c == nil || c.Healthy()
}

// handleHealth reports overall status plus per-dependency flags (spec §6:
// "{status, version, services: {llm, search, store}}"). Status is
// "degraded" if any dependency is unhealthy, "ok" otherwise; either way the
// endpoint returns 200, since a degraded dependency does not mean the
// process itself is down.
func (s *Server) handleHealth(c *gin.Context) {
	storeHealthy := true
	if d, ok := s.store.(degradable); ok {
		storeHealthy = !d.Degraded()
	}
	llmHealthy := checkerHealthy(s.llm)
	searchHealthy := checkerHealthy(s.search)

	status := "ok"
	if !storeHealthy || !llmHealthy || !searchHealthy {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"version": s.version,
		"services": gin.H{
			"llm":    llmHealthy,
			"search": searchHealthy,
			"store":  storeHealthy,
		},
	})
}

func (s *Server) writeStoreError(c *gin.Context, err error) {
	switch {
	case isNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
