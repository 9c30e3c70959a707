// Package jobs wires the graph, tracker, and governor together into the
// background work a /generate-post or /verify-post request kicks off.
// Grounded on the teacher's internal/async goroutine-launcher idiom: one
// async.Go call per job, panic-recovering, logging failures instead of
// crashing the process.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"paperpost-orchestrator/internal/agentruntime"
	alexerrors "paperpost-orchestrator/internal/errors"
	"paperpost-orchestrator/internal/async"
	"paperpost-orchestrator/internal/domain/ports"
	"paperpost-orchestrator/internal/domain/task"
	"paperpost-orchestrator/internal/governor"
	"paperpost-orchestrator/internal/graph"
	"paperpost-orchestrator/internal/logging"
	"paperpost-orchestrator/internal/metrics"
	"paperpost-orchestrator/internal/progress"
)

// Runner owns the generation/verification job lifecycle (spec §4: the
// orchestrator's background worker pool).
type Runner struct {
	store     task.Store
	ttl       time.Duration
	governor  *governor.Governor
	llm       ports.LLMClient
	runtime   *agentruntime.Runtime
	publisher progress.Publisher
	metrics   *metrics.Metrics
	logger    logging.Logger

	teamRecursionLimit  int
	metaRecursionLimit  int
	verificationTimeout time.Duration
	llmTemperature      float64

	// jobsCtx is the parent of every StartGeneration job's context, cancelled
	// by Shutdown so in-flight jobs observe cancellation instead of running
	// to completion on a detached context.Background(). Grounded on the
	// teacher's kernel.Engine (stopped chan/wg pair tracking in-flight
	// RunCycle goroutines, drained by Drain).
	jobsCtx    context.Context
	jobsCancel context.CancelFunc
	wg         sync.WaitGroup
}

// Config configures a Runner.
type Config struct {
	TTL                 time.Duration
	TeamRecursionLimit  int
	MetaRecursionLimit  int
	VerificationTimeout time.Duration
	// LLMTemperature is the sampling temperature for the Content team's
	// generative roles (spec §6 env var LLM_TEMPERATURE, "opaque to
	// core"). Verification-team roles stay pinned at 0 regardless: they
	// are deterministic tool-driven scorers, not prose generators.
	LLMTemperature float64
}

// New builds a Runner.
func New(cfg Config, store task.Store, gov *governor.Governor, llm ports.LLMClient, runtime *agentruntime.Runtime, publisher progress.Publisher, m *metrics.Metrics, logger logging.Logger) *Runner {
	jobsCtx, jobsCancel := context.WithCancel(context.Background())
	return &Runner{
		store:               store,
		ttl:                 cfg.TTL,
		governor:            gov,
		llm:                 llm,
		runtime:             runtime,
		publisher:           publisher,
		metrics:             m,
		logger:              logging.OrNop(logger),
		teamRecursionLimit:  cfg.TeamRecursionLimit,
		metaRecursionLimit:  cfg.MetaRecursionLimit,
		verificationTimeout: cfg.VerificationTimeout,
		llmTemperature:      cfg.LLMTemperature,
		jobsCtx:             jobsCtx,
		jobsCancel:          jobsCancel,
	}
}

// StartGeneration launches the full Content -> Verification pipeline for
// taskID in the background, returning immediately (spec §6: generate-post
// is asynchronous). The Task record must already exist in the store. The
// job's context is derived from the Runner's lifetime, not
// context.Background(): Shutdown cancels it so an in-flight job FAILs with
// error.kind=Cancelled instead of outliving the process (spec §5).
func (r *Runner) StartGeneration(taskID string, req task.RequestData) {
	r.wg.Add(1)
	async.Go(r.logger, fmt.Sprintf("job:%s", taskID), func() {
		defer r.wg.Done()
		r.runGeneration(r.jobsCtx, taskID, req)
	})
}

// Shutdown cancels every in-flight job's context and waits for them to
// observe cancellation and write their FAILED(Cancelled) task record,
// bounded by ctx's deadline. Grounded on the teacher's kernel.Engine.Drain
// (Stop then wg.Wait), adapted to a caller-supplied bound since the Runner
// has no stop channel of its own to close.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.jobsCancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) runGeneration(ctx context.Context, taskID string, req task.RequestData) {
	release, err := r.governor.AcquireGeneration(ctx)
	if err != nil {
		r.logger.Error("job %s: failed to acquire generation permit: %v", taskID, err)
		return
	}
	defer release()

	tracker, err := progress.New(ctx, r.store, taskID, r.ttl, r.publisher, r.logger)
	if err != nil {
		r.logger.Error("job %s: failed to load tracker: %v", taskID, err)
		return
	}

	log := &task.Log{}
	content := r.buildContentTeam(tracker, req)
	verification := r.buildVerificationTeam(tracker)
	meta := graph.NewMetaGraph(graph.MetaConfig{
		Content:        content,
		Verification:   verification,
		RecursionLimit: r.metaRecursionLimit,
	}, r.logger)

	if runErr := meta.Run(ctx, tracker, log); runErr != nil {
		r.failTask(ctx, tracker, runErr)
		r.recordTerminal(task.StatusFailed)
		return
	}
	r.recordTerminal(task.StatusCompleted)
}

// RunVerification runs a single Verification-team pass against throwaway
// in-memory state, bypassing the Task record and ProgressTracker (spec §9
// open question #2, resolved in SPEC_FULL.md §8).
func (r *Runner) RunVerification(ctx context.Context, postContent, paperReference string) (*task.VerificationReport, error) {
	ctx, cancel := context.WithTimeout(ctx, r.verificationTimeout)
	defer cancel()

	release, err := r.governor.AcquireVerification(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	log := &task.Log{
		// Seeding a synthetic LinkedInCreator turn lets TechVerifier and
		// StyleChecker find the draft via Log.LastByAgent exactly as they
		// would inside a real job, without running PaperResearcher/
		// LinkedInCreator at all.
	}
	log.Append(task.Message{Role: task.RoleAI, Name: task.AgentLinkedInCreator, Content: postContent})

	verification := r.buildVerificationTeamStandalone(paperReference)
	if err := verification.Run(ctx, log); err != nil {
		return nil, err
	}
	return graph.ExtractVerificationReport(log)
}

// researcherTemperature keeps PaperResearcher more factual than the
// configured LLM_TEMPERATURE knob is for prose generation, capping it
// rather than adopting it outright.
func researcherTemperature(configured float64) float64 {
	if configured < 0.3 {
		return configured
	}
	return 0.3
}

func (r *Runner) buildContentTeam(tracker *progress.Tracker, req task.RequestData) *graph.TeamGraph {
	members := []graph.MemberRole{
		{
			Agent: task.AgentPaperResearcher,
			Role: agentruntime.Role{
				Name:         task.AgentPaperResearcher,
				SystemPrompt: paperResearcherPrompt,
				ToolNames:    []string{"research_paper", "web_search"},
				Temperature:  researcherTemperature(r.llmTemperature),
				MaxTokens:    1024,
			},
		},
		{
			Agent: task.AgentLinkedInCreator,
			Role: agentruntime.Role{
				Name:         task.AgentLinkedInCreator,
				SystemPrompt: linkedInCreatorPrompt,
				ToolNames:    []string{"create_post"},
				Temperature:  r.llmTemperature,
				MaxTokens:    1024,
			},
		},
	}
	return graph.NewTeamGraph(graph.TeamConfig{
		Team:             task.TeamContent,
		Members:          members,
		SupervisorPrompt: contentSupervisorPrompt(req.PaperTitle, req.AdditionalContext),
		RecursionLimit:   r.teamRecursionLimit,
	}, r.llm, r.runtime, tracker, r.logger)
}

func (r *Runner) buildVerificationTeam(tracker *progress.Tracker) *graph.TeamGraph {
	return graph.NewTeamGraph(graph.TeamConfig{
		Team:             task.TeamVerification,
		Members:          r.verificationMembers(),
		SupervisorPrompt: verificationSupervisorPrompt,
		RecursionLimit:   r.teamRecursionLimit,
	}, r.llm, r.runtime, tracker, r.logger)
}

func (r *Runner) buildVerificationTeamStandalone(paperReference string) *graph.TeamGraph {
	members := r.verificationMembers()
	members[0].Role.SystemPrompt = fmt.Sprintf("%s\nPaper reference: %q.", techVerifierPrompt, paperReference)
	return graph.NewTeamGraph(graph.TeamConfig{
		Team:             task.TeamVerification,
		Members:          members,
		SupervisorPrompt: verificationSupervisorPrompt,
		RecursionLimit:   r.teamRecursionLimit,
	}, r.llm, r.runtime, nil, r.logger)
}

func (r *Runner) verificationMembers() []graph.MemberRole {
	return []graph.MemberRole{
		{
			Agent: task.AgentTechVerifier,
			Role: agentruntime.Role{
				Name:         task.AgentTechVerifier,
				SystemPrompt: techVerifierPrompt,
				ToolNames:    []string{"verify_technical"},
				Temperature:  0,
				MaxTokens:    512,
			},
		},
		{
			Agent: task.AgentStyleChecker,
			Role: agentruntime.Role{
				Name:         task.AgentStyleChecker,
				SystemPrompt: styleCheckerPrompt,
				ToolNames:    []string{"check_style"},
				Temperature:  0,
				MaxTokens:    512,
			},
		},
	}
}

// failTask maps runErr to the spec §7 error taxonomy and writes a FAILED
// Task (I3).
func (r *Runner) failTask(ctx context.Context, tracker *progress.Tracker, runErr error) {
	info := classifyError(runErr)
	failed := task.StatusFailed
	if err := tracker.UpdateTask(ctx, progress.TaskUpdate{Status: &failed, Error: &info}); err != nil {
		r.logger.Error("failed to record task failure: %v", err)
	}
}

func classifyError(err error) task.ErrorInfo {
	switch {
	// Checked first: both graph.TeamGraph and agentruntime.Runtime wrap
	// ctx.Err() in a TransientError when a step observes cancellation (they
	// only know "retry might help", not why ctx ended), so IsTransient would
	// otherwise swallow a cancelled job as Kind:"Timeout".
	case errors.Is(err, context.Canceled):
		return task.ErrorInfo{Kind: "Cancelled", Message: "task cancelled"}
	case isRecursionExceeded(err):
		return task.ErrorInfo{Kind: "RecursionExceeded", Message: err.Error()}
	case alexerrors.IsDegraded(err):
		return task.ErrorInfo{Kind: "Unavailable", Message: alexerrors.FormatForLLM(err)}
	case errors.Is(err, context.DeadlineExceeded):
		return task.ErrorInfo{Kind: "Timeout", Message: alexerrors.FormatForLLM(err)}
	case alexerrors.IsTransient(err):
		return task.ErrorInfo{Kind: "Timeout", Message: alexerrors.FormatForLLM(err)}
	case alexerrors.IsPermanent(err):
		return task.ErrorInfo{Kind: "Internal", Message: alexerrors.FormatForLLM(err)}
	default:
		return task.ErrorInfo{Kind: "Internal", Message: err.Error()}
	}
}

func isRecursionExceeded(err error) bool {
	var teamErr *graph.ErrRecursionExceeded
	var agentErr *agentruntime.ErrRecursionExceeded
	return errors.As(err, &teamErr) || errors.As(err, &agentErr)
}

func (r *Runner) recordTerminal(status task.Status) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordTaskTerminal(string(status))
}
