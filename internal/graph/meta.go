package graph

import (
	"context"
	"fmt"
	"strings"

	"paperpost-orchestrator/internal/domain/task"
	"paperpost-orchestrator/internal/logging"
	"paperpost-orchestrator/internal/progress"
	"paperpost-orchestrator/internal/tools"
)

// MetaConfig wires the two TeamGraphs the MetaGraph coordinates (spec §4.7).
type MetaConfig struct {
	Content        *TeamGraph
	Verification   *TeamGraph
	RecursionLimit int // spec §6 META_RECURSION_LIMIT, default 50; stored but not read by Run
}

// MetaGraph is the job-level state machine: Content team produces a draft
// post, Verification team scores it, then the job's result is extracted
// from the shared log (spec §4.7). A single instance drives exactly one
// job's Log/Tracker pair, matching the single-writer design (I6/I7).
type MetaGraph struct {
	content        *TeamGraph
	verification   *TeamGraph
	recursionLimit int
	logger         logging.Logger
}

// NewMetaGraph builds a MetaGraph from the two team graphs.
func NewMetaGraph(cfg MetaConfig, logger logging.Logger) *MetaGraph {
	limit := cfg.RecursionLimit
	if limit <= 0 {
		limit = 50
	}
	return &MetaGraph{
		content:        cfg.Content,
		verification:   cfg.Verification,
		recursionLimit: limit,
		logger:         logging.OrNop(logger),
	}
}

// Run drives one job end to end: entering the content team, then the
// verification team, writing the progress-mapping transitions spec §4.7
// specifies, and finally writing the job's Result/Verification artifacts.
// Each team runs exactly once, Content then Verification; recursionLimit is
// not consulted. Any team error is returned wrapped with the team's name
// (via %w, so errors.Is/As still reach the cause); the caller (the job goroutine) is
// responsible for turning it into a FAILED Task via Tracker.UpdateTask.
func (m *MetaGraph) Run(ctx context.Context, tracker *progress.Tracker, log *task.Log) error {
	inProgress := task.StatusInProgress
	startingStep := "starting"
	startingProgress := 0.1
	// startingProgress briefly disagrees with I1 (every agent is still IDLE,
	// so the team/agent mean is 0): spec §4.7's entry mapping sets it
	// explicitly, and the next UpdateAgent call recomputes it from the
	// agents for real.
	if err := tracker.UpdateTask(ctx, progress.TaskUpdate{
		Status:      &inProgress,
		CurrentStep: &startingStep,
		Progress:    &startingProgress,
	}); err != nil {
		return fmt.Errorf("meta graph: enter: %w", err)
	}

	contentPhase := "content"
	if err := tracker.UpdateTask(ctx, progress.TaskUpdate{Phase: &contentPhase}); err != nil {
		return fmt.Errorf("meta graph: enter content phase: %w", err)
	}
	if err := m.content.Run(ctx, log); err != nil {
		return fmt.Errorf("content team: %w", err)
	}

	verificationPhase := "verification"
	if err := tracker.UpdateTask(ctx, progress.TaskUpdate{Phase: &verificationPhase}); err != nil {
		return fmt.Errorf("meta graph: enter verification phase: %w", err)
	}
	if err := m.verification.Run(ctx, log); err != nil {
		return fmt.Errorf("verification team: %w", err)
	}

	result, verification, err := extractOutcome(log)
	if err != nil {
		return fmt.Errorf("meta graph: extract outcome: %w", err)
	}

	// A supervisor that emits FINISH before every member reached a terminal
	// status (e.g. routes straight from TechVerifier to FINISH, leaving
	// StyleChecker IDLE) must not still produce a COMPLETED task -- that
	// would violate I1/I2's agents-vs-task consistency.
	if incomplete := firstNonTerminalAgent(tracker.Snapshot()); incomplete != "" {
		return fmt.Errorf("meta graph: %s did not reach a terminal status before the team finished", incomplete)
	}

	completed := task.StatusCompleted
	finalProgress := 1.0
	finalStep := "done"
	return tracker.UpdateTask(ctx, progress.TaskUpdate{
		Status:       &completed,
		Progress:     &finalProgress,
		CurrentStep:  &finalStep,
		Result:       result,
		Verification: verification,
	})
}

// firstNonTerminalAgent returns the name of the first agent across both
// teams still IDLE or WORKING, or "" if every agent reached COMPLETED or
// ERROR. Used as a cheap pre-COMPLETED guard; iteration order over a map is
// unspecified but any non-terminal hit is equally disqualifying.
func firstNonTerminalAgent(snapshot *task.Task) task.AgentName {
	for _, team := range snapshot.Teams {
		for name, agent := range team.Agents {
			if agent.Status != task.AgentCompleted && agent.Status != task.AgentError {
				return name
			}
		}
	}
	return ""
}

// extractOutcome pulls the final post and verification report out of the
// shared log (spec §4.7: "MetaGraph END: result extraction"), without the
// graph needing any further coordination state beyond what AgentRuntime
// already appended.
func extractOutcome(log *task.Log) (*task.LinkedInPostArtifact, *task.VerificationReport, error) {
	postMsg, ok := log.LastByAgent(task.AgentLinkedInCreator)
	if !ok {
		return nil, nil, fmt.Errorf("no LinkedInCreator output found in log")
	}
	content := postMsg.Content
	artifact := &task.LinkedInPostArtifact{
		Content:        content,
		Hashtags:       tools.ExtractHashtags(content),
		WordCount:      tools.WordCount(content),
		CharacterCount: len([]rune(content)),
	}

	report, err := ExtractVerificationReport(log)
	if err != nil {
		return nil, nil, err
	}
	return artifact, report, nil
}

// ExtractVerificationReport pulls TechVerifier/StyleChecker output out of
// log and assembles the paired VerificationReport (spec §4.7), independent
// of whether a Task/LinkedInCreator draft exists -- reused by the
// standalone /verify-post path (spec §9 open question #2).
func ExtractVerificationReport(log *task.Log) (*task.VerificationReport, error) {
	techMsg, ok := log.LastByAgent(task.AgentTechVerifier)
	if !ok {
		return nil, fmt.Errorf("no TechVerifier output found in log")
	}
	styleMsg, ok := log.LastByAgent(task.AgentStyleChecker)
	if !ok {
		return nil, fmt.Errorf("no StyleChecker output found in log")
	}

	techScore, techIssues := tools.ParseReport(techMsg.Content)
	styleScore, styleIssues := tools.ParseReport(styleMsg.Content)
	overall := (techScore + styleScore) / 2

	var recommendations []string
	recommendations = append(recommendations, prefixed("technical", techIssues)...)
	recommendations = append(recommendations, prefixed("style", styleIssues)...)

	return &task.VerificationReport{
		Technical:       task.ScoreReport{Score: techScore, Issues: techIssues},
		Style:           task.ScoreReport{Score: styleScore, Issues: styleIssues},
		OverallScore:    overall,
		Recommendations: recommendations,
		Rating:          task.RatingFor(overall),
	}, nil
}

func prefixed(label string, issues []string) []string {
	if len(issues) == 0 {
		return nil
	}
	out := make([]string, len(issues))
	for i, s := range issues {
		out[i] = strings.TrimSpace(label + ": " + s)
	}
	return out
}
