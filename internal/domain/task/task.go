// Package task defines the orchestrator's core data model: the Task record
// and the team/agent state nested inside it, matched one-for-one against
// the Redis-persisted structures of the teacher's InMemoryTaskStore.
package task

import "time"

// Status is the terminal/non-terminal lifecycle of a Task. Transitions are
// monotone forward only (I4): Pending -> InProgress -> {Completed, Failed}.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// IsTerminal reports whether s is a terminal status for a Task or TeamState.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo enforces I4/I5: no backward moves, and COMPLETED/FAILED
// are both terminal (neither can move to the other).
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// AgentStatus is the lifecycle of a single AgentState (I5).
type AgentStatus string

const (
	AgentIdle      AgentStatus = "IDLE"
	AgentWorking   AgentStatus = "WORKING"
	AgentCompleted AgentStatus = "COMPLETED"
	AgentError     AgentStatus = "ERROR"
)

func (s AgentStatus) rank() int {
	switch s {
	case AgentIdle:
		return 0
	case AgentWorking:
		return 1
	case AgentCompleted, AgentError:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo enforces I5: IDLE -> WORKING -> COMPLETED|ERROR.
func (s AgentStatus) CanTransitionTo(next AgentStatus) bool {
	if s == next {
		return true
	}
	if s == AgentCompleted || s == AgentError {
		return false
	}
	return next.rank() > s.rank()
}

// TeamName is one of the two compile-time-fixed teams (I8).
type TeamName string

const (
	TeamContent       TeamName = "Content team"
	TeamVerification  TeamName = "Verification team"
)

// AgentName is one of the four compile-time-fixed agent roles (I8).
type AgentName string

const (
	AgentPaperResearcher AgentName = "PaperResearcher"
	AgentLinkedInCreator AgentName = "LinkedInCreator"
	AgentTechVerifier    AgentName = "TechVerifier"
	AgentStyleChecker    AgentName = "StyleChecker"
)

// TeamOfAgent is the compile-time membership mapping required by I8.
var TeamOfAgent = map[AgentName]TeamName{
	AgentPaperResearcher: TeamContent,
	AgentLinkedInCreator: TeamContent,
	AgentTechVerifier:    TeamVerification,
	AgentStyleChecker:    TeamVerification,
}

// TeamMembers lists the agents belonging to each team, in role order.
var TeamMembers = map[TeamName][]AgentName{
	TeamContent:      {AgentPaperResearcher, AgentLinkedInCreator},
	TeamVerification: {AgentTechVerifier, AgentStyleChecker},
}

// AgentState is the per-agent slice of progress inside a TeamState.
type AgentState struct {
	AgentName       AgentName   `json:"agent_name"`
	Status          AgentStatus `json:"status"`
	CurrentActivity string      `json:"current_activity,omitempty"`
	Progress        float64     `json:"progress"`
	Findings        string      `json:"findings,omitempty"`
	LastUpdate      time.Time   `json:"last_update"`
	ErrorMessage    string      `json:"error_message,omitempty"`
}

// TeamState is the per-team slice of progress inside a Task.
type TeamState struct {
	TeamName      TeamName              `json:"team_name"`
	Status        Status                `json:"status"`
	Progress      float64               `json:"progress"`
	CurrentFocus  string                `json:"current_focus,omitempty"`
	StartedAt     *time.Time            `json:"started_at,omitempty"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
	TeamFindings  string                `json:"team_findings,omitempty"`
	Agents        map[AgentName]*AgentState `json:"agents"`
}

// ErrorInfo is the structured error attached to a FAILED Task (I3).
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// LinkedInPostArtifact is the final produced write-up plus extracted
// metadata, written once on COMPLETED.
type LinkedInPostArtifact struct {
	Content         string   `json:"content"`
	Hashtags        []string `json:"hashtags"`
	WordCount       int      `json:"word_count"`
	CharacterCount  int      `json:"character_count"`
	EngagementScore *float64 `json:"engagement_score,omitempty"`
}

// ScoreReport is the technical or style half of a VerificationReport.
type ScoreReport struct {
	Score       float64  `json:"score"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Rating buckets the overall verification score.
type Rating string

const (
	RatingExcellent        Rating = "excellent"
	RatingGood              Rating = "good"
	RatingNeedsImprovement Rating = "needs_improvement"
	RatingPoor             Rating = "poor"
)

// RatingFor maps an overall score in [0,1] to a Rating bucket.
func RatingFor(overall float64) Rating {
	switch {
	case overall >= 0.9:
		return RatingExcellent
	case overall >= 0.7:
		return RatingGood
	case overall >= 0.4:
		return RatingNeedsImprovement
	default:
		return RatingPoor
	}
}

// VerificationReport is the paired technical+style scoring document.
type VerificationReport struct {
	Technical       ScoreReport `json:"technical"`
	Style           ScoreReport `json:"style"`
	OverallScore    float64     `json:"overall_score"`
	Recommendations []string    `json:"recommendations,omitempty"`
	Rating          Rating      `json:"rating"`
}

// RequestData is the original /generate-post request, kept on the Task for
// auditing and for the background job to read its parameters.
type RequestData struct {
	PaperTitle              string `json:"paper_title"`
	AdditionalContext       string `json:"additional_context,omitempty"`
	TargetAudience          string `json:"target_audience,omitempty"`
	Tone                    string `json:"tone,omitempty"`
	IncludeTechnicalDetails bool   `json:"include_technical_details,omitempty"`
	MaxHashtags             int    `json:"max_hashtags,omitempty"`
}

// Task is the durable record persisted in TaskStore under "task:<uuid>".
type Task struct {
	TaskID      string                   `json:"task_id"`
	Status      Status                   `json:"status"`
	Progress    float64                  `json:"progress"`
	CurrentStep string                   `json:"current_step,omitempty"`
	Phase       string                   `json:"phase,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	RequestData RequestData              `json:"request_data"`
	Teams       map[TeamName]*TeamState  `json:"teams"`
	Result      *LinkedInPostArtifact    `json:"result,omitempty"`
	Verification *VerificationReport     `json:"verification,omitempty"`
	Error       *ErrorInfo               `json:"error,omitempty"`
}

// NewTask builds a PENDING Task with both teams pre-initialized to IDLE
// agents, matching ProgressTracker.InitializeTeams (spec §4.2).
func NewTask(taskID string, req RequestData, now time.Time) *Task {
	t := &Task{
		TaskID:      taskID,
		Status:      StatusPending,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
		RequestData: req,
		Teams:       make(map[TeamName]*TeamState, len(TeamMembers)),
	}
	for teamName, members := range TeamMembers {
		agents := make(map[AgentName]*AgentState, len(members))
		for _, m := range members {
			agents[m] = &AgentState{AgentName: m, Status: AgentIdle, LastUpdate: now}
		}
		t.Teams[teamName] = &TeamState{
			TeamName: teamName,
			Status:   StatusPending,
			Agents:   agents,
		}
	}
	return t
}

// Clone returns a deep-enough copy of t safe to hand to callers outside the
// store's lock (mirrors the teacher's InMemoryTaskStore defensive copies).
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Teams = make(map[TeamName]*TeamState, len(t.Teams))
	for name, team := range t.Teams {
		teamCopy := *team
		teamCopy.Agents = make(map[AgentName]*AgentState, len(team.Agents))
		for agentName, agent := range team.Agents {
			agentCopy := *agent
			teamCopy.Agents[agentName] = &agentCopy
		}
		clone.Teams[name] = &teamCopy
	}
	if t.Result != nil {
		res := *t.Result
		res.Hashtags = append([]string(nil), t.Result.Hashtags...)
		clone.Result = &res
	}
	if t.Verification != nil {
		v := *t.Verification
		clone.Verification = &v
	}
	if t.Error != nil {
		e := *t.Error
		clone.Error = &e
	}
	return &clone
}

// RecomputeProgress enforces I1: a team's progress is the mean of its
// agents' progress (0 for a team with no agents); the task's progress is
// the mean of its teams' progress.
func (t *Task) RecomputeProgress() {
	var teamTotal float64
	for _, team := range t.Teams {
		if len(team.Agents) == 0 {
			team.Progress = 0
			continue
		}
		var sum float64
		for _, agent := range team.Agents {
			sum += agent.Progress
		}
		team.Progress = sum / float64(len(team.Agents))
		teamTotal += team.Progress
	}
	if len(t.Teams) == 0 {
		t.Progress = 0
		return
	}
	t.Progress = teamTotal / float64(len(t.Teams))
}
