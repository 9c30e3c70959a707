// Package progress implements the ProgressTracker (spec §4.2): the sole
// writer to a Task during its lifetime, enforcing invariants I1-I5 and I7.
// Grounded on the teacher's TaskProgressTracker
// (internal/delivery/server/app/task_progress_tracker.go), adapted from a
// session/run event listener into a direct per-task mutator since this
// domain has no session layer.
package progress

import (
	"context"
	"time"

	"paperpost-orchestrator/internal/domain/task"
	"paperpost-orchestrator/internal/logging"
)

// Publisher receives a Task snapshot every time the tracker flushes,
// letting the HTTP layer's websocket stream push updates without the
// tracker depending on transport code (spec §9: supplemented stream
// transport via a small capability set).
type Publisher interface {
	Publish(t *task.Task)
}

// noopPublisher is used when no Publisher is wired (e.g. the standalone
// verify path, spec §9 open-question #2).
type noopPublisher struct{}

func (noopPublisher) Publish(*task.Task) {}

// Tracker mediates all writes to one Task during its execution. One
// Tracker instance is bound to exactly one task_id for the lifetime of the
// job (I6: exactly one writer).
type Tracker struct {
	store     task.Store
	taskID    string
	ttl       time.Duration
	logger    logging.Logger
	publisher Publisher

	current *task.Task

	debounce  time.Duration
	lastFlush time.Time
}

// New binds a Tracker to taskID, loading its current record from store.
func New(ctx context.Context, store task.Store, taskID string, ttl time.Duration, publisher Publisher, logger logging.Logger) (*Tracker, error) {
	t, err := store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Tracker{
		store:     store,
		taskID:    taskID,
		ttl:       ttl,
		logger:    logging.OrNop(logger),
		publisher: publisher,
		current:   t,
		debounce:  200 * time.Millisecond,
	}, nil
}

// TaskUpdate is a partial update to top-level Task fields (spec §4.2).
type TaskUpdate struct {
	Status       *task.Status
	Progress     *float64
	CurrentStep  *string
	Phase        *string
	Result       *task.LinkedInPostArtifact
	Verification *task.VerificationReport
	Error        *task.ErrorInfo
}

// UpdateTask applies a partial update and flushes (status transitions
// always flush immediately; see Flush for the debounce policy).
func (tr *Tracker) UpdateTask(ctx context.Context, u TaskUpdate) error {
	statusChanged := false
	if u.Status != nil {
		if !tr.current.Status.CanTransitionTo(*u.Status) {
			// I4: silently ignore illegal backward transitions rather than
			// corrupting the record; callers drive the graph correctly so
			// this only guards against bugs.
			tr.logger.Warn("ignored illegal task status transition %s -> %s", tr.current.Status, *u.Status)
		} else {
			tr.current.Status = *u.Status
			statusChanged = true
		}
	}
	if u.Progress != nil {
		tr.current.Progress = *u.Progress
	}
	if u.CurrentStep != nil {
		tr.current.CurrentStep = *u.CurrentStep
	}
	if u.Phase != nil {
		tr.current.Phase = *u.Phase
	}
	if u.Result != nil {
		tr.current.Result = u.Result
	}
	if u.Verification != nil {
		tr.current.Verification = u.Verification
	}
	if u.Error != nil {
		tr.current.Error = u.Error
	}
	tr.current.UpdatedAt = time.Now().UTC()

	return tr.maybeFlush(ctx, statusChanged)
}

// UpdateAgent updates one AgentState then recomputes team/task progress
// per I1, and promotes team status to COMPLETED/FAILED when warranted
// (spec §4.2).
func (tr *Tracker) UpdateAgent(ctx context.Context, agentName task.AgentName, status task.AgentStatus, activity, findings, errMessage string) error {
	teamName, ok := task.TeamOfAgent[agentName]
	if !ok {
		return nil
	}
	team := tr.current.Teams[teamName]
	agent := team.Agents[agentName]
	prevTeamStatus := team.Status

	agentChanged := false
	if !agent.Status.CanTransitionTo(status) {
		tr.logger.Warn("ignored illegal agent status transition %s: %s -> %s", agentName, agent.Status, status)
	} else {
		agentChanged = agent.Status != status
		agent.Status = status
	}
	if activity != "" {
		agent.CurrentActivity = activity
	}
	if findings != "" {
		agent.Findings = findings
	}
	if errMessage != "" {
		agent.ErrorMessage = errMessage
	}
	switch status {
	case task.AgentWorking:
		agent.Progress = 0.5
	case task.AgentCompleted:
		agent.Progress = 1.0
	case task.AgentError:
		agent.Progress = 1.0
	}
	agent.LastUpdate = time.Now().UTC()

	teamTerminal := tr.recomputeTeamStatus(team)

	tr.current.RecomputeProgress()
	tr.current.UpdatedAt = time.Now().UTC()

	return tr.maybeFlush(ctx, teamTerminal || agentChanged || team.Status != prevTeamStatus)
}

// recomputeTeamStatus promotes a team to COMPLETED when every agent is
// COMPLETED, or to FAILED when any agent errored fatally, stamping
// completed_at. Returns true if a terminal transition happened (forces an
// immediate flush).
func (tr *Tracker) recomputeTeamStatus(team *task.TeamState) bool {
	if team.Status.IsTerminal() {
		return false
	}
	allCompleted := true
	anyError := false
	anyActive := false
	for _, agent := range team.Agents {
		switch agent.Status {
		case task.AgentCompleted:
		case task.AgentError:
			anyError = true
			allCompleted = false
		default:
			allCompleted = false
		}
		if agent.Status != task.AgentIdle {
			anyActive = true
		}
	}
	now := time.Now().UTC()
	if team.Status == task.StatusPending && anyActive {
		team.Status = task.StatusInProgress
		team.StartedAt = &now
	}
	if allCompleted {
		team.Status = task.StatusCompleted
		team.CompletedAt = &now
		return true
	}
	if anyError {
		team.Status = task.StatusFailed
		team.CompletedAt = &now
		return true
	}
	return false
}

// InitializeTeams is a no-op beyond what task.NewTask already does; kept as
// a named operation to match spec §4.2's operation list for callers that
// want to re-assert the PENDING/IDLE baseline explicitly.
func (tr *Tracker) InitializeTeams(ctx context.Context) error {
	return tr.maybeFlush(ctx, true)
}

// maybeFlush writes through to the store, debounced at <=200ms unless
// force is set (status transitions, or job termination must always flush
// immediately per spec §4.2).
func (tr *Tracker) maybeFlush(ctx context.Context, force bool) error {
	if !force && time.Since(tr.lastFlush) < tr.debounce {
		return nil
	}
	return tr.Flush(ctx)
}

// Flush writes the current in-memory Task to the store unconditionally.
// Callers must call Flush when the bound job terminates, regardless of
// debounce state (spec §4.2).
func (tr *Tracker) Flush(ctx context.Context) error {
	if err := tr.store.Put(ctx, tr.current, tr.ttl); err != nil {
		return err
	}
	tr.lastFlush = time.Now()
	tr.publisher.Publish(tr.current.Clone())
	return nil
}

// Snapshot returns a defensive copy of the tracker's current in-memory view.
func (tr *Tracker) Snapshot() *task.Task { return tr.current.Clone() }
