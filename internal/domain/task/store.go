package task

import (
	"context"
	"time"
)

// Store is the TaskStore port (spec §4.1): durable, TTL'd key-value
// persistence keyed by "task:"+task_id. Concrete adapters live in
// internal/store; this interface is what the rest of the orchestrator
// depends on, mirroring the teacher's ports.Store boundary.
type Store interface {
	// Put atomically replaces the record for task.TaskID with the given
	// TTL. Put is used for overwrites from ProgressTracker; the initial
	// conditional create goes through PutIfAbsent.
	Put(ctx context.Context, t *Task, ttl time.Duration) error

	// PutIfAbsent creates the record only if task_id does not already
	// exist; returns ErrAlreadyExists otherwise (spec §5 AlreadyExists).
	PutIfAbsent(ctx context.Context, t *Task, ttl time.Duration) error

	// Get returns the task, or ErrNotFound if absent or expired.
	Get(ctx context.Context, taskID string) (*Task, error)

	// List returns all live tasks.
	List(ctx context.Context) ([]*Task, error)

	// Delete removes a task record if present.
	Delete(ctx context.Context, taskID string) error
}
