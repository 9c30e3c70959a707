package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	alexerrors "paperpost-orchestrator/internal/errors"
	"paperpost-orchestrator/internal/domain/task"
	"paperpost-orchestrator/internal/logging"
)

// DegradingStore implements task.Store by preferring a remote backend and
// transparently falling back to an in-process MemoryStore on any remote
// error, per spec §4.1: "On any remote error, the adapter transparently
// degrades to an in-process map... logs the degradation once per
// transition... When remote becomes reachable again the in-process map is
// not promoted back". Grounded in the teacher's InMemoryTaskStore combined
// with its internal/errors.CircuitBreaker pattern to decide when to stop
// even trying the remote.
type DegradingStore struct {
	remote  task.Store
	local   *MemoryStore
	breaker *alexerrors.CircuitBreaker
	logger  logging.Logger

	degraded atomic.Bool
	once     sync.Once
}

// NewDegradingStore wires remote (nil means no remote is configured, e.g.
// STORE_URL empty -> "always fallback") behind a circuit breaker so a
// flapping Redis does not add latency to every call once it is known down.
func NewDegradingStore(remote task.Store, local *MemoryStore, logger logging.Logger) *DegradingStore {
	logger = logging.OrNop(logger)
	ds := &DegradingStore{
		remote: remote,
		local:  local,
		logger: logger,
	}
	ds.breaker = alexerrors.NewCircuitBreaker("task-store", alexerrors.DefaultCircuitBreakerConfig())
	if remote == nil {
		ds.degraded.Store(true)
	}
	return ds
}

func (s *DegradingStore) logDegradeOnce() {
	s.once.Do(func() {
		s.logger.Warn("task store degraded to in-process fallback; remote store unreachable")
	})
}

// withRemote runs fn against the remote store under the circuit breaker,
// falling back to the local store on any failure or when already degraded.
func (s *DegradingStore) withRemote(ctx context.Context, fn func(task.Store) error, fallback func(*MemoryStore) error) error {
	if s.remote == nil || s.degraded.Load() {
		return fallback(s.local)
	}
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return fn(s.remote)
	})
	if err != nil {
		var serErr *SerializationError
		if isSerialization(err, &serErr) || err == ErrNotFound || err == ErrAlreadyExists {
			// Serialization errors are fatal for that write regardless of
			// backend reachability; NotFound/AlreadyExists are expected
			// outcomes of a reachable remote, not connectivity failures
			// (spec §4.1).
			return err
		}
		s.degraded.Store(true)
		s.logDegradeOnce()
		return fallback(s.local)
	}
	return nil
}

func isSerialization(err error, target **SerializationError) bool {
	for err != nil {
		if se, ok := err.(*SerializationError); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (s *DegradingStore) Put(ctx context.Context, t *task.Task, ttl time.Duration) error {
	return s.withRemote(ctx,
		func(r task.Store) error { return r.Put(ctx, t, ttl) },
		func(m *MemoryStore) error { return m.Put(ctx, t, ttl) },
	)
}

func (s *DegradingStore) PutIfAbsent(ctx context.Context, t *task.Task, ttl time.Duration) error {
	return s.withRemote(ctx,
		func(r task.Store) error { return r.PutIfAbsent(ctx, t, ttl) },
		func(m *MemoryStore) error { return m.PutIfAbsent(ctx, t, ttl) },
	)
}

// Get reads from whichever backend currently owns writes. Once degraded,
// reads also serve from local so a status poll sees a consistent view for
// tasks that started writing to the fallback (spec §4.1: "Status endpoints
// reading via the adapter see a consistent-for-the-process view").
func (s *DegradingStore) Get(ctx context.Context, taskID string) (*task.Task, error) {
	var result *task.Task
	err := s.withRemote(ctx,
		func(r task.Store) error {
			t, err := r.Get(ctx, taskID)
			if err != nil {
				return err
			}
			result = t
			return nil
		},
		func(m *MemoryStore) error {
			t, err := m.Get(ctx, taskID)
			if err != nil {
				return err
			}
			result = t
			return nil
		},
	)
	return result, err
}

func (s *DegradingStore) List(ctx context.Context) ([]*task.Task, error) {
	var result []*task.Task
	err := s.withRemote(ctx,
		func(r task.Store) error {
			t, err := r.List(ctx)
			if err != nil {
				return err
			}
			result = t
			return nil
		},
		func(m *MemoryStore) error {
			t, err := m.List(ctx)
			if err != nil {
				return err
			}
			result = t
			return nil
		},
	)
	return result, err
}

func (s *DegradingStore) Delete(ctx context.Context, taskID string) error {
	return s.withRemote(ctx,
		func(r task.Store) error { return r.Delete(ctx, taskID) },
		func(m *MemoryStore) error { return m.Delete(ctx, taskID) },
	)
}

// Degraded reports whether the store is currently serving from the local
// fallback (exported for /health and for tests, not for redirection logic).
func (s *DegradingStore) Degraded() bool { return s.degraded.Load() }
