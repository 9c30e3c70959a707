package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paperpost-orchestrator/internal/domain/task"
	"paperpost-orchestrator/internal/store"
)

// stubStore is a minimal in-memory task.Store for handler tests, avoiding a
// dependency on the real store package's TTL/degradation behavior.
type stubStore struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
}

func newStubStore() *stubStore { return &stubStore{tasks: map[string]*task.Task{}} }

func (s *stubStore) Put(_ context.Context, t *task.Task, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.TaskID] = t
	return nil
}

func (s *stubStore) PutIfAbsent(_ context.Context, t *task.Task, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.TaskID]; ok {
		return store.ErrAlreadyExists
	}
	s.tasks[t.TaskID] = t
	return nil
}

func (s *stubStore) Get(_ context.Context, taskID string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (s *stubStore) List(_ context.Context) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (s *stubStore) Delete(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	return nil
}

// stubJobs records StartGeneration calls and returns a canned
// RunVerification response, so handler tests don't need a real graph/LLM.
type stubJobs struct {
	mu       sync.Mutex
	started  []string
	verifyFn func(ctx context.Context, postContent, paperReference string) (*task.VerificationReport, error)
}

func (s *stubJobs) StartGeneration(taskID string, _ task.RequestData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, taskID)
}

func (s *stubJobs) RunVerification(ctx context.Context, postContent, paperReference string) (*task.VerificationReport, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, postContent, paperReference)
	}
	return &task.VerificationReport{OverallScore: 0.9}, nil
}

func newTestServer(jobs *stubJobs) (*Server, *stubStore) {
	st := newStubStore()
	srv := New(Config{}, st, jobs, nil)
	return srv, st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleGeneratePost_Accepted(t *testing.T) {
	jobs := &stubJobs{}
	srv, st := newTestServer(jobs)

	rec := doJSON(t, srv, "POST", "/generate-post", map[string]any{
		"paper_title": "Attention Is All You Need",
	})
	require.Equal(t, 202, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	taskID, _ := resp["task_id"].(string)
	require.NotEmpty(t, taskID)
	require.NotEmpty(t, resp["message"])
	require.NotZero(t, resp["estimated_completion_time"])

	jobs.mu.Lock()
	require.Contains(t, jobs.started, taskID)
	jobs.mu.Unlock()

	_, err := st.Get(context.Background(), taskID)
	require.NoError(t, err)
}

func TestHandleGeneratePost_RejectsShortTitle(t *testing.T) {
	srv, _ := newTestServer(&stubJobs{})
	rec := doJSON(t, srv, "POST", "/generate-post", map[string]any{"paper_title": "hi"})
	require.Equal(t, 400, rec.Code)
}

func TestHandleGeneratePost_RejectsBadAudience(t *testing.T) {
	srv, _ := newTestServer(&stubJobs{})
	rec := doJSON(t, srv, "POST", "/generate-post", map[string]any{
		"paper_title":     "Attention Is All You Need",
		"target_audience": "nonsense",
	})
	require.Equal(t, 400, rec.Code)
}

func TestHandleGetStatus_NotFound(t *testing.T) {
	srv, _ := newTestServer(&stubJobs{})
	rec := doJSON(t, srv, "GET", "/status/does-not-exist", nil)
	require.Equal(t, 404, rec.Code)
}

func TestHandleGetStatus_Found(t *testing.T) {
	jobs := &stubJobs{}
	srv, st := newTestServer(jobs)
	seed := task.NewTask("known", task.RequestData{PaperTitle: "x"}, time.Now().UTC())
	require.NoError(t, st.PutIfAbsent(context.Background(), seed, time.Hour))

	rec := doJSON(t, srv, "GET", "/status/known", nil)
	require.Equal(t, 200, rec.Code)
}

func TestHandleListTasks(t *testing.T) {
	jobs := &stubJobs{}
	srv, st := newTestServer(jobs)
	require.NoError(t, st.PutIfAbsent(context.Background(), task.NewTask("a", task.RequestData{}, time.Now().UTC()), time.Hour))
	require.NoError(t, st.PutIfAbsent(context.Background(), task.NewTask("b", task.RequestData{}, time.Now().UTC()), time.Hour))

	rec := doJSON(t, srv, "GET", "/tasks", nil)
	require.Equal(t, 200, rec.Code)

	var resp struct {
		Tasks []*task.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 2)
}

func TestHandleVerifyPost_OK(t *testing.T) {
	jobs := &stubJobs{}
	srv, _ := newTestServer(jobs)

	rec := doJSON(t, srv, "POST", "/verify-post", map[string]any{
		"post_content":    "a draft",
		"paper_reference": "Attention Is All You Need",
	})
	require.Equal(t, 200, rec.Code)

	var report task.VerificationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, 0.9, report.OverallScore)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["verification_id"])
	require.NotEmpty(t, body["verified_at"])
}

func TestHandleVerifyPost_Timeout(t *testing.T) {
	jobs := &stubJobs{verifyFn: func(ctx context.Context, content, ref string) (*task.VerificationReport, error) {
		return nil, context.DeadlineExceeded
	}}
	srv, _ := newTestServer(jobs)

	rec := doJSON(t, srv, "POST", "/verify-post", map[string]any{"post_content": "a draft"})
	require.Equal(t, 408, rec.Code)
}

func TestHandleVerifyPost_MissingContent(t *testing.T) {
	srv, _ := newTestServer(&stubJobs{})
	rec := doJSON(t, srv, "POST", "/verify-post", map[string]any{"paper_reference": "x"})
	require.Equal(t, 400, rec.Code)
}

func TestHandleBatchGenerate_LaunchesEachRequest(t *testing.T) {
	jobs := &stubJobs{}
	srv, _ := newTestServer(jobs)

	rec := doJSON(t, srv, "POST", "/batch-generate", map[string]any{
		"papers": []map[string]any{
			{"paper_title": "Attention Is All You Need"},
			{"paper_title": "Deep Residual Learning"},
		},
	})
	require.Equal(t, 202, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["batch_id"])
	require.EqualValues(t, 2, resp["total_posts"])

	jobs.mu.Lock()
	defer jobs.mu.Unlock()
	require.Len(t, jobs.started, 2)
}

func TestHandleBatchGenerate_RejectsEmptyBatch(t *testing.T) {
	srv, _ := newTestServer(&stubJobs{})
	rec := doJSON(t, srv, "POST", "/batch-generate", map[string]any{"papers": []map[string]any{}})
	require.Equal(t, 400, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(&stubJobs{})
	rec := doJSON(t, srv, "GET", "/health", nil)
	require.Equal(t, 200, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, body["version"])
	services, ok := body["services"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, services["llm"])
	require.Equal(t, true, services["search"])
	require.Equal(t, true, services["store"])
}

type fakeHealthChecker struct{ healthy bool }

func (f fakeHealthChecker) Healthy() bool { return f.healthy }

func TestHandleHealth_ReportsDegradedDependency(t *testing.T) {
	st := newStubStore()
	srv := New(Config{LLMHealth: fakeHealthChecker{healthy: false}}, st, &stubJobs{}, nil)
	rec := doJSON(t, srv, "GET", "/health", nil)
	require.Equal(t, 200, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "degraded", body["status"])
	services := body["services"].(map[string]any)
	require.Equal(t, false, services["llm"])
}
