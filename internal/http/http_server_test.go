package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gitlab.com/judgeflow.net/internal/adapter/logging"
	"gitlab.com/judgeflow.net/internal/adapter/memory"
	"gitlab.com/judgeflow.net/internal/adapter/metrics"
	"gitlab.com/judgeflow.net/internal/config"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/core/services/notifier"
	"gitlab.com/judgeflow.net/internal/core/services/processor"
	"gitlab.com/judgeflow.net/internal/core/services/submission"
	"gitlab.com/judgeflow.net/internal/core/services/worker"
	"gitlab.com/judgeflow.net/internal/domain"
)

type echoExecutor struct{}

func (echoExecutor) Execute(_ context.Context, req domain.ExecutionRequest) domain.ExecutionResult {
	return domain.ExecutionResult{Success: true, Status: domain.VerdictAccepted, Stdout: req.Stdin}
}

type testEnv struct {
	server      *httptest.Server
	submissions *memory.SubmissionRepository
	jobs        *memory.JobStore
	processor   *processor.ProcessorService
	workers     *worker.WorkerRegistrationService
}

type envOptions struct {
	jobs     secondary.JobStore
	notifier secondary.Notifier
	secret   string
	limit    int
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	logger := logging.NewNopLogger()

	env := &testEnv{
		submissions: memory.NewSubmissionRepository(),
		jobs:        memory.NewJobStore(),
		workers:     worker.NewWorkerRegistrationService(memory.NewWorkerRepository(), logger),
	}
	problems := memory.NewProblemRepository()
	problems.AddProblem(domain.Problem{ID: "echo"}, []domain.TestCase{
		{ID: "1", Ordinal: 1, Input: "a", ExpectedOutput: "a", Kind: domain.TestCaseKindExample},
		{ID: "2", Ordinal: 2, Input: "b", ExpectedOutput: "b"},
	})
	problems.AddProblem(domain.Problem{ID: "empty"}, nil)

	var jobs secondary.JobStore = env.jobs
	if opts.jobs != nil {
		jobs = opts.jobs
	}
	var events secondary.Notifier = notifier.NewHub(logger)
	if opts.notifier != nil {
		events = opts.notifier
	}
	if opts.limit == 0 {
		opts.limit = 10
	}

	httpCfg := &config.HTTPConfig{
		MaxCodeBytes:       1024,
		StreamTimeout:      5 * time.Second,
		StreamPollInterval: 10 * time.Millisecond,
	}
	results := memory.NewResultCache(time.Hour)
	m := metrics.New()
	svc := submission.NewSubmissionService(env.submissions, problems, jobs, memory.NewRateLimiter(), results, events,
		&config.RateLimitConfig{Max: opts.limit, Window: time.Minute}, httpCfg, m, logger)
	env.processor = processor.NewProcessorService(env.submissions, echoExecutor{}, results, events, jobs, m, logger)

	server := NewServer("test", *NewServiceProvider(svc, env.workers, jobs, m), httpCfg,
		&config.JwtConfig{Secret: opts.secret, UserHeader: "X-User-ID"}, logger)
	if err := server.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	env.server = httptest.NewServer(server.Handler())
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) submit(t *testing.T, user string, body map[string]string) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, e.server.URL+"/api/submissions", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) runQueued(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for job := e.jobs.ClaimNext(ctx); job != nil; job = e.jobs.ClaimNext(ctx) {
		e.processor.Process(ctx, job)
	}
}

func echoBody() map[string]string {
	return map[string]string{"code": "cat", "language": "python", "problemId": "echo"}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestCreateSubmissionStatusCodes(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	cases := []struct {
		name string
		user string
		body map[string]string
		want int
	}{
		{"accepted", "u1", echoBody(), http.StatusAccepted},
		{"missing identity", "", echoBody(), http.StatusUnauthorized},
		{"empty code", "u1", map[string]string{"code": "", "language": "python", "problemId": "echo"}, http.StatusBadRequest},
		{"bad language", "u1", map[string]string{"code": "x", "language": "cobol", "problemId": "echo"}, http.StatusBadRequest},
		{"oversized code", "u1", map[string]string{"code": strings.Repeat("x", 4096), "language": "python", "problemId": "echo"}, http.StatusBadRequest},
		{"unknown problem", "u1", map[string]string{"code": "x", "language": "python", "problemId": "nope"}, http.StatusNotFound},
		{"no test cases", "u1", map[string]string{"code": "x", "language": "python", "problemId": "empty"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.submit(t, tc.user, tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestCreateSubmissionRateLimited(t *testing.T) {
	env := newTestEnv(t, envOptions{limit: 2})

	for i := 0; i < 2; i++ {
		if resp := env.submit(t, "u1", echoBody()); resp.StatusCode != http.StatusAccepted {
			t.Fatalf("request %d: expected 202, got %d", i+1, resp.StatusCode)
		}
	}
	resp := env.submit(t, "u1", echoBody())
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	body := decode[map[string]interface{}](t, resp)
	if body["remaining"] != float64(0) || body["resetAt"] == nil {
		t.Fatalf("unexpected body %v", body)
	}

	if resp := env.submit(t, "u2", echoBody()); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("limits are per user, got %d", resp.StatusCode)
	}
}

func TestGetSubmission(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	created := decode[map[string]string](t, env.submit(t, "u1", echoBody()))
	if created["status"] != "queued" {
		t.Fatalf("expected queued, got %v", created)
	}
	env.runQueued(t)

	resp, err := http.Get(env.server.URL + "/api/submissions/" + created["submissionId"])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	status := decode[domain.SubmissionStatus](t, resp)
	if status.Status != domain.VerdictAccepted || status.Passed != 2 || status.Total != 2 || len(status.Results) != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Results[1].Stdout != "" {
		t.Fatalf("hidden case output must be withheld")
	}

	for path, want := range map[string]int{
		"/api/submissions/" + uuid.NewString(): http.StatusNotFound,
		"/api/submissions/not-a-uuid":          http.StatusBadRequest,
	} {
		resp, err := http.Get(env.server.URL + path)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("%s: expected %d, got %d", path, want, resp.StatusCode)
		}
	}
}

func TestAuxiliaryRoutes(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	_ = env.workers.RegisterWorker(context.Background(), &domain.WorkerInfo{ID: "w1", Capacity: 3})

	for path, want := range map[string]string{
		"/api/languages": `"python"`,
		"/api/workers":   `"w1"`,
		"/healthz":       `"ok"`,
		"/metrics":       "judge_jobs_in_flight",
	} {
		resp, err := http.Get(env.server.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(buf.String(), want) {
			t.Fatalf("%s: unexpected response %d %s", path, resp.StatusCode, buf.String())
		}
	}
}

func TestHealthDegradedWithoutJobStore(t *testing.T) {
	env := newTestEnv(t, envOptions{jobs: memory.DisabledJobStore{}})
	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	// accepted submissions end as internal_error when the queue is down
	created := decode[map[string]string](t, env.submit(t, "u1", echoBody()))
	if created["status"] != string(domain.VerdictInternalError) {
		t.Fatalf("expected internal_error, got %v", created)
	}
}

func dialStream(t *testing.T, env *testEnv, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/submissions/" + id + "/stream?timeout=5"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvents(t *testing.T, conn *websocket.Conn) []domain.ProgressEvent {
	t.Helper()
	var events []domain.ProgressEvent
	for {
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var ev domain.ProgressEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return events
			}
			t.Fatalf("read: %v (after %d events)", err, len(events))
		}
		events = append(events, ev)
	}
}

func TestStreamReplaysAndCloses(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	created := decode[map[string]string](t, env.submit(t, "u1", echoBody()))

	conn := dialStream(t, env, created["submissionId"])
	env.runQueued(t)

	events := readEvents(t, conn)
	if len(events) == 0 || events[0].Type != domain.EventSubmissionCreated {
		t.Fatalf("expected history to start with submission_created, got %+v", events)
	}
	last := events[len(events)-1]
	if last.Type != domain.EventSubmissionCompleted || last.Status != domain.VerdictAccepted {
		t.Fatalf("expected final completion event, got %+v", last)
	}

	var completed int
	for _, ev := range events {
		if ev.Type == domain.EventTestCaseCompleted {
			completed++
		}
	}
	if completed != 2 {
		t.Fatalf("expected 2 test case events, got %d", completed)
	}

	// a finished submission streams its final state without running anything again
	again := readEvents(t, dialStream(t, env, created["submissionId"]))
	if len(again) != 1 || again[0].Type != domain.EventSubmissionCompleted || again[0].Summary.Passed != 2 {
		t.Fatalf("reconnect should deliver the final event only, got %+v", again)
	}
	if env.jobs.Len() != 0 {
		t.Fatalf("reconnect must not enqueue work")
	}
}

func TestStreamFallsBackToPolling(t *testing.T) {
	env := newTestEnv(t, envOptions{notifier: memory.DisabledNotifier{}})
	created := decode[map[string]string](t, env.submit(t, "u1", echoBody()))

	conn := dialStream(t, env, created["submissionId"])
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var first domain.ProgressEvent
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.Type != domain.EventStatusUpdate || first.Status != domain.VerdictQueued {
		t.Fatalf("expected queued status update, got %+v", first)
	}

	env.runQueued(t)
	events := readEvents(t, conn)
	last := events[len(events)-1]
	if last.Type != domain.EventSubmissionCompleted || last.Summary == nil || last.Summary.Passed != 2 {
		t.Fatalf("expected completion from polling, got %+v", last)
	}
}

func TestStreamUnknownSubmission(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	resp, err := http.Get(env.server.URL + "/api/submissions/" + uuid.NewString() + "/stream")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestJWTIdentity(t *testing.T) {
	env := newTestEnv(t, envOptions{secret: "s3cret"})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	post := func(auth string) int {
		raw, _ := json.Marshal(echoBody())
		req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/api/submissions", bytes.NewReader(raw))
		req.Header.Set("X-User-ID", "ignored")
		if auth != "" {
			req.Header.Set("Authorization", "Bearer "+auth)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(token); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if code := post(""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := post("garbage"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", code)
	}

	stored := env.jobs.ClaimNext(context.Background())
	if stored == nil || stored.UserID != "alice" {
		t.Fatalf("expected user from token subject, got %+v", stored)
	}
}
