package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gitlab.com/judgeflow.net/internal/adapter/logging"
	"gitlab.com/judgeflow.net/internal/config"
	"gitlab.com/judgeflow.net/internal/domain"
)

func newTestClient(url string, retries int) *PistonClient {
	return NewPistonClient(&config.SandboxConfig{
		BaseURL:        url,
		RequestTimeout: 2 * time.Second,
		CompileTimeout: 10 * time.Second,
		MaxRetries:     retries,
	}, logging.NewNopLogger())
}

func serveJSON(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func pythonRequest() domain.ExecutionRequest {
	return domain.ExecutionRequest{
		Code:          "print(input())",
		Language:      domain.LanguagePython,
		Stdin:         "hello",
		TimeLimitMs:   1500,
		MemoryLimitKb: 65536,
	}
}

func TestExecuteSendsPistonRequest(t *testing.T) {
	var got executeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/execute" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"language":"python","version":"3.10.0","run":{"stdout":"hello\n","stderr":"","code":0,"signal":null}}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL+"/", 0).Execute(context.Background(), pythonRequest())

	if !res.Success || res.Status != domain.VerdictAccepted {
		t.Fatalf("expected tentative accepted, got %+v", res)
	}
	if res.Stdout != "hello\n" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
	if got.Language != "python" || got.Version != "3.10.0" {
		t.Fatalf("unexpected runtime %s %s", got.Language, got.Version)
	}
	if len(got.Files) != 1 || got.Files[0].Name != "main.py" || got.Files[0].Content != "print(input())" {
		t.Fatalf("unexpected files %+v", got.Files)
	}
	if got.Stdin != "hello" || got.RunTimeout != 1500 || got.RunMemoryLimit != 65536*1024 {
		t.Fatalf("unexpected limits %+v", got)
	}
	if res.TimeMs != nil || res.MemoryKb != nil {
		t.Fatalf("expected no timing when backend does not report it")
	}
}

func TestExecuteClassifiesResponses(t *testing.T) {
	cases := []struct {
		name string
		body string
		want domain.Verdict
	}{
		{
			name: "compile failure",
			body: `{"compile":{"stdout":"","stderr":"main.cpp:1: error","output":"main.cpp:1: error","code":1,"signal":null},"run":{"stdout":"","stderr":"","code":null,"signal":null}}`,
			want: domain.VerdictCompilationError,
		},
		{
			name: "killed by sigkill",
			body: `{"run":{"stdout":"","stderr":"","code":null,"signal":"SIGKILL"}}`,
			want: domain.VerdictTimeLimitExceeded,
		},
		{
			name: "cpu limit signal",
			body: `{"run":{"stdout":"","stderr":"","code":null,"signal":"SIGXCPU"}}`,
			want: domain.VerdictTimeLimitExceeded,
		},
		{
			name: "timeout status",
			body: `{"run":{"stdout":"","stderr":"","code":null,"signal":null,"status":"TO"}}`,
			want: domain.VerdictTimeLimitExceeded,
		},
		{
			name: "sigkill at memory limit",
			body: `{"run":{"stdout":"","stderr":"","code":null,"signal":"SIGKILL","memory":67108864}}`,
			want: domain.VerdictMemoryLimitExceeded,
		},
		{
			name: "non zero exit",
			body: `{"run":{"stdout":"","stderr":"Traceback","code":1,"signal":null}}`,
			want: domain.VerdictRuntimeError,
		},
		{
			name: "segfault",
			body: `{"run":{"stdout":"","stderr":"","code":null,"signal":"SIGSEGV"}}`,
			want: domain.VerdictRuntimeError,
		},
		{
			name: "sandbox internal status",
			body: `{"run":{"stdout":"","stderr":"","code":null,"signal":null,"status":"XX","message":"box failure"}}`,
			want: domain.VerdictInternalError,
		},
		{
			name: "missing run stage",
			body: `{"language":"python"}`,
			want: domain.VerdictInternalError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serveJSON(t, http.StatusOK, tc.body)
			res := newTestClient(srv.URL, 0).Execute(context.Background(), pythonRequest())
			if res.Status != tc.want {
				t.Fatalf("expected %s, got %s (%+v)", tc.want, res.Status, res)
			}
			if res.Success {
				t.Fatalf("failed runs must not report success")
			}
		})
	}
}

func TestExecuteCompileOutput(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"compile":{"stderr":"boom","output":"","code":2},"run":{"code":null}}`)
	res := newTestClient(srv.URL, 0).Execute(context.Background(), pythonRequest())
	if res.Status != domain.VerdictCompilationError || res.CompileOutput != "boom" {
		t.Fatalf("unexpected compile result %+v", res)
	}
}

func TestExecuteReportsTimingWhenAvailable(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"run":{"stdout":"1","code":0,"cpu_time":12.5,"wall_time":30,"memory":2048000}}`)
	res := newTestClient(srv.URL, 0).Execute(context.Background(), pythonRequest())
	if res.TimeMs == nil || *res.TimeMs != 12.5 {
		t.Fatalf("expected cpu time 12.5, got %v", res.TimeMs)
	}
	if res.MemoryKb == nil || *res.MemoryKb != 2000 {
		t.Fatalf("expected memory 2000KB, got %v", res.MemoryKb)
	}
}

func TestExecuteConvertsFailuresToInternalError(t *testing.T) {
	t.Run("client error is not retried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"runtime is unknown"}`))
		}))
		defer srv.Close()

		res := newTestClient(srv.URL, 3).Execute(context.Background(), pythonRequest())
		if res.Status != domain.VerdictInternalError {
			t.Fatalf("expected internal_error, got %s", res.Status)
		}
		if atomic.LoadInt32(&calls) != 1 {
			t.Fatalf("expected a single call, got %d", calls)
		}
	})

	t.Run("server error is retried", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"run":{"stdout":"ok","code":0}}`))
		}))
		defer srv.Close()

		res := newTestClient(srv.URL, 2).Execute(context.Background(), pythonRequest())
		if res.Status != domain.VerdictAccepted {
			t.Fatalf("expected accepted after retry, got %s", res.Status)
		}
		if atomic.LoadInt32(&calls) != 2 {
			t.Fatalf("expected two calls, got %d", calls)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		srv := serveJSON(t, http.StatusOK, `not json`)
		res := newTestClient(srv.URL, 2).Execute(context.Background(), pythonRequest())
		if res.Status != domain.VerdictInternalError {
			t.Fatalf("expected internal_error, got %s", res.Status)
		}
	})

	t.Run("unreachable service", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		res := newTestClient(url, 0).Execute(context.Background(), pythonRequest())
		if res.Status != domain.VerdictInternalError || res.Stderr == "" {
			t.Fatalf("expected internal_error with message, got %+v", res)
		}
	})

	t.Run("unsupported language", func(t *testing.T) {
		req := pythonRequest()
		req.Language = "cobol"
		res := newTestClient("http://127.0.0.1:1", 0).Execute(context.Background(), req)
		if res.Status != domain.VerdictInternalError {
			t.Fatalf("expected internal_error, got %s", res.Status)
		}
	})
}
