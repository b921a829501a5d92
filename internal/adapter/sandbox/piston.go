// Package sandbox talks to a Piston-compatible code execution service.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"gitlab.com/judgeflow.net/internal/config"
	"gitlab.com/judgeflow.net/internal/core/ports/primary"
	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

var _ secondary.CodeExecutor = (*PistonClient)(nil)

const maxResponseBytes = 8 << 20

// PistonClient executes code through the Piston /execute endpoint
type PistonClient struct {
	baseURL        string
	compileTimeout time.Duration
	maxRetries     int
	client         *http.Client
	logger         primary.Logger
}

func NewPistonClient(cfg *config.SandboxConfig, logger primary.Logger) *PistonClient {
	return &PistonClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		compileTimeout: cfg.CompileTimeout,
		maxRetries:     cfg.MaxRetries,
		client:         &http.Client{Timeout: cfg.RequestTimeout},
		logger:         logger,
	}
}

type pistonFile struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type executeRequest struct {
	Language           string       `json:"language"`
	Version            string       `json:"version"`
	Files              []pistonFile `json:"files"`
	Stdin              string       `json:"stdin"`
	CompileTimeout     int64        `json:"compile_timeout,omitempty"`
	RunTimeout         int64        `json:"run_timeout,omitempty"`
	CompileMemoryLimit int64        `json:"compile_memory_limit"`
	RunMemoryLimit     int64        `json:"run_memory_limit"`
}

type stage struct {
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
	Output   string   `json:"output"`
	Code     *int     `json:"code"`
	Signal   *string  `json:"signal"`
	Status   *string  `json:"status"`
	Message  *string  `json:"message"`
	CPUTime  *float64 `json:"cpu_time"`
	WallTime *float64 `json:"wall_time"`
	Memory   *int64   `json:"memory"`
}

func (s *stage) failed() bool {
	if s.Code != nil && *s.Code != 0 {
		return true
	}
	return s.Signal != nil && *s.Signal != ""
}

type executeResponse struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Run      *stage `json:"run"`
	Compile  *stage `json:"compile"`
	Message  string `json:"message"`
}

// statusError is a non-2xx answer of the sandbox
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("sandbox responded with status %d: %s", e.code, e.message)
}

// Execute runs the request and maps the answer to the local verdict vocabulary.
// Errors never escape: they become internal_error results.
func (c *PistonClient) Execute(ctx context.Context, req domain.ExecutionRequest) domain.ExecutionResult {
	runtime, ok := domain.RuntimeFor(req.Language)
	if !ok {
		return internalError(fmt.Sprintf("unsupported language %q", req.Language))
	}

	body, err := json.Marshal(c.buildRequest(runtime, req))
	if err != nil {
		return internalError(fmt.Sprintf("failed to marshal sandbox request: %v", err))
	}

	var resp *executeResponse
	operation := func() error {
		r, err := c.post(ctx, body)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) && !retryable(se.code) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	var retry backoff.BackOff = policy
	if c.maxRetries >= 0 {
		retry = backoff.WithMaxRetries(policy, uint64(c.maxRetries))
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Sandbox request failed, retrying", "language", req.Language, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(retry, ctx), notify); err != nil {
		c.logger.Error("Sandbox request failed", "language", req.Language, "error", err)
		return internalError(err.Error())
	}

	return classify(resp, req.MemoryLimitKb)
}

func (c *PistonClient) buildRequest(runtime domain.Runtime, req domain.ExecutionRequest) executeRequest {
	out := executeRequest{
		Language:           runtime.Name,
		Version:            runtime.Version,
		Files:              []pistonFile{{Name: runtime.FileName, Content: req.Code}},
		Stdin:              req.Stdin,
		CompileTimeout:     c.compileTimeout.Milliseconds(),
		CompileMemoryLimit: -1,
		RunMemoryLimit:     -1,
	}
	if req.TimeLimitMs > 0 {
		out.RunTimeout = int64(req.TimeLimitMs)
	}
	if req.MemoryLimitKb > 0 {
		out.RunMemoryLimit = int64(req.MemoryLimitKb) * 1024
	}
	return out
}

func (c *PistonClient) post(ctx context.Context, body []byte) (*executeResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build sandbox request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send sandbox request: %w", err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read sandbox response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		var errBody executeResponse
		_ = json.Unmarshal(payload, &errBody)
		msg := errBody.Message
		if msg == "" {
			msg = http.StatusText(httpResp.StatusCode)
		}
		return nil, &statusError{code: httpResp.StatusCode, message: msg}
	}

	var resp executeResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode sandbox response: %w", err))
	}
	return &resp, nil
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func classify(resp *executeResponse, memoryLimitKb int) domain.ExecutionResult {
	if resp.Compile != nil && resp.Compile.failed() {
		out := resp.Compile.Output
		if out == "" {
			out = resp.Compile.Stderr
		}
		return domain.ExecutionResult{
			Status:        domain.VerdictCompilationError,
			Stdout:        resp.Compile.Stdout,
			Stderr:        resp.Compile.Stderr,
			CompileOutput: out,
		}
	}

	run := resp.Run
	if run == nil {
		return internalError("sandbox response has no run stage")
	}

	result := domain.ExecutionResult{
		Stdout:   run.Stdout,
		Stderr:   run.Stderr,
		TimeMs:   runTime(run),
		MemoryKb: runMemory(run),
	}
	if resp.Compile != nil {
		result.CompileOutput = resp.Compile.Output
	}

	status := ""
	if run.Status != nil {
		status = *run.Status
	}
	signal := ""
	if run.Signal != nil {
		signal = *run.Signal
	}

	switch {
	case status == "XX":
		result.Status = domain.VerdictInternalError
		if run.Message != nil {
			result.Stderr = *run.Message
		}
	case signal == "SIGKILL" && exceededMemory(run, memoryLimitKb):
		result.Status = domain.VerdictMemoryLimitExceeded
	case status == "TO" || signal == "SIGKILL" || signal == "SIGXCPU":
		result.Status = domain.VerdictTimeLimitExceeded
	case run.failed() || status == "RE" || status == "SG":
		result.Status = domain.VerdictRuntimeError
	default:
		result.Status = domain.VerdictAccepted
		result.Success = true
	}
	return result
}

func runTime(run *stage) *float64 {
	if run.CPUTime != nil {
		v := *run.CPUTime
		return &v
	}
	if run.WallTime != nil {
		v := *run.WallTime
		return &v
	}
	return nil
}

func runMemory(run *stage) *int64 {
	if run.Memory == nil {
		return nil
	}
	kb := *run.Memory / 1024
	return &kb
}

func exceededMemory(run *stage, memoryLimitKb int) bool {
	return memoryLimitKb > 0 && run.Memory != nil && *run.Memory >= int64(memoryLimitKb)*1024
}

func internalError(msg string) domain.ExecutionResult {
	return domain.ExecutionResult{
		Status: domain.VerdictInternalError,
		Stderr: msg,
	}
}
