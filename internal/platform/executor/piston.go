package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"codearena/internal/common"
)

// Client talks to a Piston execution server (api/v2).
// All sandboxing and isolation happens on the Piston side; this client only
// ships code+stdin over and reads the stage results back.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ExecRequest struct {
	Language      string
	Version       string // empty means "*" (latest installed runtime)
	Code          string
	Stdin         string
	RunTimeoutMs  int
	MemoryLimitKb int
}

// StageResult is the output of one Piston stage (compile or run).
type StageResult struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Code   *int    `json:"code"`   // nil when the process was killed by a signal
	Signal *string `json:"signal"` // SIGKILL on timeout / memory kill
}

type ExecResult struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Compile  *StageResult `json:"compile,omitempty"` // absent for interpreted languages
	Run      StageResult  `json:"run"`
	WallMs   int          `json:"-"` // measured client side
}

type pistonFile struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type pistonExecuteRequest struct {
	Language       string       `json:"language"`
	Version        string       `json:"version"`
	Files          []pistonFile `json:"files"`
	Stdin          string       `json:"stdin"`
	RunTimeout     int          `json:"run_timeout,omitempty"`     // ms
	RunMemoryLimit int64        `json:"run_memory_limit,omitempty"` // bytes, -1 = unlimited
}

// Execute runs one (code, stdin) pair. A non-nil error means the execution
// service itself failed (network, 5xx, bad payload); judged outcomes like a
// timed-out run come back inside ExecResult, not as an error.
func (c *Client) Execute(ctx context.Context, req ExecRequest) (*ExecResult, error) {
	version := req.Version
	if version == "" {
		version = "*"
	}
	body := pistonExecuteRequest{
		Language:   req.Language,
		Version:    version,
		Files:      []pistonFile{{Content: req.Code}},
		Stdin:      req.Stdin,
		RunTimeout: req.RunTimeoutMs,
	}
	if req.MemoryLimitKb > 0 {
		body.RunMemoryLimit = int64(req.MemoryLimitKb) * 1024
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("executor: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("executor: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executor unreachable: %v: %w", err, common.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("executor returned %d: %s: %w", resp.StatusCode, string(msg), common.ErrServiceUnavailable)
	}

	var result ExecResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("executor: decode response: %w", err)
	}
	result.WallMs = int(time.Since(start).Milliseconds())
	return &result, nil
}

type Runtime struct {
	Language string   `json:"language"`
	Version  string   `json:"version"`
	Aliases  []string `json:"aliases"`
}

// Runtimes lists the languages installed on the Piston server.
func (c *Client) Runtimes(ctx context.Context) ([]Runtime, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2/runtimes", nil)
	if err != nil {
		return nil, fmt.Errorf("executor: build request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executor unreachable: %v: %w", err, common.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("executor returned %d: %w", resp.StatusCode, common.ErrServiceUnavailable)
	}

	var runtimes []Runtime
	if err := json.NewDecoder(resp.Body).Decode(&runtimes); err != nil {
		return nil, fmt.Errorf("executor: decode runtimes: %w", err)
	}
	return runtimes, nil
}
