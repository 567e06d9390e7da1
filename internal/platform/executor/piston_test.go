package executor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codearena/internal/common"
)

func TestExecuteBuildsPistonRequest(t *testing.T) {
	var got struct {
		Language       string `json:"language"`
		Version        string `json:"version"`
		Files          []struct{ Content string } `json:"files"`
		Stdin          string `json:"stdin"`
		RunTimeout     int    `json:"run_timeout"`
		RunMemoryLimit int64  `json:"run_memory_limit"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/execute" {
			t.Errorf("path = %s, want /api/v2/execute", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		code := 0
		json.NewEncoder(w).Encode(ExecResult{Run: StageResult{Stdout: "hi\n", Code: &code}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	res, err := c.Execute(context.Background(), ExecRequest{
		Language:      "python",
		Code:          "print('hi')",
		Stdin:         "in",
		RunTimeoutMs:  1500,
		MemoryLimitKb: 65536,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got.Language != "python" || got.Version != "*" {
		t.Errorf("language/version = %s/%s, want python/*", got.Language, got.Version)
	}
	if len(got.Files) != 1 || got.Files[0].Content != "print('hi')" {
		t.Errorf("files = %+v", got.Files)
	}
	if got.RunTimeout != 1500 {
		t.Errorf("run_timeout = %d, want 1500", got.RunTimeout)
	}
	if got.RunMemoryLimit != 65536*1024 {
		t.Errorf("run_memory_limit = %d bytes, want %d", got.RunMemoryLimit, 65536*1024)
	}
	if res.Run.Stdout != "hi\n" {
		t.Errorf("stdout = %q", res.Run.Stdout)
	}
}

func TestExecuteServerErrorIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Execute(context.Background(), ExecRequest{Language: "python", Code: "x"})
	if !errors.Is(err, common.ErrServiceUnavailable) {
		t.Errorf("error = %v, want ErrServiceUnavailable", err)
	}
}

func TestExecuteUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.Execute(context.Background(), ExecRequest{Language: "python", Code: "x"})
	if !errors.Is(err, common.ErrServiceUnavailable) {
		t.Errorf("error = %v, want ErrServiceUnavailable", err)
	}
}

func TestRuntimes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/runtimes" {
			t.Errorf("path = %s, want /api/v2/runtimes", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Runtime{{Language: "python", Version: "3.12.0"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	runtimes, err := c.Runtimes(context.Background())
	if err != nil {
		t.Fatalf("Runtimes: %v", err)
	}
	if len(runtimes) != 1 || runtimes[0].Language != "python" {
		t.Errorf("runtimes = %+v", runtimes)
	}
}
