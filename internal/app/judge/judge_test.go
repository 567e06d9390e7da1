package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"codearena/internal/domain/model"
	"codearena/internal/platform/executor"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestOutputsMatch(t *testing.T) {
	tests := []struct {
		actual, expected string
		want             bool
	}{
		{"0 1", "0 1", true},
		{"0 1\n", "0 1", true},
		{"  0 1  ", "0 1", true},
		{"0 1", "1 2", false},
		{"0  1", "0 1", false}, // internal whitespace is significant
		{"", "", true},
	}
	for _, tt := range tests {
		if got := OutputsMatch(tt.actual, tt.expected); got != tt.want {
			t.Errorf("OutputsMatch(%q, %q) = %v, want %v", tt.actual, tt.expected, got, tt.want)
		}
	}
}

func TestCaseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		res      executor.ExecResult
		expected string
		want     model.Verdict
	}{
		{
			name:     "accepted",
			res:      executor.ExecResult{Run: executor.StageResult{Stdout: "0 1\n", Code: intPtr(0)}},
			expected: "0 1",
			want:     model.VerdictAccepted,
		},
		{
			name:     "wrong answer",
			res:      executor.ExecResult{Run: executor.StageResult{Stdout: "1 2\n", Code: intPtr(0)}},
			expected: "0 1",
			want:     model.VerdictWrongAnswer,
		},
		{
			name:     "compile error",
			res:      executor.ExecResult{Compile: &executor.StageResult{Stderr: "syntax error", Code: intPtr(1)}},
			expected: "0 1",
			want:     model.VerdictCompileError,
		},
		{
			name:     "time limit exceeded",
			res:      executor.ExecResult{Run: executor.StageResult{Signal: strPtr("SIGKILL")}},
			expected: "0 1",
			want:     model.VerdictTimeLimitExceeded,
		},
		{
			name:     "runtime error",
			res:      executor.ExecResult{Run: executor.StageResult{Stderr: "panic", Code: intPtr(2)}},
			expected: "0 1",
			want:     model.VerdictRuntimeError,
		},
		{
			name: "compile succeeded then wrong answer",
			res: executor.ExecResult{
				Compile: &executor.StageResult{Code: intPtr(0)},
				Run:     executor.StageResult{Stdout: "nope", Code: intPtr(0)},
			},
			expected: "0 1",
			want:     model.VerdictWrongAnswer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CaseVerdict(&tt.res, tt.expected); got != tt.want {
				t.Errorf("CaseVerdict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		verdicts []model.Verdict
		want     model.Verdict
	}{
		{"all accepted", []model.Verdict{model.VerdictAccepted, model.VerdictAccepted}, model.VerdictAccepted},
		{"one wrong answer", []model.Verdict{model.VerdictAccepted, model.VerdictWrongAnswer}, model.VerdictWrongAnswer},
		{"tle beats wrong answer", []model.Verdict{model.VerdictWrongAnswer, model.VerdictTimeLimitExceeded}, model.VerdictTimeLimitExceeded},
		{"compile error beats everything", []model.Verdict{model.VerdictTimeLimitExceeded, model.VerdictCompileError, model.VerdictRuntimeError}, model.VerdictCompileError},
		{"runtime error beats wrong answer", []model.Verdict{model.VerdictWrongAnswer, model.VerdictRuntimeError}, model.VerdictRuntimeError},
		{"empty is execution error", nil, model.VerdictExecutionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.verdicts); got != tt.want {
				t.Errorf("Aggregate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCaseFor(t *testing.T) {
	problem := &model.Problem{ID: "p1", RuntimeLimitMs: 2000, MemoryLimitKb: 256000}

	tc := model.TestCase{ID: "tc1", Stdin: "in", ExpectedStdout: "out", IsHidden: true}
	in := CaseFor(problem, tc)
	if in.TimeLimitMs != 2000 || in.MemoryLimitKb != 256000 {
		t.Errorf("defaults not applied: got %d ms / %d kb", in.TimeLimitMs, in.MemoryLimitKb)
	}
	if !in.Hidden {
		t.Error("hidden flag not carried over")
	}

	tc.TimeLimitMs = intPtr(500)
	tc.MemoryLimitKb = intPtr(64000)
	in = CaseFor(problem, tc)
	if in.TimeLimitMs != 500 || in.MemoryLimitKb != 64000 {
		t.Errorf("per-case overrides not applied: got %d ms / %d kb", in.TimeLimitMs, in.MemoryLimitKb)
	}
}

// twoSumHandler emulates a Piston server that answers the two-sum problem
// correctly for the first sample and wrongly for everything else.
func twoSumHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stdin string `json:"stdin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode piston request: %v", err)
		}
		out := "0 1\n"
		if req.Stdin != "4\n2 7 11 15\n9\n" {
			out = "wrong\n"
		}
		json.NewEncoder(w).Encode(executor.ExecResult{
			Run: executor.StageResult{Stdout: out, Code: intPtr(0)},
		})
	}
}

func TestJudgeAllTwoSum(t *testing.T) {
	srv := httptest.NewServer(twoSumHandler(t))
	defer srv.Close()

	runner := NewRunner(executor.NewClient(srv.URL, 0))
	cases := []CaseInput{
		{TestCaseID: "c1", Stdin: "4\n2 7 11 15\n9\n", Expected: "0 1", TimeLimitMs: 2000},
		{TestCaseID: "c2", Stdin: "3\n3 2 4\n6\n", Expected: "1 2", TimeLimitMs: 2000, Hidden: true},
	}

	outcomes, verdict := runner.JudgeAll(context.Background(), "python", "print()", cases)
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Verdict != model.VerdictAccepted {
		t.Errorf("case 1 verdict = %v, want accepted", outcomes[0].Verdict)
	}
	if outcomes[1].Verdict != model.VerdictWrongAnswer {
		t.Errorf("case 2 verdict = %v, want wrong_answer", outcomes[1].Verdict)
	}
	if verdict != model.VerdictWrongAnswer {
		t.Errorf("aggregate verdict = %v, want wrong_answer", verdict)
	}
}

func TestJudgeAllCompileErrorShortCircuits(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(executor.ExecResult{
			Compile: &executor.StageResult{Stderr: "syntax error", Code: intPtr(1)},
		})
	}))
	defer srv.Close()

	runner := NewRunner(executor.NewClient(srv.URL, 0))
	cases := []CaseInput{
		{TestCaseID: "c1", Expected: "a"},
		{TestCaseID: "c2", Expected: "b"},
		{TestCaseID: "c3", Expected: "c"},
	}

	outcomes, verdict := runner.JudgeAll(context.Background(), "cpp", "int main(", cases)
	if calls != 1 {
		t.Errorf("executor called %d times, want 1 (short-circuit)", calls)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3 (skipped cases still recorded)", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Verdict != model.VerdictCompileError {
			t.Errorf("outcome %d verdict = %v, want compile_error", i, o.Verdict)
		}
	}
	if verdict != model.VerdictCompileError {
		t.Errorf("aggregate verdict = %v, want compile_error", verdict)
	}
}

func TestJudgeAllExecutorDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	runner := NewRunner(executor.NewClient(srv.URL, 0))
	outcomes, verdict := runner.JudgeAll(context.Background(), "python", "print()", []CaseInput{
		{TestCaseID: "c1", Expected: "x"},
		{TestCaseID: "c2", Expected: "y"},
	})
	if verdict != model.VerdictExecutionError {
		t.Errorf("aggregate verdict = %v, want execution_error", verdict)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
}
