package model

import "time"

// Verdict is the judged outcome of a submission or a single test case.
type Verdict string

const (
	VerdictPending           Verdict = "pending"
	VerdictJudging           Verdict = "judging"
	VerdictAccepted          Verdict = "accepted"
	VerdictWrongAnswer       Verdict = "wrong_answer"
	VerdictTimeLimitExceeded Verdict = "time_limit_exceeded"
	VerdictRuntimeError      Verdict = "runtime_error"
	VerdictCompileError      Verdict = "compile_error"
	VerdictExecutionError    Verdict = "execution_error" // executor unreachable or broken
)

// Terminal reports whether the verdict will not change anymore.
func (v Verdict) Terminal() bool {
	return v != VerdictPending && v != VerdictJudging
}

type Submission struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	ProblemID    string           `json:"problem_id"`
	Language     string           `json:"language"`
	Code         string           `json:"code"`
	Verdict      Verdict          `json:"verdict"`
	PassedCount  int              `json:"passed_count"`
	TotalCount   int              `json:"total_count"`
	ContestID    *string          `json:"contest_id,omitempty"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	JudgedAt     *time.Time       `json:"judged_at,omitempty"`
	CaseResults  []TestCaseResult `json:"case_results,omitempty"`
	Username     *string          `json:"username,omitempty"`      // For display
	ProblemTitle *string          `json:"problem_title,omitempty"` // For display
}

type TestCaseResult struct {
	ID              string  `json:"id"`
	SubmissionID    string  `json:"submission_id"`
	TestCaseID      string  `json:"test_case_id"`
	Hidden          bool    `json:"hidden"`
	Stdin           string  `json:"stdin,omitempty"`
	ExpectedStdout  string  `json:"expected_stdout,omitempty"`
	ActualStdout    string  `json:"actual_stdout,omitempty"`
	Stderr          string  `json:"stderr,omitempty"`
	Verdict         Verdict `json:"verdict"`
	ExecutionTimeMs *int    `json:"execution_time_ms,omitempty"`
}

// Redact strips hidden-case data before the result leaves the admin surface.
// The row stays intact in storage; only the serialized view is cleared.
func (r TestCaseResult) Redact() TestCaseResult {
	if !r.Hidden {
		return r
	}
	r.Stdin = ""
	r.ExpectedStdout = ""
	r.ActualStdout = ""
	r.Stderr = ""
	return r
}
