// Package judge implements the verdict logic: comparing a run's output
// against the expected output and folding per-case verdicts into one
// submission verdict. Execution itself is delegated to the Piston client.
package judge

import (
	"context"
	"log"
	"strings"

	"codearena/internal/domain/model"
	"codearena/internal/platform/executor"
)

// OutputsMatch compares trimmed actual stdout against trimmed expected
// stdout for exact string equality.
func OutputsMatch(actual, expected string) bool {
	return strings.TrimSpace(actual) == strings.TrimSpace(expected)
}

// CaseVerdict maps one execution result onto a verdict for its test case.
func CaseVerdict(res *executor.ExecResult, expectedStdout string) model.Verdict {
	if res.Compile != nil {
		if res.Compile.Code != nil && *res.Compile.Code != 0 {
			return model.VerdictCompileError
		}
	}
	// Piston kills a timed-out run with SIGKILL and leaves the exit code unset.
	if res.Run.Signal != nil && *res.Run.Signal == "SIGKILL" {
		return model.VerdictTimeLimitExceeded
	}
	if res.Run.Code == nil || *res.Run.Code != 0 {
		return model.VerdictRuntimeError
	}
	if OutputsMatch(res.Run.Stdout, expectedStdout) {
		return model.VerdictAccepted
	}
	return model.VerdictWrongAnswer
}

// verdictPriority orders failing categories: the highest-priority failing
// category among the cases becomes the submission verdict.
var verdictPriority = []model.Verdict{
	model.VerdictCompileError,
	model.VerdictTimeLimitExceeded,
	model.VerdictRuntimeError,
	model.VerdictExecutionError,
	model.VerdictWrongAnswer,
}

// Aggregate folds per-case verdicts into the overall submission verdict.
// accepted iff every case passed.
func Aggregate(verdicts []model.Verdict) model.Verdict {
	if len(verdicts) == 0 {
		return model.VerdictExecutionError
	}
	for _, p := range verdictPriority {
		for _, v := range verdicts {
			if v == p {
				return p
			}
		}
	}
	return model.VerdictAccepted
}

// CaseInput is one test case handed to the runner.
type CaseInput struct {
	TestCaseID    string
	Hidden        bool
	Stdin         string
	Expected      string
	TimeLimitMs   int
	MemoryLimitKb int
}

// CaseFor builds the runner input for one stored test case, applying
// per-case limit overrides on top of the problem defaults.
func CaseFor(problem *model.Problem, tc model.TestCase) CaseInput {
	in := CaseInput{
		TestCaseID:    tc.ID,
		Hidden:        tc.IsHidden,
		Stdin:         tc.Stdin,
		Expected:      tc.ExpectedStdout,
		TimeLimitMs:   problem.RuntimeLimitMs,
		MemoryLimitKb: problem.MemoryLimitKb,
	}
	if tc.TimeLimitMs != nil && *tc.TimeLimitMs > 0 {
		in.TimeLimitMs = *tc.TimeLimitMs
	}
	if tc.MemoryLimitKb != nil && *tc.MemoryLimitKb > 0 {
		in.MemoryLimitKb = *tc.MemoryLimitKb
	}
	return in
}

// CaseOutcome is the judged result of one case.
type CaseOutcome struct {
	CaseInput
	Verdict         model.Verdict
	ActualStdout    string
	Stderr          string
	ExecutionTimeMs *int
}

// Runner judges a batch of test cases sequentially through the executor.
type Runner struct {
	exec *executor.Client
}

func NewRunner(exec *executor.Client) *Runner {
	return &Runner{exec: exec}
}

// Languages lists the runtimes installed on the execution engine.
func (r *Runner) Languages(ctx context.Context) ([]executor.Runtime, error) {
	return r.exec.Runtimes(ctx)
}

// JudgeAll runs every case in order and returns their outcomes plus the
// aggregated verdict. A compile error or an executor failure short-circuits:
// the remaining cases inherit that verdict since re-running them cannot
// change the outcome. Executor failures are never retried here; the verdict
// carries the failure to the caller.
func (r *Runner) JudgeAll(ctx context.Context, language, code string, cases []CaseInput) ([]CaseOutcome, model.Verdict) {
	outcomes := make([]CaseOutcome, 0, len(cases))
	verdicts := make([]model.Verdict, 0, len(cases))

	for i, tc := range cases {
		res, err := r.exec.Execute(ctx, executor.ExecRequest{
			Language:      language,
			Code:          code,
			Stdin:         tc.Stdin,
			RunTimeoutMs:  tc.TimeLimitMs,
			MemoryLimitKb: tc.MemoryLimitKb,
		})

		var outcome CaseOutcome
		outcome.CaseInput = tc

		if err != nil {
			log.Printf("ERROR: Executor failed on case %s: %v", tc.TestCaseID, err)
			outcome.Verdict = model.VerdictExecutionError
		} else {
			outcome.Verdict = CaseVerdict(res, tc.Expected)
			outcome.ActualStdout = res.Run.Stdout
			outcome.Stderr = res.Run.Stderr
			if outcome.Verdict == model.VerdictCompileError && res.Compile != nil {
				outcome.Stderr = res.Compile.Stderr
			}
			wall := res.WallMs
			outcome.ExecutionTimeMs = &wall
		}

		outcomes = append(outcomes, outcome)
		verdicts = append(verdicts, outcome.Verdict)

		if outcome.Verdict == model.VerdictCompileError || outcome.Verdict == model.VerdictExecutionError {
			for _, rest := range cases[i+1:] {
				skipped := CaseOutcome{CaseInput: rest, Verdict: outcome.Verdict}
				outcomes = append(outcomes, skipped)
				verdicts = append(verdicts, skipped.Verdict)
			}
			break
		}
	}

	return outcomes, Aggregate(verdicts)
}
