package service

import (
	"context"
	"errors"
	"testing"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
)

type caseResultSubmissionRepo struct {
	repository.SubmissionRepository
	sub     *model.Submission
	results []model.TestCaseResult
}

func (f *caseResultSubmissionRepo) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	if f.sub == nil || f.sub.ID != id {
		return nil, common.ErrNotFound
	}
	cp := *f.sub
	return &cp, nil
}

func (f *caseResultSubmissionRepo) GetCaseResults(ctx context.Context, submissionID string) ([]model.TestCaseResult, error) {
	out := make([]model.TestCaseResult, len(f.results))
	copy(out, f.results)
	return out, nil
}

func newCaseResultRepo() *caseResultSubmissionRepo {
	return &caseResultSubmissionRepo{
		sub: &model.Submission{ID: "s1", UserID: "owner", Verdict: model.VerdictWrongAnswer},
		results: []model.TestCaseResult{
			{
				ID: "r1", SubmissionID: "s1", TestCaseID: "tc1", Hidden: false,
				Stdin: "[2,7,11,15]\n9", ExpectedStdout: "0 1", ActualStdout: "0 1",
				Verdict: model.VerdictAccepted,
			},
			{
				ID: "r2", SubmissionID: "s1", TestCaseID: "tc2", Hidden: true,
				Stdin: "[3,3]\n6", ExpectedStdout: "0 1", ActualStdout: "1 0",
				Stderr: "warning: slow path", Verdict: model.VerdictWrongAnswer,
			},
		},
	}
}

func TestGetSubmissionRedactsHiddenCasesForNonAdmins(t *testing.T) {
	svc := NewSubmissionService(newCaseResultRepo(), nil, nil, nil, nil, nil)

	sub, err := svc.GetSubmission(context.Background(), "s1", "owner", false)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if len(sub.CaseResults) != 2 {
		t.Fatalf("got %d case results, want 2", len(sub.CaseResults))
	}

	visible := sub.CaseResults[0]
	if visible.Stdin == "" || visible.ExpectedStdout == "" || visible.ActualStdout == "" {
		t.Errorf("visible case was redacted: %+v", visible)
	}

	hidden := sub.CaseResults[1]
	if hidden.Stdin != "" || hidden.ExpectedStdout != "" || hidden.ActualStdout != "" || hidden.Stderr != "" {
		t.Errorf("hidden case leaked data: %+v", hidden)
	}
	// The verdict itself stays visible.
	if hidden.Verdict != model.VerdictWrongAnswer || !hidden.Hidden {
		t.Errorf("hidden case lost verdict/flag: %+v", hidden)
	}
}

func TestGetSubmissionKeepsHiddenCasesForAdmins(t *testing.T) {
	svc := NewSubmissionService(newCaseResultRepo(), nil, nil, nil, nil, nil)

	sub, err := svc.GetSubmission(context.Background(), "s1", "someone-else", true)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	hidden := sub.CaseResults[1]
	if hidden.Stdin != "[3,3]\n6" || hidden.ExpectedStdout != "0 1" || hidden.ActualStdout != "1 0" {
		t.Errorf("admin view was redacted: %+v", hidden)
	}
}

func TestGetSubmissionForbiddenForOtherUsers(t *testing.T) {
	svc := NewSubmissionService(newCaseResultRepo(), nil, nil, nil, nil, nil)

	if _, err := svc.GetSubmission(context.Background(), "s1", "someone-else", false); !errors.Is(err, common.ErrForbidden) {
		t.Errorf("got %v, want ErrForbidden", err)
	}
}
