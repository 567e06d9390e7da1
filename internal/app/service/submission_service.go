package service

import (
	"context"
	"database/sql"
	"log"

	"codearena/internal/app/judge"
	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
	"codearena/internal/platform/config"
	"codearena/internal/platform/executor"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	contestRepo    repository.ContestRepository
	runner         *judge.Runner
	rdb            *redis.Client
	db             *sql.DB
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	contestRepo repository.ContestRepository,
	runner *judge.Runner,
	rdb *redis.Client,
	db *sql.DB,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		contestRepo:    contestRepo,
		runner:         runner,
		rdb:            rdb,
		db:             db,
	}
}

// ListLanguages reports the languages installed on the execution engine so
// clients can populate their editor picker.
func (s *SubmissionService) ListLanguages(ctx context.Context) ([]executor.Runtime, error) {
	return s.runner.Languages(ctx)
}

type RunCodeRequest struct {
	ProblemID string `json:"problem_id"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}

type RunCaseResult struct {
	Stdin           string        `json:"stdin"`
	ExpectedStdout  string        `json:"expected_stdout"`
	ActualStdout    string        `json:"actual_stdout"`
	Stderr          string        `json:"stderr,omitempty"`
	Verdict         model.Verdict `json:"verdict"`
	ExecutionTimeMs *int          `json:"execution_time_ms,omitempty"`
}

type RunCodeResponse struct {
	Verdict     model.Verdict   `json:"verdict"`
	PassedCount int             `json:"passed_count"`
	TotalCount  int             `json:"total_count"`
	Cases       []RunCaseResult `json:"cases"`
}

// RunCode judges the visible (non-hidden) test cases synchronously and
// returns full inputs/outputs. The is_hidden flag is authoritative for
// selection; hidden cases are never run here and never leave the server.
func (s *SubmissionService) RunCode(ctx context.Context, userID string, req RunCodeRequest) (*RunCodeResponse, error) {
	if req.ProblemID == "" || req.Language == "" || req.Code == "" {
		return nil, common.Errorf("problem_id, language and code are required: %w", common.ErrValidation)
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}

	allCases, err := s.problemRepo.GetTestCasesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, common.Errorf("failed to load test cases: %w", err)
	}

	var inputs []judge.CaseInput
	for _, tc := range allCases {
		if tc.IsHidden {
			continue
		}
		inputs = append(inputs, judge.CaseFor(problem, tc))
	}
	if len(inputs) == 0 {
		return nil, common.Errorf("problem has no visible test cases to run: %w", common.ErrBadRequest)
	}

	outcomes, verdict := s.runner.JudgeAll(ctx, req.Language, req.Code, inputs)

	resp := &RunCodeResponse{Verdict: verdict, TotalCount: len(outcomes)}
	for _, o := range outcomes {
		if o.Verdict == model.VerdictAccepted {
			resp.PassedCount++
		}
		resp.Cases = append(resp.Cases, RunCaseResult{
			Stdin:           o.Stdin,
			ExpectedStdout:  o.Expected,
			ActualStdout:    o.ActualStdout,
			Stderr:          o.Stderr,
			Verdict:         o.Verdict,
			ExecutionTimeMs: o.ExecutionTimeMs,
		})
	}
	return resp, nil
}

type CreateSubmissionRequest struct {
	ProblemID string  `json:"problem_id"`
	Language  string  `json:"language"`
	Code      string  `json:"code"`
	ContestID *string `json:"contest_id,omitempty"`
}

// CreateSubmission persists a pending submission and enqueues it for the
// judge worker. The caller gets 202 semantics: the verdict arrives later.
func (s *SubmissionService) CreateSubmission(ctx context.Context, userID string, req CreateSubmissionRequest) (*model.Submission, error) {
	if req.ProblemID == "" || req.Language == "" || req.Code == "" {
		return nil, common.Errorf("problem_id, language and code are required: %w", common.ErrValidation)
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}

	if req.ContestID != nil {
		registered, err := s.contestRepo.IsRegistered(ctx, *req.ContestID, userID)
		if err != nil {
			return nil, common.Errorf("failed to check contest registration: %w", err)
		}
		if !registered {
			return nil, common.Errorf("not registered for this contest: %w", common.ErrForbidden)
		}
	}

	submission := &model.Submission{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProblemID: problem.ID,
		Language:  req.Language,
		Code:      req.Code,
		Verdict:   model.VerdictPending,
		ContestID: req.ContestID,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.submissionRepo.CreateSubmission(ctx, tx, submission); err != nil {
		return nil, common.Errorf("failed to create submission: %w", err)
	}

	// Push the submission ID to the judge queue. If this fails the
	// transaction rolls back and no orphan row is left behind.
	if err := s.rdb.LPush(ctx, config.AppConfig.JudgeQueueName, submission.ID).Err(); err != nil {
		return nil, common.Errorf("failed to push submission to judge queue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Submission %s created and enqueued for judging.", submission.ID)
	return submission, nil
}

// GetSubmission returns one submission with its per-case results. Hidden-case
// inputs and outputs are redacted unless the caller is an admin; the rows
// stay intact in storage.
func (s *SubmissionService) GetSubmission(ctx context.Context, submissionID, callerID string, isAdmin bool) (*model.Submission, error) {
	sub, err := s.submissionRepo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && sub.UserID != callerID {
		return nil, common.ErrForbidden
	}

	results, err := s.submissionRepo.GetCaseResults(ctx, submissionID)
	if err != nil {
		return nil, common.Errorf("failed to load case results: %w", err)
	}
	if !isAdmin {
		for i := range results {
			results[i] = results[i].Redact()
		}
	}
	sub.CaseResults = results
	return sub, nil
}

func (s *SubmissionService) ListMySubmissions(ctx context.Context, userID string, problemID *string, page, pageSize int) ([]model.Submission, int, error) {
	offset := (page - 1) * pageSize
	return s.submissionRepo.ListSubmissionsForUser(ctx, userID, problemID, pageSize, offset)
}
