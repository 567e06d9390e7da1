package service

import (
	"context"
	"database/sql"
	"encoding/json"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
	"codearena/internal/platform/config"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	db          *sql.DB // For transactions
}

func NewProblemService(problemRepo repository.ProblemRepository, db *sql.DB) *ProblemService {
	return &ProblemService{problemRepo: problemRepo, db: db}
}

type ExampleInput struct {
	Input       string  `json:"input"`
	Output      string  `json:"output"`
	Explanation *string `json:"explanation,omitempty"`
}

type TestCaseInput struct {
	Stdin          string  `json:"stdin"`
	ExpectedStdout string  `json:"expected_stdout"`
	IsHidden       bool    `json:"is_hidden"`
	Label          *string `json:"label,omitempty"`
	TimeLimitMs    *int    `json:"time_limit_ms,omitempty"`
	MemoryLimitKb  *int    `json:"memory_limit_kb,omitempty"`
}

type CreateProblemRequest struct {
	Title          string                  `json:"title"`
	Description    string                  `json:"description"`
	Difficulty     model.ProblemDifficulty `json:"difficulty"`
	Constraints    string                  `json:"constraints"`
	Tags           []string                `json:"tags"`
	AIMeta         json.RawMessage         `json:"ai_meta,omitempty"`
	RuntimeLimitMs int                     `json:"runtime_limit_ms"`
	MemoryLimitKb  int                     `json:"memory_limit_kb"`
	Examples       []ExampleInput          `json:"examples"`
	TestCases      []TestCaseInput         `json:"test_cases"`
}

func (s *ProblemService) CreateProblem(ctx context.Context, userID string, req CreateProblemRequest) (*model.Problem, error) {
	if req.Title == "" || req.Description == "" || !req.Difficulty.Valid() || len(req.TestCases) == 0 {
		return nil, common.Errorf("title, description, a valid difficulty and at least one test case are required: %w", common.ErrValidation)
	}

	problem := &model.Problem{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Slug:           slug.Make(req.Title),
		Description:    req.Description,
		Difficulty:     req.Difficulty,
		Constraints:    req.Constraints,
		AIMeta:         req.AIMeta,
		RuntimeLimitMs: req.RuntimeLimitMs,
		MemoryLimitKb:  req.MemoryLimitKb,
		CreatedByID:    &userID,
	}
	if problem.RuntimeLimitMs <= 0 {
		problem.RuntimeLimitMs = config.AppConfig.DefaultRuntimeLimitMs
	}
	if problem.MemoryLimitKb <= 0 {
		problem.MemoryLimitKb = config.AppConfig.DefaultMemoryLimitKb
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.CreateProblem(ctx, tx, problem); err != nil {
		return nil, common.Errorf("failed to create problem in DB: %w", err)
	}

	if err := s.problemRepo.SetTags(ctx, tx, problem.ID, req.Tags); err != nil {
		return nil, common.Errorf("failed to set tags: %w", err)
	}

	examples := make([]model.Example, 0, len(req.Examples))
	for _, ex := range req.Examples {
		examples = append(examples, model.Example{
			ID:          uuid.NewString(),
			ProblemID:   problem.ID,
			Input:       ex.Input,
			Output:      ex.Output,
			Explanation: ex.Explanation,
		})
	}
	if err := s.problemRepo.AddExamples(ctx, tx, problem.ID, examples); err != nil {
		return nil, common.Errorf("failed to add examples to problem: %w", err)
	}

	testCases := make([]model.TestCase, 0, len(req.TestCases))
	for _, tc := range req.TestCases {
		testCases = append(testCases, model.TestCase{
			ID:             uuid.NewString(),
			ProblemID:      problem.ID,
			Stdin:          tc.Stdin,
			ExpectedStdout: tc.ExpectedStdout,
			IsHidden:       tc.IsHidden,
			Label:          tc.Label,
			TimeLimitMs:    tc.TimeLimitMs,
			MemoryLimitKb:  tc.MemoryLimitKb,
		})
	}
	if err := s.problemRepo.AddTestCases(ctx, tx, problem.ID, testCases); err != nil {
		return nil, common.Errorf("failed to add test cases to problem: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}

	problem.Tags = req.Tags
	problem.Examples = examples
	problem.TestCases = testCases
	return problem, nil
}

type UpdateProblemRequest struct {
	Title          *string                  `json:"title,omitempty"`
	Description    *string                  `json:"description,omitempty"`
	Difficulty     *model.ProblemDifficulty `json:"difficulty,omitempty"`
	Constraints    *string                  `json:"constraints,omitempty"`
	Tags           *[]string                `json:"tags,omitempty"`
	AIMeta         json.RawMessage          `json:"ai_meta,omitempty"`
	RuntimeLimitMs *int                     `json:"runtime_limit_ms,omitempty"`
	MemoryLimitKb  *int                     `json:"memory_limit_kb,omitempty"`
	Examples       *[]ExampleInput          `json:"examples,omitempty"`
}

func (s *ProblemService) UpdateProblem(ctx context.Context, problemID string, req UpdateProblemRequest) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemByID(ctx, problemID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		problem.Title = *req.Title
		problem.Slug = slug.Make(*req.Title)
	}
	if req.Description != nil {
		problem.Description = *req.Description
	}
	if req.Difficulty != nil {
		if !req.Difficulty.Valid() {
			return nil, common.Errorf("invalid difficulty %q: %w", *req.Difficulty, common.ErrValidation)
		}
		problem.Difficulty = *req.Difficulty
	}
	if req.Constraints != nil {
		problem.Constraints = *req.Constraints
	}
	if len(req.AIMeta) > 0 {
		problem.AIMeta = req.AIMeta
	}
	if req.RuntimeLimitMs != nil {
		problem.RuntimeLimitMs = *req.RuntimeLimitMs
	}
	if req.MemoryLimitKb != nil {
		problem.MemoryLimitKb = *req.MemoryLimitKb
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.UpdateProblem(ctx, tx, problem); err != nil {
		return nil, common.Errorf("failed to update problem: %w", err)
	}
	if req.Tags != nil {
		if err := s.problemRepo.SetTags(ctx, tx, problem.ID, *req.Tags); err != nil {
			return nil, common.Errorf("failed to set tags: %w", err)
		}
		problem.Tags = *req.Tags
	}
	if req.Examples != nil {
		// Examples are replaced wholesale, not merged.
		if err := s.problemRepo.DeleteExamplesByProblemID(ctx, tx, problem.ID); err != nil {
			return nil, common.Errorf("failed to clear examples: %w", err)
		}
		examples := make([]model.Example, 0, len(*req.Examples))
		for _, ex := range *req.Examples {
			examples = append(examples, model.Example{
				ID:          uuid.NewString(),
				ProblemID:   problem.ID,
				Input:       ex.Input,
				Output:      ex.Output,
				Explanation: ex.Explanation,
			})
		}
		if err := s.problemRepo.AddExamples(ctx, tx, problem.ID, examples); err != nil {
			return nil, common.Errorf("failed to add examples: %w", err)
		}
		problem.Examples = examples
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}
	return problem, nil
}

func (s *ProblemService) DeleteProblem(ctx context.Context, problemID string) error {
	return s.problemRepo.DeleteProblem(ctx, nil, problemID)
}

func (s *ProblemService) ListProblems(ctx context.Context, page, pageSize int, difficulty model.ProblemDifficulty, tags []string, searchTerm string) ([]model.Problem, int, error) {
	offset := (page - 1) * pageSize
	return s.problemRepo.ListProblems(ctx, pageSize, offset, difficulty, tags, searchTerm)
}

// GetProblemDetails loads a problem with its examples and tags. Test cases
// are attached only for admins; even then hidden cases stay server side for
// everyone else.
func (s *ProblemService) GetProblemDetails(ctx context.Context, slugOrID string, isAdmin bool) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, slugOrID)
	if err != nil {
		if err != common.ErrNotFound {
			return nil, err
		}
		// Only fall back to an ID lookup for something that can be one;
		// anything else would hit the uuid column with invalid syntax.
		if uuid.Validate(slugOrID) != nil {
			return nil, common.ErrNotFound
		}
		problem, err = s.problemRepo.FindProblemByID(ctx, slugOrID)
		if err != nil {
			return nil, err
		}
	}

	if problem.Examples, err = s.problemRepo.GetExamplesByProblemID(ctx, problem.ID); err != nil {
		return nil, common.Errorf("failed to load examples: %w", err)
	}
	if problem.Tags, err = s.problemRepo.GetTagsByProblemID(ctx, problem.ID); err != nil {
		return nil, common.Errorf("failed to load tags: %w", err)
	}

	if isAdmin {
		if problem.TestCases, err = s.problemRepo.GetTestCasesByProblemID(ctx, problem.ID); err != nil {
			return nil, common.Errorf("failed to load test cases: %w", err)
		}
	}
	return problem, nil
}

// --- Test case management (admin) ---

func (s *ProblemService) AddTestCase(ctx context.Context, problemID string, req TestCaseInput) (*model.TestCase, error) {
	if _, err := s.problemRepo.FindProblemByID(ctx, problemID); err != nil {
		return nil, err
	}
	tc := model.TestCase{
		ID:             uuid.NewString(),
		ProblemID:      problemID,
		Stdin:          req.Stdin,
		ExpectedStdout: req.ExpectedStdout,
		IsHidden:       req.IsHidden,
		Label:          req.Label,
		TimeLimitMs:    req.TimeLimitMs,
		MemoryLimitKb:  req.MemoryLimitKb,
	}
	if err := s.problemRepo.AddTestCases(ctx, nil, problemID, []model.TestCase{tc}); err != nil {
		return nil, common.Errorf("failed to add test case: %w", err)
	}
	return &tc, nil
}

func (s *ProblemService) UpdateTestCase(ctx context.Context, testCaseID string, req TestCaseInput) (*model.TestCase, error) {
	tc, err := s.problemRepo.GetTestCaseByID(ctx, testCaseID)
	if err != nil {
		return nil, err
	}
	tc.Stdin = req.Stdin
	tc.ExpectedStdout = req.ExpectedStdout
	tc.IsHidden = req.IsHidden
	tc.Label = req.Label
	tc.TimeLimitMs = req.TimeLimitMs
	tc.MemoryLimitKb = req.MemoryLimitKb
	if err := s.problemRepo.UpdateTestCase(ctx, nil, tc); err != nil {
		return nil, err
	}
	return tc, nil
}

func (s *ProblemService) ToggleTestCaseHidden(ctx context.Context, testCaseID string) (*model.TestCase, error) {
	tc, err := s.problemRepo.GetTestCaseByID(ctx, testCaseID)
	if err != nil {
		return nil, err
	}
	tc.IsHidden = !tc.IsHidden
	if err := s.problemRepo.SetTestCaseHidden(ctx, nil, testCaseID, tc.IsHidden); err != nil {
		return nil, err
	}
	return tc, nil
}

func (s *ProblemService) DeleteTestCase(ctx context.Context, testCaseID string) error {
	return s.problemRepo.DeleteTestCase(ctx, nil, testCaseID)
}

func (s *ProblemService) ListTestCases(ctx context.Context, problemID string) ([]model.TestCase, error) {
	if _, err := s.problemRepo.FindProblemByID(ctx, problemID); err != nil {
		return nil, err
	}
	return s.problemRepo.GetTestCasesByProblemID(ctx, problemID)
}
