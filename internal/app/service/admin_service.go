package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
)

type AdminService struct {
	userRepo       repository.UserRepository
	problemRepo    repository.ProblemRepository
	submissionRepo repository.SubmissionRepository
	problemService *ProblemService
}

func NewAdminService(
	userRepo repository.UserRepository,
	problemRepo repository.ProblemRepository,
	submissionRepo repository.SubmissionRepository,
	problemService *ProblemService,
) *AdminService {
	return &AdminService{
		userRepo:       userRepo,
		problemRepo:    problemRepo,
		submissionRepo: submissionRepo,
		problemService: problemService,
	}
}

type DashboardStats struct {
	TotalUsers         int                           `json:"total_users"`
	TotalProblems      int                           `json:"total_problems"`
	TotalSubmissions   int                           `json:"total_submissions"`
	AcceptanceRate     float64                       `json:"acceptance_rate"`
	ProblemsByLevel    map[model.ProblemDifficulty]int `json:"problems_by_level"`
	SubmissionsByVerdict map[model.Verdict]int       `json:"submissions_by_verdict"`
}

func (s *AdminService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	var err error

	if stats.TotalUsers, err = s.userRepo.CountUsers(ctx); err != nil {
		return nil, common.Errorf("failed to count users: %w", err)
	}
	if stats.TotalProblems, err = s.problemRepo.CountProblems(ctx); err != nil {
		return nil, common.Errorf("failed to count problems: %w", err)
	}
	if stats.TotalSubmissions, err = s.submissionRepo.CountSubmissions(ctx); err != nil {
		return nil, common.Errorf("failed to count submissions: %w", err)
	}
	if stats.ProblemsByLevel, err = s.problemRepo.CountProblemsByDifficulty(ctx); err != nil {
		return nil, common.Errorf("failed to count problems by difficulty: %w", err)
	}
	if stats.SubmissionsByVerdict, err = s.submissionRepo.CountSubmissionsByVerdict(ctx); err != nil {
		return nil, common.Errorf("failed to count submissions by verdict: %w", err)
	}

	if stats.TotalSubmissions > 0 {
		accepted := stats.SubmissionsByVerdict[model.VerdictAccepted]
		stats.AcceptanceRate = float64(accepted) / float64(stats.TotalSubmissions)
	}
	return stats, nil
}

// --- CSV bulk import ---

// csvHeader is the required column order of problem import files.
var csvHeader = []string{"title", "description", "difficulty", "constraints", "examples", "test_cases", "tags"}

type CSVRow struct {
	Line    int                  `json:"line"`
	Valid   bool                 `json:"valid"`
	Error   string               `json:"error,omitempty"`
	Request CreateProblemRequest `json:"request"`
}

type CSVPreview struct {
	TotalRows      int      `json:"total_rows"`
	ValidRows      int      `json:"valid_rows"`
	TotalTestCases int      `json:"total_test_cases"`
	Rows           []CSVRow `json:"rows"`
}

// ParseCSV validates a problem import file without writing anything.
// Expected columns: title, description, difficulty, constraints,
// examples(JSON), test_cases(JSON), tags (comma separated).
func (s *AdminService) ParseCSV(r io.Reader) (*CSVPreview, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)

	header, err := reader.Read()
	if err != nil {
		return nil, common.Errorf("failed to read CSV header: %v: %w", err, common.ErrBadRequest)
	}
	for i, col := range csvHeader {
		if i >= len(header) || strings.TrimSpace(strings.ToLower(header[i])) != col {
			return nil, common.Errorf("unexpected CSV header, want %s: %w", strings.Join(csvHeader, ","), common.ErrBadRequest)
		}
	}

	preview := &CSVPreview{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			preview.Rows = append(preview.Rows, CSVRow{Line: line, Error: err.Error()})
			preview.TotalRows++
			continue
		}

		row := CSVRow{Line: line}
		row.Request, err = parseCSVRecord(record)
		if err != nil {
			row.Error = err.Error()
		} else {
			row.Valid = true
			preview.ValidRows++
			preview.TotalTestCases += len(row.Request.TestCases)
		}
		preview.Rows = append(preview.Rows, row)
		preview.TotalRows++
	}
	return preview, nil
}

func parseCSVRecord(record []string) (CreateProblemRequest, error) {
	req := CreateProblemRequest{
		Title:       strings.TrimSpace(record[0]),
		Description: strings.TrimSpace(record[1]),
		Difficulty:  model.ProblemDifficulty(strings.TrimSpace(record[2])),
		Constraints: strings.TrimSpace(record[3]),
	}
	if req.Title == "" {
		return req, fmt.Errorf("title is required")
	}
	if req.Description == "" {
		return req, fmt.Errorf("description is required")
	}
	if !req.Difficulty.Valid() {
		return req, fmt.Errorf("invalid difficulty %q", record[2])
	}
	if examples := strings.TrimSpace(record[4]); examples != "" {
		if err := json.Unmarshal([]byte(examples), &req.Examples); err != nil {
			return req, fmt.Errorf("invalid examples JSON: %v", err)
		}
	}
	if cases := strings.TrimSpace(record[5]); cases != "" {
		if err := json.Unmarshal([]byte(cases), &req.TestCases); err != nil {
			return req, fmt.Errorf("invalid test_cases JSON: %v", err)
		}
	}
	if len(req.TestCases) == 0 {
		return req, fmt.Errorf("at least one test case is required")
	}
	for _, tag := range strings.Split(record[6], ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			req.Tags = append(req.Tags, tag)
		}
	}
	return req, nil
}

type CSVUploadResult struct {
	ProblemsCreated  int      `json:"problems_created"`
	TestCasesCreated int      `json:"test_cases_created"`
	Errors           []string `json:"errors,omitempty"`
}

// UploadCSV creates one problem per valid row. Invalid rows are reported
// and skipped; N valid rows yield N problems and the sum of their test-case
// arrays as test cases.
func (s *AdminService) UploadCSV(ctx context.Context, userID string, r io.Reader) (*CSVUploadResult, error) {
	preview, err := s.ParseCSV(r)
	if err != nil {
		return nil, err
	}

	result := &CSVUploadResult{}
	for _, row := range preview.Rows {
		if !row.Valid {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %s", row.Line, row.Error))
			continue
		}
		problem, err := s.problemService.CreateProblem(ctx, userID, row.Request)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", row.Line, err))
			continue
		}
		result.ProblemsCreated++
		result.TestCasesCreated += len(problem.TestCases)
	}
	return result, nil
}
