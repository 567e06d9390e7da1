package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"
)

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error)
	// SetVerdict populates the judged outcome. Submissions are otherwise
	// immutable after creation. judgedAt is nil for the transient judging
	// state.
	SetVerdict(ctx context.Context, tx *sql.Tx, submissionID string, verdict model.Verdict, passed, total int, judgedAt *time.Time) error
	CreateCaseResults(ctx context.Context, tx *sql.Tx, results []model.TestCaseResult) error
	GetCaseResults(ctx context.Context, submissionID string) ([]model.TestCaseResult, error)
	ListSubmissionsForUser(ctx context.Context, userID string, problemID *string, limit, offset int) ([]model.Submission, int, error)

	MarkProblemSolved(ctx context.Context, tx *sql.Tx, userID, problemID, submissionID string) error
	CountSolvedProblemsByUser(ctx context.Context, userID string) (int, error)

	GetContestSubmissions(ctx context.Context, contestID string) ([]model.Submission, error)

	CountSubmissions(ctx context.Context) (int, error)
	CountSubmissionsByVerdict(ctx context.Context) (map[model.Verdict]int, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, problem_id, language, code, verdict, passed_count, total_count, contest_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := pick(r.db, tx).ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.ProblemID, sub.Language, sub.Code, sub.Verdict, sub.PassedCount, sub.TotalCount, sub.ContestID)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT s.id, s.user_id, s.problem_id, s.language, s.code, s.verdict,
                     s.passed_count, s.total_count, s.contest_id, s.submitted_at, s.judged_at,
                     u.username, p.title
              FROM submissions s
              JOIN users u ON s.user_id = u.id
              JOIN problems p ON s.problem_id = p.id
              WHERE s.id = $1`
	sub := &model.Submission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Language, &sub.Code, &sub.Verdict,
		&sub.PassedCount, &sub.TotalCount, &sub.ContestID, &sub.SubmittedAt, &sub.JudgedAt,
		&sub.Username, &sub.ProblemTitle,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) SetVerdict(ctx context.Context, tx *sql.Tx, submissionID string, verdict model.Verdict, passed, total int, judgedAt *time.Time) error {
	query := `UPDATE submissions SET verdict = $1, passed_count = $2, total_count = $3, judged_at = $4 WHERE id = $5`
	res, err := pick(r.db, tx).ExecContext(ctx, query, verdict, passed, total, judgedAt, submissionID)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.SetVerdict: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgSubmissionRepository) CreateCaseResults(ctx context.Context, tx *sql.Tx, results []model.TestCaseResult) error {
	query := `INSERT INTO submission_case_results (id, submission_id, test_case_id, hidden, stdin, expected_stdout, actual_stdout, stderr, verdict, execution_time_ms)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, res := range results {
		_, err := pick(r.db, tx).ExecContext(ctx, query,
			res.ID, res.SubmissionID, res.TestCaseID, res.Hidden, res.Stdin, res.ExpectedStdout,
			res.ActualStdout, res.Stderr, res.Verdict, res.ExecutionTimeMs)
		if err != nil {
			return fmt.Errorf("pgSubmissionRepository.CreateCaseResults exec for case %s: %w", res.TestCaseID, err)
		}
	}
	return nil
}

func (r *pgSubmissionRepository) GetCaseResults(ctx context.Context, submissionID string) ([]model.TestCaseResult, error) {
	query := `SELECT id, submission_id, test_case_id, hidden, stdin, expected_stdout, actual_stdout, stderr, verdict, execution_time_ms
              FROM submission_case_results WHERE submission_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.GetCaseResults query: %w", err)
	}
	defer rows.Close()

	var results []model.TestCaseResult
	for rows.Next() {
		var res model.TestCaseResult
		if err := rows.Scan(&res.ID, &res.SubmissionID, &res.TestCaseID, &res.Hidden, &res.Stdin, &res.ExpectedStdout,
			&res.ActualStdout, &res.Stderr, &res.Verdict, &res.ExecutionTimeMs); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.GetCaseResults scan: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *pgSubmissionRepository) ListSubmissionsForUser(ctx context.Context, userID string, problemID *string, limit, offset int) ([]model.Submission, int, error) {
	countQuery := `SELECT COUNT(*) FROM submissions WHERE user_id = $1 AND ($2::text IS NULL OR problem_id = $2)`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, userID, problemID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListSubmissionsForUser count: %w", err)
	}

	query := `SELECT s.id, s.user_id, s.problem_id, s.language, s.verdict,
                     s.passed_count, s.total_count, s.contest_id, s.submitted_at, s.judged_at, p.title
              FROM submissions s
              JOIN problems p ON s.problem_id = p.id
              WHERE s.user_id = $1 AND ($2::text IS NULL OR s.problem_id = $2)
              ORDER BY s.submitted_at DESC LIMIT $3 OFFSET $4`
	rows, err := r.db.QueryContext(ctx, query, userID, problemID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListSubmissionsForUser query: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.Language, &s.Verdict,
			&s.PassedCount, &s.TotalCount, &s.ContestID, &s.SubmittedAt, &s.JudgedAt, &s.ProblemTitle); err != nil {
			return nil, 0, fmt.Errorf("pgSubmissionRepository.ListSubmissionsForUser scan: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, total, rows.Err()
}

func (r *pgSubmissionRepository) MarkProblemSolved(ctx context.Context, tx *sql.Tx, userID, problemID, submissionID string) error {
	query := `INSERT INTO user_solved_problems (user_id, problem_id, submission_id)
	          VALUES ($1, $2, $3) ON CONFLICT (user_id, problem_id) DO NOTHING`
	_, err := pick(r.db, tx).ExecContext(ctx, query, userID, problemID, submissionID)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.MarkProblemSolved: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) CountSolvedProblemsByUser(ctx context.Context, userID string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_solved_problems WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.CountSolvedProblemsByUser: %w", err)
	}
	return total, nil
}

// GetContestSubmissions returns all terminal submissions of a contest in
// submission order; the standings builder folds them into ranks.
func (r *pgSubmissionRepository) GetContestSubmissions(ctx context.Context, contestID string) ([]model.Submission, error) {
	query := `SELECT s.id, s.user_id, s.problem_id, s.language, s.verdict,
                     s.passed_count, s.total_count, s.contest_id, s.submitted_at, s.judged_at, u.username
              FROM submissions s
              JOIN users u ON s.user_id = u.id
              WHERE s.contest_id = $1 AND s.verdict NOT IN ('pending', 'judging')
              ORDER BY s.submitted_at ASC`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.GetContestSubmissions query: %w", err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.Language, &s.Verdict,
			&s.PassedCount, &s.TotalCount, &s.ContestID, &s.SubmittedAt, &s.JudgedAt, &s.Username); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.GetContestSubmissions scan: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *pgSubmissionRepository) CountSubmissions(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&total); err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.CountSubmissions: %w", err)
	}
	return total, nil
}

func (r *pgSubmissionRepository) CountSubmissionsByVerdict(ctx context.Context) (map[model.Verdict]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT verdict, COUNT(*) FROM submissions GROUP BY verdict`)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.CountSubmissionsByVerdict: %w", err)
	}
	defer rows.Close()

	counts := map[model.Verdict]int{}
	for rows.Next() {
		var v model.Verdict
		var n int
		if err := rows.Scan(&v, &n); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.CountSubmissionsByVerdict scan: %w", err)
		}
		counts[v] = n
	}
	return counts, rows.Err()
}
