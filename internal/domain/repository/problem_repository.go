package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"codearena/internal/common"
	"codearena/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ProblemRepository interface {
	CreateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	UpdateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	DeleteProblem(ctx context.Context, tx *sql.Tx, id string) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error)
	ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, tags []string, searchTerm string) ([]model.Problem, int, error)

	AddExamples(ctx context.Context, tx *sql.Tx, problemID string, examples []model.Example) error
	GetExamplesByProblemID(ctx context.Context, problemID string) ([]model.Example, error)
	DeleteExamplesByProblemID(ctx context.Context, tx *sql.Tx, problemID string) error

	AddTestCases(ctx context.Context, tx *sql.Tx, problemID string, testCases []model.TestCase) error
	GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error)
	GetTestCaseByID(ctx context.Context, id string) (*model.TestCase, error)
	UpdateTestCase(ctx context.Context, tx *sql.Tx, tc *model.TestCase) error
	SetTestCaseHidden(ctx context.Context, tx *sql.Tx, id string, hidden bool) error
	DeleteTestCase(ctx context.Context, tx *sql.Tx, id string) error

	SetTags(ctx context.Context, tx *sql.Tx, problemID string, tags []string) error
	GetTagsByProblemID(ctx context.Context, problemID string) ([]string, error)

	CountProblems(ctx context.Context) (int, error)
	CountProblemsByDifficulty(ctx context.Context) (map[model.ProblemDifficulty]int, error)
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `INSERT INTO problems (id, title, slug, description, difficulty, constraints, ai_meta, runtime_limit_ms, memory_limit_kb, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var aiMeta interface{}
	if len(p.AIMeta) > 0 {
		aiMeta = []byte(p.AIMeta)
	}
	_, err := pick(r.db, tx).ExecContext(ctx, query,
		p.ID, p.Title, p.Slug, p.Description, p.Difficulty, p.Constraints, aiMeta,
		p.RuntimeLimitMs, p.MemoryLimitKb, p.CreatedByID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) UpdateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `UPDATE problems SET
                title = $1, slug = $2, description = $3, difficulty = $4, constraints = $5,
                ai_meta = $6, runtime_limit_ms = $7, memory_limit_kb = $8, updated_at = CURRENT_TIMESTAMP
              WHERE id = $9`

	var aiMeta interface{}
	if len(p.AIMeta) > 0 {
		aiMeta = []byte(p.AIMeta)
	}
	res, err := pick(r.db, tx).ExecContext(ctx, query,
		p.Title, p.Slug, p.Description, p.Difficulty, p.Constraints, aiMeta,
		p.RuntimeLimitMs, p.MemoryLimitKb, p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("problem with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.UpdateProblem: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProblemRepository) DeleteProblem(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM problems WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteProblem: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

const problemSelect = `
        SELECT p.id, p.title, p.slug, p.description, p.difficulty, p.constraints,
               p.ai_meta, p.runtime_limit_ms, p.memory_limit_kb,
               p.created_by, cb_user.username as created_by_username,
               p.created_at, p.updated_at
        FROM problems p
        LEFT JOIN users cb_user ON p.created_by = cb_user.id`

func (r *pgProblemRepository) scanProblem(row *sql.Row) (*model.Problem, error) {
	problem := &model.Problem{}
	var aiMeta []byte
	err := row.Scan(
		&problem.ID, &problem.Title, &problem.Slug, &problem.Description, &problem.Difficulty, &problem.Constraints,
		&aiMeta, &problem.RuntimeLimitMs, &problem.MemoryLimitKb,
		&problem.CreatedByID, &problem.CreatedByUsername,
		&problem.CreatedAt, &problem.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	problem.AIMeta = aiMeta
	return problem, nil
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	problem, err := r.scanProblem(r.db.QueryRowContext(ctx, problemSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID: %w", err)
	}
	return problem, nil
}

func (r *pgProblemRepository) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	problem, err := r.scanProblem(r.db.QueryRowContext(ctx, problemSelect+` WHERE p.slug = $1`, slug))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemBySlug: %w", err)
	}
	return problem, nil
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, tags []string, searchTerm string) ([]model.Problem, int, error) {
	var baseQuery strings.Builder
	baseQuery.WriteString(`
        SELECT DISTINCT p.id, p.title, p.slug, p.difficulty,
               p.runtime_limit_ms, p.memory_limit_kb, p.created_at, p.updated_at
        FROM problems p`)

	var countQuery strings.Builder
	countQuery.WriteString(`SELECT COUNT(DISTINCT p.id) FROM problems p`)

	var conditions []string
	var args []interface{}
	argID := 1

	if len(tags) > 0 {
		join := " JOIN problem_tags pt ON p.id = pt.problem_id"
		baseQuery.WriteString(join)
		countQuery.WriteString(join)

		tagPlaceholders := make([]string, len(tags))
		for i := range tags {
			tagPlaceholders[i] = fmt.Sprintf("$%d", argID)
			args = append(args, tags[i])
			argID++
		}
		conditions = append(conditions, fmt.Sprintf("pt.tag IN (%s)", strings.Join(tagPlaceholders, ",")))
	}

	if difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("p.difficulty = $%d", argID))
		args = append(args, difficulty)
		argID++
	}

	if searchTerm != "" {
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE $%d OR p.description ILIKE $%d)", argID, argID+1))
		likeTerm := "%" + searchTerm + "%"
		args = append(args, likeTerm, likeTerm)
		argID += 2
	}

	if len(conditions) > 0 {
		whereClause := " WHERE " + strings.Join(conditions, " AND ")
		baseQuery.WriteString(whereClause)
		countQuery.WriteString(whereClause)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems count: %w", err)
	}

	baseQuery.WriteString(fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1))
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, baseQuery.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Difficulty,
			&p.RuntimeLimitMs, &p.MemoryLimitKb, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems rows.Err: %w", err)
	}

	return problems, total, nil
}

func (r *pgProblemRepository) AddExamples(ctx context.Context, tx *sql.Tx, problemID string, examples []model.Example) error {
	if len(examples) == 0 {
		return nil
	}
	query := `INSERT INTO examples (id, problem_id, input, output, explanation, sort_order) VALUES ($1, $2, $3, $4, $5, $6)`
	for i, ex := range examples {
		_, err := pick(r.db, tx).ExecContext(ctx, query, ex.ID, problemID, ex.Input, ex.Output, ex.Explanation, i+1)
		if err != nil {
			return fmt.Errorf("pgProblemRepository.AddExamples exec for example %s: %w", ex.ID, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetExamplesByProblemID(ctx context.Context, problemID string) ([]model.Example, error) {
	query := `SELECT id, problem_id, input, output, explanation, sort_order, created_at
              FROM examples WHERE problem_id = $1 ORDER BY sort_order ASC`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetExamplesByProblemID query: %w", err)
	}
	defer rows.Close()

	var examples []model.Example
	for rows.Next() {
		var ex model.Example
		if err := rows.Scan(&ex.ID, &ex.ProblemID, &ex.Input, &ex.Output, &ex.Explanation, &ex.SortOrder, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetExamplesByProblemID scan: %w", err)
		}
		examples = append(examples, ex)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetExamplesByProblemID rows.Err: %w", err)
	}
	return examples, nil
}

func (r *pgProblemRepository) DeleteExamplesByProblemID(ctx context.Context, tx *sql.Tx, problemID string) error {
	_, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM examples WHERE problem_id = $1`, problemID)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteExamplesByProblemID: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) AddTestCases(ctx context.Context, tx *sql.Tx, problemID string, testCases []model.TestCase) error {
	if len(testCases) == 0 {
		return nil
	}
	query := `INSERT INTO test_cases (id, problem_id, stdin, expected_stdout, is_hidden, label, time_limit_ms, memory_limit_kb, sort_order)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for i, tc := range testCases {
		_, err := pick(r.db, tx).ExecContext(ctx, query,
			tc.ID, problemID, tc.Stdin, tc.ExpectedStdout, tc.IsHidden, tc.Label, tc.TimeLimitMs, tc.MemoryLimitKb, i+1)
		if err != nil {
			return fmt.Errorf("pgProblemRepository.AddTestCases exec for test case %s: %w", tc.ID, err)
		}
	}
	return nil
}

const testCaseSelect = `SELECT id, problem_id, stdin, expected_stdout, is_hidden, label, time_limit_ms, memory_limit_kb, sort_order, created_at, updated_at
              FROM test_cases`

func (r *pgProblemRepository) GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) {
	rows, err := r.db.QueryContext(ctx, testCaseSelect+` WHERE problem_id = $1 ORDER BY sort_order ASC`, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID query: %w", err)
	}
	defer rows.Close()

	var testCases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Stdin, &tc.ExpectedStdout, &tc.IsHidden, &tc.Label,
			&tc.TimeLimitMs, &tc.MemoryLimitKb, &tc.SortOrder, &tc.CreatedAt, &tc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID scan: %w", err)
		}
		testCases = append(testCases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID rows.Err: %w", err)
	}
	return testCases, nil
}

func (r *pgProblemRepository) GetTestCaseByID(ctx context.Context, id string) (*model.TestCase, error) {
	tc := &model.TestCase{}
	err := r.db.QueryRowContext(ctx, testCaseSelect+` WHERE id = $1`, id).Scan(
		&tc.ID, &tc.ProblemID, &tc.Stdin, &tc.ExpectedStdout, &tc.IsHidden, &tc.Label,
		&tc.TimeLimitMs, &tc.MemoryLimitKb, &tc.SortOrder, &tc.CreatedAt, &tc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.GetTestCaseByID: %w", err)
	}
	return tc, nil
}

func (r *pgProblemRepository) UpdateTestCase(ctx context.Context, tx *sql.Tx, tc *model.TestCase) error {
	query := `UPDATE test_cases SET stdin = $1, expected_stdout = $2, is_hidden = $3, label = $4,
                time_limit_ms = $5, memory_limit_kb = $6, updated_at = CURRENT_TIMESTAMP
              WHERE id = $7`
	res, err := pick(r.db, tx).ExecContext(ctx, query,
		tc.Stdin, tc.ExpectedStdout, tc.IsHidden, tc.Label, tc.TimeLimitMs, tc.MemoryLimitKb, tc.ID)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.UpdateTestCase: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProblemRepository) SetTestCaseHidden(ctx context.Context, tx *sql.Tx, id string, hidden bool) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE test_cases SET is_hidden = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, hidden, id)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.SetTestCaseHidden: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProblemRepository) DeleteTestCase(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM test_cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteTestCase: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProblemRepository) SetTags(ctx context.Context, tx *sql.Tx, problemID string, tags []string) error {
	q := pick(r.db, tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM problem_tags WHERE problem_id = $1`, problemID); err != nil {
		return fmt.Errorf("pgProblemRepository.SetTags clear: %w", err)
	}
	for _, tag := range tags {
		if _, err := q.ExecContext(ctx, `INSERT INTO problem_tags (problem_id, tag) VALUES ($1, $2) ON CONFLICT DO NOTHING`, problemID, tag); err != nil {
			return fmt.Errorf("pgProblemRepository.SetTags insert %q: %w", tag, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetTagsByProblemID(ctx context.Context, problemID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tag FROM problem_tags WHERE problem_id = $1 ORDER BY tag`, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTagsByProblemID: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetTagsByProblemID scan: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *pgProblemRepository) CountProblems(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM problems`).Scan(&total); err != nil {
		return 0, fmt.Errorf("pgProblemRepository.CountProblems: %w", err)
	}
	return total, nil
}

func (r *pgProblemRepository) CountProblemsByDifficulty(ctx context.Context) (map[model.ProblemDifficulty]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT difficulty, COUNT(*) FROM problems GROUP BY difficulty`)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.CountProblemsByDifficulty: %w", err)
	}
	defer rows.Close()

	counts := map[model.ProblemDifficulty]int{}
	for rows.Next() {
		var d model.ProblemDifficulty
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.CountProblemsByDifficulty scan: %w", err)
		}
		counts[d] = n
	}
	return counts, rows.Err()
}
