package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codearena/internal/common"
	"codearena/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ContestRepository interface {
	CreateContest(ctx context.Context, tx *sql.Tx, contest *model.Contest) error
	UpdateContest(ctx context.Context, tx *sql.Tx, contest *model.Contest) error
	DeleteContest(ctx context.Context, tx *sql.Tx, id string) error
	FindContestByID(ctx context.Context, id string) (*model.Contest, error)
	FindContestBySlug(ctx context.Context, slug string) (*model.Contest, error)
	ListContests(ctx context.Context, visibleOnly bool, limit, offset int) ([]model.Contest, int, error)

	SetProblems(ctx context.Context, tx *sql.Tx, contestID string, problems []model.ContestProblem) error
	GetProblems(ctx context.Context, contestID string) ([]model.ContestProblem, error)

	Register(ctx context.Context, tx *sql.Tx, contestID, userID string) error
	IsRegistered(ctx context.Context, contestID, userID string) (bool, error)
	CountRegistrations(ctx context.Context, contestID string) (int, error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

func (r *pgContestRepository) CreateContest(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	query := `INSERT INTO contests (id, name, slug, description, start_time, end_time, visible, registration_open,
	                                ranking_type, wrong_penalty_min, penalty_after_accept)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := pick(r.db, tx).ExecContext(ctx, query,
		c.ID, c.Name, c.Slug, c.Description, c.StartTime, c.EndTime, c.Visible, c.RegistrationOpen,
		c.RankingType, c.Penalty.WrongSubmissionPenaltyMin, c.Penalty.PenaltyOnlyAfterAccept)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("contest with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.CreateContest: %w", err)
	}
	return nil
}

func (r *pgContestRepository) UpdateContest(ctx context.Context, tx *sql.Tx, c *model.Contest) error {
	query := `UPDATE contests SET name = $1, slug = $2, description = $3, start_time = $4, end_time = $5,
                visible = $6, registration_open = $7, ranking_type = $8, wrong_penalty_min = $9,
                penalty_after_accept = $10, updated_at = CURRENT_TIMESTAMP
              WHERE id = $11`
	res, err := pick(r.db, tx).ExecContext(ctx, query,
		c.Name, c.Slug, c.Description, c.StartTime, c.EndTime, c.Visible, c.RegistrationOpen,
		c.RankingType, c.Penalty.WrongSubmissionPenaltyMin, c.Penalty.PenaltyOnlyAfterAccept, c.ID)
	if err != nil {
		return fmt.Errorf("pgContestRepository.UpdateContest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgContestRepository) DeleteContest(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM contests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgContestRepository.DeleteContest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

const contestSelect = `SELECT id, name, slug, description, start_time, end_time, visible, registration_open,
                              ranking_type, wrong_penalty_min, penalty_after_accept, created_at, updated_at
                       FROM contests`

func (r *pgContestRepository) scanContest(row *sql.Row) (*model.Contest, error) {
	c := &model.Contest{}
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.StartTime, &c.EndTime, &c.Visible, &c.RegistrationOpen,
		&c.RankingType, &c.Penalty.WrongSubmissionPenaltyMin, &c.Penalty.PenaltyOnlyAfterAccept, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *pgContestRepository) FindContestByID(ctx context.Context, id string) (*model.Contest, error) {
	c, err := r.scanContest(r.db.QueryRowContext(ctx, contestSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestByID: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) FindContestBySlug(ctx context.Context, slug string) (*model.Contest, error) {
	c, err := r.scanContest(r.db.QueryRowContext(ctx, contestSelect+` WHERE slug = $1`, slug))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pgContestRepository.FindContestBySlug: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) ListContests(ctx context.Context, visibleOnly bool, limit, offset int) ([]model.Contest, int, error) {
	where := ""
	if visibleOnly {
		where = " WHERE visible = TRUE"
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contests`+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.ListContests count: %w", err)
	}

	query := contestSelect + where + ` ORDER BY start_time DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgContestRepository.ListContests query: %w", err)
	}
	defer rows.Close()

	contests := []model.Contest{}
	for rows.Next() {
		var c model.Contest
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.StartTime, &c.EndTime, &c.Visible,
			&c.RegistrationOpen, &c.RankingType, &c.Penalty.WrongSubmissionPenaltyMin,
			&c.Penalty.PenaltyOnlyAfterAccept, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgContestRepository.ListContests scan: %w", err)
		}
		contests = append(contests, c)
	}
	return contests, total, rows.Err()
}

func (r *pgContestRepository) SetProblems(ctx context.Context, tx *sql.Tx, contestID string, problems []model.ContestProblem) error {
	q := pick(r.db, tx)
	if _, err := q.ExecContext(ctx, `DELETE FROM contest_problems WHERE contest_id = $1`, contestID); err != nil {
		return fmt.Errorf("pgContestRepository.SetProblems clear: %w", err)
	}
	query := `INSERT INTO contest_problems (contest_id, problem_id, label, points) VALUES ($1, $2, $3, $4)`
	for _, cp := range problems {
		if _, err := q.ExecContext(ctx, query, contestID, cp.ProblemID, cp.Label, cp.Points); err != nil {
			return fmt.Errorf("pgContestRepository.SetProblems insert %s: %w", cp.Label, err)
		}
	}
	return nil
}

func (r *pgContestRepository) GetProblems(ctx context.Context, contestID string) ([]model.ContestProblem, error) {
	query := `SELECT cp.contest_id, cp.problem_id, cp.label, cp.points, p.title, p.slug
              FROM contest_problems cp
              JOIN problems p ON cp.problem_id = p.id
              WHERE cp.contest_id = $1 ORDER BY cp.label ASC`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.GetProblems query: %w", err)
	}
	defer rows.Close()

	var problems []model.ContestProblem
	for rows.Next() {
		var cp model.ContestProblem
		if err := rows.Scan(&cp.ContestID, &cp.ProblemID, &cp.Label, &cp.Points, &cp.ProblemTitle, &cp.ProblemSlug); err != nil {
			return nil, fmt.Errorf("pgContestRepository.GetProblems scan: %w", err)
		}
		problems = append(problems, cp)
	}
	return problems, rows.Err()
}

func (r *pgContestRepository) Register(ctx context.Context, tx *sql.Tx, contestID, userID string) error {
	query := `INSERT INTO contest_registrations (contest_id, user_id) VALUES ($1, $2)`
	_, err := pick(r.db, tx).ExecContext(ctx, query, contestID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("already registered for this contest: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgContestRepository.Register: %w", err)
	}
	return nil
}

func (r *pgContestRepository) IsRegistered(ctx context.Context, contestID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM contest_registrations WHERE contest_id = $1 AND user_id = $2)`,
		contestID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.IsRegistered: %w", err)
	}
	return exists, nil
}

func (r *pgContestRepository) CountRegistrations(ctx context.Context, contestID string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contest_registrations WHERE contest_id = $1`, contestID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("pgContestRepository.CountRegistrations: %w", err)
	}
	return total, nil
}
