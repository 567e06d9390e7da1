package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type POTDRepository interface {
	Create(ctx context.Context, tx *sql.Tx, entry *model.ScheduledPOTD) error
	GetByDate(ctx context.Context, date time.Time) (*model.ScheduledPOTD, error)
	GetByID(ctx context.Context, id string) (*model.ScheduledPOTD, error)
	List(ctx context.Context, from, to time.Time) ([]model.ScheduledPOTD, error)
	UpdateProblem(ctx context.Context, tx *sql.Tx, id, problemID string) error
	SetPublished(ctx context.Context, tx *sql.Tx, id string, published bool) error
	SetLocked(ctx context.Context, tx *sql.Tx, id string, locked bool) error
	Delete(ctx context.Context, tx *sql.Tx, id string) error
}

type pgPOTDRepository struct {
	db *sql.DB
}

func NewPgPOTDRepository(db *sql.DB) POTDRepository {
	return &pgPOTDRepository{db: db}
}

const potdSelect = `SELECT s.id, s.date, s.problem_id, s.published, s.locked, s.created_at, s.updated_at,
                           p.title, p.slug
                    FROM potd_schedule s
                    JOIN problems p ON s.problem_id = p.id`

func (r *pgPOTDRepository) Create(ctx context.Context, tx *sql.Tx, entry *model.ScheduledPOTD) error {
	query := `INSERT INTO potd_schedule (id, date, problem_id, published, locked)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := pick(r.db, tx).ExecContext(ctx, query, entry.ID, entry.Date, entry.ProblemID, entry.Published, entry.Locked)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // one entry per calendar date
			return fmt.Errorf("a problem is already scheduled for this date: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgPOTDRepository.Create: %w", err)
	}
	return nil
}

func (r *pgPOTDRepository) scanEntry(row *sql.Row) (*model.ScheduledPOTD, error) {
	entry := &model.ScheduledPOTD{}
	err := row.Scan(&entry.ID, &entry.Date, &entry.ProblemID, &entry.Published, &entry.Locked,
		&entry.CreatedAt, &entry.UpdatedAt, &entry.ProblemTitle, &entry.ProblemSlug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (r *pgPOTDRepository) GetByDate(ctx context.Context, date time.Time) (*model.ScheduledPOTD, error) {
	entry, err := r.scanEntry(r.db.QueryRowContext(ctx, potdSelect+` WHERE s.date = $1`, date))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pgPOTDRepository.GetByDate: %w", err)
	}
	return entry, nil
}

func (r *pgPOTDRepository) GetByID(ctx context.Context, id string) (*model.ScheduledPOTD, error) {
	entry, err := r.scanEntry(r.db.QueryRowContext(ctx, potdSelect+` WHERE s.id = $1`, id))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pgPOTDRepository.GetByID: %w", err)
	}
	return entry, nil
}

func (r *pgPOTDRepository) List(ctx context.Context, from, to time.Time) ([]model.ScheduledPOTD, error) {
	rows, err := r.db.QueryContext(ctx, potdSelect+` WHERE s.date >= $1 AND s.date <= $2 ORDER BY s.date ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("pgPOTDRepository.List query: %w", err)
	}
	defer rows.Close()

	var entries []model.ScheduledPOTD
	for rows.Next() {
		var e model.ScheduledPOTD
		if err := rows.Scan(&e.ID, &e.Date, &e.ProblemID, &e.Published, &e.Locked,
			&e.CreatedAt, &e.UpdatedAt, &e.ProblemTitle, &e.ProblemSlug); err != nil {
			return nil, fmt.Errorf("pgPOTDRepository.List scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *pgPOTDRepository) UpdateProblem(ctx context.Context, tx *sql.Tx, id, problemID string) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE potd_schedule SET problem_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, problemID, id)
	if err != nil {
		return fmt.Errorf("pgPOTDRepository.UpdateProblem: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgPOTDRepository) SetPublished(ctx context.Context, tx *sql.Tx, id string, published bool) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE potd_schedule SET published = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, published, id)
	if err != nil {
		return fmt.Errorf("pgPOTDRepository.SetPublished: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgPOTDRepository) SetLocked(ctx context.Context, tx *sql.Tx, id string, locked bool) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE potd_schedule SET locked = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, locked, id)
	if err != nil {
		return fmt.Errorf("pgPOTDRepository.SetLocked: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgPOTDRepository) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM potd_schedule WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgPOTDRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}
