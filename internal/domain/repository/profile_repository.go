package repository

import (
	"context"
	"database/sql"
	"fmt"

	"codearena/internal/domain/model"
)

type ProfileRepository interface {
	// Upsert keeps one row per (user, platform); repeated saves overwrite
	// the handle and URL.
	Upsert(ctx context.Context, profile *model.PlatformProfile) error
	ListByUserID(ctx context.Context, userID string) ([]model.PlatformProfile, error)
	Delete(ctx context.Context, userID, platform string) error
}

type pgProfileRepository struct {
	db *sql.DB
}

func NewPgProfileRepository(db *sql.DB) ProfileRepository {
	return &pgProfileRepository{db: db}
}

func (r *pgProfileRepository) Upsert(ctx context.Context, p *model.PlatformProfile) error {
	query := `INSERT INTO platform_profiles (id, user_id, platform, handle, url)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (user_id, platform)
	          DO UPDATE SET handle = EXCLUDED.handle, url = EXCLUDED.url, updated_at = CURRENT_TIMESTAMP`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.UserID, p.Platform, p.Handle, p.URL)
	if err != nil {
		return fmt.Errorf("pgProfileRepository.Upsert: %w", err)
	}
	return nil
}

func (r *pgProfileRepository) ListByUserID(ctx context.Context, userID string) ([]model.PlatformProfile, error) {
	query := `SELECT id, user_id, platform, handle, url, created_at, updated_at
              FROM platform_profiles WHERE user_id = $1 ORDER BY platform`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgProfileRepository.ListByUserID query: %w", err)
	}
	defer rows.Close()

	profiles := []model.PlatformProfile{}
	for rows.Next() {
		var p model.PlatformProfile
		if err := rows.Scan(&p.ID, &p.UserID, &p.Platform, &p.Handle, &p.URL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgProfileRepository.ListByUserID scan: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *pgProfileRepository) Delete(ctx context.Context, userID, platform string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM platform_profiles WHERE user_id = $1 AND platform = $2`, userID, platform)
	if err != nil {
		return fmt.Errorf("pgProfileRepository.Delete: %w", err)
	}
	return nil
}
