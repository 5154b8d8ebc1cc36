package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/userpets/internal/domain"
)

// IsTutorialCompleted checks whether a user finished a tutorial
func (r *Repository) IsTutorialCompleted(ctx context.Context, userID int64, key string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM tutorial_completions WHERE user_id = $1 AND tutorial_key = $2 AND completed)`
	var done bool
	if err := r.pool.QueryRow(ctx, query, userID, key).Scan(&done); err != nil {
		return false, fmt.Errorf("checking tutorial completion: %w", err)
	}
	return done, nil
}

// CompleteTutorial marks a tutorial completed and reports whether this call
// did it
func (r *Repository) CompleteTutorial(ctx context.Context, userID int64, key string, at time.Time) (bool, error) {
	query := `
		INSERT INTO tutorial_completions (user_id, tutorial_key, completed, completed_at)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (user_id, tutorial_key)
		DO UPDATE SET completed = TRUE, completed_at = EXCLUDED.completed_at
		WHERE NOT tutorial_completions.completed
	`
	result, err := r.pool.Exec(ctx, query, userID, key, at)
	if err != nil {
		return false, fmt.Errorf("completing tutorial: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListTutorialCompletions returns a user's tutorial rows
func (r *Repository) ListTutorialCompletions(ctx context.Context, userID int64) ([]domain.TutorialCompletion, error) {
	query := `
		SELECT user_id, tutorial_key, completed, completed_at
		FROM tutorial_completions
		WHERE user_id = $1
		ORDER BY completed_at
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tutorial completions: %w", err)
	}
	defer rows.Close()

	var completions []domain.TutorialCompletion
	for rows.Next() {
		var c domain.TutorialCompletion
		if err := rows.Scan(&c.UserID, &c.TutorialKey, &c.Completed, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning tutorial completion: %w", err)
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

// GetProfile retrieves a user profile
func (r *Repository) GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	query := `SELECT user_id, username, pets_disabled, avatar_url, updated_at FROM user_profiles WHERE user_id = $1`
	var p domain.UserProfile
	err := r.pool.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Username, &p.PetsDisabled, &p.AvatarURL, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile inserts or replaces a user profile
func (r *Repository) UpsertProfile(ctx context.Context, p *domain.UserProfile) error {
	query := `
		INSERT INTO user_profiles (user_id, username, pets_disabled, avatar_url, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET username = $2, pets_disabled = $3, avatar_url = $4, updated_at = $5
	`
	_, err := r.pool.Exec(ctx, query, p.UserID, p.Username, p.PetsDisabled, p.AvatarURL, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}
