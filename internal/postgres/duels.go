package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/userpets/internal/domain"
)

const duelColumns = `duel_id, challenger_pet_id, opponent_pet_id, status, winner_pet_id, loser_pet_id,
	created_at, accepted_at, completed_at`

func scanDuel(row pgx.Row) (*domain.Duel, error) {
	var (
		d           domain.Duel
		acceptedAt  *time.Time
		completedAt *time.Time
	)
	err := row.Scan(
		&d.DuelID,
		&d.ChallengerPetID,
		&d.OpponentPetID,
		&d.Status,
		&d.WinnerPetID,
		&d.LoserPetID,
		&d.CreatedAt,
		&acceptedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	d.AcceptedAt = fromNullTime(acceptedAt)
	d.CompletedAt = fromNullTime(completedAt)
	return &d, nil
}

func (r *Repository) queryDuels(ctx context.Context, query string, args ...any) ([]domain.Duel, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var duels []domain.Duel
	for rows.Next() {
		d, err := scanDuel(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning duel: %w", err)
		}
		duels = append(duels, *d)
	}
	return duels, rows.Err()
}

// CreateDuel inserts a pending duel. A second pending duel for the same
// pair fails with domain.ErrDuelExists.
func (r *Repository) CreateDuel(ctx context.Context, d *domain.Duel) error {
	query := `
		INSERT INTO duels (challenger_pet_id, opponent_pet_id, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING duel_id
	`
	err := r.pool.QueryRow(ctx, query, d.ChallengerPetID, d.OpponentPetID, string(d.Status), d.CreatedAt).Scan(&d.DuelID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuelExists
		}
		return fmt.Errorf("creating duel: %w", err)
	}
	return nil
}

// GetDuel retrieves a duel by ID
func (r *Repository) GetDuel(ctx context.Context, duelID int64) (*domain.Duel, error) {
	query := `SELECT ` + duelColumns + ` FROM duels WHERE duel_id = $1`
	d, err := scanDuel(r.pool.QueryRow(ctx, query, duelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDuelNotFound
		}
		return nil, fmt.Errorf("getting duel: %w", err)
	}
	return d, nil
}

// FindPendingDuel returns the pending duel between two pets in either
// direction, or nil when there is none
func (r *Repository) FindPendingDuel(ctx context.Context, petA, petB int64) (*domain.Duel, error) {
	query := `
		SELECT ` + duelColumns + `
		FROM duels
		WHERE status = 'pending'
		  AND ((challenger_pet_id = $1 AND opponent_pet_id = $2)
		    OR (challenger_pet_id = $2 AND opponent_pet_id = $1))
		LIMIT 1
	`
	d, err := scanDuel(r.pool.QueryRow(ctx, query, petA, petB))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding pending duel: %w", err)
	}
	return d, nil
}

func (r *Repository) transitionDuel(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// AcceptDuel moves a pending duel to accepted
func (r *Repository) AcceptDuel(ctx context.Context, duelID int64, at time.Time) (bool, error) {
	ok, err := r.transitionDuel(ctx,
		`UPDATE duels SET status = 'accepted', accepted_at = $2 WHERE duel_id = $1 AND status = 'pending'`,
		duelID, at,
	)
	if err != nil {
		return false, fmt.Errorf("accepting duel: %w", err)
	}
	return ok, nil
}

// DeclineDuel moves a pending duel to declined
func (r *Repository) DeclineDuel(ctx context.Context, duelID int64) (bool, error) {
	ok, err := r.transitionDuel(ctx,
		`UPDATE duels SET status = 'declined' WHERE duel_id = $1 AND status = 'pending'`,
		duelID,
	)
	if err != nil {
		return false, fmt.Errorf("declining duel: %w", err)
	}
	return ok, nil
}

// CompleteDuel records the outcome of an accepted duel
func (r *Repository) CompleteDuel(ctx context.Context, duelID, winnerPetID, loserPetID int64, at time.Time) (bool, error) {
	ok, err := r.transitionDuel(ctx, `
		UPDATE duels
		SET status = 'completed', winner_pet_id = $2, loser_pet_id = $3, completed_at = $4
		WHERE duel_id = $1 AND status = 'accepted'`,
		duelID, winnerPetID, loserPetID, at,
	)
	if err != nil {
		return false, fmt.Errorf("completing duel: %w", err)
	}
	return ok, nil
}

// ListPetDuels returns a pet's duels, newest first
func (r *Repository) ListPetDuels(ctx context.Context, petID int64, limit int) ([]domain.Duel, error) {
	query := `
		SELECT ` + duelColumns + `
		FROM duels
		WHERE challenger_pet_id = $1 OR opponent_pet_id = $1
		ORDER BY created_at DESC, duel_id DESC
		LIMIT $2
	`
	duels, err := r.queryDuels(ctx, query, petID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pet duels: %w", err)
	}
	return duels, nil
}

// CountDuelResults counts a pet's completed wins and losses
func (r *Repository) CountDuelResults(ctx context.Context, petID int64) (wins, losses int64, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE winner_pet_id = $1),
			COUNT(*) FILTER (WHERE loser_pet_id = $1)
		FROM duels
		WHERE status = 'completed' AND (winner_pet_id = $1 OR loser_pet_id = $1)
	`
	if err := r.pool.QueryRow(ctx, query, petID).Scan(&wins, &losses); err != nil {
		return 0, 0, fmt.Errorf("counting duel results: %w", err)
	}
	return wins, losses, nil
}

// ListStuckDuels returns duels accepted before the cutoff that never completed
func (r *Repository) ListStuckDuels(ctx context.Context, acceptedBefore time.Time) ([]domain.Duel, error) {
	query := `
		SELECT ` + duelColumns + `
		FROM duels
		WHERE status = 'accepted' AND accepted_at < $1
		ORDER BY accepted_at
	`
	duels, err := r.queryDuels(ctx, query, acceptedBefore)
	if err != nil {
		return nil, fmt.Errorf("listing stuck duels: %w", err)
	}
	return duels, nil
}
