package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/userpets/internal/domain"
)

const petColumns = `pet_id, user_id, level, experience, hunger, sleepiness, happiness, state,
	last_update, last_action_time, last_duel_time, created_at, version`

func scanPet(row pgx.Row) (*domain.Pet, error) {
	var (
		p          domain.Pet
		lastAction *time.Time
		lastDuel   *time.Time
	)
	err := row.Scan(
		&p.PetID,
		&p.UserID,
		&p.Level,
		&p.Experience,
		&p.Hunger,
		&p.Sleepiness,
		&p.Happiness,
		&p.State,
		&p.LastUpdate,
		&lastAction,
		&lastDuel,
		&p.CreatedAt,
		&p.Version,
	)
	if err != nil {
		return nil, err
	}
	p.LastActionTime = fromNullTime(lastAction)
	p.LastDuelTime = fromNullTime(lastDuel)
	return &p, nil
}

// GetPet retrieves a pet by ID
func (r *Repository) GetPet(ctx context.Context, petID int64) (*domain.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets WHERE pet_id = $1`
	p, err := scanPet(r.pool.QueryRow(ctx, query, petID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPetNotFound
		}
		return nil, fmt.Errorf("getting pet: %w", err)
	}
	return p, nil
}

// GetPetByUser retrieves the pet owned by a user
func (r *Repository) GetPetByUser(ctx context.Context, userID int64) (*domain.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets WHERE user_id = $1`
	p, err := scanPet(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPetNotFound
		}
		return nil, fmt.Errorf("getting pet by user: %w", err)
	}
	return p, nil
}

// CreatePet inserts a pet. If the user already has one, that pet is
// returned instead.
func (r *Repository) CreatePet(ctx context.Context, p *domain.Pet) (*domain.Pet, error) {
	query := `
		INSERT INTO pets (user_id, level, experience, hunger, sleepiness, happiness, state,
			last_update, last_action_time, last_duel_time, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + petColumns
	created, err := scanPet(r.pool.QueryRow(ctx, query,
		p.UserID,
		p.Level,
		p.Experience,
		p.Hunger,
		p.Sleepiness,
		p.Happiness,
		p.State,
		p.LastUpdate,
		nullTime(p.LastActionTime),
		nullTime(p.LastDuelTime),
		p.CreatedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return r.GetPetByUser(ctx, p.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating pet: %w", err)
	}
	return created, nil
}

// UpdatePet writes a pet if nobody changed it since it was read, and bumps
// its version
func (r *Repository) UpdatePet(ctx context.Context, p *domain.Pet) error {
	query := `
		UPDATE pets SET
			level = $3,
			experience = $4,
			hunger = $5,
			sleepiness = $6,
			happiness = $7,
			state = $8,
			last_update = $9,
			last_action_time = $10,
			last_duel_time = $11,
			version = version + 1
		WHERE pet_id = $1 AND version = $2
		RETURNING version
	`
	var version int64
	err := r.pool.QueryRow(ctx, query,
		p.PetID,
		p.Version,
		p.Level,
		p.Experience,
		p.Hunger,
		p.Sleepiness,
		p.Happiness,
		p.State,
		p.LastUpdate,
		nullTime(p.LastActionTime),
		nullTime(p.LastDuelTime),
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missingOrConflict(ctx, p.PetID)
		}
		return fmt.Errorf("updating pet: %w", err)
	}
	p.Version = version
	return nil
}

func (r *Repository) missingOrConflict(ctx context.Context, petID int64) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pets WHERE pet_id = $1)`, petID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking pet existence: %w", err)
	}
	if !exists {
		return domain.ErrPetNotFound
	}
	return domain.ErrPetConflict
}
