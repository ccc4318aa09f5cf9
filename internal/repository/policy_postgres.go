package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"insurance-ledger/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type PostgresPolicyRepository struct {
	db    *sqlx.DB
	cache *snapshotCache
}

func NewPostgresPolicyRepository(db *sqlx.DB, redisClient *redis.Client) *PostgresPolicyRepository {
	return &PostgresPolicyRepository{db: db, cache: newSnapshotCache(redisClient)}
}

func (r *PostgresPolicyRepository) Create(ctx context.Context, policy *models.Policy) error {
	query := `
		INSERT INTO policy (insurer, coverage, premium, duration, mature_time, active)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		policy.Insurer, policy.Coverage, policy.Premium, policy.Duration, policy.MatureTime,
	).Scan(&policy.ID, &policy.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}
	return nil
}

func (r *PostgresPolicyRepository) GetByID(ctx context.Context, id int64) (*models.Policy, error) {
	var policy models.Policy
	if r.cache.get(ctx, policyKey(id), &policy) {
		return &policy, nil
	}

	fetched, err := r.fetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache.set(ctx, policyKey(id), fetched)
	return fetched, nil
}

// GetByIDFresh reads straight from Postgres, bypassing the snapshot cache.
func (r *PostgresPolicyRepository) GetByIDFresh(ctx context.Context, id int64) (*models.Policy, error) {
	return r.fetchByID(ctx, id)
}

// fetchByID reads straight from Postgres, bypassing the snapshot cache.
// Mutating methods use it so error classification never sees a stale copy.
func (r *PostgresPolicyRepository) fetchByID(ctx context.Context, id int64) (*models.Policy, error) {
	var policy models.Policy
	query := `
		SELECT id, insurer, policyholder, coverage, premium, duration,
		       start_date, mature_time, active, created_at
		FROM policy
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &policy, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy by id: %w", err)
	}
	return &policy, nil
}

// Purchase performs the unset-to-set policyholder transition and the escrow
// credit in one transaction. The conditional UPDATE resolves concurrent
// purchases to exactly one winner; the losing transaction never credits.
func (r *PostgresPolicyRepository) Purchase(ctx context.Context, id int64, policyholder string, startDate int64, premium int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin purchase transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE policy
		SET policyholder = $2, start_date = $3, active = TRUE
		WHERE id = $1 AND policyholder IS NULL
	`
	result, err := tx.ExecContext(ctx, query, id, policyholder, startDate)
	if err != nil {
		return fmt.Errorf("failed to purchase policy: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read purchase result: %w", err)
	}
	if rows == 0 {
		if _, err := r.fetchByID(ctx, id); err != nil {
			return err
		}
		return models.ErrAlreadyPurchased
	}

	if err := creditEscrow(ctx, tx, id, premium); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purchase: %w", err)
	}

	r.cache.invalidate(ctx, policyKey(id))
	return nil
}

func (r *PostgresPolicyRepository) Deactivate(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE policy SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate policy: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deactivate result: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}

	r.cache.invalidate(ctx, policyKey(id))
	return nil
}

func (r *PostgresPolicyRepository) ListExpiredActive(ctx context.Context, now int64) ([]models.Policy, error) {
	var policies []models.Policy
	query := `
		SELECT id, insurer, policyholder, coverage, premium, duration,
		       start_date, mature_time, active, created_at
		FROM policy
		WHERE active = TRUE
		  AND start_date IS NOT NULL
		  AND start_date + duration < $1
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &policies, query, now); err != nil {
		return nil, fmt.Errorf("failed to list expired policies: %w", err)
	}
	return policies, nil
}

func (r *PostgresPolicyRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM policy`); err != nil {
		return 0, fmt.Errorf("failed to count policies: %w", err)
	}
	return count, nil
}
