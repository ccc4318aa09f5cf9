package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"insurance-ledger/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type PostgresClaimRepository struct {
	db    *sqlx.DB
	cache *snapshotCache
}

func NewPostgresClaimRepository(db *sqlx.DB, redisClient *redis.Client) *PostgresClaimRepository {
	return &PostgresClaimRepository{db: db, cache: newSnapshotCache(redisClient)}
}

func (r *PostgresClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO claim (policy_id, policyholder, evidence)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		claim.PolicyID, claim.Policyholder, claim.Evidence,
	).Scan(&claim.ID, &claim.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

func (r *PostgresClaimRepository) GetByID(ctx context.Context, id int64) (*models.Claim, error) {
	var claim models.Claim
	if r.cache.get(ctx, claimKey(id), &claim) {
		return &claim, nil
	}

	fetched, err := r.fetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache.set(ctx, claimKey(id), fetched)
	return fetched, nil
}

// GetByIDFresh reads straight from Postgres, bypassing the snapshot cache.
func (r *PostgresClaimRepository) GetByIDFresh(ctx context.Context, id int64) (*models.Claim, error) {
	return r.fetchByID(ctx, id)
}

// fetchByID reads straight from Postgres, bypassing the snapshot cache.
func (r *PostgresClaimRepository) fetchByID(ctx context.Context, id int64) (*models.Claim, error) {
	var claim models.Claim
	query := `
		SELECT id, policy_id, policyholder, evidence, verified, rejected, paid,
		       created_at, adjudicated_at, paid_at
		FROM claim
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &claim, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim by id: %w", err)
	}
	return &claim, nil
}

// Adjudicate flips exactly one of verified/rejected, once. The conditional
// UPDATE keeps verify and reject mutually exclusive under concurrency.
func (r *PostgresClaimRepository) Adjudicate(ctx context.Context, id int64, verdict models.AdjudicationVerdict, at time.Time) error {
	query := `
		UPDATE claim
		SET verified = $2, rejected = $3, adjudicated_at = $4
		WHERE id = $1 AND verified = FALSE AND rejected = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, id,
		verdict == models.VerdictVerified, verdict == models.VerdictRejected, at)
	if err != nil {
		return fmt.Errorf("failed to adjudicate claim: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read adjudication result: %w", err)
	}
	if rows == 0 {
		if _, err := r.fetchByID(ctx, id); err != nil {
			return err
		}
		return models.ErrAlreadyAdjudicated
	}

	r.cache.invalidate(ctx, claimKey(id))
	return nil
}

// SettlePayout flips paid once, only on a verified claim, and debits the
// escrow account in the same transaction. Either both commit or neither
// does, so a crash or an under-funded escrow can never strand funds against
// an unpaid claim.
func (r *PostgresClaimRepository) SettlePayout(ctx context.Context, claimID int64, policyID int64, amount int64, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin payout transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE claim
		SET paid = TRUE, paid_at = $2
		WHERE id = $1 AND verified = TRUE AND rejected = FALSE AND paid = FALSE
	`
	result, err := tx.ExecContext(ctx, query, claimID, at)
	if err != nil {
		return fmt.Errorf("failed to mark claim paid: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read payout result: %w", err)
	}
	if rows == 0 {
		claim, err := r.fetchByID(ctx, claimID)
		if err != nil {
			return err
		}
		if claim.Paid {
			return models.ErrAlreadyPaid
		}
		return models.ErrNotVerified
	}

	if err := debitEscrow(ctx, tx, policyID, amount); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payout: %w", err)
	}

	r.cache.invalidate(ctx, claimKey(claimID))
	return nil
}

func (r *PostgresClaimRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM claim`); err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}
	return count, nil
}
