package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"insurance-ledger/internal/models"

	"github.com/jmoiron/sqlx"
)

type PostgresEscrowRepository struct {
	db *sqlx.DB
}

func NewPostgresEscrowRepository(db *sqlx.DB) *PostgresEscrowRepository {
	return &PostgresEscrowRepository{db: db}
}

func (r *PostgresEscrowRepository) Credit(ctx context.Context, policyID int64, amount int64) error {
	return creditEscrow(ctx, r.db, policyID, amount)
}

func (r *PostgresEscrowRepository) Debit(ctx context.Context, policyID int64, amount int64) error {
	return debitEscrow(ctx, r.db, policyID, amount)
}

// creditEscrow upserts the escrow account and accumulates the balance. It
// runs against either the bare handle or a transaction, so the purchase
// transaction commits the credit together with the policyholder transition.
func creditEscrow(ctx context.Context, q sqlx.ExtContext, policyID int64, amount int64) error {
	query := `
		INSERT INTO escrow_account (policy_id, balance, credited, debited)
		VALUES ($1, $2, $2, 0)
		ON CONFLICT (policy_id) DO UPDATE SET
			balance = escrow_account.balance + EXCLUDED.balance,
			credited = escrow_account.credited + EXCLUDED.credited,
			updated_at = now()
	`
	if _, err := q.ExecContext(ctx, query, policyID, amount); err != nil {
		return fmt.Errorf("failed to credit escrow for policy %d: %w", policyID, err)
	}
	return nil
}

// debitEscrow is a single conditional UPDATE: the balance check and the
// decrement commit together, so concurrent payouts can never overdraw the
// account.
func debitEscrow(ctx context.Context, q sqlx.ExtContext, policyID int64, amount int64) error {
	query := `
		UPDATE escrow_account
		SET balance = balance - $2, debited = debited + $2, updated_at = now()
		WHERE policy_id = $1 AND balance >= $2
	`
	result, err := q.ExecContext(ctx, query, policyID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit escrow for policy %d: %w", policyID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read debit result: %w", err)
	}
	if rows == 0 {
		return models.ErrInsufficientEscrow
	}
	return nil
}

func (r *PostgresEscrowRepository) Balance(ctx context.Context, policyID int64) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance,
		`SELECT balance FROM escrow_account WHERE policy_id = $1`, policyID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get escrow balance: %w", err)
	}
	return balance, nil
}

func (r *PostgresEscrowRepository) GetAccount(ctx context.Context, policyID int64) (*models.EscrowAccount, error) {
	var account models.EscrowAccount
	query := `
		SELECT policy_id, balance, credited, debited, updated_at
		FROM escrow_account
		WHERE policy_id = $1
	`
	err := r.db.GetContext(ctx, &account, query, policyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow account: %w", err)
	}
	return &account, nil
}
