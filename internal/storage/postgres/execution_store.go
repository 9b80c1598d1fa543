package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// ExecutionStore implements storage.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExecutionStore = (*ExecutionStore)(nil)

// SaveExecution appends a finalized execution record. Returns
// ErrDuplicateKey if the transaction signature already exists.
func (s *ExecutionStore) SaveExecution(ctx context.Context, e *domain.TradeExecution) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_executions (
			id, ts, signal, input_token, output_token,
			input_amount, output_amount, expected_output, slippage_bps,
			status, transaction_signature, error_message, duration_ms, fee_sol
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14
		)
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.Timestamp, string(e.Signal), e.InputToken, e.OutputToken,
		e.InputAmount, e.OutputAmount, e.ExpectedOutput, e.SlippageBps,
		string(e.Status), e.TransactionSignature, e.ErrorMessage,
		e.Duration.Milliseconds(), e.FeeSOL,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade execution: %w", err)
	}
	return nil
}

// CountLiveTradesSince counts executions with ts >= since, excluding
// dry runs.
func (s *ExecutionStore) CountLiveTradesSince(ctx context.Context, since time.Time) (int, error) {
	query := `
		SELECT count(*)
		FROM trade_executions
		WHERE ts >= $1 AND status <> $2
	`

	var count int
	err := s.pool.QueryRow(ctx, query, since, string(domain.StatusDryRun)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count live trades: %w", err)
	}
	return count, nil
}

// GetRecentExecutions retrieves the most recent executions, newest first.
func (s *ExecutionStore) GetRecentExecutions(ctx context.Context, limit int) ([]*domain.TradeExecution, error) {
	query := `
		SELECT
			id, ts, signal, input_token, output_token,
			input_amount, output_amount, expected_output, slippage_bps,
			status, transaction_signature, error_message, duration_ms, fee_sol
		FROM trade_executions
		ORDER BY ts DESC, id DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get recent executions: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// GetBySignature retrieves an execution by transaction signature. Returns
// ErrNotFound if not exists.
func (s *ExecutionStore) GetBySignature(ctx context.Context, signature string) (*domain.TradeExecution, error) {
	query := `
		SELECT
			id, ts, signal, input_token, output_token,
			input_amount, output_amount, expected_output, slippage_bps,
			status, transaction_signature, error_message, duration_ms, fee_sol
		FROM trade_executions
		WHERE transaction_signature = $1
	`

	row := s.pool.QueryRow(ctx, query, signature)
	e, err := scanExecution(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get execution by signature: %w", err)
	}
	return e, nil
}

// scanExecution scans a single row into a TradeExecution.
func scanExecution(row pgx.Row) (*domain.TradeExecution, error) {
	var (
		e          domain.TradeExecution
		signal     string
		status     string
		durationMs int64
	)

	err := row.Scan(
		&e.ID, &e.Timestamp, &signal, &e.InputToken, &e.OutputToken,
		&e.InputAmount, &e.OutputAmount, &e.ExpectedOutput, &e.SlippageBps,
		&status, &e.TransactionSignature, &e.ErrorMessage, &durationMs, &e.FeeSOL,
	)
	if err != nil {
		return nil, err
	}

	e.Signal = domain.Action(signal)
	e.Status = domain.Status(status)
	e.Duration = time.Duration(durationMs) * time.Millisecond
	return &e, nil
}

// scanExecutions scans multiple rows into a slice of TradeExecution.
func scanExecutions(rows pgx.Rows) ([]*domain.TradeExecution, error) {
	var executions []*domain.TradeExecution

	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade execution row: %w", err)
		}
		executions = append(executions, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade execution rows: %w", err)
	}

	return executions, nil
}
