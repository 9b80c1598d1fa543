package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"solana-trader/internal/domain"
	"solana-trader/internal/storage"
)

// ExecutionStore implements storage.ExecutionStore using SQLite.
type ExecutionStore struct {
	db *DB
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(db *DB) *ExecutionStore {
	return &ExecutionStore{db: db}
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Timestamp.UTC(), string(e.Signal), e.InputToken, e.OutputToken,
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
		WHERE ts >= ? AND status <> ?
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, since.UTC(), string(domain.StatusDryRun)).Scan(&count)
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
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get recent executions: %w", err)
	}
	defer rows.Close()

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

// GetBySignature retrieves an execution by transaction signature. Returns
// ErrNotFound if not exists.
func (s *ExecutionStore) GetBySignature(ctx context.Context, signature string) (*domain.TradeExecution, error) {
	query := `
		SELECT
			id, ts, signal, input_token, output_token,
			input_amount, output_amount, expected_output, slippage_bps,
			status, transaction_signature, error_message, duration_ms, fee_sol
		FROM trade_executions
		WHERE transaction_signature = ?
	`

	e, err := scanExecution(s.db.QueryRowContext(ctx, query, signature))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get execution by signature: %w", err)
	}
	return e, nil
}

// row is satisfied by both *sql.Row and *sql.Rows.
type row interface {
	Scan(dest ...interface{}) error
}

// scanExecution scans a single row into a TradeExecution.
func scanExecution(r row) (*domain.TradeExecution, error) {
	var (
		e          domain.TradeExecution
		signal     string
		status     string
		signature  sql.NullString
		errMsg     sql.NullString
		outAmount  sql.NullFloat64
		expected   sql.NullFloat64
		feeSOL     sql.NullFloat64
		durationMs int64
	)

	err := r.Scan(
		&e.ID, &e.Timestamp, &signal, &e.InputToken, &e.OutputToken,
		&e.InputAmount, &outAmount, &expected, &e.SlippageBps,
		&status, &signature, &errMsg, &durationMs, &feeSOL,
	)
	if err != nil {
		return nil, err
	}

	e.Signal = domain.Action(signal)
	e.Status = domain.Status(status)
	e.Duration = time.Duration(durationMs) * time.Millisecond
	if outAmount.Valid {
		e.OutputAmount = &outAmount.Float64
	}
	if expected.Valid {
		e.ExpectedOutput = &expected.Float64
	}
	if feeSOL.Valid {
		e.FeeSOL = &feeSOL.Float64
	}
	if signature.Valid {
		e.TransactionSignature = &signature.String
	}
	if errMsg.Valid {
		e.ErrorMessage = &errMsg.String
	}
	return &e, nil
}
