package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mbd888/wagervault/internal/idgen"
)

// PostgresStore persists ledger data in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) GetBalance(ctx context.Context, addr string) (*Balance, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT address, available, total_in, total_out
		FROM balances WHERE address = $1`, addr)

	var b Balance
	err := row.Scan(&b.Address, &b.Available, &b.TotalIn, &b.TotalOut)
	if err == sql.ErrNoRows {
		return &Balance{Address: addr}, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *PostgresStore) Credit(ctx context.Context, addr string, amount int64, reference, description string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := creditTx(ctx, tx, addr, amount); err != nil {
		return err
	}
	if err := recordTx(ctx, tx, addr, "deposit", amount, reference, description); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Debit(ctx context.Context, addr string, amount int64, reference, description string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := debitTx(ctx, tx, addr, amount); err != nil {
		return err
	}
	if err := recordTx(ctx, tx, addr, "withdrawal", amount, reference, description); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) EscrowBalance(ctx context.Context, reference string) (int64, error) {
	var amount int64
	err := p.db.QueryRowContext(ctx,
		`SELECT amount FROM escrow_accounts WHERE reference = $1`, reference).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return amount, err
}

func (p *PostgresStore) EscrowDeposit(ctx context.Context, addr string, amount int64, reference, description string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := debitTx(ctx, tx, addr, amount); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO escrow_accounts (reference, amount) VALUES ($1, $2)
		ON CONFLICT (reference) DO UPDATE SET amount = escrow_accounts.amount + $2`,
		reference, amount)
	if err != nil {
		return fmt.Errorf("credit escrow: %w", err)
	}
	if err := recordTx(ctx, tx, addr, "escrow_lock", amount, reference, description); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) EscrowRelease(ctx context.Context, addr string, amount int64, reference, description string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE escrow_accounts SET amount = amount - $2
		WHERE reference = $1 AND amount >= $2`, reference, amount)
	if err != nil {
		return fmt.Errorf("debit escrow: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientEscrow
	}

	if err := creditTx(ctx, tx, addr, amount); err != nil {
		return err
	}
	if err := recordTx(ctx, tx, addr, "escrow_release", amount, reference, description); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) History(ctx context.Context, addr string, limit int) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, address, type, amount, reference, description, created_at
		FROM ledger_entries WHERE address = $1
		ORDER BY created_at DESC LIMIT $2`, addr, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.Address, &e.Type, &e.Amount, &e.Reference, &e.Description, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.Unix()
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// creditTx adds to a balance inside a transaction, creating the row if needed.
func creditTx(ctx context.Context, tx *sql.Tx, addr string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO balances (address, available, total_in, total_out, updated_at)
		VALUES ($1, $2, $2, 0, NOW())
		ON CONFLICT (address) DO UPDATE SET
			available = balances.available + $2,
			total_in = balances.total_in + $2,
			updated_at = NOW()`,
		addr, amount)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

// debitTx subtracts from a balance inside a transaction.
// The conditional UPDATE makes the insufficient-funds check atomic.
func debitTx(ctx context.Context, tx *sql.Tx, addr string, amount int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE balances SET
			available = available - $2,
			total_out = total_out + $2,
			updated_at = NOW()
		WHERE address = $1 AND available >= $2`,
		addr, amount)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func recordTx(ctx context.Context, tx *sql.Tx, addr, typ string, amount int64, reference, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, address, type, amount, reference, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		idgen.WithPrefix("entry_"), addr, typ, amount, reference, description)
	if err != nil {
		return fmt.Errorf("record entry: %w", err)
	}
	return nil
}
