package betting

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists bets and group bets in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed bet store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const betColumns = `id, bet_type, creator, participants, deposits, max_participants,
	arbiter, amount, description, total_pool, group_pool, status, winner, payout,
	platform_fee, arbiter_fee, winnings_claimed, arbiter_fee_paid, group_fee_taken,
	created_at, activated_at, completed_at`

func (p *PostgresStore) Create(ctx context.Context, bet *Bet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bets (`+betColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, int64(bet.ID), string(bet.Type), bet.Creator,
		pq.Array(bet.Participants), pq.Array(bet.Deposits), bet.MaxParticipants,
		bet.Arbiter, bet.Amount, bet.Description, bet.TotalPool, bet.GroupPool,
		string(bet.Status), nullString(bet.Winner), bet.Payout,
		bet.PlatformFee, bet.ArbiterFee, bet.WinningsClaimed, bet.ArbiterFeePaid,
		bet.GroupFeeTaken, bet.CreatedAt, bet.ActivatedAt, bet.CompletedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return ErrBetExists
	}
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id uint64) (*Bet, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+betColumns+` FROM bets WHERE id = $1
	`, int64(id))

	bet, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBetNotFound
	}
	return bet, err
}

func (p *PostgresStore) Update(ctx context.Context, bet *Bet) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET
			participants = $2, deposits = $3, total_pool = $4, group_pool = $5,
			status = $6, winner = $7, payout = $8, platform_fee = $9,
			arbiter_fee = $10, winnings_claimed = $11, arbiter_fee_paid = $12,
			group_fee_taken = $13, activated_at = $14, completed_at = $15
		WHERE id = $1
	`, int64(bet.ID), pq.Array(bet.Participants), pq.Array(bet.Deposits),
		bet.TotalPool, bet.GroupPool, string(bet.Status), nullString(bet.Winner),
		bet.Payout, bet.PlatformFee, bet.ArbiterFee, bet.WinningsClaimed,
		bet.ArbiterFeePaid, bet.GroupFeeTaken, bet.ActivatedAt, bet.CompletedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBetNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, status Status, limit int) ([]*Bet, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = p.db.QueryContext(ctx, `
			SELECT `+betColumns+` FROM bets
			WHERE status = $1 ORDER BY created_at DESC LIMIT $2
		`, string(status), limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT `+betColumns+` FROM bets
			ORDER BY created_at DESC LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanBets(rows)
}

func (p *PostgresStore) ListByParticipant(ctx context.Context, addr string, limit int) ([]*Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE $1 = ANY(participants) OR arbiter = $1
		ORDER BY created_at DESC LIMIT $2
	`, addr, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanBets(rows)
}

func (p *PostgresStore) ListExpired(ctx context.Context, before time.Time, limit int) ([]*Bet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+betColumns+` FROM bets
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC LIMIT $3
	`, string(StatusWaiting), before, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanBets(rows)
}

func (p *PostgresStore) CreateGroupBet(ctx context.Context, gb *GroupBet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO group_bets (id, bet_id, bettor, choice, amount, claimed, payout, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, gb.ID, int64(gb.BetID), gb.Bettor, gb.Choice, gb.Amount, gb.Claimed, gb.Payout, gb.CreatedAt)
	return err
}

func (p *PostgresStore) GetGroupBet(ctx context.Context, id string) (*GroupBet, error) {
	gb := &GroupBet{}
	var betID int64

	err := p.db.QueryRowContext(ctx, `
		SELECT id, bet_id, bettor, choice, amount, claimed, payout, created_at
		FROM group_bets WHERE id = $1
	`, id).Scan(&gb.ID, &betID, &gb.Bettor, &gb.Choice, &gb.Amount, &gb.Claimed, &gb.Payout, &gb.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGroupBetNotFound
	}
	if err != nil {
		return nil, err
	}

	gb.BetID = uint64(betID)
	return gb, nil
}

func (p *PostgresStore) UpdateGroupBet(ctx context.Context, gb *GroupBet) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE group_bets SET claimed = $2, payout = $3 WHERE id = $1
	`, gb.ID, gb.Claimed, gb.Payout)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGroupBetNotFound
	}
	return nil
}

func (p *PostgresStore) ListGroupBets(ctx context.Context, betID uint64, limit int) ([]*GroupBet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, bet_id, bettor, choice, amount, claimed, payout, created_at
		FROM group_bets WHERE bet_id = $1 ORDER BY created_at ASC LIMIT $2
	`, int64(betID), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*GroupBet
	for rows.Next() {
		gb := &GroupBet{}
		var id int64
		if err := rows.Scan(&gb.ID, &id, &gb.Bettor, &gb.Choice, &gb.Amount, &gb.Claimed, &gb.Payout, &gb.CreatedAt); err != nil {
			return nil, err
		}
		gb.BetID = uint64(id)
		result = append(result, gb)
	}
	return result, rows.Err()
}

func (p *PostgresStore) SumGroupBetsByChoice(ctx context.Context, betID uint64, choice string) (int64, error) {
	var total sql.NullInt64
	err := p.db.QueryRowContext(ctx, `
		SELECT SUM(amount) FROM group_bets WHERE bet_id = $1 AND choice = $2
	`, int64(betID), choice).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBet(row rowScanner) (*Bet, error) {
	bet := &Bet{}
	var id int64
	var betType, status string
	var participants pq.StringArray
	var deposits pq.BoolArray
	var winner sql.NullString
	var description sql.NullString
	var activatedAt, completedAt sql.NullTime

	err := row.Scan(
		&id, &betType, &bet.Creator, &participants, &deposits, &bet.MaxParticipants,
		&bet.Arbiter, &bet.Amount, &description, &bet.TotalPool, &bet.GroupPool,
		&status, &winner, &bet.Payout, &bet.PlatformFee, &bet.ArbiterFee,
		&bet.WinningsClaimed, &bet.ArbiterFeePaid, &bet.GroupFeeTaken,
		&bet.CreatedAt, &activatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	bet.ID = uint64(id)
	bet.Type = Type(betType)
	bet.Participants = []string(participants)
	bet.Deposits = []bool(deposits)
	bet.Status = Status(status)
	bet.Winner = winner.String
	bet.Description = description.String
	if activatedAt.Valid {
		bet.ActivatedAt = &activatedAt.Time
	}
	if completedAt.Valid {
		bet.CompletedAt = &completedAt.Time
	}
	return bet, nil
}

func scanBets(rows *sql.Rows) ([]*Bet, error) {
	var bets []*Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
