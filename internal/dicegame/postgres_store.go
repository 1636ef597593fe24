package dicegame

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists games in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed game store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const gameColumns = `id, creator, entry_fee, max_players, players, rolls, total_pool,
	status, winner, prize, platform_fee, prize_claimed, created_at, started_at, completed_at`

func (p *PostgresStore) Create(ctx context.Context, game *Game) error {
	rollsJSON, err := json.Marshal(game.Rolls)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO dice_games (`+gameColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, int64(game.ID), game.Creator, game.EntryFee, game.MaxPlayers,
		pq.Array(game.Players), rollsJSON, game.TotalPool,
		string(game.Status), nullString(game.Winner), game.Prize, game.PlatformFee,
		game.PrizeClaimed, game.CreatedAt, game.StartedAt, game.CompletedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return ErrGameExists
	}
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id uint64) (*Game, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+gameColumns+` FROM dice_games WHERE id = $1
	`, int64(id))

	game, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	return game, err
}

func (p *PostgresStore) Update(ctx context.Context, game *Game) error {
	rollsJSON, err := json.Marshal(game.Rolls)
	if err != nil {
		return err
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE dice_games SET
			players = $2, rolls = $3, total_pool = $4, status = $5,
			winner = $6, prize = $7, platform_fee = $8, prize_claimed = $9,
			started_at = $10, completed_at = $11
		WHERE id = $1
	`, int64(game.ID), pq.Array(game.Players), rollsJSON, game.TotalPool,
		string(game.Status), nullString(game.Winner), game.Prize, game.PlatformFee,
		game.PrizeClaimed, game.StartedAt, game.CompletedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, status Status, limit int) ([]*Game, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = p.db.QueryContext(ctx, `
			SELECT `+gameColumns+` FROM dice_games
			WHERE status = $1 ORDER BY created_at DESC LIMIT $2
		`, string(status), limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT `+gameColumns+` FROM dice_games
			ORDER BY created_at DESC LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanGames(rows)
}

func (p *PostgresStore) ListExpired(ctx context.Context, before time.Time, limit int) ([]*Game, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+gameColumns+` FROM dice_games
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC LIMIT $3
	`, string(StatusWaiting), before, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanGames(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGame(row rowScanner) (*Game, error) {
	game := &Game{}
	var id int64
	var players pq.StringArray
	var rollsJSON []byte
	var status string
	var winner sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&id, &game.Creator, &game.EntryFee, &game.MaxPlayers,
		&players, &rollsJSON, &game.TotalPool,
		&status, &winner, &game.Prize, &game.PlatformFee,
		&game.PrizeClaimed, &game.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	game.ID = uint64(id)
	game.Players = []string(players)
	game.Status = Status(status)
	game.Winner = winner.String
	if err := json.Unmarshal(rollsJSON, &game.Rolls); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		game.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		game.CompletedAt = &completedAt.Time
	}
	return game, nil
}

func scanGames(rows *sql.Rows) ([]*Game, error) {
	var games []*Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
