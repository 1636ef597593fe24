package arbiters

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL arbiter stats store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

// RecordDecision upserts the running stats. The average and score are
// recomputed in SQL so concurrent rulings cannot clobber each other.
func (p *PostgresStore) RecordDecision(ctx context.Context, arbiter string, volume int64, decisionTime time.Duration) error {
	seconds := decisionTime.Seconds()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO arbiter_stats (
			address, total_arbitrated, total_volume,
			avg_decision_seconds, fastest_decision_seconds, reputation_score,
			first_decision_at, last_decision_at
		) VALUES ($1, 1, $2, $3, $3, 1 / (1 + $3 / 86400.0) * 100, $4, $4)
		ON CONFLICT (address) DO UPDATE SET
			avg_decision_seconds = (arbiter_stats.avg_decision_seconds * arbiter_stats.total_arbitrated + $3)
				/ (arbiter_stats.total_arbitrated + 1),
			total_arbitrated = arbiter_stats.total_arbitrated + 1,
			total_volume = arbiter_stats.total_volume + $2,
			fastest_decision_seconds = LEAST(arbiter_stats.fastest_decision_seconds, $3),
			reputation_score = (arbiter_stats.total_arbitrated + 1)
				/ (1 + ((arbiter_stats.avg_decision_seconds * arbiter_stats.total_arbitrated + $3)
					/ (arbiter_stats.total_arbitrated + 1)) / 86400.0) * 100,
			last_decision_at = $4
	`, arbiter, volume, seconds, time.Now())
	return err
}

func (p *PostgresStore) Get(ctx context.Context, arbiter string) (*Stats, error) {
	s := &Stats{}
	err := p.db.QueryRowContext(ctx, `
		SELECT address, total_arbitrated, total_volume,
		       avg_decision_seconds, fastest_decision_seconds, reputation_score,
		       first_decision_at, last_decision_at
		FROM arbiter_stats WHERE address = $1
	`, arbiter).Scan(&s.Address, &s.TotalArbitrated, &s.TotalVolume,
		&s.AvgDecisionTime, &s.FastestDecision, &s.ReputationScore,
		&s.FirstDecisionAt, &s.LastDecisionAt)
	if err == sql.ErrNoRows {
		return nil, ErrArbiterNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]*Stats, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT address, total_arbitrated, total_volume,
		       avg_decision_seconds, fastest_decision_seconds, reputation_score,
		       first_decision_at, last_decision_at
		FROM arbiter_stats
		ORDER BY reputation_score DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Stats
	for rows.Next() {
		s := &Stats{}
		if err := rows.Scan(&s.Address, &s.TotalArbitrated, &s.TotalVolume,
			&s.AvgDecisionTime, &s.FastestDecision, &s.ReputationScore,
			&s.FirstDecisionAt, &s.LastDecisionAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
