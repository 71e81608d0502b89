package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goalpost/settlement-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// uint64 amounts are stored as NUMERIC since BIGINT cannot hold the full range.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const matchColumns = `match_id, admin_identity, oracle_identity,
	outcome_a_name, outcome_b_name,
	virtual_reserve_a::TEXT, virtual_reserve_b::TEXT,
	total_shares_a::TEXT, total_shares_b::TEXT,
	score_a, score_b,
	escrow_balance::TEXT, total_deposited::TEXT,
	status, winner, created_at`

func (s *PostgresStore) CreateMatch(ctx context.Context, m *model.MatchState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO matches (match_id, admin_identity, oracle_identity,
			outcome_a_name, outcome_b_name,
			virtual_reserve_a, virtual_reserve_b,
			total_shares_a, total_shares_b,
			score_a, score_b,
			escrow_balance, total_deposited,
			status, winner, created_at)
		 VALUES ($1, $2, $3, $4, $5,
			$6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC,
			$10, $11, $12::NUMERIC, $13::NUMERIC, $14, $15, $16)`,
		m.MatchID, m.AdminIdentity, m.OracleIdentity,
		m.OutcomeAName, m.OutcomeBName,
		u64(m.VirtualReserveA), u64(m.VirtualReserveB),
		u64(m.TotalSharesA), u64(m.TotalSharesB),
		m.ScoreA, m.ScoreB,
		u64(m.EscrowBalance), u64(m.TotalDeposited),
		string(m.Status), string(m.Winner), m.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrMatchExists
	}
	return err
}

func (s *PostgresStore) GetMatch(ctx context.Context, matchID string) (*model.MatchState, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE match_id = $1`, matchID)

	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", matchID, err)
	}
	return m, nil
}

func (s *PostgresStore) UpdateMatch(ctx context.Context, m *model.MatchState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE matches
		 SET virtual_reserve_a = $2::NUMERIC, virtual_reserve_b = $3::NUMERIC,
		     total_shares_a = $4::NUMERIC, total_shares_b = $5::NUMERIC,
		     score_a = $6, score_b = $7,
		     escrow_balance = $8::NUMERIC, total_deposited = $9::NUMERIC,
		     status = $10, winner = $11
		 WHERE match_id = $1`,
		m.MatchID,
		u64(m.VirtualReserveA), u64(m.VirtualReserveB),
		u64(m.TotalSharesA), u64(m.TotalSharesB),
		m.ScoreA, m.ScoreB,
		u64(m.EscrowBalance), u64(m.TotalDeposited),
		string(m.Status), string(m.Winner),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMatchNotFound
	}
	return nil
}

func (s *PostgresStore) ListMatches(ctx context.Context) ([]model.MatchState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []model.MatchState
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

func (s *PostgresStore) GetPosition(ctx context.Context, matchID, participantID string) (*model.ParticipantPosition, error) {
	var p model.ParticipantPosition
	var sharesA, sharesB, deposited string

	err := s.pool.QueryRow(ctx,
		`SELECT match_id, participant_id,
		        shares_a::TEXT, shares_b::TEXT, deposited::TEXT
		 FROM positions WHERE match_id = $1 AND participant_id = $2`,
		matchID, participantID).
		Scan(&p.MatchID, &p.ParticipantID, &sharesA, &sharesB, &deposited)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s/%s: %w", matchID, participantID, err)
	}

	p.SharesA, _ = strconv.ParseUint(sharesA, 10, 64)
	p.SharesB, _ = strconv.ParseUint(sharesB, 10, 64)
	p.Deposited, _ = strconv.ParseUint(deposited, 10, 64)
	return &p, nil
}

func (s *PostgresStore) PutPosition(ctx context.Context, p *model.ParticipantPosition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (match_id, participant_id, shares_a, shares_b, deposited)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC)
		 ON CONFLICT (match_id, participant_id)
		 DO UPDATE SET shares_a = EXCLUDED.shares_a,
		               shares_b = EXCLUDED.shares_b,
		               deposited = EXCLUDED.deposited`,
		p.MatchID, p.ParticipantID,
		u64(p.SharesA), u64(p.SharesB), u64(p.Deposited),
	)
	return err
}

func (s *PostgresStore) ListPositions(ctx context.Context, matchID string) ([]model.ParticipantPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT match_id, participant_id,
		        shares_a::TEXT, shares_b::TEXT, deposited::TEXT
		 FROM positions WHERE match_id = $1 ORDER BY participant_id`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.ParticipantPosition
	for rows.Next() {
		var p model.ParticipantPosition
		var sharesA, sharesB, deposited string
		if err := rows.Scan(&p.MatchID, &p.ParticipantID, &sharesA, &sharesB, &deposited); err != nil {
			return nil, err
		}
		p.SharesA, _ = strconv.ParseUint(sharesA, 10, 64)
		p.SharesB, _ = strconv.ParseUint(sharesB, 10, 64)
		p.Deposited, _ = strconv.ParseUint(deposited, 10, 64)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// u64 renders a uint64 for a NUMERIC parameter.
func u64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// scanMatch reads one matches row, from either QueryRow or Query.
func scanMatch(row pgx.Row) (*model.MatchState, error) {
	var m model.MatchState
	var vA, vB, tA, tB, escrow, deposited string
	var status, winner string

	err := row.Scan(&m.MatchID, &m.AdminIdentity, &m.OracleIdentity,
		&m.OutcomeAName, &m.OutcomeBName,
		&vA, &vB, &tA, &tB,
		&m.ScoreA, &m.ScoreB,
		&escrow, &deposited,
		&status, &winner, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	m.VirtualReserveA, _ = strconv.ParseUint(vA, 10, 64)
	m.VirtualReserveB, _ = strconv.ParseUint(vB, 10, 64)
	m.TotalSharesA, _ = strconv.ParseUint(tA, 10, 64)
	m.TotalSharesB, _ = strconv.ParseUint(tB, 10, 64)
	m.EscrowBalance, _ = strconv.ParseUint(escrow, 10, 64)
	m.TotalDeposited, _ = strconv.ParseUint(deposited, 10, 64)
	m.Status = model.MatchStatus(status)
	m.Winner = model.Outcome(winner)

	return &m, nil
}
