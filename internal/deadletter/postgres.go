package deadletter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, e Entry) (bool, error) {
	eventJSON, err := json.Marshal(e.Event)
	if err != nil {
		return false, fmt.Errorf("marshal event: %w", err)
	}

	ct, err := s.pool.Exec(ctx, `
		INSERT INTO webhooks.dead_letters
			(delivery_id, tenant_id, endpoint_id, event, final_attempt, last_error, reason, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (delivery_id) DO NOTHING`,
		e.DeliveryID, e.TenantID, e.EndpointID, eventJSON,
		e.FinalAttempt, e.LastError, e.Reason, e.FailedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert dead letter: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT delivery_id, tenant_id, endpoint_id, event, final_attempt,
		       last_error, reason, failed_at, replayed_at, created_at
		FROM webhooks.dead_letters
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		tenantID, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, deliveryID string) (Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT delivery_id, tenant_id, endpoint_id, event, final_attempt,
		       last_error, reason, failed_at, replayed_at, created_at
		FROM webhooks.dead_letters
		WHERE delivery_id = $1`,
		deliveryID,
	)

	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *PostgresStore) MarkReplayed(ctx context.Context, deliveryID string, at time.Time) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE webhooks.dead_letters SET replayed_at = $2 WHERE delivery_id = $1`,
		deliveryID, at,
	)
	if err != nil {
		return fmt.Errorf("mark replayed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var eventJSON []byte
	var replayed sql.NullTime
	if err := row.Scan(&e.DeliveryID, &e.TenantID, &e.EndpointID, &eventJSON,
		&e.FinalAttempt, &e.LastError, &e.Reason, &e.FailedAt, &replayed, &e.CreatedAt); err != nil {
		return Entry{}, fmt.Errorf("scan dead letter: %w", err)
	}
	if err := json.Unmarshal(eventJSON, &e.Event); err != nil {
		return Entry{}, fmt.Errorf("decode event: %w", err)
	}
	if replayed.Valid {
		e.ReplayedAt = &replayed.Time
	}
	return e, nil
}
