package endpoint

import (
	"context"
	"database/sql"
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

func (s *PostgresStore) FindSubscribers(ctx context.Context, tenantID, eventType string) ([]Endpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.tenant_id, e.url, e.secret, e.description, e.status,
		       e.total_failed, e.last_failed_at, e.created_at, e.updated_at
		FROM webhooks.subscriptions s
		JOIN webhooks.endpoints e ON e.id = s.endpoint_id
		WHERE s.tenant_id = $1 AND s.event_type = $2 AND e.status = 'active'
		ORDER BY e.id`,
		tenantID, eventType,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var out []Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
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

func (s *PostgresStore) Get(ctx context.Context, endpointID string) (Endpoint, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT e.id, e.tenant_id, e.url, e.secret, e.description, e.status,
		       e.total_failed, e.last_failed_at, e.created_at, e.updated_at,
		       COALESCE(array_agg(s.event_type) FILTER (WHERE s.event_type IS NOT NULL), '{}')
		FROM webhooks.endpoints e
		LEFT JOIN webhooks.subscriptions s ON s.endpoint_id = e.id
		WHERE e.id = $1
		GROUP BY e.id`,
		endpointID,
	)

	var e Endpoint
	var lastFailed sql.NullTime
	err := row.Scan(&e.ID, &e.TenantID, &e.URL, &e.Secret, &e.Description, &e.Status,
		&e.TotalFailed, &lastFailed, &e.CreatedAt, &e.UpdatedAt, &e.EventTypes)
	if errors.Is(err, pgx.ErrNoRows) {
		return Endpoint{}, ErrNotFound
	}
	if err != nil {
		return Endpoint{}, fmt.Errorf("query endpoint: %w", err)
	}
	if lastFailed.Valid {
		e.LastFailedAt = &lastFailed.Time
	}
	return e, nil
}

func (s *PostgresStore) RecordFailure(ctx context.Context, endpointID string, at time.Time, disableAfter int) (int64, bool, error) {
	// Single-statement atomic update: the counter, timestamp and optional
	// status flip happen in one round trip.
	row := s.pool.QueryRow(ctx, `
		UPDATE webhooks.endpoints
		SET total_failed = total_failed + 1,
		    last_failed_at = $2,
		    updated_at = now(),
		    status = CASE WHEN $3 > 0 AND total_failed + 1 >= $3 THEN 'inactive' ELSE status END
		WHERE id = $1
		RETURNING total_failed, status`,
		endpointID, at, disableAfter,
	)

	var totalFailed int64
	var status string
	err := row.Scan(&totalFailed, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("record failure: %w", err)
	}

	// The counter only ever increments, so the transition happened on this
	// call exactly when the count sits on the threshold.
	disabled := disableAfter > 0 && status == StatusInactive && totalFailed == int64(disableAfter)
	return totalFailed, disabled, nil
}

func scanEndpoint(rows pgx.Rows) (Endpoint, error) {
	var e Endpoint
	var lastFailed sql.NullTime
	if err := rows.Scan(&e.ID, &e.TenantID, &e.URL, &e.Secret, &e.Description, &e.Status,
		&e.TotalFailed, &lastFailed, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Endpoint{}, fmt.Errorf("scan endpoint: %w", err)
	}
	if lastFailed.Valid {
		e.LastFailedAt = &lastFailed.Time
	}
	return e, nil
}
