package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/idempotency"
)

// staleAfter reclaims a pending key whose request likely crashed.
const staleAfter = time.Minute

// IdempotencyStore implements idempotency.Store on sys_idempotency.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store keeping keys for ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

func (s *IdempotencyStore) Acquire(ctx context.Context, claim idempotency.Claim) (*idempotency.Replay, error) {
	now := time.Now().UTC()
	db := s.txManager.GetQuerier(ctx)

	// an expired key is free again
	if _, err := db.Exec(ctx, `DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND expires_at < $2`,
		claim.Key, now); err != nil {
		return nil, fmt.Errorf("expire idempotency key: %w", err)
	}

	tag, err := db.Exec(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, user_id, operation, request_hash, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, $5, $6)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		claim.Key, claim.UserID, claim.Operation, claim.RequestHash, now, now.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	var (
		stored      idempotency.Claim
		status      string
		updatedAt   time.Time
		statusCode  *int
		contentType *string
		body        []byte
	)
	err = db.QueryRow(ctx, `
		SELECT idempotency_key, user_id, operation, request_hash, status, updated_at,
		       response_status, response_content_type, response
		FROM sys_idempotency WHERE idempotency_key = $1`, claim.Key).
		Scan(&stored.Key, &stored.UserID, &stored.Operation, &stored.RequestHash, &status, &updatedAt,
			&statusCode, &contentType, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		// released between the insert and the read
		return s.Acquire(ctx, claim)
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}

	if stored != claim {
		return nil, apperror.NewIdempotencyMismatch(claim.Key)
	}
	if status == "pending" {
		if now.Sub(updatedAt) > staleAfter {
			if _, err := db.Exec(ctx, `UPDATE sys_idempotency SET updated_at = $1 WHERE idempotency_key = $2`,
				now, claim.Key); err != nil {
				return nil, fmt.Errorf("reclaim idempotency key: %w", err)
			}
			return nil, nil
		}
		return nil, apperror.NewIdempotencyInProgress(claim.Key)
	}

	replay := &idempotency.Replay{StatusCode: 200, ContentType: "application/json", Body: body}
	if statusCode != nil {
		replay.StatusCode = *statusCode
	}
	if contentType != nil && *contentType != "" {
		replay.ContentType = *contentType
	}
	return replay, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp idempotency.Replay) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = 'done', response_status = $1, response_content_type = $2, response = $3, updated_at = $4
		WHERE idempotency_key = $5`,
		resp.StatusCode, resp.ContentType, resp.Body, time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE idempotency_key = $1`, key); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired deletes expired keys.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
