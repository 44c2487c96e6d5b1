package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/domain/audit"
)

// CompressionAlgo names how sys_audit.changes_compressed is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// defaultCompressThreshold is the payload size above which changes are zstd'd.
const defaultCompressThreshold = 8 * 1024

// AuditRow is a row of sys_audit with the changes decoded.
type AuditRow struct {
	ID         id.ID           `db:"id" json:"id"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   id.ID           `db:"entity_id" json:"entityId"`
	Action     audit.Action    `db:"action" json:"action"`
	UserID     string          `db:"user_id" json:"userId"`
	Changes    json.RawMessage `db:"changes" json:"changes"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// AuditRecorder implements audit.Recorder on sys_audit.
type AuditRecorder struct {
	txManager *TxManager
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

var _ audit.Recorder = (*AuditRecorder)(nil)

// NewAuditRecorder creates a recorder.
func NewAuditRecorder(txManager *TxManager) (*AuditRecorder, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditRecorder{
		txManager: txManager,
		encoder:   encoder,
		decoder:   decoder,
		threshold: defaultCompressThreshold,
	}, nil
}

// encode returns the plain or compressed form of changes.
func (r *AuditRecorder) encode(changes map[string]any) (plain, compressed []byte, algo CompressionAlgo, err error) {
	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, nil, "", fmt.Errorf("marshal audit changes: %w", err)
	}
	if len(raw) <= r.threshold {
		return raw, nil, CompressionNone, nil
	}
	return nil, r.encoder.EncodeAll(raw, nil), CompressionZstd, nil
}

func (r *AuditRecorder) decode(plain, compressed []byte, algo CompressionAlgo) (json.RawMessage, error) {
	if algo != CompressionZstd {
		return plain, nil
	}
	out, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress audit changes: %w", err)
	}
	return out, nil
}

// Record writes entry in the caller's transaction.
func (r *AuditRecorder) Record(ctx context.Context, entry audit.Entry) error {
	plain, compressed, algo, err := r.encode(entry.Changes)
	if err != nil {
		return err
	}
	_, err = r.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (id, entity_type, entity_id, action, user_id,
		                       changes, changes_compressed, compression_algo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id.New(), entry.EntityType, entry.EntityID, entry.Action, entry.UserID,
		plain, compressed, algo, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the newest entries for an entity.
func (r *AuditRecorder) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditRow, error) {
	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, action, user_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var (
			row        AuditRow
			plain      []byte
			compressed []byte
			algo       CompressionAlgo
		)
		if err := rows.Scan(&row.ID, &row.EntityType, &row.EntityID, &row.Action, &row.UserID,
			&plain, &compressed, &algo, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if row.Changes, err = r.decode(plain, compressed, algo); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
