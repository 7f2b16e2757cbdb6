package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/golang/snappy"
)

// encodeCheckpoint serializes checkpoint data as snappy-compressed JSON.
func encodeCheckpoint(data model.CheckpointData) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding checkpoint: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

func decodeCheckpoint(blob []byte) (model.CheckpointData, error) {
	var data model.CheckpointData
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return data, fmt.Errorf("decompressing checkpoint: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("decoding checkpoint: %w", err)
	}
	return data, nil
}

// CreateCheckpoint stores the snapshot for a transition. A transition has
// exactly one checkpoint.
func CreateCheckpoint(ctx context.Context, q DBTX, transitionID int64, data model.CheckpointData) (*model.Checkpoint, error) {
	blob, err := encodeCheckpoint(data)
	if err != nil {
		return nil, err
	}
	ts := now()

	result, err := q.ExecContext(ctx,
		`INSERT INTO sale_checkpoints (transition_id, checkpoint_data, created_at) VALUES (?, ?, ?)`,
		transitionID, blob, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating checkpoint: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting checkpoint id: %w", err)
	}

	return &model.Checkpoint{ID: id, TransitionID: transitionID, Data: data, CreatedAt: ts}, nil
}

// GetCheckpoint returns the checkpoint of a transition.
func GetCheckpoint(ctx context.Context, q DBTX, transitionID int64) (*model.Checkpoint, error) {
	cp := &model.Checkpoint{}
	var blob []byte
	err := q.QueryRowContext(ctx,
		`SELECT id, transition_id, checkpoint_data, used, used_at, created_at
		 FROM sale_checkpoints WHERE transition_id = ?`, transitionID,
	).Scan(&cp.ID, &cp.TransitionID, &blob, &cp.Used, &cp.UsedAt, &cp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting checkpoint: %w", err)
	}

	cp.Data, err = decodeCheckpoint(blob)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %d: %w", cp.ID, err)
	}
	return cp, nil
}

// MarkCheckpointUsed consumes a checkpoint. The returned flag is false when
// it had already been used.
func MarkCheckpointUsed(ctx context.Context, q DBTX, id int64, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE sale_checkpoints SET used = 1, used_at = ? WHERE id = ? AND used = 0`,
		at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("marking checkpoint used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking checkpoint update: %w", err)
	}
	return n > 0, nil
}
