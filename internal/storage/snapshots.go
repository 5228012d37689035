package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveSnapshot captures a programme's frozen structure. A snapshot is
// written once when the programme starts; a second capture for the same
// programme is a no-op so later edits to the live plan can never leak in.
// Returns true if the snapshot was stored.
func (db *DB) SaveSnapshot(ctx context.Context, snap models.ProgrammeSnapshot) (bool, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("encoding snapshot: %w", err)
	}

	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO programme_snapshots (programme_id, captured_at, body)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (programme_id) DO NOTHING`,
		snap.ProgrammeID, snap.CapturedAt, body)
	if err != nil {
		return false, fmt.Errorf("inserting snapshot: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Snapshot returns the frozen structure for a programme, or nil when the
// programme was never started or its snapshot was cancelled.
func (db *DB) Snapshot(ctx context.Context, programmeID uuid.UUID) (*models.ProgrammeSnapshot, error) {
	var body []byte
	err := db.Pool.QueryRow(ctx,
		`SELECT body FROM programme_snapshots
		 WHERE programme_id = $1 AND NOT cancelled`,
		programmeID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	var snap models.ProgrammeSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}

// CancelSnapshot marks a programme run as cancelled; deviation analysis
// treats the programme as snapshotless from then on.
func (db *DB) CancelSnapshot(ctx context.Context, programmeID uuid.UUID) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE programme_snapshots SET cancelled = true WHERE programme_id = $1`,
		programmeID)
	if err != nil {
		return fmt.Errorf("cancelling snapshot: %w", err)
	}
	return nil
}
