package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CurrentEstimate returns the current max estimate for an exercise, or nil
// when none has been recorded.
func (db *DB) CurrentEstimate(ctx context.Context, exerciseID uuid.UUID) (*models.ExerciseMaxEstimate, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT exercise_id, best_weight_kg, best_reps, best_rpe, one_rm_kg, confidence, context, recorded_at, source
		 FROM exercise_max_estimates
		 WHERE exercise_id = $1 AND is_current
		 LIMIT 1`,
		exerciseID)

	var e models.ExerciseMaxEstimate
	err := row.Scan(&e.ExerciseID, &e.BestWeight, &e.BestReps, &e.BestRPE,
		&e.OneRM, &e.Confidence, &e.Context, &e.RecordedAt, &e.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying current estimate: %w", err)
	}
	return &e, nil
}

// SaveEstimate replaces the current estimate for an exercise. The superseded
// row is kept as history with is_current cleared; both statements run in one
// transaction.
func (db *DB) SaveEstimate(ctx context.Context, est models.ExerciseMaxEstimate) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE exercise_max_estimates SET is_current = false
			 WHERE exercise_id = $1 AND is_current`,
			est.ExerciseID); err != nil {
			return fmt.Errorf("retiring previous estimate: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO exercise_max_estimates
			 (exercise_id, best_weight_kg, best_reps, best_rpe, one_rm_kg, confidence, context, recorded_at, source, is_current)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,true)`,
			est.ExerciseID, est.BestWeight, est.BestReps, est.BestRPE,
			est.OneRM, est.Confidence, est.Context, est.RecordedAt, est.Source); err != nil {
			return fmt.Errorf("inserting estimate: %w", err)
		}
		return nil
	})
}

// EstimateHistory returns all estimates for an exercise, most recent first.
func (db *DB) EstimateHistory(ctx context.Context, exerciseID uuid.UUID, limit int) ([]models.ExerciseMaxEstimate, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT exercise_id, best_weight_kg, best_reps, best_rpe, one_rm_kg, confidence, context, recorded_at, source
		 FROM exercise_max_estimates
		 WHERE exercise_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT $2`,
		exerciseID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying estimate history: %w", err)
	}
	defer rows.Close()

	var result []models.ExerciseMaxEstimate
	for rows.Next() {
		var e models.ExerciseMaxEstimate
		if err := rows.Scan(&e.ExerciseID, &e.BestWeight, &e.BestReps, &e.BestRPE,
			&e.OneRM, &e.Confidence, &e.Context, &e.RecordedAt, &e.Source); err != nil {
			return nil, fmt.Errorf("scanning estimate: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
