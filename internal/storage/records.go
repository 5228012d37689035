package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CurrentRecord returns the standing personal record for an exercise and
// kind (the heaviest row), or nil when none exists.
func (db *DB) CurrentRecord(ctx context.Context, exerciseID uuid.UUID, kind models.RecordKind) (*models.PersonalRecord, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT exercise_id, workout_id, kind, weight_kg, reps, achieved_at,
		        prev_weight_kg, prev_reps, prev_date, improvement_pct, volume_kg, estimated_1rm_kg, note
		 FROM personal_records
		 WHERE exercise_id = $1 AND kind = $2
		 ORDER BY weight_kg DESC
		 LIMIT 1`,
		exerciseID, string(kind))

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying current record: %w", err)
	}
	return rec, nil
}

// UpsertWorkoutRecord persists a personal record, keeping at most one row
// per (exercise, kind, workout). A superseded same-workout row is deleted
// and the replacement inserted in a single transaction; partial application
// must never leave both or neither.
func (db *DB) UpsertWorkoutRecord(ctx context.Context, rec models.PersonalRecord) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM personal_records
			 WHERE exercise_id = $1 AND kind = $2 AND workout_id = $3 AND weight_kg < $4`,
			rec.ExerciseID, string(rec.Kind), rec.WorkoutID, rec.Weight); err != nil {
			return fmt.Errorf("deleting superseded record: %w", err)
		}

		var prevWeight *float64
		var prevReps *int
		var prevDate *time.Time
		if rec.Previous != nil {
			prevWeight = &rec.Previous.Weight
			prevReps = &rec.Previous.Reps
			prevDate = &rec.Previous.Date
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO personal_records
			 (exercise_id, workout_id, kind, weight_kg, reps, achieved_at,
			  prev_weight_kg, prev_reps, prev_date, improvement_pct, volume_kg, estimated_1rm_kg, note)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			rec.ExerciseID, rec.WorkoutID, string(rec.Kind), rec.Weight, rec.Reps, rec.Date,
			prevWeight, prevReps, prevDate, rec.ImprovementPct, rec.Volume, rec.Estimated1RM, rec.Note); err != nil {
			return fmt.Errorf("inserting record: %w", err)
		}
		return nil
	})
}

// RecordHistory returns all personal records for an exercise, newest first.
func (db *DB) RecordHistory(ctx context.Context, exerciseID uuid.UUID, limit int) ([]models.PersonalRecord, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT exercise_id, workout_id, kind, weight_kg, reps, achieved_at,
		        prev_weight_kg, prev_reps, prev_date, improvement_pct, volume_kg, estimated_1rm_kg, note
		 FROM personal_records
		 WHERE exercise_id = $1
		 ORDER BY achieved_at DESC
		 LIMIT $2`,
		exerciseID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying record history: %w", err)
	}
	defer rows.Close()

	var result []models.PersonalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

func scanRecord(row pgx.Row) (*models.PersonalRecord, error) {
	var rec models.PersonalRecord
	var kind string
	var prevWeight *float64
	var prevReps *int
	var prevDate *time.Time

	err := row.Scan(&rec.ExerciseID, &rec.WorkoutID, &kind, &rec.Weight, &rec.Reps, &rec.Date,
		&prevWeight, &prevReps, &prevDate, &rec.ImprovementPct, &rec.Volume, &rec.Estimated1RM, &rec.Note)
	if err != nil {
		return nil, err
	}
	rec.Kind = models.RecordKind(kind)

	if prevWeight != nil && prevReps != nil && prevDate != nil {
		rec.Previous = &models.PreviousRecord{
			Weight: *prevWeight,
			Reps:   *prevReps,
			Date:   *prevDate,
		}
	}
	return &rec, nil
}
