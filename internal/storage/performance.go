package storage

import (
	"context"
	"fmt"

	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
)

// InsertPerformanceRecord appends one outcome row. The log is append-only;
// rows are never edited in place.
func (db *DB) InsertPerformanceRecord(ctx context.Context, rec models.PerformanceRecord) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO performance_records
		 (programme_id, exercise_id, workout_id, target_weight_kg, achieved_weight_kg,
		  target_sets, completed_sets, target_reps, achieved_reps, missed_reps,
		  success, avg_rpe, was_deload, recorded_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.ProgrammeID, rec.ExerciseID, rec.WorkoutID, rec.TargetWeight, rec.AchievedWeight,
		rec.TargetSets, rec.CompletedSets, rec.TargetReps, rec.AchievedReps, rec.MissedReps,
		rec.Success, rec.AvgRPE, rec.WasDeload, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("inserting performance record: %w", err)
	}
	return nil
}

// RecentPerformance returns up to limit records for an exercise within a
// programme, most recent first.
func (db *DB) RecentPerformance(ctx context.Context, programmeID, exerciseID uuid.UUID, limit int) ([]models.PerformanceRecord, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT programme_id, exercise_id, workout_id, target_weight_kg, achieved_weight_kg,
		        target_sets, completed_sets, target_reps, achieved_reps, missed_reps,
		        success, avg_rpe, was_deload, recorded_at
		 FROM performance_records
		 WHERE programme_id = $1 AND exercise_id = $2
		 ORDER BY recorded_at DESC
		 LIMIT $3`,
		programmeID, exerciseID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent performance: %w", err)
	}
	defer rows.Close()

	var result []models.PerformanceRecord
	for rows.Next() {
		var r models.PerformanceRecord
		if err := rows.Scan(&r.ProgrammeID, &r.ExerciseID, &r.WorkoutID, &r.TargetWeight, &r.AchievedWeight,
			&r.TargetSets, &r.CompletedSets, &r.TargetReps, &r.AchievedReps, &r.MissedReps,
			&r.Success, &r.AvgRPE, &r.WasDeload, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning performance record: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// consecutiveFailureScanLimit bounds how far back the failure streak scan
// looks; a streak longer than this has long since triggered a deload.
const consecutiveFailureScanLimit = 25

// ConsecutiveFailures counts the unbroken run of failed, non-deload sessions
// ending at the most recent record.
func (db *DB) ConsecutiveFailures(ctx context.Context, programmeID, exerciseID uuid.UUID) (int, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT success, was_deload
		 FROM performance_records
		 WHERE programme_id = $1 AND exercise_id = $2
		 ORDER BY recorded_at DESC
		 LIMIT $3`,
		programmeID, exerciseID, consecutiveFailureScanLimit)
	if err != nil {
		return 0, fmt.Errorf("querying failure streak: %w", err)
	}
	defer rows.Close()

	type outcome struct {
		success   bool
		wasDeload bool
	}
	var outcomes []outcome
	for rows.Next() {
		var o outcome
		if err := rows.Scan(&o.success, &o.wasDeload); err != nil {
			return 0, fmt.Errorf("scanning outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	count := 0
	for _, o := range outcomes {
		if o.success || o.wasDeload {
			break
		}
		count++
	}
	return count, nil
}
