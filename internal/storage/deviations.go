package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
)

// InsertDeviations batch-inserts write-once deviation facts for one workout.
// Returns count inserted.
func (db *DB) InsertDeviations(ctx context.Context, rows []models.WorkoutDeviation) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `INSERT INTO workout_deviations
		(workout_id, programme_id, exercise_instance_id, kind, magnitude, note, recorded_at) VALUES `
	args := make([]any, 0, len(rows)*7)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * 7
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args, r.WorkoutID, r.ProgrammeID, r.ExerciseInstanceID,
			string(r.Kind), r.Magnitude, r.Note, r.RecordedAt)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting deviations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// WorkoutDeviations returns the deviations recorded for one workout.
func (db *DB) WorkoutDeviations(ctx context.Context, workoutID uuid.UUID) ([]models.WorkoutDeviation, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT workout_id, programme_id, exercise_instance_id, kind, magnitude, note, recorded_at
		 FROM workout_deviations
		 WHERE workout_id = $1
		 ORDER BY recorded_at ASC, kind ASC`,
		workoutID)
	if err != nil {
		return nil, fmt.Errorf("querying workout deviations: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutDeviation
	for rows.Next() {
		var d models.WorkoutDeviation
		var kind string
		if err := rows.Scan(&d.WorkoutID, &d.ProgrammeID, &d.ExerciseInstanceID,
			&kind, &d.Magnitude, &d.Note, &d.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning deviation: %w", err)
		}
		d.Kind = models.DeviationKind(kind)
		result = append(result, d)
	}
	return result, rows.Err()
}

// ProgrammeDeviations returns deviations across a programme run, newest first.
func (db *DB) ProgrammeDeviations(ctx context.Context, programmeID uuid.UUID, limit int) ([]models.WorkoutDeviation, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT workout_id, programme_id, exercise_instance_id, kind, magnitude, note, recorded_at
		 FROM workout_deviations
		 WHERE programme_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT $2`,
		programmeID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying programme deviations: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutDeviation
	for rows.Next() {
		var d models.WorkoutDeviation
		var kind string
		if err := rows.Scan(&d.WorkoutID, &d.ProgrammeID, &d.ExerciseInstanceID,
			&kind, &d.Magnitude, &d.Note, &d.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning deviation: %w", err)
		}
		d.Kind = models.DeviationKind(kind)
		result = append(result, d)
	}
	return result, rows.Err()
}
