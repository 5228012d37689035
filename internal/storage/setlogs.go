package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
)

// SetLogRow is one raw completed-set row as stored.
type SetLogRow struct {
	WorkoutID          uuid.UUID `json:"workout_id"`
	ExerciseInstanceID uuid.UUID `json:"exercise_instance_id"`
	ExerciseID         uuid.UUID `json:"exercise_id"`
	ExerciseName       string    `json:"exercise_name"`
	SetNumber          int       `json:"set_number"`
	Weight             float64   `json:"weight_kg"`
	Reps               int       `json:"reps"`
	RPE                *float64  `json:"rpe,omitempty"`
	Completed          bool      `json:"completed"`
	LoggedAt           time.Time `json:"logged_at"`
}

// InsertSetLogs batch-inserts completed-set rows. Returns count inserted.
func (db *DB) InsertSetLogs(ctx context.Context, rows []SetLogRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `INSERT INTO set_logs
		(workout_id, exercise_instance_id, exercise_id, exercise_name, set_number,
		 weight_kg, reps, rpe, completed, logged_at) VALUES `
	args := make([]any, 0, len(rows)*10)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * 10
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args, r.WorkoutID, r.ExerciseInstanceID, r.ExerciseID, r.ExerciseName,
			r.SetNumber, r.Weight, r.Reps, r.RPE, r.Completed, r.LoggedAt)
	}

	query += strings.Join(valueStrings, ",") + " ON CONFLICT DO NOTHING"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting set logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// QuerySetLogs retrieves set rows for an exercise in a date range, newest
// session first.
func (db *DB) QuerySetLogs(ctx context.Context, exerciseID uuid.UUID, start, end time.Time) ([]SetLogRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT workout_id, exercise_instance_id, exercise_id, exercise_name, set_number,
		        weight_kg, reps, rpe, completed, logged_at
		 FROM set_logs
		 WHERE exercise_id = $1 AND logged_at >= $2 AND logged_at < $3
		 ORDER BY logged_at DESC, set_number ASC`,
		exerciseID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying set logs: %w", err)
	}
	defer rows.Close()

	var result []SetLogRow
	for rows.Next() {
		var r SetLogRow
		if err := rows.Scan(&r.WorkoutID, &r.ExerciseInstanceID, &r.ExerciseID, &r.ExerciseName,
			&r.SetNumber, &r.Weight, &r.Reps, &r.RPE, &r.Completed, &r.LoggedAt); err != nil {
			return nil, fmt.Errorf("scanning set log: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ToCompletedSet converts a stored row to the analytics input value.
func (r SetLogRow) ToCompletedSet() models.CompletedSet {
	return models.CompletedSet{
		WorkoutID:          r.WorkoutID,
		ExerciseInstanceID: r.ExerciseInstanceID,
		Weight:             r.Weight,
		Reps:               r.Reps,
		RPE:                r.RPE,
		Completed:          r.Completed,
	}
}
