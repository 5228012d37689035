package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/claude/repmax/internal/models"
	"github.com/claude/repmax/internal/storage"
	"github.com/google/uuid"
)

// parsedSet pairs a stored set row with the scaling curve the export declared
// for it, so replay can feed the right formula.
type parsedSet struct {
	Row     storage.SetLogRow
	Scaling models.ScalingType
}

// columns a set export must carry, in any order. The scaling column is
// optional and defaults to compound.
var requiredColumns = []string{
	"workout_id", "exercise_instance_id", "exercise_id", "exercise_name",
	"set_number", "weight_kg", "reps", "rpe", "completed", "logged_at",
}

// ParseSetLogCSV reads one set-log export. The first line must be a header
// naming the columns. Rows that fail to parse abort the whole file so a
// partial import never marks the file done.
func ParseSetLogCSV(r io.Reader) ([]parsedSet, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var out []parsedSet
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		set, err := parseRecord(record, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, set)
	}
	return out, nil
}

func parseRecord(record []string, idx map[string]int) (parsedSet, error) {
	field := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	workoutID, err := uuid.Parse(field("workout_id"))
	if err != nil {
		return parsedSet{}, fmt.Errorf("workout_id: %w", err)
	}
	instanceID, err := uuid.Parse(field("exercise_instance_id"))
	if err != nil {
		return parsedSet{}, fmt.Errorf("exercise_instance_id: %w", err)
	}
	exerciseID, err := uuid.Parse(field("exercise_id"))
	if err != nil {
		return parsedSet{}, fmt.Errorf("exercise_id: %w", err)
	}

	setNumber, err := strconv.Atoi(field("set_number"))
	if err != nil {
		return parsedSet{}, fmt.Errorf("set_number: %w", err)
	}
	weight, err := strconv.ParseFloat(field("weight_kg"), 64)
	if err != nil {
		return parsedSet{}, fmt.Errorf("weight_kg: %w", err)
	}
	reps, err := strconv.Atoi(field("reps"))
	if err != nil {
		return parsedSet{}, fmt.Errorf("reps: %w", err)
	}

	var rpePtr *float64
	if raw := field("rpe"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return parsedSet{}, fmt.Errorf("rpe: %w", err)
		}
		rpePtr = &v
	}

	completed, err := parseBool(field("completed"))
	if err != nil {
		return parsedSet{}, fmt.Errorf("completed: %w", err)
	}

	loggedAt, err := parseTimestamp(field("logged_at"))
	if err != nil {
		return parsedSet{}, fmt.Errorf("logged_at: %w", err)
	}

	scaling := models.ScalingCompound
	if raw := field("scaling"); raw != "" {
		switch models.ScalingType(raw) {
		case models.ScalingCompound, models.ScalingWeightedBodyweight, models.ScalingIsolation:
			scaling = models.ScalingType(raw)
		default:
			return parsedSet{}, fmt.Errorf("scaling: unknown value %q", raw)
		}
	}

	return parsedSet{
		Row: storage.SetLogRow{
			WorkoutID:          workoutID,
			ExerciseInstanceID: instanceID,
			ExerciseID:         exerciseID,
			ExerciseName:       field("exercise_name"),
			SetNumber:          setNumber,
			Weight:             weight,
			Reps:               reps,
			RPE:                rpePtr,
			Completed:          completed,
			LoggedAt:           loggedAt,
		},
		Scaling: scaling,
	}, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("unknown boolean %q", s)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02 15:04:05", s)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
