package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgrammeSnapshot is the frozen copy of a programme's prescribed structure,
// captured once when the programme starts. Deviation analysis compares
// against this tree, never against the live (editable) plan, so the value
// must carry no reference back to mutable plan state.
type ProgrammeSnapshot struct {
	ProgrammeID uuid.UUID      `json:"programme_id"`
	Name        string         `json:"name"`
	CapturedAt  time.Time      `json:"captured_at"`
	Weeks       []SnapshotWeek `json:"weeks"`
}

// SnapshotWeek is one prescribed week.
type SnapshotWeek struct {
	Number   int               `json:"number"`
	Workouts []SnapshotWorkout `json:"workouts"`
}

// SnapshotWorkout is one prescribed training day within a week.
type SnapshotWorkout struct {
	Day       int                `json:"day"`
	Name      string             `json:"name,omitempty"`
	Exercises []SnapshotExercise `json:"exercises"`
}

// SnapshotExercise is one prescribed exercise slot. ExerciseID is nil when
// the plan authored the slot by name only; deviation matching falls back to
// position in that case. TargetWeights and TargetRPEs are optional and, when
// present, indexed per set.
type SnapshotExercise struct {
	ExerciseID    *uuid.UUID `json:"exercise_id,omitempty"`
	Name          string     `json:"name"`
	Sets          int        `json:"sets"`
	Reps          RepSpec    `json:"reps"`
	TargetWeights []float64  `json:"target_weights,omitempty"`
	TargetRPEs    []float64  `json:"target_rpes,omitempty"`
}

// Workout finds the prescribed workout for a (week, day) pair, or nil when
// the snapshot has no matching slot.
func (s *ProgrammeSnapshot) Workout(week, day int) *SnapshotWorkout {
	if s == nil {
		return nil
	}
	for i := range s.Weeks {
		if s.Weeks[i].Number != week {
			continue
		}
		for j := range s.Weeks[i].Workouts {
			if s.Weeks[i].Workouts[j].Day == day {
				return &s.Weeks[i].Workouts[j]
			}
		}
	}
	return nil
}
