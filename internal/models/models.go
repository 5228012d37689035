package models

import (
	"time"

	"github.com/google/uuid"
)

// ScalingType selects which weight→1RM curve applies to an exercise.
type ScalingType string

const (
	// ScalingCompound covers barbell compounds (squat, bench, deadlift).
	ScalingCompound ScalingType = "compound"
	// ScalingWeightedBodyweight covers movements where external load is only
	// part of total resistance (weighted pull-ups, dips).
	ScalingWeightedBodyweight ScalingType = "weighted_bodyweight"
	// ScalingIsolation covers single-joint movements (curls, lateral raises).
	ScalingIsolation ScalingType = "isolation"
)

// CompletedSet is one logged set as recorded by the workout logger.
// The analytics core never mutates it.
type CompletedSet struct {
	WorkoutID          uuid.UUID `json:"workout_id"`
	ExerciseInstanceID uuid.UUID `json:"exercise_instance_id"`
	Weight             float64   `json:"weight_kg"`
	Reps               int       `json:"reps"`
	RPE                *float64  `json:"rpe,omitempty"`
	Completed          bool      `json:"completed"`
}

// Volume returns weight × reps for a set, 0 for non-positive inputs.
func (s CompletedSet) Volume() float64 {
	if s.Weight <= 0 || s.Reps <= 0 {
		return 0
	}
	return s.Weight * float64(s.Reps)
}

// EstimateSource tags how a max estimate was produced.
type EstimateSource string

const (
	EstimateSourceAuto   EstimateSource = "auto"
	EstimateSourceManual EstimateSource = "manual"
)

// ExerciseMaxEstimate is the tracked maximum for one exercise. BestWeight /
// BestReps / BestRPE record the heaviest set actually lifted, which can
// diverge from the formula-derived OneRM.
type ExerciseMaxEstimate struct {
	ExerciseID uuid.UUID      `json:"exercise_id"`
	BestWeight float64        `json:"best_weight_kg"`
	BestReps   int            `json:"best_reps"`
	BestRPE    *float64       `json:"best_rpe,omitempty"`
	OneRM      float64        `json:"one_rm_kg"`
	Confidence float64        `json:"confidence"`
	Context    string         `json:"context,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
	Source     EstimateSource `json:"source"`
}

// SuccessCriteria is an optional programme-defined contract for calling a
// logged exercise successful.
type SuccessCriteria struct {
	MinCompletedSets int      `json:"min_completed_sets" yaml:"min_completed_sets"`
	MaxMissedReps    int      `json:"max_missed_reps" yaml:"max_missed_reps"`
	MinRPE           *float64 `json:"min_rpe,omitempty" yaml:"min_rpe"`
	MaxRPE           *float64 `json:"max_rpe,omitempty" yaml:"max_rpe"`
}

// ProgressionConfig carries a programme's progression rules. Increment keys
// are matched case-insensitively against exercise names.
type ProgressionConfig struct {
	Increments            map[string]float64 `json:"increments" yaml:"increments"`
	DefaultIncrement      float64            `json:"default_increment" yaml:"default_increment"`
	DeloadTriggerFailures int                `json:"deload_trigger_failures" yaml:"deload_trigger_failures"`
	DeloadPercentage      float64            `json:"deload_percentage" yaml:"deload_percentage"`
	MinimumWeight         float64            `json:"minimum_weight" yaml:"minimum_weight"`
	SuccessCriteria       *SuccessCriteria   `json:"success_criteria,omitempty" yaml:"success_criteria"`
}

// PerformanceRecord is one append-only row per (programme, exercise, workout).
type PerformanceRecord struct {
	ProgrammeID    uuid.UUID `json:"programme_id"`
	ExerciseID     uuid.UUID `json:"exercise_id"`
	WorkoutID      uuid.UUID `json:"workout_id"`
	TargetWeight   float64   `json:"target_weight_kg"`
	AchievedWeight float64   `json:"achieved_weight_kg"`
	TargetSets     int       `json:"target_sets"`
	CompletedSets  int       `json:"completed_sets"`
	TargetReps     int       `json:"target_reps"`
	AchievedReps   int       `json:"achieved_reps"`
	MissedReps     int       `json:"missed_reps"`
	Success        bool      `json:"success"`
	AvgRPE         *float64  `json:"avg_rpe,omitempty"`
	WasDeload      bool      `json:"was_deload"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// ProgressionAction is the decision kind for the next session.
type ProgressionAction string

const (
	ActionProgress ProgressionAction = "PROGRESS"
	ActionMaintain ProgressionAction = "MAINTAIN"
	ActionDeload   ProgressionAction = "DELOAD"
)

// DeloadDetail captures why and how far a deload dropped the weight.
type DeloadDetail struct {
	PreviousWeight float64 `json:"previous_weight_kg"`
	Percentage     float64 `json:"percentage"`
	Floor          float64 `json:"floor_kg"`
}

// ProgressionDecision is the pure output of the next-weight state machine.
type ProgressionDecision struct {
	Weight   float64           `json:"weight_kg"`
	Action   ProgressionAction `json:"action"`
	Reason   string            `json:"reason"`
	IsDeload bool              `json:"is_deload"`
	Deload   *DeloadDetail     `json:"deload,omitempty"`
}

// DeviationKind labels one axis of prescribed-vs-actual difference.
type DeviationKind string

const (
	DeviationExerciseSkipped DeviationKind = "EXERCISE_SKIPPED"
	DeviationExerciseAdded   DeviationKind = "EXERCISE_ADDED"
	DeviationExerciseSwap    DeviationKind = "EXERCISE_SWAP"
	DeviationVolume          DeviationKind = "VOLUME_DEVIATION"
	DeviationIntensity       DeviationKind = "INTENSITY_DEVIATION"
	DeviationSetCount        DeviationKind = "SET_COUNT_DEVIATION"
	DeviationRep             DeviationKind = "REP_DEVIATION"
	DeviationRPE             DeviationKind = "RPE_DEVIATION"
)

// WorkoutDeviation is a write-once fact about one session. Magnitude is a
// signed fraction (+0.15 = 15% over plan).
type WorkoutDeviation struct {
	WorkoutID          uuid.UUID     `json:"workout_id"`
	ProgrammeID        uuid.UUID     `json:"programme_id"`
	ExerciseInstanceID *uuid.UUID    `json:"exercise_instance_id,omitempty"`
	Kind               DeviationKind `json:"kind"`
	Magnitude          float64       `json:"magnitude"`
	Note               string        `json:"note,omitempty"`
	RecordedAt         time.Time     `json:"recorded_at"`
}

// RecordKind labels what a personal record measures.
type RecordKind string

// RecordKindWeight is the only kind tracked today: heaviest weight ever
// lifted for the exercise, irrespective of reps.
const RecordKindWeight RecordKind = "WEIGHT"

// PreviousRecord links a new PR back to the record it superseded.
type PreviousRecord struct {
	Weight float64   `json:"weight_kg"`
	Reps   int       `json:"reps"`
	Date   time.Time `json:"date"`
}

// PersonalRecord is a materialized best for one exercise.
type PersonalRecord struct {
	ExerciseID     uuid.UUID       `json:"exercise_id"`
	WorkoutID      uuid.UUID       `json:"workout_id"`
	Kind           RecordKind      `json:"kind"`
	Weight         float64         `json:"weight_kg"`
	Reps           int             `json:"reps"`
	Date           time.Time       `json:"date"`
	Previous       *PreviousRecord `json:"previous,omitempty"`
	ImprovementPct float64         `json:"improvement_pct"`
	Volume         float64         `json:"volume_kg"`
	Estimated1RM   float64         `json:"estimated_1rm_kg"`
	Note           string          `json:"note,omitempty"`
}

// ExerciseLog is everything actually logged for one exercise slot in a
// finished workout, as handed to the deviation and progression services.
type ExerciseLog struct {
	ExerciseInstanceID uuid.UUID      `json:"exercise_instance_id"`
	ExerciseID         *uuid.UUID     `json:"exercise_id,omitempty"`
	Name               string         `json:"name"`
	Substituted        bool           `json:"substituted"`
	Sets               []CompletedSet `json:"sets"`
}

// CompletedSets counts the sets flagged complete.
func (l ExerciseLog) CompletedSets() []CompletedSet {
	out := make([]CompletedSet, 0, len(l.Sets))
	for _, s := range l.Sets {
		if s.Completed {
			out = append(out, s)
		}
	}
	return out
}
