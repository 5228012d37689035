package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
)

const (
	// weightStep is the plate increment all prescriptions round to.
	weightStep = 2.5
	// firstWorkoutMaxFraction seeds a first prescription at half the known 1RM.
	firstWorkoutMaxFraction = 0.5
	// firstWorkoutFloor is the lowest first-workout prescription when a 1RM
	// is known.
	firstWorkoutFloor = 20.0
	// historyWindow is how many recent records the state machine considers.
	historyWindow = 5
	// freeFormSuccessRatio is the completed-set ratio that counts as success
	// for workouts with no rep targets.
	freeFormSuccessRatio = 0.8
)

// PerformanceReader is the slice of the store the progression service reads.
type PerformanceReader interface {
	// RecentPerformance returns up to limit records, most recent first.
	RecentPerformance(ctx context.Context, programmeID, exerciseID uuid.UUID, limit int) ([]models.PerformanceRecord, error)
	// ConsecutiveFailures counts the unbroken run of failed sessions ending
	// at the most recent record.
	ConsecutiveFailures(ctx context.Context, programmeID, exerciseID uuid.UUID) (int, error)
}

// ProgressionService decides the next prescribed weight for an exercise and
// records workout outcomes against targets.
type ProgressionService struct {
	perf  PerformanceReader
	maxes MaxReader
	log   *slog.Logger
}

// NewProgressionService creates a ProgressionService.
func NewProgressionService(perf PerformanceReader, maxes MaxReader, log *slog.Logger) *ProgressionService {
	return &ProgressionService{perf: perf, maxes: maxes, log: log}
}

// DecideNextWeight fetches the exercise's recent history and runs the
// progression state machine over it.
func (s *ProgressionService) DecideNextWeight(ctx context.Context, programmeID, exerciseID uuid.UUID, exerciseName string, cfg models.ProgressionConfig) (models.ProgressionDecision, error) {
	history, err := s.perf.RecentPerformance(ctx, programmeID, exerciseID, historyWindow)
	if err != nil {
		return models.ProgressionDecision{}, fmt.Errorf("fetching performance history: %w", err)
	}

	failures, err := s.perf.ConsecutiveFailures(ctx, programmeID, exerciseID)
	if err != nil {
		return models.ProgressionDecision{}, fmt.Errorf("fetching failure count: %w", err)
	}

	var currentMax *float64
	if est, err := s.maxes.CurrentEstimate(ctx, exerciseID); err != nil {
		return models.ProgressionDecision{}, fmt.Errorf("fetching current estimate: %w", err)
	} else if est != nil {
		currentMax = &est.OneRM
	}

	decision := Decide(cfg, exerciseName, history, failures, currentMax)
	s.log.Info("progression decided",
		"exercise", exerciseName,
		"action", decision.Action,
		"weight", decision.Weight,
	)
	return decision, nil
}

// Decide is the pure progression state machine, evaluated fresh each call
// from the most-recent-first history window.
func Decide(cfg models.ProgressionConfig, exerciseName string, history []models.PerformanceRecord, consecutiveFailures int, currentMax *float64) models.ProgressionDecision {
	if len(history) == 0 {
		return firstWorkoutDecision(cfg, currentMax)
	}

	last := history[0]

	if cfg.DeloadTriggerFailures > 0 && consecutiveFailures >= cfg.DeloadTriggerFailures {
		return deloadDecision(cfg, last, consecutiveFailures)
	}

	if last.WasDeload {
		return recoveryDecision(cfg, exerciseName, history)
	}

	if last.Success {
		inc := incrementFor(cfg, exerciseName)
		return models.ProgressionDecision{
			Weight: last.AchievedWeight + inc,
			Action: models.ActionProgress,
			Reason: fmt.Sprintf("last session succeeded at %.1fkg, adding %.1fkg", last.AchievedWeight, inc),
		}
	}

	return models.ProgressionDecision{
		Weight: last.TargetWeight,
		Action: models.ActionMaintain,
		Reason: fmt.Sprintf("last session missed targets, repeating %.1fkg", last.TargetWeight),
	}
}

func firstWorkoutDecision(cfg models.ProgressionConfig, currentMax *float64) models.ProgressionDecision {
	weight := cfg.MinimumWeight
	reason := "first workout, starting at default weight"
	if currentMax != nil && *currentMax > 0 {
		weight = roundDownToStep(*currentMax * firstWorkoutMaxFraction)
		if weight < firstWorkoutFloor {
			weight = firstWorkoutFloor
		}
		reason = "first workout, starting at 50% of estimated 1RM"
	}
	return models.ProgressionDecision{
		Weight: weight,
		Action: models.ActionProgress,
		Reason: reason,
	}
}

func deloadDecision(cfg models.ProgressionConfig, last models.PerformanceRecord, failures int) models.ProgressionDecision {
	weight := last.TargetWeight * cfg.DeloadPercentage
	if weight < cfg.MinimumWeight {
		weight = cfg.MinimumWeight
	}
	weight = roundToStep(weight)
	return models.ProgressionDecision{
		Weight:   weight,
		Action:   models.ActionDeload,
		Reason:   fmt.Sprintf("%d consecutive failed sessions, deloading to %.0f%%", failures, cfg.DeloadPercentage*100),
		IsDeload: true,
		Deload: &models.DeloadDetail{
			PreviousWeight: last.TargetWeight,
			Percentage:     cfg.DeloadPercentage,
			Floor:          cfg.MinimumWeight,
		},
	}
}

// recoveryDecision climbs back from a deload by one increment per session,
// never overshooting the weight that triggered the deload.
func recoveryDecision(cfg models.ProgressionConfig, exerciseName string, history []models.PerformanceRecord) models.ProgressionDecision {
	last := history[0]
	weight := last.AchievedWeight + incrementFor(cfg, exerciseName)

	// The pre-deload weight is the most recent non-deload record in the
	// window, if any.
	for _, rec := range history[1:] {
		if !rec.WasDeload {
			if weight > rec.TargetWeight {
				weight = rec.TargetWeight
			}
			break
		}
	}

	return models.ProgressionDecision{
		Weight: weight,
		Action: models.ActionProgress,
		Reason: fmt.Sprintf("recovering from deload at %.1fkg", last.AchievedWeight),
	}
}

// incrementFor looks up the per-exercise increment case-insensitively,
// falling back to the configured default.
func incrementFor(cfg models.ProgressionConfig, exerciseName string) float64 {
	key := strings.ToLower(strings.TrimSpace(exerciseName))
	for name, inc := range cfg.Increments {
		if strings.ToLower(strings.TrimSpace(name)) == key {
			return inc
		}
	}
	return cfg.DefaultIncrement
}

// roundToStep rounds to the nearest 2.5 unit by truncating the midpoint
// computation toward zero. This exact behavior is load-bearing for
// reproducible prescriptions; do not swap in banker's rounding.
func roundToStep(w float64) float64 {
	return math.Trunc(w/weightStep+0.5) * weightStep
}

// roundDownToStep rounds down to the nearest 2.5 unit.
func roundDownToStep(w float64) float64 {
	return math.Floor(w/weightStep) * weightStep
}

// RecordOutcome derives a PerformanceRecord from the sets logged against a
// prescribed exercise. targetSets/targetReps come from the plan; targetReps
// is the per-session total (0 when the workout is free-form).
func RecordOutcome(programmeID, exerciseID, workoutID uuid.UUID, cfg models.ProgressionConfig, targetWeight float64, targetSets, targetReps int, wasDeload bool, sets []models.CompletedSet, now time.Time) models.PerformanceRecord {
	rec := models.PerformanceRecord{
		ProgrammeID:  programmeID,
		ExerciseID:   exerciseID,
		WorkoutID:    workoutID,
		TargetWeight: targetWeight,
		TargetSets:   targetSets,
		TargetReps:   targetReps,
		WasDeload:    wasDeload,
		RecordedAt:   now,
	}

	var rpeSum float64
	var rpeCount int
	for _, set := range sets {
		if !set.Completed {
			continue
		}
		rec.CompletedSets++
		rec.AchievedReps += set.Reps
		if set.Weight > rec.AchievedWeight {
			rec.AchievedWeight = set.Weight
		}
		if set.RPE != nil {
			rpeSum += *set.RPE
			rpeCount++
		}
	}
	if rpeCount > 0 {
		avg := rpeSum / float64(rpeCount)
		rec.AvgRPE = &avg
	}
	if targetReps > rec.AchievedReps {
		rec.MissedReps = targetReps - rec.AchievedReps
	}

	rec.Success = outcomeSuccess(cfg, rec, len(sets))
	return rec
}

// outcomeSuccess applies the three-tier success policy: explicit programme
// criteria, then strict adherence when rep targets exist, then a
// completed-set ratio for free-form workouts.
func outcomeSuccess(cfg models.ProgressionConfig, rec models.PerformanceRecord, totalSets int) bool {
	if c := cfg.SuccessCriteria; c != nil {
		if rec.CompletedSets < c.MinCompletedSets {
			return false
		}
		if rec.MissedReps > c.MaxMissedReps {
			return false
		}
		if c.MinRPE != nil || c.MaxRPE != nil {
			if rec.AvgRPE == nil {
				return false
			}
			if c.MinRPE != nil && *rec.AvgRPE < *c.MinRPE {
				return false
			}
			if c.MaxRPE != nil && *rec.AvgRPE > *c.MaxRPE {
				return false
			}
		}
		return true
	}

	if rec.TargetReps > 0 {
		return rec.CompletedSets == rec.TargetSets && rec.MissedReps == 0
	}

	if totalSets == 0 {
		return false
	}
	return float64(rec.CompletedSets)/float64(totalSets) >= freeFormSuccessRatio
}
