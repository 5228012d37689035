package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
)

// RecordReader is the slice of the store the PR service reads.
type RecordReader interface {
	// CurrentRecord returns the standing weight record for an exercise, or
	// nil when none exists.
	CurrentRecord(ctx context.Context, exerciseID uuid.UUID, kind models.RecordKind) (*models.PersonalRecord, error)
}

// PRService detects new personal records from completed sets.
type PRService struct {
	records RecordReader
	log     *slog.Logger
}

// NewPRService creates a PRService.
func NewPRService(records RecordReader, log *slog.Logger) *PRService {
	return &PRService{records: records, log: log}
}

// CheckForPR returns the personal records a completed set establishes, or an
// empty slice when it sets none. Only the weight kind is tracked: the
// heaviest weight ever lifted for the exercise, irrespective of reps. The
// caller persists results; within one workout the store keeps only the
// higher of two records for the same exercise (delete-then-insert).
func (s *PRService) CheckForPR(ctx context.Context, set models.CompletedSet, exerciseID uuid.UUID) ([]models.PersonalRecord, error) {
	if !set.Completed || set.Weight <= 0 || set.Reps <= 0 {
		return nil, nil
	}

	current, err := s.records.CurrentRecord(ctx, exerciseID, models.RecordKindWeight)
	if err != nil {
		return nil, fmt.Errorf("fetching current record: %w", err)
	}

	rec, ok := BuildWeightRecord(set, exerciseID, current, time.Now().UTC())
	if !ok {
		return nil, nil
	}

	s.log.Info("personal record",
		"exercise_id", exerciseID,
		"weight", rec.Weight,
		"improvement_pct", rec.ImprovementPct,
	)
	return []models.PersonalRecord{rec}, nil
}

// BuildWeightRecord materializes a weight PR for the set, linking back to
// the record it supersedes. ok is false when the set does not beat the
// standing record. A first-ever record reports a 100% improvement.
func BuildWeightRecord(set models.CompletedSet, exerciseID uuid.UUID, current *models.PersonalRecord, now time.Time) (models.PersonalRecord, bool) {
	rec := models.PersonalRecord{
		ExerciseID:   exerciseID,
		WorkoutID:    set.WorkoutID,
		Kind:         models.RecordKindWeight,
		Weight:       set.Weight,
		Reps:         set.Reps,
		Date:         now,
		Volume:       set.Volume(),
		Estimated1RM: recordOneRM(set),
	}

	if current == nil {
		rec.ImprovementPct = 100
		return rec, true
	}
	if set.Weight <= current.Weight {
		return models.PersonalRecord{}, false
	}

	rec.ImprovementPct = (set.Weight - current.Weight) / current.Weight * 100
	rec.Previous = &models.PreviousRecord{
		Weight: current.Weight,
		Reps:   current.Reps,
		Date:   current.Date,
	}
	return rec, true
}

// recordOneRM derives the record's 1RM on the RPE-aware Brzycki path.
// Effective rep capacities beyond the formula's reliable ceiling fall back
// to the literal weight.
func recordOneRM(set models.CompletedSet) float64 {
	capacity := totalRepCapacity(set.Reps, set.RPE)
	if capacity > maxEstimableReps {
		return set.Weight
	}
	if est, ok := EstimateOneRM(set.Weight, set.Reps, set.RPE, models.ScalingCompound); ok {
		return est
	}
	return set.Weight
}
