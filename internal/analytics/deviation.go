package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
)

// deviationThreshold suppresses noise from rounding and minor daily
// variance: an axis only produces a record when |magnitude| exceeds 10%.
const deviationThreshold = 0.10

// SnapshotReader is the slice of the programme collaborator the deviation
// service reads.
type SnapshotReader interface {
	// Snapshot returns the frozen programme structure, or nil when the
	// programme has no snapshot (never started, or cancelled).
	Snapshot(ctx context.Context, programmeID uuid.UUID) (*models.ProgrammeSnapshot, error)
}

// DeviationService compares logged workouts against the programme snapshot
// they were prescribed from.
type DeviationService struct {
	snapshots SnapshotReader
	log       *slog.Logger
}

// NewDeviationService creates a DeviationService.
func NewDeviationService(snapshots SnapshotReader, log *slog.Logger) *DeviationService {
	return &DeviationService{snapshots: snapshots, log: log}
}

// ComputeWorkoutDeviations resolves the prescribed workout for (week, day)
// from the programme's frozen snapshot and compares the actual logs against
// it. Analysis is advisory: a missing snapshot, week, or day yields an empty
// result, never an error. Errors are reserved for store failures.
func (s *DeviationService) ComputeWorkoutDeviations(ctx context.Context, programmeID, workoutID uuid.UUID, week, day int, actual []models.ExerciseLog) ([]models.WorkoutDeviation, error) {
	snap, err := s.snapshots.Snapshot(ctx, programmeID)
	if err != nil {
		return nil, fmt.Errorf("fetching programme snapshot: %w", err)
	}
	prescribed := snap.Workout(week, day)
	if prescribed == nil {
		s.log.Debug("no snapshot slot for workout", "programme_id", programmeID, "week", week, "day", day)
		return []models.WorkoutDeviation{}, nil
	}
	return ComputeDeviations(programmeID, workoutID, prescribed, actual, time.Now().UTC()), nil
}

// ComputeDeviations is the pure comparison of a prescribed workout against
// what was actually logged. It is deterministic: identical inputs always
// yield identical records in identical order.
func ComputeDeviations(programmeID, workoutID uuid.UUID, prescribed *models.SnapshotWorkout, actual []models.ExerciseLog, now time.Time) []models.WorkoutDeviation {
	d := &deviationBuilder{
		programmeID: programmeID,
		workoutID:   workoutID,
		now:         now,
	}

	if allIdentified(prescribed.Exercises) {
		d.matchByIdentifier(prescribed.Exercises, actual)
	} else {
		d.matchByPosition(prescribed.Exercises, actual)
	}

	return d.out
}

// allIdentified reports whether every prescribed slot carries a stable
// exercise identifier. Identifier matching is preferred because a user may
// reorder or substitute exercises without skipping the original slot.
func allIdentified(prescribed []models.SnapshotExercise) bool {
	for i := range prescribed {
		if prescribed[i].ExerciseID == nil {
			return false
		}
	}
	return len(prescribed) > 0
}

type deviationBuilder struct {
	programmeID uuid.UUID
	workoutID   uuid.UUID
	now         time.Time
	out         []models.WorkoutDeviation
}

func (d *deviationBuilder) add(kind models.DeviationKind, magnitude float64, instanceID *uuid.UUID, note string) {
	d.out = append(d.out, models.WorkoutDeviation{
		WorkoutID:          d.workoutID,
		ProgrammeID:        d.programmeID,
		ExerciseInstanceID: instanceID,
		Kind:               kind,
		Magnitude:          magnitude,
		Note:               note,
		RecordedAt:         d.now,
	})
}

func (d *deviationBuilder) matchByIdentifier(prescribed []models.SnapshotExercise, actual []models.ExerciseLog) {
	actualByID := make(map[uuid.UUID]*models.ExerciseLog, len(actual))
	for i := range actual {
		if actual[i].ExerciseID != nil {
			actualByID[*actual[i].ExerciseID] = &actual[i]
		}
	}

	matched := make(map[uuid.UUID]bool, len(prescribed))
	for i := range prescribed {
		ex := &prescribed[i]
		log, ok := actualByID[*ex.ExerciseID]
		if !ok {
			d.add(models.DeviationExerciseSkipped, -1, nil, ex.Name)
			continue
		}
		matched[*ex.ExerciseID] = true
		d.comparePair(ex, log)
	}

	for i := range actual {
		log := &actual[i]
		if log.ExerciseID != nil && matched[*log.ExerciseID] {
			continue
		}
		d.add(models.DeviationExerciseAdded, 1, &log.ExerciseInstanceID, log.Name)
	}
}

func (d *deviationBuilder) matchByPosition(prescribed []models.SnapshotExercise, actual []models.ExerciseLog) {
	for i := range prescribed {
		if i >= len(actual) {
			d.add(models.DeviationExerciseSkipped, -1, nil, prescribed[i].Name)
			continue
		}
		d.comparePair(&prescribed[i], &actual[i])
	}
	for i := len(prescribed); i < len(actual); i++ {
		d.add(models.DeviationExerciseAdded, 1, &actual[i].ExerciseInstanceID, actual[i].Name)
	}
}

// comparePair evaluates the five deviation axes for one prescribed/actual
// pair. Each axis is independent and each skips silently when its target
// denominator is missing or zero.
func (d *deviationBuilder) comparePair(ex *models.SnapshotExercise, log *models.ExerciseLog) {
	if log.Substituted {
		// A swap is reported categorically, not by degree.
		d.add(models.DeviationExerciseSwap, 1, &log.ExerciseInstanceID, log.Name)
	}

	completed := log.CompletedSets()
	if len(completed) == 0 {
		return
	}

	targetReps := models.TargetRepsPerSet(ex.Reps, ex.Sets)
	targetWeights := padWeights(ex.TargetWeights, ex.Sets)

	d.compareVolume(ex, log, completed, targetReps, targetWeights)
	d.compareIntensity(ex, log, completed, targetWeights)
	d.compareSetCount(ex, log, completed)
	d.compareReps(ex, log, completed, targetReps)
	d.compareRPE(ex, log, completed)
}

func (d *deviationBuilder) compareVolume(ex *models.SnapshotExercise, log *models.ExerciseLog, completed []models.CompletedSet, targetReps []int, targetWeights []float64) {
	if len(targetWeights) == 0 || len(targetReps) == 0 {
		return
	}
	var targetVolume float64
	for i := range targetReps {
		targetVolume += targetWeights[i] * float64(targetReps[i])
	}
	if targetVolume <= 0 {
		return
	}

	var actualVolume float64
	for _, s := range completed {
		actualVolume += s.Volume()
	}

	d.report(models.DeviationVolume, (actualVolume-targetVolume)/targetVolume, log)
}

func (d *deviationBuilder) compareIntensity(ex *models.SnapshotExercise, log *models.ExerciseLog, completed []models.CompletedSet, targetWeights []float64) {
	if len(targetWeights) == 0 {
		return
	}
	var targetSum float64
	for _, w := range targetWeights {
		targetSum += w
	}
	targetAvg := targetSum / float64(len(targetWeights))
	if targetAvg <= 0 {
		return
	}

	var actualSum float64
	for _, s := range completed {
		actualSum += s.Weight
	}
	actualAvg := actualSum / float64(len(completed))

	d.report(models.DeviationIntensity, (actualAvg-targetAvg)/targetAvg, log)
}

func (d *deviationBuilder) compareSetCount(ex *models.SnapshotExercise, log *models.ExerciseLog, completed []models.CompletedSet) {
	if ex.Sets <= 0 {
		return
	}
	d.report(models.DeviationSetCount, float64(len(completed)-ex.Sets)/float64(ex.Sets), log)
}

func (d *deviationBuilder) compareReps(ex *models.SnapshotExercise, log *models.ExerciseLog, completed []models.CompletedSet, targetReps []int) {
	var targetTotal int
	for _, r := range targetReps {
		targetTotal += r
	}
	if targetTotal <= 0 {
		return
	}

	var actualTotal int
	for _, s := range completed {
		actualTotal += s.Reps
	}

	d.report(models.DeviationRep, float64(actualTotal-targetTotal)/float64(targetTotal), log)
}

func (d *deviationBuilder) compareRPE(ex *models.SnapshotExercise, log *models.ExerciseLog, completed []models.CompletedSet) {
	if len(ex.TargetRPEs) == 0 {
		return
	}
	var targetSum float64
	for _, r := range ex.TargetRPEs {
		targetSum += r
	}
	targetAvg := targetSum / float64(len(ex.TargetRPEs))
	if targetAvg <= 0 {
		return
	}

	var actualSum float64
	var actualCount int
	for _, s := range completed {
		if s.RPE != nil {
			actualSum += *s.RPE
			actualCount++
		}
	}
	if actualCount == 0 {
		return
	}
	actualAvg := actualSum / float64(actualCount)

	d.report(models.DeviationRPE, (actualAvg-targetAvg)/targetAvg, log)
}

// report records an axis result when it clears the noise threshold.
func (d *deviationBuilder) report(kind models.DeviationKind, magnitude float64, log *models.ExerciseLog) {
	if math.Abs(magnitude) <= deviationThreshold {
		return
	}
	d.add(kind, magnitude, &log.ExerciseInstanceID, "")
}

// padWeights repeats the last target weight, or truncates, to match the
// prescribed set count. An empty list stays empty (weights are optional).
func padWeights(weights []float64, setCount int) []float64 {
	if len(weights) == 0 || setCount <= 0 {
		return nil
	}
	out := make([]float64, setCount)
	for i := range out {
		if i < len(weights) {
			out[i] = weights[i]
		} else {
			out[i] = weights[len(weights)-1]
		}
	}
	return out
}
