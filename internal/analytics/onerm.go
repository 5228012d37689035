// Package analytics holds the four computation services at the core of
// RepMax: 1RM estimation, progression decisions, deviation analysis, and
// personal-record detection. Every function here is a pure computation over
// data the caller has already fetched; durable writes stay with the storage
// layer.
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

const (
	// maxEstimableReps is the rep ceiling beyond which rep-max formulas are
	// unreliable.
	maxEstimableReps = 15
	// minReliableRPE is the effort floor below which a rep count no longer
	// bounds true capacity.
	minReliableRPE = 6.0
	// minUpdateLoadRatio guards against extrapolating a new max from light,
	// high-rep sets.
	minUpdateLoadRatio = 0.6
	// minUpdateConfidence is the confidence gate for replacing a stored max.
	minUpdateConfidence = 0.5
)

// EstimateOneRM converts one set into an estimated one-rep max. It returns
// ok=false when the input is outside the formula's reliable domain: reps
// outside (0, 15], or a logged RPE at or below 6.0.
func EstimateOneRM(weight float64, reps int, rpe *float64, scaling models.ScalingType) (float64, bool) {
	if reps <= 0 || reps > maxEstimableReps {
		return 0, false
	}
	if rpe != nil && *rpe <= minReliableRPE {
		return 0, false
	}

	capacity := totalRepCapacity(reps, rpe)
	if capacity == 1 {
		// A true single is definitionally the 1RM.
		return weight, true
	}

	c := float64(capacity)
	switch scaling {
	case models.ScalingWeightedBodyweight:
		return weight * (1 + c*0.035), true
	case models.ScalingIsolation:
		return weight * math.Pow(c, 0.10), true
	default:
		// Brzycki
		return weight / (1.0278 - 0.0278*c), true
	}
}

// totalRepCapacity adds reps-in-reserve (truncated) to the logged reps when
// a reliable RPE is present. Without RPE the set is assumed maximal.
func totalRepCapacity(reps int, rpe *float64) int {
	if rpe == nil || *rpe <= minReliableRPE {
		return reps
	}
	rir := 10 - *rpe
	if rir < 0 {
		rir = 0
	}
	return reps + int(rir)
}

// Confidence scores how much an estimate derived from this set should be
// trusted: 50% rep count (low reps extrapolate less), 30% RPE reliability,
// 20% how close the load sat to the current known max.
func Confidence(reps int, rpe *float64, percentOfCurrentMax float64) float64 {
	capped := reps
	if capped > maxEstimableReps {
		capped = maxEstimableReps
	}
	repScore := float64(16-capped) / 15

	var rpeScore float64
	if rpe == nil || *rpe < minReliableRPE {
		rpeScore = 0.3
	} else {
		rpeScore = (*rpe - 5) / 5
	}

	loadScore := clamp01(percentOfCurrentMax)

	return 0.5*repScore + 0.3*rpeScore + 0.2*loadScore
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// validForEstimation checks the structural gates a set must pass before it
// may touch the stored max.
func validForEstimation(set models.CompletedSet) bool {
	if !set.Completed {
		return false
	}
	if set.Reps <= 0 || set.Reps > maxEstimableReps {
		return false
	}
	if set.Weight <= 0 {
		return false
	}
	if set.RPE != nil && *set.RPE < minReliableRPE {
		return false
	}
	return true
}

// ShouldUpdate decides whether newEstimate replaces the stored estimate.
// All four gates must hold: a structurally valid set, a strictly higher
// estimate (or none stored), a load of at least 60% of the current estimate,
// and confidence of at least 0.5.
func ShouldUpdate(set models.CompletedSet, current *models.ExerciseMaxEstimate, newEstimate float64) bool {
	if !validForEstimation(set) {
		return false
	}

	loadRatio := 1.0
	if current != nil {
		if newEstimate <= current.OneRM {
			return false
		}
		if current.OneRM > 0 {
			if set.Weight < minUpdateLoadRatio*current.OneRM {
				return false
			}
			loadRatio = set.Weight / current.OneRM
		}
	}

	return Confidence(set.Reps, set.RPE, loadRatio) >= minUpdateConfidence
}

// BuildEstimate packages a set and its computed estimate into the value the
// store persists. The heaviest-ever single is carried separately from the
// formula estimate: if the prior record's best set was heavier than this
// one, it remains the "most weight lifted" fact.
func BuildEstimate(set models.CompletedSet, exerciseID uuid.UUID, current *models.ExerciseMaxEstimate, oneRM, confidence float64, now time.Time) models.ExerciseMaxEstimate {
	est := models.ExerciseMaxEstimate{
		ExerciseID: exerciseID,
		BestWeight: set.Weight,
		BestReps:   set.Reps,
		BestRPE:    set.RPE,
		OneRM:      oneRM,
		Confidence: confidence,
		Context:    fmt.Sprintf("%.1fkg x %d", set.Weight, set.Reps),
		RecordedAt: now,
		Source:     models.EstimateSourceAuto,
	}
	if current != nil && current.BestWeight > set.Weight {
		est.BestWeight = current.BestWeight
		est.BestReps = current.BestReps
		est.BestRPE = current.BestRPE
	}
	return est
}

// MaxReader is the slice of the store the estimation service reads.
type MaxReader interface {
	CurrentEstimate(ctx context.Context, exerciseID uuid.UUID) (*models.ExerciseMaxEstimate, error)
}

// OneRMService evaluates completed sets against the stored max for their
// exercise.
type OneRMService struct {
	maxes MaxReader
	log   *slog.Logger
}

// NewOneRMService creates a OneRMService.
func NewOneRMService(maxes MaxReader, log *slog.Logger) *OneRMService {
	return &OneRMService{maxes: maxes, log: log}
}

// EvaluateSet computes an estimate for the set and returns the replacement
// ExerciseMaxEstimate when the update gates pass, or nil when the stored
// estimate should stand. The caller owns persisting the result.
func (s *OneRMService) EvaluateSet(ctx context.Context, exerciseID uuid.UUID, scaling models.ScalingType, set models.CompletedSet) (*models.ExerciseMaxEstimate, error) {
	oneRM, ok := EstimateOneRM(set.Weight, set.Reps, set.RPE, scaling)
	if !ok {
		return nil, nil
	}

	current, err := s.maxes.CurrentEstimate(ctx, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("fetching current estimate: %w", err)
	}

	if !ShouldUpdate(set, current, oneRM) {
		return nil, nil
	}

	loadRatio := 1.0
	if current != nil && current.OneRM > 0 {
		loadRatio = set.Weight / current.OneRM
	}
	conf := Confidence(set.Reps, set.RPE, loadRatio)

	est := BuildEstimate(set, exerciseID, current, oneRM, conf, time.Now().UTC())
	s.log.Info("max estimate updated",
		"exercise_id", exerciseID,
		"one_rm", est.OneRM,
		"confidence", est.Confidence,
	)
	return &est, nil
}
