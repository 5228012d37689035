package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
)

func baseConfig() models.ProgressionConfig {
	return models.ProgressionConfig{
		Increments:            map[string]float64{"Back Squat": 5, "Bench Press": 2.5},
		DefaultIncrement:      2.5,
		DeloadTriggerFailures: 3,
		DeloadPercentage:      0.9,
		MinimumWeight:         20,
	}
}

func perfRecord(target, achieved float64, success, deload bool) models.PerformanceRecord {
	return models.PerformanceRecord{
		TargetWeight:   target,
		AchievedWeight: achieved,
		Success:        success,
		WasDeload:      deload,
	}
}

// TestDecide_FirstWorkout verifies the cold-start prescription: 50% of the
// known 1RM rounded down to 2.5 with a 20kg floor, or the configured default
// when no 1RM exists.
func TestDecide_FirstWorkout(t *testing.T) {
	cfg := baseConfig()

	tests := []struct {
		name       string
		currentMax *float64
		wantWeight float64
	}{
		{"known max", ptr(143.0), 70},         // 71.5 rounds down to 70
		{"low max hits floor", ptr(30.0), 20}, // 15 floors at 20
		{"no max", nil, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(cfg, "Back Squat", nil, 0, tt.currentMax)
			if d.Action != models.ActionProgress {
				t.Errorf("action = %v, want PROGRESS", d.Action)
			}
			if d.Weight != tt.wantWeight {
				t.Errorf("weight = %v, want %v", d.Weight, tt.wantWeight)
			}
			if d.IsDeload {
				t.Error("first workout must not be a deload")
			}
		})
	}
}

// TestDecide_DeloadAfterConsecutiveFailures verifies that hitting the
// configured failure trigger deloads to last weight x percentage, never
// above it, with the detail populated.
func TestDecide_DeloadAfterConsecutiveFailures(t *testing.T) {
	cfg := baseConfig()
	history := []models.PerformanceRecord{
		perfRecord(100, 95, false, false),
		perfRecord(100, 92.5, false, false),
		perfRecord(100, 95, false, false),
	}

	d := Decide(cfg, "Back Squat", history, 3, nil)

	if d.Action != models.ActionDeload {
		t.Fatalf("action = %v, want DELOAD", d.Action)
	}
	if !d.IsDeload {
		t.Error("IsDeload = false, want true")
	}
	if d.Weight > history[0].TargetWeight*cfg.DeloadPercentage {
		t.Errorf("deload weight %v exceeds last weight x percentage %v", d.Weight, history[0].TargetWeight*cfg.DeloadPercentage)
	}
	if d.Weight != 90 {
		t.Errorf("weight = %v, want 90", d.Weight)
	}
	if d.Deload == nil {
		t.Fatal("deload detail missing")
	}
	if d.Deload.PreviousWeight != 100 || d.Deload.Percentage != 0.9 || d.Deload.Floor != 20 {
		t.Errorf("deload detail = %+v", *d.Deload)
	}
}

// TestDecide_DeloadRespectsFloor verifies the configured minimum weight caps
// how far a deload can drop.
func TestDecide_DeloadRespectsFloor(t *testing.T) {
	cfg := baseConfig()
	history := []models.PerformanceRecord{perfRecord(20, 20, false, false)}

	d := Decide(cfg, "Bench Press", history, 3, nil)
	if d.Weight != cfg.MinimumWeight {
		t.Errorf("weight = %v, want floor %v", d.Weight, cfg.MinimumWeight)
	}
}

// TestDecide_RecoveryAfterDeload verifies recovery climbs by one increment
// and never overshoots the pre-deload weight.
func TestDecide_RecoveryAfterDeload(t *testing.T) {
	cfg := baseConfig()

	t.Run("normal climb", func(t *testing.T) {
		history := []models.PerformanceRecord{
			perfRecord(90, 90, true, true),     // the deload session
			perfRecord(100, 100, false, false), // pre-deload weight
		}
		d := Decide(cfg, "Back Squat", history, 0, nil)
		if d.Action != models.ActionProgress {
			t.Errorf("action = %v, want PROGRESS", d.Action)
		}
		if d.Weight != 95 {
			t.Errorf("weight = %v, want 95 (90 + 5 increment)", d.Weight)
		}
	})

	t.Run("capped at pre-deload weight", func(t *testing.T) {
		history := []models.PerformanceRecord{
			perfRecord(97.5, 97.5, true, true),
			perfRecord(100, 100, false, false),
		}
		d := Decide(cfg, "Back Squat", history, 0, nil)
		if d.Weight != 100 {
			t.Errorf("weight = %v, want cap 100", d.Weight)
		}
	})
}

// TestDecide_ProgressOnSuccess verifies the increment lookup is
// case-insensitive with a default fallback.
func TestDecide_ProgressOnSuccess(t *testing.T) {
	cfg := baseConfig()
	history := []models.PerformanceRecord{perfRecord(100, 100, true, false)}

	tests := []struct {
		name       string
		exercise   string
		wantWeight float64
	}{
		{"exact name", "Back Squat", 105},
		{"case insensitive", "back squat", 105},
		{"unknown exercise uses default", "Romanian Deadlift", 102.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(cfg, tt.exercise, history, 0, nil)
			if d.Action != models.ActionProgress {
				t.Errorf("action = %v, want PROGRESS", d.Action)
			}
			if d.Weight != tt.wantWeight {
				t.Errorf("weight = %v, want %v", d.Weight, tt.wantWeight)
			}
		})
	}
}

// TestDecide_MaintainOnFailure verifies a failed session below the deload
// trigger repeats the last target weight.
func TestDecide_MaintainOnFailure(t *testing.T) {
	cfg := baseConfig()
	history := []models.PerformanceRecord{perfRecord(100, 95, false, false)}

	d := Decide(cfg, "Back Squat", history, 1, nil)
	if d.Action != models.ActionMaintain {
		t.Errorf("action = %v, want MAINTAIN", d.Action)
	}
	if d.Weight != 100 {
		t.Errorf("weight = %v, want 100", d.Weight)
	}
}

// TestRoundToStep pins the midpoint-truncation behavior the prescriptions
// depend on for reproducibility.
func TestRoundToStep(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{81, 80},
		{81.24, 80},
		{81.25, 82.5},
		{90, 90},
		{88.75, 90},
		{0, 0},
	}
	for _, tt := range tests {
		if got := roundToStep(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("roundToStep(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func completedSet(weight float64, reps int, r *float64) models.CompletedSet {
	return models.CompletedSet{Weight: weight, Reps: reps, RPE: r, Completed: true}
}

func incompleteSet(weight float64, reps int) models.CompletedSet {
	return models.CompletedSet{Weight: weight, Reps: reps}
}

// TestRecordOutcome_SuccessTiers verifies the three-tier success policy:
// explicit criteria, strict rep-target adherence, and the free-form
// completed-ratio fallback.
func TestRecordOutcome_SuccessTiers(t *testing.T) {
	pid, eid, wid := uuid.New(), uuid.New(), uuid.New()
	now := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

	t.Run("explicit criteria met", func(t *testing.T) {
		cfg := baseConfig()
		cfg.SuccessCriteria = &models.SuccessCriteria{MinCompletedSets: 2, MaxMissedReps: 6}
		sets := []models.CompletedSet{
			completedSet(100, 5, nil),
			completedSet(100, 4, nil),
			incompleteSet(100, 0),
		}
		rec := RecordOutcome(pid, eid, wid, cfg, 100, 3, 15, false, sets, now)
		if !rec.Success {
			t.Error("success = false, want true (2 sets completed, 6 missed reps within allowance)")
		}
		if rec.CompletedSets != 2 || rec.AchievedReps != 9 || rec.MissedReps != 6 {
			t.Errorf("aggregates = %d sets, %d reps, %d missed", rec.CompletedSets, rec.AchievedReps, rec.MissedReps)
		}
	})

	t.Run("explicit criteria rpe band", func(t *testing.T) {
		cfg := baseConfig()
		cfg.SuccessCriteria = &models.SuccessCriteria{MinCompletedSets: 1, MaxMissedReps: 100, MinRPE: ptr(7.0), MaxRPE: ptr(9.0)}
		inBand := []models.CompletedSet{completedSet(100, 5, rpe(8))}
		rec := RecordOutcome(pid, eid, wid, cfg, 100, 1, 5, false, inBand, now)
		if !rec.Success {
			t.Error("in-band RPE should succeed")
		}
		outOfBand := []models.CompletedSet{completedSet(100, 5, rpe(10))}
		rec = RecordOutcome(pid, eid, wid, cfg, 100, 1, 5, false, outOfBand, now)
		if rec.Success {
			t.Error("out-of-band RPE should fail")
		}
	})

	t.Run("strict adherence when rep targets exist", func(t *testing.T) {
		cfg := baseConfig()
		exact := []models.CompletedSet{
			completedSet(100, 5, nil),
			completedSet(100, 5, nil),
			completedSet(100, 5, nil),
		}
		rec := RecordOutcome(pid, eid, wid, cfg, 100, 3, 15, false, exact, now)
		if !rec.Success {
			t.Error("exact adherence should succeed")
		}

		short := []models.CompletedSet{
			completedSet(100, 5, nil),
			completedSet(100, 5, nil),
			completedSet(100, 4, nil),
		}
		rec = RecordOutcome(pid, eid, wid, cfg, 100, 3, 15, false, short, now)
		if rec.Success {
			t.Error("a single missed rep should fail strict adherence")
		}
	})

	t.Run("free-form ratio", func(t *testing.T) {
		cfg := baseConfig()
		sets := []models.CompletedSet{
			completedSet(60, 8, nil),
			completedSet(60, 8, nil),
			completedSet(60, 8, nil),
			completedSet(60, 8, nil),
			incompleteSet(60, 0),
		}
		rec := RecordOutcome(pid, eid, wid, cfg, 60, 0, 0, false, sets, now)
		if !rec.Success {
			t.Error("4/5 completed sets should pass the 80%% ratio")
		}

		rec = RecordOutcome(pid, eid, wid, cfg, 60, 0, 0, false, sets[:1], now)
		if !rec.Success {
			t.Error("1/1 completed should pass")
		}

		three := []models.CompletedSet{
			completedSet(60, 8, nil),
			completedSet(60, 8, nil),
			incompleteSet(60, 0),
			incompleteSet(60, 0),
		}
		rec = RecordOutcome(pid, eid, wid, cfg, 60, 0, 0, false, three, now)
		if rec.Success {
			t.Error("2/4 completed should fail the 80%% ratio")
		}
	})
}

// TestRecordOutcome_Aggregates verifies weight/RPE aggregation over
// completed sets only.
func TestRecordOutcome_Aggregates(t *testing.T) {
	cfg := baseConfig()
	sets := []models.CompletedSet{
		completedSet(100, 5, rpe(8)),
		completedSet(102.5, 5, rpe(9)),
		incompleteSet(110, 1),
	}
	rec := RecordOutcome(uuid.New(), uuid.New(), uuid.New(), cfg, 100, 2, 10, false, sets, time.Now())

	if rec.AchievedWeight != 102.5 {
		t.Errorf("AchievedWeight = %v, want 102.5", rec.AchievedWeight)
	}
	if rec.AvgRPE == nil || math.Abs(*rec.AvgRPE-8.5) > 1e-9 {
		t.Errorf("AvgRPE = %v, want 8.5", rec.AvgRPE)
	}
	if rec.MissedReps != 0 {
		t.Errorf("MissedReps = %v, want 0", rec.MissedReps)
	}
}

func ptr(v float64) *float64 { return &v }
