package analytics

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
)

var recNow = time.Date(2026, 8, 27, 19, 0, 0, 0, time.UTC)

// TestBuildWeightRecord_FirstEver verifies a first record carries a 100%
// improvement and no previous link.
func TestBuildWeightRecord_FirstEver(t *testing.T) {
	set := completedSet(100, 5, nil)
	set.WorkoutID = uuid.New()

	rec, ok := BuildWeightRecord(set, uuid.New(), nil, recNow)
	if !ok {
		t.Fatal("expected a record")
	}
	if rec.ImprovementPct != 100 {
		t.Errorf("improvement = %v, want 100", rec.ImprovementPct)
	}
	if rec.Previous != nil {
		t.Errorf("previous = %+v, want nil", rec.Previous)
	}
	if rec.Kind != models.RecordKindWeight {
		t.Errorf("kind = %v, want WEIGHT", rec.Kind)
	}
	if rec.Volume != 500 {
		t.Errorf("volume = %v, want 500", rec.Volume)
	}
}

// TestBuildWeightRecord_Improvement verifies the improvement percentage and
// the audit link back to the superseded record.
func TestBuildWeightRecord_Improvement(t *testing.T) {
	prevDate := recNow.AddDate(0, -1, 0)
	current := &models.PersonalRecord{Weight: 100, Reps: 5, Date: prevDate}

	set := completedSet(105, 3, nil)
	rec, ok := BuildWeightRecord(set, uuid.New(), current, recNow)
	if !ok {
		t.Fatal("expected a record")
	}
	if math.Abs(rec.ImprovementPct-5) > 1e-9 {
		t.Errorf("improvement = %v, want 5", rec.ImprovementPct)
	}
	if rec.Previous == nil || rec.Previous.Weight != 100 || rec.Previous.Reps != 5 || !rec.Previous.Date.Equal(prevDate) {
		t.Errorf("previous = %+v", rec.Previous)
	}
}

// TestBuildWeightRecord_RequiresStrictImprovement verifies equal weight does
// not replace the standing record.
func TestBuildWeightRecord_RequiresStrictImprovement(t *testing.T) {
	current := &models.PersonalRecord{Weight: 100, Reps: 5, Date: recNow}
	if _, ok := BuildWeightRecord(completedSet(100, 8, nil), uuid.New(), current, recNow); ok {
		t.Error("equal weight must not set a record")
	}
	if _, ok := BuildWeightRecord(completedSet(97.5, 8, nil), uuid.New(), current, recNow); ok {
		t.Error("lower weight must not set a record")
	}
}

// TestBuildWeightRecord_DerivedOneRM verifies the record's estimated 1RM
// rides the RPE-aware Brzycki path, with the over-15-capacity fallback to
// literal weight.
func TestBuildWeightRecord_DerivedOneRM(t *testing.T) {
	t.Run("single with reps in reserve", func(t *testing.T) {
		rec, ok := BuildWeightRecord(completedSet(140, 1, rpe(8)), uuid.New(), nil, recNow)
		if !ok {
			t.Fatal("expected a record")
		}
		// capacity 1 + 2 RIR = 3
		want := 140 / (1.0278 - 0.0278*3)
		if math.Abs(rec.Estimated1RM-want) > 1e-9 {
			t.Errorf("estimated 1RM = %v, want %v", rec.Estimated1RM, want)
		}
	})

	t.Run("capacity beyond formula ceiling", func(t *testing.T) {
		rec, ok := BuildWeightRecord(completedSet(60, 14, rpe(7)), uuid.New(), nil, recNow)
		if !ok {
			t.Fatal("expected a record")
		}
		// 14 reps + 3 RIR = 17 effective reps: fall back to literal weight.
		if rec.Estimated1RM != 60 {
			t.Errorf("estimated 1RM = %v, want literal 60", rec.Estimated1RM)
		}
	})

	t.Run("low rpe falls back to literal weight", func(t *testing.T) {
		rec, ok := BuildWeightRecord(completedSet(80, 10, rpe(5)), uuid.New(), nil, recNow)
		if !ok {
			t.Fatal("expected a record")
		}
		if rec.Estimated1RM != 80 {
			t.Errorf("estimated 1RM = %v, want literal 80", rec.Estimated1RM)
		}
	})
}

// stubRecordReader serves a fixed standing record.
type stubRecordReader struct {
	rec *models.PersonalRecord
}

func (s *stubRecordReader) CurrentRecord(ctx context.Context, exerciseID uuid.UUID, kind models.RecordKind) (*models.PersonalRecord, error) {
	return s.rec, nil
}

// TestPRService_CheckForPR verifies gating on completion, weight and reps,
// and that successive sets in one workout each report against the stored
// record (the store merges to one row per workout).
func TestPRService_CheckForPR(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	exID := uuid.New()

	t.Run("rejects non-qualifying sets", func(t *testing.T) {
		svc := NewPRService(&stubRecordReader{}, log)
		for _, set := range []models.CompletedSet{
			incompleteSet(100, 5),
			completedSet(0, 5, nil),
			completedSet(100, 0, nil),
		} {
			recs, err := svc.CheckForPR(context.Background(), set, exID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(recs) != 0 {
				t.Errorf("set %+v should not record, got %+v", set, recs)
			}
		}
	})

	t.Run("both sets beat the stored record", func(t *testing.T) {
		stored := &models.PersonalRecord{Weight: 90, Reps: 5, Date: recNow.AddDate(0, -2, 0)}
		svc := NewPRService(&stubRecordReader{rec: stored}, log)

		first, err := svc.CheckForPR(context.Background(), completedSet(100, 5, nil), exID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := svc.CheckForPR(context.Background(), completedSet(105, 3, nil), exID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(first) != 1 || len(second) != 1 {
			t.Fatalf("records = %d, %d, want 1 each", len(first), len(second))
		}
		if second[0].Weight <= first[0].Weight {
			t.Errorf("later heavier set should report the higher weight: %v <= %v", second[0].Weight, first[0].Weight)
		}
	})
}
