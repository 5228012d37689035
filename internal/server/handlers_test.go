package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/repmax/internal/models"
	"github.com/claude/repmax/internal/storage"
	"github.com/google/uuid"
)

const testAPIKey = "test-key"

// fakeStore is an in-memory Store for handler tests. Reads serve from the
// seeded fields; writes are captured for assertions.
type fakeStore struct {
	estimate *models.ExerciseMaxEstimate
	record   *models.PersonalRecord
	history  []models.PerformanceRecord
	failures int
	snapshot *models.ProgrammeSnapshot

	savedEstimates []models.ExerciseMaxEstimate
	savedRecords   []models.PersonalRecord
	savedPerf      []models.PerformanceRecord
	savedDevs      []models.WorkoutDeviation
	savedSetLogs   []storage.SetLogRow
	snapshotSaved  bool
	snapshotExists bool
	cancelled      []uuid.UUID
}

func (f *fakeStore) CurrentEstimate(ctx context.Context, exerciseID uuid.UUID) (*models.ExerciseMaxEstimate, error) {
	return f.estimate, nil
}

func (f *fakeStore) CurrentRecord(ctx context.Context, exerciseID uuid.UUID, kind models.RecordKind) (*models.PersonalRecord, error) {
	return f.record, nil
}

func (f *fakeStore) RecentPerformance(ctx context.Context, programmeID, exerciseID uuid.UUID, limit int) ([]models.PerformanceRecord, error) {
	return f.history, nil
}

func (f *fakeStore) ConsecutiveFailures(ctx context.Context, programmeID, exerciseID uuid.UUID) (int, error) {
	return f.failures, nil
}

func (f *fakeStore) Snapshot(ctx context.Context, programmeID uuid.UUID) (*models.ProgrammeSnapshot, error) {
	return f.snapshot, nil
}

func (f *fakeStore) SaveEstimate(ctx context.Context, est models.ExerciseMaxEstimate) error {
	f.savedEstimates = append(f.savedEstimates, est)
	return nil
}

func (f *fakeStore) EstimateHistory(ctx context.Context, exerciseID uuid.UUID, limit int) ([]models.ExerciseMaxEstimate, error) {
	if f.estimate == nil {
		return []models.ExerciseMaxEstimate{}, nil
	}
	return []models.ExerciseMaxEstimate{*f.estimate}, nil
}

func (f *fakeStore) UpsertWorkoutRecord(ctx context.Context, rec models.PersonalRecord) error {
	f.savedRecords = append(f.savedRecords, rec)
	return nil
}

func (f *fakeStore) RecordHistory(ctx context.Context, exerciseID uuid.UUID, limit int) ([]models.PersonalRecord, error) {
	if f.record == nil {
		return []models.PersonalRecord{}, nil
	}
	return []models.PersonalRecord{*f.record}, nil
}

func (f *fakeStore) InsertPerformanceRecord(ctx context.Context, rec models.PerformanceRecord) error {
	f.savedPerf = append(f.savedPerf, rec)
	return nil
}

func (f *fakeStore) InsertDeviations(ctx context.Context, rows []models.WorkoutDeviation) (int64, error) {
	f.savedDevs = append(f.savedDevs, rows...)
	return int64(len(rows)), nil
}

func (f *fakeStore) WorkoutDeviations(ctx context.Context, workoutID uuid.UUID) ([]models.WorkoutDeviation, error) {
	return f.savedDevs, nil
}

func (f *fakeStore) ProgrammeDeviations(ctx context.Context, programmeID uuid.UUID, limit int) ([]models.WorkoutDeviation, error) {
	return f.savedDevs, nil
}

func (f *fakeStore) SaveSnapshot(ctx context.Context, snap models.ProgrammeSnapshot) (bool, error) {
	if f.snapshotExists {
		return false, nil
	}
	f.snapshotSaved = true
	f.snapshot = &snap
	return true, nil
}

func (f *fakeStore) CancelSnapshot(ctx context.Context, programmeID uuid.UUID) error {
	f.cancelled = append(f.cancelled, programmeID)
	return nil
}

func (f *fakeStore) InsertSetLogs(ctx context.Context, rows []storage.SetLogRow) (int64, error) {
	f.savedSetLogs = append(f.savedSetLogs, rows...)
	return int64(len(rows)), nil
}

func testConfig() models.ProgressionConfig {
	return models.ProgressionConfig{
		Increments:            map[string]float64{"Back Squat": 5},
		DefaultIncrement:      2.5,
		DeloadTriggerFailures: 3,
		DeloadPercentage:      0.9,
		MinimumWeight:         20,
	}
}

func newTestServer(store *fakeStore) *Server {
	return New(store, testConfig(), testAPIKey, slog.New(slog.DiscardHandler))
}

func doJSON(t *testing.T, s *Server, method, path string, body any, withKey bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if withKey {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func rpe(v float64) *float64 { return &v }

// TestHandleSetCompleted verifies that a heavy completed set on a fresh
// exercise logs the set, opens a weight PR and stores a first 1RM estimate.
func TestHandleSetCompleted(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store)

	exerciseID := uuid.New()
	req := setCompletedRequest{
		ExerciseID:   exerciseID,
		ExerciseName: "Back Squat",
		Scaling:      models.ScalingCompound,
		SetNumber:    1,
		Set: models.CompletedSet{
			WorkoutID:          uuid.New(),
			ExerciseInstanceID: uuid.New(),
			Weight:             100,
			Reps:               5,
			RPE:                rpe(8),
			Completed:          true,
		},
	}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/events/set-completed", req, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var resp setCompletedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(resp.PersonalRecords) != 1 {
		t.Fatalf("personal records = %d, want 1", len(resp.PersonalRecords))
	}
	if got := resp.PersonalRecords[0].ImprovementPct; got != 100 {
		t.Errorf("first record improvement = %v, want 100", got)
	}
	if !resp.MaxUpdated || resp.Estimate == nil {
		t.Fatalf("max_updated = %v, estimate = %v, want update with estimate", resp.MaxUpdated, resp.Estimate)
	}
	if resp.Estimate.OneRM <= 100 {
		t.Errorf("estimate one_rm = %v, want > 100 for 100x5@8", resp.Estimate.OneRM)
	}

	if len(store.savedSetLogs) != 1 {
		t.Errorf("set logs stored = %d, want 1", len(store.savedSetLogs))
	}
	if len(store.savedRecords) != 1 {
		t.Errorf("records stored = %d, want 1", len(store.savedRecords))
	}
	if len(store.savedEstimates) != 1 {
		t.Errorf("estimates stored = %d, want 1", len(store.savedEstimates))
	}
}

// TestHandleSetCompletedIncompleteSet verifies that an incomplete set is
// still logged but produces neither a record nor an estimate update.
func TestHandleSetCompletedIncompleteSet(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store)

	req := setCompletedRequest{
		ExerciseID: uuid.New(),
		Set: models.CompletedSet{
			WorkoutID: uuid.New(),
			Weight:    100,
			Reps:      5,
			Completed: false,
		},
	}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/events/set-completed", req, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp setCompletedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(resp.PersonalRecords) != 0 || resp.MaxUpdated {
		t.Errorf("incomplete set produced records=%d max_updated=%v, want none", len(resp.PersonalRecords), resp.MaxUpdated)
	}
	if len(store.savedSetLogs) != 1 {
		t.Errorf("set logs stored = %d, want 1 (raw log is unconditional)", len(store.savedSetLogs))
	}
}

func TestHandleSetCompletedRejectsBadInput(t *testing.T) {
	s := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/set-completed", bytes.NewBufferString("{not json"))
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec.Code)
	}

	rec2 := doJSON(t, s, http.MethodPost, "/api/v1/events/set-completed", setCompletedRequest{}, true)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("missing exercise_id: status = %d, want 400", rec2.Code)
	}
}

func TestEventEndpointsRequireAPIKey(t *testing.T) {
	s := newTestServer(&fakeStore{})

	rec := doJSON(t, s, http.MethodPost, "/api/v1/events/set-completed", setCompletedRequest{}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}
}

// TestHandleWorkoutFinished verifies a programme-linked finished workout
// records one performance row per targeted exercise and persists deviations
// computed against the frozen snapshot.
func TestHandleWorkoutFinished(t *testing.T) {
	exerciseID := uuid.New()
	programmeID := uuid.New()

	store := &fakeStore{
		snapshot: &models.ProgrammeSnapshot{
			ProgrammeID: programmeID,
			Name:        "5x5",
			CapturedAt:  time.Now().UTC(),
			Weeks: []models.SnapshotWeek{{
				Number: 1,
				Workouts: []models.SnapshotWorkout{{
					Day: 1,
					Exercises: []models.SnapshotExercise{{
						ExerciseID:    &exerciseID,
						Name:          "Back Squat",
						Sets:          3,
						Reps:          models.SingleReps(5),
						TargetWeights: []float64{100, 100, 100},
					}},
				}},
			}},
		},
	}
	s := newTestServer(store)

	set := models.CompletedSet{Weight: 115, Reps: 5, RPE: rpe(9), Completed: true}
	req := workoutFinishedRequest{
		WorkoutID:   uuid.New(),
		ProgrammeID: &programmeID,
		Week:        1,
		Day:         1,
		Exercises: []finishedExercise{{
			ExerciseLog: models.ExerciseLog{
				ExerciseInstanceID: uuid.New(),
				ExerciseID:         &exerciseID,
				Name:               "Back Squat",
				Sets:               []models.CompletedSet{set, set, set},
			},
			TargetWeight: 100,
			TargetSets:   3,
			TargetReps:   5,
		}},
	}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/events/workout-finished", req, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var resp workoutFinishedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.PerformanceRecords != 1 {
		t.Errorf("performance records = %d, want 1", resp.PerformanceRecords)
	}
	// 115 actual vs 100 prescribed is +15% on both volume and intensity.
	if len(resp.Deviations) == 0 {
		t.Fatal("expected deviations for a 15% overshoot, got none")
	}
	if len(store.savedPerf) != 1 {
		t.Errorf("stored performance records = %d, want 1", len(store.savedPerf))
	}
	if !store.savedPerf[0].Success {
		t.Error("3x5 at target weight completed, want success = true")
	}
	if len(store.savedDevs) != len(resp.Deviations) {
		t.Errorf("stored deviations = %d, response deviations = %d", len(store.savedDevs), len(resp.Deviations))
	}
}

// TestHandleWorkoutFinishedAdHoc verifies a workout without a programme link
// is accepted and produces no analytics rows.
func TestHandleWorkoutFinishedAdHoc(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store)

	req := workoutFinishedRequest{
		WorkoutID: uuid.New(),
		Exercises: []finishedExercise{{
			ExerciseLog: models.ExerciseLog{
				ExerciseInstanceID: uuid.New(),
				Name:               "Farmer Carry",
				Sets:               []models.CompletedSet{{Weight: 40, Reps: 1, Completed: true}},
			},
		}},
	}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/events/workout-finished", req, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp workoutFinishedResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.PerformanceRecords != 0 || len(resp.Deviations) != 0 {
		t.Errorf("ad-hoc workout produced perf=%d devs=%d, want none", resp.PerformanceRecords, len(resp.Deviations))
	}
}

// TestHandleCaptureSnapshot verifies first capture succeeds and a repeat
// capture reports conflict without changing the stored snapshot.
func TestHandleCaptureSnapshot(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store)
	programmeID := uuid.New()
	path := "/api/v1/programmes/" + programmeID.String() + "/snapshot"

	snap := models.ProgrammeSnapshot{
		Name: "5x5",
		Weeks: []models.SnapshotWeek{{Number: 1, Workouts: []models.SnapshotWorkout{{
			Day:       1,
			Exercises: []models.SnapshotExercise{{Name: "Back Squat", Sets: 3, Reps: models.SingleReps(5)}},
		}}}},
	}

	rec := doJSON(t, s, http.MethodPost, path, snap, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	if !store.snapshotSaved {
		t.Fatal("snapshot not saved")
	}
	if store.snapshot.ProgrammeID != programmeID {
		t.Errorf("stored programme_id = %s, want path id %s", store.snapshot.ProgrammeID, programmeID)
	}

	store.snapshotExists = true
	rec2 := doJSON(t, s, http.MethodPost, path, snap, true)
	if rec2.Code != http.StatusConflict {
		t.Errorf("repeat capture: status = %d, want 409", rec2.Code)
	}
}

func TestHandleCancelSnapshot(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store)
	programmeID := uuid.New()

	rec := doJSON(t, s, http.MethodDelete, "/api/v1/programmes/"+programmeID.String()+"/snapshot", nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(store.cancelled) != 1 || store.cancelled[0] != programmeID {
		t.Errorf("cancelled = %v, want [%s]", store.cancelled, programmeID)
	}
}

func TestHandleCurrentMax(t *testing.T) {
	exerciseID := uuid.New()
	store := &fakeStore{estimate: &models.ExerciseMaxEstimate{
		ExerciseID: exerciseID,
		BestWeight: 140,
		BestReps:   1,
		OneRM:      140,
		Confidence: 0.9,
		Source:     models.EstimateSourceAuto,
	}}
	s := newTestServer(store)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/exercises/"+exerciseID.String()+"/max", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var est models.ExerciseMaxEstimate
	if err := json.NewDecoder(rec.Body).Decode(&est); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if est.OneRM != 140 {
		t.Errorf("one_rm = %v, want 140", est.OneRM)
	}
}

func TestHandleCurrentMaxNotFound(t *testing.T) {
	s := newTestServer(&fakeStore{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/exercises/"+uuid.NewString()+"/max", nil, false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleInvalidUUID(t *testing.T) {
	s := newTestServer(&fakeStore{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/exercises/not-a-uuid/max", nil, false)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestHandleProgressionPreview verifies the preview endpoint runs the
// progression policy against recent performance history.
func TestHandleProgressionPreview(t *testing.T) {
	exerciseID := uuid.New()
	programmeID := uuid.New()
	store := &fakeStore{
		history: []models.PerformanceRecord{{
			ProgrammeID:    programmeID,
			ExerciseID:     exerciseID,
			TargetWeight:   100,
			AchievedWeight: 100,
			TargetSets:     3,
			CompletedSets:  3,
			TargetReps:     5,
			AchievedReps:   15,
			Success:        true,
			RecordedAt:     time.Now().UTC(),
		}},
	}
	s := newTestServer(store)

	path := "/api/v1/exercises/" + exerciseID.String() + "/progression?programme_id=" + programmeID.String() + "&name=Back%20Squat"
	rec := doJSON(t, s, http.MethodGet, path, nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var decision models.ProgressionDecision
	if err := json.NewDecoder(rec.Body).Decode(&decision); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if decision.Action != models.ActionProgress {
		t.Errorf("action = %s, want PROGRESS", decision.Action)
	}
	if decision.Weight != 105 {
		t.Errorf("weight = %v, want 105 (100 + Back Squat increment)", decision.Weight)
	}
}

func TestHandleProgressionPreviewRequiresProgramme(t *testing.T) {
	s := newTestServer(&fakeStore{})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/exercises/"+uuid.NewString()+"/progression", nil, false)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 50},
		{"10", 10},
		{"0", 50},
		{"-5", 50},
		{"abc", 50},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?limit="+tt.raw, nil)
		if got := queryLimit(req, 50); got != tt.want {
			t.Errorf("queryLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
