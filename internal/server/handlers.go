package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/claude/repmax/internal/analytics"
	"github.com/claude/repmax/internal/models"
	"github.com/claude/repmax/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent, nothing left to do but log at the caller.
		return
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

type setCompletedRequest struct {
	ExerciseID   uuid.UUID           `json:"exercise_id"`
	ExerciseName string              `json:"exercise_name"`
	Scaling      models.ScalingType  `json:"scaling"`
	Set          models.CompletedSet `json:"set"`
	SetNumber    int                 `json:"set_number"`
}

type setCompletedResponse struct {
	PersonalRecords []models.PersonalRecord     `json:"personal_records"`
	MaxUpdated      bool                        `json:"max_updated"`
	Estimate        *models.ExerciseMaxEstimate `json:"estimate,omitempty"`
}

// handleSetCompleted ingests a single completed set: it logs the raw set,
// checks for personal records and re-evaluates the 1RM estimate.
func (s *Server) handleSetCompleted(w http.ResponseWriter, r *http.Request) {
	var req setCompletedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ExerciseID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "exercise_id is required")
		return
	}
	if req.Scaling == "" {
		req.Scaling = models.ScalingCompound
	}
	ctx := r.Context()

	if _, err := s.store.InsertSetLogs(ctx, []storage.SetLogRow{{
		WorkoutID:          req.Set.WorkoutID,
		ExerciseInstanceID: req.Set.ExerciseInstanceID,
		ExerciseID:         req.ExerciseID,
		ExerciseName:       req.ExerciseName,
		SetNumber:          req.SetNumber,
		Weight:             req.Set.Weight,
		Reps:               req.Set.Reps,
		RPE:                req.Set.RPE,
		Completed:          req.Set.Completed,
		LoggedAt:           now(),
	}}); err != nil {
		s.log.Error("inserting set log", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store set")
		return
	}

	resp := setCompletedResponse{PersonalRecords: []models.PersonalRecord{}}

	prs, err := s.prs.CheckForPR(ctx, req.Set, req.ExerciseID)
	if err != nil {
		s.log.Error("checking personal records", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to evaluate records")
		return
	}
	for _, pr := range prs {
		if err := s.store.UpsertWorkoutRecord(ctx, pr); err != nil {
			s.log.Error("storing personal record", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store record")
			return
		}
	}
	resp.PersonalRecords = append(resp.PersonalRecords, prs...)

	est, err := s.oneRM.EvaluateSet(ctx, req.ExerciseID, req.Scaling, req.Set)
	if err != nil {
		s.log.Error("evaluating 1RM estimate", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to evaluate estimate")
		return
	}
	if est != nil {
		if err := s.store.SaveEstimate(ctx, *est); err != nil {
			s.log.Error("storing 1RM estimate", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store estimate")
			return
		}
		resp.MaxUpdated = true
		resp.Estimate = est
	}

	writeJSON(w, http.StatusOK, resp)
}

type finishedExercise struct {
	models.ExerciseLog
	TargetWeight float64 `json:"target_weight"`
	TargetSets   int     `json:"target_sets"`
	TargetReps   int     `json:"target_reps"`
	WasDeload    bool    `json:"was_deload"`
}

type workoutFinishedRequest struct {
	WorkoutID   uuid.UUID          `json:"workout_id"`
	ProgrammeID *uuid.UUID         `json:"programme_id,omitempty"`
	Week        int                `json:"week"`
	Day         int                `json:"day"`
	Exercises   []finishedExercise `json:"exercises"`
}

type workoutFinishedResponse struct {
	PerformanceRecords int                       `json:"performance_records"`
	Deviations         []models.WorkoutDeviation `json:"deviations"`
}

// handleWorkoutFinished records per-exercise performance outcomes and, for
// programme-linked workouts, computes deviations against the frozen snapshot.
func (s *Server) handleWorkoutFinished(w http.ResponseWriter, r *http.Request) {
	var req workoutFinishedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.WorkoutID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "workout_id is required")
		return
	}
	ctx := r.Context()
	at := now()

	resp := workoutFinishedResponse{Deviations: []models.WorkoutDeviation{}}

	if req.ProgrammeID != nil {
		for _, ex := range req.Exercises {
			if ex.ExerciseID == nil || ex.TargetWeight <= 0 {
				continue
			}
			rec := analytics.RecordOutcome(*req.ProgrammeID, *ex.ExerciseID, req.WorkoutID,
				s.progCfg, ex.TargetWeight, ex.TargetSets, ex.TargetReps, ex.WasDeload, ex.Sets, at)
			if err := s.store.InsertPerformanceRecord(ctx, rec); err != nil {
				s.log.Error("storing performance record", "error", err)
				writeError(w, http.StatusInternalServerError, "failed to store performance")
				return
			}
			resp.PerformanceRecords++
		}

		logs := make([]models.ExerciseLog, len(req.Exercises))
		for i, ex := range req.Exercises {
			logs[i] = ex.ExerciseLog
		}
		devs, err := s.deviations.ComputeWorkoutDeviations(ctx, *req.ProgrammeID, req.WorkoutID, req.Week, req.Day, logs)
		if err != nil {
			s.log.Error("computing deviations", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to compute deviations")
			return
		}
		if len(devs) > 0 {
			if _, err := s.store.InsertDeviations(ctx, devs); err != nil {
				s.log.Error("storing deviations", "error", err)
				writeError(w, http.StatusInternalServerError, "failed to store deviations")
				return
			}
		}
		resp.Deviations = append(resp.Deviations, devs...)
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCaptureSnapshot freezes the posted programme definition. Re-posting
// for the same programme is a no-op and reports 409.
func (s *Server) handleCaptureSnapshot(w http.ResponseWriter, r *http.Request) {
	programmeID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid programme id")
		return
	}
	var snap models.ProgrammeSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	snap.ProgrammeID = programmeID
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = now()
	}
	if len(snap.Weeks) == 0 {
		writeError(w, http.StatusBadRequest, "snapshot has no weeks")
		return
	}

	created, err := s.store.SaveSnapshot(r.Context(), snap)
	if err != nil {
		s.log.Error("saving snapshot", "error", err, "programme_id", programmeID)
		writeError(w, http.StatusInternalServerError, "failed to save snapshot")
		return
	}
	if !created {
		writeError(w, http.StatusConflict, "snapshot already captured")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"programme_id": programmeID, "captured_at": snap.CapturedAt})
}

func (s *Server) handleCancelSnapshot(w http.ResponseWriter, r *http.Request) {
	programmeID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid programme id")
		return
	}
	if err := s.store.CancelSnapshot(r.Context(), programmeID); err != nil {
		s.log.Error("cancelling snapshot", "error", err, "programme_id", programmeID)
		writeError(w, http.StatusInternalServerError, "failed to cancel snapshot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrentMax(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid exercise id")
		return
	}
	est, err := s.store.CurrentEstimate(r.Context(), exerciseID)
	if err != nil {
		s.log.Error("loading current estimate", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load estimate")
		return
	}
	if est == nil {
		writeError(w, http.StatusNotFound, "no estimate for exercise")
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (s *Server) handleMaxHistory(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid exercise id")
		return
	}
	history, err := s.store.EstimateHistory(r.Context(), exerciseID, queryLimit(r, 50))
	if err != nil {
		s.log.Error("loading estimate history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleRecordHistory(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid exercise id")
		return
	}
	records, err := s.store.RecordHistory(r.Context(), exerciseID, queryLimit(r, 50))
	if err != nil {
		s.log.Error("loading record history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleProgressionPreview returns the weight the progression policy would
// prescribe for the exercise's next session, without recording anything.
func (s *Server) handleProgressionPreview(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid exercise id")
		return
	}
	programmeID, err := uuid.Parse(r.URL.Query().Get("programme_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "programme_id query parameter is required")
		return
	}
	name := r.URL.Query().Get("name")

	decision, err := s.progression.DecideNextWeight(r.Context(), programmeID, exerciseID, name, s.progCfg)
	if err != nil {
		s.log.Error("deciding progression", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to decide progression")
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleWorkoutDeviations(w http.ResponseWriter, r *http.Request) {
	workoutID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid workout id")
		return
	}
	devs, err := s.store.WorkoutDeviations(r.Context(), workoutID)
	if err != nil {
		s.log.Error("loading workout deviations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load deviations")
		return
	}
	writeJSON(w, http.StatusOK, devs)
}

func (s *Server) handleProgrammeDeviations(w http.ResponseWriter, r *http.Request) {
	programmeID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid programme id")
		return
	}
	devs, err := s.store.ProgrammeDeviations(r.Context(), programmeID, queryLimit(r, 200))
	if err != nil {
		s.log.Error("loading programme deviations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load deviations")
		return
	}
	writeJSON(w, http.StatusOK, devs)
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
