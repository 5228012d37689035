package mcp

import (
	"context"
	"time"

	"github.com/claude/repmax/internal/analytics"
	"github.com/claude/repmax/internal/models"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last 90 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -90)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

func requireUUID(req mcp.CallToolRequest, name string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(name)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(name + " parameter is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(name + " is not a valid UUID")
	}
	return id, nil
}

// --- Tool definitions ---

var toolEstimateOneRM = mcp.NewTool("estimate_1rm",
	mcp.WithDescription("Estimate a one-rep max from a single set. Returns the estimated 1RM and a confidence score. Sets above 15 reps or at RPE 6 and below cannot be estimated."),
	mcp.WithNumber("weight", mcp.Required(), mcp.Description("Weight lifted in kg")),
	mcp.WithNumber("reps", mcp.Required(), mcp.Description("Reps completed")),
	mcp.WithNumber("rpe", mcp.Description("Rating of perceived exertion (1-10). RPE above 6 adds the implied reps in reserve to the estimate.")),
	mcp.WithString("scaling", mcp.Description("Exercise scaling curve. Defaults to 'compound'."), mcp.Enum("compound", "weighted_bodyweight", "isolation")),
)

var toolGetCurrentMax = mcp.NewTool("get_current_max",
	mcp.WithDescription("Get the current tracked 1RM estimate for an exercise, including the best set behind it and the confidence score."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise UUID")),
)

var toolGetMaxHistory = mcp.NewTool("get_max_history",
	mcp.WithDescription("Get the history of 1RM estimates for an exercise, newest first."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise UUID")),
	mcp.WithNumber("limit", mcp.Description("Maximum rows to return. Defaults to 50.")),
)

var toolGetPersonalRecords = mcp.NewTool("get_personal_records",
	mcp.WithDescription("Get personal records for an exercise, heaviest first. Each record links back to the record it superseded."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise UUID")),
	mcp.WithNumber("limit", mcp.Description("Maximum rows to return. Defaults to 50.")),
)

var toolGetProgression = mcp.NewTool("get_progression",
	mcp.WithDescription("Preview the weight the progression policy prescribes for an exercise's next session: progress, maintain, deload, or a first-workout starting weight."),
	mcp.WithString("programme_id", mcp.Required(), mcp.Description("Programme UUID")),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise UUID")),
	mcp.WithString("name", mcp.Description("Exercise name, used to look up a per-exercise increment")),
)

var toolGetDeviations = mcp.NewTool("get_deviations",
	mcp.WithDescription("Get prescribed-vs-actual deviations for a workout or a whole programme. Pass exactly one of workout_id or programme_id."),
	mcp.WithString("workout_id", mcp.Description("Workout UUID")),
	mcp.WithString("programme_id", mcp.Description("Programme UUID")),
	mcp.WithNumber("limit", mcp.Description("Maximum rows for programme queries. Defaults to 200.")),
)

var toolGetSetLogs = mcp.NewTool("get_set_logs",
	mcp.WithDescription("Query raw logged sets for an exercise over a time range."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise UUID")),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

// --- Tool handlers ---

func (h *handlers) estimateOneRM(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	weight, err := req.RequireFloat("weight")
	if err != nil {
		return mcp.NewToolResultError("weight parameter is required"), nil
	}
	reps, err := req.RequireInt("reps")
	if err != nil {
		return mcp.NewToolResultError("reps parameter is required"), nil
	}

	var rpePtr *float64
	if v := req.GetFloat("rpe", 0); v > 0 {
		rpePtr = &v
	}
	scaling := models.ScalingType(req.GetString("scaling", string(models.ScalingCompound)))

	oneRM, ok := analytics.EstimateOneRM(weight, reps, rpePtr, scaling)
	if !ok {
		return mcp.NewToolResultError("set is not estimable: reps must be 1-15 and RPE, when given, above 6"), nil
	}

	type estimate struct {
		OneRM      float64 `json:"one_rm_kg"`
		Confidence float64 `json:"confidence"`
	}
	result, err := mcp.NewToolResultJSON(estimate{
		OneRM:      oneRM,
		Confidence: analytics.Confidence(reps, rpePtr, 1.0),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getCurrentMax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exerciseID, errResult := requireUUID(req, "exercise_id")
	if errResult != nil {
		return errResult, nil
	}

	est, err := h.ds.CurrentEstimate(ctx, exerciseID)
	if err != nil {
		h.log.Error("mcp get_current_max", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if est == nil {
		return mcp.NewToolResultError("no estimate for exercise"), nil
	}

	result, err := mcp.NewToolResultJSON(est)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getMaxHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exerciseID, errResult := requireUUID(req, "exercise_id")
	if errResult != nil {
		return errResult, nil
	}

	history, err := h.ds.EstimateHistory(ctx, exerciseID, req.GetInt("limit", 50))
	if err != nil {
		h.log.Error("mcp get_max_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(history)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPersonalRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exerciseID, errResult := requireUUID(req, "exercise_id")
	if errResult != nil {
		return errResult, nil
	}

	records, err := h.ds.RecordHistory(ctx, exerciseID, req.GetInt("limit", 50))
	if err != nil {
		h.log.Error("mcp get_personal_records", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(records)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getProgression(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	programmeID, errResult := requireUUID(req, "programme_id")
	if errResult != nil {
		return errResult, nil
	}
	exerciseID, errResult := requireUUID(req, "exercise_id")
	if errResult != nil {
		return errResult, nil
	}
	name := req.GetString("name", "")

	history, err := h.ds.RecentPerformance(ctx, programmeID, exerciseID, 5)
	if err != nil {
		h.log.Error("mcp get_progression", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	failures, err := h.ds.ConsecutiveFailures(ctx, programmeID, exerciseID)
	if err != nil {
		h.log.Error("mcp get_progression", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	var currentMax *float64
	if est, err := h.ds.CurrentEstimate(ctx, exerciseID); err == nil && est != nil {
		currentMax = &est.OneRM
	}

	decision := analytics.Decide(h.progCfg, name, history, failures, currentMax)
	result, err := mcp.NewToolResultJSON(decision)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getDeviations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workoutRaw := req.GetString("workout_id", "")
	programmeRaw := req.GetString("programme_id", "")
	if (workoutRaw == "") == (programmeRaw == "") {
		return mcp.NewToolResultError("pass exactly one of workout_id or programme_id"), nil
	}

	var (
		devs []models.WorkoutDeviation
		err  error
	)
	if workoutRaw != "" {
		workoutID, parseErr := uuid.Parse(workoutRaw)
		if parseErr != nil {
			return mcp.NewToolResultError("workout_id is not a valid UUID"), nil
		}
		devs, err = h.ds.WorkoutDeviations(ctx, workoutID)
	} else {
		programmeID, parseErr := uuid.Parse(programmeRaw)
		if parseErr != nil {
			return mcp.NewToolResultError("programme_id is not a valid UUID"), nil
		}
		devs, err = h.ds.ProgrammeDeviations(ctx, programmeID, req.GetInt("limit", 200))
	}
	if err != nil {
		h.log.Error("mcp get_deviations", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(devs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSetLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exerciseID, errResult := requireUUID(req, "exercise_id")
	if errResult != nil {
		return errResult, nil
	}
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	rows, err := h.ds.QuerySetLogs(ctx, exerciseID, start, end)
	if err != nil {
		h.log.Error("mcp get_set_logs", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(rows)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
