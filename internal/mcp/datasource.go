package mcp

import (
	"context"
	"time"

	"github.com/claude/repmax/internal/models"
	"github.com/claude/repmax/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. *storage.DB satisfies
// this interface; tests substitute an in-memory fake.
type DataSource interface {
	CurrentEstimate(ctx context.Context, exerciseID uuid.UUID) (*models.ExerciseMaxEstimate, error)
	EstimateHistory(ctx context.Context, exerciseID uuid.UUID, limit int) ([]models.ExerciseMaxEstimate, error)
	RecordHistory(ctx context.Context, exerciseID uuid.UUID, limit int) ([]models.PersonalRecord, error)
	RecentPerformance(ctx context.Context, programmeID, exerciseID uuid.UUID, limit int) ([]models.PerformanceRecord, error)
	ConsecutiveFailures(ctx context.Context, programmeID, exerciseID uuid.UUID) (int, error)
	WorkoutDeviations(ctx context.Context, workoutID uuid.UUID) ([]models.WorkoutDeviation, error)
	ProgrammeDeviations(ctx context.Context, programmeID uuid.UUID, limit int) ([]models.WorkoutDeviation, error)
	QuerySetLogs(ctx context.Context, exerciseID uuid.UUID, start, end time.Time) ([]storage.SetLogRow, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
