package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/repmax/internal/analytics"
	"github.com/claude/repmax/internal/models"
	"github.com/claude/repmax/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Store is the persistence surface the handlers write analytic results to
// and read query results from. *storage.DB implements it.
type Store interface {
	analytics.MaxReader
	analytics.RecordReader
	analytics.PerformanceReader
	analytics.SnapshotReader

	SaveEstimate(ctx context.Context, est models.ExerciseMaxEstimate) error
	EstimateHistory(ctx context.Context, exerciseID uuid.UUID, limit int) ([]models.ExerciseMaxEstimate, error)
	UpsertWorkoutRecord(ctx context.Context, rec models.PersonalRecord) error
	RecordHistory(ctx context.Context, exerciseID uuid.UUID, limit int) ([]models.PersonalRecord, error)
	InsertPerformanceRecord(ctx context.Context, rec models.PerformanceRecord) error
	InsertDeviations(ctx context.Context, rows []models.WorkoutDeviation) (int64, error)
	WorkoutDeviations(ctx context.Context, workoutID uuid.UUID) ([]models.WorkoutDeviation, error)
	ProgrammeDeviations(ctx context.Context, programmeID uuid.UUID, limit int) ([]models.WorkoutDeviation, error)
	SaveSnapshot(ctx context.Context, snap models.ProgrammeSnapshot) (bool, error)
	CancelSnapshot(ctx context.Context, programmeID uuid.UUID) error
	InsertSetLogs(ctx context.Context, rows []storage.SetLogRow) (int64, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store       Store
	oneRM       *analytics.OneRMService
	progression *analytics.ProgressionService
	deviations  *analytics.DeviationService
	prs         *analytics.PRService
	progCfg     models.ProgressionConfig
	log         *slog.Logger
	apiKey      string
	router      chi.Router
}

// New creates a new Server with all routes configured.
func New(store Store, progCfg models.ProgressionConfig, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:       store,
		oneRM:       analytics.NewOneRMService(store, log),
		progression: analytics.NewProgressionService(store, store, log),
		deviations:  analytics.NewDeviationService(store, log),
		prs:         analytics.NewPRService(store, log),
		progCfg:     progCfg,
		log:         log,
		apiKey:      apiKey,
		router:      chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Event endpoints (API key required) — invoked by the workout logger
	// when a set or workout completes.
	s.router.Route("/api/v1/events", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/set-completed", s.handleSetCompleted)
		r.Post("/workout-finished", s.handleWorkoutFinished)
	})

	// Programme lifecycle (API key required)
	s.router.Route("/api/v1/programmes/{id}/snapshot", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/", s.handleCaptureSnapshot)
		r.Delete("/", s.handleCancelSnapshot)
	})

	// Query endpoints
	s.router.Get("/api/v1/exercises/{id}/max", s.handleCurrentMax)
	s.router.Get("/api/v1/exercises/{id}/max/history", s.handleMaxHistory)
	s.router.Get("/api/v1/exercises/{id}/records", s.handleRecordHistory)
	s.router.Get("/api/v1/exercises/{id}/progression", s.handleProgressionPreview)
	s.router.Get("/api/v1/workouts/{id}/deviations", s.handleWorkoutDeviations)
	s.router.Get("/api/v1/programmes/{id}/deviations", s.handleProgrammeDeviations)
}

// now is swappable for handler tests.
var now = func() time.Time { return time.Now().UTC() }
