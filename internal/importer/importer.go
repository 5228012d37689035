package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/repmax/internal/analytics"
	"github.com/claude/repmax/internal/storage"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	SetsInserted    int64
	SetsDuplicated  int64
	RecordsUpserted int
	MaxesUpdated    int
}

// Importer reads set-log CSV exports from a directory, inserts the raw sets,
// and replays them chronologically through record and max detection.
type Importer struct {
	db     *storage.DB
	state  *StateDB
	log    *slog.Logger
	dryRun bool
	stats  Stats

	oneRM *analytics.OneRMService
	prs   *analytics.PRService
}

// New creates a new Importer. state may be nil, in which case every file is
// processed regardless of prior runs.
func New(db *storage.DB, state *StateDB, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{
		db:     db,
		state:  state,
		log:    log,
		dryRun: dryRun,
		oneRM:  analytics.NewOneRMService(db, log),
		prs:    analytics.NewPRService(db, log),
	}
}

// Import processes all .csv files under dir, oldest sets first.
func (imp *Importer) Import(ctx context.Context, dir string) (*Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &imp.stats, fmt.Errorf("reading %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := imp.importFile(ctx, path, name); err != nil {
			imp.stats.FilesErrored++
			imp.log.Error("importing file", "file", name, "error", err)
			continue
		}
	}
	return &imp.stats, nil
}

func (imp *Importer) importFile(ctx context.Context, path, relPath string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	hash, err := HashFile(path)
	if err != nil {
		return fmt.Errorf("hashing: %w", err)
	}

	if imp.state != nil {
		done, err := imp.state.IsImported(relPath, info.Size(), hash)
		if err != nil {
			return fmt.Errorf("checking state: %w", err)
		}
		if done {
			imp.stats.FilesSkipped++
			imp.log.Info("skipping file (already imported)", "file", relPath)
			return nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening: %w", err)
	}
	sets, err := ParseSetLogCSV(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parsing: %w", err)
	}

	sort.SliceStable(sets, func(i, j int) bool {
		return sets[i].Row.LoggedAt.Before(sets[j].Row.LoggedAt)
	})

	if imp.dryRun {
		imp.stats.FilesProcessed++
		imp.stats.SetsInserted += int64(len(sets))
		imp.log.Info("dry run: parsed file", "file", relPath, "sets", len(sets))
		return nil
	}

	rows := make([]storage.SetLogRow, len(sets))
	for i, s := range sets {
		rows[i] = s.Row
	}
	inserted, err := imp.db.InsertSetLogs(ctx, rows)
	if err != nil {
		return fmt.Errorf("inserting sets: %w", err)
	}
	imp.stats.SetsInserted += inserted
	imp.stats.SetsDuplicated += int64(len(rows)) - inserted

	if err := imp.replay(ctx, sets); err != nil {
		return fmt.Errorf("replaying sets: %w", err)
	}

	if imp.state != nil {
		if err := imp.state.MarkImported(relPath, info.Size(), hash); err != nil {
			return fmt.Errorf("marking imported: %w", err)
		}
	}
	imp.stats.FilesProcessed++
	return nil
}

// replay runs each completed set through record and max detection in logged
// order, rebuilding the same state live ingestion would have produced.
func (imp *Importer) replay(ctx context.Context, sets []parsedSet) error {
	for _, s := range sets {
		set := s.Row.ToCompletedSet()
		if !set.Completed {
			continue
		}

		prs, err := imp.prs.CheckForPR(ctx, set, s.Row.ExerciseID)
		if err != nil {
			return fmt.Errorf("checking records: %w", err)
		}
		for _, pr := range prs {
			if err := imp.db.UpsertWorkoutRecord(ctx, pr); err != nil {
				return fmt.Errorf("storing record: %w", err)
			}
			imp.stats.RecordsUpserted++
		}

		est, err := imp.oneRM.EvaluateSet(ctx, s.Row.ExerciseID, s.Scaling, set)
		if err != nil {
			return fmt.Errorf("evaluating estimate: %w", err)
		}
		if est != nil {
			if err := imp.db.SaveEstimate(ctx, *est); err != nil {
				return fmt.Errorf("storing estimate: %w", err)
			}
			imp.stats.MaxesUpdated++
		}
	}
	return nil
}
