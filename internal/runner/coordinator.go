package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/swarmlab/sweeper/internal/batchroot"
	"github.com/swarmlab/sweeper/internal/ledger"
	"github.com/swarmlab/sweeper/internal/logging"
)

// InputPlaceholder in a command template is replaced with the run's
// materialized input document path.
const InputPlaceholder = "{input}"

// Unit is one schedulable (cell, run) work item.
type Unit struct {
	Cell      string
	Run       int
	InputPath string
	OutputDir string
}

// ID returns the unit's canonical identifier.
func (u Unit) ID() string { return ledger.UnitID(u.Cell, u.Run) }

// UnitResult records one unit's outcome in the execution report.
type UnitResult struct {
	UnitID   string        `json:"unit_id"`
	Cell     string        `json:"cell"`
	Run      int           `json:"run"`
	ExitCode int           `json:"exit_code"`
	Skipped  bool          `json:"skipped"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ExecutionReport summarizes one coordinator invocation. A unit failure is
// data here, not an error: independent runs are never blocked by a sibling's
// crash, and completeness is judged downstream by the reducer.
type ExecutionReport struct {
	InvocationID string       `json:"invocation_id"`
	Total        int          `json:"total"`
	Completed    int          `json:"completed"`
	Failed       int          `json:"failed"`
	Skipped      int          `json:"skipped"`
	Units        []UnitResult `json:"units"`
}

// Coordinator dispatches units to an execution pool with bounded
// parallelism and records completions in the run ledger.
type Coordinator struct {
	Pool        Pool
	Ledger      *ledger.Ledger
	Parallelism int

	// CommandTemplate produces the engine invocation for a unit; the
	// InputPlaceholder token is substituted with the unit's input path.
	CommandTemplate string

	Logger *slog.Logger
	Events *logging.EventLogger
}

// Execute runs every unit not already complete. Units from different cells
// interleave freely up to the configured parallelism; there is no ordering
// guarantee between runs of the same cell. With resume, the ledger is
// authoritative: units with a completed record are skipped, units with a
// failed record are retried. The output-directory probe applies only to
// units with no ledger record at all (runs predating the ledger).
func (c *Coordinator) Execute(ctx context.Context, units []Unit, resume bool) (*ExecutionReport, error) {
	if c.Parallelism < 1 {
		return nil, fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	if !strings.Contains(c.CommandTemplate, InputPlaceholder) {
		return nil, fmt.Errorf("command template %q does not contain %s", c.CommandTemplate, InputPlaceholder)
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := &ExecutionReport{
		InvocationID: uuid.NewString(),
		Total:        len(units),
		Units:        make([]UnitResult, len(units)),
	}

	var recorded map[string]ledger.Status
	if resume {
		var err error
		recorded, err = c.Ledger.Statuses(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading completion ledger: %w", err)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Parallelism)

	for i, unit := range units {
		if resume && alreadyDone(unit, recorded) {
			report.Units[i] = UnitResult{UnitID: unit.ID(), Cell: unit.Cell, Run: unit.Run, Skipped: true}
			report.Skipped++
			logger.Debug("skipping completed unit", "unit", unit.ID())
			continue
		}

		g.Go(func() error {
			res := c.executeUnit(gctx, unit, report.InvocationID)

			mu.Lock()
			report.Units[i] = res
			if res.Error != "" || res.ExitCode != 0 {
				report.Failed++
			} else {
				report.Completed++
			}
			mu.Unlock()

			c.Events.Log(logging.Event{
				Stage:    logging.StageRun,
				Name:     "unit_done",
				Unit:     unit.ID(),
				ExitCode: res.ExitCode,
				Error:    res.Error,
			})
			// Unit failures are recorded, never propagated: a crashed run
			// must not cancel its siblings.
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("execution interrupted: %w", err)
	}

	logger.Info("batch execution finished",
		"invocation", report.InvocationID,
		"total", report.Total,
		"completed", report.Completed,
		"failed", report.Failed,
		"skipped", report.Skipped)
	return report, nil
}

// alreadyDone reports whether a resumed execution may skip the unit. A
// ledger record settles it either way; failed units are retried even when
// their output directory holds a partial result. The nonempty-directory
// probe covers only unrecorded runs produced before the ledger existed.
func alreadyDone(unit Unit, recorded map[string]ledger.Status) bool {
	if status, ok := recorded[unit.ID()]; ok {
		return status == ledger.StatusCompleted
	}
	return batchroot.ExistsAndNonempty(unit.OutputDir)
}

// executeUnit runs one unit to completion and writes its ledger record.
func (c *Coordinator) executeUnit(ctx context.Context, unit Unit, invocationID string) UnitResult {
	started := time.Now()
	command := strings.ReplaceAll(c.CommandTemplate, InputPlaceholder, unit.InputPath)

	res := UnitResult{UnitID: unit.ID(), Cell: unit.Cell, Run: unit.Run}
	exitCode, err := c.Pool.Submit(ctx, command, unit.OutputDir)
	res.ExitCode = exitCode
	res.Duration = time.Since(started)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	status := ledger.StatusCompleted
	if exitCode != 0 {
		status = ledger.StatusFailed
	}

	// The manifest hash is best-effort context for later inspection; the
	// record itself is the completion signal.
	hash, hashErr := ledger.OutputManifestHash(unit.OutputDir)
	if hashErr != nil {
		hash = ""
	}

	rec := ledger.RunRecord{
		UnitID:       unit.ID(),
		Cell:         unit.Cell,
		RunIndex:     unit.Run,
		Status:       status,
		ExitCode:     exitCode,
		ManifestHash: hash,
		InvocationID: invocationID,
		StartedAt:    started,
		FinishedAt:   time.Now(),
	}
	if recErr := c.Ledger.Record(ctx, rec); recErr != nil {
		res.Error = recErr.Error()
	}
	return res
}

// UnitsFor builds the full unit list for a batch from its cell names and
// run count, using the canonical layout.
func UnitsFor(root string, cells []string, runs int, ext string) []Unit {
	units := make([]Unit, 0, len(cells)*runs)
	for _, cell := range cells {
		for run := 0; run < runs; run++ {
			units = append(units, Unit{
				Cell:      cell,
				Run:       run,
				InputPath: batchroot.RunInputFile(root, cell, run, ext),
				OutputDir: batchroot.RunOutputDir(root, cell, run),
			})
		}
	}
	return units
}
