package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gammazero/workerpool"

	"github.com/roach88/offset/internal/credit"
	"github.com/roach88/offset/internal/engine"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 4

// Creator is the subset of engine.Engine the loader needs.
type Creator interface {
	CreateOrReconcile(ctx context.Context, raw credit.RawRecord) (engine.Result, error)
}

// Status classifies how one item was handled.
type Status string

const (
	StatusCreated  Status = "created"
	StatusSkipped  Status = "skipped"  // identical record already stored
	StatusInvalid  Status = "invalid"  // failed validation or canonicalization
	StatusConflict Status = "conflict" // same identifier, different data
	StatusError    Status = "error"    // storage failure
)

// ItemResult is the outcome for one item.
type ItemResult struct {
	Position int
	RecordID string
	Status   Status
	Err      error
}

// Report summarizes a load.
type Report struct {
	Total     int
	Created   int
	Skipped   int
	Invalid   int
	Conflicts int
	Errors    int
	Results   []ItemResult // in item order
}

// Failed reports whether any item was not created or skipped.
func (r Report) Failed() bool {
	return r.Invalid+r.Conflicts+r.Errors > 0
}

// Loader applies CreateOrReconcile to seed items on a worker pool.
type Loader struct {
	creator Creator
	workers int
	logger  *slog.Logger
}

// NewLoader creates a loader. workers <= 0 uses DefaultWorkers.
func NewLoader(c Creator, workers int, logger *slog.Logger) *Loader {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{creator: c, workers: workers, logger: logger}
}

// Load processes every item. Invalid and conflicting items are logged and
// counted; loading continues. The returned error joins storage failures only.
func (l *Loader) Load(ctx context.Context, items []Item) (Report, error) {
	results := make([]ItemResult, len(items))

	wp := workerpool.New(l.workers)
	for i, item := range items {
		wp.Submit(func() {
			results[i] = l.loadItem(ctx, item)
		})
	}
	wp.StopWait()

	report := summarize(results)
	l.logger.Info("seed complete",
		"total", report.Total,
		"created", report.Created,
		"skipped", report.Skipped,
		"invalid", report.Invalid,
		"conflicts", report.Conflicts,
		"errors", report.Errors,
	)

	var errs []error
	for _, r := range results {
		if r.Status == StatusError {
			errs = append(errs, fmt.Errorf("item %d: %w", r.Position, r.Err))
		}
	}
	return report, errors.Join(errs...)
}

func (l *Loader) loadItem(ctx context.Context, item Item) ItemResult {
	res := ItemResult{Position: item.Position}
	if err := ctx.Err(); err != nil {
		res.Status, res.Err = StatusError, err
		return res
	}

	out, err := l.creator.CreateOrReconcile(ctx, item.Raw)
	switch {
	case err == nil:
		res.RecordID = out.History.Record.ID
		if out.Outcome == engine.OutcomeCreated {
			res.Status = StatusCreated
		} else {
			res.Status = StatusSkipped
			l.logger.Debug("seed item already present", "item", item.Position, "record_id", res.RecordID)
		}
	case credit.IsInvalidInput(err):
		res.Status, res.Err = StatusInvalid, err
		l.logger.Warn("seed item invalid", "item", item.Position, "error", err)
	case credit.IsDataConflict(err):
		res.Status, res.Err = StatusConflict, err
		l.logger.Warn("seed item conflicts", "item", item.Position, "error", err)
	default:
		res.Status, res.Err = StatusError, err
		l.logger.Error("seed item failed", "item", item.Position, "error", err)
	}
	return res
}

// Check validates items without touching storage: CUE shape first, then
// canonicalization. Items that pass report StatusCreated with their ID.
func Check(items []Item) (Report, error) {
	v, err := NewValidator()
	if err != nil {
		return Report{}, err
	}

	results := make([]ItemResult, len(items))
	seen := make(map[string]credit.Canonical, len(items))
	for i, item := range items {
		res := ItemResult{Position: item.Position}
		if err := v.Validate(item); err != nil {
			res.Status, res.Err = StatusInvalid, credit.NewInvalidInputError("", "%v", err)
			results[i] = res
			continue
		}
		c, id, err := credit.IdentifyRaw(item.Raw)
		if err != nil {
			res.Status, res.Err = StatusInvalid, err
			results[i] = res
			continue
		}
		res.RecordID = id
		if prev, dup := seen[id]; dup {
			if fields := prev.Diff(c); len(fields) > 0 {
				res.Status, res.Err = StatusConflict, credit.NewDataConflictError(id, fields)
			} else {
				res.Status = StatusSkipped
			}
		} else {
			seen[id] = c
			res.Status = StatusCreated
		}
		results[i] = res
	}
	return summarize(results), nil
}

func summarize(results []ItemResult) Report {
	r := Report{Total: len(results), Results: results}
	for _, res := range results {
		switch res.Status {
		case StatusCreated:
			r.Created++
		case StatusSkipped:
			r.Skipped++
		case StatusInvalid:
			r.Invalid++
		case StatusConflict:
			r.Conflicts++
		case StatusError:
			r.Errors++
		}
	}
	return r
}

