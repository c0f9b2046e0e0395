package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/offset/internal/engine"
	"github.com/roach88/offset/internal/seed"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Workers int
	Check   bool
}

// SeedItemView is one non-created item in seed output.
type SeedItemView struct {
	Position int    `json:"position"`
	RecordID string `json:"record_id,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// SeedReportView is the seed command result.
type SeedReportView struct {
	Path      string         `json:"path"`
	Check     bool           `json:"check"`
	Total     int            `json:"total"`
	Created   int            `json:"created"`
	Skipped   int            `json:"skipped"`
	Invalid   int            `json:"invalid"`
	Conflicts int            `json:"conflicts"`
	Errors    int            `json:"errors"`
	Items     []SeedItemView `json:"items"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Bulk-load records from a JSON, YAML, CSV or XLSX file",
		Long: `Bulk-load records from a file.

The format is chosen by extension: .json, .yaml/.yml, .csv, .xlsx. JSON and
YAML files hold a list of objects; CSV and XLSX files have a header row with
project_name, registry, vintage, quantity and serial_number columns.

Records already stored with identical fields are skipped. Invalid and
conflicting items are reported and do not stop the load.

With --check, items are validated and identified without opening storage.

Exit codes:
  0 - every item created or skipped
  1 - one or more items invalid, conflicting or failed
  2 - command error (unreadable file, storage unavailable)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent workers (overrides seed.workers)")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "validate only, do not write")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *SeedOptions, path string) error {
	f := opts.formatter(cmd)

	items, err := seed.ReadFile(path)
	if err != nil {
		return f.Fail("failed to read seed file", err)
	}

	workers := opts.Config.Seed.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	var report seed.Report
	if opts.Check {
		report, err = seed.Check(items)
		if err != nil {
			return f.Fail("failed to check seed file", err)
		}
	} else {
		err = opts.withEngine(cmd.Context(), func(e *engine.Engine) error {
			var loadErr error
			report, loadErr = seed.NewLoader(e, workers, opts.Logger).Load(cmd.Context(), items)
			return loadErr
		})
		if err != nil {
			return f.Fail("seed failed", err)
		}
	}

	view := newSeedReportView(path, opts.Check, report)
	render := func(w io.Writer) { writeSeedReport(w, view) }
	if !report.Failed() {
		return f.Success(view, render)
	}
	msg := fmt.Sprintf("%d item(s) not loaded", report.Invalid+report.Conflicts+report.Errors)
	if err := f.Failure(view, CLIError{Code: "SEED_FAILED", Message: msg}, render); err != nil {
		return err
	}
	return &ExitError{Code: ExitFailure, Message: msg, Reported: true}
}

func newSeedReportView(path string, check bool, r seed.Report) SeedReportView {
	view := SeedReportView{
		Path:      path,
		Check:     check,
		Total:     r.Total,
		Created:   r.Created,
		Skipped:   r.Skipped,
		Invalid:   r.Invalid,
		Conflicts: r.Conflicts,
		Errors:    r.Errors,
		Items:     []SeedItemView{},
	}
	for _, res := range r.Results {
		if res.Status == seed.StatusCreated {
			continue
		}
		item := SeedItemView{Position: res.Position, RecordID: res.RecordID, Status: string(res.Status)}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		view.Items = append(view.Items, item)
	}
	return view
}

func writeSeedReport(w io.Writer, v SeedReportView) {
	verb := "created"
	if v.Check {
		verb = "valid"
	}
	fmt.Fprintf(w, "%s: %d items, %d %s, %d skipped, %d invalid, %d conflicts, %d errors\n",
		v.Path, v.Total, v.Created, verb, v.Skipped, v.Invalid, v.Conflicts, v.Errors)
	if len(v.Items) == 0 {
		return
	}
	rows := make([][]string, 0, len(v.Items))
	for _, item := range v.Items {
		rows = append(rows, []string{fmt.Sprint(item.Position), item.Status, shortID(item.RecordID), item.Error})
	}
	fmt.Fprintln(w, renderTable(w, []string{"Item", "Status", "ID", "Error"}, rows,
		[]columnAlignment{alignRight}))
}
