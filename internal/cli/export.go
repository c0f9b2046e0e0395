package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/roach88/offset/internal/credit"
	"github.com/roach88/offset/internal/engine"
)

// exportSheet is the worksheet name used by export.
const exportSheet = "records"

// exportHeaders is the export column order. The first five match the seed
// column names, so an exported workbook can be seeded back.
var exportHeaders = []any{
	credit.FieldProjectName,
	credit.FieldRegistry,
	credit.FieldVintage,
	credit.FieldQuantity,
	credit.FieldSerialNumber,
	"id",
	"status",
	"created_at",
	"retired_at",
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <out.xlsx>",
		Short: "Export all records to an Excel workbook",
		Long: `Export every record, oldest first, to an Excel workbook.

The workbook has one sheet with a header row. Its first five columns use the
seed column names, so "offset seed out.xlsx" reloads it (all items skipped).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return rootOpts.withEngine(cmd.Context(), func(e *engine.Engine) error {
				hs, err := e.List(cmd.Context())
				if err != nil {
					return f.Fail("export failed", err)
				}
				if err := writeWorkbook(args[0], hs); err != nil {
					return f.Fail("export failed", err)
				}
				result := map[string]any{"path": args[0], "records": len(hs)}
				return f.Success(result, func(w io.Writer) {
					fmt.Fprintf(w, "exported %d records to %s\n", len(hs), args[0])
				})
			})
		},
	}
}

// writeWorkbook saves histories as rows of a new workbook at path.
func writeWorkbook(path string, hs []credit.History) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, h := range hs {
		retiredAt := ""
		for _, ev := range h.Events {
			if ev.Type == credit.EventRetired {
				retiredAt = ev.CreatedAt.UTC().Format(time.RFC3339)
			}
		}
		row := []any{
			h.Record.ProjectName,
			h.Record.Registry,
			h.Record.Vintage,
			h.Record.Quantity,
			h.Record.SerialNumber,
			h.Record.ID,
			string(h.Status()),
			h.Record.CreatedAt.UTC().Format(time.RFC3339),
			retiredAt,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
