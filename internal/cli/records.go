package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/offset/internal/api"
	"github.com/roach88/offset/internal/credit"
	"github.com/roach88/offset/internal/engine"
)

// RecordFlags holds the raw record fields accepted by create and id.
type RecordFlags struct {
	Project  string
	Registry string
	Vintage  string
	Quantity string
	Serial   string
	JSON     string
}

func (f *RecordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Project, "project", "", "project name")
	cmd.Flags().StringVar(&f.Registry, "registry", "", "registry name")
	cmd.Flags().StringVar(&f.Vintage, "vintage", "", "vintage year")
	cmd.Flags().StringVar(&f.Quantity, "quantity", "", "quantity (decimal, truncated to 4 places)")
	cmd.Flags().StringVar(&f.Serial, "serial", "", "serial number")
	cmd.Flags().StringVar(&f.JSON, "json", "", "record as a JSON object instead of field flags")
	cmd.MarkFlagsMutuallyExclusive("json", "project")
	cmd.MarkFlagsMutuallyExclusive("json", "registry")
	cmd.MarkFlagsMutuallyExclusive("json", "vintage")
	cmd.MarkFlagsMutuallyExclusive("json", "quantity")
	cmd.MarkFlagsMutuallyExclusive("json", "serial")
}

// raw builds the untrusted record input. Unset flags are left out so the
// canonicalizer reports them as missing.
func (f *RecordFlags) raw() (credit.RawRecord, error) {
	if f.JSON != "" {
		dec := json.NewDecoder(bytes.NewReader([]byte(f.JSON)))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil || raw == nil {
			return nil, credit.NewInvalidInputError("", "--json must be a JSON object")
		}
		return credit.RawRecord(raw), nil
	}

	raw := credit.RawRecord{}
	for field, v := range map[string]string{
		credit.FieldProjectName:  f.Project,
		credit.FieldRegistry:     f.Registry,
		credit.FieldVintage:      f.Vintage,
		credit.FieldQuantity:     f.Quantity,
		credit.FieldSerialNumber: f.Serial,
	} {
		if v != "" {
			raw[field] = v
		}
	}
	return raw, nil
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &RecordFlags{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record, or confirm an identical one exists",
		Long: `Create a credit record.

Fields are canonicalized and hashed into the record ID. If a record with the
same ID exists and its fields match, nothing is written (idempotent). If the
fields differ, the command fails with DATA_CONFLICT.

Examples:
  offset create --project "Wind Farm" --registry Verra --vintage 2024 --quantity 500 --serial VCS-WIND-001
  offset create --json '{"project_name":"Wind Farm","registry":"Verra","vintage":2024,"quantity":"500","serial_number":"VCS-WIND-001"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			raw, err := flags.raw()
			if err != nil {
				return f.Fail("invalid record", err)
			}
			return rootOpts.withEngine(cmd.Context(), func(e *engine.Engine) error {
				res, err := e.CreateOrReconcile(cmd.Context(), raw)
				if err != nil {
					return f.Fail("create failed", err)
				}
				view := api.NewRecordView(res.History)
				return f.Success(map[string]any{"outcome": res.Outcome, "record": view}, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s\n", res.Outcome, view.ID)
					writeRecord(w, view, rootOpts.Verbose)
				})
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// NewRetireCommand creates the retire command.
func NewRetireCommand(rootOpts *RootOptions) *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "retire <id>",
		Short: "Retire a record",
		Long: `Append a RETIRED event to a record.

A record can be retired once. A second attempt fails with ALREADY_RETIRED.

Example:
  offset retire 4a8c759a... --payload '{"beneficiary":"acme"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return rootOpts.withEngine(cmd.Context(), func(e *engine.Engine) error {
				var p json.RawMessage
				if payload != "" {
					p = json.RawMessage(payload)
				}
				ev, err := e.Retire(cmd.Context(), args[0], p)
				if err != nil {
					return f.Fail("retire failed", err)
				}
				view := api.NewEventView(ev)
				return f.Success(view, func(w io.Writer) {
					fmt.Fprintf(w, "retired %s (event %s)\n", view.RecordID, view.ID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload attached to the RETIRED event")
	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a record with its status and events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return rootOpts.withEngine(cmd.Context(), func(e *engine.Engine) error {
				h, err := e.Get(cmd.Context(), args[0])
				if err != nil {
					return f.Fail("show failed", err)
				}
				view := api.NewRecordView(h)
				return f.Success(view, func(w io.Writer) {
					writeRecord(w, view, true)
				})
			})
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List records, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return rootOpts.withEngine(cmd.Context(), func(e *engine.Engine) error {
				hs, err := e.List(cmd.Context())
				if err != nil {
					return f.Fail("list failed", err)
				}
				views := api.NewRecordViews(hs)
				return f.Success(views, func(w io.Writer) {
					if len(views) == 0 {
						fmt.Fprintln(w, "No records.")
						return
					}
					rows := make([][]string, 0, len(views))
					for _, v := range views {
						rows = append(rows, []string{
							shortID(v.ID), v.ProjectName, v.Registry,
							fmt.Sprint(v.Vintage), v.Quantity, v.SerialNumber, string(v.Status),
						})
					}
					fmt.Fprintln(w, renderTable(w,
						[]string{"ID", "Project", "Registry", "Vintage", "Quantity", "Serial", "Status"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
					))
				})
			})
		},
	}
}

// NewIDCommand creates the id command.
func NewIDCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &RecordFlags{}

	cmd := &cobra.Command{
		Use:   "id",
		Short: "Print the canonical form and record ID without touching storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			raw, err := flags.raw()
			if err != nil {
				return f.Fail("invalid record", err)
			}
			c, id, err := credit.IdentifyRaw(raw)
			if err != nil {
				return f.Fail("invalid record", err)
			}
			return f.Success(map[string]any{"id": id, "canonical": c}, func(w io.Writer) {
				fmt.Fprintln(w, id)
				if rootOpts.Verbose {
					writeCanonical(w, c)
				}
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func writeCanonical(w io.Writer, c credit.Canonical) {
	fmt.Fprintf(w, "  project:  %s\n", c.ProjectName)
	fmt.Fprintf(w, "  registry: %s\n", c.Registry)
	fmt.Fprintf(w, "  vintage:  %d\n", c.Vintage)
	fmt.Fprintf(w, "  quantity: %s\n", c.Quantity)
	fmt.Fprintf(w, "  serial:   %s\n", c.SerialNumber)
}

// writeRecord prints a record. With events set, the event history follows.
func writeRecord(w io.Writer, v api.RecordView, events bool) {
	fmt.Fprintf(w, "ID:       %s\n", v.ID)
	fmt.Fprintf(w, "Status:   %s\n", v.Status)
	fmt.Fprintf(w, "Project:  %s\n", v.ProjectName)
	fmt.Fprintf(w, "Registry: %s\n", v.Registry)
	fmt.Fprintf(w, "Vintage:  %d\n", v.Vintage)
	fmt.Fprintf(w, "Quantity: %s\n", v.Quantity)
	fmt.Fprintf(w, "Serial:   %s\n", v.SerialNumber)
	fmt.Fprintf(w, "Created:  %s\n", v.CreatedAt.Format(time.RFC3339))
	if !events {
		return
	}
	rows := make([][]string, 0, len(v.Events))
	for _, ev := range v.Events {
		rows = append(rows, []string{
			string(ev.EventType), ev.ID, ev.CreatedAt.Format(time.RFC3339), string(ev.Payload),
		})
	}
	fmt.Fprintln(w, renderTable(w, []string{"Event", "ID", "At", "Payload"}, rows, nil))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
