package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tberndt/worksync/internal/reconcile"
	"github.com/tberndt/worksync/internal/record"
	"github.com/tberndt/worksync/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	Owner    string
	Period   string
	Entity   string
	Side     string
}

// ShowRecord is one record in the show command's output.
type ShowRecord struct {
	Key     string          `json:"key"`
	Tag     record.Tag      `json:"tag"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ShowReport is the show command's output payload.
type ShowReport struct {
	Entity   record.EntityType `json:"entity"`
	Owner    string            `json:"owner"`
	Period   string            `json:"period"`
	Side     record.Side       `json:"side"`
	MergedAt string            `json:"merged_at,omitempty"`
	Records  []ShowRecord      `json:"records"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display one replica of an owner's period",
		Long: `Display the stored records of one replica side without merging.

The read takes the owner's shared lock, so a concurrent merge of the same
owner finishes before the records are loaded.

Example:
  worksync show --db ./replicas.db --owner E1042 --period 2024-05 --side reviewer`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite replica database (required)")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner id (required)")
	cmd.Flags().StringVar(&opts.Period, "period", "", "period, e.g. 2024-05 (required)")
	cmd.Flags().StringVar(&opts.Entity, "entity", string(record.EntityWorkTime), "entity to show (worktime|register|checkregister)")
	cmd.Flags().StringVar(&opts.Side, "side", string(record.SideProducer), "replica side (producer|reviewer)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	entity := record.EntityType(opts.Entity)
	if !entity.Valid() {
		_ = formatter.Error(ErrCodeUsage, fmt.Sprintf("unknown entity %q", opts.Entity), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown entity %q", opts.Entity))
	}
	side := record.Side(opts.Side)
	if !side.Valid() {
		_ = formatter.Error(ErrCodeUsage, fmt.Sprintf("invalid side %q", opts.Side), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid side %q", opts.Side))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open replica store", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	rec := reconcile.New(st)
	rep, err := rec.LoadForDisplay(ctx, entity, opts.Owner, opts.Period, side)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to load replica", err)
	}

	report := ShowReport{
		Entity:  entity,
		Owner:   opts.Owner,
		Period:  opts.Period,
		Side:    side,
		Records: make([]ShowRecord, 0, len(rep.Records)),
	}
	if at, ok, err := st.MergedAt(ctx, entity, opts.Owner, opts.Period, side); err == nil && ok {
		report.MergedAt = at.UTC().Format(time.RFC3339)
	}
	for _, r := range rep.Records {
		report.Records = append(report.Records, ShowRecord{Key: r.Key, Tag: r.Tag, Payload: r.Payload})
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "%s %s / %s (%s side)", report.Entity, report.Owner, report.Period, report.Side)
	if report.MergedAt != "" {
		fmt.Fprintf(formatter.Writer, ", merged %s", report.MergedAt)
	}
	fmt.Fprintln(formatter.Writer)
	if len(report.Records) == 0 {
		fmt.Fprintln(formatter.Writer, "  (empty)")
		return nil
	}
	for _, r := range report.Records {
		if len(r.Payload) > 0 {
			fmt.Fprintf(formatter.Writer, "  %-12s %-18s %s\n", r.Key, r.Tag, r.Payload)
		} else {
			fmt.Fprintf(formatter.Writer, "  %-12s %s\n", r.Key, r.Tag)
		}
	}
	return nil
}
