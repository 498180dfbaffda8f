package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tberndt/worksync/internal/balance"
	"github.com/tberndt/worksync/internal/config"
	"github.com/tberndt/worksync/internal/merge"
	"github.com/tberndt/worksync/internal/reconcile"
	"github.com/tberndt/worksync/internal/record"
	"github.com/tberndt/worksync/internal/store"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Database   string
	ConfigPath string
	Owner      string
	Period     string
	Entity     string
	Initiator  string

	// Tokens allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens reconcile.TokenGenerator
}

// EntityReport summarizes one entity's reconciliation in a merge run.
type EntityReport struct {
	Entity        record.EntityType    `json:"entity"`
	RunToken      string               `json:"run_token"`
	Records       int                  `json:"records"`
	Deltas        []merge.CounterDelta `json:"deltas,omitempty"`
	Excluded      []string             `json:"excluded,omitempty"`
	WroteProducer bool                 `json:"wrote_producer"`
	WroteReviewer bool                 `json:"wrote_reviewer"`
}

// MergeReport is the merge command's output payload. RunToken is set when
// every entity was merged under the same token, which is always the case
// for the all-entities path; entity-scoped runs carry their tokens in the
// per-entity results.
type MergeReport struct {
	RunToken string         `json:"run_token,omitempty"`
	Owner    string         `json:"owner"`
	Period   string         `json:"period"`
	Results  []EntityReport `json:"results"`
	Balances map[string]int `json:"balances,omitempty"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Reconcile the two replicas of an owner's period",
		Long: `Reconcile the producer and reviewer replicas of one owner and period.

Without --entity all registered entities are merged in one pass under a
single run token; --entity (or a configuration enabling a subset) merges
each selected entity under its own token. With --config, quota grants
from the configuration seed a balance ledger and the post-merge balances
are reported.

Example:
  worksync merge --db ./replicas.db --owner E1042 --period 2024-05
  worksync merge --config worksync.yaml --owner E1042 --period 2024-05 --entity worktime`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite replica database")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to YAML configuration")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner id (required)")
	cmd.Flags().StringVar(&opts.Period, "period", "", "period, e.g. 2024-05 (required)")
	cmd.Flags().StringVar(&opts.Entity, "entity", "", "entity to merge (worktime|register|checkregister); all when empty")
	cmd.Flags().StringVar(&opts.Initiator, "initiator", string(record.SideProducer), "side initiating the merge (producer|reviewer)")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}

func runMerge(opts *MergeOptions, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	initiator := record.Side(opts.Initiator)
	if !initiator.Valid() {
		_ = formatter.Error(ErrCodeUsage, fmt.Sprintf("invalid initiator %q", opts.Initiator), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid initiator %q", opts.Initiator))
	}

	cfg, err := loadMergeConfig(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "configuration error", err)
	}

	entities := cfg.EntityTypes()
	if opts.Entity != "" {
		et := record.EntityType(opts.Entity)
		if !et.Valid() {
			_ = formatter.Error(ErrCodeUsage, fmt.Sprintf("unknown entity %q", opts.Entity), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown entity %q", opts.Entity))
		}
		entities = []record.EntityType{et}
	}

	slog.Info("opening replica store", "path", cfg.StorePath)
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open replica store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing replica store", "error", closeErr)
		}
	}()

	ledger := balance.NewLedger()
	for _, q := range cfg.Quotas {
		ledger.Grant(opts.Owner, q.Kind, q.Days)
	}

	recOpts := []reconcile.Option{
		reconcile.WithCounterHook(ledger),
		reconcile.WithLockShards(cfg.LockShards),
		reconcile.WithAmbiguityThreshold(cfg.AmbiguityThreshold),
	}
	if opts.Tokens != nil {
		recOpts = append(recOpts, reconcile.WithTokenGenerator(opts.Tokens))
	}
	rec := reconcile.New(st, recOpts...)

	ctx := cmd.Context()
	report := MergeReport{Owner: opts.Owner, Period: opts.Period}

	if len(entities) == len(record.Entities()) {
		results, allErr := rec.ReconcileAll(ctx, opts.Owner, opts.Period, initiator)
		for _, et := range record.Entities() {
			if res, ok := results[et]; ok {
				report.Results = append(report.Results, entityReport(res))
			}
		}
		if allErr != nil {
			_ = formatter.Error(ErrCodeMerge, allErr.Error(), report)
			return WrapExitError(ExitFailure, "merge failed", allErr)
		}
	} else {
		for _, et := range entities {
			res, mergeErr := rec.Reconcile(ctx, et, opts.Owner, opts.Period, initiator)
			if mergeErr != nil {
				_ = formatter.Error(ErrCodeMerge, mergeErr.Error(), report)
				return WrapExitError(ExitFailure, "merge failed", mergeErr)
			}
			report.Results = append(report.Results, entityReport(res))
		}
	}
	report.RunToken = sharedRunToken(report.Results)

	if len(cfg.Quotas) > 0 {
		report.Balances = make(map[string]int, len(cfg.Quotas))
		for _, q := range cfg.Quotas {
			report.Balances[q.Kind] = ledger.Balance(opts.Owner, q.Kind)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	printMergeReport(formatter, report)
	return nil
}

// loadMergeConfig resolves the effective configuration for a merge run.
// --config supplies the full configuration; --db overrides its store path
// and, alone, stands in for a minimal configuration.
func loadMergeConfig(opts *MergeOptions) (*config.Config, error) {
	if opts.ConfigPath == "" {
		if opts.Database == "" {
			return nil, fmt.Errorf("either --db or --config is required")
		}
		cfg := &config.Config{StorePath: opts.Database}
		return cfg.WithDefaults(), nil
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Database != "" {
		cfg.StorePath = opts.Database
	}
	return cfg, nil
}

// sharedRunToken returns the one token every result carries, or "" when
// the entities were merged under separate runs.
func sharedRunToken(results []EntityReport) string {
	if len(results) == 0 {
		return ""
	}
	token := results[0].RunToken
	for _, res := range results[1:] {
		if res.RunToken != token {
			return ""
		}
	}
	return token
}

func entityReport(res *reconcile.Result) EntityReport {
	rep := EntityReport{
		Entity:        res.Entity,
		RunToken:      res.RunToken,
		Records:       len(res.Merged),
		Deltas:        res.Deltas,
		WroteProducer: res.WroteProducer,
		WroteReviewer: res.WroteReviewer,
	}
	for _, ex := range res.Excluded {
		rep.Excluded = append(rep.Excluded, ex.Key)
	}
	return rep
}

func printMergeReport(f *OutputFormatter, report MergeReport) {
	if report.RunToken != "" {
		fmt.Fprintf(f.Writer, "Merged %s / %s (run %s)\n", report.Owner, report.Period, report.RunToken)
	} else {
		fmt.Fprintf(f.Writer, "Merged %s / %s\n", report.Owner, report.Period)
	}
	for _, res := range report.Results {
		fmt.Fprintf(f.Writer, "  %-13s %d record(s)", res.Entity, res.Records)
		if report.RunToken == "" {
			fmt.Fprintf(f.Writer, " run %s", res.RunToken)
		}
		if !res.WroteProducer && !res.WroteReviewer {
			fmt.Fprint(f.Writer, " (unchanged)")
		}
		fmt.Fprintln(f.Writer)
		for _, d := range res.Deltas {
			fmt.Fprintf(f.Writer, "    %+d %s (%s)\n", d.Amount, d.Kind, d.Key)
		}
		for _, key := range res.Excluded {
			fmt.Fprintf(f.Writer, "    skipped %s: unknown tag\n", key)
		}
	}
	for kind, days := range report.Balances {
		fmt.Fprintf(f.Writer, "  balance %s: %d day(s)\n", kind, days)
	}
}

// configureLogging routes slog to stderr at a level matching --verbose.
func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
