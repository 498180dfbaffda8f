package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tberndt/worksync/internal/record"
)

// VocabEntry maps one tag to its canonical merge role.
type VocabEntry struct {
	Tag  record.Tag  `json:"tag"`
	Role record.Role `json:"role"`
}

// VocabReport lists one entity's tag vocabulary.
type VocabReport struct {
	Entity  record.EntityType `json:"entity"`
	Settled record.Tag        `json:"settled"`
	Tags    []VocabEntry      `json:"tags"`
}

// NewVocabCommand creates the vocab command.
func NewVocabCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab [entity]",
		Short: "List an entity's tag vocabulary",
		Long: `List the status tags an entity's records may carry and the merge
role each tag maps to. Without an argument all entities are listed.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVocab(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runVocab(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	entities := record.Entities()
	if len(args) == 1 {
		et := record.EntityType(args[0])
		if !et.Valid() {
			_ = formatter.Error(ErrCodeUsage, fmt.Sprintf("unknown entity %q", args[0]), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown entity %q", args[0]))
		}
		entities = []record.EntityType{et}
	}

	reports := make([]VocabReport, 0, len(entities))
	for _, et := range entities {
		desc, ok := record.DescriptorFor(et)
		if !ok {
			continue
		}
		rep := VocabReport{Entity: et, Settled: desc.Vocab.Settled()}
		for _, tag := range desc.Vocab.Tags() {
			role, _ := desc.Vocab.Role(tag)
			rep.Tags = append(rep.Tags, VocabEntry{Tag: tag, Role: role})
		}
		reports = append(reports, rep)
	}

	if formatter.Format == "json" {
		return formatter.Success(reports)
	}

	for _, rep := range reports {
		fmt.Fprintf(formatter.Writer, "%s (settles to %s)\n", rep.Entity, rep.Settled)
		for _, e := range rep.Tags {
			fmt.Fprintf(formatter.Writer, "  %-18s %s\n", e.Tag, e.Role)
		}
	}
	return nil
}
