package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/grainscale/pkg/batch"
	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/store"
)

// runsOpts holds the runs command flags.
type runsOpts struct {
	dir         string
	kind        string
	limit       int
	interactive bool
}

func (c *CLI) runsCommand() *cobra.Command {
	var opts runsOpts

	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List recorded batch and sweep runs, or show one",
		Example: `  grainscale runs --dir noise_output
  grainscale runs -i --kind sweep --dir sweep_output
  grainscale runs 3f2a1c9e-... --dir noise_output`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.kind != "" && opts.kind != store.KindBatch && opts.kind != store.KindSweep {
				return errors.New(errors.ErrCodeInvalidInput,
					"unknown run kind %q (valid: %s, %s)", opts.kind, store.KindBatch, store.KindSweep)
			}
			ctx := cmd.Context()
			ledger, err := c.openLedger(ctx, opts.dir)
			if err != nil {
				return err
			}
			defer ledger.Close()

			if len(args) == 1 {
				rec, err := ledger.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printRecord(rec)
			}
			return c.listRuns(ctx, ledger, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", batch.DefaultOutputDir, "output directory holding the runs/ ledger")
	cmd.Flags().StringVar(&opts.kind, "kind", "", "only show batch or sweep runs")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "maximum runs to list (0 for all)")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "pick a run interactively")

	return cmd
}

func (c *CLI) listRuns(ctx context.Context, ledger store.Store, opts runsOpts) error {
	records, err := ledger.List(ctx, opts.kind, opts.limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		printInfo("No runs recorded")
		return nil
	}

	if !opts.interactive {
		m := NewRunListModel(records)
		m.Cursor = -1
		rows := make([][]string, len(records))
		for i := range records {
			rows[i] = m.row(i)[1:]
		}
		fmt.Println(renderTable(runHeaders[1:], rows, -1))
		return nil
	}

	final, err := tea.NewProgram(NewRunListModel(records), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(RunListModel); ok && m.Selected != nil {
		return printRecord(m.Selected)
	}
	return nil
}

// printRecord prints a record's header and its indented detail.
func printRecord(rec *store.Record) error {
	printKeyValue("Run", rec.ID)
	printKeyValue("Kind", rec.Kind)
	printKeyValue("Created", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Println(countsLine(rec.Counts))
	if len(rec.Detail) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, rec.Detail, "", "  "); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "format run detail")
	}
	fmt.Println(buf.String())
	return nil
}
