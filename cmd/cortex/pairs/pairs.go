// Package pairscmder provides the pairs command for finding intersecting or
// nearby regions within a scan.
package pairscmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cortex/cmd/cortex/cmdutil"
	"github.com/papercomputeco/cortex/pkg/cliui"
	"github.com/papercomputeco/cortex/pkg/config"
	"github.com/papercomputeco/cortex/pkg/spatial"
	"github.com/papercomputeco/cortex/pkg/storage"
)

const pairsLongDesc string = `Find pairs of regions of a scan that intersect or lie within a distance.

Without --epsilon the intersects predicate is used: pairs whose surfaces touch
or cross. With --epsilon E the within predicate is used: pairs whose surfaces
are at most E apart, nearest first. Within pairs are marked EXACT when the
surfaces touch and NEAR otherwise.

--lod selects the level of detail; "native" (the default) uses the full
resolution surfaces. --explain prints the PostgreSQL query plan instead of
running the query.

Examples:
  cortex pairs sub-01_T1w.nii.gz
  cortex pairs sub-01_T1w.nii.gz --lod 2
  cortex pairs sub-01_T1w.nii.gz --epsilon 1.5 --format markdown
  cortex pairs sub-01_T1w.nii.gz --epsilon 0 --explain --driver postgres`

const pairsShortDesc string = "Find intersecting or nearby region pairs"

type pairsCommander struct {
	storage   cmdutil.StorageFlagValues
	lod       string
	epsilon   string
	predicate string
	explain   bool
	format    string
}

func NewPairsCmd() *cobra.Command {
	cmder := &pairsCommander{}

	cmd := &cobra.Command{
		Use:   "pairs <scan>",
		Short: pairsShortDesc,
		Long:  pairsLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmdutil.AddFormatFlag(cmd, &cmder.format)
	cmd.Flags().StringVar(&cmder.lod, "lod", "native", `Level of detail: "native" or a non-negative integer`)
	cmd.Flags().StringVarP(&cmder.epsilon, "epsilon", "e", "", "Maximum surface distance; selects the within predicate")
	cmd.Flags().StringVarP(&cmder.predicate, "predicate", "p", "", "Predicate: intersects or within")
	cmd.Flags().BoolVar(&cmder.explain, "explain", false, "Print the query plan (PostgreSQL only)")

	return cmd
}

func (c *pairsCommander) run(cmd *cobra.Command, scanFile string) error {
	if err := cmdutil.ValidateFormat(c.format); err != nil {
		return err
	}

	q, err := spatial.ParseQuery(scanFile, c.lod, c.predicate, c.epsilon)
	if err != nil {
		return err
	}

	cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags)
	if err != nil {
		return err
	}
	l := cmdutil.NewLogger(cmd)

	ctx := cmd.Context()
	driver, err := cmdutil.OpenDriver(ctx, cmd, cfg, l, true)
	if err != nil {
		return err
	}
	defer cmdutil.CloseAll(l, driver)

	finder := spatial.NewFinder(driver, l)
	out := cmd.OutOrStdout()

	if c.explain {
		plan, err := finder.Explain(ctx, q)
		if err != nil {
			return err
		}
		if c.format == cmdutil.FormatJSON {
			return cmdutil.WriteJSON(out, plan)
		}
		for _, line := range plan {
			fmt.Fprintln(out, line)
		}
		return nil
	}

	result, err := finder.Find(ctx, q)
	if err != nil {
		return err
	}

	if c.format == cmdutil.FormatJSON {
		if result.Pairs == nil {
			result.Pairs = []storage.RegionPair{}
		}
		return cmdutil.WriteJSON(out, result)
	}

	headers, rows := pairRows(result)
	title := fmt.Sprintf("%s pairs of %s at level %s", result.Predicate, scanFile, result.Level)
	if err := cmdutil.WriteRows(out, c.format, title, headers, rows); err != nil {
		return err
	}

	summary := fmt.Sprintf("%d of %d candidate pairs across %d surfaces in %s",
		len(result.Pairs), result.Candidates, result.LODCount, cliui.FormatDuration(result.Elapsed))
	if c.format == cmdutil.FormatMarkdown {
		fmt.Fprintf(out, "\n%s\n", summary)
		return nil
	}
	fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render(summary))
	return nil
}

func pairRows(result *spatial.Result) ([]string, [][]string) {
	headers := []string{"#", "Region A", "Region B"}
	if result.Predicate == storage.Within {
		headers = append(headers, "Distance", "Contact")
	}

	rows := make([][]string, 0, len(result.Pairs))
	for i, p := range result.Pairs {
		row := []string{strconv.Itoa(i + 1), p.A.Name, p.B.Name}
		if result.Predicate == storage.Within {
			distance := ""
			if p.Distance != nil {
				distance = strconv.FormatFloat(*p.Distance, 'f', 4, 64)
			}
			contact := "NEAR"
			if p.Intersects {
				contact = "EXACT"
			}
			row = append(row, distance, contact)
		}
		rows = append(rows, row)
	}
	return headers, rows
}
