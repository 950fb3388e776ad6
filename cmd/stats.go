package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/leadscope/leadscope/pkg/lead"
	"github.com/leadscope/leadscope/pkg/manager"
	"github.com/spf13/cobra"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the leads in the database.",
	Long:  "Prints category counts, score distribution, budgets and sources of the stored leads.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		defer ws.close()

		st := ws.mgr.Statistics()
		if st.Total == 0 {
			fmt.Println("No leads in the database to generate stats.")
			return nil
		}
		printStats(st, ws.mgr.Engine().Criteria().HotThreshold)
		return nil
	},
}

func printStats(st manager.Stats, hotThreshold float64) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "CATEGORY\tLEADS\tSHARE\t")
	for _, c := range []lead.Category{lead.CategoryQualified, lead.CategoryUnqualified, lead.CategoryUnscored} {
		n := st.ByCategory[c]
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\t\n", c, n, percent(n, st.Total))
	}
	fmt.Fprintf(w, "hot (>= %s)\t%d\t%.1f%%\t\n", humanize.Ftoa(hotThreshold), st.Hot, percent(st.Hot, st.Total))
	fmt.Fprintln(w, " \t \t \t")
	fmt.Fprintf(w, "TOTAL\t%d\t\t\n", st.Total)
	w.Flush()
	fmt.Println()

	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	if st.Scored > 0 {
		fmt.Fprintf(w, "Average score:\t%.2f\n", st.AverageScore)
		fmt.Fprintf(w, "Score range:\t%.2f - %.2f\n", st.MinScore, st.MaxScore)
	}
	fmt.Fprintf(w, "Qualification rate:\t%.2f%%\n", st.QualificationRate)
	fmt.Fprintf(w, "Contacted:\t%d\n", st.Contacted)
	fmt.Fprintf(w, "Decision makers:\t%d\n", st.DecisionMakers)
	fmt.Fprintf(w, "With a budget:\t%d\n", st.WithBudget)
	if st.WithBudget > 0 {
		fmt.Fprintf(w, "Average budget:\t$%s\n", humanize.CommafWithDigits(st.AverageBudget, 0))
	}
	w.Flush()

	if st.Scored > 0 {
		fmt.Println("\nScore distribution:")
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, b := range st.Distribution {
			fmt.Fprintf(w, "  %s\t%s\t%d\n", b.Label, strings.Repeat("#", bar(b.Count, st.Scored)), b.Count)
		}
		w.Flush()
	}

	fmt.Println("\nPipeline:")
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, s := range lead.Statuses {
		n := st.ByStatus[s]
		fmt.Fprintf(w, "  %s\t%s\t%d\n", s, strings.Repeat("#", bar(n, st.Total)), n)
	}
	w.Flush()

	if len(st.BySource) > 0 {
		fmt.Println("\nSources:")
		sources := make([]string, 0, len(st.BySource))
		for s := range st.BySource {
			sources = append(sources, s)
		}
		sort.Slice(sources, func(i, j int) bool {
			if st.BySource[sources[i]] != st.BySource[sources[j]] {
				return st.BySource[sources[i]] > st.BySource[sources[j]]
			}
			return sources[i] < sources[j]
		})
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, s := range sources {
			fmt.Fprintf(w, "  %s\t%d\n", s, st.BySource[s])
		}
		w.Flush()
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

// bar scales a count to a 40-column histogram bar.
func bar(n, total int) int {
	if total == 0 || n == 0 {
		return 0
	}
	if w := n * 40 / total; w > 0 {
		return w
	}
	return 1
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
