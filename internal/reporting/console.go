package reporting

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"ipo-window-lab/internal/domain"
)

// PrintSummary writes the comparison table of r to out.
func PrintSummary(out io.Writer, r *Report) {
	fmt.Fprintf(out, "\nRun %s: %s\n", r.RunID, r.Outcome)
	fmt.Fprintf(out, "  Train %d listings | Test %d listings | %d with data\n",
		r.Split.TrainCount, r.Split.TestCount, r.SeriesLoaded)

	if r.Selected != nil {
		fmt.Fprintf(out, "  Optimal window %s: mean %.2f%% | win %.1f%% | sharpe %.3f | n=%d\n\n",
			r.Selected.Window.Label(), r.Selected.MeanReturn, r.Selected.WinRate, r.Selected.Sharpe, r.Selected.SampleCount)
	} else {
		fmt.Fprintf(out, "  No statistically supported window\n\n")
	}

	if len(r.Comparison) == 0 {
		return
	}

	table := tablewriter.NewWriter(out)
	table.Header("Portfolio", "Final", "Return", "CAGR", "Win", "MaxDD", "Trades")
	for _, c := range r.Comparison {
		trades := "-"
		if c.Trades != nil {
			trades = fmt.Sprintf("%d", *c.Trades)
		}
		table.Append(
			c.Label,
			"$"+money(c.FinalValue),
			pct(c.TotalReturnPct),
			pct(c.CAGR),
			pct(c.WinRate),
			pct(c.MaxDrawdownPct),
			trades,
		)
	}
	table.Render()

	for _, w := range r.Warnings {
		fmt.Fprintf(out, "  ! %s\n", w)
	}
}

// PrintWindows writes up to n ranked windows to out; n <= 0 prints all.
func PrintWindows(out io.Writer, stats []domain.WindowStatistic, n int) {
	if n <= 0 || n > len(stats) {
		n = len(stats)
	}

	table := tablewriter.NewWriter(out)
	table.Header("#", "Window", "N", "Mean%", "Median%", "Std%", "Win%", "Sharpe")
	for i, s := range stats[:n] {
		table.Append(
			fmt.Sprintf("%d", i+1),
			s.Window.Label(),
			fmt.Sprintf("%d", s.SampleCount),
			fmt.Sprintf("%.4f", s.MeanReturn),
			fmt.Sprintf("%.4f", s.MedianReturn),
			fmt.Sprintf("%.4f", s.StdReturn),
			fmt.Sprintf("%.1f", s.WinRate),
			fmt.Sprintf("%.3f", s.Sharpe),
		)
	}
	table.Render()
}
