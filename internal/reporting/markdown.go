package reporting

import (
	"fmt"
	"strings"
	"time"

	"ipo-window-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# IPO Intraday Window Backtest\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Outcome: **%s**\n\n", r.RunID, r.Outcome))

	// Parameters
	sb.WriteString("## Parameters\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Train/Test Split | %.0f%% / %.0f%% |\n", r.Parameters.SplitRatio*100, (1-r.Parameters.SplitRatio)*100))
	sb.WriteString(fmt.Sprintf("| Initial Capital | $%s |\n", money(r.Parameters.InitialCapital)))
	sb.WriteString(fmt.Sprintf("| Position Size | %.1f%% of equity |\n", r.Parameters.PositionFraction*100))
	sb.WriteString(fmt.Sprintf("| Minimum Samples | %d |\n", r.Parameters.MinSamples))
	if r.Parameters.DataMode != "" {
		sb.WriteString(fmt.Sprintf("| Data Source | %s |\n", r.Parameters.DataMode))
	}
	sb.WriteString("\n")

	// Universe
	sb.WriteString("## Universe\n\n")
	sb.WriteString("| Subset | Listings | From | To |\n")
	sb.WriteString("|--------|----------|------|----|\n")
	sb.WriteString(fmt.Sprintf("| Training | %d | %s | %s |\n", r.Split.TrainCount, date(r.Split.TrainStart), date(r.Split.TrainEnd)))
	sb.WriteString(fmt.Sprintf("| Testing | %d | %s | %s |\n", r.Split.TestCount, date(r.Split.TestStart), date(r.Split.TestEnd)))
	sb.WriteString(fmt.Sprintf("\nListings with intraday data: %d\n\n", r.SeriesLoaded))

	// Selected window
	sb.WriteString("## Optimal Window\n\n")
	if r.Selected != nil {
		s := r.Selected
		sb.WriteString(fmt.Sprintf("Buy at **%s**, sell at **%s** (%d min hold).\n\n", s.Window.Buy, s.Window.Sell, s.Window.HoldMinutes()))
		sb.WriteString(fmt.Sprintf("Training mean return %.4f%%, win rate %.2f%%, Sharpe %.4f over %d listings.\n\n",
			s.MeanReturn, s.WinRate, s.Sharpe, s.SampleCount))
	} else {
		sb.WriteString("No window reached the minimum sample count in the training subset. No strategy selected.\n\n")
	}

	// Top windows
	sb.WriteString("## Top Training Windows\n\n")
	if len(r.TopWindows) > 0 {
		sb.WriteString(fmt.Sprintf("%d windows met minimum support.\n\n", r.WindowsRanked))
		sb.WriteString("| Rank | Window | Samples | Mean % | Median % | Std % | Win % | Sharpe |\n")
		sb.WriteString("|------|--------|---------|--------|----------|-------|-------|--------|\n")
		for i, w := range r.TopWindows {
			sb.WriteString(fmt.Sprintf("| %d | %s | %d | %.4f | %.4f | %.4f | %.2f | %.4f |\n",
				i+1, w.Window.Label(), w.SampleCount, w.MeanReturn, w.MedianReturn, w.StdReturn, w.WinRate, w.Sharpe))
		}
	} else {
		sb.WriteString("No windows ranked.\n")
	}
	sb.WriteString("\n")

	// Comparison
	sb.WriteString("## Performance Comparison\n\n")
	if len(r.Comparison) > 0 {
		sb.WriteString("| Portfolio | Final Value | Total Return | CAGR | Win Rate | Max Drawdown | Trades |\n")
		sb.WriteString("|-----------|-------------|--------------|------|----------|--------------|--------|\n")
		for _, c := range r.Comparison {
			trades := "-"
			if c.Trades != nil {
				trades = fmt.Sprintf("%d", *c.Trades)
			}
			sb.WriteString(fmt.Sprintf("| %s | $%s | %s | %s | %s | %s | %s |\n",
				c.Label, money(c.FinalValue), pct(c.TotalReturnPct), pct(c.CAGR), pct(c.WinRate), pct(c.MaxDrawdownPct), trades))
		}
	} else {
		sb.WriteString("No portfolios simulated.\n")
	}
	sb.WriteString("\n")

	// Warnings
	if len(r.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("---\n\n")
	sb.WriteString("Past performance does not guarantee future results. Transaction costs and slippage are not modelled.\n")

	return sb.String()
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(domain.DateLayout)
}

// money formats v with thousands separators and two decimals.
func money(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
