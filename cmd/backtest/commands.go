package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ipo-window-lab/internal/config"
	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/pipeline"
	"ipo-window-lab/internal/reporting"
	"ipo-window-lab/internal/universe"
	"ipo-window-lab/internal/window"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the train/test window backtest",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		fromStore, _ := flags.GetBool("from-store")
		noArtefacts, _ := flags.GetBool("no-artefacts")
		top, _ := flags.GetInt("top")

		cfg, err := loadConfig(func(c *config.Config) {
			if flags.Changed("mode") {
				c.Data.Mode, _ = flags.GetString("mode")
			}
			if flags.Changed("universe") {
				c.Data.UniverseCSV, _ = flags.GetString("universe")
			}
			if flags.Changed("max-tickers") {
				c.Backtest.MaxTickers, _ = flags.GetInt("max-tickers")
			}
			if flags.Changed("split") {
				c.Backtest.TrainTestSplit, _ = flags.GetFloat64("split")
			}
			if flags.Changed("output") {
				c.Output.Dir, _ = flags.GetString("output")
			}
			if flags.Changed("workers") {
				c.Backtest.Workers, _ = flags.GetInt("workers")
			}
		})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		logger := log.WithField("cmd", "run")

		stack, err := pipeline.OpenStack(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer stack.Close()

		p := pipeline.New(cfg, stack).WithLogger(logger)
		if fromStore {
			p = p.WithListingStore()
		}
		if noArtefacts {
			p = p.WithoutArtefacts()
		}

		out, err := p.Run(ctx, progressLogger())
		if err != nil {
			return err
		}

		reporting.PrintSummary(os.Stdout, out.Report)
		if top > 0 && len(out.Result.RankedWindows) > 0 {
			fmt.Fprintf(os.Stdout, "\nTop %d training windows\n", top)
			reporting.PrintWindows(os.Stdout, out.Result.RankedWindows, top)
		}
		if out.Dir != "" {
			fmt.Fprintf(os.Stdout, "\nResults saved to %s\n", out.Dir)
		}
		return nil
	},
}

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List the candidate window grid, or the ranked windows of a stored run",
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run-id")
		top, _ := cmd.Flags().GetInt("top")

		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		if runID == "" {
			grid, err := cfg.Grid()
			if err != nil {
				return err
			}
			windows := window.Enumerate(grid)

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("#", "Buy", "Sell", "Hold (min)")
			for i, w := range windows {
				table.Append(fmt.Sprintf("%d", i+1), w.Buy.String(), w.Sell.String(), fmt.Sprintf("%d", w.HoldMinutes()))
			}
			table.Render()
			fmt.Fprintf(os.Stdout, "%d marks, %d windows\n", len(grid.Marks()), len(windows))
			return nil
		}

		ctx := cmd.Context()
		stack, err := pipeline.OpenStack(ctx, cfg, log.WithField("cmd", "windows"))
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer stack.Close()

		stats, err := stack.Stats.GetByRunID(ctx, runID)
		if err != nil {
			return fmt.Errorf("load window statistics for %s: %w", runID, err)
		}
		reporting.PrintWindows(os.Stdout, stats, top)
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		if cfg.Storage.Backend == config.BackendMemory {
			log.Warn("memory backend holds no runs from earlier invocations")
		}

		ctx := cmd.Context()
		stack, err := pipeline.OpenStack(ctx, cfg, log.WithField("cmd", "runs"))
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer stack.Close()

		runs, err := stack.Runs.List(ctx)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Run", "Started", "Outcome", "Window", "Train", "Test", "Benchmark")
		for _, r := range runs {
			win := "-"
			if r.SelectedWindow != nil {
				win = r.SelectedWindow.Label()
			}
			table.Append(r.RunID, r.StartedAt.Format(time.RFC3339), string(r.Outcome), win,
				optMoney(r.TrainFinal), optMoney(r.TestFinal), optMoney(r.BenchmarkFinal))
		}
		table.Render()
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a universe CSV into the listing store",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("csv")

		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		if path == "" {
			path = cfg.Data.UniverseCSV
		}
		if cfg.Storage.Backend == config.BackendMemory {
			log.Warn("memory backend: imported listings are discarded on exit")
		}

		listings, err := universe.LoadFile(path, universe.LoadOptions{})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		stack, err := pipeline.OpenStack(ctx, cfg, log.WithField("cmd", "import"))
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer stack.Close()

		ptrs := make([]*domain.ListingEvent, len(listings))
		for i := range listings {
			ptrs[i] = &listings[i]
		}
		if err := stack.Listings.InsertBulk(ctx, ptrs); err != nil {
			return fmt.Errorf("insert listings: %w", err)
		}

		log.WithFields(log.Fields{"path": path, "listings": len(listings)}).Info("Universe imported")
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.String("mode", "", "Data mode: SIMULATION or POLYGON")
	f.String("universe", "", "Universe CSV path")
	f.Int("max-tickers", 0, "Limit the universe to the first N listings (0 = all)")
	f.Float64("split", 0, "Train fraction in (0,1)")
	f.String("output", "", "Output directory")
	f.Int("workers", 0, "Concurrent workers (0 = NumCPU)")
	f.Int("top", 10, "Ranked windows to print")
	f.Bool("from-store", false, "Read the universe from the listing store instead of CSV")
	f.Bool("no-artefacts", false, "Skip writing the output directory")

	windowsCmd.Flags().String("run-id", "", "Show ranked windows of a stored run")
	windowsCmd.Flags().Int("top", 0, "Rows to print (0 = all)")

	importCmd.Flags().String("csv", "", "Universe CSV (default data.universe_csv)")
}

// progressLogger logs progress every 10 percentage points.
func progressLogger() domain.ProgressFunc {
	next := 0.0
	return func(fraction float64, message string) {
		if fraction < next && fraction < 1 {
			return
		}
		log.WithField("progress", fmt.Sprintf("%3.0f%%", fraction*100)).Info(message)
		for next <= fraction {
			next += 0.1
		}
	}
}

func optMoney(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}
