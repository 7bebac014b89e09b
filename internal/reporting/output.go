package reporting

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ipo-window-lab/internal/domain"
	"ipo-window-lab/internal/universe"
)

// Subdirectories of a run directory.
const (
	DataDir     = "data"
	AnalysisDir = "analysis"
	ReportsDir  = "reports"
)

// Artefact file names.
const (
	ConfigFile        = "config.yaml"
	TrainUniverseFile = "train_universe.csv"
	TestUniverseFile  = "test_universe.csv"
	WindowsFile       = "train_window_analysis.csv"
	TrainTradesFile   = "train_trades.csv"
	TestTradesFile    = "test_trades.csv"
	ResultsFile       = "backtest_results.json"
	ReportFile        = "REPORT.md"
)

// RunDir is the artefact directory of one run.
type RunDir struct {
	Path string
}

// RunDirName builds backtest_<date>_<time>_train_test_<a>_<b>_<n>_tickers.
// maxTickers 0 renders as "all".
func RunDirName(at time.Time, splitRatio float64, maxTickers int) string {
	train := int(math.Round(splitRatio * 100))
	tickers := "all"
	if maxTickers > 0 {
		tickers = strconv.Itoa(maxTickers)
	}
	return fmt.Sprintf("backtest_%s_%s_train_test_%d_%d_%s_tickers",
		at.Format(domain.DateLayout), at.Format("150405"), train, 100-train, tickers)
}

// CreateRunDir creates base/name with its subdirectories.
func CreateRunDir(base, name string) (*RunDir, error) {
	d := &RunDir{Path: filepath.Join(base, name)}
	for _, sub := range []string{DataDir, AnalysisDir, ReportsDir} {
		if err := os.MkdirAll(filepath.Join(d.Path, sub), 0755); err != nil {
			return nil, fmt.Errorf("create run dir: %w", err)
		}
	}
	return d, nil
}

// File returns the path of name inside sub.
func (d *RunDir) File(sub, name string) string {
	return filepath.Join(d.Path, sub, name)
}

// Artefacts is everything written for a run.
type Artefacts struct {
	ConfigYAML []byte
	Train      []domain.ListingEvent
	Test       []domain.ListingEvent
	Result     *domain.RunResult
	Report     *Report
}

// WriteAll writes every artefact:
// - data/config.yaml, data/train_universe.csv, data/test_universe.csv
// - analysis/train_window_analysis.csv, analysis/{train,test}_trades.csv
// - analysis/backtest_results.json
// - reports/REPORT.md
func (d *RunDir) WriteAll(a Artefacts) error {
	if len(a.ConfigYAML) > 0 {
		if err := os.WriteFile(d.File(DataDir, ConfigFile), a.ConfigYAML, 0644); err != nil {
			return err
		}
	}
	if err := universe.WriteFile(d.File(DataDir, TrainUniverseFile), a.Train); err != nil {
		return err
	}
	if err := universe.WriteFile(d.File(DataDir, TestUniverseFile), a.Test); err != nil {
		return err
	}

	res := a.Result
	var buf bytes.Buffer
	if err := WriteWindowsCSV(&buf, res.RankedWindows); err != nil {
		return fmt.Errorf("render window analysis: %w", err)
	}
	if err := os.WriteFile(d.File(AnalysisDir, WindowsFile), buf.Bytes(), 0644); err != nil {
		return err
	}

	for name, p := range map[string]*domain.PortfolioResult{TrainTradesFile: res.Train, TestTradesFile: res.Test} {
		if p == nil {
			continue
		}
		buf.Reset()
		if err := WriteTradesCSV(&buf, p.Trades); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := os.WriteFile(d.File(AnalysisDir, name), buf.Bytes(), 0644); err != nil {
			return err
		}
	}

	doc := NewResults(res)
	doc.OutputDir = d.Path
	body, err := doc.MarshalIndent()
	if err != nil {
		return fmt.Errorf("render results: %w", err)
	}
	if err := os.WriteFile(d.File(AnalysisDir, ResultsFile), body, 0644); err != nil {
		return err
	}

	if a.Report != nil {
		if err := os.WriteFile(d.File(ReportsDir, ReportFile), []byte(RenderMarkdown(a.Report)), 0644); err != nil {
			return err
		}
	}
	return nil
}
