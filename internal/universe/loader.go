package universe

import (
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ipo-window-lab/internal/domain"
)

// csvRow mirrors the universe CSV header.
type csvRow struct {
	Ticker     string `csv:"Ticker"`
	Company    string `csv:"Company"`
	IPODate    string `csv:"IPO_Date"`
	OfferPrice string `csv:"IPO_Price"`
}

// LoadOptions filter the universe while loading.
type LoadOptions struct {
	Start      *time.Time // inclusive, nil = unbounded
	End        *time.Time // inclusive, nil = unbounded
	MaxTickers int        // 0 = no cap, applied after date sort
}

var upper = cases.Upper(language.Und)

// LoadFile reads a universe CSV from path.
func LoadFile(path string, opts LoadOptions) ([]domain.ListingEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe: %w", err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load parses universe rows from r.
// Rows with an empty ticker or unparsable date are skipped; duplicate
// (ticker, date) rows keep the first occurrence.
func Load(r io.Reader, opts LoadOptions) ([]domain.ListingEvent, error) {
	var rows []*csvRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse universe csv: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	listings := make([]domain.ListingEvent, 0, len(rows))
	skipped := 0

	for _, row := range rows {
		ticker := upper.String(strings.TrimSpace(row.Ticker))
		if ticker == "" {
			skipped++
			continue
		}

		date, err := parseDate(row.IPODate)
		if err != nil {
			skipped++
			continue
		}
		if opts.Start != nil && date.Before(*opts.Start) {
			continue
		}
		if opts.End != nil && date.After(*opts.End) {
			continue
		}

		key := ticker + "|" + date.Format(domain.DateLayout)
		if seen[key] {
			continue
		}
		seen[key] = true

		company := strings.TrimSpace(row.Company)
		if company == "" {
			company = ticker
		}

		price, err := strconv.ParseFloat(strings.TrimSpace(row.OfferPrice), 64)
		if err != nil || price <= 0 {
			price = SyntheticOfferPrice(ticker, date)
		}

		listings = append(listings, domain.ListingEvent{
			Ticker:      ticker,
			Company:     company,
			ListingDate: date,
			OfferPrice:  price,
		})
	}

	if skipped > 0 {
		log.WithField("skipped", skipped).Warn("universe rows without ticker or valid date")
	}

	listings = SortByDate(listings)
	if opts.MaxTickers > 0 && len(listings) > opts.MaxTickers {
		listings = listings[:opts.MaxTickers]
	}
	return listings, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{domain.DateLayout, "2006-01-02 15:04:05", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// SyntheticOfferPrice derives a stable offer price for rows without one.
// Lognormal around e^3 scaled by listing year, clipped to [5, 500].
func SyntheticOfferPrice(ticker string, date time.Time) float64 {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	rng := rand.New(rand.NewPCG(h.Sum64(), 0x1b0))

	base := math.Exp(3.0 + 0.8*rng.NormFloat64())
	yearFactor := 1 + float64(date.Year()-2000)*0.02
	price := base * yearFactor * 10

	return math.Round(math.Min(math.Max(price, 5), 500)*100) / 100
}

// WriteFile writes listings as a universe CSV.
func WriteFile(path string, listings []domain.ListingEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create universe file: %w", err)
	}
	defer f.Close()
	return Write(f, listings)
}

// Write encodes listings in the universe CSV layout.
func Write(w io.Writer, listings []domain.ListingEvent) error {
	rows := make([]*csvRow, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, &csvRow{
			Ticker:     l.Ticker,
			Company:    l.Company,
			IPODate:    l.DateKey(),
			OfferPrice: strconv.FormatFloat(l.OfferPrice, 'f', 2, 64),
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write universe csv: %w", err)
	}
	return nil
}
