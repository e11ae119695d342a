package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prilive-com/tradekit/market"
)

var csvHeader = []string{"time", "open", "high", "low", "close", "volume"}

// CSV stores each dataset as <root>/<symbol>_<timeframe>_<source>.csv with a
// bid/ask pair collapsed to the mid price per OHLC field.
type CSV struct {
	root string
}

// NewCSV creates a CSV store rooted at dir, creating it if needed.
func NewCSV(dir string) (*CSV, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &CSV{root: abs}, nil
}

// path builds the file path for a key, rejecting keys that would escape the
// root directory.
func (c *CSV) path(symbol, timeframe, sourceName string) (string, error) {
	name := sanitize(symbol) + "_" + sanitize(timeframe) + "_" + sanitize(sourceName) + ".csv"
	p := filepath.Join(c.root, name)
	if !strings.HasPrefix(p, c.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, name)
	}
	return p, nil
}

// sanitize replaces characters that are unsafe in file names. IG epics
// contain dots, index symbols carets.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '.', '^', ':', ' ':
			return '-'
		}
		return r
	}, s)
}

// Store writes the dataset, replacing any existing file for the same key.
func (c *CSV) Store(data *market.Data) error {
	if data == nil {
		return fmt.Errorf("storage: nil data")
	}
	p, err := c.path(data.Symbol, data.Timeframe, data.Source)
	if err != nil {
		return err
	}

	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", filepath.Base(p), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("storage: write header: %w", err)
	}
	for _, candle := range data.Candles {
		record := []string{
			candle.Time.UTC().Format(time.RFC3339),
			formatFloat(candle.Open.Mid),
			formatFloat(candle.High.Mid),
			formatFloat(candle.Low.Mid),
			formatFloat(candle.Close.Mid),
			formatFloat(candle.Volume),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("storage: write candle: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("storage: flush %s: %w", filepath.Base(p), err)
	}
	return f.Close()
}

// Load reads a dataset back. The CollectedAt timestamp is the file's
// modification time, bid/ask detail is not round-tripped.
func (c *CSV) Load(symbol, timeframe, sourceName string) (*market.Data, error) {
	p, err := c.path(symbol, timeframe, sourceName)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s %s %s", ErrNotStored, symbol, timeframe, sourceName)
		}
		return nil, fmt.Errorf("storage: open %s: %w", filepath.Base(p), err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", filepath.Base(p), err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("storage: empty file %s", filepath.Base(p))
	}

	candles := make([]market.Candle, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("storage: malformed row in %s", filepath.Base(p))
		}
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("storage: bad timestamp %q: %w", rec[0], err)
		}
		values := make([]float64, 5)
		for i := range values {
			values[i], err = strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("storage: bad value %q: %w", rec[i+1], err)
			}
		}
		candles = append(candles, market.Candle{
			Time:   ts,
			Open:   market.MidPrice(values[0]),
			High:   market.MidPrice(values[1]),
			Low:    market.MidPrice(values[2]),
			Close:  market.MidPrice(values[3]),
			Volume: values[4],
		})
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", filepath.Base(p), err)
	}
	return &market.Data{
		Symbol:      symbol,
		Timeframe:   timeframe,
		Source:      sourceName,
		CollectedAt: info.ModTime().UTC(),
		Candles:     candles,
	}, nil
}

// Info lists stored datasets by scanning the root directory. Entries carry
// the sanitized file-name form of each key; file names that do not follow
// the symbol_timeframe_source pattern are skipped.
func (c *CSV) Info() ([]Entry, error) {
	files, err := filepath.Glob(filepath.Join(c.root, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("storage: scan root: %w", err)
	}
	sort.Strings(files)

	var entries []Entry
	for _, p := range files {
		base := strings.TrimSuffix(filepath.Base(p), ".csv")
		parts := strings.Split(base, "_")
		if len(parts) != 3 {
			continue
		}
		n, err := countRows(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Symbol:    parts[0],
			Timeframe: parts[1],
			Source:    parts[2],
			Candles:   n,
		})
	}
	return entries, nil
}

func countRows(p string) (int, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, fmt.Errorf("storage: open %s: %w", filepath.Base(p), err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("storage: read %s: %w", filepath.Base(p), err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	return len(records) - 1, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
