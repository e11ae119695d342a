// Package storage persists collected market data. The Memory implementation
// backs tests and short-lived pipelines, the CSV implementation writes one
// file per symbol/timeframe/source under a fixed root directory.
package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prilive-com/tradekit/market"
)

var (
	// ErrNotStored indicates no data exists for the requested key.
	ErrNotStored = errors.New("storage: no data stored for key")

	// ErrPathTraversal indicates a storage key resolved outside the root
	// directory.
	ErrPathTraversal = errors.New("storage: path traversal detected")
)

// Storage persists and retrieves collected market data keyed by symbol,
// timeframe, and source.
type Storage interface {
	Store(data *market.Data) error
	Load(symbol, timeframe, sourceName string) (*market.Data, error)
	Info() ([]Entry, error)
}

// Entry describes one stored dataset.
type Entry struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Source    string `json:"source"`
	Candles   int    `json:"candles"`
}

func key(symbol, timeframe, sourceName string) string {
	return symbol + "|" + timeframe + "|" + sourceName
}

// Memory is an in-process Storage. Safe for concurrent use. Store replaces
// any existing dataset under the same key.
type Memory struct {
	mu   sync.RWMutex
	data map[string]*market.Data
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]*market.Data)}
}

// Store saves a copy of data under its symbol/timeframe/source key.
func (m *Memory) Store(data *market.Data) error {
	if data == nil {
		return fmt.Errorf("storage: nil data")
	}
	cp := *data
	cp.Candles = append([]market.Candle(nil), data.Candles...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key(data.Symbol, data.Timeframe, data.Source)] = &cp
	return nil
}

// Load retrieves a stored dataset, or ErrNotStored.
func (m *Memory) Load(symbol, timeframe, sourceName string) (*market.Data, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key(symbol, timeframe, sourceName)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s %s", ErrNotStored, symbol, timeframe, sourceName)
	}
	cp := *data
	cp.Candles = append([]market.Candle(nil), data.Candles...)
	return &cp, nil
}

// Info lists stored datasets sorted by key.
func (m *Memory) Info() ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.data))
	for _, d := range m.data {
		entries = append(entries, Entry{
			Symbol:    d.Symbol,
			Timeframe: d.Timeframe,
			Source:    d.Source,
			Candles:   len(d.Candles),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Timeframe != b.Timeframe {
			return a.Timeframe < b.Timeframe
		}
		return a.Source < b.Source
	})
	return entries, nil
}
