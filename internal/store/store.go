// Package store persists OHLCV bars behind a small interface with in-memory and SQLite backends.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/feature"
)

// BarStore reads and writes candle series keyed by symbol and timeframe.
type BarStore interface {
	Put(ctx context.Context, symbol, timeframe string, bars []feature.Bar) error
	Range(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]feature.Bar, error)
}

// MemoryStore keeps series in a map guarded by a mutex. Reads return copies
// so callers may mutate results without racing writers.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]feature.Bar
}

var _ BarStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]feature.Bar)}
}

func seriesKey(symbol, timeframe string) string { return symbol + "@" + timeframe }

// Put merges bars into the series, replacing any bar that shares a
// millisecond timestamp. Series stay sorted ascending by time.
func (s *MemoryStore) Put(ctx context.Context, symbol, timeframe string, bars []feature.Bar) error {
	if symbol == "" || timeframe == "" {
		return errors.New("symbol and timeframe are required")
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey(symbol, timeframe)
	byTs := make(map[int64]feature.Bar, len(s.data[key])+len(bars))
	for _, b := range s.data[key] {
		byTs[b.Ts.UnixMilli()] = b
	}
	for _, b := range bars {
		byTs[b.Ts.UnixMilli()] = b
	}

	merged := make([]feature.Bar, 0, len(byTs))
	for _, b := range byTs {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Ts.Before(merged[j].Ts) })
	s.data[key] = merged
	return nil
}

// Range returns the bars inside [from, to]; a zero bound is unbounded.
func (s *MemoryStore) Range(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]feature.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []feature.Bar
	for _, b := range s.data[seriesKey(symbol, timeframe)] {
		if !from.IsZero() && b.Ts.Before(from) {
			continue
		}
		if !to.IsZero() && b.Ts.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
