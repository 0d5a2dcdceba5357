package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/feature"
)

// ReadCSV loads a candle CSV with headers time|timestamp, open, high, low,
// close, volume. Timestamps may be RFC3339 or unix seconds, headers are
// case-insensitive and unknown columns are ignored. Bars come back sorted
// ascending by time.
func ReadCSV(path string) ([]feature.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var headers []string
	var out []feature.Bar
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++
		if line == 1 {
			headers = rec
			continue
		}

		row := make(map[string]string, len(headers))
		for j, h := range headers {
			if j < len(rec) {
				row[strings.ToLower(strings.TrimSpace(h))] = strings.TrimSpace(rec[j])
			}
		}

		raw := firstField(row, "time", "timestamp")
		if raw == "" {
			continue
		}
		ts, err := parseBarTime(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		bar := feature.Bar{Ts: ts}
		if bar.Open, err = parseField(row, "open"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if bar.High, err = parseField(row, "high"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if bar.Low, err = parseField(row, "low"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if bar.Close, err = parseField(row, "close"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if v := firstField(row, "volume", "vol"); v != "" {
			if bar.Volume, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("line %d: bad volume %q: %w", line, v, err)
			}
		}
		out = append(out, bar)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ts.Before(out[j].Ts) })
	return out, nil
}

// parseBarTime accepts RFC3339 or unix seconds.
func parseBarTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func parseField(row map[string]string, key string) (float64, error) {
	raw := row[key]
	if raw == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", key, raw, err)
	}
	return v, nil
}

// firstField returns the first non-empty value among keys.
func firstField(row map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := row[k]; v != "" {
			return v
		}
	}
	return ""
}
