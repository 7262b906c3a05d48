package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/optfolio/optfolio/internal/core"
)

// Expected CSV header: time,asset,price,return,volume. One row per
// asset per timestamp; rows may arrive in any order.
var csvHeader = []string{"time", "asset", "price", "return", "volume"}

// LoadCSV reads an aligned market series from a CSV file.
func LoadCSV(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening market data: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads an aligned market series from CSV data.
func ReadCSV(r io.Reader) (*Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("reading header: %w", err))
	}
	if len(header) != len(csvHeader) {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("expected header %v, got %v", csvHeader, header))
	}
	for i, col := range csvHeader {
		if header[i] != col {
			return nil, core.WrapError(core.ErrNoData,
				fmt.Errorf("expected column %d to be %q, got %q", i, col, header[i]))
		}
	}

	byTime := make(map[time.Time]map[string]Observation)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("reading line %d: %w", line, err))
		}
		line++

		ts, err := parseTime(record[0])
		if err != nil {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("line %d: %w", line, err))
		}

		price, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("line %d: invalid price %q", line, record[2]))
		}
		ret, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, core.WrapError(core.ErrNoData, fmt.Errorf("line %d: invalid return %q", line, record[3]))
		}
		var volume float64
		if record[4] != "" {
			volume, err = strconv.ParseFloat(record[4], 64)
			if err != nil {
				return nil, core.WrapError(core.ErrNoData, fmt.Errorf("line %d: invalid volume %q", line, record[4]))
			}
		}

		if byTime[ts] == nil {
			byTime[ts] = make(map[string]Observation)
		}
		if _, ok := byTime[ts][record[1]]; ok {
			return nil, core.WrapError(core.ErrNoData,
				fmt.Errorf("line %d: duplicate observation for %s at %s", line, record[1], record[0]))
		}
		byTime[ts][record[1]] = Observation{Price: price, Return: ret, Volume: volume}
	}

	times := make([]time.Time, 0, len(byTime))
	for ts := range byTime {
		times = append(times, ts)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	snaps := make([]Snapshot, 0, len(times))
	for _, ts := range times {
		snaps = append(snaps, Snapshot{Time: ts, Obs: byTime[ts]})
	}

	return NewSeries(snaps)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q (expected RFC3339 or YYYY-MM-DD)", s)
}
