// Package tstamp standardizes the timestamp representations found across
// upstream responses into canonical UTC RFC3339 strings. Records whose
// timestamp cannot be parsed are dropped rather than propagated; the order
// of surviving records is preserved.
package tstamp

import (
	"errors"
	"strconv"
	"time"

	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
)

// ErrUnparseable is returned for a timestamp no known layout matches.
var ErrUnparseable = errors.New("unparseable timestamp")

// layouts seen across the LCD and extractor upstreams. Zone-less layouts are
// interpreted as UTC, never local time.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToUTC parses raw in any accepted layout, including unix second and
// millisecond epochs, and returns it formatted as UTC RFC3339.
func ToUTC(raw string) (string, error) {
	if raw == "" {
		return "", ErrUnparseable
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC().Format(time.RFC3339), nil
		}
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
		// heuristically: epochs past the year 33658 are milliseconds
		if n > 1e12 {
			return time.UnixMilli(n).UTC().Format(time.RFC3339), nil
		}

		return time.Unix(n, 0).UTC().Format(time.RFC3339), nil
	}

	return "", ErrUnparseable
}

// StandardizeTrans filters out transactions without a parseable timestamp
// and rewrites the rest to UTC RFC3339.
func StandardizeTrans(txs []types.Trans) []types.Trans {
	out := make([]types.Trans, 0, len(txs))

	for _, tx := range txs {
		ts, err := ToUTC(tx.Timestamp)
		if err != nil {
			continue
		}

		tx.Timestamp = ts
		out = append(out, tx)
	}

	return out
}

// StandardizeSnapshots filters out snapshots without a parseable timestamp
// and rewrites the rest to UTC RFC3339.
func StandardizeSnapshots(snaps []types.Snapshot) []types.Snapshot {
	out := make([]types.Snapshot, 0, len(snaps))

	for _, s := range snaps {
		ts, err := ToUTC(s.Timestamp)
		if err != nil {
			continue
		}

		s.Timestamp = ts
		out = append(out, s)
	}

	return out
}
