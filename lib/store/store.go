// Package store defines the narrow read interface over the external
// historical-ledger database. Snapshot extraction and persistence live in a
// separate process; this layer only queries what that process has written.
package store

import (
	"context"
	"errors"

	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
)

// LedgerReader reads per-day account snapshots for networks whose history is
// served from the ledger database rather than an upstream endpoint.
type LedgerReader interface {
	// AccountSnapshots returns the snapshots for the address on the named
	// network, oldest first.
	AccountSnapshots(ctx context.Context, network, address string) ([]types.Snapshot, error)
	Close(ctx context.Context) error
}

// Errors returned
var (
	ErrDataNotFound = errors.New("data was not found in store")
	ErrUnavailable  = errors.New("ledger store is not configured")
)

// Unavailable is the LedgerReader used when no ledger connection is
// configured; every read fails with ErrUnavailable.
type Unavailable struct{}

func (Unavailable) AccountSnapshots(context.Context, string, string) ([]types.Snapshot, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Close(context.Context) error { return nil }
