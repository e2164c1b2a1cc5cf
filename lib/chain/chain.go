// Package chain defines the interface required for all chain adapters and
// builds the per-network dispatch map. Dispatch is exhaustive over the closed
// network set: a network carrying capabilities without an adapter wired here
// is a startup failure.
package chain

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ChorusOne/anthem-sub000/lib/cache"
	"github.com/ChorusOne/anthem-sub000/lib/chain/celo"
	"github.com/ChorusOne/anthem-sub000/lib/chain/cosmos"
	"github.com/ChorusOne/anthem-sub000/lib/chain/oasis"
	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
	"github.com/ChorusOne/anthem-sub000/lib/fetch"
	"github.com/ChorusOne/anthem-sub000/lib/hosts"
	"github.com/ChorusOne/anthem-sub000/lib/network"
	"github.com/ChorusOne/anthem-sub000/lib/page"
	"github.com/ChorusOne/anthem-sub000/lib/store"
)

// Chain is the contract every per-network adapter implements. Adapters
// translate one chain's REST shape into the unified schema; they never make
// capability decisions, that is the orchestrator's job.
type Chain interface {
	Name() string
	Balances(ctx context.Context, address string) (types.Balance, error)
	Transaction(ctx context.Context, hash string) (types.Trans, error)
	Transactions(ctx context.Context, req page.Request) (page.Result[types.Trans], error)
	AccountHistory(ctx context.Context, address string) ([]types.Snapshot, error)
	Broadcast(ctx context.Context, payload []byte) (string, error)
}

// ValidatorDirectory is implemented by adapters that expose a validator
// directory (currently Oasis only).
type ValidatorDirectory interface {
	Validators(ctx context.Context) ([]types.Validator, error)
}

// ErrNoAdapter reports a capable network with no adapter case in Init.
var ErrNoAdapter = errors.New("no chain adapter wired for network")

// Deps carries the shared collaborators adapters are built from.
type Deps struct {
	Fetch    *fetch.Client
	Cache    *cache.Service
	Hosts    *hosts.Resolver
	Registry *network.Registry
	Ledger   store.LedgerReader
	Log      *zap.Logger
}

// Init builds the adapter for every network in the registry. The switch must
// cover the closed network set; an uncovered capable network aborts startup
// instead of surfacing as a nil map entry at request time.
func Init(deps Deps) (map[string]Chain, error) {
	ledger := deps.Ledger
	if ledger == nil {
		ledger = store.Unavailable{}
	}

	m := make(map[string]Chain)

	for _, def := range deps.Registry.All() {
		if !def.HasAnyCapability() {
			continue
		}

		host, err := deps.Hosts.HostFor(def.Name)
		if err != nil {
			return nil, err
		}

		switch def.Name {
		case network.Cosmos, network.Terra, network.Kava:
			m[def.Name] = cosmos.New(def, host, deps.Fetch, ledger, deps.Log)
		case network.Oasis:
			m[def.Name] = oasis.New(def, host, deps.Fetch, deps.Cache, deps.Log)
		case network.Celo:
			m[def.Name] = celo.New(def, host, deps.Fetch, deps.Log)
		default:
			return nil, fmt.Errorf("%w: %s", ErrNoAdapter, def.Name)
		}
	}

	return m, nil
}
