// Package aggregator is the query-facing orchestration layer. Each method
// resolves the target network, enforces its capability contract, dispatches
// to the chain adapter and translates the result into the unified schema.
// No chain-specific logic lives here.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ChorusOne/anthem-sub000/lib/chain"
	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
	"github.com/ChorusOne/anthem-sub000/lib/network"
	"github.com/ChorusOne/anthem-sub000/lib/page"
	"github.com/ChorusOne/anthem-sub000/lib/prices"
	"github.com/ChorusOne/anthem-sub000/lib/report"
)

// ErrNoValidatorDirectory reports a validators query against a network whose
// adapter does not expose a directory.
var ErrNoValidatorDirectory = errors.New("network has no validator directory")

// downloadPageSize is the page size used when walking full histories for
// bulk download.
const downloadPageSize = 100

// Service orchestrates queries across the per-network adapters.
type Service struct {
	reg    *network.Registry
	chains map[string]chain.Chain
	prices *prices.Client
	rep    report.Reporter
	log    *zap.Logger
}

func New(reg *network.Registry, chains map[string]chain.Chain, pc *prices.Client, rep report.Reporter, log *zap.Logger) *Service {
	if rep == nil {
		rep = report.Nop{}
	}

	return &Service{reg: reg, chains: chains, prices: pc, rep: rep, log: log.Named("aggregator")}
}

// Networks returns every supported network definition with its capability
// flags, in a stable order.
func (s *Service) Networks() []network.Definition {
	return s.reg.All()
}

// resolve finds the network definition for a query: the explicit name wins,
// otherwise the network is derived from the address format.
func (s *Service) resolve(name, address string) (network.Definition, error) {
	if name != "" {
		return s.reg.ByName(name)
	}

	return s.reg.FromAddress(address)
}

// dispatch returns the adapter for the definition after the capability gate.
// The gate runs first so unsupported queries never cause upstream I/O.
func (s *Service) dispatch(def network.Definition, capability network.Capability) (chain.Chain, error) {
	if err := s.reg.RequireCapability(def.Name, capability); err != nil {
		return nil, err
	}

	c, ok := s.chains[def.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrNoAdapter, def.Name)
	}

	return c, nil
}

// AccountBalances returns the five-category balance for the address. The
// network may be named explicitly or derived from the address format.
func (s *Service) AccountBalances(ctx context.Context, networkName, address string) (types.Balance, error) {
	def, err := s.resolve(networkName, address)
	if err != nil {
		return types.Balance{}, err
	}

	c, err := s.dispatch(def, network.CapBalances)
	if err != nil {
		return types.Balance{}, err
	}

	bal, err := c.Balances(ctx, address)
	if err != nil {
		s.rep.Report(err, zap.String("network", def.Name), zap.String("op", "balances"))

		return types.Balance{}, err
	}

	return bal, nil
}

// Transactions returns one page of the address's transaction history.
func (s *Service) Transactions(ctx context.Context, networkName string, req page.Request) (page.Result[types.Trans], error) {
	def, err := s.resolve(networkName, req.Address)
	if err != nil {
		return page.Result[types.Trans]{}, err
	}

	c, err := s.dispatch(def, network.CapTransactions)
	if err != nil {
		return page.Result[types.Trans]{}, err
	}

	res, err := c.Transactions(ctx, req)
	if err != nil {
		s.rep.Report(err, zap.String("network", def.Name), zap.String("op", "transactions"))

		return page.Result[types.Trans]{}, err
	}

	return res, nil
}

// Transaction returns one transaction by hash. Hashes carry no network
// information, so the network must be named explicitly.
func (s *Service) Transaction(ctx context.Context, networkName, hash string) (types.Trans, error) {
	def, err := s.reg.ByName(networkName)
	if err != nil {
		return types.Trans{}, err
	}

	c, err := s.dispatch(def, network.CapTransactions)
	if err != nil {
		return types.Trans{}, err
	}

	tx, err := c.Transaction(ctx, hash)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			s.rep.Report(err, zap.String("network", def.Name), zap.String("op", "transaction"))
		}

		return types.Trans{}, err
	}

	return tx, nil
}

// AccountHistory returns the address's balance snapshots, optionally
// enriched with the fiat closing price of each snapshot day.
func (s *Service) AccountHistory(ctx context.Context, networkName, address, fiat string) ([]types.Snapshot, error) {
	def, err := s.resolve(networkName, address)
	if err != nil {
		return nil, err
	}

	c, err := s.dispatch(def, network.CapPortfolio)
	if err != nil {
		return nil, err
	}

	snaps, err := c.AccountHistory(ctx, address)
	if err != nil {
		s.rep.Report(err, zap.String("network", def.Name), zap.String("op", "history"))

		return nil, err
	}

	if fiat != "" && def.Supports(network.CapFiatPrices) {
		if err := s.enrichFiat(ctx, def, fiat, snaps); err != nil {
			// snapshots are still useful without prices
			s.log.Warn("fiat enrichment failed", zap.String("network", def.Name), zap.Error(err))
		}
	}

	return snaps, nil
}

// enrichFiat fills each snapshot's FiatPrice from the daily price history,
// matching on the snapshot's UTC day.
func (s *Service) enrichFiat(ctx context.Context, def network.Definition, fiat string, snaps []types.Snapshot) error {
	hist, err := s.prices.FiatPriceHistory(ctx, fiat, def.Name)
	if err != nil {
		return err
	}

	byDay := make(map[string]float64, len(hist))
	for _, p := range hist {
		byDay[time.Unix(p.Time, 0).UTC().Format("2006-01-02")] = p.Price
	}

	for i, snap := range snaps {
		ts, err := time.Parse(time.RFC3339, snap.Timestamp)
		if err != nil {
			continue
		}

		if price, ok := byDay[ts.UTC().Format("2006-01-02")]; ok {
			snaps[i].FiatPrice = price
		}
	}

	return nil
}

// Validators returns the network's validator directory.
func (s *Service) Validators(ctx context.Context, networkName string) ([]types.Validator, error) {
	def, err := s.reg.ByName(networkName)
	if err != nil {
		return nil, err
	}

	c, ok := s.chains[def.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrNoAdapter, def.Name)
	}

	dir, ok := c.(chain.ValidatorDirectory)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoValidatorDirectory, def.Name)
	}

	vals, err := dir.Validators(ctx)
	if err != nil {
		s.rep.Report(err, zap.String("network", def.Name), zap.String("op", "validators"))

		return nil, err
	}

	return vals, nil
}

// Price returns the live fiat quote for the crypto ticker.
func (s *Service) Price(ctx context.Context, currency, versus string) (prices.Quote, error) {
	return s.prices.Price(ctx, currency, versus)
}

// FiatPriceHistory returns the network's daily fiat closing prices.
func (s *Service) FiatPriceHistory(ctx context.Context, fiat, networkName string) ([]prices.DailyPrice, error) {
	return s.prices.FiatPriceHistory(ctx, fiat, networkName)
}

// DailyPercentChange returns the ticker's 24h price movement.
func (s *Service) DailyPercentChange(ctx context.Context, crypto, fiat string) (prices.Change, error) {
	return s.prices.DailyPercentChange(ctx, crypto, fiat)
}

// Broadcast relays a signed transaction payload to the named network and
// returns the transaction hash for polling.
func (s *Service) Broadcast(ctx context.Context, networkName string, payload []byte) (string, error) {
	def, err := s.reg.ByName(networkName)
	if err != nil {
		return "", err
	}

	c, ok := s.chains[def.Name]
	if !ok {
		return "", fmt.Errorf("%w: %s", chain.ErrNoAdapter, def.Name)
	}

	hash, err := c.Broadcast(ctx, payload)
	if err != nil {
		s.rep.Report(err, zap.String("network", def.Name), zap.String("op", "broadcast"))

		return "", err
	}

	return hash, nil
}

// DownloadTransactions walks every page of the address's history and returns
// the full transaction list, oldest page last.
func (s *Service) DownloadTransactions(ctx context.Context, networkName, address string) ([]types.Trans, error) {
	def, err := s.resolve(networkName, address)
	if err != nil {
		return nil, err
	}

	c, err := s.dispatch(def, network.CapTransactions)
	if err != nil {
		return nil, err
	}

	var all []types.Trans

	for p := 1; ; p++ {
		res, err := c.Transactions(ctx, page.Request{Address: address, Page: p, Limit: downloadPageSize})
		if err != nil {
			s.rep.Report(err, zap.String("network", def.Name), zap.String("op", "download"))

			return nil, err
		}

		all = append(all, res.Data...)

		if !res.MoreResultsExist {
			return all, nil
		}
	}
}
