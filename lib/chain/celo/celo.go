// Package celo implements the Celo chain adapter over its extractor service.
// Celo uses hex account addresses and splits balances across the gold and
// stable-dollar tokens; votes for validator groups take the place of
// delegations. Transaction history is not indexed for Celo, so both
// transaction operations report not-implemented.
package celo

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
	"github.com/ChorusOne/anthem-sub000/lib/fetch"
	"github.com/ChorusOne/anthem-sub000/lib/network"
	"github.com/ChorusOne/anthem-sub000/lib/page"
	"github.com/ChorusOne/anthem-sub000/lib/tstamp"
)

// Celo adapts the extractor REST shape into the unified schema.
type Celo struct {
	def  network.Definition
	host string
	fc   *fetch.Client
	log  *zap.Logger
}

func New(def network.Definition, host string, fc *fetch.Client, log *zap.Logger) *Celo {
	return &Celo{def: def, host: host, fc: fc, log: log.Named("celo")}
}

func (c *Celo) Name() string { return c.def.Name }

type accountResp struct {
	Address string `json:"address"`
	Gold    string `json:"gold_balance"`
	USD     string `json:"usd_balance"`
	Votes   []struct {
		Group  string `json:"group"`
		Active string `json:"active"`
	} `json:"votes"`
	PendingWithdrawals []struct {
		Amount string `json:"amount"`
		Time   string `json:"time"`
	} `json:"pending_withdrawals"`
}

type historyResp struct {
	Snapshots []struct {
		Height  uint64 `json:"height"`
		Date    string `json:"date"`
		Gold    string `json:"gold_balance"`
		Votes   string `json:"total_votes"`
		Pending string `json:"pending_withdrawals"`
	} `json:"snapshots"`
}

// Balances maps the extractor account resource into the unified Balance.
// Active validator-group votes become delegations and pending withdrawals
// become unbonding entries. Celo pays no per-account staking rewards and
// tracks no commissions; those categories stay empty.
func (c *Celo) Balances(ctx context.Context, address string) (types.Balance, error) {
	var resp accountResp
	if err := c.fc.Get(ctx, c.host+"/account/"+address, &resp); err != nil {
		if fetch.IsNotFound(err) {
			return types.Balance{}, types.ErrNotFound
		}

		return types.Balance{}, fmt.Errorf("fetching %s account %s: %w", c.def.Name, address, err)
	}

	bal := types.NewBalance()
	bal.Balance = append(bal.Balance, types.Coin{Denom: c.def.Denom, Amount: resp.Gold})

	if resp.USD != "" {
		bal.Balance = append(bal.Balance, types.Coin{Denom: "cUSD", Amount: resp.USD})
	}

	for _, v := range resp.Votes {
		bal.Delegations = append(bal.Delegations, types.Delegation{
			Validator: v.Group,
			Amount:    v.Active,
			Denom:     c.def.Denom,
		})
	}

	for _, p := range resp.PendingWithdrawals {
		bal.Unbonding = append(bal.Unbonding, types.Unbonding{
			Amount:         p.Amount,
			CompletionTime: p.Time,
		})
	}

	return bal, nil
}

func (c *Celo) Transaction(ctx context.Context, hash string) (types.Trans, error) {
	return types.Trans{}, fmt.Errorf("%w: %s transaction lookup", types.ErrNotImplemented, c.def.Name)
}

func (c *Celo) Transactions(ctx context.Context, req page.Request) (page.Result[types.Trans], error) {
	return page.Result[types.Trans]{}, fmt.Errorf("%w: %s transaction history", types.ErrNotImplemented, c.def.Name)
}

// AccountHistory returns the per-day balance snapshots the extractor keeps
// for portfolio charting.
func (c *Celo) AccountHistory(ctx context.Context, address string) ([]types.Snapshot, error) {
	var resp historyResp
	if err := c.fc.Get(ctx, c.host+"/history/"+address, &resp); err != nil {
		return nil, fmt.Errorf("fetching %s account history for %s: %w", c.def.Name, address, err)
	}

	snaps := make([]types.Snapshot, 0, len(resp.Snapshots))

	for _, s := range resp.Snapshots {
		snaps = append(snaps, types.Snapshot{
			Height:      s.Height,
			Timestamp:   s.Date,
			Balance:     s.Gold,
			Delegations: s.Votes,
			Unbonding:   s.Pending,
		})
	}

	return tstamp.StandardizeSnapshots(snaps), nil
}

// Broadcast relays a signed transaction payload to the extractor broadcast
// endpoint and returns the transaction hash.
func (c *Celo) Broadcast(ctx context.Context, payload []byte) (string, error) {
	var resp struct {
		Hash string `json:"hash"`
	}

	if err := c.fc.Post(ctx, c.host+"/broadcast", payload, &resp); err != nil {
		return "", err
	}

	return resp.Hash, nil
}
