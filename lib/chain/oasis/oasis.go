// Package oasis implements the Oasis chain adapter. Oasis has no LCD;
// balances, history and transactions come from a chain extractor service
// that indexes consensus state into REST resources. The adapter also serves
// the validator directory, merging extractor data with a manual override
// table of known metadata corrections.
package oasis

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/ChorusOne/anthem-sub000/lib/cache"
	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
	"github.com/ChorusOne/anthem-sub000/lib/fetch"
	"github.com/ChorusOne/anthem-sub000/lib/network"
	"github.com/ChorusOne/anthem-sub000/lib/page"
	"github.com/ChorusOne/anthem-sub000/lib/tstamp"
)

// Oasis adapts the extractor REST shape into the unified schema.
type Oasis struct {
	def   network.Definition
	host  string
	fc    *fetch.Client
	cache *cache.Service
	log   *zap.Logger
}

func New(def network.Definition, host string, fc *fetch.Client, c *cache.Service, log *zap.Logger) *Oasis {
	return &Oasis{def: def, host: host, fc: fc, cache: c, log: log.Named("oasis")}
}

func (o *Oasis) Name() string { return o.def.Name }

// msgKinds maps every extractor transaction method into the closed TxKind
// set. An upstream method missing here is a hard failure, not a dropped row.
var msgKinds = map[string]types.TxKind{
	"staking.Transfer":                types.TxSend,
	"staking.AddEscrow":               types.TxDelegate,
	"staking.ReclaimEscrow":           types.TxUndelegate,
	"staking.Burn":                    types.TxBurn,
	"staking.AmendCommissionSchedule": types.TxEditValidator,
	"registry.RegisterEntity":         types.TxCreateValidator,
	"governance.CastVote":             types.TxVote,
	"governance.SubmitProposal":       types.TxSubmitProposal,
}

// Extractor response shapes.

type accountResp struct {
	Address string `json:"address"`
	Balance struct {
		Available string `json:"available"`
		Rewards   string `json:"rewards"`
	} `json:"balance"`
	Escrow []struct {
		Validator string `json:"validator"`
		Amount    string `json:"amount"`
	} `json:"escrow"`
	Debonding []struct {
		Validator string `json:"validator"`
		Amount    string `json:"amount"`
		DebondEnd string `json:"debond_end"`
	} `json:"debonding"`
}

type historyResp struct {
	Snapshots []struct {
		Height    uint64 `json:"height"`
		Date      string `json:"date"`
		Balance   string `json:"balance"`
		Rewards   string `json:"rewards"`
		Staked    string `json:"staked"`
		Debonding string `json:"debonding"`
	} `json:"snapshots"`
}

type txResp struct {
	Hash      string      `json:"hash"`
	Height    uint64      `json:"height"`
	Timestamp string      `json:"timestamp"`
	Method    string      `json:"method"`
	Fee       string      `json:"fee"`
	Data      interface{} `json:"data"`
}

type txListResp struct {
	Transactions []txResp `json:"transactions"`
}

type validatorsResp struct {
	Validators []struct {
		Address     string `json:"address"`
		Name        string `json:"name"`
		Website     string `json:"website"`
		IconURL     string `json:"icon_url"`
		VotingPower string `json:"voting_power"`
		Commission  string `json:"commission"`
	} `json:"validators"`
}

// Balances maps the extractor account resource into the unified Balance.
// Oasis accounts stake through escrow; escrow rows become delegations and
// debonding rows become unbonding entries. Commissions are not tracked by
// the extractor and stay empty.
func (o *Oasis) Balances(ctx context.Context, address string) (types.Balance, error) {
	var resp accountResp
	if err := o.fc.Get(ctx, o.host+"/account/"+address, &resp); err != nil {
		if fetch.IsNotFound(err) {
			return types.Balance{}, types.ErrNotFound
		}

		return types.Balance{}, fmt.Errorf("fetching %s account %s: %w", o.def.Name, address, err)
	}

	bal := types.NewBalance()
	bal.Balance = append(bal.Balance, types.Coin{Denom: o.def.Denom, Amount: resp.Balance.Available})

	if resp.Balance.Rewards != "" {
		bal.Rewards = append(bal.Rewards, types.Coin{Denom: o.def.Denom, Amount: resp.Balance.Rewards})
	}

	for _, e := range resp.Escrow {
		bal.Delegations = append(bal.Delegations, types.Delegation{
			Validator: e.Validator,
			Amount:    e.Amount,
			Denom:     o.def.Denom,
		})
	}

	for _, d := range resp.Debonding {
		bal.Unbonding = append(bal.Unbonding, types.Unbonding{
			Validator:      d.Validator,
			Amount:         d.Amount,
			CompletionTime: d.DebondEnd,
		})
	}

	return bal, nil
}

// Transaction fetches one transaction by hash and normalizes it.
func (o *Oasis) Transaction(ctx context.Context, hash string) (types.Trans, error) {
	var resp txResp
	if err := o.fc.Get(ctx, o.host+"/transaction?hash="+url.QueryEscape(hash), &resp); err != nil {
		if fetch.IsNotFound(err) {
			return types.Trans{}, types.ErrNotFound
		}

		return types.Trans{}, err
	}

	tx, err := o.normalizeTx(resp)
	if err != nil {
		return types.Trans{}, err
	}

	ts, err := tstamp.ToUTC(tx.Timestamp)
	if err != nil {
		return types.Trans{}, fmt.Errorf("%w: transaction %s has timestamp %q", types.ErrMalformed, hash, tx.Timestamp)
	}

	tx.Timestamp = ts

	return tx, nil
}

// Transactions returns one page of the address's history using the
// overfetch-by-one technique against the extractor list endpoint.
func (o *Oasis) Transactions(ctx context.Context, req page.Request) (page.Result[types.Trans], error) {
	req = page.NormalizeRequest(req)

	u := fmt.Sprintf("%s/account/%s/transactions?page=%d&limit=%d", o.host, req.Address, req.Page, req.Limit+1)

	var resp txListResp
	if err := o.fc.Get(ctx, u, &resp); err != nil {
		return page.Result[types.Trans]{}, err
	}

	// further pages exist iff the raw response held the overfetched row,
	// regardless of how many records survive standardization
	rawCount := len(resp.Transactions)

	rows := resp.Transactions
	if len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}

	txs := make([]types.Trans, 0, len(rows))

	for _, raw := range rows {
		tx, err := o.normalizeTx(raw)
		if err != nil {
			return page.Result[types.Trans]{}, err
		}

		txs = append(txs, tx)
	}

	return page.BuildCounted(tstamp.StandardizeTrans(txs), rawCount, req.Page, req.Limit), nil
}

func (o *Oasis) normalizeTx(raw txResp) (types.Trans, error) {
	kind, ok := msgKinds[raw.Method]
	if !ok {
		return types.Trans{}, types.UnknownMethod(o.def.Name, raw.Method, raw.Data)
	}

	tx := types.Trans{
		Hash:      raw.Hash,
		Height:    raw.Height,
		Timestamp: raw.Timestamp,
		Msgs:      []types.Msg{{Kind: kind, Data: raw.Data}},
		Chain:     o.def.Name,
	}

	if raw.Fee != "" {
		tx.Fees = []types.Coin{{Denom: o.def.Denom, Amount: raw.Fee}}
	}

	return tx, nil
}

// AccountHistory returns the per-day balance snapshots the extractor keeps
// for portfolio charting.
func (o *Oasis) AccountHistory(ctx context.Context, address string) ([]types.Snapshot, error) {
	var resp historyResp
	if err := o.fc.Get(ctx, o.host+"/account/"+address+"/history", &resp); err != nil {
		return nil, fmt.Errorf("fetching %s account history for %s: %w", o.def.Name, address, err)
	}

	snaps := make([]types.Snapshot, 0, len(resp.Snapshots))

	for _, s := range resp.Snapshots {
		snaps = append(snaps, types.Snapshot{
			Height:      s.Height,
			Timestamp:   s.Date,
			Balance:     s.Balance,
			Rewards:     s.Rewards,
			Delegations: s.Staked,
			Unbonding:   s.Debonding,
		})
	}

	return tstamp.StandardizeSnapshots(snaps), nil
}

// Broadcast relays a signed transaction payload to the extractor broadcast
// endpoint and returns the transaction hash.
func (o *Oasis) Broadcast(ctx context.Context, payload []byte) (string, error) {
	var resp struct {
		Hash string `json:"hash"`
	}

	if err := o.fc.Post(ctx, o.host+"/broadcast", payload, &resp); err != nil {
		return "", err
	}

	return resp.Hash, nil
}

// validatorOverrides corrects metadata the extractor reports wrong or not at
// all, keyed by entity address. An override field wins only when non-empty.
var validatorOverrides = map[string]types.Validator{
	"oasis1qqekv2ymgzmd8j2s2u7g0hhc7e77e654kvwqtjwm": {
		Name:    "Chorus One",
		Website: "https://chorus.one",
	},
	"oasis1qrg52ccz4ts6cct2qu4retxn7kkdlusjh5pe74ar": {
		Name: "Figment",
	},
	"oasis1qryre8apz5c8wmhcgnpm3w257wwscy2jpvdyu94u": {
		Name:    "Everstake",
		Website: "https://everstake.one",
	},
}

// Validators returns the validator directory with overrides applied. The
// merged directory is cached for the validator-directory class TTL.
func (o *Oasis) Validators(ctx context.Context) ([]types.Validator, error) {
	return cache.Fetch(ctx, o.cache, o.def.Name, cache.ClassValidatorDir,
		func(ctx context.Context) ([]types.Validator, error) {
			var resp validatorsResp
			if err := o.fc.Get(ctx, o.host+"/validators", &resp); err != nil {
				return nil, fmt.Errorf("fetching %s validator directory: %w", o.def.Name, err)
			}

			out := make([]types.Validator, 0, len(resp.Validators))

			for _, v := range resp.Validators {
				val := types.Validator{
					Address:     v.Address,
					Name:        v.Name,
					Website:     v.Website,
					IconURL:     v.IconURL,
					VotingPower: v.VotingPower,
					Commission:  v.Commission,
				}
				out = append(out, applyOverride(val))
			}

			return out, nil
		})
}

// applyOverride merges the manual override for the validator field-by-field;
// empty override fields keep the upstream value.
func applyOverride(v types.Validator) types.Validator {
	ov, ok := validatorOverrides[v.Address]
	if !ok {
		return v
	}

	if ov.Name != "" {
		v.Name = ov.Name
	}
	if ov.Website != "" {
		v.Website = ov.Website
	}
	if ov.IconURL != "" {
		v.IconURL = ov.IconURL
	}
	if ov.VotingPower != "" {
		v.VotingPower = ov.VotingPower
	}
	if ov.Commission != "" {
		v.Commission = ov.Commission
	}

	return v
}
