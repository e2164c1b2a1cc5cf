// Package cosmos implements the adapter for Cosmos-SDK family networks
// (COSMOS, TERRA, KAVA) against their LCD REST interfaces. One adapter
// instance serves one network; the network definition fixes the bech32
// prefix and denom.
package cosmos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/btcsuite/btcutil/bech32"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
	"github.com/ChorusOne/anthem-sub000/lib/fetch"
	"github.com/ChorusOne/anthem-sub000/lib/network"
	"github.com/ChorusOne/anthem-sub000/lib/page"
	"github.com/ChorusOne/anthem-sub000/lib/store"
	"github.com/ChorusOne/anthem-sub000/lib/tstamp"
)

// Cosmos implements a connection to one Cosmos-SDK LCD endpoint.
type Cosmos struct {
	def    network.Definition
	host   string
	fc     *fetch.Client
	ledger store.LedgerReader
	log    *zap.Logger
}

// New returns an adapter for the given network definition at host.
func New(def network.Definition, host string, fc *fetch.Client, ledger store.LedgerReader, log *zap.Logger) *Cosmos {
	return &Cosmos{def: def, host: host, fc: fc, ledger: ledger, log: log.With(zap.String("chain", def.Name))}
}

// Name returns the network identifier this adapter serves.
func (c *Cosmos) Name() string { return c.def.Name }

// msgKinds maps every LCD transaction message type into the closed TxKind
// set. An upstream type missing here is a hard failure, not a dropped row.
var msgKinds = map[string]types.TxKind{
	"cosmos-sdk/MsgSend":                        types.TxSend,
	"cosmos-sdk/MsgMultiSend":                   types.TxSend,
	"cosmos-sdk/MsgDelegate":                    types.TxDelegate,
	"cosmos-sdk/MsgUndelegate":                  types.TxUndelegate,
	"cosmos-sdk/MsgBeginRedelegate":             types.TxRedelegate,
	"cosmos-sdk/MsgWithdrawDelegationReward":    types.TxClaimRewards,
	"cosmos-sdk/MsgWithdrawValidatorCommission": types.TxClaimCommission,
	"cosmos-sdk/MsgModifyWithdrawAddress":       types.TxSetWithdrawAddr,
	"cosmos-sdk/MsgSubmitProposal":              types.TxSubmitProposal,
	"cosmos-sdk/MsgDeposit":                     types.TxDeposit,
	"cosmos-sdk/MsgVote":                        types.TxVote,
	"cosmos-sdk/MsgCreateValidator":             types.TxCreateValidator,
	"cosmos-sdk/MsgEditValidator":               types.TxEditValidator,
	"cosmos-sdk/MsgUnjail":                      types.TxUnjail,
}

// LCD response shapes. The legacy LCD wraps everything in {height, result}.

type coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

func (c coin) coin() types.Coin { return types.Coin{Denom: c.Denom, Amount: c.Amount} }

func toCoins(in []coin) []types.Coin {
	out := make([]types.Coin, 0, len(in))
	for _, c := range in {
		out = append(out, c.coin())
	}

	return out
}

type balancesResp struct {
	Result []coin `json:"result"`
}

type delegationsResp struct {
	Result []struct {
		ValidatorAddress string `json:"validator_address"`
		Shares           string `json:"shares"`
		Balance          *coin  `json:"balance"`
	} `json:"result"`
}

type rewardsResp struct {
	Result struct {
		Rewards []struct {
			ValidatorAddress string `json:"validator_address"`
			Reward           []coin `json:"reward"`
		} `json:"rewards"`
		Total []coin `json:"total"`
	} `json:"result"`
}

type unbondingResp struct {
	Result []struct {
		ValidatorAddress string `json:"validator_address"`
		Entries          []struct {
			CompletionTime string `json:"completion_time"`
			Balance        string `json:"balance"`
		} `json:"entries"`
	} `json:"result"`
}

type commissionResp struct {
	Result struct {
		ValCommission []coin `json:"val_commission"`
	} `json:"result"`
}

type txResp struct {
	Height    string `json:"height"`
	TxHash    string `json:"txhash"`
	Timestamp string `json:"timestamp"`
	Tx        struct {
		Value struct {
			Msg []struct {
				Type  string      `json:"type"`
				Value interface{} `json:"value"`
			} `json:"msg"`
			Fee struct {
				Amount []coin `json:"amount"`
			} `json:"fee"`
		} `json:"value"`
	} `json:"tx"`
}

type txSearchResp struct {
	Txs []txResp `json:"txs"`
}

// Balances joins five independent LCD queries concurrently into the fixed
// slots of the unified Balance. All five must succeed or the whole call
// fails; the caller never observes partial results.
func (c *Cosmos) Balances(ctx context.Context, address string) (types.Balance, error) {
	bal := types.NewBalance()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var resp balancesResp
		if err := c.fc.Get(ctx, c.host+"/bank/balances/"+address, &resp); err != nil {
			return err
		}
		bal.Balance = toCoins(resp.Result)

		return nil
	})

	g.Go(func() error {
		var resp delegationsResp
		if err := c.fc.Get(ctx, c.host+"/staking/delegators/"+address+"/delegations", &resp); err != nil {
			return err
		}
		for _, d := range resp.Result {
			del := types.Delegation{Validator: d.ValidatorAddress, Amount: d.Shares, Denom: c.def.Denom}
			if d.Balance != nil {
				del.Amount = d.Balance.Amount
				del.Denom = d.Balance.Denom
			}
			bal.Delegations = append(bal.Delegations, del)
		}

		return nil
	})

	g.Go(func() error {
		var resp rewardsResp
		if err := c.fc.Get(ctx, c.host+"/distribution/delegators/"+address+"/rewards", &resp); err != nil {
			return err
		}
		bal.Rewards = toCoins(resp.Result.Total)

		return nil
	})

	g.Go(func() error {
		var resp unbondingResp
		if err := c.fc.Get(ctx, c.host+"/staking/delegators/"+address+"/unbonding_delegations", &resp); err != nil {
			return err
		}
		for _, u := range resp.Result {
			for _, e := range u.Entries {
				bal.Unbonding = append(bal.Unbonding, types.Unbonding{
					Validator:      u.ValidatorAddress,
					Amount:         e.Balance,
					CompletionTime: e.CompletionTime,
				})
			}
		}

		return nil
	})

	g.Go(func() error {
		comm, err := c.commissions(ctx, address)
		if err != nil {
			return err
		}
		bal.Commissions = comm

		return nil
	})

	if err := g.Wait(); err != nil {
		return types.Balance{}, fmt.Errorf("fetching %s balances for %s: %w", c.def.Name, address, err)
	}

	return bal, nil
}

// commissions derives the validator operator address from the delegator
// address and queries its outstanding commission. An account that is not a
// validator's self-delegation account yields an empty slice, not an error.
// Any other upstream failure propagates and fails the balance join.
func (c *Cosmos) commissions(ctx context.Context, address string) ([]types.Coin, error) {
	valoper, err := c.validatorAddress(address)
	if err != nil {
		c.log.Debug("no validator address derivable", zap.String("address", address))

		return []types.Coin{}, nil
	}

	var resp commissionResp
	if err := c.fc.Get(ctx, c.host+"/distribution/validators/"+valoper, &resp); err != nil {
		var he *fetch.HTTPError
		if errors.As(err, &he) && (he.Status == http.StatusNotFound || he.Status == http.StatusBadRequest) {
			// the address is not a validator operator
			return []types.Coin{}, nil
		}

		return nil, err
	}

	return toCoins(resp.Result.ValCommission), nil
}

// validatorAddress re-encodes a delegator account address under the
// network's valoper prefix. The transform is deterministic: same key, same
// payload, different human-readable part.
func (c *Cosmos) validatorAddress(address string) (string, error) {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return "", fmt.Errorf("decoding address %s: %w", address, err)
	}

	if hrp != c.def.AddressPrefix {
		return "", fmt.Errorf("address prefix %q does not match network %s", hrp, c.def.Name)
	}

	return bech32.Encode(hrp+"valoper", data)
}

// Transaction fetches one transaction by hash and normalizes it.
func (c *Cosmos) Transaction(ctx context.Context, hash string) (types.Trans, error) {
	var resp txResp
	if err := c.fc.Get(ctx, c.host+"/txs/"+hash, &resp); err != nil {
		if fetch.IsNotFound(err) {
			return types.Trans{}, types.ErrNotFound
		}

		return types.Trans{}, err
	}

	tx, err := c.normalizeTx(resp)
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

// Transactions returns one page of the address's transaction history using
// the overfetch-by-one technique against the LCD tx search endpoint.
func (c *Cosmos) Transactions(ctx context.Context, req page.Request) (page.Result[types.Trans], error) {
	req = page.NormalizeRequest(req)

	url := fmt.Sprintf("%s/txs?message.sender=%s&page=%d&limit=%d", c.host, req.Address, req.Page, req.Limit+1)

	var resp txSearchResp
	if err := c.fc.Get(ctx, url, &resp); err != nil {
		return page.Result[types.Trans]{}, err
	}

	// further pages exist iff the raw response held the overfetched row,
	// regardless of how many records survive standardization
	rawCount := len(resp.Txs)

	rows := resp.Txs
	if len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}

	txs := make([]types.Trans, 0, len(rows))

	for _, raw := range rows {
		tx, err := c.normalizeTx(raw)
		if err != nil {
			return page.Result[types.Trans]{}, err
		}

		txs = append(txs, tx)
	}

	return page.BuildCounted(tstamp.StandardizeTrans(txs), rawCount, req.Page, req.Limit), nil
}

func (c *Cosmos) normalizeTx(raw txResp) (types.Trans, error) {
	height, _ := strconv.ParseUint(raw.Height, 10, 64)

	tx := types.Trans{
		Hash:      raw.TxHash,
		Height:    height,
		Timestamp: raw.Timestamp,
		Fees:      toCoins(raw.Tx.Value.Fee.Amount),
		Msgs:      make([]types.Msg, 0, len(raw.Tx.Value.Msg)),
		Chain:     c.def.Name,
	}

	for _, m := range raw.Tx.Value.Msg {
		kind, ok := msgKinds[m.Type]
		if !ok {
			return types.Trans{}, types.UnknownMethod(c.def.Name, m.Type, m.Value)
		}

		tx.Msgs = append(tx.Msgs, types.Msg{Kind: kind, Data: m.Value})
	}

	return tx, nil
}

// AccountHistory serves portfolio snapshots from the external ledger store;
// the LCD has no history endpoint.
func (c *Cosmos) AccountHistory(ctx context.Context, address string) ([]types.Snapshot, error) {
	snaps, err := c.ledger.AccountSnapshots(ctx, c.def.Name, address)
	if err != nil {
		return nil, fmt.Errorf("reading %s account history for %s: %w", c.def.Name, address, err)
	}

	return tstamp.StandardizeSnapshots(snaps), nil
}

// Broadcast relays a signed transaction payload to the LCD broadcast
// endpoint and returns the transaction hash.
func (c *Cosmos) Broadcast(ctx context.Context, payload []byte) (string, error) {
	var resp struct {
		TxHash string `json:"txhash"`
	}

	if err := c.fc.Post(ctx, c.host+"/txs", payload, &resp); err != nil {
		return "", err
	}

	return resp.TxHash, nil
}
