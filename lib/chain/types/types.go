// Package types holds the unified schema every chain adapter normalizes into.
package types

import (
	"errors"
	"fmt"
)

// Coin is an amount of a network denom.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Delegation is an amount of tokens delegated to a validator.
type Delegation struct {
	Validator string `json:"validator"`
	Amount    string `json:"amount"`
	Denom     string `json:"denom,omitempty"`
}

// Unbonding is an amount of tokens in the unstaking cooldown period.
type Unbonding struct {
	Validator      string `json:"validator"`
	Amount         string `json:"amount"`
	CompletionTime string `json:"completionTime,omitempty"`
}

// Balance groups the five staking balance categories. Every adapter must fill
// all five slices; a chain without a concept of one category reports an empty
// slice, never nil.
type Balance struct {
	Balance     []Coin       `json:"balance"`
	Rewards     []Coin       `json:"rewards"`
	Delegations []Delegation `json:"delegations"`
	Unbonding   []Unbonding  `json:"unbonding"`
	Commissions []Coin       `json:"commissions"`
}

// NewBalance returns a Balance with all five categories allocated.
func NewBalance() Balance {
	return Balance{
		Balance:     []Coin{},
		Rewards:     []Coin{},
		Delegations: []Delegation{},
		Unbonding:   []Unbonding{},
		Commissions: []Coin{},
	}
}

// TxKind is the closed enumeration of transaction kinds the dashboard knows
// how to render. Adapters map every upstream method into one of these or fail
// hard so new chain features surface during development instead of being
// silently dropped.
type TxKind string

const (
	TxSend            TxKind = "send"
	TxDelegate        TxKind = "delegate"
	TxUndelegate      TxKind = "undelegate"
	TxRedelegate      TxKind = "redelegate"
	TxClaimRewards    TxKind = "claim_rewards"
	TxClaimCommission TxKind = "claim_commission"
	TxSetWithdrawAddr TxKind = "set_withdraw_address"
	TxVote            TxKind = "vote"
	TxSubmitProposal  TxKind = "submit_proposal"
	TxDeposit         TxKind = "deposit"
	TxCreateValidator TxKind = "create_validator"
	TxEditValidator   TxKind = "edit_validator"
	TxUnjail          TxKind = "unjail"
	TxBurn            TxKind = "burn"
)

// Msg is one message carried in a transaction, tagged with its normalized
// kind. Data keeps the chain-specific payload for the client to render.
type Msg struct {
	Kind TxKind      `json:"kind"`
	Data interface{} `json:"data,omitempty"`
}

// Trans is a normalized transaction. Timestamp is UTC RFC3339 once the record
// has passed through the timestamp standardizer.
type Trans struct {
	Hash      string `json:"hash"`
	Height    uint64 `json:"height"`
	Timestamp string `json:"timestamp"`
	Fees      []Coin `json:"fees"`
	Msgs      []Msg  `json:"messages"`
	Chain     string `json:"chain"`
}

// Snapshot is a per-day account balance snapshot used for portfolio charting.
type Snapshot struct {
	Height      uint64  `json:"height"`
	Timestamp   string  `json:"timestamp"`
	Balance     string  `json:"balance"`
	Rewards     string  `json:"rewards"`
	Delegations string  `json:"delegations"`
	Unbonding   string  `json:"unbonding"`
	Commissions string  `json:"commissions"`
	FiatPrice   float64 `json:"fiatPrice,omitempty"`
}

// Validator is an entry of a network validator directory.
type Validator struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Website     string `json:"website,omitempty"`
	IconURL     string `json:"iconUrl,omitempty"`
	VotingPower string `json:"votingPower,omitempty"`
	Commission  string `json:"commission,omitempty"`
}

// Errors returned by adapters.
var (
	ErrNotFound        = errors.New("transaction not found")
	ErrMalformed       = errors.New("malformed upstream response")
	ErrUnknownTxMethod = errors.New("unrecognized transaction method")
	ErrNotImplemented  = errors.New("operation not implemented for this network")
)

// UnknownMethod builds the hard failure for an upstream transaction method
// outside the closed TxKind set, keeping the raw method and payload so the
// gap can be diagnosed from logs.
func UnknownMethod(chainName, method string, raw interface{}) error {
	return fmt.Errorf("%w: chain %s method %q payload %+v", ErrUnknownTxMethod, chainName, method, raw)
}
