// Package network defines the closed set of supported networks and the
// capability flags each one carries. The registry is built once at startup
// and is read-only afterwards.
package network

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// Network names. The set is closed: adding a name here without teaching
// lib/chain and lib/hosts about it fails at startup, not at request time.
const (
	Cosmos = "COSMOS"
	Terra  = "TERRA"
	Kava   = "KAVA"
	Oasis  = "OASIS"
	Celo   = "CELO"
)

// Capability is a per-network query category.
type Capability string

const (
	CapBalances     Capability = "balances"
	CapPortfolio    Capability = "portfolio"
	CapTransactions Capability = "transactions"
	CapFiatPrices   Capability = "fiatPrices"
	CapLedger       Capability = "ledger"
)

// Definition describes one supported network.
type Definition struct {
	Name          string `json:"name"`
	Denom         string `json:"denom"`  // native unit used on chain
	Ticker        string `json:"ticker"` // symbol used for price lookups
	AddressPrefix string `json:"-"`      // bech32 HRP, empty for hex-address chains

	SupportsBalances            bool `json:"supportsBalances"`
	SupportsPortfolio           bool `json:"supportsPortfolio"`
	SupportsTransactionsHistory bool `json:"supportsTransactionsHistory"`
	SupportsFiatPrices          bool `json:"supportsFiatPrices"`
	SupportsLedger              bool `json:"supportsLedger"`
}

// Supports reports whether the definition carries the given capability flag.
func (d Definition) Supports(c Capability) bool {
	switch c {
	case CapBalances:
		return d.SupportsBalances
	case CapPortfolio:
		return d.SupportsPortfolio
	case CapTransactions:
		return d.SupportsTransactionsHistory
	case CapFiatPrices:
		return d.SupportsFiatPrices
	case CapLedger:
		return d.SupportsLedger
	}

	return false
}

// HasAnyCapability reports whether at least one capability flag is set. A
// network with any capability must have an upstream host configured.
func (d Definition) HasAnyCapability() bool {
	return d.SupportsBalances || d.SupportsPortfolio || d.SupportsTransactionsHistory ||
		d.SupportsFiatPrices || d.SupportsLedger
}

// Errors returned by registry lookups.
var (
	ErrUnknownNetwork       = errors.New("network not available")
	ErrUnknownAddressFormat = errors.New("no network claims this address format")
)

// NotSupportedError is returned when an operation requires a capability the
// network does not carry. It is raised before any upstream call is made.
type NotSupportedError struct {
	Network    string
	Capability Capability
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("network %s does not support %s queries", e.Network, e.Capability)
}

// Registry is the static table of supported networks.
type Registry struct {
	byName   map[string]Definition
	byTicker map[string]Definition
	byPrefix map[string]Definition
	names    []string // insertion order, for deterministic listings
}

// NewRegistry builds the registry of the closed network set.
func NewRegistry() *Registry {
	defs := []Definition{
		{
			Name: Cosmos, Denom: "uatom", Ticker: "ATOM", AddressPrefix: "cosmos",
			SupportsBalances: true, SupportsPortfolio: true, SupportsTransactionsHistory: true,
			SupportsFiatPrices: true, SupportsLedger: true,
		},
		{
			Name: Terra, Denom: "uluna", Ticker: "LUNA", AddressPrefix: "terra",
			SupportsBalances: true, SupportsTransactionsHistory: true,
			SupportsFiatPrices: true, SupportsLedger: true,
		},
		{
			Name: Kava, Denom: "ukava", Ticker: "KAVA", AddressPrefix: "kava",
			SupportsBalances: true, SupportsFiatPrices: true, SupportsLedger: true,
		},
		{
			Name: Oasis, Denom: "nROSE", Ticker: "ROSE", AddressPrefix: "oasis",
			SupportsBalances: true, SupportsPortfolio: true, SupportsTransactionsHistory: true,
			SupportsLedger: true,
		},
		{
			Name: Celo, Denom: "cGLD", Ticker: "CELO",
			SupportsBalances: true, SupportsPortfolio: true,
			SupportsFiatPrices: true, SupportsLedger: true,
		},
	}

	r := &Registry{
		byName:   make(map[string]Definition, len(defs)),
		byTicker: make(map[string]Definition, len(defs)),
		byPrefix: make(map[string]Definition, len(defs)),
	}

	for _, d := range defs {
		r.byName[d.Name] = d
		r.byTicker[d.Ticker] = d

		if d.AddressPrefix != "" {
			r.byPrefix[d.AddressPrefix] = d
		}

		r.names = append(r.names, d.Name)
	}

	return r
}

// All returns every definition in a stable order.
func (r *Registry) All() []Definition {
	defs := make([]Definition, 0, len(r.names))
	for _, name := range r.names {
		defs = append(defs, r.byName[name])
	}

	return defs
}

// ByName looks a network up by its identifier, case-insensitively.
func (r *Registry) ByName(name string) (Definition, error) {
	d, ok := r.byName[strings.ToUpper(name)]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}

	return d, nil
}

// ByTicker looks a network up by its price ticker.
func (r *Registry) ByTicker(ticker string) (Definition, error) {
	d, ok := r.byTicker[strings.ToUpper(ticker)]
	if !ok {
		return Definition{}, fmt.Errorf("%w: ticker %s", ErrUnknownNetwork, ticker)
	}

	return d, nil
}

// FromAddress derives the network from address-prefix conventions: bech32
// HRPs for the Cosmos-SDK family and Oasis, 0x hex for Celo.
func (r *Registry) FromAddress(address string) (Definition, error) {
	if isHexAddress(address) {
		return r.byName[Celo], nil
	}

	hrp, _, err := bech32.Decode(address)
	if err != nil {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownAddressFormat, address)
	}

	d, ok := r.byPrefix[hrp]
	if !ok {
		return Definition{}, fmt.Errorf("%w: unknown prefix %q", ErrUnknownAddressFormat, hrp)
	}

	return d, nil
}

// RequireCapability returns a NotSupportedError unless the named network
// carries the capability. Orchestrator entry points call this before any
// upstream I/O.
func (r *Registry) RequireCapability(name string, c Capability) error {
	d, err := r.ByName(name)
	if err != nil {
		return err
	}

	if !d.Supports(c) {
		return &NotSupportedError{Network: d.Name, Capability: c}
	}

	return nil
}

func isHexAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 42 {
		return false
	}

	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}

	return true
}
