package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChorusOne/anthem-sub000/lib/cache"
	"github.com/ChorusOne/anthem-sub000/lib/chain"
	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
	"github.com/ChorusOne/anthem-sub000/lib/fetch"
	"github.com/ChorusOne/anthem-sub000/lib/network"
	"github.com/ChorusOne/anthem-sub000/lib/page"
	"github.com/ChorusOne/anthem-sub000/lib/prices"
	"github.com/ChorusOne/anthem-sub000/lib/report"
)

// spyChain counts adapter calls so tests can prove the capability gate runs
// before any dispatch.
type spyChain struct {
	name  string
	calls int64
	txs   []types.Trans
}

func (s *spyChain) Name() string { return s.name }

func (s *spyChain) Balances(context.Context, string) (types.Balance, error) {
	atomic.AddInt64(&s.calls, 1)

	return types.NewBalance(), nil
}

func (s *spyChain) Transaction(context.Context, string) (types.Trans, error) {
	atomic.AddInt64(&s.calls, 1)

	return types.Trans{Hash: "deadbeef", Chain: s.name}, nil
}

func (s *spyChain) Transactions(_ context.Context, req page.Request) (page.Result[types.Trans], error) {
	atomic.AddInt64(&s.calls, 1)

	req = page.NormalizeRequest(req)
	start := (req.Page - 1) * req.Limit

	var rows []types.Trans

	if start < len(s.txs) {
		end := start + req.Limit + 1
		if end > len(s.txs) {
			end = len(s.txs)
		}
		rows = s.txs[start:end]
	}

	return page.Build(rows, req.Page, req.Limit), nil
}

func (s *spyChain) AccountHistory(context.Context, string) ([]types.Snapshot, error) {
	atomic.AddInt64(&s.calls, 1)

	return []types.Snapshot{{Height: 1, Timestamp: "2020-06-01T00:00:00Z", Balance: "10"}}, nil
}

func (s *spyChain) Broadcast(context.Context, []byte) (string, error) {
	atomic.AddInt64(&s.calls, 1)

	return "deadbeef", nil
}

func testTxs(n int) []types.Trans {
	txs := make([]types.Trans, n)
	for i := range txs {
		txs[i] = types.Trans{Hash: fmt.Sprintf("tx%d", i), Timestamp: "2020-06-01T00:00:00Z"}
	}

	return txs
}

func newService(t *testing.T, priceHandler http.HandlerFunc) (*Service, map[string]*spyChain) {
	t.Helper()

	reg := network.NewRegistry()

	spies := make(map[string]*spyChain)
	chains := make(map[string]chain.Chain)

	for _, def := range reg.All() {
		spy := &spyChain{name: def.Name, txs: testTxs(230)}
		spies[def.Name] = spy
		chains[def.Name] = spy
	}

	var pc *prices.Client

	if priceHandler != nil {
		srv := httptest.NewServer(priceHandler)
		t.Cleanup(srv.Close)

		c := cache.New(cache.NewMemory(cache.DefaultMemoryLimit), zap.NewNop())
		pc = prices.New(srv.URL, "", fetch.New(zap.NewNop()), c, reg, zap.NewNop())
	}

	return New(reg, chains, pc, report.Nop{}, zap.NewNop()), spies
}

func TestAccountBalancesResolvesNetworkFromAddress(t *testing.T) {
	s, spies := newService(t, nil)

	bal, err := s.AccountBalances(context.Background(), "", "cosmos15urq2dtp9qce4fyc85m6upwm9xul3049um7trd")
	require.NoError(t, err)
	require.NotNil(t, bal.Balance)

	assert.Equal(t, int64(1), atomic.LoadInt64(&spies[network.Cosmos].calls))
}

func TestCapabilityGatePrecedesDispatch(t *testing.T) {
	s, spies := newService(t, nil)

	// KAVA has no transaction history capability
	_, err := s.Transactions(context.Background(), network.Kava, page.Request{Address: "kava1abc"})

	var nse *network.NotSupportedError
	require.ErrorAs(t, err, &nse)
	assert.Equal(t, network.Kava, nse.Network)
	assert.Equal(t, network.CapTransactions, nse.Capability)

	assert.Equal(t, int64(0), atomic.LoadInt64(&spies[network.Kava].calls), "gated query must not reach the adapter")
}

func TestTransactionRequiresExplicitNetwork(t *testing.T) {
	s, _ := newService(t, nil)

	_, err := s.Transaction(context.Background(), "", "deadbeef")
	assert.ErrorIs(t, err, network.ErrUnknownNetwork)

	tx, err := s.Transaction(context.Background(), network.Cosmos, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, network.Cosmos, tx.Chain)
}

func TestAccountHistoryFiatEnrichment(t *testing.T) {
	s, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Data":{"Data":[{"time":1590969600,"close":2.71}]}}`) // 2020-06-01
	})

	snaps, err := s.AccountHistory(context.Background(), network.Cosmos, "cosmos15urq2dtp9qce4fyc85m6upwm9xul3049um7trd", "USD")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 2.71, snaps[0].FiatPrice)
}

func TestAccountHistorySurvivesPriceFailure(t *testing.T) {
	s, _ := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	snaps, err := s.AccountHistory(context.Background(), network.Cosmos, "cosmos15urq2dtp9qce4fyc85m6upwm9xul3049um7trd", "USD")
	require.NoError(t, err, "snapshots are returned even when prices are down")
	require.Len(t, snaps, 1)
	assert.Zero(t, snaps[0].FiatPrice)
}

func TestValidatorsOnlyWhereDirectoryExists(t *testing.T) {
	s, _ := newService(t, nil)

	_, err := s.Validators(context.Background(), network.Cosmos)
	assert.ErrorIs(t, err, ErrNoValidatorDirectory)
}

func TestDownloadWalksAllPages(t *testing.T) {
	s, spies := newService(t, nil)

	all, err := s.DownloadTransactions(context.Background(), network.Cosmos, "cosmos15urq2dtp9qce4fyc85m6upwm9xul3049um7trd")
	require.NoError(t, err)

	assert.Len(t, all, 230)
	assert.Equal(t, int64(3), atomic.LoadInt64(&spies[network.Cosmos].calls), "230 rows at 100 per page is three calls")
	assert.Equal(t, "tx0", all[0].Hash)
	assert.Equal(t, "tx229", all[229].Hash)
}

func TestBroadcast(t *testing.T) {
	s, _ := newService(t, nil)

	hash, err := s.Broadcast(context.Background(), network.Oasis, []byte(`{"tx":"signed"}`))
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", hash)
}
