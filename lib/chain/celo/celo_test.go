package celo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
	"github.com/ChorusOne/anthem-sub000/lib/fetch"
	"github.com/ChorusOne/anthem-sub000/lib/network"
	"github.com/ChorusOne/anthem-sub000/lib/page"
)

const testAddr = "0x47b2dB6af05a55d42Ed0F3731735F9479ABF0673"

func newAdapter(t *testing.T, handler http.HandlerFunc) *Celo {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	def, err := network.NewRegistry().ByName(network.Celo)
	require.NoError(t, err)

	return New(def, srv.URL, fetch.New(zap.NewNop()), zap.NewNop())
}

func TestBalancesMapsVotesAndWithdrawals(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/account/"+testAddr, r.URL.Path)
		fmt.Fprint(w, `{
			"address":"`+testAddr+`",
			"gold_balance":"2000000000000000000",
			"usd_balance":"5000000000000000000",
			"votes":[{"group":"0xgroup1","active":"1000000000000000000"}],
			"pending_withdrawals":[{"amount":"300","time":"2020-08-01T00:00:00Z"}]
		}`)
	})

	bal, err := a.Balances(context.Background(), testAddr)
	require.NoError(t, err)

	require.Len(t, bal.Balance, 2)
	assert.Equal(t, types.Coin{Denom: "cGLD", Amount: "2000000000000000000"}, bal.Balance[0])
	assert.Equal(t, types.Coin{Denom: "cUSD", Amount: "5000000000000000000"}, bal.Balance[1])
	assert.Equal(t, "0xgroup1", bal.Delegations[0].Validator)
	assert.Equal(t, "300", bal.Unbonding[0].Amount)

	// categories with no Celo equivalent are empty, never nil
	require.NotNil(t, bal.Rewards)
	require.NotNil(t, bal.Commissions)
	assert.Empty(t, bal.Rewards)
	assert.Empty(t, bal.Commissions)
}

func TestTransactionOperationsNotImplemented(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("transaction operations must not reach upstream")
	})

	_, err := a.Transaction(context.Background(), "0xhash")
	assert.ErrorIs(t, err, types.ErrNotImplemented)

	_, err = a.Transactions(context.Background(), page.Request{Address: testAddr})
	assert.ErrorIs(t, err, types.ErrNotImplemented)
}

func TestAccountHistory(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/history/"+testAddr, r.URL.Path)
		fmt.Fprint(w, `{"snapshots":[
			{"height":500,"date":"2020-06-01","gold_balance":"10","total_votes":"5","pending_withdrawals":"0"},
			{"height":510,"date":"2020-06-02","gold_balance":"11","total_votes":"5","pending_withdrawals":"0"}
		]}`)
	})

	snaps, err := a.AccountHistory(context.Background(), testAddr)
	require.NoError(t, err)

	require.Len(t, snaps, 2)
	assert.Equal(t, "2020-06-01T00:00:00Z", snaps[0].Timestamp)
	assert.Equal(t, "11", snaps[1].Balance)
}
