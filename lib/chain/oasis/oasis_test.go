package oasis

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
	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
	"github.com/ChorusOne/anthem-sub000/lib/fetch"
	"github.com/ChorusOne/anthem-sub000/lib/network"
	"github.com/ChorusOne/anthem-sub000/lib/page"
)

const testAddr = "oasis1qpm97z4c28juhdea220jtq2e3mz4gruyg54xktlm"

func newAdapter(t *testing.T, handler http.HandlerFunc) *Oasis {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	def, err := network.NewRegistry().ByName(network.Oasis)
	require.NoError(t, err)

	c := cache.New(cache.NewMemory(cache.DefaultMemoryLimit), zap.NewNop())

	return New(def, srv.URL, fetch.New(zap.NewNop()), c, zap.NewNop())
}

func TestBalancesMapsEscrowAndDebonding(t *testing.T) {
	o := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/account/"+testAddr, r.URL.Path)
		fmt.Fprint(w, `{
			"address":"`+testAddr+`",
			"balance":{"available":"150000000000","rewards":"12000"},
			"escrow":[{"validator":"oasis1qv","amount":"900000000000"}],
			"debonding":[{"validator":"oasis1qv","amount":"100","debond_end":"2020-09-01T00:00:00Z"}]
		}`)
	})

	bal, err := o.Balances(context.Background(), testAddr)
	require.NoError(t, err)

	assert.Equal(t, []types.Coin{{Denom: "nROSE", Amount: "150000000000"}}, bal.Balance)
	assert.Equal(t, []types.Coin{{Denom: "nROSE", Amount: "12000"}}, bal.Rewards)
	assert.Equal(t, "900000000000", bal.Delegations[0].Amount)
	assert.Equal(t, "2020-09-01T00:00:00Z", bal.Unbonding[0].CompletionTime)
	require.NotNil(t, bal.Commissions)
	assert.Empty(t, bal.Commissions)
}

func TestTransactionUnknownMethodIsHardFailure(t *testing.T) {
	o := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hash":"abc","height":7,"timestamp":"2020-06-01T12:30:00Z","method":"roothash.ExecutorCommit"}`)
	})

	_, err := o.Transaction(context.Background(), "abc")
	require.ErrorIs(t, err, types.ErrUnknownTxMethod)
	assert.Contains(t, err.Error(), "roothash.ExecutorCommit")
}

func TestTransactionsOverfetchByOne(t *testing.T) {
	o := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.URL.Query().Get("limit"))

		fmt.Fprint(w, `{"transactions":[
			{"hash":"t1","height":1,"timestamp":"2020-06-01T00:00:00Z","method":"staking.Transfer","fee":"0"},
			{"hash":"t2","height":2,"timestamp":"2020-06-02T00:00:00Z","method":"staking.AddEscrow","fee":"0"},
			{"hash":"t3","height":3,"timestamp":"2020-06-03T00:00:00Z","method":"staking.ReclaimEscrow","fee":"0"},
			{"hash":"t4","height":4,"timestamp":"2020-06-04T00:00:00Z","method":"staking.Transfer","fee":"0"}
		]}`)
	})

	res, err := o.Transactions(context.Background(), page.Request{Address: testAddr, Page: 1, Limit: 3})
	require.NoError(t, err)

	assert.Len(t, res.Data, 3)
	assert.True(t, res.MoreResultsExist)
	assert.Equal(t, types.TxDelegate, res.Data[1].Msgs[0].Kind)
}

func TestTransactionRequestShape(t *testing.T) {
	o := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction", r.URL.Path)
		assert.Equal(t, "abc+def", r.URL.Query().Get("hash"))

		fmt.Fprint(w, `{"hash":"abc+def","height":7,"timestamp":"2020-06-01T12:30:00Z","method":"staking.Transfer","fee":"0"}`)
	})

	tx, err := o.Transaction(context.Background(), "abc+def")
	require.NoError(t, err)
	assert.Equal(t, "abc+def", tx.Hash)
}

func TestTransactionsPagingSurvivesDroppedRows(t *testing.T) {
	// the overfetched fourth row proves a further page exists; the
	// garbage-timestamp row inside the page window is dropped, which must
	// not hide that page.
	o := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"transactions":[
			{"hash":"t1","height":1,"timestamp":"2020-06-01T00:00:00Z","method":"staking.Transfer","fee":"0"},
			{"hash":"t2","height":2,"timestamp":"not-a-date","method":"staking.Transfer","fee":"0"},
			{"hash":"t3","height":3,"timestamp":"2020-06-03T00:00:00Z","method":"staking.Transfer","fee":"0"},
			{"hash":"t4","height":4,"timestamp":"2020-06-04T00:00:00Z","method":"staking.Transfer","fee":"0"}
		]}`)
	})

	res, err := o.Transactions(context.Background(), page.Request{Address: testAddr, Page: 1, Limit: 3})
	require.NoError(t, err)

	assert.Len(t, res.Data, 2, "the garbage-timestamp row is dropped")
	assert.True(t, res.MoreResultsExist, "the flag tracks raw rows received, not survivors")
}

func TestAccountHistoryDropsMalformedTimestamps(t *testing.T) {
	o := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"snapshots":[
			{"height":100,"date":"2020-06-01","balance":"10"},
			{"height":101,"date":"not-a-date","balance":"11"},
			{"height":102,"date":"2020-06-03","balance":"12"}
		]}`)
	})

	snaps, err := o.AccountHistory(context.Background(), testAddr)
	require.NoError(t, err)

	require.Len(t, snaps, 2)
	assert.Equal(t, uint64(100), snaps[0].Height)
	assert.Equal(t, uint64(102), snaps[1].Height)
	assert.Equal(t, "2020-06-01T00:00:00Z", snaps[0].Timestamp)
}

func TestValidatorsAppliesOverridesAndCaches(t *testing.T) {
	var calls int64

	o := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		fmt.Fprint(w, `{"validators":[
			{"address":"oasis1qrg52ccz4ts6cct2qu4retxn7kkdlusjh5pe74ar","name":"","voting_power":"1000"},
			{"address":"oasis1qzzzunknown","name":"Upstream Name","website":"https://example.org"}
		]}`)
	})

	vals, err := o.Validators(context.Background())
	require.NoError(t, err)
	require.Len(t, vals, 2)

	// override wins field-by-field: name corrected, upstream voting power kept
	assert.Equal(t, "Figment", vals[0].Name)
	assert.Equal(t, "1000", vals[0].VotingPower)

	// no override entry: upstream data untouched
	assert.Equal(t, "Upstream Name", vals[1].Name)

	again, err := o.Validators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, vals, again)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "second call within TTL is served from cache")
}
