package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetRetriesTransportErrors(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}
		w.Write([]byte(`{"height":"42"}`))
	}))
	defer srv.Close()

	c := New(zap.NewNop())

	var out struct {
		Height string `json:"height"`
	}

	err := c.GetWithRetry(context.Background(), srv.URL, 3, &out)
	require.NoError(t, err)
	assert.Equal(t, "42", out.Height)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetExhaustsBudget(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(zap.NewNop())

	err := c.GetWithRetry(context.Background(), srv.URL, 2, nil)
	require.Error(t, err)
	// budget of 2 retries means 3 attempts in total
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(zap.NewNop())

	err := c.GetWithRetry(context.Background(), srv.URL, 5, nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRecordAndMock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"recorded"}`))
	}))
	defer srv.Close()

	dir := t.TempDir()

	rec := New(zap.NewNop(), WithFixtures(ModeRecord, dir))
	require.NoError(t, rec.Get(context.Background(), srv.URL+"/account/x", nil))

	srv.Close() // mock mode must not need the network

	mock := New(zap.NewNop(), WithFixtures(ModeMock, dir))

	var out struct {
		Result string `json:"result"`
	}

	require.NoError(t, mock.Get(context.Background(), srv.URL+"/account/x", &out))
	assert.Equal(t, "recorded", out.Result)
}
