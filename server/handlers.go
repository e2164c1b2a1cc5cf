package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ChorusOne/anthem-sub000/aggregator"
	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
	"github.com/ChorusOne/anthem-sub000/lib/network"
	"github.com/ChorusOne/anthem-sub000/lib/page"
	"github.com/ChorusOne/anthem-sub000/lib/prices"
)

// Errors returned to client requests.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrMissingNet  = errors.New("undefined network - missing query: ?network=<name>")
	ErrNoBroadcast = errors.New("a network and a signed payload are required")
	ErrUpstream    = errors.New("upstream data could not be fetched")
)

// Response is the envelope returned to the client.
type Response struct {
	Body  interface{} `json:"body,omitempty"`
	Error string      `json:"error,omitempty"`
}

// reply maps the handler error to a status code and encodes the envelope.
// Upstream failures are reported to the client as a generic fetch error;
// the detail stays in the logs.
func reply(rw http.ResponseWriter, body interface{}, err error) {
	rw.Header().Set("Content-Type", "application/json;charset=utf8")

	if err != nil {
		code := status(err)

		// anything mapped to a gateway failure is an upstream problem the
		// client can do nothing about; the detail stays in the logs
		if code == http.StatusBadGateway {
			err = ErrUpstream
		}

		rw.WriteHeader(code)
		_ = json.NewEncoder(rw).Encode(Response{Error: err.Error()})

		return
	}

	rw.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(rw).Encode(Response{Body: body})
}

func status(err error) int {
	var nse *network.NotSupportedError

	switch {
	case errors.As(err, &nse),
		errors.Is(err, network.ErrUnknownNetwork),
		errors.Is(err, network.ErrUnknownAddressFormat),
		errors.Is(err, prices.ErrUnknownTicker),
		errors.Is(err, ErrMissingNet),
		errors.Is(err, ErrNoBroadcast),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrNotImplemented),
		errors.Is(err, aggregator.ErrNoValidatorDirectory):
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) homeHandler(rw http.ResponseWriter, r *http.Request) {
	reply(rw, "Hello, this is your multi-chain staking aggregator!", nil)
}

func (s *Server) networksHandler(rw http.ResponseWriter, r *http.Request) {
	reply(rw, s.agg.Networks(), nil)
}

func (s *Server) balancesHandler(rw http.ResponseWriter, r *http.Request) {
	bal, err := s.agg.AccountBalances(r.Context(), r.URL.Query().Get("network"), mux.Vars(r)["address"])
	reply(rw, bal, err)
}

func (s *Server) transactionsHandler(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pg, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("pageSize"))

	res, err := s.agg.Transactions(r.Context(), q.Get("network"), page.Request{
		Address: mux.Vars(r)["address"],
		Page:    pg,
		Limit:   limit,
	})
	reply(rw, res, err)
}

func (s *Server) transactionHandler(rw http.ResponseWriter, r *http.Request) {
	net := r.URL.Query().Get("network")
	if net == "" {
		reply(rw, nil, ErrMissingNet)

		return
	}

	tx, err := s.agg.Transaction(r.Context(), net, mux.Vars(r)["hash"])
	reply(rw, tx, err)
}

func (s *Server) historyHandler(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	snaps, err := s.agg.AccountHistory(r.Context(), q.Get("network"), mux.Vars(r)["address"], q.Get("fiat"))
	reply(rw, snaps, err)
}

func (s *Server) validatorsHandler(rw http.ResponseWriter, r *http.Request) {
	net := r.URL.Query().Get("network")
	if net == "" {
		net = network.Oasis
	}

	vals, err := s.agg.Validators(r.Context(), net)
	reply(rw, vals, err)
}

func (s *Server) pricesHandler(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	quote, err := s.agg.Price(r.Context(), q.Get("currency"), q.Get("versus"))
	reply(rw, quote, err)
}

func (s *Server) priceHistoryHandler(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	hist, err := s.agg.FiatPriceHistory(r.Context(), q.Get("fiat"), q.Get("network"))
	reply(rw, hist, err)
}

func (s *Server) priceChangeHandler(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ch, err := s.agg.DailyPercentChange(r.Context(), q.Get("crypto"), q.Get("fiat"))
	reply(rw, ch, err)
}

// broadcastReq carries a pre-signed transaction payload to relay.
type broadcastReq struct {
	Network string          `json:"network"`
	Payload json.RawMessage `json:"payload"`
}

// broadcastResp returns the hash to poll via GET /transaction/{hash}.
type broadcastResp struct {
	Hash string `json:"hash"`
}

func (s *Server) broadcastHandler(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		reply(rw, nil, ErrBadRequest)

		return
	}

	var req broadcastReq
	if err := json.Unmarshal(body, &req); err != nil {
		reply(rw, nil, ErrBadRequest)

		return
	}

	if req.Network == "" || len(req.Payload) == 0 {
		reply(rw, nil, ErrNoBroadcast)

		return
	}

	hash, err := s.agg.Broadcast(r.Context(), req.Network, req.Payload)
	reply(rw, broadcastResp{Hash: hash}, err)
}

func (s *Server) downloadHandler(rw http.ResponseWriter, r *http.Request) {
	txs, err := s.agg.DownloadTransactions(r.Context(), r.URL.Query().Get("network"), mux.Vars(r)["address"])
	reply(rw, txs, err)
}
