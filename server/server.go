// Package server exposes the aggregator over a RESTful API. Handlers follow
// a deferred-reply pattern: compute into local state, then a deferred block
// maps the error to a status code, logs the request and encodes the JSON
// response in one place.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ChorusOne/anthem-sub000/aggregator"
)

const (
	ioTimeout = 15 * time.Second

	// requestTimeout bounds each request's upstream work so one slow chain
	// endpoint cannot hang a query forever.
	requestTimeout = 10 * time.Second
)

// Server services the RESTful API over the aggregator.
type Server struct {
	agg *aggregator.Service
	log *zap.Logger
	s   *http.Server
}

func New(agg *aggregator.Service, log *zap.Logger) *Server {
	return &Server{agg: agg, log: log.Named("server")}
}

// Router builds the API route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestMiddleware)

	r.HandleFunc("/", s.homeHandler)
	r.HandleFunc("/networks", s.networksHandler).Methods("GET")                 // supported networks and capabilities
	r.HandleFunc("/balances/{address}", s.balancesHandler).Methods("GET")       // five-category balance
	r.HandleFunc("/transactions/{address}", s.transactionsHandler).Methods("GET") // paginated history
	r.HandleFunc("/transaction/{hash}", s.transactionHandler).Methods("GET")    // single transaction, also the broadcast poll endpoint
	r.HandleFunc("/history/{address}", s.historyHandler).Methods("GET")         // portfolio snapshots
	r.HandleFunc("/validators", s.validatorsHandler).Methods("GET")             // validator directory
	r.HandleFunc("/prices", s.pricesHandler).Methods("GET")                     // live quote
	r.HandleFunc("/prices/history", s.priceHistoryHandler).Methods("GET")       // daily closing prices
	r.HandleFunc("/prices/change", s.priceChangeHandler).Methods("GET")         // 24h movement
	r.HandleFunc("/broadcast", s.broadcastHandler).Methods("POST")              // relay signed payload
	r.HandleFunc("/download/{address}", s.downloadHandler).Methods("GET")       // full history download

	return r
}

// requestMiddleware tags every request with an id, installs the per-request
// deadline and logs the request once served.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		start := time.Now()
		next.ServeHTTP(rw, r.WithContext(ctx))

		s.log.Info("request",
			zap.String("id", id),
			zap.String("remote", r.RemoteAddr),
			zap.String("uri", r.RequestURI),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// Start runs the http server until Stop is called.
func (s *Server) Start(endpoint, port string) error {
	s.s = &http.Server{
		Handler:      s.Router(),
		Addr:         endpoint + ":" + port,
		WriteTimeout: ioTimeout,
		ReadTimeout:  ioTimeout,
	}

	s.log.Info("listening", zap.String("addr", s.s.Addr))

	if err := s.s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.s == nil {
		return nil
	}

	return s.s.Shutdown(ctx)
}
