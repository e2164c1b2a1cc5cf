// Package anthem and its sub-packages implement the aggregation backend for
// a multi-chain staking dashboard.
/*
The service presents one unified RESTful API over several blockchain networks
(COSMOS, TERRA, KAVA, OASIS and CELO). Each network exposes a different REST
shape upstream; a per-chain adapter (package lib/chain and its sub-packages)
translates balances, transactions and account history into one normalized
schema, so the dashboard renders every network the same way.

Architecture

The aggregator service package is the query-facing layer: it resolves the
target network from an explicit identifier or from the address format,
enforces each network's capability contract before any upstream call, and
dispatches to the chain adapters. The server package exposes the aggregator
over HTTP (package server) with gorilla/mux.

Cross-cutting concerns live under lib/: a closed network registry with
capability flags (lib/network), an upstream host table validated at startup
(lib/hosts), a retrying HTTP fetcher with exponential backoff (lib/fetch), a
TTL response cache with in-memory and redis backings (lib/cache), pagination
and timestamp normalization (lib/page, lib/tstamp), the fiat price client
(lib/prices) and the read interface over the external historical-ledger
database (lib/store).

Networks differ in what they support: the capability registry declares per
network whether balances, transaction history, portfolio snapshots and fiat
prices are available, and unsupported queries are rejected before any
upstream traffic. Adding a network without wiring its adapter and upstream
host is a startup failure, not a request-time surprise.

One or more instances can be orchestrated behind a load balancer; with the
redis cache backing, instances share cached upstream responses.
*/
package anthem
