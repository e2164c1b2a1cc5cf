// Package mongo implements the ledger read interface for MongoDB. The
// extractor pipeline writes one collection per network named
// "snapshots_<NETWORK>"; documents carry the address and the five balance
// categories per day.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ChorusOne/anthem-sub000/lib/chain/types"
	"github.com/ChorusOne/anthem-sub000/lib/store"
)

// Mongo implements a ledger connection to a MongoDB database.
type Mongo struct {
	c  *mgo.Client
	db string
}

// snapshotDoc is the on-disk shape written by the extractor.
type snapshotDoc struct {
	Address     string  `bson:"address"`
	Height      uint64  `bson:"height"`
	Timestamp   string  `bson:"timestamp"`
	Balance     string  `bson:"balance"`
	Rewards     string  `bson:"rewards"`
	Delegations string  `bson:"delegations"`
	Unbonding   string  `bson:"unbonding"`
	Commissions string  `bson:"commissions"`
	FiatPrice   float64 `bson:"fiatPrice"`
}

func (d snapshotDoc) snapshot() types.Snapshot {
	return types.Snapshot{
		Height:      d.Height,
		Timestamp:   d.Timestamp,
		Balance:     d.Balance,
		Rewards:     d.Rewards,
		Delegations: d.Delegations,
		Unbonding:   d.Unbonding,
		Commissions: d.Commissions,
		FiatPrice:   d.FiatPrice,
	}
}

// New returns a Mongo ledger reader connected to the specified MongoDB uri
// and database.
func New(uri, db string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c, db: db}, nil
}

// Close will close the database connection. Must be called at termination time.
func (m *Mongo) Close(ctx context.Context) error {
	return m.c.Disconnect(ctx)
}

// AccountSnapshots returns the stored snapshots for the address, ordered by
// height ascending.
func (m *Mongo) AccountSnapshots(ctx context.Context, network, address string) ([]types.Snapshot, error) {
	col := m.c.Database(m.db).Collection("snapshots_" + strings.ToUpper(network))

	cur, err := col.Find(ctx, bson.M{"address": address}, options.Find().SetSort(bson.D{{Key: "height", Value: 1}}))
	if err != nil {
		if errors.Is(err, mgo.ErrNoDocuments) {
			return nil, store.ErrDataNotFound
		}

		return nil, fmt.Errorf("error querying snapshots: %w", err)
	}
	defer cur.Close(ctx)

	snaps := []types.Snapshot{}

	for cur.Next(ctx) {
		var doc snapshotDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding snapshot: %w", err)
		}

		snaps = append(snaps, doc.snapshot())
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snaps, nil
}
