package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tradelane/contract-ledger/internal/core"
	"github.com/tradelane/contract-ledger/internal/service"
)

type Repo struct {
	contracts *mongo.Collection
	idem      *mongo.Collection
	outbox    *mongo.Collection
}

type Config struct {
	URI         string
	DB          string
	Contracts   string
	Idempotency string
	Outbox      string
}

func New(ctx context.Context, cfg Config) (*Repo, error) {
	cl, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	db := cl.Database(cfg.DB)
	r := &Repo{
		contracts: db.Collection(cfg.Contracts),
		idem:      db.Collection(cfg.Idempotency),
		outbox:    db.Collection(cfg.Outbox),
	}
	if err := ensureIndexes(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repo) Get(ctx context.Context, address string) (core.ContractRecord, error) {
	var out core.ContractRecord
	err := r.contracts.FindOne(ctx, bson.M{"_id": address}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.ContractRecord{}, service.ErrNotFound
	}
	return out, err
}

func (r *Repo) Create(ctx context.Context, rec core.ContractRecord) error {
	_, err := r.contracts.InsertOne(ctx, rec)
	if isDup(err) {
		return service.ErrConflict
	}
	return err
}

// Append is the version-guarded write: history push, state replacement and
// the version bump land in one document update or not at all. A stale
// version matches nothing and surfaces as ErrConflict for the CAS loop.
func (r *Repo) Append(ctx context.Context, address string, version int64, entry core.ActionEntry, state core.ContractState) error {
	res, err := r.contracts.UpdateOne(ctx,
		bson.M{"_id": address, "version": version},
		bson.M{
			"$push": bson.M{"history": entry},
			"$set":  bson.M{"state": state},
			"$inc":  bson.M{"version": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return service.ErrConflict
	}
	return nil
}

func (r *Repo) ByParticipant(ctx context.Context, user string) ([]core.ContractRecord, error) {
	q := bson.M{"$or": bson.A{
		bson.M{"state.exporter": user},
		bson.M{"state.importer": user},
		bson.M{"state.logistics": user},
		bson.M{"state.insurance": user},
		bson.M{"state.inspector": user},
	}}
	cur, err := r.contracts.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "state.lastUpdated", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var list []core.ContractRecord
	for cur.Next(ctx) {
		var rec core.ContractRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, cur.Err()
}

type idemDoc struct {
	Hash  string           `bson:"_id"`
	Entry core.ActionEntry `bson:"entry"`
}

func (r *Repo) IdemLookup(ctx context.Context, hash string) (core.ActionEntry, bool, error) {
	var out idemDoc
	err := r.idem.FindOne(ctx, bson.M{"_id": hash}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.ActionEntry{}, false, nil
	}
	if err != nil {
		return core.ActionEntry{}, false, err
	}
	return out.Entry, true, nil
}

func (r *Repo) IdemSave(ctx context.Context, hash string, entry core.ActionEntry) error {
	_, err := r.idem.InsertOne(ctx, idemDoc{Hash: hash, Entry: entry})
	if isDup(err) {
		return nil
	}
	return err
}

func isDup(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}
