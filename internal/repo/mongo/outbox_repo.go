package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tradelane/contract-ledger/internal/core"
)

const (
	outboxPending = "PENDING"
	outboxSent    = "SENT"
	outboxFailed  = "FAILED"
)

type outboxDoc struct {
	core.Notification `bson:",inline"`

	Status    string     `bson:"status"`
	Attempts  int        `bson:"attempts"`
	LastError string     `bson:"lastError,omitempty"`
	SentAt    *time.Time `bson:"sentAt,omitempty"`
}

// Enqueue stages notifications for the dispatcher. Called on the append
// path, so it must stay a single insert.
func (r *Repo) Enqueue(ctx context.Context, ns []core.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	docs := make([]any, 0, len(ns))
	for _, n := range ns {
		docs = append(docs, outboxDoc{Notification: n, Status: outboxPending})
	}
	_, err := r.outbox.InsertMany(ctx, docs)
	return err
}

func (r *Repo) Pending(ctx context.Context, limit int64) ([]core.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(limit)
	cur, err := r.outbox.Find(ctx, bson.M{"status": outboxPending}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var list []core.Notification
	for cur.Next(ctx) {
		var d outboxDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		list = append(list, d.Notification)
	}
	return list, cur.Err()
}

func (r *Repo) MarkSent(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.outbox.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": outboxSent, "sentAt": now},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}

func (r *Repo) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := r.outbox.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": outboxFailed, "lastError": reason},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}
