package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ensureIndexes(ctx context.Context, r *Repo) error {
	// participant lookups for the contracts-by-user query
	_, err := r.contracts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "state.exporter", Value: 1}}},
		{Keys: bson.D{{Key: "state.importer", Value: 1}}},
		{Keys: bson.D{{Key: "state.logistics", Value: 1}}},
		{Keys: bson.D{{Key: "state.insurance", Value: 1}}},
		{Keys: bson.D{{Key: "state.inspector", Value: 1}}},
		{Keys: bson.D{{Key: "state.lastUpdated", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = r.outbox.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("status_created"),
		},
		{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}
