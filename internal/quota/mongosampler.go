package quota

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// dbStatsResult is the subset of the dbStats admin command response quota
// cares about. StorageSize reflects on-disk size including compression,
// which is the number compared against the configured limit.
type dbStatsResult struct {
	StorageSize int64 `bson:"storageSize"`
}

// MongoSampler samples a database's storage usage via the dbStats admin
// command, the document-database analogue of a filesystem du.
type MongoSampler struct {
	db *mongo.Database
}

var _ Sampler = (*MongoSampler)(nil)

// NewMongoSampler wraps db for quota sampling.
func NewMongoSampler(db *mongo.Database) *MongoSampler {
	return &MongoSampler{db: db}
}

// SampleBytes implements Sampler.
func (m *MongoSampler) SampleBytes(ctx context.Context) (int64, error) {
	var result dbStatsResult
	if err := m.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}, {Key: "scale", Value: 1}}).Decode(&result); err != nil {
		return 0, fmt.Errorf("quota: dbStats: %w", err)
	}
	return result.StorageSize, nil
}
