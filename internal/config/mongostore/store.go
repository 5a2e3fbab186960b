// Package mongostore is the MongoDB-backed config.Store, persisting the
// hub's bootstrap defaults as a single fixed-_id document.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chronovault/internal/config"
	"chronovault/internal/retry"
)

// docID is the fixed _id every Store uses, since a deployment has exactly
// one bootstrap config document per collection.
const docID = "bootstrap"

type libraryDoc struct {
	Name string `bson:"name"`
	Kind string `bson:"kind"`
}

type doc struct {
	ID                        string       `bson:"_id"`
	DefaultQuotaBytes         int64        `bson:"default_quota_bytes"`
	DefaultGracePeriodSeconds int64        `bson:"default_grace_period_seconds"`
	DefaultSegmentTargetSize  int          `bson:"default_segment_target_size"`
	DefaultTickTargetRowCount int          `bson:"default_tick_target_row_count"`
	Libraries                 []libraryDoc `bson:"libraries"`
}

// Store is a MongoDB-backed config.Store.
type Store struct {
	coll *mongo.Collection
}

var _ config.Store = (*Store)(nil)

// New wraps an existing collection, typically a dedicated "chronovault"
// database's "config" collection.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// Load implements config.Store.
func (s *Store) Load(ctx context.Context) (*config.Config, error) {
	var d doc
	err := retry.Do(ctx, func() error {
		return s.coll.FindOne(ctx, bson.M{"_id": docID}).Decode(&d)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}

	libs := make([]config.LibraryConfig, len(d.Libraries))
	for i, l := range d.Libraries {
		libs[i] = config.LibraryConfig{Name: l.Name, Kind: l.Kind}
	}
	return &config.Config{
		DefaultQuotaBytes:         d.DefaultQuotaBytes,
		DefaultGracePeriodSeconds: d.DefaultGracePeriodSeconds,
		DefaultSegmentTargetSize:  d.DefaultSegmentTargetSize,
		DefaultTickTargetRowCount: d.DefaultTickTargetRowCount,
		Libraries:                 libs,
	}, nil
}

// Save implements config.Store, upserting the single bootstrap document.
func (s *Store) Save(ctx context.Context, cfg *config.Config) error {
	libs := make([]libraryDoc, len(cfg.Libraries))
	for i, l := range cfg.Libraries {
		libs[i] = libraryDoc{Name: l.Name, Kind: l.Kind}
	}
	d := doc{
		ID:                        docID,
		DefaultQuotaBytes:         cfg.DefaultQuotaBytes,
		DefaultGracePeriodSeconds: cfg.DefaultGracePeriodSeconds,
		DefaultSegmentTargetSize:  cfg.DefaultSegmentTargetSize,
		DefaultTickTargetRowCount: cfg.DefaultTickTargetRowCount,
		Libraries:                 libs,
	}
	err := retry.Do(ctx, func() error {
		_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": docID}, d, options.Replace().SetUpsert(true))
		return err
	})
	if err != nil {
		return fmt.Errorf("config: save: %w", err)
	}
	return nil
}
