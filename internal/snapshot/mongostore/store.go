// Package mongostore is the MongoDB-backed snapshot.Index, persisting
// snapshots in the library's db.snapshots collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chronovault/internal/chronoerr"
	"chronovault/internal/retry"
	"chronovault/internal/snapshot"
)

type snapshotDoc struct {
	Name      string           `bson:"name"`
	CreatedAt int64            `bson:"created_at_ms"`
	Versions  map[string]int64 `bson:"versions"`
	Metadata  bson.M           `bson:"metadata"`
}

// Store is the MongoDB-backed snapshot.Index.
type Store struct {
	coll *mongo.Collection
}

var _ snapshot.Index = (*Store)(nil)

// New wraps the db.snapshots collection.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the unique name index snapshot lookups require.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("name_unique"),
	})
	if err != nil {
		return fmt.Errorf("snapshot: ensure indexes: %w", err)
	}
	return nil
}

// Create implements snapshot.Index. The unique index on name is what
// actually enforces the invariant; a duplicate key error here is mapped to
// chronoerr.ErrDuplicateSnapshot.
func (s *Store) Create(ctx context.Context, snap snapshot.Snapshot) error {
	d := snapshotDoc{
		Name:      snap.Name,
		CreatedAt: snap.CreatedAt.UnixMilli(),
		Versions:  snap.Versions,
		Metadata:  bson.M(snap.Metadata),
	}
	err := retry.Do(ctx, func() error {
		_, err := s.coll.InsertOne(ctx, d)
		return err
	})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("snapshot: %s: %w", snap.Name, chronoerr.ErrDuplicateSnapshot)
	}
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", snap.Name, err)
	}
	return nil
}

// Get implements snapshot.Index.
func (s *Store) Get(ctx context.Context, name string) (snapshot.Snapshot, error) {
	var d snapshotDoc
	err := retry.Do(ctx, func() error {
		return s.coll.FindOne(ctx, bson.M{"name": name}).Decode(&d)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return snapshot.Snapshot{}, fmt.Errorf("snapshot: %s: %w", name, chronoerr.ErrNoDataFound)
	}
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("snapshot: get %s: %w", name, err)
	}
	return fromDoc(d), nil
}

// Delete implements snapshot.Index.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := retry.Do(ctx, func() error {
		_, err := s.coll.DeleteOne(ctx, bson.M{"name": name})
		return err
	})
	if err != nil {
		return fmt.Errorf("snapshot: delete %s: %w", name, err)
	}
	return nil
}

// List implements snapshot.Index.
func (s *Store) List(ctx context.Context) ([]snapshot.Snapshot, error) {
	var docs []snapshotDoc
	err := retry.Do(ctx, func() error {
		cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at_ms", Value: 1}}))
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}
	out := make([]snapshot.Snapshot, len(docs))
	for i, d := range docs {
		out[i] = fromDoc(d)
	}
	return out, nil
}

// VersionOf implements snapshot.Index.
func (s *Store) VersionOf(ctx context.Context, name, symbol string) (int64, error) {
	snap, err := s.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	n, ok := snap.Versions[symbol]
	if !ok {
		return 0, fmt.Errorf("snapshot: %s does not include symbol %s: %w", name, symbol, chronoerr.ErrNoDataFound)
	}
	return n, nil
}

// ReferencedVersions implements snapshot.Index.
func (s *Store) ReferencedVersions(ctx context.Context, symbol string) (map[int64]bool, error) {
	key := "versions." + symbol
	var docs []bson.M
	err := retry.Do(ctx, func() error {
		cur, err := s.coll.Find(ctx, bson.M{key: bson.M{"$exists": true}}, options.Find().SetProjection(bson.M{key: 1}))
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: referenced versions for %s: %w", symbol, err)
	}
	out := make(map[int64]bool)
	for _, d := range docs {
		versions, ok := d["versions"].(bson.M)
		if !ok {
			continue
		}
		if n, ok := versions[symbol]; ok {
			switch v := n.(type) {
			case int64:
				out[v] = true
			case int32:
				out[int64(v)] = true
			}
		}
	}
	return out, nil
}

func fromDoc(d snapshotDoc) snapshot.Snapshot {
	return snapshot.Snapshot{
		Name:      d.Name,
		CreatedAt: time.UnixMilli(d.CreatedAt).UTC(),
		Versions:  d.Versions,
		Metadata:  map[string]any(d.Metadata),
	}
}
