// Package mongostore is the MongoDB-backed segment.Store, persisting
// segments in a library's db.base collection.
package mongostore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chronovault/internal/chronoerr"
	"chronovault/internal/chunking"
	"chronovault/internal/retry"
	"chronovault/internal/segment"
)

// doc is the document shape of one row in db.base: one document per
// (symbol, sha), with parent_versions as a multi-valued reference count.
type doc struct {
	Symbol         string   `bson:"symbol"`
	Sha            string   `bson:"sha"`
	SegmentIndex   int      `bson:"segment_index"`
	ParentVersions []string `bson:"parent_versions"`
	Compressed     []byte   `bson:"compressed"`
}

// Store is a MongoDB-backed segment.Store.
type Store struct {
	coll *mongo.Collection
}

var _ segment.Store = (*Store)(nil)

// New wraps an existing db.base collection. EnsureIndexes should be called
// once per library, typically from hub.InitializeLibrary.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the indexes db.base requires: unique (symbol,
// parent, segment), unique (symbol, sha), hashed symbol.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "parent_versions", Value: 1}, {Key: "segment_index", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("symbol_parent_segment_unique"),
		},
		{
			Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "sha", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("symbol_sha_unique"),
		},
		{
			Keys:    bson.D{{Key: "symbol", Value: "hashed"}},
			Options: options.Index().SetName("symbol_hashed"),
		},
	})
	if err != nil {
		return fmt.Errorf("segment: ensure indexes: %w", err)
	}
	return nil
}

// PutSegment implements segment.Store. It upserts on (symbol, sha):
// $setOnInsert establishes the immutable fields on first write, and
// $addToSet makes the versionID append idempotent.
func (s *Store) PutSegment(ctx context.Context, symbol string, seg chunking.Segment, versionID segment.VersionID) (bool, error) {
	filter := bson.M{"symbol": symbol, "sha": seg.Sha.String()}
	update := bson.M{
		"$setOnInsert": bson.M{
			"symbol":        symbol,
			"sha":           seg.Sha.String(),
			"segment_index": seg.Index,
			"compressed":    seg.Compressed,
		},
		"$addToSet": bson.M{"parent_versions": string(versionID)},
	}
	var result *mongo.UpdateResult
	err := retry.Do(ctx, func() error {
		var err error
		result, err = s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		return err
	})
	if err != nil {
		return false, fmt.Errorf("segment: put %s/%s: %w", symbol, seg.Sha, err)
	}
	return result.UpsertedCount > 0, nil
}

// GetSegments implements segment.Store.
func (s *Store) GetSegments(ctx context.Context, symbol string, shas []chunking.Sha) ([]chunking.Segment, error) {
	out := make([]chunking.Segment, len(shas))
	for i, sha := range shas {
		var d doc
		err := retry.Do(ctx, func() error {
			return s.coll.FindOne(ctx, bson.M{"symbol": symbol, "sha": sha.String()}).Decode(&d)
		})
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("segment: %s/%s: %w", symbol, sha, chronoerr.ErrCorruptedData)
		}
		if err != nil {
			return nil, fmt.Errorf("segment: get %s/%s: %w", symbol, sha, err)
		}
		out[i] = chunking.Segment{Index: i, Sha: sha, Compressed: d.Compressed}
	}
	return out, nil
}

// Release implements segment.Store.
func (s *Store) Release(ctx context.Context, symbol string, versionID segment.VersionID) ([]chunking.Sha, error) {
	filter := bson.M{"symbol": symbol, "parent_versions": string(versionID)}

	var candidates []doc
	err := retry.Do(ctx, func() error {
		cur, err := s.coll.Find(ctx, filter)
		if err != nil {
			return err
		}
		return cur.All(ctx, &candidates)
	})
	if err != nil {
		return nil, fmt.Errorf("segment: release %s: find candidates: %w", symbol, err)
	}

	err = retry.Do(ctx, func() error {
		_, err := s.coll.UpdateMany(ctx, filter, bson.M{"$pull": bson.M{"parent_versions": string(versionID)}})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("segment: release %s: pull: %w", symbol, err)
	}

	var emptied []chunking.Sha
	for _, d := range candidates {
		if len(d.ParentVersions) == 1 && d.ParentVersions[0] == string(versionID) {
			raw, err := hex.DecodeString(d.Sha)
			if err != nil || len(raw) != len(chunking.Sha{}) {
				return nil, fmt.Errorf("segment: release %s: parse sha %q: %w", symbol, d.Sha, err)
			}
			var sha chunking.Sha
			copy(sha[:], raw)
			emptied = append(emptied, sha)
		}
	}
	return emptied, nil
}

// ListShas implements segment.Store.
func (s *Store) ListShas(ctx context.Context, symbol string) ([]segment.Stored, error) {
	var docs []doc
	err := retry.Do(ctx, func() error {
		cur, err := s.coll.Find(ctx, bson.M{"symbol": symbol})
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("segment: list shas for %s: %w", symbol, err)
	}
	out := make([]segment.Stored, 0, len(docs))
	for _, d := range docs {
		raw, err := hex.DecodeString(d.Sha)
		if err != nil || len(raw) != len(chunking.Sha{}) {
			return nil, fmt.Errorf("segment: list shas for %s: parse sha %q: %w", symbol, d.Sha, err)
		}
		var sha chunking.Sha
		copy(sha[:], raw)
		parents := make([]segment.VersionID, len(d.ParentVersions))
		for i, p := range d.ParentVersions {
			parents[i] = segment.VersionID(p)
		}
		out = append(out, segment.Stored{
			Symbol:         symbol,
			Sha:            sha,
			SegmentIndex:   d.SegmentIndex,
			Compressed:     d.Compressed,
			ParentVersions: parents,
		})
	}
	return out, nil
}

// DeleteOrphans implements segment.Store.
func (s *Store) DeleteOrphans(ctx context.Context, symbol string, shas []chunking.Sha) error {
	if len(shas) == 0 {
		return nil
	}
	hexes := make([]string, len(shas))
	for i, sha := range shas {
		hexes[i] = sha.String()
	}
	err := retry.Do(ctx, func() error {
		_, err := s.coll.DeleteMany(ctx, bson.M{"symbol": symbol, "sha": bson.M{"$in": hexes}})
		return err
	})
	if err != nil {
		return fmt.Errorf("segment: delete orphans for %s: %w", symbol, err)
	}
	return nil
}
