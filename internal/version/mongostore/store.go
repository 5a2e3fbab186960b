// Package mongostore is the MongoDB-backed version.Index, persisting
// version documents in db.base.versions and the counter in
// db.base.version_nums.
package mongostore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chronovault/internal/chronoerr"
	"chronovault/internal/chunking"
	"chronovault/internal/retry"
	"chronovault/internal/segment"
	"chronovault/internal/table"
	"chronovault/internal/version"
)

type columnDoc struct {
	Name  string `bson:"name"`
	Dtype byte   `bson:"dtype"`
}

type descriptorDoc struct {
	Columns  []columnDoc `bson:"columns"`
	Timezone string      `bson:"timezone"`
	RowCount int         `bson:"row_count"`
}

type versionDoc struct {
	Symbol        string        `bson:"symbol"`
	Number        int64         `bson:"version"`
	VersionID     string        `bson:"version_id"`
	SegmentShas   []string      `bson:"segment_shas"`
	Descriptor    descriptorDoc `bson:"descriptor"`
	Metadata      bson.M        `bson:"metadata"`
	Timestamp     int64         `bson:"timestamp_ms"`
	ParentVersion *int64        `bson:"parent_version,omitempty"`
	LastIndex     int64         `bson:"last_index_ms"`
}

type counterDoc struct {
	Symbol      string `bson:"symbol"`
	NextVersion int64  `bson:"next_version"`
}

// Store is the MongoDB-backed version.Index. It owns two collections:
// versions (db.base.versions) and counters (db.base.version_nums).
type Store struct {
	versions *mongo.Collection
	counters *mongo.Collection
}

var _ version.Index = (*Store)(nil)

// New wraps the versions and counters collections.
func New(versions, counters *mongo.Collection) *Store {
	return &Store{versions: versions, counters: counters}
}

// EnsureIndexes creates the indexes version lookups require.
func EnsureIndexes(ctx context.Context, versions, counters *mongo.Collection) error {
	_, err := versions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("symbol_id_desc"),
		},
		{
			Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "version", Value: -1}},
			Options: options.Index().SetUnique(true).SetName("symbol_version_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("version: ensure version indexes: %w", err)
	}
	_, err = counters.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "symbol", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("symbol_unique"),
	})
	if err != nil {
		return fmt.Errorf("version: ensure counter index: %w", err)
	}
	return nil
}

// NextVersionNumber implements version.Index using an atomic
// FindOneAndUpdate $inc upsert, the document-database analogue of an
// atomic find-and-modify primitive.
func (s *Store) NextVersionNumber(ctx context.Context, symbol string) (int64, error) {
	var out counterDoc
	err := retry.Do(ctx, func() error {
		return s.counters.FindOneAndUpdate(
			ctx,
			bson.M{"symbol": symbol},
			bson.M{"$inc": bson.M{"next_version": int64(1)}},
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
		).Decode(&out)
	})
	if err != nil {
		return 0, fmt.Errorf("version: next version number for %s: %w", symbol, err)
	}
	return out.NextVersion, nil
}

// CurrentCounter implements version.Index.
func (s *Store) CurrentCounter(ctx context.Context, symbol string) (int64, error) {
	var out counterDoc
	err := retry.Do(ctx, func() error {
		return s.counters.FindOne(ctx, bson.M{"symbol": symbol}).Decode(&out)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("version: current counter for %s: %w", symbol, err)
	}
	return out.NextVersion, nil
}

// AdvanceCounterTo implements version.Index. The filter's next_version
// bound means the upsert only inserts a fresh counter document when
// symbol has none yet; if a document exists but is already >= n, the
// $lt match fails and mongo would otherwise attempt an insert that
// collides with the unique symbol index, so that case is folded back
// into success.
func (s *Store) AdvanceCounterTo(ctx context.Context, symbol string, n int64) error {
	err := retry.Do(ctx, func() error {
		_, err := s.counters.UpdateOne(
			ctx,
			bson.M{"symbol": symbol, "next_version": bson.M{"$lt": n}},
			bson.M{"$set": bson.M{"next_version": n}},
			options.Update().SetUpsert(true),
		)
		return err
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("version: advance counter for %s to %d: %w", symbol, n, err)
	}
	return nil
}

// Insert implements version.Index.
func (s *Store) Insert(ctx context.Context, v version.Version) error {
	doc := toDoc(v)
	err := retry.Do(ctx, func() error {
		_, err := s.versions.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return fmt.Errorf("version: insert %s/%d: %w", v.Symbol, v.Number, err)
	}
	return nil
}

// Read implements version.Index.
func (s *Store) Read(ctx context.Context, symbol string, asOf version.AsOf) (version.Version, error) {
	var filter bson.M
	var sortKey bson.D

	switch asOf.Kind {
	case version.AsOfLatest:
		filter = bson.M{"symbol": symbol}
		sortKey = bson.D{{Key: "version", Value: -1}}
	case version.AsOfNumber:
		filter = bson.M{"symbol": symbol, "version": asOf.Number}
	case version.AsOfTimestamp:
		filter = bson.M{"symbol": symbol, "timestamp_ms": bson.M{"$lte": asOf.Timestamp.UnixMilli()}}
		sortKey = bson.D{{Key: "timestamp_ms", Value: -1}}
	default:
		return version.Version{}, fmt.Errorf("version: unknown AsOfKind %d", asOf.Kind)
	}

	opts := options.FindOne()
	if sortKey != nil {
		opts.SetSort(sortKey)
	}

	var d versionDoc
	err := retry.Do(ctx, func() error {
		return s.versions.FindOne(ctx, filter, opts).Decode(&d)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return version.Version{}, fmt.Errorf("version: %s: %w", symbol, chronoerr.ErrNoDataFound)
	}
	if err != nil {
		return version.Version{}, fmt.Errorf("version: read %s: %w", symbol, err)
	}
	return fromDoc(d)
}

// ListVersions implements version.Index.
func (s *Store) ListVersions(ctx context.Context, symbol string) ([]version.Version, error) {
	var docs []versionDoc
	err := retry.Do(ctx, func() error {
		cur, err := s.versions.Find(ctx, bson.M{"symbol": symbol}, options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("version: list %s: %w", symbol, err)
	}
	out := make([]version.Version, len(docs))
	for i, d := range docs {
		v, err := fromDoc(d)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// DeleteVersion implements version.Index.
func (s *Store) DeleteVersion(ctx context.Context, symbol string, number int64) error {
	err := retry.Do(ctx, func() error {
		_, err := s.versions.DeleteOne(ctx, bson.M{"symbol": symbol, "version": number})
		return err
	})
	if err != nil {
		return fmt.Errorf("version: delete %s/%d: %w", symbol, number, err)
	}
	return nil
}

// ListSymbols implements version.Index.
func (s *Store) ListSymbols(ctx context.Context) ([]string, error) {
	var syms []interface{}
	err := retry.Do(ctx, func() error {
		var err error
		syms, err = s.versions.Distinct(ctx, "symbol", bson.M{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("version: list symbols: %w", err)
	}
	out := make([]string, 0, len(syms))
	for _, s := range syms {
		if str, ok := s.(string); ok {
			out = append(out, str)
		}
	}
	return out, nil
}

// MaxVersionNumber implements version.Index.
func (s *Store) MaxVersionNumber(ctx context.Context, symbol string) (int64, error) {
	var d versionDoc
	err := retry.Do(ctx, func() error {
		return s.versions.FindOne(ctx, bson.M{"symbol": symbol}, options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})).Decode(&d)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("version: max version for %s: %w", symbol, err)
	}
	return d.Number, nil
}

func toDoc(v version.Version) versionDoc {
	shas := make([]string, len(v.SegmentShas))
	for i, sha := range v.SegmentShas {
		shas[i] = sha.String()
	}
	cols := make([]columnDoc, len(v.Descriptor.Columns))
	for i, c := range v.Descriptor.Columns {
		cols[i] = columnDoc{Name: c.Name, Dtype: byte(c.Dtype)}
	}
	return versionDoc{
		Symbol:      v.Symbol,
		Number:      v.Number,
		VersionID:   string(v.ID),
		SegmentShas: shas,
		Descriptor: descriptorDoc{
			Columns:  cols,
			Timezone: v.Descriptor.Timezone,
			RowCount: v.Descriptor.RowCount,
		},
		Metadata:      bson.M(v.Metadata),
		Timestamp:     v.Timestamp.UnixMilli(),
		ParentVersion: v.ParentVersion,
		LastIndex:     v.LastIndex.UnixMilli(),
	}
}

func fromDoc(d versionDoc) (version.Version, error) {
	shas := make([]chunking.Sha, len(d.SegmentShas))
	for i, hexSha := range d.SegmentShas {
		sha, err := parseSha(hexSha)
		if err != nil {
			return version.Version{}, fmt.Errorf("version: %s/%d: %w", d.Symbol, d.Number, errors.Join(chronoerr.ErrCorruptedData, err))
		}
		shas[i] = sha
	}
	cols := make([]chunking.ColumnDescriptor, len(d.Descriptor.Columns))
	for i, c := range d.Descriptor.Columns {
		cols[i] = chunking.ColumnDescriptor{Name: c.Name, Dtype: table.Dtype(c.Dtype)}
	}
	return version.Version{
		Symbol:      d.Symbol,
		Number:      d.Number,
		ID:          segment.VersionID(d.VersionID),
		SegmentShas: shas,
		Descriptor: chunking.Descriptor{
			Columns:  cols,
			Timezone: d.Descriptor.Timezone,
			RowCount: d.Descriptor.RowCount,
		},
		Metadata:      table.Metadata(d.Metadata),
		Timestamp:     time.UnixMilli(d.Timestamp).UTC(),
		ParentVersion: d.ParentVersion,
		LastIndex:     time.UnixMilli(d.LastIndex).UTC(),
	}, nil
}

func parseSha(hexSha string) (chunking.Sha, error) {
	var sha chunking.Sha
	raw, err := hex.DecodeString(hexSha)
	if err != nil {
		return sha, fmt.Errorf("parse sha %q: %w", hexSha, err)
	}
	if len(raw) != len(sha) {
		return sha, fmt.Errorf("parse sha %q: want %d bytes, got %d", hexSha, len(sha), len(raw))
	}
	copy(sha[:], raw)
	return sha, nil
}
