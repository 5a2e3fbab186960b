// Package mongostore is the MongoDB-backed tickstore.Store, persisting
// one document per chunk in a tick library's collection.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chronovault/internal/chronoerr"
	"chronovault/internal/retry"
	"chronovault/internal/table"
	"chronovault/internal/tickstore"
)

type columnChunkDoc struct {
	Name       string      `bson:"name"`
	Dtype      table.Dtype `bson:"dtype"`
	Compressed []byte      `bson:"compressed"`
}

type chunkDoc struct {
	Symbol          string                 `bson:"symbol"`
	StartMS         int64                  `bson:"start_ms"`
	EndMS           int64                  `bson:"end_ms"`
	Count           int                    `bson:"count"`
	IndexCompressed []byte                 `bson:"index_compressed"`
	Columns         []columnChunkDoc       `bson:"columns"`
	Timezone        string                 `bson:"timezone"`
	Image           map[string]interface{} `bson:"image"`
}

// Store is a MongoDB-backed tickstore.Store.
type Store struct {
	coll *mongo.Collection
}

var _ tickstore.Store = (*Store)(nil)

// New wraps an existing collection. EnsureIndexes should be called once
// per library, typically from hub.InitializeLibrary.
func New(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the (symbol, start_ms) index ListChunks/MinDate/
// MaxDate rely on for efficient range queries.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "symbol", Value: 1}, {Key: "start_ms", Value: 1}},
		Options: options.Index().SetName("symbol_start"),
	})
	if err != nil {
		return fmt.Errorf("tickstore: ensure indexes: %w", err)
	}
	return nil
}

// PutChunk implements tickstore.Store. Insert is retried with backoff on
// transient network errors, since a chunk is only ever written once and
// retrying cannot duplicate it under a unique index violation.
func (s *Store) PutChunk(ctx context.Context, c tickstore.Chunk) error {
	doc := toDoc(c)
	err := retry.Do(ctx, func() error {
		_, err := s.coll.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return fmt.Errorf("tickstore: put chunk for %s: %w", c.Symbol, err)
	}
	return nil
}

// ListChunks implements tickstore.Store.
func (s *Store) ListChunks(ctx context.Context, symbol string, from, to time.Time) ([]tickstore.Chunk, error) {
	filter := bson.M{"symbol": symbol}
	if !from.IsZero() {
		filter["end_ms"] = bson.M{"$gte": from.UnixMilli()}
	}
	if !to.IsZero() {
		filter["start_ms"] = bson.M{"$lte": to.UnixMilli()}
	}

	var docs []chunkDoc
	err := retry.Do(ctx, func() error {
		cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_ms", Value: 1}}))
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, fmt.Errorf("tickstore: list chunks for %s: %w", symbol, err)
	}
	out := make([]tickstore.Chunk, len(docs))
	for i, d := range docs {
		out[i] = fromDoc(d)
	}
	return out, nil
}

// MinDate implements tickstore.Store.
func (s *Store) MinDate(ctx context.Context, symbol string) (time.Time, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "start_ms", Value: 1}})
	var d chunkDoc
	err := retry.Do(ctx, func() error {
		return s.coll.FindOne(ctx, bson.M{"symbol": symbol}, opts).Decode(&d)
	})
	if err == mongo.ErrNoDocuments {
		return time.Time{}, fmt.Errorf("tickstore: symbol %q: %w", symbol, chronoerr.ErrNoDataFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("tickstore: min date for %s: %w", symbol, err)
	}
	return time.UnixMilli(d.StartMS).UTC(), nil
}

// MaxDate implements tickstore.Store.
func (s *Store) MaxDate(ctx context.Context, symbol string) (time.Time, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "end_ms", Value: -1}})
	var d chunkDoc
	err := retry.Do(ctx, func() error {
		return s.coll.FindOne(ctx, bson.M{"symbol": symbol}, opts).Decode(&d)
	})
	if err == mongo.ErrNoDocuments {
		return time.Time{}, fmt.Errorf("tickstore: symbol %q: %w", symbol, chronoerr.ErrNoDataFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("tickstore: max date for %s: %w", symbol, err)
	}
	return time.UnixMilli(d.EndMS).UTC(), nil
}

// ListSymbols implements tickstore.Store.
func (s *Store) ListSymbols(ctx context.Context) ([]string, error) {
	var raw []interface{}
	err := retry.Do(ctx, func() error {
		var err error
		raw, err = s.coll.Distinct(ctx, "symbol", bson.M{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("tickstore: list symbols: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if sym, ok := v.(string); ok {
			out = append(out, sym)
		}
	}
	return out, nil
}

// DeleteSymbol implements tickstore.Store.
func (s *Store) DeleteSymbol(ctx context.Context, symbol string) error {
	err := retry.Do(ctx, func() error {
		_, err := s.coll.DeleteMany(ctx, bson.M{"symbol": symbol})
		return err
	})
	if err != nil {
		return fmt.Errorf("tickstore: delete symbol %s: %w", symbol, err)
	}
	return nil
}

func toDoc(c tickstore.Chunk) chunkDoc {
	cols := make([]columnChunkDoc, len(c.Columns))
	for i, cc := range c.Columns {
		cols[i] = columnChunkDoc{Name: cc.Name, Dtype: cc.Dtype, Compressed: cc.Compressed}
	}
	return chunkDoc{
		Symbol:          c.Symbol,
		StartMS:         c.Start.UnixMilli(),
		EndMS:           c.End.UnixMilli(),
		Count:           c.Count,
		IndexCompressed: c.IndexCompressed,
		Columns:         cols,
		Timezone:        c.Timezone,
		Image:           c.Image,
	}
}

func fromDoc(d chunkDoc) tickstore.Chunk {
	cols := make([]tickstore.ColumnChunk, len(d.Columns))
	for i, cc := range d.Columns {
		cols[i] = tickstore.ColumnChunk{Name: cc.Name, Dtype: cc.Dtype, Compressed: cc.Compressed}
	}
	return tickstore.Chunk{
		Symbol:          d.Symbol,
		Start:           time.UnixMilli(d.StartMS).UTC(),
		End:             time.UnixMilli(d.EndMS).UTC(),
		Count:           d.Count,
		IndexCompressed: d.IndexCompressed,
		Columns:         cols,
		Timezone:        d.Timezone,
		Image:           d.Image,
	}
}
