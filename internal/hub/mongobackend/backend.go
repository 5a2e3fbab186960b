// Package mongobackend is the production hub.Backend: every library it
// builds is backed by real MongoDB collections reached through a single
// shared *mongo.Client, reconnected via internal/authprovider on Reset.
package mongobackend

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chronovault/internal/authprovider"
	"chronovault/internal/hub"
	"chronovault/internal/library"
	"chronovault/internal/quota"
	segmentmongo "chronovault/internal/segment/mongostore"
	snapshotmongo "chronovault/internal/snapshot/mongostore"
	"chronovault/internal/tickstore"
	tickmongo "chronovault/internal/tickstore/mongostore"
	versionmongo "chronovault/internal/version/mongostore"
)

// Naming convention for a library named "namespace.base": the segment store
// lives in collection "base", the version index in "base.versions" and
// "base.version_nums", the snapshot index in "base.snapshots". namespace
// picks the Mongo database.
const (
	versionsSuffix = ".versions"
	countersSuffix = ".version_nums"
	snapshotSuffix = ".snapshots"
)

// Backend is the production hub.Backend.
type Backend struct {
	uri    string
	client atomic.Pointer[mongo.Client]
	auth   authprovider.Provider
}

var _ hub.Backend = (*Backend)(nil)

// New dials uri and returns a Backend authenticating through auth. auth may
// be nil if uri already embeds credentials or the deployment uses
// unauthenticated connections (e.g. a local dev Mongo).
func New(ctx context.Context, uri string, auth authprovider.Provider) (*Backend, error) {
	b := &Backend{uri: uri, auth: auth}
	if err := b.connect(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) connect(ctx context.Context) error {
	clientOpts := options.Client().ApplyURI(b.uri)
	if b.auth != nil {
		creds, err := b.auth.Retrieve(ctx)
		if err != nil {
			return fmt.Errorf("mongobackend: retrieve credentials: %w", err)
		}
		clientOpts.SetAuth(options.Credential{Username: creds.Username, Password: creds.Password})
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return fmt.Errorf("mongobackend: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongobackend: ping: %w", err)
	}
	b.client.Store(client)
	return nil
}

func (b *Backend) namespace(name string) *mongo.Database {
	return b.client.Load().Database(hub.Namespace(name))
}

func baseName(name string) string {
	if i := len(hub.Namespace(name)); i > 0 {
		return name[i+1:]
	}
	return name
}

// NewVersionStore implements hub.Backend.
func (b *Backend) NewVersionStore(ctx context.Context, name string, opts library.Options) (*library.Store, error) {
	db := b.namespace(name)
	base := baseName(name)

	segColl := db.Collection(base)
	versColl := db.Collection(base + versionsSuffix)
	counterColl := db.Collection(base + countersSuffix)
	snapColl := db.Collection(base + snapshotSuffix)

	if err := segmentmongo.EnsureIndexes(ctx, segColl); err != nil {
		return nil, fmt.Errorf("mongobackend: version store %s: %w", name, err)
	}
	if err := versionmongo.EnsureIndexes(ctx, versColl, counterColl); err != nil {
		return nil, fmt.Errorf("mongobackend: version store %s: %w", name, err)
	}
	if err := snapshotmongo.EnsureIndexes(ctx, snapColl); err != nil {
		return nil, fmt.Errorf("mongobackend: version store %s: %w", name, err)
	}

	segs := segmentmongo.New(segColl)
	vers := versionmongo.New(versColl, counterColl)
	snaps := snapshotmongo.New(snapColl)
	return library.New(segs, vers, snaps, opts), nil
}

// NewTickStore implements hub.Backend.
func (b *Backend) NewTickStore(ctx context.Context, name string, opts tickstore.Options) (*tickstore.Library, error) {
	db := b.namespace(name)
	coll := db.Collection(baseName(name))
	if err := tickmongo.EnsureIndexes(ctx, coll); err != nil {
		return nil, fmt.Errorf("mongobackend: tick store %s: %w", name, err)
	}
	return tickstore.New(tickmongo.New(coll), opts), nil
}

// RenameLibrary implements hub.Backend by renaming the underlying
// collections in place via the admin renameCollection command.
func (b *Backend) RenameLibrary(ctx context.Context, oldName, newName string, kind hub.Kind) error {
	if kind == hub.KindTopLevelTickStore {
		return nil
	}
	dbName := hub.Namespace(oldName)
	oldBase := baseName(oldName)
	newBase := baseName(newName)

	suffixes := []string{""}
	if kind == hub.KindVersionStore {
		suffixes = []string{"", versionsSuffix, countersSuffix, snapshotSuffix}
	}
	admin := b.client.Load().Database("admin")
	for _, suffix := range suffixes {
		cmd := bson.D{
			{Key: "renameCollection", Value: dbName + "." + oldBase + suffix},
			{Key: "to", Value: dbName + "." + newBase + suffix},
		}
		if err := admin.RunCommand(ctx, cmd).Err(); err != nil {
			return fmt.Errorf("mongobackend: rename %s to %s: %w", oldName, newName, err)
		}
	}
	return nil
}

// DeleteLibrary implements hub.Backend by dropping every collection
// belonging to name.
func (b *Backend) DeleteLibrary(ctx context.Context, name string, kind hub.Kind) error {
	if kind == hub.KindTopLevelTickStore {
		return nil
	}
	db := b.namespace(name)
	base := baseName(name)

	suffixes := []string{""}
	if kind == hub.KindVersionStore {
		suffixes = []string{"", versionsSuffix, countersSuffix, snapshotSuffix}
	}
	for _, suffix := range suffixes {
		if err := db.Collection(base + suffix).Drop(ctx); err != nil {
			return fmt.Errorf("mongobackend: delete %s: %w", name, err)
		}
	}
	return nil
}

// QuotaSampler implements hub.Backend, sampling the namespace database's
// dbStats. Every library sharing a namespace shares this sampler's view,
// since Mongo's storage accounting is per-database, not per-collection.
func (b *Backend) QuotaSampler(ctx context.Context, name string) (quota.Sampler, error) {
	return quota.NewMongoSampler(b.namespace(name)), nil
}

// Reset implements hub.Backend by reconnecting with freshly-retrieved
// credentials and swapping the client atomically. Libraries initialized
// after Reset pick up the new client; collections already handed out to an
// open library.Store or tickstore.Library keep referencing the pre-Reset
// client, so Reset is a recovery path for credential rotation between
// library lifecycles, not a live failover underneath an open connection.
func (b *Backend) Reset(ctx context.Context) error {
	old := b.client.Load()
	if err := b.connect(ctx); err != nil {
		return err
	}
	if old != nil {
		_ = old.Disconnect(ctx)
	}
	return nil
}
