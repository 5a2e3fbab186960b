// Package authprovider supplies the MongoDB connection credentials the
// Arctic Hub authenticates with, cached and refreshed the way
// aws-sdk-go-v2/credentials caches a CredentialsProvider: Retrieve is cheap
// to call on every connection attempt, and Hub.Reset invalidates the cache
// so the next Retrieve re-derives credentials instead of reusing stale
// ones.
package authprovider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"chronovault/internal/logging"
)

// Credentials is the username/password pair a Mongo connection
// authenticates with. It is carried inside aws.Credentials' AccessKeyID
// and SecretAccessKey fields so the cache/expiry machinery in
// aws-sdk-go-v2/credentials can be reused unmodified for a non-AWS
// backend.
type Credentials struct {
	Username string
	Password string
}

func fromAWS(c aws.Credentials) Credentials {
	return Credentials{Username: c.AccessKeyID, Password: c.SecretAccessKey}
}

func toAWS(c Credentials) aws.Credentials {
	return aws.Credentials{AccessKeyID: c.Username, SecretAccessKey: c.Password, Source: "chronovault/authprovider"}
}

// Provider resolves connection credentials on demand.
type Provider interface {
	Retrieve(ctx context.Context) (Credentials, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context) (Credentials, error)

// Retrieve implements Provider.
func (f ProviderFunc) Retrieve(ctx context.Context) (Credentials, error) { return f(ctx) }

// Static returns a Provider that always resolves to the same credentials,
// the chronovault analogue of credentials.NewStaticCredentialsProvider.
func Static(username, password string) Provider {
	inner := credentials.NewStaticCredentialsProvider(username, password, "")
	return ProviderFunc(func(ctx context.Context) (Credentials, error) {
		c, err := inner.Retrieve(ctx)
		if err != nil {
			return Credentials{}, fmt.Errorf("authprovider: static retrieve: %w", err)
		}
		return fromAWS(c), nil
	})
}

// Cache wraps a Provider with aws-sdk-go-v2/credentials' CredentialsCache,
// so repeated Retrieve calls between a Hub.Reset and the next one return
// the same cached value instead of calling the underlying Provider every
// time. Invalidate forces the next Retrieve to call through again.
type Cache struct {
	inner  *credentials.CredentialsCache
	logger *slog.Logger
}

type awsProviderAdapter struct{ p Provider }

func (a awsProviderAdapter) Retrieve(ctx context.Context) (aws.Credentials, error) {
	c, err := a.p.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}
	return toAWS(c), nil
}

// NewCache wraps provider in a CredentialsCache.
func NewCache(provider Provider, logger *slog.Logger) *Cache {
	return &Cache{
		inner:  credentials.NewCredentialsCache(awsProviderAdapter{p: provider}),
		logger: logging.Default(logger).With("component", "authprovider"),
	}
}

// Retrieve returns the cached credentials, calling through to the
// wrapped Provider only if the cache is empty or invalidated.
func (c *Cache) Retrieve(ctx context.Context) (Credentials, error) {
	creds, err := c.inner.Retrieve(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("authprovider: retrieve: %w", err)
	}
	return fromAWS(creds), nil
}

// Invalidate discards the cached credentials. Called from Hub.Reset so the
// next Retrieve re-derives them rather than reusing a stale value.
func (c *Cache) Invalidate() {
	c.inner.Invalidate()
	c.logger.Info("credentials cache invalidated")
}
