package migration

import (
	"context"
	"fmt"
	"sync"

	"github.com/sisu-network/lib/log"

	"github.com/kinecosystem/kin-engine/chain"
	"github.com/kinecosystem/kin-engine/types"
)

// VersionQuery asynchronously answers "which blockchain version should this
// app use". The engine never implements the transport behind it.
type VersionQuery func(ctx context.Context) (types.Version, error)

// ClientFactory builds the versioned client for a resolved version.
type ClientFactory func(version types.Version) (chain.Client, error)

// Events is the migration lifecycle listener, implemented by the engine.
// Callbacks are dispatched synchronously on the calling goroutine; the
// returned error becomes the session's terminal error.
type Events interface {
	OnMigrationStarted(ctx context.Context, version types.Version)
	OnClientReady(ctx context.Context, version types.Version, client chain.Client) error
	OnMigrationFailed(ctx context.Context, err error) error
}

// Coordinator decides, per session, which versioned store is authoritative
// for a given public address or for new-account creation. It owns the two
// versioned clients for the duration of the migration window.
type Coordinator struct {
	query   VersionQuery
	factory ClientFactory

	lock     sync.Mutex
	clients  map[types.Version]chain.Client
	inFlight bool
}

func NewCoordinator(query VersionQuery, factory ClientFactory) *Coordinator {
	return &Coordinator{
		query:   query,
		factory: factory,
		clients: make(map[types.Version]chain.Client),
	}
}

// Start drives one migration session: resolve the version, supply the ready
// client, and hand control back through the Events callbacks. A starting
// address that is malformed for the resolved version surfaces as
// chain.ErrInvalidPublicAddress through OnMigrationFailed, which the listener
// may recover from by re-resolving.
func (c *Coordinator) Start(ctx context.Context, sess *Session, events Events) error {
	c.lock.Lock()
	if c.inFlight {
		c.lock.Unlock()
		return fmt.Errorf("%w: migration session already in flight", types.ErrInternalInconsistency)
	}
	c.inFlight = true
	c.lock.Unlock()

	defer func() {
		c.lock.Lock()
		c.inFlight = false
		c.lock.Unlock()
	}()

	version, err := c.query(ctx)
	if err != nil {
		return events.OnMigrationFailed(ctx, fmt.Errorf("version query: %w", err))
	}

	events.OnMigrationStarted(ctx, version)

	client, err := c.ClientFor(version)
	if err != nil {
		return events.OnMigrationFailed(ctx, err)
	}

	sess.Version = version
	sess.Client = client

	if sess.StartingAddress != "" {
		if err := chain.ValidateAddress(version, sess.StartingAddress); err != nil {
			log.Warnf("Known address is not valid for %s: %v", version, err)
			return events.OnMigrationFailed(ctx, err)
		}
	}

	return events.OnClientReady(ctx, version, client)
}

// Resolve re-runs the version query and returns a client for the result.
// Used by the listener's invalid-address recovery path.
func (c *Coordinator) Resolve(ctx context.Context) (types.Version, chain.Client, error) {
	version, err := c.query(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("version query: %w", err)
	}

	client, err := c.ClientFor(version)
	if err != nil {
		return 0, nil, err
	}

	return version, client, nil
}

// ClientFor returns the cached client for a version, building it on first
// use. Both versioned clients may exist concurrently.
func (c *Coordinator) ClientFor(version types.Version) (chain.Client, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if client, ok := c.clients[version]; ok {
		return client, nil
	}

	client, err := c.factory(version)
	if err != nil {
		return nil, fmt.Errorf("build %s client: %w", version, err)
	}

	c.clients[version] = client
	log.Info("Versioned client is ready for ", version)

	return client, nil
}
