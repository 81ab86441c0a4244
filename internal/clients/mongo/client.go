package mongo

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"infinitiflow/internal/config"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrNotInitialized is returned by Shutdown when Init never succeeded.
var ErrNotInitialized = errors.New("mongo client not initialized")

var (
	client *mongo.Client
	db     *mongo.Database
	mu     sync.Mutex
	drv    driver = mongoDriver{}
)

// Init connects to MongoDB once; later calls return the same client.
// A failed connect or ping leaves nothing cached so the next call retries.
func Init(ctx context.Context, cfg config.Config, log *slog.Logger) (*mongo.Client, *mongo.Database, error) {
	mu.Lock()
	defer mu.Unlock()

	if client != nil && db != nil {
		return client, db, nil
	}

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetConnectTimeout(10 * time.Second).
		SetAppName("infinitiflow")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cli, err := drv.Connect(ctx, opts)
	if err != nil {
		log.Error("failed to connect to mongo", "error", err)
		return nil, nil, err
	}

	if err := drv.Ping(ctx, cli); err != nil {
		log.Error("failed to ping mongo", "error", err)
		_ = drv.Disconnect(ctx, cli)
		return nil, nil, err
	}

	client = cli
	db = cli.Database(cfg.MongoDBName)
	log.Info("successfully connected to mongo", "db", cfg.MongoDBName)

	return client, db, nil
}

// DB returns the connected database, or nil before Init.
func DB() *mongo.Database {
	mu.Lock()
	defer mu.Unlock()
	return db
}

// Ping checks the live connection; used by the health endpoint.
func Ping(ctx context.Context) error {
	mu.Lock()
	cli := client
	mu.Unlock()
	if cli == nil {
		return ErrNotInitialized
	}
	ctx, cancel := WithRepoTimeout(ctx, 2*time.Second)
	defer cancel()
	return drv.Ping(ctx, cli)
}

// Shutdown disconnects the client. Safe to call more than once.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if client == nil {
		return ErrNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := drv.Disconnect(ctx, client)
	client = nil
	db = nil
	return err
}

// reset clears the cached client without disconnecting (tests only).
func reset() {
	mu.Lock()
	defer mu.Unlock()
	client = nil
	db = nil
}
