// Package mmongo wraps the MongoDB client backing the per-entity metadata
// side-store, modeled on the teacher's common/mmongo/mongo.go.
package mmongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/banktrail/ingestor/internal/platform/mlog"
)

// MongoConnection is a hub dealing with the metadata database connection.
type MongoConnection struct {
	ConnectionStringSource string
	Database               string
	Logger                 mlog.Logger

	DB        *mongo.Client
	Connected bool
}

// Connect opens and pings a client, initializing it if necessary.
func (mc *MongoConnection) Connect(ctx context.Context) error {
	mc.Logger.Info("mmongo: connecting to mongo")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mc.ConnectionStringSource))
	if err != nil {
		return fmt.Errorf("mmongo: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mmongo: ping: %w", err)
	}

	mc.Connected = true
	mc.DB = client

	mc.Logger.Info("mmongo: connected")

	return nil
}

// GetDB returns the mongo client, connecting lazily if necessary.
func (mc *MongoConnection) GetDB(ctx context.Context) (*mongo.Client, error) {
	if mc.DB == nil {
		if err := mc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return mc.DB, nil
}
