// Package mongodb is the generic per-entity metadata side-store (§9):
// unknown/opaque provider fields are kept here, keyed by entity type and
// id, instead of leaking into typed Postgres columns. Grounded on the
// teacher's adapters/database/mongodb/metadata.mongodb.go.
package mongodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mmongo"
)

// Metadata is one opaque document attached to a canonical entity.
type Metadata struct {
	EntityID  string         `bson:"entity_id"`
	Metadata  map[string]any `bson:"metadata"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

//go:generate mockgen --destination=metadata.mock.go --package=mongodb . Repository

// Repository is the uniform metadata store used by every entity type
// (account, provider_account, connection, ...), selected by collection
// name.
type Repository interface {
	Upsert(ctx context.Context, collection, entityID string, metadata map[string]any) error
	FindByEntity(ctx context.Context, collection, entityID string) (*Metadata, error)
	Delete(ctx context.Context, collection, entityID string) error
}

type MongoDBRepository struct {
	connection *mmongo.MongoConnection
	database   string
}

func NewMongoDBRepository(mc *mmongo.MongoConnection) *MongoDBRepository {
	return &MongoDBRepository{connection: mc, database: mc.Database}
}

func (r *MongoDBRepository) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := r.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	return db.Database(strings.ToLower(r.database)).Collection(strings.ToLower(name)), nil
}

func (r *MongoDBRepository) Upsert(ctx context.Context, collectionName, entityID string, metadata map[string]any) error {
	coll, err := r.collection(ctx, collectionName)
	if err != nil {
		return err
	}

	filter := bson.M{"entity_id": entityID}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "metadata", Value: metadata}, {Key: "updated_at", Value: time.Now().UTC()}}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "entity_id", Value: entityID}, {Key: "created_at", Value: time.Now().UTC()}}},
	}

	_, err = coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))

	return err
}

func (r *MongoDBRepository) FindByEntity(ctx context.Context, collectionName, entityID string) (*Metadata, error) {
	coll, err := r.collection(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	var record Metadata
	if err := coll.FindOne(ctx, bson.M{"entity_id": entityID}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.EntityNotFoundError{EntityType: collectionName + "_metadata"}
		}

		return nil, err
	}

	return &record, nil
}

func (r *MongoDBRepository) Delete(ctx context.Context, collectionName, entityID string) error {
	coll, err := r.collection(ctx, collectionName)
	if err != nil {
		return err
	}

	_, err = coll.DeleteOne(ctx, bson.M{"entity_id": entityID})

	return err
}
