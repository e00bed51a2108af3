package store

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBackend keeps each collection in the MongoDB collection of the same name.
// Document ids are stored as _id.
type MongoBackend struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects to uri and uses database for all collections.
func OpenMongo(ctx context.Context, uri, database string) (*MongoBackend, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoBackend{client: client, db: client.Database(database)}, nil
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

// Insert stores a new document.
func (b *MongoBackend) Insert(ctx context.Context, collection, id string, doc Document) error {
	body := bson.M(maps.Clone(doc))
	delete(body, FieldID)
	body["_id"] = id

	if _, err := b.db.Collection(collection).InsertOne(ctx, body); err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// FindAll returns a collection's documents, newest first.
func (b *MongoBackend) FindAll(ctx context.Context, collection string) ([]Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: FieldCreatedAt, Value: -1}})
	cur, err := b.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}

	docs := make([]Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, fromBSON(m))
	}
	return docs, nil
}

// FindOne returns a document by id, or nil if it does not exist.
func (b *MongoBackend) FindOne(ctx context.Context, collection, id string) (Document, error) {
	var m bson.M
	err := b.db.Collection(collection).FindOne(ctx, byID(id)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return fromBSON(m), nil
}

// Merge sets the given fields on an existing document.
func (b *MongoBackend) Merge(ctx context.Context, collection, id string, fields Document) error {
	set := bson.M(maps.Clone(fields))
	delete(set, FieldID)

	res, err := b.db.Collection(collection).UpdateOne(ctx, byID(id), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document.
func (b *MongoBackend) Delete(ctx context.Context, collection, id string) error {
	if _, err := b.db.Collection(collection).DeleteOne(ctx, byID(id)); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// Count returns the number of documents in a collection.
func (b *MongoBackend) Count(ctx context.Context, collection string) (int64, error) {
	n, err := b.db.Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close disconnects the client.
func (b *MongoBackend) Close() error {
	return b.client.Disconnect(context.Background())
}

func fromBSON(m bson.M) Document {
	doc := Document(m)
	if id, ok := doc["_id"]; ok {
		doc[FieldID] = fmt.Sprint(id)
		delete(doc, "_id")
	}
	return doc
}
