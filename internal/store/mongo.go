package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a Store backed by a MongoDB database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	newID  func() string
}

// ConnectMongo dials uri, pings the server and makes sure every
// collection has a unique index on its key field.
func ConnectMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(timeoutCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(timeoutCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	m := &Mongo{client: client, db: client.Database(dbName), newID: uuid.NewString}
	if err := m.EnsureIndexes(timeoutCtx, All...); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

// EnsureIndexes creates a unique index on the key field of each collection.
// _id is unique already.
func (m *Mongo) EnsureIndexes(ctx context.Context, colls ...Collection) error {
	for _, c := range colls {
		if c.Key == "_id" {
			continue
		}
		_, err := m.db.Collection(c.Name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: c.Key, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("create unique index %s.%s: %w", c.Name, c.Key, err)
		}
	}
	return nil
}

// Close disconnects from the server.
func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect from mongo: %w", err)
	}
	return nil
}

func (m *Mongo) FindByKey(ctx context.Context, c Collection, key string, out any) error {
	err := m.db.Collection(c.Name).FindOne(ctx, bson.M{c.Key: key}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find %s/%s: %w", c.Name, key, err)
	}
	return nil
}

func (m *Mongo) FindMatching(ctx context.Context, c Collection, filter Filter, out any) error {
	cursor, err := m.db.Collection(c.Name).Find(ctx, toBSON(filter))
	if err != nil {
		return fmt.Errorf("find %s: %w", c.Name, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", c.Name, err)
	}
	return nil
}

func (m *Mongo) Upsert(ctx context.Context, c Collection, key string, fields any) (UpsertResult, error) {
	set, err := toM(fields)
	if err != nil {
		return UpsertResult{}, err
	}
	delete(set, c.Key)
	delete(set, "_id")
	if len(set) == 0 {
		return UpsertResult{}, ErrEmptyUpdate
	}

	res, err := m.db.Collection(c.Name).UpdateOne(ctx,
		bson.M{c.Key: key},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert %s/%s: %w", c.Name, key, err)
	}
	return UpsertResult{Matched: res.MatchedCount, Upserted: res.UpsertedCount > 0}, nil
}

func (m *Mongo) Insert(ctx context.Context, c Collection, doc any) (string, error) {
	d, err := toM(doc)
	if err != nil {
		return "", err
	}
	key := keyOf(d, c.Key)
	if key == "" {
		key = m.newID()
		d[c.Key] = key
	}

	if _, err := m.db.Collection(c.Name).InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("insert %s/%s: %w", c.Name, key, ErrDuplicateKey)
		}
		return "", fmt.Errorf("insert %s: %w", c.Name, err)
	}
	return key, nil
}

func (m *Mongo) UpdateMatching(ctx context.Context, c Collection, filter Filter, set any) (int64, error) {
	fields, err := toM(set)
	if err != nil {
		return 0, err
	}
	delete(fields, c.Key)
	delete(fields, "_id")
	if len(fields) == 0 {
		return 0, ErrEmptyUpdate
	}

	res, err := m.db.Collection(c.Name).UpdateMany(ctx, toBSON(filter), bson.M{"$set": fields})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", c.Name, err)
	}
	return res.MatchedCount, nil
}

func (m *Mongo) DeleteMatching(ctx context.Context, c Collection, filter Filter) (int64, error) {
	res, err := m.db.Collection(c.Name).DeleteMany(ctx, toBSON(filter))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.Name, err)
	}
	return res.DeletedCount, nil
}

func toBSON(f Filter) bson.M {
	if f == nil {
		return bson.M{}
	}
	return bson.M(f)
}

// toM converts a struct or map into a flat bson.M using its bson tags.
func toM(v any) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out := bson.M{}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}
