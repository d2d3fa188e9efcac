package store

import (
	"context"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/grainscale/pkg/errors"
)

// Mongo defaults.
const (
	DefaultDatabase   = "grainscale"
	DefaultCollection = "runs"
)

const mongoTimeout = 10 * time.Second

// MongoStore keeps records in a MongoDB collection. The run detail is stored
// as a nested document so it can be queried.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoRecord struct {
	ID        string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	CreatedAt time.Time `bson:"created_at"`
	Counts    Counts    `bson:"counts"`
	Detail    bson.D    `bson:"detail,omitempty"`
}

// NewMongoStore connects, pings and ensures the kind/created_at index.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "ping mongodb")
	}

	coll := client.Database(database).Collection(DefaultCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "kind", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create run index")
	}
	return &MongoStore{client: client, coll: coll}, nil
}

// Save upserts rec by ID.
func (s *MongoStore) Save(ctx context.Context, rec *Record) error {
	doc, err := toDocument(rec)
	if err != nil {
		return err
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// Get loads one record.
func (s *MongoStore) Get(ctx context.Context, id string) (*Record, error) {
	var doc mongoRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return fromDocument(&doc)
}

// List queries by kind, newest first.
func (s *MongoStore) List(ctx context.Context, kind string, limit int) ([]*Record, error) {
	filter := bson.M{}
	if kind != "" {
		filter["kind"] = kind
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Record
	for cur.Next(ctx) {
		var doc mongoRecord
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rec, err := fromDocument(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, cur.Err()
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// toDocument converts the JSON detail into a BSON document.
func toDocument(rec *Record) (*mongoRecord, error) {
	doc := &mongoRecord{
		ID:        rec.ID,
		Kind:      rec.Kind,
		CreatedAt: rec.CreatedAt,
		Counts:    rec.Counts,
	}
	if len(rec.Detail) > 0 {
		if err := bson.UnmarshalExtJSON(rec.Detail, false, &doc.Detail); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "convert run %s detail", rec.ID)
		}
	}
	return doc, nil
}

func fromDocument(doc *mongoRecord) (*Record, error) {
	rec := &Record{
		ID:        doc.ID,
		Kind:      doc.Kind,
		CreatedAt: doc.CreatedAt,
		Counts:    doc.Counts,
	}
	if len(doc.Detail) > 0 {
		data, err := bson.MarshalExtJSON(doc.Detail, false, false)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "convert run %s detail", doc.ID)
		}
		rec.Detail = json.RawMessage(data)
	}
	return rec, nil
}
