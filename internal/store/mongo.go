package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "keyserve/internal/errors"
	"keyserve/internal/license"
)

const (
	defaultCollection             = "licenses"
	defaultServerSelectionTimeout = 5 * time.Second
)

// MongoConfig defines the MongoDB connection for the license store.
type MongoConfig struct {
	URI                    string
	Database               string
	Collection             string
	MaxPoolSize            uint64
	ServerSelectionTimeout time.Duration
}

func (cfg MongoConfig) validate() error {
	if strings.TrimSpace(cfg.URI) == "" {
		return errors.New("mongo uri cannot be empty")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return errors.New("mongo database name cannot be empty")
	}
	return nil
}

// MongoStore is the production license.Store backed by a MongoDB collection.
// Key uniqueness is delegated to a unique index so a duplicate-creation race
// resolves inside the database, and HWID binding is a single findAndModify
// with a conditional filter rather than a read-check-write sequence.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
	tracer trace.Tracer
}

var _ license.Store = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB, verifies connectivity, and ensures the
// collection indexes (unique key, plus secondary hwid and is_active lookups).
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *slog.Logger) (*MongoStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("mongo store config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}

	timeout := cfg.ServerSelectionTimeout
	if timeout <= 0 {
		timeout = defaultServerSelectionTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(timeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", apperrors.ErrStoreUnavailable, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: ping: %w", apperrors.ErrStoreUnavailable, err)
	}

	s := &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		logger: logger.With(slog.String("component", "mongo_store")),
		tracer: otel.Tracer("license-store"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	s.logger.InfoContext(ctx, "mongo store ready",
		slog.String("database", cfg.Database),
		slog.String("collection", cfg.Collection),
	)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "hwid", Value: 1}}},
		{Keys: bson.D{{Key: "is_active", Value: 1}}},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("%w: create indexes: %w", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// Insert adds rec. A unique-index violation on key maps to ErrDuplicateKey.
func (s *MongoStore) Insert(ctx context.Context, rec *license.Record) error {
	ctx, span := s.startSpan(ctx, "store.insert")
	defer span.End()

	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrDuplicateKey
		}
		span.RecordError(err)
		return fmt.Errorf("%w: insert: %w", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// FindByID returns the record with the given id.
func (s *MongoStore) FindByID(ctx context.Context, id string) (*license.Record, error) {
	return s.findOne(ctx, "store.find_by_id", bson.M{"_id": id})
}

// FindByKey returns the record with the given key.
func (s *MongoStore) FindByKey(ctx context.Context, key string) (*license.Record, error) {
	return s.findOne(ctx, "store.find_by_key", bson.M{"key": key})
}

// FindByKeyAndHWID returns the record matching both fields exactly. A record
// whose hwid is still null never matches a string hwid, so unbound keys fail
// the pair lookup by construction.
func (s *MongoStore) FindByKeyAndHWID(ctx context.Context, key, hwid string) (*license.Record, error) {
	return s.findOne(ctx, "store.find_by_key_hwid", bson.M{"key": key, "hwid": hwid})
}

func (s *MongoStore) findOne(ctx context.Context, op string, filter bson.M) (*license.Record, error) {
	ctx, span := s.startSpan(ctx, op)
	defer span.End()

	var rec license.Record
	err := s.coll.FindOne(ctx, filter).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrRecordNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrStoreUnavailable, op, err)
	}
	return &rec, nil
}

// List returns all records ordered by creation time, newest first.
func (s *MongoStore) List(ctx context.Context) ([]license.Record, error) {
	ctx, span := s.startSpan(ctx, "store.list")
	defer span.End()

	cursor, err := s.coll.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: list: %w", apperrors.ErrStoreUnavailable, err)
	}

	records := []license.Record{}
	if err := cursor.All(ctx, &records); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: list decode: %w", apperrors.ErrStoreUnavailable, err)
	}
	return records, nil
}

// BindHWID is the compare-and-swap activation write: it matches the record by
// key only while hwid is null or already equals the supplied value, and sets
// hwid plus activation_date in the same operation. Losing the race (or a key
// bound elsewhere) returns ErrRecordNotFound.
func (s *MongoStore) BindHWID(ctx context.Context, key, hwid string, activatedAt time.Time) (*license.Record, error) {
	ctx, span := s.startSpan(ctx, "store.bind_hwid")
	defer span.End()

	filter := bson.M{
		"key": key,
		"$or": []bson.M{
			{"hwid": nil},
			{"hwid": hwid},
		},
	}
	update := bson.M{"$set": bson.M{
		"hwid":            hwid,
		"activation_date": activatedAt,
	}}

	var rec license.Record
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrRecordNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("%w: bind hwid: %w", apperrors.ErrStoreUnavailable, err)
	}
	return &rec, nil
}

// Deactivate flips is_active to false for the record with the given key.
func (s *MongoStore) Deactivate(ctx context.Context, key string) error {
	ctx, span := s.startSpan(ctx, "store.deactivate")
	defer span.End()

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"is_active": false}})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: deactivate: %w", apperrors.ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrRecordNotFound
	}
	return nil
}

// Update applies a partial patch to the record with the given id and returns
// the updated record. Absent patch fields never appear in the $set document.
func (s *MongoStore) Update(ctx context.Context, id string, patch license.UpdatePatch) (*license.Record, error) {
	ctx, span := s.startSpan(ctx, "store.update")
	defer span.End()

	if patch.Empty() {
		return s.FindByID(ctx, id)
	}

	set := bson.M{}
	if patch.KeyName != nil {
		set["key_name"] = *patch.KeyName
	}
	if patch.IsActive != nil {
		set["is_active"] = *patch.IsActive
	}
	if patch.SetExpiry {
		if patch.ExpiresAt != nil {
			set["expires_at"] = *patch.ExpiresAt
		} else {
			set["expires_at"] = nil
		}
	}
	if patch.Notes != nil {
		set["notes"] = *patch.Notes
	}
	if patch.ClearHWID {
		set["hwid"] = nil
	}

	var rec license.Record
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrRecordNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("%w: update: %w", apperrors.ErrStoreUnavailable, err)
	}
	return &rec, nil
}

// Delete removes the record with the given id.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.startSpan(ctx, "store.delete")
	defer span.End()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: delete: %w", apperrors.ErrStoreUnavailable, err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrRecordNotFound
	}
	return nil
}

// Ping checks MongoDB availability.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: ping: %w", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the MongoDB connection. Called once at shutdown.
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}

func (s *MongoStore) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("db.system", "mongodb")))
}
