package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopify-oauth-installer/internal/domain"
	"shopify-oauth-installer/internal/infrastructure/repository/entity"
	"shopify-oauth-installer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoNonceStore implements NonceStore using MongoDB
type MongoNonceStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoNonceStore creates a new MongoDB nonce store on the oauth_sessions collection
func NewMongoNonceStore(db *mongo.Database) *MongoNonceStore {
	return &MongoNonceStore{
		collection: db.Collection("oauth_sessions"),
		now:        time.Now,
	}
}

var _ ports.NonceStore = (*MongoNonceStore)(nil)

// EnsureIndexes creates the unique state index and the TTL index that lets
// MongoDB purge sessions nobody came back for.
func (r *MongoNonceStore) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}
	return nil
}

// Issue mints a nonce for shop and inserts the pending session
func (r *MongoNonceStore) Issue(ctx context.Context, shop string, ttl time.Duration) (string, error) {
	if shop == "" {
		return "", errors.New("shop cannot be empty")
	}

	nonce, err := newNonce()
	if err != nil {
		return "", err
	}

	now := r.now()
	doc := entity.MongoSessionDocFromDomain(&domain.Session{
		Shop:      shop,
		State:     nonce,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return nonce, nil
}

// Consume deletes the session for nonce and reports whether it belonged to shop and was still live
func (r *MongoNonceStore) Consume(ctx context.Context, shop string, nonce string) (bool, error) {
	if nonce == "" {
		return false, nil
	}

	var doc entity.MongoSessionDoc
	err := r.collection.FindOneAndDelete(ctx, bson.M{"state": nonce}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume session: %w", err)
	}

	session := doc.ToDomain()
	return session.Shop == shop && !session.Expired(r.now()), nil
}
