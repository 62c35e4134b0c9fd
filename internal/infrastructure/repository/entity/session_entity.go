package entity

import (
	"time"

	"shopify-oauth-installer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoSessionDoc represents a pending OAuth session in MongoDB
type MongoSessionDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	State     string             `bson:"state"`
	Shop      string             `bson:"shop"`
	CreatedAt time.Time          `bson:"createdAt"`
	ExpiresAt time.Time          `bson:"expiresAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoSessionDoc) ToDomain() *domain.Session {
	return &domain.Session{
		Shop:      d.Shop,
		State:     d.State,
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
	}
}

// MongoSessionDocFromDomain converts a domain entity to a MongoDB document
func MongoSessionDocFromDomain(session *domain.Session) *MongoSessionDoc {
	return &MongoSessionDoc{
		ID:        primitive.NewObjectID(),
		State:     session.State,
		Shop:      session.Shop,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
}
