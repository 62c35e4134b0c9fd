package domain

import "time"

// Session is the state of one pending authorization attempt. The State
// value doubles as the nonce echoed back by Shopify on the callback.
type Session struct {
	Shop      string    `json:"shop" bson:"shop"`
	State     string    `json:"state" bson:"state"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
