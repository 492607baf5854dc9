package model

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"BProject/service/chat"
)

const CollUsers = "users"

// UserDoc mirrors the account document owned by the CRUD side of the
// backend. The gateway only reads display fields and touches last_seen.
type UserDoc struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Username          string             `bson:"username"`
	Email             string             `bson:"email"`
	ProfilePictureURL string             `bson:"profile_picture_url,omitempty"`
	SubscriptionTier  string             `bson:"subscription_tier,omitempty"`
	LastSeen          time.Time          `bson:"last_seen,omitempty"`
}

// Store implements chat.UserStore over mongo.
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store { return &Store{db: db} }

func (s *Store) users() *mongo.Collection { return s.db.Collection(CollUsers) }

func (s *Store) FindDisplay(ctx context.Context, userID string) (*chat.UserView, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, nil
	}
	var doc UserDoc
	err = s.users().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &chat.UserView{
		ID:                doc.ID.Hex(),
		Username:          doc.Username,
		ProfilePictureURL: doc.ProfilePictureURL,
	}, nil
}

func (s *Store) UpdateLastSeen(ctx context.Context, userID string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return errors.Wrapf(err, "user id %q", userID)
	}
	_, err = s.users().UpdateByID(ctx, oid, bson.M{
		"$set": bson.M{"last_seen": at.UTC()},
	})
	return errors.Wrap(err, "update last seen")
}
