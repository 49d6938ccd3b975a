// Package mongo implements the user store on a MongoDB collection.
// Find-or-create atomicity comes from the unique username index plus
// a findOneAndUpdate upsert, never from application-level locking.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/whisperwall/whisperwall/internal/store"
)

// Per-operation deadline. The store never waits on the database
// unboundedly; a stuck deployment surfaces as an error, not a hang.
const opTimeout = 5 * time.Second

type UserStore struct {
	coll *mongo.Collection
}

// NewUserStore wraps the collection and ensures the unique username
// index that FindOrCreate and Create depend on.
func NewUserStore(ctx context.Context, coll *mongo.Collection) (*UserStore, error) {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := coll.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("ensure username index: %w", err)
	}
	return &UserStore{coll: coll}, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*store.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*store.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var user store.User
	if err := s.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) FindOrCreate(ctx context.Context, criteria store.Criteria) (*store.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	insert := bson.M{
		"_id":        uuid.NewString(),
		"created_at": now,
		"updated_at": now,
	}
	if criteria.GoogleID != "" {
		insert["google_id"] = criteria.GoogleID
	}
	if criteria.FacebookID != "" {
		insert["facebook_id"] = criteria.FacebookID
	}

	// The username both matches existing records and seeds new ones via
	// the filter; everything else is written only on insert.
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user store.User
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"username": criteria.Username},
		bson.M{"$setOnInsert": insert},
		opts,
	).Decode(&user)
	if mongo.IsDuplicateKeyError(err) {
		// Two concurrent upserts on a brand-new username can both pick
		// the insert path; the loser hits the unique index. Retrying
		// finds the winner's record.
		err = s.coll.FindOneAndUpdate(ctx,
			bson.M{"username": criteria.Username},
			bson.M{"$setOnInsert": insert},
			opts,
		).Decode(&user)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) Create(ctx context.Context, user *store.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if _, err := s.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateUsername
		}
		return err
	}
	return nil
}

func (s *UserStore) Save(ctx context.Context, user *store.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	user.UpdatedAt = time.Now().UTC()
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": user.ID},
		user,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *UserStore) FindWithSecrets(ctx context.Context) ([]*store.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// $ne:null also excludes documents where the field is missing.
	cursor, err := s.coll.Find(ctx, bson.M{"secret": bson.M{"$ne": nil}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*store.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
