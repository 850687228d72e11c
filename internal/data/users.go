package data

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/duochat/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersStore performs profile and contact-list DB operations.
type UsersStore struct {
	// coll is reference to "users" collection in MongoDB
	coll *mongo.Collection
	now  func() time.Time
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll, now: time.Now}
}

// GetProfile finds a profile by id.
func (u *UsersStore) GetProfile(ctx context.Context, id string) (*Profile, error) {
	const op = "data.GetProfile"

	var p Profile
	err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, notFound(op, "user not found")
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return &p, nil
}

// CreateProfileIfAbsent writes p only when no profile with p.ID exists and
// reports whether it did. An existing profile, contacts included, is never
// touched: every field is written with $setOnInsert.
func (u *UsersStore) CreateProfileIfAbsent(ctx context.Context, p *Profile) (bool, error) {
	const op = "data.CreateProfileIfAbsent"

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = serverTime(u.now)
	}
	contacts := p.Contacts
	if contacts == nil {
		contacts = []string{}
	}

	update := bson.M{"$setOnInsert": bson.M{
		"email":        normalize.Email(p.Email),
		"display_name": p.DisplayName,
		"created_at":   createdAt,
		"contacts":     contacts,
	}}
	res, err := u.coll.UpdateOne(ctx, bson.M{"_id": p.ID}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		// two first logins racing on the same _id: the loser sees a duplicate key
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, classify(op, err)
	}
	return res.UpsertedCount == 1, nil
}

// FindProfileByEmail returns the oldest profile with the given email.
// Email is not unique across profiles.
func (u *UsersStore) FindProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	const op = "data.FindProfileByEmail"

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	var p Profile
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}, opts).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, notFound(op, "user not found")
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return &p, nil
}

// AddContact adds contactID to ownerID's contact list with $addToSet, so
// repeating it never creates a duplicate entry.
func (u *UsersStore) AddContact(ctx context.Context, ownerID, contactID string) error {
	const op = "data.AddContact"

	res, err := u.coll.UpdateOne(ctx,
		bson.M{"_id": ownerID},
		bson.M{"$addToSet": bson.M{"contacts": contactID}},
	)
	if err != nil {
		return classify(op, err)
	}
	if res.MatchedCount == 0 {
		return notFound(op, "user not found")
	}
	return nil
}
