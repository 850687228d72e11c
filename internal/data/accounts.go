package data

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// AccountsStore performs credential DB operations.
type AccountsStore struct {
	// coll is reference to "accounts" collection in MongoDB
	coll *mongo.Collection
	now  func() time.Time
}

// NewAccountsStore returns an AccountsStore using the provided collection.
func NewAccountsStore(coll *mongo.Collection) *AccountsStore {
	return &AccountsStore{coll: coll, now: time.Now}
}

// CreateAccount inserts a new account with an already-hashed password.
func (a *AccountsStore) CreateAccount(ctx context.Context, email, displayName, hashedPassword string) (*Account, error) {
	const op = "data.CreateAccount"

	now := serverTime(a.now)
	acct := &Account{
		Email:       normalize.Email(email),
		DisplayName: displayName,
		Password:    hashedPassword,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	result, err := a.coll.InsertOne(ctx, acct)
	if err != nil {
		// unique index on email
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.E(op, apperr.Conflict, "user already exists", err)
		}
		return nil, classify(op, err)
	}

	// The account id becomes the principal id everywhere else
	acct.ID = result.InsertedID.(bson.ObjectID)
	return acct, nil
}

// GetAccountByEmail finds an account by normalized email.
func (a *AccountsStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	const op = "data.GetAccountByEmail"

	var acct Account
	err := a.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&acct)
	if err == mongo.ErrNoDocuments {
		return nil, notFound(op, "user not found")
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return &acct, nil
}
