// Package db manages MongoDB connections and collections.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"           // Index keys
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

// Collection names. Profiles and rooms are keyed by application ids,
// messages by driver-generated ObjectIDs.
const (
	AccountsCollectionName = "accounts"
	UsersCollectionName    = "users"
	RoomsCollectionName    = "chatRooms"
	MessagesCollectionName = "messages"
)

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db is the application database; collections are accessed through it
	db *mongo.Database
}

// New connects to MongoDB and returns a Client bound to database.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	// Fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	// Creates the client; the actual connection is verified by Ping below
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if database == "" {
		database = "chat_db"
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// AccountsCollection returns the accounts collection (credentials).
func (c *Client) AccountsCollection() *mongo.Collection {
	return c.db.Collection(AccountsCollectionName)
}

// UsersCollection returns the users collection (profiles and contacts).
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection(UsersCollectionName)
}

// RoomsCollection returns the chat rooms collection.
func (c *Client) RoomsCollection() *mongo.Collection {
	return c.db.Collection(RoomsCollectionName)
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection(MessagesCollectionName)
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	// ctx can have timeout if you want to force shutdown after N seconds
	return c.client.Disconnect(ctx)
}

// Ping checks the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// WithTransaction runs fn inside a multi-document transaction. The deployment
// must be a replica set or sharded cluster; fn may be retried by the driver
// on transient errors, so it must be safe to run more than once.
func (c *Client) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := c.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return nil, fn(txCtx)
	})
	return err
}

// CreateIndexes creates the indexes every store relies on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== ACCOUNTS =====
	// One credential per email; sign-in looks accounts up by email
	_, err := c.AccountsCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create accounts index: %w", err)
	}

	// ===== USERS =====
	// Profile email lookup. Deliberately not unique: profiles do not own
	// email uniqueness, FindUserByEmail returns the first match.
	_, err = c.UsersCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	// ===== CHAT ROOMS =====
	// ListRooms: rooms containing a participant, most recent first
	_, err = c.RoomsCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message_time", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create chat rooms index: %w", err)
	}

	// ===== MESSAGES =====
	// Room snapshot query: equality on chat_room_id, ordered by timestamp then _id
	_, err = c.MessagesCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_room_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	return nil
}
