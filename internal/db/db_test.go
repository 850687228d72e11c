package db

import (
	"context"
	"os"
	"testing"
)

// These tests are integration tests and require a running MongoDB instance.
// Set MONGODB_URI in the environment before running them.

func TestNewAndCreateIndexes(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := New(ctx, uri, "chat_db_test")
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = c.db.Drop(context.Background())
		_ = c.Close(context.Background())
	}()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	// should be able to create indexes without error, and again idempotently
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes (second run) failed: %v", err)
	}
}

func TestWithTransactionPropagatesError(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" || os.Getenv("MONGODB_TRANSACTIONS") != "true" {
		t.Skip("MONGODB_URI/MONGODB_TRANSACTIONS not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := New(ctx, uri, "chat_db_test")
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = c.db.Drop(context.Background())
		_ = c.Close(context.Background())
	}()

	called := 0
	err = c.WithTransaction(ctx, func(txCtx context.Context) error {
		called++
		_, err := c.UsersCollection().InsertOne(txCtx, map[string]string{"_id": "tx-user"})
		return err
	})
	if err != nil {
		t.Fatalf("WithTransaction failed: %v", err)
	}
	if called == 0 {
		t.Fatal("transaction body never ran")
	}
}
