package data

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	// coll is reference to "messages" collection in MongoDB
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// AppendMessage inserts msg and returns the saved record. The timestamp is
// set by the database server ($currentDate on an upsert of a fresh id), so
// every API instance orders messages by the same clock.
func (m *MessagesStore) AppendMessage(ctx context.Context, msg *Message) (*Message, error) {
	const op = "data.AppendMessage"

	update := bson.M{
		"$setOnInsert": bson.M{
			"text":         msg.Text,
			"sender_id":    msg.SenderID,
			"sender_name":  msg.SenderName,
			"sender_email": msg.SenderEmail,
			"receiver_id":  msg.ReceiverID,
			"chat_room_id": msg.ChatRoomID,
		},
		"$currentDate": bson.M{"timestamp": bson.M{"$type": "date"}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved Message
	err := m.coll.FindOneAndUpdate(ctx, bson.M{"_id": bson.NewObjectID()}, update, opts).Decode(&saved)
	if err != nil {
		return nil, classify(op, err)
	}
	return &saved, nil
}

// ListRoomMessages returns every message of a room ordered by timestamp,
// ties broken by _id (insertion order).
func (m *MessagesStore) ListRoomMessages(ctx context.Context, roomID string) ([]*Message, error) {
	const op = "data.ListRoomMessages"

	opts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := m.coll.Find(ctx, bson.M{"chat_room_id": roomID}, opts)
	if err != nil {
		return nil, classify(op, err)
	}
	defer cursor.Close(ctx)

	messages := []*Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, classify(op, err)
	}
	return messages, nil
}
