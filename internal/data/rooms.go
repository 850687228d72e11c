package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// RoomsStore performs chat room DB operations.
type RoomsStore struct {
	// coll is reference to "chatRooms" collection in MongoDB
	coll *mongo.Collection
	now  func() time.Time
}

// NewRoomsStore returns a RoomsStore using the provided collection.
func NewRoomsStore(coll *mongo.Collection) *RoomsStore {
	return &RoomsStore{coll: coll, now: time.Now}
}

// UpsertRoom merges room into chatRooms/{room.ID}. Participants and the
// given participant details are overwritten; the summary fields and details
// of anyone not mentioned are left alone.
func (r *RoomsStore) UpsertRoom(ctx context.Context, room *ChatRoom) error {
	const op = "data.UpsertRoom"

	now := serverTime(r.now)
	set := bson.M{
		"participants": room.Participants,
		"updated_at":   now,
	}
	// dotted paths merge into the map instead of replacing it
	for id, d := range room.ParticipantDetails {
		set["participant_details."+id] = d
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": now},
	}
	if err := r.upsert(ctx, room.ID, update); err != nil {
		return classify(op, err)
	}
	return nil
}

// upsert applies update to chatRooms/{id}, creating the document if needed.
// Two concurrent upserts of a new room can both try the insert; the loser
// gets a duplicate key error and its update is applied again, this time
// to the existing document.
func (r *RoomsStore) upsert(ctx context.Context, id string, update bson.M) error {
	opts := options.UpdateOne().SetUpsert(true)
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		_, err = r.coll.UpdateOne(ctx, bson.M{"_id": id}, update, opts)
	}
	return err
}

// GetRoom finds a room by id.
func (r *RoomsStore) GetRoom(ctx context.Context, id string) (*ChatRoom, error) {
	const op = "data.GetRoom"

	var room ChatRoom
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, notFound(op, "chat room not found")
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return &room, nil
}

// SetLastMessage refreshes the room summary. It merges like UpsertRoom.
func (r *RoomsStore) SetLastMessage(ctx context.Context, roomID, text string, at time.Time) error {
	const op = "data.SetLastMessage"

	update := bson.M{
		"$set": bson.M{
			"last_message":      text,
			"last_message_time": at,
			"updated_at":        serverTime(r.now),
		},
	}
	if err := r.upsert(ctx, roomID, update); err != nil {
		return classify(op, err)
	}
	return nil
}

// ListRoomsForUser returns the rooms userID participates in, most recently
// active first.
func (r *RoomsStore) ListRoomsForUser(ctx context.Context, userID string) ([]*ChatRoom, error) {
	const op = "data.ListRoomsForUser"

	opts := options.Find().SetSort(bson.D{
		{Key: "last_message_time", Value: -1},
		{Key: "updated_at", Value: -1},
	})

	// equality on an array field matches any element
	cursor, err := r.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, classify(op, err)
	}
	defer cursor.Close(ctx)

	rooms := []*ChatRoom{}
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, classify(op, err)
	}
	return rooms, nil
}
