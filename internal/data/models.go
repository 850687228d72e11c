package data

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Account maps to the accounts collection (credentials issued by the identity service)
type Account struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Email       string        `bson:"email"`
	DisplayName string        `bson:"display_name"`
	Password    string        `bson:"password"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

// Profile maps to users/{id}; ID is the account id in hex form.
type Profile struct {
	ID          string    `bson:"_id"`
	Email       string    `bson:"email"`
	DisplayName string    `bson:"display_name"`
	CreatedAt   time.Time `bson:"created_at"`
	Contacts    []string  `bson:"contacts"`
}

// HasContact reports whether id is already in the contact list.
func (p *Profile) HasContact(id string) bool {
	return slices.Contains(p.Contacts, id)
}

// ParticipantDetail is the {name, email} snapshot stored on a room.
type ParticipantDetail struct {
	Name  string `bson:"name"`
	Email string `bson:"email"`
}

// ChatRoom maps to chatRooms/{id} where id is derived from the two participants.
type ChatRoom struct {
	ID                 string                       `bson:"_id"`
	Participants       []string                     `bson:"participants"`
	ParticipantDetails map[string]ParticipantDetail `bson:"participant_details"`
	LastMessage        string                       `bson:"last_message,omitempty"`
	LastMessageTime    time.Time                    `bson:"last_message_time,omitempty"`
	CreatedAt          time.Time                    `bson:"created_at"`
	UpdatedAt          time.Time                    `bson:"updated_at"`
}

// Message maps to the messages collection. Sender and receiver fields are
// denormalized at write time; Timestamp is assigned by the store.
type Message struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Text        string        `bson:"text"`
	SenderID    string        `bson:"sender_id"`
	SenderName  string        `bson:"sender_name"`
	SenderEmail string        `bson:"sender_email"`
	ReceiverID  string        `bson:"receiver_id"`
	ChatRoomID  string        `bson:"chat_room_id"`
	Timestamp   time.Time     `bson:"timestamp"`
}

// Before orders messages by (Timestamp, ID); ObjectIDs break timestamp ties
// in insertion order.
func (m *Message) Before(o *Message) bool {
	if !m.Timestamp.Equal(o.Timestamp) {
		return m.Timestamp.Before(o.Timestamp)
	}
	return m.ID.Hex() < o.ID.Hex()
}

// serverTime truncates to the millisecond precision BSON dates keep, so a
// value returned from a write equals the value later read back.
func serverTime(now func() time.Time) time.Time {
	return now().UTC().Truncate(time.Millisecond)
}
