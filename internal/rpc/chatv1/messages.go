package chatv1

import "time"

// Getters are nil-safe so interceptors can inspect requests generically.

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	DisplayName     string `json:"display_name,omitempty"`
}

func (x *RegisterRequest) GetEmail() string {
	if x == nil {
		return ""
	}
	return x.Email
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (x *LoginRequest) GetEmail() string {
	if x == nil {
		return ""
	}
	return x.Email
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	Token     string    `json:"token"`
	User      *User     `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type MeRequest struct{}

// User is a public profile.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	Contacts    []string  `json:"contacts,omitempty"`
}

type GetUserRequest struct {
	UserID string `json:"user_id"`
}

func (x *GetUserRequest) GetUserId() string {
	if x == nil {
		return ""
	}
	return x.UserID
}

type FindUserRequest struct {
	Email string `json:"email"`
}

func (x *FindUserRequest) GetEmail() string {
	if x == nil {
		return ""
	}
	return x.Email
}

type AddContactRequest struct {
	UserID string `json:"user_id"`
}

func (x *AddContactRequest) GetUserId() string {
	if x == nil {
		return ""
	}
	return x.UserID
}

type AddContactResponse struct {
	Added   bool  `json:"added"`
	Contact *User `json:"contact"`
}

type ListContactsRequest struct{}

type ListContactsResponse struct {
	Contacts []*User `json:"contacts"`
}

type OpenRoomRequest struct {
	ContactID string `json:"contact_id"`
}

func (x *OpenRoomRequest) GetContactId() string {
	if x == nil {
		return ""
	}
	return x.ContactID
}

type OpenRoomResponse struct {
	RoomID string `json:"room_id"`
	Room   *Room  `json:"room,omitempty"`
}

type SendMessageRequest struct {
	RoomID     string `json:"room_id"`
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
}

func (x *SendMessageRequest) GetRoomId() string {
	if x == nil {
		return ""
	}
	return x.RoomID
}

func (x *SendMessageRequest) GetReceiverId() string {
	if x == nil {
		return ""
	}
	return x.ReceiverID
}

func (x *SendMessageRequest) GetText() string {
	if x == nil {
		return ""
	}
	return x.Text
}

type SendMessageResponse struct {
	Message *Message `json:"message"`
}

// Message is a stored chat message.
type Message struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	SenderEmail string    `json:"sender_email"`
	ReceiverID  string    `json:"receiver_id"`
	RoomID      string    `json:"room_id"`
	Timestamp   time.Time `json:"timestamp"`
}

type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Room is a chat room summary.
type Room struct {
	ID                 string                 `json:"id"`
	Participants       []string               `json:"participants"`
	ParticipantDetails map[string]Participant `json:"participant_details"`
	LastMessage        string                 `json:"last_message,omitempty"`
	LastMessageTime    time.Time              `json:"last_message_time,omitzero"`
}

type ListRoomsRequest struct{}

type ListRoomsResponse struct {
	Rooms []*Room `json:"rooms"`
}

type SubscribeRequest struct {
	RoomID string `json:"room_id"`
}

func (x *SubscribeRequest) GetRoomId() string {
	if x == nil {
		return ""
	}
	return x.RoomID
}

// RoomSnapshot is the full ordered message list of a room. Each one
// replaces the previous.
type RoomSnapshot struct {
	RoomID   string     `json:"room_id"`
	Messages []*Message `json:"messages"`
}
