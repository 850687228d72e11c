// Package conversation addresses chat rooms, appends messages and keeps
// subscribers supplied with ordered snapshots of a room.
package conversation

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/data"
	"github.com/PaulBabatuyi/duochat/internal/feed"
	"github.com/PaulBabatuyi/duochat/internal/identity"
	"github.com/PaulBabatuyi/duochat/internal/normalize"
)

// MaxMessageLength is the longest message text accepted, in runes.
const MaxMessageLength = 2000

// RoomStore is the subset of data.RoomsStore the service needs.
type RoomStore interface {
	UpsertRoom(ctx context.Context, room *data.ChatRoom) error
	GetRoom(ctx context.Context, id string) (*data.ChatRoom, error)
	SetLastMessage(ctx context.Context, roomID, text string, at time.Time) error
	ListRoomsForUser(ctx context.Context, userID string) ([]*data.ChatRoom, error)
}

// MessageStore is the subset of data.MessagesStore the service needs.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *data.Message) (*data.Message, error)
	ListRoomMessages(ctx context.Context, roomID string) ([]*data.Message, error)
}

// Transactor runs fn in a multi-document transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements the conversation operations.
type Service struct {
	rooms    RoomStore
	messages MessageStore
	notifier feed.Notifier
	tx       Transactor
	log      *slog.Logger
}

// NewService wires the conversation service. tx may be nil.
func NewService(rooms RoomStore, messages MessageStore, notifier feed.Notifier, tx Transactor, log *slog.Logger) *Service {
	return &Service{
		rooms:    rooms,
		messages: messages,
		notifier: notifier,
		tx:       tx,
		log:      log.With("component", "conversation"),
	}
}

func detailOf(p identity.Principal) data.ParticipantDetail {
	return data.ParticipantDetail{
		Name:  normalize.DisplayName(p.DisplayName, p.Email),
		Email: p.Email,
	}
}

// OpenRoom creates or refreshes the room shared by self and otherID and
// returns its id. It is safe to call every time a room is shown.
func (s *Service) OpenRoom(ctx context.Context, self identity.Principal, otherID string, other data.ParticipantDetail) (string, error) {
	const op = "conversation.OpenRoom"

	otherID = normalize.ID(otherID)
	if !validUserID(self.ID) || !validUserID(otherID) {
		return "", apperr.Invalid(op, "invalid user id")
	}
	if self.ID == otherID {
		return "", apperr.Invalid(op, "cannot open a room with yourself")
	}

	roomID := RoomID(self.ID, otherID)
	participants := []string{self.ID, otherID}
	slices.Sort(participants)

	room := &data.ChatRoom{
		ID:           roomID,
		Participants: participants,
		ParticipantDetails: map[string]data.ParticipantDetail{
			self.ID: detailOf(self),
			otherID: other,
		},
	}
	if err := s.rooms.UpsertRoom(ctx, room); err != nil {
		s.log.Error("open room failed", "room_id", roomID, "error", err)
		return "", err
	}
	return roomID, nil
}

// Send appends a message from sender to receiverID in roomID and refreshes
// the room summary. Subscribers of the room are notified once the message
// is stored.
func (s *Service) Send(ctx context.Context, roomID, text string, sender identity.Principal, receiverID string) (*data.Message, error) {
	const op = "conversation.Send"

	if strings.TrimSpace(text) == "" {
		return nil, apperr.Invalid(op, "message can't be empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, apperr.Invalid(op, "message is too long")
	}

	roomID, receiverID = normalize.ID(roomID), normalize.ID(receiverID)
	if !validUserID(sender.ID) || !validUserID(receiverID) || sender.ID == receiverID {
		return nil, apperr.Invalid(op, "invalid receiver")
	}
	if RoomID(sender.ID, receiverID) != roomID {
		return nil, apperr.E(op, apperr.Permission, "not a participant of this room", nil)
	}

	msg := &data.Message{
		Text:        text,
		SenderID:    sender.ID,
		SenderName:  normalize.DisplayName(sender.DisplayName, sender.Email),
		SenderEmail: sender.Email,
		ReceiverID:  receiverID,
		ChatRoomID:  roomID,
	}

	var saved *data.Message
	write := func(ctx context.Context) error {
		m, err := s.messages.AppendMessage(ctx, msg)
		if err != nil {
			return err
		}
		saved = m
		return s.rooms.SetLastMessage(ctx, roomID, m.Text, m.Timestamp)
	}

	var err error
	if s.tx != nil {
		err = s.tx.WithTransaction(ctx, write)
	} else {
		err = write(ctx)
	}

	// without a transaction the message may be stored even though the
	// summary update failed; subscribers still need to see it
	if saved != nil && (err == nil || s.tx == nil) {
		if perr := s.notifier.Publish(ctx, roomID); perr != nil {
			s.log.Warn("publish room change failed", "room_id", roomID, "error", perr)
		}
	}
	if err != nil {
		s.log.Error("send message failed", "room_id", roomID, "sender_id", sender.ID, "error", err)
		return nil, err
	}
	return saved, nil
}

// Room returns roomID as stored, with participant details and summary.
// Only a participant may read it.
func (s *Service) Room(ctx context.Context, userID, roomID string) (*data.ChatRoom, error) {
	const op = "conversation.Room"

	roomID = normalize.ID(roomID)
	if _, _, ok := Participants(roomID); !ok {
		return nil, apperr.Invalid(op, "invalid room id")
	}
	if !IsParticipant(roomID, userID) {
		return nil, apperr.E(op, apperr.Permission, "not a participant of this room", nil)
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if !apperr.Is(err, apperr.NotFound) {
			s.log.Error("load room failed", "room_id", roomID, "error", err)
		}
		return nil, err
	}
	return room, nil
}

// ListRooms returns the rooms userID takes part in, most recent first.
func (s *Service) ListRooms(ctx context.Context, userID string) ([]*data.ChatRoom, error) {
	rooms, err := s.rooms.ListRoomsForUser(ctx, userID)
	if err != nil {
		s.log.Error("list rooms failed", "user_id", userID, "error", err)
		return nil, err
	}
	return rooms, nil
}
