package main

import (
	"github.com/PaulBabatuyi/duochat/internal/conversation"
	"github.com/PaulBabatuyi/duochat/internal/data"
	"github.com/PaulBabatuyi/duochat/internal/identity"
	"github.com/PaulBabatuyi/duochat/internal/rpc/chatv1"
)

func principalToUser(p identity.Principal) *chatv1.User {
	return &chatv1.User{ID: p.ID, Email: p.Email, DisplayName: p.DisplayName}
}

// publicUser omits the contact list; only the owner sees it.
func publicUser(p *data.Profile) *chatv1.User {
	if p == nil {
		return nil
	}
	return &chatv1.User{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		CreatedAt:   p.CreatedAt,
	}
}

func ownUser(p *data.Profile) *chatv1.User {
	u := publicUser(p)
	u.Contacts = append([]string{}, p.Contacts...)
	return u
}

func toMessage(m *data.Message) *chatv1.Message {
	return &chatv1.Message{
		ID:          m.ID.Hex(),
		Text:        m.Text,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		SenderEmail: m.SenderEmail,
		ReceiverID:  m.ReceiverID,
		RoomID:      m.ChatRoomID,
		Timestamp:   m.Timestamp,
	}
}

func toMessages(msgs []*data.Message) []*chatv1.Message {
	out := make([]*chatv1.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m))
	}
	return out
}

func toSnapshot(s conversation.Snapshot) *chatv1.RoomSnapshot {
	return &chatv1.RoomSnapshot{RoomID: s.RoomID, Messages: toMessages(s.Messages)}
}

func toRoom(r *data.ChatRoom) *chatv1.Room {
	details := make(map[string]chatv1.Participant, len(r.ParticipantDetails))
	for id, d := range r.ParticipantDetails {
		details[id] = chatv1.Participant{Name: d.Name, Email: d.Email}
	}
	return &chatv1.Room{
		ID:                 r.ID,
		Participants:       append([]string{}, r.Participants...),
		ParticipantDetails: details,
		LastMessage:        r.LastMessage,
		LastMessageTime:    r.LastMessageTime,
	}
}
