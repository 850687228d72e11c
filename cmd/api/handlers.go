package main

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/conversation"
	"github.com/PaulBabatuyi/duochat/internal/data"
	"github.com/PaulBabatuyi/duochat/internal/identity"
	"github.com/PaulBabatuyi/duochat/internal/rpc/chatv1"
)

// rpcError turns err into a gRPC status. Classified errors carry their own
// status; anything else is reported as internal without details.
func rpcError(err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// principal returns the caller attached by the auth interceptor.
func principal(ctx context.Context) (*identity.Principal, error) {
	p, ok := identity.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperr.E("api.principal", apperr.Auth, "missing auth claims", nil)
	}
	return p, nil
}

// signedIn makes sure the freshly signed-in principal has a profile.
func (s *Server) signedIn(ctx context.Context, creds *identity.Credentials) (*chatv1.AuthResponse, error) {
	if _, err := s.directory.EnsureProfile(ctx, creds.Principal); err != nil {
		return nil, rpcError(err)
	}
	return &chatv1.AuthResponse{
		Token:     creds.Token,
		User:      principalToUser(creds.Principal),
		ExpiresAt: creds.ExpiresAt,
	}, nil
}

// Register creates an account, signs it in and creates its profile.
func (s *Server) Register(ctx context.Context, req *chatv1.RegisterRequest) (*chatv1.AuthResponse, error) {
	creds, err := s.identity.SignUp(ctx, identity.SignUpInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		DisplayName:     req.DisplayName,
	})
	if err != nil {
		return nil, rpcError(err)
	}
	return s.signedIn(ctx, creds)
}

// Login authenticates a user and returns a JWT token.
func (s *Server) Login(ctx context.Context, req *chatv1.LoginRequest) (*chatv1.AuthResponse, error) {
	creds, err := s.identity.SignIn(ctx, req.GetEmail(), req.Password)
	if err != nil {
		return nil, rpcError(err)
	}
	return s.signedIn(ctx, creds)
}

// Logout revokes the caller's token.
func (s *Server) Logout(ctx context.Context, _ *chatv1.LogoutRequest) (*chatv1.LogoutResponse, error) {
	sess, ok := identity.SessionFromContext(ctx)
	if !ok {
		return nil, rpcError(apperr.E("api.Logout", apperr.Auth, "missing auth claims", nil))
	}
	if err := s.identity.SignOut(ctx, sess); err != nil {
		return nil, rpcError(err)
	}
	return &chatv1.LogoutResponse{}, nil
}

// Me returns the caller's own profile, contacts included.
func (s *Server) Me(ctx context.Context, _ *chatv1.MeRequest) (*chatv1.User, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	profile, err := s.directory.ResolveUser(ctx, p.ID)
	if err != nil {
		return nil, rpcError(err)
	}
	return ownUser(profile), nil
}

func (s *Server) GetUser(ctx context.Context, req *chatv1.GetUserRequest) (*chatv1.User, error) {
	profile, err := s.directory.ResolveUser(ctx, req.GetUserId())
	if err != nil {
		return nil, rpcError(err)
	}
	return publicUser(profile), nil
}

func (s *Server) FindUser(ctx context.Context, req *chatv1.FindUserRequest) (*chatv1.User, error) {
	profile, err := s.directory.FindUserByEmail(ctx, req.GetEmail())
	if err != nil {
		return nil, rpcError(err)
	}
	return publicUser(profile), nil
}

// AddContact links the caller with the user whose id was pasted in.
func (s *Server) AddContact(ctx context.Context, req *chatv1.AddContactRequest) (*chatv1.AddContactResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	contact, added, err := s.directory.AddContactByID(ctx, *p, req.GetUserId())
	if err != nil {
		return nil, rpcError(err)
	}
	return &chatv1.AddContactResponse{Added: added, Contact: publicUser(contact)}, nil
}

func (s *Server) ListContacts(ctx context.Context, _ *chatv1.ListContactsRequest) (*chatv1.ListContactsResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	contacts, err := s.directory.ListContacts(ctx, p.ID)
	if err != nil {
		return nil, rpcError(err)
	}
	out := make([]*chatv1.User, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, publicUser(c))
	}
	return &chatv1.ListContactsResponse{Contacts: out}, nil
}

// OpenRoom resolves the contact, upserts the room shared with them and
// returns it as stored.
func (s *Server) OpenRoom(ctx context.Context, req *chatv1.OpenRoomRequest) (*chatv1.OpenRoomResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	contact, err := s.directory.ResolveUser(ctx, req.GetContactId())
	if err != nil {
		return nil, rpcError(err)
	}
	roomID, err := s.conversation.OpenRoom(ctx, *p, contact.ID, data.ParticipantDetail{
		Name:  contact.DisplayName,
		Email: contact.Email,
	})
	if err != nil {
		return nil, rpcError(err)
	}
	room, err := s.conversation.Room(ctx, p.ID, roomID)
	if err != nil {
		return nil, rpcError(err)
	}
	return &chatv1.OpenRoomResponse{RoomID: roomID, Room: toRoom(room)}, nil
}

func (s *Server) SendMessage(ctx context.Context, req *chatv1.SendMessageRequest) (*chatv1.SendMessageResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	msg, err := s.conversation.Send(ctx, req.GetRoomId(), req.GetText(), *p, req.GetReceiverId())
	if err != nil {
		return nil, rpcError(err)
	}
	return &chatv1.SendMessageResponse{Message: toMessage(msg)}, nil
}

func (s *Server) ListRooms(ctx context.Context, _ *chatv1.ListRoomsRequest) (*chatv1.ListRoomsResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	rooms, err := s.conversation.ListRooms(ctx, p.ID)
	if err != nil {
		return nil, rpcError(err)
	}
	out := make([]*chatv1.Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, toRoom(r))
	}
	return &chatv1.ListRoomsResponse{Rooms: out}, nil
}

// Subscribe streams a full snapshot of the room after every change until
// the client goes away. A client that falls behind skips straight to the
// newest snapshot.
func (s *Server) Subscribe(req *chatv1.SubscribeRequest, stream chatv1.ChatService_SubscribeServer) error {
	const op = "api.Subscribe"

	sess, ok := identity.SessionFromContext(stream.Context())
	if !ok || !sess.Active() {
		return rpcError(apperr.E(op, apperr.Auth, "missing auth claims", nil))
	}
	p := sess.Principal()
	roomID := req.GetRoomId()
	if !conversation.IsParticipant(roomID, p.ID) {
		return rpcError(apperr.E(op, apperr.Permission, "not a participant of this room", nil))
	}

	// the stream ends with the session: sign-out elsewhere or token expiry
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	stopWatch := sess.Subscribe(func(p *identity.Principal) {
		if p == nil {
			cancel()
		}
	})
	defer stopWatch()
	go s.watchSession(ctx, sess)

	// only the subscription goroutine writes, so drain-then-send never blocks
	latest := make(chan conversation.Snapshot, 1)
	unsubscribe, err := s.conversation.Subscribe(ctx, roomID, func(snap conversation.Snapshot) {
		select {
		case <-latest:
		default:
		}
		latest <- snap
	})
	if err != nil {
		return rpcError(err)
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			if !sess.Active() {
				return rpcError(apperr.E(op, apperr.Auth, "session ended", nil))
			}
			return nil
		case snap := <-latest:
			if err := stream.Send(toSnapshot(snap)); err != nil {
				s.log.Debug("subscribe stream closed", "room_id", roomID, "error", err)
				return err
			}
		}
	}
}
