// Package datatest provides an in-memory implementation of the data stores
// for tests. It honours the same contracts as the MongoDB stores: keyed
// not-found errors, $addToSet contact semantics, merge upserts and
// (timestamp, id) message ordering.
package datatest

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/data"
	"github.com/PaulBabatuyi/duochat/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*data.Account // by email
	profiles map[string]*data.Profile
	rooms    map[string]*data.ChatRoom
	messages []*data.Message
	writes   map[string]int
	failures map[string][]error

	// Now is the store clock used for server-assigned timestamps.
	Now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: map[string]*data.Account{},
		profiles: map[string]*data.Profile{},
		rooms:    map[string]*data.ChatRoom{},
		writes:   map[string]int{},
		failures: map[string][]error{},
		Now:      time.Now,
	}
}

// FailNext makes the next call of op (e.g. "AddContact") return err.
// Calls queue up in order.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Writes returns how many successful writes op performed.
func (s *Store) Writes(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[op]
}

// WithTransaction runs fn directly; the in-memory store has no rollback.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// failure pops a queued failure for op. Callers hold s.mu.
func (s *Store) failure(op string) error {
	q := s.failures[op]
	if len(q) == 0 {
		return nil
	}
	s.failures[op] = q[1:]
	return q[0]
}

func (s *Store) now() time.Time {
	return s.Now().UTC().Truncate(time.Millisecond)
}

func notFound(op, msg string) error {
	return apperr.E("datatest."+op, apperr.NotFound, msg, data.ErrNotFound)
}

// ===== accounts =====

func (s *Store) CreateAccount(_ context.Context, email, displayName, hashedPassword string) (*data.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateAccount"); err != nil {
		return nil, err
	}

	email = normalize.Email(email)
	if _, ok := s.accounts[email]; ok {
		return nil, apperr.E("datatest.CreateAccount", apperr.Conflict, "user already exists", nil)
	}
	now := s.now()
	acct := &data.Account{
		ID:          bson.NewObjectID(),
		Email:       email,
		DisplayName: displayName,
		Password:    hashedPassword,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.accounts[email] = acct
	s.writes["CreateAccount"]++
	cp := *acct
	return &cp, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*data.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetAccountByEmail"); err != nil {
		return nil, err
	}

	acct, ok := s.accounts[normalize.Email(email)]
	if !ok {
		return nil, notFound("GetAccountByEmail", "user not found")
	}
	cp := *acct
	return &cp, nil
}

// ===== profiles =====

func copyProfile(p *data.Profile) *data.Profile {
	cp := *p
	cp.Contacts = slices.Clone(p.Contacts)
	return &cp
}

// PutProfile stores p as-is, bypassing write counters. Test setup only.
func (s *Store) PutProfile(p *data.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = copyProfile(p)
}

// DeleteProfile removes a profile, leaving references to it dangling.
func (s *Store) DeleteProfile(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, id)
}

func (s *Store) GetProfile(_ context.Context, id string) (*data.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetProfile"); err != nil {
		return nil, err
	}

	p, ok := s.profiles[id]
	if !ok {
		return nil, notFound("GetProfile", "user not found")
	}
	return copyProfile(p), nil
}

func (s *Store) CreateProfileIfAbsent(_ context.Context, p *data.Profile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateProfileIfAbsent"); err != nil {
		return false, err
	}

	if _, ok := s.profiles[p.ID]; ok {
		return false, nil
	}
	cp := copyProfile(p)
	cp.Email = normalize.Email(cp.Email)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	if cp.Contacts == nil {
		cp.Contacts = []string{}
	}
	s.profiles[p.ID] = cp
	s.writes["CreateProfileIfAbsent"]++
	return true, nil
}

func (s *Store) FindProfileByEmail(_ context.Context, email string) (*data.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindProfileByEmail"); err != nil {
		return nil, err
	}

	email = normalize.Email(email)
	var found *data.Profile
	for _, id := range slices.Sorted(maps.Keys(s.profiles)) {
		p := s.profiles[id]
		if p.Email != email {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) {
			found = p
		}
	}
	if found == nil {
		return nil, notFound("FindProfileByEmail", "user not found")
	}
	return copyProfile(found), nil
}

func (s *Store) AddContact(_ context.Context, ownerID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("AddContact"); err != nil {
		return err
	}

	p, ok := s.profiles[ownerID]
	if !ok {
		return notFound("AddContact", "user not found")
	}
	if !slices.Contains(p.Contacts, contactID) {
		p.Contacts = append(p.Contacts, contactID)
	}
	s.writes["AddContact"]++
	return nil
}

// ===== rooms =====

func copyRoom(r *data.ChatRoom) *data.ChatRoom {
	cp := *r
	cp.Participants = slices.Clone(r.Participants)
	cp.ParticipantDetails = maps.Clone(r.ParticipantDetails)
	return &cp
}

func (s *Store) UpsertRoom(_ context.Context, room *data.ChatRoom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpsertRoom"); err != nil {
		return err
	}

	now := s.now()
	existing, ok := s.rooms[room.ID]
	if !ok {
		existing = &data.ChatRoom{ID: room.ID, CreatedAt: now, ParticipantDetails: map[string]data.ParticipantDetail{}}
		s.rooms[room.ID] = existing
	}
	if existing.ParticipantDetails == nil {
		existing.ParticipantDetails = map[string]data.ParticipantDetail{}
	}
	existing.Participants = slices.Clone(room.Participants)
	for id, d := range room.ParticipantDetails {
		existing.ParticipantDetails[id] = d
	}
	existing.UpdatedAt = now
	s.writes["UpsertRoom"]++
	return nil
}

func (s *Store) GetRoom(_ context.Context, id string) (*data.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetRoom"); err != nil {
		return nil, err
	}

	r, ok := s.rooms[id]
	if !ok {
		return nil, notFound("GetRoom", "chat room not found")
	}
	return copyRoom(r), nil
}

func (s *Store) SetLastMessage(_ context.Context, roomID, text string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("SetLastMessage"); err != nil {
		return err
	}

	r, ok := s.rooms[roomID]
	if !ok {
		r = &data.ChatRoom{ID: roomID, CreatedAt: s.now()}
		s.rooms[roomID] = r
	}
	r.LastMessage = text
	r.LastMessageTime = at
	r.UpdatedAt = s.now()
	s.writes["SetLastMessage"]++
	return nil
}

func (s *Store) ListRoomsForUser(_ context.Context, userID string) ([]*data.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListRoomsForUser"); err != nil {
		return nil, err
	}

	rooms := []*data.ChatRoom{}
	for _, r := range s.rooms {
		if slices.Contains(r.Participants, userID) {
			rooms = append(rooms, copyRoom(r))
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		if !rooms[i].LastMessageTime.Equal(rooms[j].LastMessageTime) {
			return rooms[i].LastMessageTime.After(rooms[j].LastMessageTime)
		}
		return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt)
	})
	return rooms, nil
}

// ===== messages =====

func (s *Store) AppendMessage(_ context.Context, msg *data.Message) (*data.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("AppendMessage"); err != nil {
		return nil, err
	}

	saved := *msg
	saved.ID = bson.NewObjectID()
	saved.Timestamp = s.now()
	s.messages = append(s.messages, &saved)
	s.writes["AppendMessage"]++
	cp := saved
	return &cp, nil
}

func (s *Store) ListRoomMessages(_ context.Context, roomID string) ([]*data.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListRoomMessages"); err != nil {
		return nil, err
	}

	out := []*data.Message{}
	for _, m := range s.messages {
		if m.ChatRoomID == roomID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}
