// Package directory manages user profiles and their contact lists.
package directory

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/data"
	"github.com/PaulBabatuyi/duochat/internal/identity"
	"github.com/PaulBabatuyi/duochat/internal/normalize"
)

// ErrUserNotFound is matched by every not-found error the service returns.
var ErrUserNotFound = data.ErrNotFound

// maxResolveConcurrency bounds the ListContacts fan-out.
const maxResolveConcurrency = 16

// UserStore is the subset of data.UsersStore the service needs.
type UserStore interface {
	GetProfile(ctx context.Context, id string) (*data.Profile, error)
	CreateProfileIfAbsent(ctx context.Context, p *data.Profile) (bool, error)
	FindProfileByEmail(ctx context.Context, email string) (*data.Profile, error)
	AddContact(ctx context.Context, ownerID, contactID string) error
}

// Transactor runs fn in a multi-document transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements the directory operations.
type Service struct {
	users UserStore
	tx    Transactor
	log   *slog.Logger
}

// NewService wires the directory. tx may be nil, in which case the two
// contact writes run independently.
func NewService(users UserStore, tx Transactor, log *slog.Logger) *Service {
	return &Service{
		users: users,
		tx:    tx,
		log:   log.With("component", "directory"),
	}
}

// EnsureProfile creates the principal's profile on first sign-in. An existing
// profile is never rewritten. It reports whether a profile was created.
func (s *Service) EnsureProfile(ctx context.Context, p identity.Principal) (bool, error) {
	const op = "directory.EnsureProfile"

	id := normalize.ID(p.ID)
	if id == "" {
		return false, apperr.Invalid(op, "user id is required")
	}

	_, err := s.users.GetProfile(ctx, id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, data.ErrNotFound) {
		s.log.Error("profile lookup failed", "user_id", id, "error", err)
		return false, err
	}

	created, err := s.users.CreateProfileIfAbsent(ctx, &data.Profile{
		ID:          id,
		Email:       normalize.Email(p.Email),
		DisplayName: normalize.DisplayName(p.DisplayName, p.Email),
		Contacts:    []string{},
	})
	if err != nil {
		s.log.Error("create profile failed", "user_id", id, "error", err)
		return false, err
	}
	if created {
		s.log.Info("profile created", "user_id", id)
	}
	return created, nil
}

// ResolveUser returns the profile with the given id.
func (s *Service) ResolveUser(ctx context.Context, id string) (*data.Profile, error) {
	const op = "directory.ResolveUser"

	id = normalize.ID(id)
	if id == "" {
		return nil, apperr.Invalid(op, "user id is required")
	}

	p, err := s.users.GetProfile(ctx, id)
	if err != nil {
		if !errors.Is(err, data.ErrNotFound) {
			s.log.Error("resolve user failed", "user_id", id, "error", err)
		}
		return nil, err
	}
	return p, nil
}

// FindUserByEmail returns the oldest profile registered with email.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (*data.Profile, error) {
	const op = "directory.FindUserByEmail"

	email = normalize.Email(email)
	if email == "" {
		return nil, apperr.Invalid(op, "email is required")
	}

	p, err := s.users.FindProfileByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, data.ErrNotFound) {
			s.log.Error("find user by email failed", "error", err)
		}
		return nil, err
	}
	return p, nil
}

// AddContact links selfID and otherID in both contact lists. It returns
// false without writing when other is already one of self's contacts.
func (s *Service) AddContact(ctx context.Context, selfID, otherID string) (bool, error) {
	const op = "directory.AddContact"

	selfID, otherID = normalize.ID(selfID), normalize.ID(otherID)
	if selfID == "" || otherID == "" {
		return false, apperr.Invalid(op, "user id is required")
	}
	if selfID == otherID {
		return false, apperr.Invalid(op, "you can't add yourself as a contact")
	}

	self, err := s.users.GetProfile(ctx, selfID)
	if err != nil {
		if !errors.Is(err, data.ErrNotFound) {
			s.log.Error("contact lookup failed", "user_id", selfID, "error", err)
		}
		return false, err
	}
	if self.HasContact(otherID) {
		return false, nil
	}

	link := func(ctx context.Context) error {
		if err := s.users.AddContact(ctx, selfID, otherID); err != nil {
			return err
		}
		return s.users.AddContact(ctx, otherID, selfID)
	}

	if s.tx != nil {
		err = s.tx.WithTransaction(ctx, link)
	} else {
		err = link(ctx)
	}
	if err != nil {
		s.log.Error("add contact failed", "user_id", selfID, "contact_id", otherID, "error", err)
		return false, err
	}

	s.log.Info("contact added", "user_id", selfID, "contact_id", otherID)
	return true, nil
}

// AddContactByID is the add-contact form flow: the raw id is trimmed and
// checked before the counterpart is resolved and linked.
func (s *Service) AddContactByID(ctx context.Context, self identity.Principal, rawID string) (*data.Profile, bool, error) {
	const op = "directory.AddContactByID"

	id := normalize.ID(rawID)
	if id == "" {
		return nil, false, apperr.Invalid(op, "please enter a user id")
	}
	if id == self.ID {
		return nil, false, apperr.Invalid(op, "you can't add yourself as a contact")
	}

	other, err := s.ResolveUser(ctx, id)
	if errors.Is(err, data.ErrNotFound) {
		return nil, false, apperr.E(op, apperr.NotFound, "user not found, check the user id and try again", err)
	}
	if err != nil {
		return nil, false, err
	}

	added, err := s.AddContact(ctx, self.ID, other.ID)
	if err != nil {
		return nil, false, err
	}
	return other, added, nil
}

// ListContacts resolves every contact of selfID concurrently. Contacts that
// cannot be resolved are dropped; the rest keep the stored order.
func (s *Service) ListContacts(ctx context.Context, selfID string) ([]*data.Profile, error) {
	self, err := s.ResolveUser(ctx, selfID)
	if err != nil {
		return nil, err
	}
	if len(self.Contacts) == 0 {
		return []*data.Profile{}, nil
	}

	resolved := make([]*data.Profile, len(self.Contacts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxResolveConcurrency)
	for i, id := range self.Contacts {
		g.Go(func() error {
			p, err := s.users.GetProfile(gctx, id)
			if err != nil {
				if !errors.Is(err, data.ErrNotFound) {
					s.log.Warn("contact unresolved", "user_id", self.ID, "contact_id", id, "error", err)
				}
				return nil
			}
			resolved[i] = p
			return nil
		})
	}
	// goroutines never return errors; unresolved slots stay nil
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contacts := make([]*data.Profile, 0, len(resolved))
	for _, p := range resolved {
		if p != nil {
			contacts = append(contacts, p)
		}
	}
	return contacts, nil
}
