package conversation

import (
	"context"
	"sync"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/data"
	"github.com/PaulBabatuyi/duochat/internal/identity"
	"github.com/PaulBabatuyi/duochat/internal/normalize"
)

// Status is the phase of a View.
type Status int

const (
	Unselected Status = iota
	RoomResolving
	RoomReady
	Failed
)

func (s Status) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case RoomResolving:
		return "resolving"
	case RoomReady:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// State is what a View currently shows. A RoomReady state accepts sends
// as soon as the room is subscribed; Loaded turns true with the first
// snapshot.
type State struct {
	Status   Status
	Contact  *data.Profile
	RoomID   string
	Messages []*data.Message
	Loaded   bool
	Err      error
}

// View is the conversation pane of one signed-in user. It holds at most one
// live subscription, for the selected contact's room, and discards
// snapshots that arrive for a room it has since left.
type View struct {
	svc      *Service
	self     identity.Principal
	onChange func(State)

	mu    sync.Mutex
	state State
	gen   uint64
	unsub func()
}

// NewView returns an unselected view. onChange receives every state change.
// It is called with the view locked, so it must not call back into the view.
func NewView(svc *Service, self identity.Principal, onChange func(State)) *View {
	if onChange == nil {
		onChange = func(State) {}
	}
	return &View{svc: svc, self: self, onChange: onChange}
}

// State returns the current state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Select switches the view to contact: the previous subscription is dropped,
// the room is opened and a new subscription started. ctx bounds the lifetime
// of that subscription. A failure leaves the view in Failed until the next
// Select or Clear.
func (v *View) Select(ctx context.Context, contact *data.Profile) error {
	if contact == nil || normalize.ID(contact.ID) == "" {
		return apperr.Invalid("conversation.Select", "no contact selected")
	}

	v.mu.Lock()
	gen := v.reset()
	v.set(State{Status: RoomResolving, Contact: contact})
	v.mu.Unlock()

	other := data.ParticipantDetail{
		Name:  normalize.DisplayName(contact.DisplayName, contact.Email),
		Email: contact.Email,
	}
	roomID, err := v.svc.OpenRoom(ctx, v.self, contact.ID, other)
	if err != nil {
		v.fail(gen, err)
		return err
	}

	unsub, err := v.svc.Subscribe(ctx, roomID, func(snap Snapshot) {
		v.apply(gen, contact, snap)
	})
	if err != nil {
		v.fail(gen, err)
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		// superseded while subscribing
		unsub()
		return nil
	}
	v.unsub = unsub
	// the first snapshot may already have arrived
	if v.state.Status == RoomResolving {
		v.set(State{Status: RoomReady, Contact: contact, RoomID: roomID})
	}
	return nil
}

// Send posts text to the selected contact.
func (v *View) Send(ctx context.Context, text string) (*data.Message, error) {
	v.mu.Lock()
	st := v.state
	v.mu.Unlock()

	if st.Status != RoomReady {
		return nil, apperr.Invalid("conversation.Send", "no conversation selected")
	}
	return v.svc.Send(ctx, st.RoomID, text, v.self, st.Contact.ID)
}

// Clear drops the selection and its subscription.
func (v *View) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reset()
	v.set(State{Status: Unselected})
}

// reset cancels the live subscription and starts a new generation.
// Callers hold v.mu.
func (v *View) reset() uint64 {
	v.gen++
	if v.unsub != nil {
		v.unsub()
		v.unsub = nil
	}
	return v.gen
}

// set replaces the state and notifies. Callers hold v.mu.
func (v *View) set(st State) {
	v.state = st
	v.onChange(st)
}

func (v *View) apply(gen uint64, contact *data.Profile, snap Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		return
	}
	v.set(State{Status: RoomReady, Contact: contact, RoomID: snap.RoomID, Messages: snap.Messages, Loaded: true})
}

func (v *View) fail(gen uint64, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		return
	}
	v.set(State{Status: Failed, Contact: v.state.Contact, Err: err})
}
