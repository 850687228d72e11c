package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(st State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st.Status)
	}
	return out
}

var (
	bobProfile   = &data.Profile{ID: "u2", Email: "bob@example.com", DisplayName: "Bob"}
	carolProfile = &data.Profile{ID: "u3", Email: "carol@example.com", DisplayName: "Carol"}
)

func ready(v *View, roomID string, n int) func() bool {
	return func() bool {
		st := v.State()
		return st.Status == RoomReady && st.RoomID == roomID && len(st.Messages) == n
	}
}

func TestViewSelectAndSend(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	rec := &recorder{}
	v := NewView(svc, alice, rec.record)

	assert.Equal(t, Unselected, v.State().Status)

	require.NoError(t, v.Select(ctx, bobProfile))
	require.Eventually(t, ready(v, "u1_u2", 0), time.Second, 5*time.Millisecond)

	_, err := v.Send(ctx, "hello")
	require.NoError(t, err)
	require.Eventually(t, ready(v, "u1_u2", 1), time.Second, 5*time.Millisecond)

	// the other side writes into the same room
	_, err = svc.Send(ctx, "u1_u2", "world", bob, alice.ID)
	require.NoError(t, err)
	require.Eventually(t, ready(v, "u1_u2", 2), time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"hello", "world"}, texts(v.State().Messages))

	statuses := rec.statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, RoomResolving, statuses[0])
	assert.Equal(t, RoomReady, statuses[len(statuses)-1])
}

func TestViewSendRightAfterSelect(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		v := NewView(svc, alice, nil)
		require.NoError(t, v.Select(ctx, bobProfile))

		st := v.State()
		require.Equal(t, RoomReady, st.Status, "a subscribed room is ready without waiting for a snapshot")
		require.Equal(t, "u1_u2", st.RoomID)

		_, err := v.Send(ctx, "hi")
		require.NoError(t, err)
		v.Clear()
	}

	v := NewView(svc, alice, nil)
	require.NoError(t, v.Select(ctx, bobProfile))
	require.Eventually(t, func() bool {
		st := v.State()
		return st.Loaded && len(st.Messages) == 20
	}, time.Second, 5*time.Millisecond)
}

func TestViewSwitchContact(t *testing.T) {
	svc, _, hub := newTestService(t)
	ctx := context.Background()
	v := NewView(svc, alice, nil)

	require.NoError(t, v.Select(ctx, bobProfile))
	require.Eventually(t, ready(v, "u1_u2", 0), time.Second, 5*time.Millisecond)

	require.NoError(t, v.Select(ctx, carolProfile))
	require.Eventually(t, ready(v, "u1_u3", 0), time.Second, 5*time.Millisecond)

	// only one live subscription remains
	assert.Eventually(t, func() bool { return hub.Listeners("u1_u2") == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.Listeners("u1_u3"))

	// traffic in the abandoned room does not reach the view
	_, err := svc.Send(ctx, "u1_u2", "late", bob, alice.ID)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	st := v.State()
	assert.Equal(t, "u1_u3", st.RoomID)
	assert.Empty(t, st.Messages)
	assert.Equal(t, "u3", st.Contact.ID)
}

func TestViewClear(t *testing.T) {
	svc, _, hub := newTestService(t)
	ctx := context.Background()
	v := NewView(svc, alice, nil)

	require.NoError(t, v.Select(ctx, bobProfile))
	require.Eventually(t, ready(v, "u1_u2", 0), time.Second, 5*time.Millisecond)

	v.Clear()
	st := v.State()
	assert.Equal(t, Unselected, st.Status)
	assert.Nil(t, st.Contact)
	assert.Eventually(t, func() bool { return hub.Listeners("u1_u2") == 0 }, time.Second, 5*time.Millisecond)

	_, err := v.Send(ctx, "hello")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestViewOpenFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	v := NewView(svc, alice, nil)

	store.FailNext("UpsertRoom", apperr.E("test", apperr.Permission, "", errors.New("denied")))
	err := v.Select(ctx, bobProfile)
	require.Error(t, err)

	st := v.State()
	assert.Equal(t, Failed, st.Status)
	assert.Equal(t, apperr.Permission, apperr.KindOf(st.Err))
	assert.Equal(t, "u2", st.Contact.ID)

	// no automatic retry: the view stays failed
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Failed, v.State().Status)

	_, err = v.Send(ctx, "hello")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	// selecting again recovers
	require.NoError(t, v.Select(ctx, bobProfile))
	require.Eventually(t, ready(v, "u1_u2", 0), time.Second, 5*time.Millisecond)
}

func TestViewSubscribeFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	v := NewView(svc, alice, nil)

	store.FailNext("ListRoomMessages", apperr.E("test", apperr.Unavailable, "", errors.New("no primary")))
	err := v.Select(context.Background(), bobProfile)
	require.Error(t, err)
	assert.Equal(t, Failed, v.State().Status)
	assert.Equal(t, apperr.Unavailable, apperr.KindOf(v.State().Err))
}

func TestViewSelectRequiresContact(t *testing.T) {
	svc, _, _ := newTestService(t)
	v := NewView(svc, alice, nil)

	err := v.Select(context.Background(), nil)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Equal(t, Unselected, v.State().Status)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "unselected", Unselected.String())
	assert.Equal(t, "resolving", RoomResolving.String())
	assert.Equal(t, "ready", RoomReady.String())
	assert.Equal(t, "failed", Failed.String())
}
