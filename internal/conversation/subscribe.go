package conversation

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/data"
	"github.com/PaulBabatuyi/duochat/internal/normalize"
)

// Snapshot is the complete ordered message list of a room at one point in
// time. Consumers replace their previous snapshot with it.
type Snapshot struct {
	RoomID   string
	Messages []*data.Message
}

// Subscribe delivers the messages of roomID to fn, first immediately and
// then again after every change. Each delivery is the full list ordered by
// (timestamp, id). Deliveries happen one at a time on a goroutine owned by
// the subscription; fn must not block for long.
//
// The initial load happens before Subscribe returns and its error is
// returned. The returned function stops delivery; it may be called more
// than once. Cancelling ctx has the same effect.
func (s *Service) Subscribe(ctx context.Context, roomID string, fn func(Snapshot)) (unsubscribe func(), err error) {
	const op = "conversation.Subscribe"

	roomID = normalize.ID(roomID)
	if _, _, ok := Participants(roomID); !ok {
		return nil, apperr.Invalid(op, "invalid room id")
	}

	// listen before the first read so a write racing with it still wakes us
	changed := make(chan struct{}, 1)
	stopListen := s.notifier.Listen(roomID, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	initial, err := s.messages.ListRoomMessages(ctx, roomID)
	if err != nil {
		stopListen()
		s.log.Error("load room messages failed", "room_id", roomID, "error", err)
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	var stopped atomic.Bool
	var once sync.Once
	unsubscribe = func() {
		once.Do(func() {
			stopped.Store(true)
			cancel()
		})
	}

	deliver := func(msgs []*data.Message) {
		if stopped.Load() {
			return
		}
		fn(Snapshot{RoomID: roomID, Messages: msgs})
	}

	go func() {
		defer stopListen()
		defer unsubscribe()

		deliver(initial)
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}

			msgs, err := s.messages.ListRoomMessages(ctx, roomID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// keep the last snapshot; the next change triggers another read
				s.log.Warn("refresh room messages failed", "room_id", roomID, "error", err)
				continue
			}
			deliver(msgs)
		}
	}()

	return unsubscribe, nil
}
