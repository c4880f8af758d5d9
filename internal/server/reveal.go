package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nanashi-games/turingden/internal/game"
)

// Finalizer serializes reveal attempts per room. Several triggers can race to
// end a round (timer expiry, last spy eliminated, every detective reported,
// explicit host reveal); the per-room lock plus the store's check-and-set
// guarantee the result is computed once and every caller sees the same one.
type Finalizer struct {
	store  Store
	broker *Broker
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFinalizer(store Store, broker *Broker, logger *slog.Logger) *Finalizer {
	return &Finalizer{
		store:  store,
		broker: broker,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (f *Finalizer) roomLock(roomID string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		f.locks[roomID] = l
	}
	return l
}

// Reveal finalizes the room if it has not been finalized yet and returns the
// round result. The round_revealed event fires only for the caller that
// actually performed the transition.
func (f *Finalizer) Reveal(ctx context.Context, roomID string) (game.RoundResult, error) {
	l := f.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	result, newly, err := f.store.FinalizeRoom(ctx, roomID, time.Now())
	if err != nil {
		return game.RoundResult{}, err
	}
	if newly {
		f.logger.Info("round revealed", "room_id", roomID,
			"winner", result.Winner, "turing_score", result.TuringScore)
		f.broker.Publish(roomID, Event{Type: "round_revealed", Winner: string(result.Winner)})
	}
	return result, nil
}
