package server

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nanashi-games/turingden/internal/game"
	"github.com/nanashi-games/turingden/internal/genai"
)

const (
	recentContextPosts = 5
	tickConcurrency    = 4
)

// Scheduler drives the simulated crowd: on every tick it walks the playing
// rooms, ends rounds whose timer expired, and lets each due persona post.
// Ticks may overlap or double-fire; the store's last-post marker makes a
// duplicate persona trigger a no-op, so the scheduler never needs its own
// cross-tick coordination.
type Scheduler struct {
	store     Store
	gen       genai.Generator
	broker    *Broker
	finalizer *Finalizer
	logger    *slog.Logger
	lines     []string
	interval  time.Duration

	// Injectable for tests.
	now       func() time.Time
	randFloat func() float64
	randIntN  func(n int) int
}

func NewScheduler(store Store, gen genai.Generator, broker *Broker, finalizer *Finalizer, policy personaPolicy, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	return &Scheduler{
		store:     store,
		gen:       gen,
		broker:    broker,
		finalizer: finalizer,
		logger:    logger,
		lines:     policy.Lines,
		interval:  interval,
		now:       time.Now,
		randFloat: rand.Float64,
		randIntN:  rand.IntN,
	}
}

// Run ticks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tickAll(ctx)
		}
	}
}

func (s *Scheduler) tickAll(ctx context.Context) {
	roomIDs, err := s.store.PlayingRoomIDs(ctx)
	if err != nil {
		s.logger.Error("listing playing rooms", "error", err)
		return
	}
	for _, roomID := range roomIDs {
		if _, _, err := s.TickRoom(ctx, roomID); err != nil {
			s.logger.Error("room tick failed", "room_id", roomID, "error", err)
		}
	}
}

// TickRoom advances one room: reveals it if the timer expired, otherwise runs
// every due persona. Returns how many posts were written and whether the
// round ended on this tick.
func (s *Scheduler) TickRoom(ctx context.Context, roomID string) (int, bool, error) {
	room, err := s.store.Room(ctx, roomID)
	if err != nil {
		return 0, false, err
	}
	if room.Status != game.StatusPlaying {
		return 0, false, nil
	}

	now := s.now()
	if game.RoundEnded(room, now) {
		_, err := s.finalizer.Reveal(ctx, roomID)
		return 0, true, err
	}

	personas, err := s.store.Personas(ctx, roomID)
	if err != nil {
		return 0, false, err
	}
	threads, err := s.store.Threads(ctx, roomID)
	if err != nil {
		return 0, false, err
	}
	if len(threads) == 0 {
		return 0, false, nil
	}

	var posted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tickConcurrency)
	for _, p := range personas {
		if p.Eliminated || !s.personaDue(p, room, now) {
			continue
		}
		p := p
		g.Go(func() error {
			ok, err := s.postAs(gctx, roomID, p, threads, now)
			if err != nil {
				s.logger.Error("persona post failed",
					"room_id", roomID, "persona", p.Name, "error", err)
				return nil
			}
			if ok {
				posted.Add(1)
			}
			return nil
		})
	}
	g.Wait()
	return int(posted.Load()), false, nil
}

// personaDue decides whether a persona should post now. A persona that has
// never posted comes in after a uniform delay within its first frequency
// window; afterwards each gap is the frequency jittered by up to a quarter
// either way.
func (s *Scheduler) personaDue(p game.Persona, room game.Room, now time.Time) bool {
	freq := p.PostFrequency
	if freq <= 0 {
		return false
	}
	if p.LastPostAt == nil {
		if room.RoundStartedAt == nil {
			return false
		}
		delay := time.Duration(s.randFloat() * float64(freq))
		return now.Sub(*room.RoundStartedAt) >= delay
	}
	gap := freq + time.Duration((s.randFloat()-0.5)*0.5*float64(freq))
	return now.Sub(*p.LastPostAt) >= gap
}

// postAs writes one post for a persona into a random thread. Generator
// failures degrade to a canned line rather than skipping the turn. A stale
// last-post marker means another trigger already posted for this persona;
// that is reported as not-posted, not as an error.
func (s *Scheduler) postAs(ctx context.Context, roomID string, p game.Persona, threads []game.Thread, now time.Time) (bool, error) {
	thread := threads[s.randIntN(len(threads))]

	recent, err := s.store.RecentThreadPosts(ctx, roomID, thread.ID, recentContextPosts)
	if err != nil {
		return false, err
	}
	recentCtx := make([]genai.RecentPost, 0, len(recent))
	for _, rp := range recent {
		recentCtx = append(recentCtx, genai.RecentPost{Seq: rp.Seq, AuthorID: rp.AuthorID, Content: rp.Content})
	}

	content, err := s.gen.GeneratePost(ctx, p.VoiceProfile, thread.Title, recentCtx)
	if err != nil {
		content = s.lines[s.randIntN(len(s.lines))]
		s.logger.Warn("post generation failed, using canned line",
			"room_id", roomID, "persona", p.Name, "error", err)
	}
	content = genai.Truncate(content, game.MaxPostLen)

	post, err := s.store.AppendPersonaPost(ctx, roomID, p.ID, p.LastPostSeq, thread.ID, content, now)
	if errors.Is(err, ErrStaleMarker) || errors.Is(err, ErrAuthorEliminated) || errors.Is(err, ErrRoundNotPlaying) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.broker.Publish(roomID, Event{
		Type:     "post_created",
		ThreadID: thread.ID,
		AuthorID: post.AuthorID,
	})
	return true, nil
}
