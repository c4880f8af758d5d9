package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestTickRoomPostsForDuePersonas(t *testing.T) {
	gen := &fakeGenerator{post: "totally normal reply"}
	app, r := newTestApp(t, gen)
	roomID, hostToken, _ := createRoom(t, r, 1, 7)
	startRound(t, r, roomID, hostToken)

	// Everyone is due: zero first-post delay, clock just past round start.
	app.Scheduler.randFloat = func() float64 { return 0 }
	app.Scheduler.randIntN = func(n int) int { return 0 }
	app.Scheduler.now = func() time.Time { return time.Now().Add(time.Second) }

	posted, ended, err := app.Scheduler.TickRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if ended {
		t.Error("round should not have ended")
	}
	if posted != 3 {
		t.Errorf("expected 3 persona posts, got %d", posted)
	}

	threadID := getBoard(t, r, roomID).Threads[0].ID
	w := doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID+"/threads/"+threadID+"/posts", nil, "")
	posts := decode[[]PostItem](t, w)
	if len(posts) != 3 {
		t.Fatalf("expected 3 posts in thread, got %d", len(posts))
	}
	for i, p := range posts {
		if p.Seq != i+1 {
			t.Errorf("post %d: expected seq %d, got %d", i, i+1, p.Seq)
		}
		if p.Content != "totally normal reply" {
			t.Errorf("unexpected content %q", p.Content)
		}
	}

	// Personas just posted; nobody is due again until a full jittered gap.
	posted, _, err = app.Scheduler.TickRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if posted != 0 {
		t.Errorf("expected no posts on immediate second tick, got %d", posted)
	}
}

func TestTickRoomFallbackLine(t *testing.T) {
	gen := &fakeGenerator{postErr: errors.New("model unavailable")}
	app, r := newTestApp(t, gen)
	roomID, hostToken, _ := createRoom(t, r, 1, 7)
	startRound(t, r, roomID, hostToken)

	app.Scheduler.randFloat = func() float64 { return 0 }
	app.Scheduler.randIntN = func(n int) int { return 0 }
	app.Scheduler.now = func() time.Time { return time.Now().Add(time.Second) }

	posted, _, err := app.Scheduler.TickRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if posted != 3 {
		t.Fatalf("expected 3 posts despite generator failure, got %d", posted)
	}

	threadID := getBoard(t, r, roomID).Threads[0].ID
	w := doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID+"/threads/"+threadID+"/posts", nil, "")
	for _, p := range decode[[]PostItem](t, w) {
		if p.Content != policyV1.Lines[0] {
			t.Errorf("expected canned line %q, got %q", policyV1.Lines[0], p.Content)
		}
	}
}

func TestTickRoomEndsExpiredRound(t *testing.T) {
	app, r := newTestApp(t, nil)
	roomID, hostToken, _ := createRoom(t, r, 1, 7)
	startRound(t, r, roomID, hostToken)

	app.Scheduler.now = func() time.Time { return time.Now().Add(8 * time.Minute) }

	_, ended, err := app.Scheduler.TickRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !ended {
		t.Error("expired round should end on tick")
	}
	if board := getBoard(t, r, roomID); board.Room.Status != "revealed" {
		t.Errorf("expected revealed, got %q", board.Room.Status)
	}

	// A revealed room no longer appears in the playing set.
	ids, err := app.Store.PlayingRoomIDs(context.Background())
	if err != nil {
		t.Fatalf("playing rooms: %v", err)
	}
	for _, id := range ids {
		if id == roomID {
			t.Error("revealed room still listed as playing")
		}
	}
}

func TestTickRoomWaitingIsNoop(t *testing.T) {
	app, r := newTestApp(t, nil)
	roomID, _, _ := createRoom(t, r, 1, 7)

	posted, ended, err := app.Scheduler.TickRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if posted != 0 || ended {
		t.Errorf("waiting room tick should be a no-op, got posted=%d ended=%v", posted, ended)
	}
}

func TestTickEndpoint(t *testing.T) {
	app, r := newTestApp(t, &fakeGenerator{post: "hi"})
	roomID, hostToken, _ := createRoom(t, r, 1, 7)
	startRound(t, r, roomID, hostToken)

	app.Scheduler.randFloat = func() float64 { return 0 }
	app.Scheduler.randIntN = func(n int) int { return 0 }
	app.Scheduler.now = func() time.Time { return time.Now().Add(time.Second) }

	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/tick", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[TickResponse](t, w)
	if resp.Posted != 3 || resp.Ended {
		t.Errorf("unexpected tick response %+v", resp)
	}

	w = doJSON(t, r, http.MethodPost, "/api/rooms/nosuch/tick", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing room: expected 404, got %d", w.Code)
	}
}

func TestStaleMarkerIsNoop(t *testing.T) {
	app, r := newTestApp(t, nil)
	roomID, hostToken, _ := createRoom(t, r, 1, 7)
	startRound(t, r, roomID, hostToken)

	ctx := context.Background()
	personas, err := app.Store.Personas(ctx, roomID)
	if err != nil {
		t.Fatalf("personas: %v", err)
	}
	threadID := getBoard(t, r, roomID).Threads[0].ID
	p := personas[0]

	if _, err := app.Store.AppendPersonaPost(ctx, roomID, p.ID, p.LastPostSeq, threadID, "first", time.Now()); err != nil {
		t.Fatalf("append: %v", err)
	}
	// A second writer still holding the old marker loses.
	_, err = app.Store.AppendPersonaPost(ctx, roomID, p.ID, p.LastPostSeq, threadID, "duplicate", time.Now())
	if !errors.Is(err, ErrStaleMarker) {
		t.Fatalf("expected ErrStaleMarker, got %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID+"/threads/"+threadID+"/posts", nil, "")
	if posts := decode[[]PostItem](t, w); len(posts) != 1 {
		t.Errorf("expected exactly 1 post after duplicate trigger, got %d", len(posts))
	}
}
