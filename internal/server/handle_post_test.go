package server

import (
	"net/http"
	"strings"
	"testing"
)

// spyInRoom creates a room with one spy slot, redeems the spy token, and
// returns the room, host token, spy token, and assigned author id.
func spyInRoom(t *testing.T, r http.Handler) (roomID, hostToken, spyToken, authorID string) {
	t.Helper()
	roomID, hostToken, spyTokens := createRoom(t, r, 1, 7)
	spyToken = spyTokens[0]

	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/spy/verify",
		VerifySpyRequest{Token: spyToken}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("spy verify: expected 200, got %d", w.Code)
	}
	authorID = decode[VerifySpyResponse](t, w).AssignedAuthorID
	return roomID, hostToken, spyToken, authorID
}

func startRound(t *testing.T, r http.Handler, roomID, hostToken string) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/start",
		StartRoundRequest{HostToken: hostToken}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("start round: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitPost(t *testing.T) {
	_, r := newTestApp(t, nil)
	roomID, hostToken, spyToken, authorID := spyInRoom(t, r)
	startRound(t, r, roomID, hostToken)

	threadID := getBoard(t, r, roomID).Threads[0].ID
	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/posts",
		SubmitPostRequest{ThreadID: threadID, Content: "hey what's everyone eating", SpyToken: spyToken}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	post := decode[PostItem](t, w)
	if post.Seq != 1 {
		t.Errorf("expected seq 1, got %d", post.Seq)
	}
	if post.AuthorID != authorID {
		t.Errorf("expected author %s, got %s", authorID, post.AuthorID)
	}
	if post.AuthorName != "Anonymous" {
		t.Errorf("expected anonymous display name, got %q", post.AuthorName)
	}

	// Counter visible on the board.
	board := getBoard(t, r, roomID)
	for _, th := range board.Threads {
		if th.ID == threadID && th.PostCount != 1 {
			t.Errorf("expected post count 1, got %d", th.PostCount)
		}
	}

	// Listing returns the post without any authorship provenance.
	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID+"/threads/"+threadID+"/posts", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list posts: expected 200, got %d", w.Code)
	}
	if body := w.Body.String(); strings.Contains(body, "isHuman") || strings.Contains(body, "is_human") {
		t.Errorf("post listing leaks provenance: %s", body)
	}
	posts := decode[[]PostItem](t, w)
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
}

func TestSubmitPostValidation(t *testing.T) {
	_, r := newTestApp(t, nil)
	roomID, hostToken, spyToken, _ := spyInRoom(t, r)

	threadID := getBoard(t, r, roomID).Threads[0].ID

	// Round not started yet.
	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/posts",
		SubmitPostRequest{ThreadID: threadID, Content: "too early", SpyToken: spyToken}, "")
	if w.Code != http.StatusConflict {
		t.Errorf("before start: expected 409, got %d", w.Code)
	}

	startRound(t, r, roomID, hostToken)

	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/posts",
		SubmitPostRequest{ThreadID: threadID, Content: "   ", SpyToken: spyToken}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank content: expected 400, got %d", w.Code)
	}

	long := strings.Repeat("x", 101)
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/posts",
		SubmitPostRequest{ThreadID: threadID, Content: long, SpyToken: spyToken}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("long content: expected 400, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/posts",
		SubmitPostRequest{ThreadID: threadID, Content: "hello", SpyToken: "wrong"}, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("wrong spy token: expected 403, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/posts",
		SubmitPostRequest{ThreadID: "no-thread", Content: "hello", SpyToken: spyToken}, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("bad thread: expected 404, got %d", w.Code)
	}
}
