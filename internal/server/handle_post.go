package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nanashi-games/turingden/internal/game"
)

// RoomSnapshot is the public room view: no spy identities, no tokens, no
// voice profiles.
type RoomSnapshot struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	Settings       game.Settings     `json:"settings"`
	DetectiveCount int               `json:"detectiveCount"`
	ActiveIDs      []string          `json:"activeIds"`
	EliminatedIDs  []string          `json:"eliminatedIds"`
	RoundStartedAt *time.Time        `json:"roundStartedAt,omitempty"`
	RoundEndsAt    *time.Time        `json:"roundEndsAt,omitempty"`
	Result         *game.RoundResult `json:"result,omitempty"`
}

func snapshotRoom(room game.Room) RoomSnapshot {
	return RoomSnapshot{
		ID:             room.ID,
		Status:         string(room.Status),
		Settings:       room.Settings,
		DetectiveCount: room.DetectiveCount,
		ActiveIDs:      room.ActiveIDs,
		EliminatedIDs:  room.EliminatedIDs,
		RoundStartedAt: room.RoundStartedAt,
		RoundEndsAt:    room.RoundEndsAt,
		Result:         room.Result,
	}
}

type ThreadItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Topic       string `json:"topic"`
	OpeningPost string `json:"openingPost"`
	PostCount   int    `json:"postCount"`
}

// PostItem never carries a provenance marker; whether the author was human
// stays hidden until the reveal.
type PostItem struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"threadId"`
	Seq        int       `json:"seq"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

func postItem(p game.Post) PostItem {
	return PostItem{
		ID:         p.ID,
		ThreadID:   p.ThreadID,
		Seq:        p.Seq,
		AuthorID:   p.AuthorID,
		AuthorName: p.AuthorName,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt,
	}
}

type BoardResponse struct {
	Room    RoomSnapshot `json:"room"`
	Threads []ThreadItem `json:"threads"`
}

func handleBoard(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		room, err := app.Store.Room(r.Context(), roomID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, codeNotFound, "room not found")
			return
		}
		if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}

		threads, err := app.Store.Threads(r.Context(), roomID)
		if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}
		items := make([]ThreadItem, 0, len(threads))
		for _, t := range threads {
			items = append(items, ThreadItem{
				ID:          t.ID,
				Title:       t.Title,
				Topic:       t.Topic,
				OpeningPost: t.OpeningPost,
				PostCount:   t.PostCount,
			})
		}
		writeJSON(w, http.StatusOK, BoardResponse{Room: snapshotRoom(room), Threads: items})
	}
}

func handleThreadPosts(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		threadID := chi.URLParam(r, "threadID")

		if _, err := app.Store.Room(r.Context(), roomID); errors.Is(err, ErrNotFound) {
			writeError(w, codeNotFound, "room not found")
			return
		} else if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}

		posts, err := app.Store.ThreadPosts(r.Context(), roomID, threadID)
		if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}
		items := make([]PostItem, 0, len(posts))
		for _, p := range posts {
			items = append(items, postItem(p))
		}
		writeJSON(w, http.StatusOK, items)
	}
}

type SubmitPostRequest struct {
	ThreadID string `json:"threadId"`
	Content  string `json:"content"`
	SpyToken string `json:"spyToken"`
}

// handleSubmitPost writes a spy-authored post. The spy proves identity with
// the redeemed invite token on every request.
func handleSubmitPost(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		var req SubmitPostRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, codeInvalidArgument, "invalid request body")
			return
		}
		req.Content = strings.TrimSpace(req.Content)
		if req.ThreadID == "" || req.Content == "" {
			writeError(w, codeInvalidArgument, "threadId and content are required")
			return
		}
		if len([]rune(req.Content)) > game.MaxPostLen {
			writeError(w, codeInvalidArgument, "content exceeds 100 characters")
			return
		}

		authorID, err := app.Store.SpyAuthor(r.Context(), roomID, req.SpyToken)
		if err != nil {
			writeError(w, codePermissionDenied, "spy token is not valid for this room")
			return
		}

		post, err := app.Store.AppendPost(r.Context(), roomID, req.ThreadID, authorID, req.Content, true, time.Now())
		switch {
		case errors.Is(err, ErrRoundNotPlaying):
			writeError(w, codeFailedPrecondition, "round is not in progress")
			return
		case errors.Is(err, ErrAuthorEliminated):
			writeError(w, codeFailedPrecondition, "this identity has been eliminated")
			return
		case errors.Is(err, ErrNotFound):
			writeError(w, codeNotFound, "thread not found")
			return
		case err != nil:
			writeError(w, codeInternal, "internal error")
			return
		}

		app.Broker.Publish(roomID, Event{
			Type:     "post_created",
			ThreadID: req.ThreadID,
			AuthorID: post.AuthorID,
		})
		writeJSON(w, http.StatusOK, postItem(post))
	}
}
