package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nanashi-games/turingden/internal/game"
)

type StartRoundRequest struct {
	HostToken string `json:"hostToken"`
}

type StartRoundResponse struct {
	RoundEndsAt time.Time `json:"roundEndsAt"`
}

// requireHost checks the host token against the room. Both the missing room
// and the wrong token come back as permission denied so the endpoint does not
// leak which room IDs exist.
func requireHost(app *App, w http.ResponseWriter, r *http.Request, roomID, hostToken string) bool {
	if hostToken == "" {
		writeError(w, codePermissionDenied, "hostToken is required")
		return false
	}
	err := app.Store.VerifyHostToken(r.Context(), roomID, hostToken)
	if err != nil {
		writeError(w, codePermissionDenied, "host token does not match this room")
		return false
	}
	return true
}

func handleStartRound(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		var req StartRoundRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, codeInvalidArgument, "invalid request body")
			return
		}
		if !requireHost(app, w, r, roomID, req.HostToken) {
			return
		}

		room, err := app.Store.Room(r.Context(), roomID)
		if err != nil {
			writeError(w, codeNotFound, "room not found")
			return
		}
		if room.Status != game.StatusWaiting {
			writeError(w, codeFailedPrecondition, "round already started")
			return
		}

		if err := app.Pool.EnsureMinimum(r.Context(), roomID, game.MinRoster); err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}

		startedAt := time.Now()
		endsAt := startedAt.Add(time.Duration(room.Settings.RoundMinutes) * time.Minute)
		err = app.Store.StartRound(r.Context(), roomID, startedAt, endsAt)
		if errors.Is(err, ErrRoomNotWaiting) {
			writeError(w, codeFailedPrecondition, "round already started")
			return
		}
		if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}

		app.Logger.Info("round started", "room_id", roomID, "ends_at", endsAt)
		app.Broker.Publish(roomID, Event{Type: "round_started"})
		writeJSON(w, http.StatusOK, StartRoundResponse{RoundEndsAt: endsAt.UTC()})
	}
}

type RevealRequest struct {
	HostToken string `json:"hostToken"`
}

func handleReveal(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		var req RevealRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, codeInvalidArgument, "invalid request body")
			return
		}
		if !requireHost(app, w, r, roomID, req.HostToken) {
			return
		}

		result, err := app.Finalizer.Reveal(r.Context(), roomID)
		if errors.Is(err, ErrRoundNotPlaying) {
			writeError(w, codeFailedPrecondition, "round has not started")
			return
		}
		if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

type TickResponse struct {
	Posted int  `json:"posted"`
	Ended  bool `json:"ended"`
}

// handleTick runs one scheduler pass for a room. It is the same entry point
// the background loop uses, exposed so deployments without a resident
// process can drive the crowd from an external timer.
func handleTick(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		posted, ended, err := app.Scheduler.TickRoom(r.Context(), roomID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, codeNotFound, "room not found")
			return
		}
		if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, TickResponse{Posted: posted, Ended: ended})
	}
}
