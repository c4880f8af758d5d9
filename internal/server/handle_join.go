package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nanashi-games/turingden/internal/game"
)

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

type JoinResponse struct {
	DetectiveID string `json:"detectiveId"`
	Token       string `json:"token"`
	LateJoin    bool   `json:"lateJoin"`
	AIAdded     bool   `json:"aiAdded"`
}

// handleJoin admits a human detective. A Bearer token reconnects an existing
// session; otherwise a fresh session is created. Joins while the room is
// still waiting grow the persona roster by one so the crowd scales with the
// audience.
func handleJoin(app *App) http.HandlerFunc {
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

		if token := bearerToken(r); token != "" {
			det, err := app.Store.DetectiveFromToken(r.Context(), roomID, token)
			if err != nil {
				writeError(w, codeUnauthenticated, "invalid session token")
				return
			}
			writeJSON(w, http.StatusOK, JoinResponse{
				DetectiveID: det.ID,
				Token:       det.SessionToken,
				LateJoin:    room.Status != game.StatusWaiting,
			})
			return
		}

		det := Detective{
			ID:           uuid.NewString(),
			SessionToken: uuid.NewString(),
			JoinedAt:     time.Now(),
		}
		if err := app.Store.AddDetective(r.Context(), roomID, det); err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}

		aiAdded := false
		if room.Status == game.StatusWaiting {
			added, err := app.Pool.SpawnOne(r.Context(), roomID)
			if err != nil {
				app.Logger.Error("persona spawn on join failed", "room_id", roomID, "error", err)
			}
			aiAdded = added
		}

		writeJSON(w, http.StatusOK, JoinResponse{
			DetectiveID: det.ID,
			Token:       det.SessionToken,
			LateJoin:    room.Status != game.StatusWaiting,
			AIAdded:     aiAdded,
		})
	}
}

type VerifySpyRequest struct {
	Token string `json:"token"`
}

type VerifySpyResponse struct {
	AssignedAuthorID string `json:"assignedAuthorId"`
}

// handleVerifySpy redeems a spy invite token for a posting identity.
// Redemption is idempotent: re-presenting a used token returns the identity
// it is bound to, so a spy can reload mid-round.
func handleVerifySpy(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		var req VerifySpyRequest
		if err := readJSON(r, &req); err != nil || req.Token == "" {
			writeError(w, codeInvalidArgument, "token is required")
			return
		}

		authorID, alreadyAssigned, err := app.Store.AdmitSpy(r.Context(), roomID, req.Token, randomID(8))
		if errors.Is(err, ErrNotFound) {
			writeError(w, codeNotFound, "invalid spy token")
			return
		}
		if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}

		if !alreadyAssigned {
			app.Logger.Info("spy admitted", "room_id", roomID)
		}
		writeJSON(w, http.StatusOK, VerifySpyResponse{AssignedAuthorID: authorID})
	}
}
