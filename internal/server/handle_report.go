package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nanashi-games/turingden/internal/game"
)

type ReportRequest struct {
	TargetID string `json:"targetId"`
}

type ReportResponse struct {
	TargetID   string `json:"targetId"`
	RoundEnded bool   `json:"roundEnded"`
}

// handleReport files a detective's single accusation of the round and
// eliminates the target. The round ends early when every spy identity is
// eliminated or every detective has used their report.
func handleReport(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		token := bearerToken(r)
		if token == "" {
			writeError(w, codeUnauthenticated, "detective session token required")
			return
		}
		det, err := app.Store.DetectiveFromToken(r.Context(), roomID, token)
		if err != nil {
			writeError(w, codeUnauthenticated, "invalid session token")
			return
		}

		var req ReportRequest
		if err := readJSON(r, &req); err != nil || req.TargetID == "" {
			writeError(w, codeInvalidArgument, "targetId is required")
			return
		}

		out, err := app.Store.SubmitReport(r.Context(), roomID, det.ID, req.TargetID, time.Now())
		switch {
		case errors.Is(err, ErrRoundNotPlaying):
			writeError(w, codeFailedPrecondition, "round is not in progress")
			return
		case errors.Is(err, ErrAlreadyReported):
			writeError(w, codeAlreadyExists, "report already filed")
			return
		case errors.Is(err, ErrTargetNotActive):
			writeError(w, codeNotFound, "target id is not active")
			return
		case err != nil:
			writeError(w, codeInternal, "internal error")
			return
		}

		app.Logger.Info("id eliminated", "room_id", roomID, "target_id", req.TargetID)
		app.Broker.Publish(roomID, Event{Type: "id_eliminated", TargetID: req.TargetID})

		ended := game.AllSpiesEliminated(out.SpyIDs, out.EliminatedIDs) ||
			(out.DetectiveCount > 0 && out.ReportCount >= out.DetectiveCount)
		if ended {
			if _, err := app.Finalizer.Reveal(r.Context(), roomID); err != nil {
				app.Logger.Error("auto reveal failed", "room_id", roomID, "error", err)
			}
		}

		writeJSON(w, http.StatusOK, ReportResponse{TargetID: req.TargetID, RoundEnded: ended})
	}
}
