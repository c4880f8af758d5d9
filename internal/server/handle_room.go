package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nanashi-games/turingden/internal/game"
)

// hashCost is the bcrypt cost for host tokens. Tests lower it.
var hashCost = bcrypt.DefaultCost

type CreateRoomRequest struct {
	SpySlots     *int `json:"spySlots"`
	RoundMinutes *int `json:"roundMinutes"`
}

type CreateRoomResponse struct {
	RoomID       string   `json:"roomId"`
	HostURL      string   `json:"hostUrl"`
	DetectiveURL string   `json:"detectiveUrl"`
	SpyURLs      []string `json:"spyUrls"`
}

func seedThreads() []game.Thread {
	return []game.Thread{
		{ID: newID(), Title: "Random chat", Topic: "random", OpeningPost: "new thread, talk about whatever"},
		{ID: newID(), Title: "What did you eat today", Topic: "food", OpeningPost: "breakfast lunch dinner snacks, post it all"},
		{ID: newID(), Title: "Stuff I watched lately", Topic: "media", OpeningPost: "shows, movies, streams, drop your takes"},
	}
}

func handleCreateRoom(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, codeInvalidArgument, "invalid request body")
			return
		}

		spySlots := 2
		if req.SpySlots != nil {
			spySlots = *req.SpySlots
		}
		roundMinutes := game.DefaultRoundMinutes
		if req.RoundMinutes != nil {
			roundMinutes = *req.RoundMinutes
		}
		if spySlots < game.MinSpySlots || spySlots > game.MaxSpySlots {
			writeError(w, codeInvalidArgument,
				fmt.Sprintf("spySlots must be between %d and %d", game.MinSpySlots, game.MaxSpySlots))
			return
		}
		if roundMinutes < 1 {
			writeError(w, codeInvalidArgument, "roundMinutes must be at least 1")
			return
		}

		hostToken := uuid.NewString()
		hash, err := bcrypt.GenerateFromPassword([]byte(hostToken), hashCost)
		if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}

		roomID := randomID(6)
		spyTokens := make([]string, spySlots)
		for i := range spyTokens {
			spyTokens[i] = randomID(16)
		}

		err = app.Store.CreateRoom(r.Context(), NewRoom{
			Room: game.Room{
				ID:       roomID,
				Status:   game.StatusWaiting,
				Settings: game.Settings{SpySlots: spySlots, RoundMinutes: roundMinutes},
			},
			HostTokenHash: string(hash),
			SpyTokens:     spyTokens,
			Threads:       seedThreads(),
		})
		if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}

		app.Logger.Info("room created", "room_id", roomID,
			"spy_slots", spySlots, "round_minutes", roundMinutes)

		spyURLs := make([]string, 0, len(spyTokens))
		for _, tok := range spyTokens {
			spyURLs = append(spyURLs, fmt.Sprintf("%s/room/%s?spy=%s", app.BaseURL, roomID, tok))
		}
		writeJSON(w, http.StatusOK, CreateRoomResponse{
			RoomID:       roomID,
			HostURL:      fmt.Sprintf("%s/host/%s", app.BaseURL, hostToken),
			DetectiveURL: fmt.Sprintf("%s/room/%s", app.BaseURL, roomID),
			SpyURLs:      spyURLs,
		})
	}
}

type VerifyHostRequest struct {
	HostToken string `json:"hostToken"`
}

type VerifyHostResponse struct {
	RoomID string       `json:"roomId"`
	Room   RoomSnapshot `json:"room"`
}

func handleVerifyHost(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyHostRequest
		if err := readJSON(r, &req); err != nil || req.HostToken == "" {
			writeError(w, codeInvalidArgument, "hostToken is required")
			return
		}

		roomID, err := app.Store.RoomIDByHostToken(r.Context(), req.HostToken)
		if errors.Is(err, ErrNotFound) {
			writeError(w, codeNotFound, "no room for this host token")
			return
		}
		if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}

		room, err := app.Store.Room(r.Context(), roomID)
		if err != nil {
			writeError(w, codeInternal, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, VerifyHostResponse{RoomID: roomID, Room: snapshotRoom(room)})
	}
}
