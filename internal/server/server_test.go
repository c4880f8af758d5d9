package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nanashi-games/turingden/internal/database"
	"github.com/nanashi-games/turingden/internal/game"
	"github.com/nanashi-games/turingden/internal/genai"
	"github.com/nanashi-games/turingden/internal/migrations"
)

func TestMain(m *testing.M) {
	hashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// fakeGenerator is a canned genai.Generator for tests.
type fakeGenerator struct {
	profile    genai.Profile
	profileErr error
	post       string
	postErr    error
}

func (f *fakeGenerator) GeneratePersona(context.Context, game.BigFive) (genai.Profile, error) {
	if f.profileErr != nil {
		return genai.Profile{}, f.profileErr
	}
	if f.profile.Name == "" {
		return genai.Profile{Name: "test regular", VoiceProfile: "short and flat"}, nil
	}
	return f.profile, nil
}

func (f *fakeGenerator) GeneratePost(context.Context, string, string, []genai.RecentPost) (string, error) {
	if f.postErr != nil {
		return "", f.postErr
	}
	if f.post == "" {
		return "generated reply", nil
	}
	return f.post, nil
}

func newTestApp(t *testing.T, gen genai.Generator) (*App, *chi.Mux) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	if gen == nil {
		gen = &fakeGenerator{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := NewApp(NewDocStore(db), gen, logger, Options{PolicyVersion: "v1"})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	r := chi.NewRouter()
	addRoutes(r, logger, app, db)
	return app, r
}

// doJSON performs a request with an optional JSON body and Bearer token.
func doJSON(t *testing.T, r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// createRoom makes a room and returns its ID, the host token, and the spy tokens.
func createRoom(t *testing.T, r http.Handler, spySlots, roundMinutes int) (string, string, []string) {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/rooms",
		CreateRoomRequest{SpySlots: &spySlots, RoundMinutes: &roundMinutes}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("create room: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[CreateRoomResponse](t, w)

	hostToken := resp.HostURL[strings.LastIndex(resp.HostURL, "/")+1:]
	spyTokens := make([]string, 0, len(resp.SpyURLs))
	for _, u := range resp.SpyURLs {
		spyTokens = append(spyTokens, u[strings.LastIndex(u, "spy=")+4:])
	}
	return resp.RoomID, hostToken, spyTokens
}

func getBoard(t *testing.T, r http.Handler, roomID string) BoardResponse {
	t.Helper()
	w := doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID+"/board", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("board: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	return decode[BoardResponse](t, w)
}
