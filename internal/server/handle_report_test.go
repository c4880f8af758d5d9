package server

import (
	"net/http"
	"testing"
)

func joinDetective(t *testing.T, r http.Handler, roomID string) JoinResponse {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", w.Code)
	}
	return decode[JoinResponse](t, w)
}

func TestReportAllSpiesEndsRound(t *testing.T) {
	_, r := newTestApp(t, nil)
	roomID, hostToken, spyToken, spyAuthor := spyInRoom(t, r)
	det := joinDetective(t, r, roomID)
	startRound(t, r, roomID, hostToken)

	// The spy posts, so reporting them counts as spotting a human.
	threadID := getBoard(t, r, roomID).Threads[0].ID
	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/posts",
		SubmitPostRequest{ThreadID: threadID, Content: "just lurking", SpyToken: spyToken}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("spy post: expected 200, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/report",
		ReportRequest{TargetID: spyAuthor}, det.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[ReportResponse](t, w)
	if !resp.RoundEnded {
		t.Error("eliminating the only spy should end the round")
	}

	board := getBoard(t, r, roomID)
	if board.Room.Status != "revealed" {
		t.Fatalf("expected revealed, got %q", board.Room.Status)
	}
	if board.Room.Result == nil {
		t.Fatal("missing round result")
	}
	if got := string(board.Room.Result.Winner); got != "detective" {
		t.Errorf("expected detective win, got %q", got)
	}
	// One report, and it hit the human: detectives read the room perfectly.
	if board.Room.Result.TuringScore != 0 {
		t.Errorf("expected turing score 0, got %d", board.Room.Result.TuringScore)
	}
}

func TestReportFlow(t *testing.T) {
	_, r := newTestApp(t, nil)
	roomID, hostToken, _, spyAuthor := spyInRoom(t, r)
	det1 := joinDetective(t, r, roomID)
	det2 := joinDetective(t, r, roomID)
	startRound(t, r, roomID, hostToken)

	// Pick persona targets: active ids that are not the spy.
	var personas []string
	for _, id := range getBoard(t, r, roomID).Room.ActiveIDs {
		if id != spyAuthor {
			personas = append(personas, id)
		}
	}
	if len(personas) < 2 {
		t.Fatalf("expected at least 2 personas, got %d", len(personas))
	}

	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/report",
		ReportRequest{TargetID: personas[0]}, det1.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("first report: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if decode[ReportResponse](t, w).RoundEnded {
		t.Error("round should continue while reports and spies remain")
	}

	// One report per detective per round.
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/report",
		ReportRequest{TargetID: personas[1]}, det1.Token)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate report: expected 409, got %d", w.Code)
	}

	// Already-eliminated target.
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/report",
		ReportRequest{TargetID: personas[0]}, det2.Token)
	if w.Code != http.StatusNotFound {
		t.Errorf("eliminated target: expected 404, got %d", w.Code)
	}

	board := getBoard(t, r, roomID)
	for _, active := range board.Room.ActiveIDs {
		for _, eliminated := range board.Room.EliminatedIDs {
			if active == eliminated {
				t.Errorf("id %s is both active and eliminated", active)
			}
		}
	}

	// Last detective uses their report: every detective has reported, round ends.
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/report",
		ReportRequest{TargetID: personas[1]}, det2.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("second detective report: expected 200, got %d", w.Code)
	}
	if !decode[ReportResponse](t, w).RoundEnded {
		t.Error("all detectives reporting should end the round")
	}

	board = getBoard(t, r, roomID)
	if board.Room.Status != "revealed" {
		t.Fatalf("expected revealed, got %q", board.Room.Status)
	}
	// The spy survived, so spies win; both reports hit personas, so the crowd
	// passed perfectly.
	if got := string(board.Room.Result.Winner); got != "spy" {
		t.Errorf("expected spy win, got %q", got)
	}
	if board.Room.Result.TuringScore != 100 {
		t.Errorf("expected turing score 100, got %d", board.Room.Result.TuringScore)
	}
}

func TestReportRequiresSession(t *testing.T) {
	_, r := newTestApp(t, nil)
	roomID, hostToken, _, spyAuthor := spyInRoom(t, r)
	startRound(t, r, roomID, hostToken)

	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/report",
		ReportRequest{TargetID: spyAuthor}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no bearer: expected 401, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/report",
		ReportRequest{TargetID: spyAuthor}, "fake-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad bearer: expected 401, got %d", w.Code)
	}
}

func TestReportBeforeStart(t *testing.T) {
	_, r := newTestApp(t, nil)
	roomID, _, _, spyAuthor := spyInRoom(t, r)
	det := joinDetective(t, r, roomID)

	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/report",
		ReportRequest{TargetID: spyAuthor}, det.Token)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 before start, got %d", w.Code)
	}
}
