package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/nanashi-games/turingden/internal/game"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Turingden API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the Turingden social deduction game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/rooms
	createRoom, _ := r.NewOperationContext(http.MethodPost, "/api/rooms")
	createRoom.SetSummary("Create room")
	createRoom.SetDescription("Creates a game room and returns the host, detective, and spy invite URLs.")
	createRoom.AddReqStructure(CreateRoomRequest{})
	createRoom.AddRespStructure(CreateRoomResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	createRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createRoom)

	// POST /api/host/verify
	verifyHost, _ := r.NewOperationContext(http.MethodPost, "/api/host/verify")
	verifyHost.SetSummary("Verify host token")
	verifyHost.SetDescription("Resolves a host token to its room and public room state.")
	verifyHost.AddReqStructure(VerifyHostRequest{})
	verifyHost.AddRespStructure(VerifyHostResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	verifyHost.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(verifyHost)

	// POST /api/rooms/{roomID}/start
	startRound, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{roomID}/start")
	startRound.SetSummary("Start round")
	startRound.SetDescription("Starts the round, backfilling the persona roster first. Host token required.")
	startRound.AddReqStructure(StartRoundRequest{})
	startRound.AddRespStructure(StartRoundResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	startRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	startRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(startRound)

	// POST /api/rooms/{roomID}/join
	join, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{roomID}/join")
	join.SetSummary("Join as detective")
	join.SetDescription("Joins the room as a detective, or reconnects an existing session via Bearer token.")
	join.AddRespStructure(JoinResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	join.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	join.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(join)

	// POST /api/rooms/{roomID}/spy/verify
	verifySpy, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{roomID}/spy/verify")
	verifySpy.SetSummary("Redeem spy token")
	verifySpy.SetDescription("Redeems a spy invite token for a posting identity. Idempotent.")
	verifySpy.AddReqStructure(VerifySpyRequest{})
	verifySpy.AddRespStructure(VerifySpyResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	verifySpy.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(verifySpy)

	// POST /api/rooms/{roomID}/posts
	submitPost, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{roomID}/posts")
	submitPost.SetSummary("Submit post")
	submitPost.SetDescription("Writes a spy-authored post into a thread. Spy token required.")
	submitPost.AddReqStructure(SubmitPostRequest{})
	submitPost.AddRespStructure(PostItem{}, openapi.WithHTTPStatus(http.StatusOK))
	submitPost.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	submitPost.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	submitPost.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(submitPost)

	// POST /api/rooms/{roomID}/report
	report, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{roomID}/report")
	report.SetSummary("Report an identity")
	report.SetDescription("Files the detective's single accusation and eliminates the target. Requires Bearer token.")
	report.AddReqStructure(ReportRequest{})
	report.AddRespStructure(ReportResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	report.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	report.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	report.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(report)

	// POST /api/rooms/{roomID}/reveal
	reveal, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{roomID}/reveal")
	reveal.SetSummary("Reveal results")
	reveal.SetDescription("Ends the round and returns the result. Idempotent. Host token required.")
	reveal.AddReqStructure(RevealRequest{})
	reveal.AddRespStructure(game.RoundResult{}, openapi.WithHTTPStatus(http.StatusOK))
	reveal.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(reveal)

	// POST /api/rooms/{roomID}/tick
	tick, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{roomID}/tick")
	tick.SetSummary("Run scheduler tick")
	tick.SetDescription("Runs one crowd scheduler pass for the room. Same entry point as the background loop.")
	tick.AddRespStructure(TickResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	tick.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(tick)

	// GET /api/rooms/{roomID}/board
	board, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{roomID}/board")
	board.SetSummary("Board snapshot")
	board.SetDescription("Returns the public room state and thread list.")
	board.AddRespStructure(BoardResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	board.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(board)

	// GET /api/rooms/{roomID}/threads/{threadID}/posts
	threadPosts, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{roomID}/threads/{threadID}/posts")
	threadPosts.SetSummary("List thread posts")
	threadPosts.SetDescription("Returns a thread's posts oldest-first. Authorship provenance is never included.")
	threadPosts.AddRespStructure([]PostItem{}, openapi.WithHTTPStatus(http.StatusOK))
	threadPosts.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(threadPosts)

	// GET /api/rooms/{roomID}/events
	events, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{roomID}/events")
	events.SetSummary("SSE event stream")
	events.SetDescription("Server-Sent Events stream of room updates.")
	events.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(events)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
