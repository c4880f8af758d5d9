package server

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, app *App, db *sql.DB) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Turingden API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, db))

	r.Post("/api/rooms", handleCreateRoom(app))
	r.Post("/api/host/verify", handleVerifyHost(app))

	r.Route("/api/rooms/{roomID}", func(r chi.Router) {
		r.Post("/start", handleStartRound(app))
		r.Post("/join", handleJoin(app))
		r.Post("/spy/verify", handleVerifySpy(app))
		r.Post("/posts", handleSubmitPost(app))
		r.Post("/report", handleReport(app))
		r.Post("/reveal", handleReveal(app))
		r.Post("/tick", handleTick(app))
		r.Get("/board", handleBoard(app))
		r.Get("/threads/{threadID}/posts", handleThreadPosts(app))
		r.Get("/events", handleEvents(app))
	})
}
