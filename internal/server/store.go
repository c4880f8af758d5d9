package server

import (
	"context"
	"errors"
	"time"

	"github.com/nanashi-games/turingden/internal/game"
)

var ErrNotFound = errors.New("not found")

// Distinct failure conditions surfaced by the room transactions. Handlers map
// each to its own failure code.
var (
	ErrRoomNotWaiting   = errors.New("room is not waiting")
	ErrRoundNotPlaying  = errors.New("round is not playing")
	ErrAlreadyReported  = errors.New("report already filed")
	ErrTargetNotActive  = errors.New("target id is not active")
	ErrAuthorEliminated = errors.New("author is eliminated")
	ErrRosterFull       = errors.New("persona roster is full")

	// ErrStaleMarker means another trigger already advanced a persona's
	// last-post marker; the losing writer treats it as a no-op.
	ErrStaleMarker = errors.New("stale last-post marker")
)

var errNoSession = errors.New("no valid session")

// NewRoom carries everything created atomically with a room.
type NewRoom struct {
	Room          game.Room
	HostTokenHash string
	SpyTokens     []string
	Threads       []game.Thread
}

// Detective is an admitted human detective and its session token.
type Detective struct {
	ID           string
	SessionToken string
	JoinedAt     time.Time
}

// ReportOutcome is the room state right after a report transaction commits,
// used for the post-transaction termination check.
type ReportOutcome struct {
	SpyIDs         []string
	EliminatedIDs  []string
	ReportCount    int
	DetectiveCount int
}

type Store interface {
	CreateRoom(ctx context.Context, p NewRoom) error
	Room(ctx context.Context, roomID string) (game.Room, error)
	RoomIDByHostToken(ctx context.Context, hostToken string) (string, error)
	VerifyHostToken(ctx context.Context, roomID, hostToken string) error
	PlayingRoomIDs(ctx context.Context) ([]string, error)

	StartRound(ctx context.Context, roomID string, startedAt, endsAt time.Time) error
	FinalizeRoom(ctx context.Context, roomID string, now time.Time) (result game.RoundResult, newly bool, err error)

	AddPersona(ctx context.Context, roomID string, p game.Persona) error
	Personas(ctx context.Context, roomID string) ([]game.Persona, error)

	AdmitSpy(ctx context.Context, roomID, token, newAuthorID string) (authorID string, alreadyAssigned bool, err error)
	SpyAuthor(ctx context.Context, roomID, token string) (string, error)

	AddDetective(ctx context.Context, roomID string, d Detective) error
	DetectiveFromToken(ctx context.Context, roomID, token string) (Detective, error)
	SubmitReport(ctx context.Context, roomID, detectiveID, targetID string, now time.Time) (ReportOutcome, error)

	Threads(ctx context.Context, roomID string) ([]game.Thread, error)
	ThreadPosts(ctx context.Context, roomID, threadID string) ([]game.Post, error)
	RecentThreadPosts(ctx context.Context, roomID, threadID string, n int) ([]game.Post, error)
	AppendPost(ctx context.Context, roomID, threadID, authorID, content string, isHuman bool, now time.Time) (game.Post, error)
	AppendPersonaPost(ctx context.Context, roomID, personaID string, expectedSeq int, threadID, content string, now time.Time) (game.Post, error)
}
