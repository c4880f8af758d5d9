package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nanashi-games/turingden/internal/game"
)

// Document types stored as JSONB in the rooms table. The room document is the
// transactional unit: everything that must change together in one game
// session lives inside it. Posts are append-heavy and queried by author and
// thread, so they get their own table.

type roomDoc struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	Settings       game.Settings  `json:"settings"`
	DetectiveCount int            `json:"detectiveCount"`
	ActiveIDs      []string       `json:"activeIds"`
	EliminatedIDs  []string       `json:"eliminatedIds"`
	CreatedAt      string         `json:"createdAt"`
	RoundStartedAt *string        `json:"roundStartedAt"`
	RoundEndsAt    *string        `json:"roundEndsAt"`
	Result         *resultDoc     `json:"result"`
	HostTokenHash  string         `json:"hostTokenHash"`
	SpyIDs         []string       `json:"spyIds"`
	SpyTokens      []spyTokenDoc  `json:"spyTokens"`
	Personas       []personaDoc   `json:"personas"`
	Threads        []threadDoc    `json:"threads"`
	Detectives     []detectiveDoc `json:"detectives"`
	Reports        []reportDoc    `json:"reports"`
}

type resultDoc struct {
	Winner      string `json:"winner"`
	TuringScore int    `json:"turingScore"`
}

type spyTokenDoc struct {
	Token            string `json:"token"`
	AssignedAuthorID string `json:"assignedAuthorId"`
	Used             bool   `json:"used"`
}

type personaDoc struct {
	ID            string       `json:"id"`
	BigFive       game.BigFive `json:"bigFive"`
	Name          string       `json:"name"`
	VoiceProfile  string       `json:"voiceProfile"`
	PostFreqSecs  int          `json:"postFrequency"`
	AuthorID      string       `json:"assignedAuthorId"`
	Eliminated    bool         `json:"eliminated"`
	LastPostSeq   int          `json:"lastPostSeq"`
	LastPostAt    *string      `json:"lastPostAt"`
}

type threadDoc struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Topic       string `json:"topic"`
	OpeningPost string `json:"openingPost"`
	PostCount   int    `json:"postCount"`
}

type detectiveDoc struct {
	ID           string `json:"id"`
	SessionToken string `json:"sessionToken"`
	JoinedAt     string `json:"joinedAt"`
}

type reportDoc struct {
	DetectiveID string `json:"detectiveId"`
	TargetID    string `json:"targetId"`
	ReportedAt  string `json:"reportedAt"`
	IsCorrect   *bool  `json:"isCorrect"`
}

type postDoc struct {
	ID         string `json:"id"`
	ThreadID   string `json:"threadId"`
	Seq        int    `json:"seq"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt"`
}

// Every post carries the same display name; identities are told apart only by
// their opaque author IDs.
const anonymousName = "Anonymous"

// DocStore implements Store on per-model tables with JSONB data columns.
type DocStore struct {
	db *sql.DB
}

func NewDocStore(db *sql.DB) *DocStore {
	return &DocStore{db: db}
}

func newID() string {
	return randomID(16)
}

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomID returns n base62 characters from crypto/rand.
func randomID(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	for i, v := range b {
		b[i] = idAlphabet[int(v)%len(idAlphabet)]
	}
	return string(b)
}

func nowUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func parseTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil
	}
	return &t
}

func (s *DocStore) getRoom(ctx context.Context, roomID string) (roomDoc, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM rooms WHERE id = ?`, roomID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return roomDoc{}, ErrNotFound
	}
	if err != nil {
		return roomDoc{}, err
	}
	var doc roomDoc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return roomDoc{}, err
	}
	return doc, nil
}

func putRoomTx(ctx context.Context, tx *sql.Tx, doc roomDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE rooms SET status = ?, data = jsonb(?) WHERE id = ?`,
		doc.Status, string(data), doc.ID,
	)
	return err
}

// modifyRoom loads a room, applies fn, and saves it in one transaction.
func (s *DocStore) modifyRoom(ctx context.Context, roomID string, fn func(*roomDoc) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	doc, err := getRoomTx(ctx, tx, roomID)
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	if err := putRoomTx(ctx, tx, doc); err != nil {
		return err
	}
	return tx.Commit()
}

func getRoomTx(ctx context.Context, tx *sql.Tx, roomID string) (roomDoc, error) {
	var data string
	err := tx.QueryRowContext(ctx,
		`SELECT json(data) FROM rooms WHERE id = ?`, roomID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return roomDoc{}, ErrNotFound
	}
	if err != nil {
		return roomDoc{}, err
	}
	var doc roomDoc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return roomDoc{}, err
	}
	return doc, nil
}

// Rooms

func (s *DocStore) CreateRoom(ctx context.Context, p NewRoom) error {
	doc := roomDoc{
		ID:             p.Room.ID,
		Status:         string(p.Room.Status),
		Settings:       p.Room.Settings,
		ActiveIDs:      []string{},
		EliminatedIDs:  []string{},
		CreatedAt:      nowUTC(p.Room.CreatedAt),
		HostTokenHash:  p.HostTokenHash,
		SpyIDs:         []string{},
		SpyTokens:      make([]spyTokenDoc, 0, len(p.SpyTokens)),
		Personas:       []personaDoc{},
		Threads:        make([]threadDoc, 0, len(p.Threads)),
		Detectives:     []detectiveDoc{},
		Reports:        []reportDoc{},
	}
	for _, tok := range p.SpyTokens {
		doc.SpyTokens = append(doc.SpyTokens, spyTokenDoc{Token: tok})
	}
	for _, t := range p.Threads {
		doc.Threads = append(doc.Threads, threadDoc{
			ID:          t.ID,
			Title:       t.Title,
			Topic:       t.Topic,
			OpeningPost: t.OpeningPost,
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, status, data) VALUES (?, ?, jsonb(?))`,
		doc.ID, doc.Status, string(data),
	)
	return err
}

func (s *DocStore) Room(ctx context.Context, roomID string) (game.Room, error) {
	doc, err := s.getRoom(ctx, roomID)
	if err != nil {
		return game.Room{}, err
	}
	return publicRoom(doc), nil
}

func publicRoom(doc roomDoc) game.Room {
	r := game.Room{
		ID:             doc.ID,
		Status:         game.RoomStatus(doc.Status),
		Settings:       doc.Settings,
		DetectiveCount: doc.DetectiveCount,
		ActiveIDs:      append([]string{}, doc.ActiveIDs...),
		EliminatedIDs:  append([]string{}, doc.EliminatedIDs...),
		RoundStartedAt: parseTime(doc.RoundStartedAt),
		RoundEndsAt:    parseTime(doc.RoundEndsAt),
	}
	if t := parseTime(&doc.CreatedAt); t != nil {
		r.CreatedAt = *t
	}
	if doc.Result != nil {
		r.Result = &game.RoundResult{
			Winner:      game.Winner(doc.Result.Winner),
			TuringScore: doc.Result.TuringScore,
		}
	}
	return r
}

// RoomIDByHostToken scans rooms comparing the presented token against each
// stored bcrypt hash. Rooms are short-lived and few, so the scan is fine.
func (s *DocStore) RoomIDByHostToken(ctx context.Context, hostToken string) (string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, json(data) FROM rooms`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	type candidate struct {
		id   string
		hash string
	}
	var candidates []candidate
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return "", err
		}
		var doc roomDoc
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return "", err
		}
		candidates = append(candidates, candidate{id: id, hash: doc.HostTokenHash})
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	for _, c := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(c.hash), []byte(hostToken)) == nil {
			return c.id, nil
		}
	}
	return "", ErrNotFound
}

func (s *DocStore) VerifyHostToken(ctx context.Context, roomID, hostToken string) error {
	doc, err := s.getRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(doc.HostTokenHash), []byte(hostToken)) != nil {
		return errNoSession
	}
	return nil
}

func (s *DocStore) PlayingRoomIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM rooms WHERE status = ?`, string(game.StatusPlaying),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Round lifecycle

func (s *DocStore) StartRound(ctx context.Context, roomID string, startedAt, endsAt time.Time) error {
	started := nowUTC(startedAt)
	ends := nowUTC(endsAt)
	return s.modifyRoom(ctx, roomID, func(doc *roomDoc) error {
		if doc.Status != string(game.StatusWaiting) {
			return ErrRoomNotWaiting
		}
		doc.Status = string(game.StatusPlaying)
		doc.RoundStartedAt = &started
		doc.RoundEndsAt = &ends
		return nil
	})
}

// FinalizeRoom computes the round result and flips the room to revealed in
// one transaction. The check-and-set on (status, result) makes every caller
// after the first observe the stored result unchanged.
func (s *DocStore) FinalizeRoom(ctx context.Context, roomID string, now time.Time) (game.RoundResult, bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return game.RoundResult{}, false, err
	}
	defer tx.Rollback()

	doc, err := getRoomTx(ctx, tx, roomID)
	if err != nil {
		return game.RoundResult{}, false, err
	}

	if doc.Status == string(game.StatusRevealed) && doc.Result != nil {
		return game.RoundResult{
			Winner:      game.Winner(doc.Result.Winner),
			TuringScore: doc.Result.TuringScore,
		}, false, nil
	}
	if doc.Status == string(game.StatusWaiting) {
		return game.RoundResult{}, false, ErrRoundNotPlaying
	}

	// Provenance: which identities authored human posts. Materialize before
	// any writes — SQLite dislikes concurrent cursors on one connection.
	rows, err := tx.QueryContext(ctx,
		`SELECT author_id, is_human FROM posts WHERE room_id = ?`, roomID,
	)
	if err != nil {
		return game.RoundResult{}, false, err
	}
	authorIsHuman := map[string]bool{}
	for rows.Next() {
		var authorID string
		var isHuman int
		if err := rows.Scan(&authorID, &isHuman); err != nil {
			rows.Close()
			return game.RoundResult{}, false, err
		}
		authorIsHuman[authorID] = authorIsHuman[authorID] || isHuman == 1
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return game.RoundResult{}, false, err
	}

	correct, total := 0, 0
	for i := range doc.Reports {
		isCorrect := authorIsHuman[doc.Reports[i].TargetID]
		doc.Reports[i].IsCorrect = &isCorrect
		if isCorrect {
			correct++
		}
		total++
	}

	result := game.RoundResult{
		Winner:      game.DecideWinner(doc.SpyIDs, doc.EliminatedIDs),
		TuringScore: game.TuringScore(correct, total),
	}
	doc.Status = string(game.StatusRevealed)
	doc.Result = &resultDoc{Winner: string(result.Winner), TuringScore: result.TuringScore}

	if err := putRoomTx(ctx, tx, doc); err != nil {
		return game.RoundResult{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return game.RoundResult{}, false, err
	}
	return result, true, nil
}

// Personas

func (s *DocStore) AddPersona(ctx context.Context, roomID string, p game.Persona) error {
	return s.modifyRoom(ctx, roomID, func(doc *roomDoc) error {
		if len(doc.Personas) >= game.MaxRoster {
			return ErrRosterFull
		}
		doc.Personas = append(doc.Personas, personaDoc{
			ID:           p.ID,
			BigFive:      p.BigFive,
			Name:         p.Name,
			VoiceProfile: p.VoiceProfile,
			PostFreqSecs: int(p.PostFrequency / time.Second),
			AuthorID:     p.AuthorID,
		})
		doc.ActiveIDs = append(doc.ActiveIDs, p.AuthorID)
		return nil
	})
}

func (s *DocStore) Personas(ctx context.Context, roomID string) ([]game.Persona, error) {
	doc, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	personas := make([]game.Persona, 0, len(doc.Personas))
	for _, p := range doc.Personas {
		personas = append(personas, game.Persona{
			ID:            p.ID,
			BigFive:       p.BigFive,
			Name:          p.Name,
			VoiceProfile:  p.VoiceProfile,
			PostFrequency: time.Duration(p.PostFreqSecs) * time.Second,
			AuthorID:      p.AuthorID,
			Eliminated:    p.Eliminated,
			LastPostSeq:   p.LastPostSeq,
			LastPostAt:    parseTime(p.LastPostAt),
		})
	}
	return personas, nil
}

// Spies and detectives

// AdmitSpy redeems a spy token. Redemption is idempotent: a used token
// returns the identity it was bound to the first time.
func (s *DocStore) AdmitSpy(ctx context.Context, roomID, token, newAuthorID string) (string, bool, error) {
	var authorID string
	var alreadyAssigned bool
	err := s.modifyRoom(ctx, roomID, func(doc *roomDoc) error {
		for i := range doc.SpyTokens {
			if doc.SpyTokens[i].Token != token {
				continue
			}
			if doc.SpyTokens[i].Used {
				authorID = doc.SpyTokens[i].AssignedAuthorID
				alreadyAssigned = true
				return nil
			}
			doc.SpyTokens[i].Used = true
			doc.SpyTokens[i].AssignedAuthorID = newAuthorID
			doc.ActiveIDs = append(doc.ActiveIDs, newAuthorID)
			doc.SpyIDs = append(doc.SpyIDs, newAuthorID)
			authorID = newAuthorID
			return nil
		}
		return ErrNotFound
	})
	if err != nil {
		return "", false, err
	}
	return authorID, alreadyAssigned, nil
}

// SpyAuthor resolves a redeemed spy token to its identity.
func (s *DocStore) SpyAuthor(ctx context.Context, roomID, token string) (string, error) {
	doc, err := s.getRoom(ctx, roomID)
	if err != nil {
		return "", err
	}
	for _, t := range doc.SpyTokens {
		if t.Token == token && t.Used {
			return t.AssignedAuthorID, nil
		}
	}
	return "", ErrNotFound
}

func (s *DocStore) AddDetective(ctx context.Context, roomID string, d Detective) error {
	return s.modifyRoom(ctx, roomID, func(doc *roomDoc) error {
		doc.Detectives = append(doc.Detectives, detectiveDoc{
			ID:           d.ID,
			SessionToken: d.SessionToken,
			JoinedAt:     nowUTC(d.JoinedAt),
		})
		doc.DetectiveCount++
		return nil
	})
}

func (s *DocStore) DetectiveFromToken(ctx context.Context, roomID, token string) (Detective, error) {
	doc, err := s.getRoom(ctx, roomID)
	if err != nil {
		return Detective{}, err
	}
	for _, d := range doc.Detectives {
		if d.SessionToken == token {
			det := Detective{ID: d.ID, SessionToken: d.SessionToken}
			if t := parseTime(&d.JoinedAt); t != nil {
				det.JoinedAt = *t
			}
			return det, nil
		}
	}
	return Detective{}, errNoSession
}

// SubmitReport is the elimination transaction: it validates, inserts the
// report, and moves the target from active to eliminated, all or nothing.
// Two concurrent reports on the same target race on the row transaction; the
// loser fails its precondition.
func (s *DocStore) SubmitReport(ctx context.Context, roomID, detectiveID, targetID string, now time.Time) (ReportOutcome, error) {
	var out ReportOutcome
	err := s.modifyRoom(ctx, roomID, func(doc *roomDoc) error {
		if doc.Status != string(game.StatusPlaying) {
			return ErrRoundNotPlaying
		}
		for _, r := range doc.Reports {
			if r.DetectiveID == detectiveID {
				return ErrAlreadyReported
			}
		}
		idx := -1
		for i, id := range doc.ActiveIDs {
			if id == targetID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrTargetNotActive
		}

		doc.Reports = append(doc.Reports, reportDoc{
			DetectiveID: detectiveID,
			TargetID:    targetID,
			ReportedAt:  nowUTC(now),
		})
		doc.ActiveIDs = append(doc.ActiveIDs[:idx], doc.ActiveIDs[idx+1:]...)
		doc.EliminatedIDs = append(doc.EliminatedIDs, targetID)
		for i := range doc.Personas {
			if doc.Personas[i].AuthorID == targetID {
				doc.Personas[i].Eliminated = true
			}
		}

		out = ReportOutcome{
			SpyIDs:         append([]string{}, doc.SpyIDs...),
			EliminatedIDs:  append([]string{}, doc.EliminatedIDs...),
			ReportCount:    len(doc.Reports),
			DetectiveCount: doc.DetectiveCount,
		}
		return nil
	})
	if err != nil {
		return ReportOutcome{}, err
	}
	return out, nil
}

// Threads and posts

func (s *DocStore) Threads(ctx context.Context, roomID string) ([]game.Thread, error) {
	doc, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	threads := make([]game.Thread, 0, len(doc.Threads))
	for _, t := range doc.Threads {
		threads = append(threads, game.Thread{
			ID:          t.ID,
			Title:       t.Title,
			Topic:       t.Topic,
			OpeningPost: t.OpeningPost,
			PostCount:   t.PostCount,
		})
	}
	return threads, nil
}

func (s *DocStore) ThreadPosts(ctx context.Context, roomID, threadID string) ([]game.Post, error) {
	return s.queryPosts(ctx,
		`SELECT json(data) FROM posts WHERE room_id = ? AND thread_id = ? ORDER BY seq`,
		roomID, threadID,
	)
}

// RecentThreadPosts returns the latest n posts of a thread, oldest-first.
func (s *DocStore) RecentThreadPosts(ctx context.Context, roomID, threadID string, n int) ([]game.Post, error) {
	posts, err := s.queryPosts(ctx,
		`SELECT json(data) FROM posts WHERE room_id = ? AND thread_id = ? ORDER BY seq DESC LIMIT ?`,
		roomID, threadID, n,
	)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}
	return posts, nil
}

func (s *DocStore) queryPosts(ctx context.Context, query string, args ...any) ([]game.Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []game.Post
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var doc postDoc
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, err
		}
		posts = append(posts, publicPost(doc))
	}
	return posts, rows.Err()
}

func publicPost(doc postDoc) game.Post {
	p := game.Post{
		ID:         doc.ID,
		ThreadID:   doc.ThreadID,
		Seq:        doc.Seq,
		AuthorID:   doc.AuthorID,
		AuthorName: doc.AuthorName,
		Content:    doc.Content,
	}
	if t := parseTime(&doc.CreatedAt); t != nil {
		p.CreatedAt = *t
	}
	return p
}

// AppendPost writes a human-authored post: validates room and author state,
// assigns the thread's next sequence number, and records the provenance
// marker, all inside one transaction.
func (s *DocStore) AppendPost(ctx context.Context, roomID, threadID, authorID, content string, isHuman bool, now time.Time) (game.Post, error) {
	var post game.Post
	err := s.withRoomTx(ctx, roomID, func(tx *sql.Tx, doc *roomDoc) error {
		if doc.Status != string(game.StatusPlaying) {
			return ErrRoundNotPlaying
		}
		for _, id := range doc.EliminatedIDs {
			if id == authorID {
				return ErrAuthorEliminated
			}
		}
		var err error
		post, err = insertPostTx(ctx, tx, doc, threadID, authorID, content, isHuman, now)
		return err
	})
	if err != nil {
		return game.Post{}, err
	}
	return post, nil
}

// AppendPersonaPost is the scheduler's single write path. The expectedSeq
// check against the persona's last-post marker turns a concurrent duplicate
// trigger into ErrStaleMarker instead of a double post.
func (s *DocStore) AppendPersonaPost(ctx context.Context, roomID, personaID string, expectedSeq int, threadID, content string, now time.Time) (game.Post, error) {
	var post game.Post
	err := s.withRoomTx(ctx, roomID, func(tx *sql.Tx, doc *roomDoc) error {
		if doc.Status != string(game.StatusPlaying) {
			return ErrRoundNotPlaying
		}
		var persona *personaDoc
		for i := range doc.Personas {
			if doc.Personas[i].ID == personaID {
				persona = &doc.Personas[i]
				break
			}
		}
		if persona == nil {
			return ErrNotFound
		}
		if persona.Eliminated {
			return ErrAuthorEliminated
		}
		if persona.LastPostSeq != expectedSeq {
			return ErrStaleMarker
		}

		var err error
		post, err = insertPostTx(ctx, tx, doc, threadID, persona.AuthorID, content, false, now)
		if err != nil {
			return err
		}
		ts := nowUTC(now)
		persona.LastPostSeq++
		persona.LastPostAt = &ts
		return nil
	})
	if err != nil {
		return game.Post{}, err
	}
	return post, nil
}

// insertPostTx bumps the thread counter inside doc and inserts the post row
// with the provenance marker. Caller owns the surrounding transaction.
func insertPostTx(ctx context.Context, tx *sql.Tx, doc *roomDoc, threadID, authorID, content string, isHuman bool, now time.Time) (game.Post, error) {
	var thread *threadDoc
	for i := range doc.Threads {
		if doc.Threads[i].ID == threadID {
			thread = &doc.Threads[i]
			break
		}
	}
	if thread == nil {
		return game.Post{}, ErrNotFound
	}

	thread.PostCount++
	pd := postDoc{
		ID:         newID(),
		ThreadID:   threadID,
		Seq:        thread.PostCount,
		AuthorID:   authorID,
		AuthorName: anonymousName,
		Content:    content,
		CreatedAt:  nowUTC(now),
	}
	data, err := json.Marshal(pd)
	if err != nil {
		return game.Post{}, err
	}

	human := 0
	if isHuman {
		human = 1
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO posts (id, room_id, thread_id, author_id, seq, is_human, data)
		 VALUES (?, ?, ?, ?, ?, ?, jsonb(?))`,
		pd.ID, doc.ID, threadID, authorID, pd.Seq, human, string(data),
	)
	if err != nil {
		return game.Post{}, err
	}
	return publicPost(pd), nil
}

// withRoomTx runs fn with the room document loaded inside a transaction and
// saves the document back before committing.
func (s *DocStore) withRoomTx(ctx context.Context, roomID string, fn func(tx *sql.Tx, doc *roomDoc) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	doc, err := getRoomTx(ctx, tx, roomID)
	if err != nil {
		return err
	}
	if err := fn(tx, &doc); err != nil {
		return err
	}
	if err := putRoomTx(ctx, tx, doc); err != nil {
		return err
	}
	return tx.Commit()
}

// Ensure DocStore implements Store at compile time.
var _ Store = (*DocStore)(nil)
