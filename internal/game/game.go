// Package game defines the core domain types and rules of a Turingden round.
// It has zero external dependencies — everything here is pure Go.
package game

import "time"

type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusRevealed RoomStatus = "revealed"
)

type Winner string

const (
	WinnerDetective Winner = "detective"
	WinnerSpy       Winner = "spy"
)

const (
	// MinSpySlots and MaxSpySlots bound the number of human spies a room
	// can admit.
	MinSpySlots = 1
	MaxSpySlots = 5

	// MinRoster is backfilled before a round starts; MaxRoster caps how
	// many personas detective joins can spawn.
	MinRoster = 3
	MaxRoster = 10

	// MaxPostLen is enforced on every post at write time, human or not.
	MaxPostLen = 100

	DefaultRoundMinutes = 7
)

type Settings struct {
	SpySlots     int `json:"spySlots"`
	RoundMinutes int `json:"roundMinutes"`
}

// Room is the public view of a game session. Secret material (host token
// hash, spy identity set, spy tokens, persona voice profiles) never appears
// here; it stays inside the store's private documents.
type Room struct {
	ID             string
	Status         RoomStatus
	Settings       Settings
	DetectiveCount int
	ActiveIDs      []string
	EliminatedIDs  []string
	CreatedAt      time.Time
	RoundStartedAt *time.Time
	RoundEndsAt    *time.Time
	Result         *RoundResult
}

type RoundResult struct {
	Winner      Winner `json:"winner"`
	TuringScore int    `json:"turingScore"`
}

// BigFive holds trait values 1–5.
type BigFive struct {
	Openness          int `json:"openness"`
	Conscientiousness int `json:"conscientiousness"`
	Extraversion      int `json:"extraversion"`
	Agreeableness     int `json:"agreeableness"`
	Neuroticism       int `json:"neuroticism"`
}

// Persona is a simulated board participant. The scheduler only reads it;
// elimination is the single mutation after creation.
type Persona struct {
	ID            string
	BigFive       BigFive
	Name          string
	VoiceProfile  string
	PostFrequency time.Duration
	AuthorID      string
	Eliminated    bool

	// Last-post marker, advanced atomically with each post append. Doubles
	// as the optimistic version check that makes duplicate scheduler
	// triggers safe no-ops.
	LastPostSeq int
	LastPostAt  *time.Time
}

type Thread struct {
	ID          string
	Title       string
	Topic       string
	OpeningPost string
	PostCount   int
}

type Post struct {
	ID         string
	ThreadID   string
	Seq        int
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

// Report is a detective's single accusation for the round.
type Report struct {
	DetectiveID string
	TargetID    string
	ReportedAt  time.Time
	IsCorrect   *bool
}

// RoundEnded reports whether the round timer has expired.
func RoundEnded(r Room, now time.Time) bool {
	return r.RoundEndsAt != nil && now.After(*r.RoundEndsAt)
}

// AllSpiesEliminated reports whether at least one spy was admitted and every
// spy identity has been eliminated. The non-empty guard keeps rounds with no
// admitted spy from ending on the first elimination.
func AllSpiesEliminated(spyIDs, eliminatedIDs []string) bool {
	if len(spyIDs) == 0 {
		return false
	}
	return subset(spyIDs, eliminatedIDs)
}

// DecideWinner applies the reveal rule: detectives win exactly when the
// secret spy set is a subset of the eliminated set.
func DecideWinner(spyIDs, eliminatedIDs []string) Winner {
	if subset(spyIDs, eliminatedIDs) {
		return WinnerDetective
	}
	return WinnerSpy
}

// TuringScore maps report accuracy to 0–100; higher means detectives
// struggled to tell human posts from generated ones. No reports scores 50.
func TuringScore(correct, total int) int {
	if total == 0 {
		return 50
	}
	ratio := 1 - float64(correct)/float64(total)
	return int(ratio*100 + 0.5)
}

func subset(sub, super []string) bool {
	for _, id := range sub {
		if !contains(super, id) {
			return false
		}
	}
	return true
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
