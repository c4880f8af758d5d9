package server

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nanashi-games/turingden/internal/game"
	"github.com/nanashi-games/turingden/internal/genai"
)

// fallbackPersona is a pre-written persona used when generation fails. The
// pool cycles through the roster by spawn index so repeated failures still
// produce distinct regulars.
type fallbackPersona struct {
	Traits  game.BigFive
	Profile genai.Profile
}

// personaPolicy versions the tunables of the simulated crowd: the posting
// frequency formula, the fallback roster, and the canned reply lines. Rooms
// created under one policy keep its behavior for their whole lifetime because
// frequency is persisted per persona at creation.
type personaPolicy struct {
	Version   string
	Frequency func(extraversion int) time.Duration
	Fallbacks []fallbackPersona
	Lines     []string
}

func policyByVersion(version string) (personaPolicy, error) {
	switch version {
	case "v1":
		return policyV1, nil
	case "v2":
		return policyV2, nil
	}
	return personaPolicy{}, fmt.Errorf("unknown persona policy %q", version)
}

var policyV1 = personaPolicy{
	Version: "v1",
	Frequency: func(e int) time.Duration {
		return time.Duration(360-60*e) * time.Second
	},
	Fallbacks: []fallbackPersona{
		{
			Traits: game.BigFive{Openness: 4, Conscientiousness: 2, Extraversion: 5, Agreeableness: 4, Neuroticism: 2},
			Profile: genai.Profile{
				Name:         "hyped college kid",
				VoiceProfile: "Excitable, lots of lol and w, replies fast to everything, loves food and game talk. Max 2 lines, 10-100 chars.",
			},
		},
		{
			Traits: game.BigFive{Openness: 2, Conscientiousness: 5, Extraversion: 1, Agreeableness: 3, Neuroticism: 3},
			Profile: genai.Profile{
				Name:         "taciturn engineer",
				VoiceProfile: "Dry, precise, rarely posts, corrects factual errors, no emoji ever. Max 2 lines, 10-100 chars.",
			},
		},
		{
			Traits: game.BigFive{Openness: 5, Conscientiousness: 3, Extraversion: 3, Agreeableness: 5, Neuroticism: 1},
			Profile: genai.Profile{
				Name:         "mellow film buff",
				VoiceProfile: "Relaxed, recommends movies nobody asked about, agreeable, soft phrasing. Max 2 lines, 10-100 chars.",
			},
		},
	},
	Lines: []string{"lol", "this", "same here", "source?", "nah", "wait what", "fair enough"},
}

var policyV2 = personaPolicy{
	Version: "v2",
	Frequency: func(e int) time.Duration {
		return time.Duration(390-66*e) * time.Second
	},
	Fallbacks: []fallbackPersona{
		{
			Traits: game.BigFive{Openness: 4, Conscientiousness: 2, Extraversion: 5, Agreeableness: 4, Neuroticism: 2},
			Profile: genai.Profile{
				Name:         "hyped college kid",
				VoiceProfile: "Excitable, lots of lol and w, replies fast to everything, loves food and game talk. Max 2 lines, 10-100 chars.",
			},
		},
		{
			Traits: game.BigFive{Openness: 2, Conscientiousness: 5, Extraversion: 1, Agreeableness: 3, Neuroticism: 3},
			Profile: genai.Profile{
				Name:         "taciturn engineer",
				VoiceProfile: "Dry, precise, rarely posts, corrects factual errors, no emoji ever. Max 2 lines, 10-100 chars.",
			},
		},
		{
			Traits: game.BigFive{Openness: 5, Conscientiousness: 3, Extraversion: 3, Agreeableness: 5, Neuroticism: 1},
			Profile: genai.Profile{
				Name:         "mellow film buff",
				VoiceProfile: "Relaxed, recommends movies nobody asked about, agreeable, soft phrasing. Max 2 lines, 10-100 chars.",
			},
		},
		{
			Traits: game.BigFive{Openness: 3, Conscientiousness: 1, Extraversion: 2, Agreeableness: 2, Neuroticism: 5},
			Profile: genai.Profile{
				Name:         "doom-scrolling night owl",
				VoiceProfile: "Posts late, mildly anxious, half-ironic complaints, lowercase only. Max 2 lines, 10-100 chars.",
			},
		},
	},
	Lines: []string{"lol", "tru", "big if true", "can't relate", "anyway", "who asked lol", "kinda same"},
}

// Pool creates personas for a room, preferring generated profiles and falling
// back to the policy roster when the generator fails or times out.
type Pool struct {
	store   Store
	gen     genai.Generator
	policy  personaPolicy
	logger  *slog.Logger
	timeout time.Duration
}

func NewPool(store Store, gen genai.Generator, policy personaPolicy, logger *slog.Logger, timeout time.Duration) *Pool {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Pool{store: store, gen: gen, policy: policy, logger: logger, timeout: timeout}
}

// EnsureMinimum backfills the roster to at least n personas.
func (p *Pool) EnsureMinimum(ctx context.Context, roomID string, n int) error {
	personas, err := p.store.Personas(ctx, roomID)
	if err != nil {
		return err
	}
	for i := len(personas); i < n; i++ {
		if err := p.spawn(ctx, roomID, i); err != nil {
			return err
		}
	}
	return nil
}

// SpawnOne adds a single persona if the roster has room. Returns true when a
// persona was added.
func (p *Pool) SpawnOne(ctx context.Context, roomID string) (bool, error) {
	personas, err := p.store.Personas(ctx, roomID)
	if err != nil {
		return false, err
	}
	if len(personas) >= game.MaxRoster {
		return false, nil
	}
	if err := p.spawn(ctx, roomID, len(personas)); err != nil {
		return false, err
	}
	return true, nil
}

// spawn creates one persona. Generation is bounded by the pool timeout; on
// any failure the fallback roster entry at idx supplies the profile instead,
// so roster growth never blocks on the generator.
func (p *Pool) spawn(ctx context.Context, roomID string, idx int) error {
	traits := randomTraits()

	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	profile, err := p.gen.GeneratePersona(genCtx, traits)
	cancel()
	if err != nil {
		fb := p.policy.Fallbacks[idx%len(p.policy.Fallbacks)]
		traits = fb.Traits
		profile = fb.Profile
		p.logger.Warn("persona generation failed, using fallback",
			"room_id", roomID, "fallback", profile.Name, "error", err)
	}

	persona := game.Persona{
		ID:            newID(),
		BigFive:       traits,
		Name:          profile.Name,
		VoiceProfile:  profile.VoiceProfile,
		PostFrequency: p.policy.Frequency(traits.Extraversion),
		AuthorID:      randomID(8),
	}
	if err := p.store.AddPersona(ctx, roomID, persona); err != nil {
		return err
	}
	p.logger.Info("persona added", "room_id", roomID, "persona", persona.Name,
		"frequency_s", int(persona.PostFrequency/time.Second))
	return nil
}

func randomTraits() game.BigFive {
	roll := func() int { return rand.IntN(5) + 1 }
	return game.BigFive{
		Openness:          roll(),
		Conscientiousness: roll(),
		Extraversion:      roll(),
		Agreeableness:     roll(),
		Neuroticism:       roll(),
	}
}
