// Package genai calls the Gemini generateContent endpoint for persona
// profiles and board replies. Callers must treat every error as recoverable:
// the orchestrator substitutes fallback content and never surfaces generator
// failures.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nanashi-games/turingden/internal/game"
)

// Profile is a generated persona identity: an internal display name and the
// voice profile used as the system prompt for that persona's posts.
type Profile struct {
	Name         string `json:"name"`
	VoiceProfile string `json:"voiceProfile"`
}

// RecentPost is the slice of thread context handed to post generation.
type RecentPost struct {
	Seq      int
	AuthorID string
	Content  string
}

// Generator produces persona profiles and board replies.
type Generator interface {
	GeneratePersona(ctx context.Context, traits game.BigFive) (Profile, error)
	GeneratePost(ctx context.Context, voiceProfile, threadTitle string, recent []RecentPost) (string, error)
}

// Config configures the Gemini client. Zero values fall back to the public
// endpoint and a default HTTP client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{cfg: cfg}
}

func (c *Client) GeneratePersona(ctx context.Context, traits game.BigFive) (Profile, error) {
	prompt := fmt.Sprintf(`You design regulars for an anonymous discussion board simulator.
Based on these Big Five trait values (each 1-5), invent one plausible board regular.

- openness: %d
- conscientiousness: %d
- extraversion: %d
- agreeableness: %d
- neuroticism: %d

Constraints: this character posts short, casual board replies (10-100 characters),
one-word reactions like "lol" or "same" are normal, never long-winded.

Output JSON only, no markdown fences or commentary:
{
  "name": "internal label, e.g. 'lurker-ish office worker'",
  "voiceProfile": "instructions for posting as this character: tone, verbal tics, pet topics. Hard rules: 10-100 characters, max 2 lines, no lecturing, no filler like 'interesting point'."
}`,
		traits.Openness, traits.Conscientiousness, traits.Extraversion,
		traits.Agreeableness, traits.Neuroticism)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return Profile{}, err
	}

	var p Profile
	if err := json.Unmarshal([]byte(stripFences(text)), &p); err != nil {
		return Profile{}, fmt.Errorf("parsing persona response: %w", err)
	}
	if p.Name == "" || p.VoiceProfile == "" {
		return Profile{}, fmt.Errorf("persona response missing fields")
	}
	return p, nil
}

func (c *Client) GeneratePost(ctx context.Context, voiceProfile, threadTitle string, recent []RecentPost) (string, error) {
	context_ := "(no posts yet)"
	if len(recent) > 0 {
		var b strings.Builder
		for i, p := range recent {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, ">>%d ID:%s %s", p.Seq, p.AuthorID, p.Content)
		}
		context_ = b.String()
	}

	prompt := fmt.Sprintf(`%s

---
Thread: %s
Recent posts:
%s

Read the flow above and write exactly one natural reply.

Hard rules:
- Output the reply body only, no post numbers or IDs
- Anonymous-board register, natural length (roughly 10-100 characters)
- Short replies are the norm; "lol" or "this" is fine sometimes
- Never more than 2 lines, never lecture`, voiceProfile, threadTitle, context_)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return Truncate(text, game.MaxPostLen), nil
}

// generate performs one generateContent call and returns the first candidate
// text. The call is bounded by the configured timeout on top of ctx.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("api key is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The key travels only as a header, never in URLs that could end up in
	// logs or error messages.
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("generate request status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var payload struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	for _, cand := range payload.Candidates {
		for _, part := range cand.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("response missing candidate text")
}

// Truncate trims s to at most n runes. Models occasionally ignore the length
// instruction, so the limit is enforced here too.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var _ Generator = (*Client)(nil)
