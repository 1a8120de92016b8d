package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MinExchanges is the shortest transcript that is sent to the model.
const MinExchanges = 10

var (
	ErrMalformedResponse = errors.New("malformed analysis response")
	ErrNoProvider        = errors.New("analysis provider not configured")
)

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// Provider sends one system prompt and one user message to an LLM and
// returns the text of the reply.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Observer receives provider call latency. Optional.
type Observer func(provider string, d time.Duration, err error)

type Adapter struct {
	provider Provider
	observe  Observer
}

func NewAdapter(p Provider) *Adapter { return &Adapter{provider: p} }

// WithObserver sets a latency hook (metrics).
func (a *Adapter) WithObserver(o Observer) *Adapter {
	a.observe = o
	return a
}

// Analyze scores a transcript. Transcripts with fewer than MinExchanges turns
// return ZeroResponse without calling the provider.
func (a *Adapter) Analyze(ctx context.Context, transcript string) (Response, error) {
	if CountExchanges(transcript) < MinExchanges {
		return ZeroResponse(), nil
	}
	if a.provider == nil {
		return Response{}, ErrNoProvider
	}

	start := time.Now()
	text, err := a.provider.Complete(ctx, SystemPrompt, transcript)
	if a.observe != nil {
		a.observe(a.provider.Name(), time.Since(start), err)
	}
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", a.provider.Name(), err)
	}
	return Parse(text)
}

// CountExchanges counts the non-empty blocks separated by blank lines.
func CountExchanges(transcript string) int {
	n := 0
	for _, block := range strings.Split(transcript, "\n\n") {
		if strings.TrimSpace(block) != "" {
			n++
		}
	}
	return n
}

// Parse extracts the first JSON object from the model's text and maps it.
// Missing framework scores or feedback for any category is an error; there
// are no partial results.
func Parse(text string) (Response, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return Response{}, fmt.Errorf("%w: no JSON object in response", ErrMalformedResponse)
	}
	var m modelResponse
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	fs, fb := m.FrameworkScores, m.DetailedFeedback
	if fs == nil || fs.Neural == nil || fs.Cognitive == nil || fs.Behavioral == nil {
		return Response{}, fmt.Errorf("%w: missing framework scores", ErrMalformedResponse)
	}
	if fb == nil || fb.Neural == nil || fb.Cognitive == nil || fb.Behavioral == nil {
		return Response{}, fmt.Errorf("%w: missing detailed feedback", ErrMalformedResponse)
	}

	return Response{
		OverallScore:    m.OverallScore,
		OverallFeedback: m.OverallSummary,
		KeyQuotes:       nonNil(m.KeyQuotes),
		Performance: Performance{
			Neural:     category(fs.Neural, fb.Neural),
			Cognitive:  category(fs.Cognitive, fb.Cognitive),
			Behavioral: category(fs.Behavioral, fb.Behavioral),
		},
		Recommendations: Recommendations{
			Priority:   nonNil(m.RecommendationsNextCall),
			Techniques: []string{},
			Practice:   []string{},
		},
	}, nil
}

func category(scores map[string]float64, f *feedback) Category {
	c := Category{
		OverallScore:         scores["overall"],
		Highlights:           f.Highlight,
		ConstructiveFeedback: f.Constructive,
		Overview:             f.Overview,
		SubSkills:            make(map[string]float64, len(scores)),
	}
	for k, v := range scores {
		if k != "overall" {
			c.SubSkills[k] = v
		}
	}
	return c
}

// ZeroResponse is returned for transcripts too short to score.
func ZeroResponse() Response {
	zero := func(skills ...string) Category {
		sub := make(map[string]float64, len(skills))
		for _, s := range skills {
			sub[s] = 0
		}
		return Category{
			Highlights:           "Conversation too short for analysis",
			ConstructiveFeedback: "Please engage in a longer conversation for meaningful feedback",
			Overview:             "Insufficient data for analysis",
			SubSkills:            sub,
		}
	}
	return Response{
		OverallFeedback: "The conversation was too brief for a meaningful analysis. A minimum of 10 exchanges is required for proper evaluation.",
		KeyQuotes:       []string{},
		Performance: Performance{
			Neural:     zero("response_agility", "emotional_control", "adaptive_communication"),
			Cognitive:  zero("situation_reading", "strategic_thinking"),
			Behavioral: zero("conversation_leadership", "objection_navigation"),
		},
		Recommendations: Recommendations{
			Priority:   []string{"Engage in a longer conversation (minimum 10 exchanges) to receive meaningful analysis"},
			Techniques: []string{},
			Practice:   []string{},
		},
	}
}

// Turn is one transcript entry from the voice platform.
type Turn struct {
	Role    string
	Message string
}

// BuildTranscript renders turns as "{role} message" blocks separated by a
// blank line, one block per exchange.
func BuildTranscript(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		msg := strings.TrimSpace(t.Message)
		if msg == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("{")
		b.WriteString(t.Role)
		b.WriteString("} ")
		b.WriteString(msg)
	}
	return b.String()
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
