package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeProvider struct {
	reply     string
	err       error
	calls     int
	gotSystem string
	gotUser   string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.gotSystem, f.gotUser = system, user
	return f.reply, f.err
}

func transcriptOf(n int) string {
	turns := make([]Turn, n)
	for i := range turns {
		role := "agent"
		if i%2 == 1 {
			role = "user"
		}
		turns[i] = Turn{Role: role, Message: fmt.Sprintf("line %d", i)}
	}
	return BuildTranscript(turns)
}

const validReply = `Here is the report:
{
  "overall_score": 72,
  "framework_scores": {
    "neural": {"overall": 70, "response_agility": 71, "emotional_control": 69, "adaptive_communication": 70},
    "cognitive": {"overall": 74, "situation_reading": 75, "strategic_thinking": 73, "solution_mapping": 74},
    "behavioral": {"overall": 72, "conversation_leadership": 72, "objection_navigation": 71, "commitment_securing": 73}
  },
  "detailed_feedback": {
    "neural": {"highlight": "calm", "constructive": "pace", "overview": "solid"},
    "cognitive": {"highlight": "questions", "constructive": "depth", "overview": "good"},
    "behavioral": {"highlight": "lead", "constructive": "close", "overview": "ok"}
  },
  "key_quotes": ["I hear you"],
  "recommendations_next_call": ["Ask for the appointment"],
  "overall_summary": "A decent call."
}
Thanks.`

func TestAnalyze_ShortTranscriptSkipsProvider(t *testing.T) {
	p := &fakeProvider{reply: validReply}
	a := NewAdapter(p)

	for _, tr := range []string{"", transcriptOf(1), transcriptOf(9), "a\n\n\n\n  \n\nb"} {
		got, err := a.Analyze(context.Background(), tr)
		if err != nil {
			t.Fatalf("analyze: %v", err)
		}
		zero := ZeroResponse()
		if got.OverallScore != 0 || got.OverallFeedback != zero.OverallFeedback ||
			got.Recommendations.Priority[0] != zero.Recommendations.Priority[0] {
			t.Fatalf("expected zero structure, got %+v", got)
		}
	}
	if p.calls != 0 {
		t.Fatalf("provider called %d times for short transcripts", p.calls)
	}
}

func TestAnalyze_MapsModelResponse(t *testing.T) {
	p := &fakeProvider{reply: validReply}
	var observed string
	a := NewAdapter(p).WithObserver(func(name string, d time.Duration, err error) { observed = name })

	tr := transcriptOf(10)
	got, err := a.Analyze(context.Background(), tr)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if p.calls != 1 || p.gotSystem != SystemPrompt || p.gotUser != tr {
		t.Fatalf("unexpected provider call: calls=%d", p.calls)
	}
	if observed != "fake" {
		t.Fatalf("expected observer called")
	}
	if got.OverallScore != 72 || got.OverallFeedback != "A decent call." {
		t.Fatalf("unexpected overall: %+v", got)
	}
	if got.Performance.Cognitive.OverallScore != 74 || got.Performance.Cognitive.SubSkills["situation_reading"] != 75 {
		t.Fatalf("unexpected cognitive: %+v", got.Performance.Cognitive)
	}
	if _, ok := got.Performance.Neural.SubSkills["overall"]; ok {
		t.Fatalf("overall must not be listed as a sub-skill")
	}
	if got.Performance.Behavioral.Highlights != "lead" || got.Performance.Behavioral.ConstructiveFeedback != "close" {
		t.Fatalf("unexpected behavioral feedback: %+v", got.Performance.Behavioral)
	}
	if len(got.Recommendations.Priority) != 1 || len(got.Recommendations.Techniques) != 0 || len(got.KeyQuotes) != 1 {
		t.Fatalf("unexpected lists: %+v", got)
	}
}

func TestParse_RejectsMissingKeys(t *testing.T) {
	cases := map[string]string{
		"no json":          "I cannot score this call.",
		"no framework":     `{"detailed_feedback": {"neural": {}, "cognitive": {}, "behavioral": {}}}`,
		"no feedback":      `{"framework_scores": {"neural": {}, "cognitive": {}, "behavioral": {}}}`,
		"missing category": strings.Replace(validReply, `"behavioral": {"highlight": "lead", "constructive": "close", "overview": "ok"}`, `"other": {}`, 1),
		"broken json":      `{"framework_scores": `,
	}
	for name, reply := range cases {
		if _, err := Parse(reply); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("%s: expected ErrMalformedResponse, got %v", name, err)
		}
	}
}

func TestAnalyze_ProviderErrorIsReturned(t *testing.T) {
	a := NewAdapter(&fakeProvider{err: errors.New("boom")})
	if _, err := a.Analyze(context.Background(), transcriptOf(12)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBuildTranscript(t *testing.T) {
	got := BuildTranscript([]Turn{{Role: "agent", Message: "Hi"}, {Role: "user", Message: "  "}, {Role: "user", Message: "Hello"}})
	if got != "{agent} Hi\n\n{user} Hello" {
		t.Fatalf("unexpected transcript %q", got)
	}
	if CountExchanges(got) != 2 {
		t.Fatalf("expected 2 exchanges")
	}
}
