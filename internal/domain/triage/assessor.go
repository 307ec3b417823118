package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/healthlink/healthlink/internal/platform/apperr"
)

// Assessment is one validated model turn: the conversational reply, the
// symptoms identified so far, and an optional fresh risk assessment.
type Assessment struct {
	Response string          `json:"response"`
	Symptoms []string        `json:"symptoms"`
	Risk     *RiskAssessment `json:"riskAssessment"`
}

// Assessor produces an assessment from the full conversation log.
type Assessor interface {
	Assess(ctx context.Context, messages []Message) (*Assessment, error)
}

const assessorPrompt = `You are a medical triage assistant. Based on the conversation below,
reply with a single JSON object and nothing else, in this exact shape:
{"response": "<your next message to the patient>",
 "symptoms": ["<every symptom mentioned so far>"],
 "riskAssessment": {"level": "low|medium|high|emergency",
  "recommendations": ["..."], "suggestedTests": ["..."]}}
Ask follow-up questions until you can assess risk. Conversation:
`

// GeminiAssessor calls a generateContent endpoint and parses the reply
// against the assessment schema. Any transport or parse failure is an
// upstream error; callers must not mutate session state on failure.
type GeminiAssessor struct {
	url    string
	apiKey string
	client *http.Client
}

func NewGeminiAssessor(url, apiKey string) *GeminiAssessor {
	return &GeminiAssessor{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiAssessor) Assess(ctx context.Context, messages []Message) (*Assessment, error) {
	var transcript strings.Builder
	transcript.WriteString(assessorPrompt)
	for _, m := range messages {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: transcript.String()}}}},
	})
	if err != nil {
		return nil, apperr.Upstream(err, "encoding triage request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Upstream(err, "building triage request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream(err, "calling triage model")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Upstream(err, "reading triage response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(fmt.Errorf("status %d: %s", resp.StatusCode, body), "triage model request failed")
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, apperr.Upstream(err, "decoding triage response")
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, apperr.Upstream(fmt.Errorf("empty candidates"), "triage model returned no content")
	}

	return parseAssessment(gr.Candidates[0].Content.Parts[0].Text)
}

// parseAssessment decodes the model's text as the assessment schema.
// Markdown code fences around the JSON are tolerated; anything else
// that deviates from the schema is rejected.
func parseAssessment(text string) (*Assessment, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()

	var a Assessment
	if err := dec.Decode(&a); err != nil {
		return nil, apperr.Upstream(err, "triage model output is not valid assessment JSON")
	}
	if a.Response == "" {
		return nil, apperr.Upstream(fmt.Errorf("missing response field"), "triage model output incomplete")
	}
	if a.Risk != nil {
		level, err := ParseRiskLevel(string(a.Risk.Level))
		if err != nil {
			return nil, apperr.Upstream(err, "triage model returned unknown risk level")
		}
		a.Risk.Level = level
		if a.Risk.Recommendations == nil {
			a.Risk.Recommendations = []string{}
		}
		if a.Risk.SuggestedTests == nil {
			a.Risk.SuggestedTests = []string{}
		}
	}
	if a.Symptoms == nil {
		a.Symptoms = []string{}
	}
	return &a, nil
}
