package triage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/healthlink/healthlink/internal/platform/apperr"
)

func TestParseAssessment_Valid(t *testing.T) {
	text := `{"response":"How long?","symptoms":["headache"],
		"riskAssessment":{"level":"medium","recommendations":["rest"],"suggestedTests":["blood_test"]}}`
	a, err := parseAssessment(text)
	if err != nil {
		t.Fatalf("parseAssessment: %v", err)
	}
	if a.Response != "How long?" || a.Risk.Level != RiskMedium {
		t.Errorf("assessment = %+v", a)
	}
}

func TestParseAssessment_TrimsCodeFences(t *testing.T) {
	text := "```json\n{\"response\":\"ok\",\"symptoms\":[],\"riskAssessment\":null}\n```"
	a, err := parseAssessment(text)
	if err != nil {
		t.Fatalf("parseAssessment: %v", err)
	}
	if a.Response != "ok" || a.Risk != nil {
		t.Errorf("assessment = %+v", a)
	}
}

func TestParseAssessment_NilCollectionsNormalized(t *testing.T) {
	a, err := parseAssessment(`{"response":"ok","symptoms":null,"riskAssessment":{"level":"low"}}`)
	if err != nil {
		t.Fatalf("parseAssessment: %v", err)
	}
	if a.Symptoms == nil || a.Risk.Recommendations == nil || a.Risk.SuggestedTests == nil {
		t.Errorf("nil collections not normalized: %+v", a)
	}
}

func TestParseAssessment_Rejections(t *testing.T) {
	cases := map[string]string{
		"not json":           `the patient seems fine`,
		"unknown field":      `{"response":"ok","symptoms":[],"confidence":0.9}`,
		"missing response":   `{"symptoms":["headache"]}`,
		"unknown risk level": `{"response":"ok","symptoms":[],"riskAssessment":{"level":"critical"}}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseAssessment(text)
			if !apperr.IsKind(err, apperr.KindUpstream) {
				t.Errorf("expected Upstream, got %v", err)
			}
		})
	}
}

func geminiBody(inner string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, inner)
}

func TestGeminiAssessor_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, geminiBody(`{"response":"How long?","symptoms":["headache"],"riskAssessment":null}`))
	}))
	defer srv.Close()

	g := NewGeminiAssessor(srv.URL, "test-key")
	a, err := g.Assess(context.Background(), []Message{
		{Role: RoleAI, Content: Greeting, Timestamp: time.Now()},
		{Role: RoleUser, Content: "I have a headache", Timestamp: time.Now()},
	})
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if a.Response != "How long?" || len(a.Symptoms) != 1 {
		t.Errorf("assessment = %+v", a)
	}
}

func TestGeminiAssessor_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGeminiAssessor(srv.URL, "test-key")
	_, err := g.Assess(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if !apperr.IsKind(err, apperr.KindUpstream) {
		t.Errorf("expected Upstream, got %v", err)
	}
}

func TestGeminiAssessor_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	g := NewGeminiAssessor(srv.URL, "test-key")
	_, err := g.Assess(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if !apperr.IsKind(err, apperr.KindUpstream) {
		t.Errorf("expected Upstream, got %v", err)
	}
}
