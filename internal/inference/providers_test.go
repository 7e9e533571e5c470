// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pdiddy/arxiv-digest/pkg/types"
)

func TestClaudeComplete(t *testing.T) {
	var gotReq claudeRequest
	var gotKey, gotVersion string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"content": [{"type": "text", "text": "hello from claude"}]}`)
	}))
	defer ts.Close()

	p := &ClaudeProvider{APIKey: "ak_test", BaseURL: ts.URL, Client: ts.Client(), Retry: types.RetryPolicy{MaxAttempts: 1}}
	got, err := p.Complete(context.Background(), "claude-x", "be terse", "say hello", 0)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello from claude" {
		t.Errorf("got %q", got)
	}
	if gotKey != "ak_test" || gotVersion == "" {
		t.Errorf("auth headers: key=%q version=%q", gotKey, gotVersion)
	}
	if gotReq.Model != "claude-x" || gotReq.System != "be terse" {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestClaudeCompleteErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	p := &ClaudeProvider{BaseURL: ts.URL, Client: ts.Client(), Retry: types.RetryPolicy{MaxAttempts: 1}}
	if _, err := p.Complete(context.Background(), "m", "", "u", 0); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestOpenAIComplete(t *testing.T) {
	var gotReq openaiRequest
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"choices": [{"message": {"content": "hello from gpt"}}]}`)
	}))
	defer ts.Close()

	p := &OpenAIProvider{APIKey: "sk_test", BaseURL: ts.URL, Client: ts.Client(), Retry: types.RetryPolicy{MaxAttempts: 1}}
	got, err := p.Complete(context.Background(), "gpt-x", "be terse", "say hello", 0.7)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello from gpt" {
		t.Errorf("got %q", got)
	}
	if gotAuth != "Bearer sk_test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}
