package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionBody(content string) string {
	return `{"id":"cmpl-1","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":` +
		string(mustJSON(content)) + `},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func TestComplete_RequestShape(t *testing.T) {
	// WHAT: The wire request lands on /v1/chat/completions with the
	// bearer token and a faithful serialization of model, messages, seed
	// and response format.
	var got Request
	var auth, path, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.Write([]byte(completionBody(`{"url": "https://example.com"}`)))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, APIKey: "sk-test"})
	seed := int64(2232)
	req := Request{
		Model: "gpt-3.5-turbo-1106",
		Messages: []Message{
			TextMessage("system", "pick a url"),
			ImageMessage("user", "aW1n", "here is the page"),
		},
		MaxTokens:      1024,
		Seed:           &seed,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	resp, err := client.Complete(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Choices[0].Message.Content != `{"url": "https://example.com"}` {
		t.Errorf("content = %q", resp.Choices[0].Message.Content)
	}

	if path != "/v1/chat/completions" {
		t.Errorf("path = %q", path)
	}
	if auth != "Bearer sk-test" {
		t.Errorf("authorization = %q", auth)
	}
	if contentType != "application/json" {
		t.Errorf("content type = %q", contentType)
	}
	if got.Model != "gpt-3.5-turbo-1106" || got.MaxTokens != 1024 {
		t.Errorf("request = %+v", got)
	}
	if got.Seed == nil || *got.Seed != 2232 {
		t.Errorf("seed = %v", got.Seed)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("response format = %+v", got.ResponseFormat)
	}
	img := got.Messages[1].Content[0]
	if img.Type != "image_url" || img.ImageURL == nil || !strings.HasPrefix(img.ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("image part = %+v", img)
	}
}

func TestComplete_OmitsUnsetOptionals(t *testing.T) {
	// WHAT: Seed and response_format stay off the wire when unset.
	// WHY: Some endpoints reject seed:0 or an empty response_format
	// object outright.
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Error(err)
		}
		w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	_, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{TextMessage("user", "hi")},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"seed", "response_format", "max_tokens", "temperature"} {
		if _, present := raw[key]; present {
			t.Errorf("unset %q was serialized", key)
		}
	}
}

func TestCompleteText_NarrowsToContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody("The answer is 42.")))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	text, err := client.CompleteText(context.Background(), Request{Model: "m", Messages: []Message{TextMessage("user", "q")}})
	if err != nil {
		t.Fatal(err)
	}
	if text != "The answer is 42." {
		t.Errorf("text = %q", text)
	}
}

func TestComplete_EndpointError(t *testing.T) {
	// WHAT: A non-200 status is an error carrying the body excerpt.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	_, err := client.Complete(context.Background(), Request{Model: "m", Messages: []Message{TextMessage("user", "q")}})
	if err == nil {
		t.Fatal("expected error for status 429")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error lost diagnostics: %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	// WHAT: A 200 with no choices is an error, not a nil deref later.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"cmpl-1","model":"m","choices":[],"usage":{}}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	if _, err := client.Complete(context.Background(), Request{Model: "m"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
