package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/webgaze/transcript"
)

func TestHealthz(t *testing.T) {
	srv := New(Config{
		State: func() string { return "awaiting_decision" },
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["state"] != "awaiting_decision" {
		t.Errorf("body = %v", body)
	}
}

func TestTranscript_OmitsImageBytes(t *testing.T) {
	// WHAT: The transcript view flags image turns without inlining the
	// base64 payload.
	// WHY: Screenshots are hundreds of kilobytes each; the diagnostics
	// view only needs to show that a turn carried one.
	srv := New(Config{
		Turns: func() []transcript.Turn {
			return []transcript.Turn{
				{Role: transcript.RoleSystem, Text: "sys"},
				{Role: transcript.RoleUser, Text: "here is the page", ImageB64: "aW1nYnl0ZXM="},
			}
		},
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/transcript", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body []struct {
		Role     string `json:"role"`
		Text     string `json:"text"`
		HasImage bool   `json:"has_image"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 2 {
		t.Fatalf("turns = %d", len(body))
	}
	if body[0].Role != "system" || body[0].HasImage {
		t.Errorf("turn 0 = %+v", body[0])
	}
	if !body[1].HasImage {
		t.Error("image turn not flagged")
	}
	if rec.Body.Len() > 1024 {
		t.Errorf("transcript view suspiciously large (%d bytes); image bytes leaked?", rec.Body.Len())
	}
}

func TestSnapshot_ServesArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screenshot.jpg")
	if err := os.WriteFile(path, []byte("jpegbytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := New(Config{SnapshotPath: path})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/snapshot", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.String() != "jpegbytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	// WHAT: With a password hash configured, requests without the right
	// password get 401 on every route.
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	srv := New(Config{PasswordHash: hash, State: func() string { return "done" }})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.SetBasicAuth("anyone", "wrong")
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/healthz", nil)
	req.SetBasicAuth("anyone", "hunter2")
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("right password: status = %d, want 200", rec.Code)
	}
}
