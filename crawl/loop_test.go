package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/hazyhaar/webgaze/llm"
	"github.com/hazyhaar/webgaze/render"
	"github.com/hazyhaar/webgaze/transcript"
)

// fakeModel replays scripted responses and records every request.
type fakeModel struct {
	responses []string
	requests  []llm.Request
}

func (m *fakeModel) CompleteText(_ context.Context, req llm.Request) (string, error) {
	m.requests = append(m.requests, req)
	if len(m.requests) > len(m.responses) {
		return "", fmt.Errorf("fake model: out of scripted responses")
	}
	return m.responses[len(m.requests)-1], nil
}

// fakeDriver records actions and fails targets listed in failWith.
type fakeDriver struct {
	navigates []string
	clicks    []string
	failWith  map[string]error
	snap      *render.Snapshot
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		failWith: map[string]error{},
		snap:     &render.Snapshot{Path: "screenshot.jpg", Base64: "ZmFrZQ==", Width: 10, Height: 10},
	}
}

func (d *fakeDriver) Navigate(_ context.Context, url string) (*render.Snapshot, error) {
	d.navigates = append(d.navigates, url)
	if err := d.failWith[url]; err != nil {
		return nil, err
	}
	return d.snap, nil
}

func (d *fakeDriver) Click(_ context.Context, linkText string) (*render.Snapshot, error) {
	d.clicks = append(d.clicks, linkText)
	if err := d.failWith[linkText]; err != nil {
		return nil, err
	}
	return d.snap, nil
}

func (d *fakeDriver) Render(_ context.Context) (*render.Snapshot, error) {
	return d.snap, nil
}

func newTestLoop(model *fakeModel, driver *fakeDriver, maxAttempts int) *Loop {
	return NewLoop(model, driver, LoopConfig{
		Model:       "test-vision",
		SeedURL:     "https://seed.test",
		MaxAttempts: maxAttempts,
		Logger:      slog.Default(),
	})
}

func TestLoop_NavigateThenAnswer(t *testing.T) {
	// WHAT: A successful navigation attaches a snapshot turn and the
	// loop terminates on the model's plain-text answer (scenarios A+D).
	// WHY: Render-after-action is the ordering guarantee: the model
	// must always see the page its own action produced.
	model := &fakeModel{responses: []string{
		`{"url": "https://example.com"}`,
		"The capital is Paris.",
	}}
	driver := newFakeDriver()
	loop := newTestLoop(model, driver, 10)

	answer, err := loop.Ask(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "The capital is Paris." {
		t.Errorf("answer = %q", answer)
	}

	if len(driver.navigates) != 2 || driver.navigates[0] != "https://seed.test" || driver.navigates[1] != "https://example.com" {
		t.Errorf("navigations = %v", driver.navigates)
	}

	// The turn following the navigate intent must carry the snapshot.
	turns := loop.Turns()
	var sawImageAfterNav bool
	for i, turn := range turns {
		if turn.Role == transcript.RoleAssistant && turn.Text == `{"url": "https://example.com"}` {
			if i+1 < len(turns) && turns[i+1].ImageB64 != "" {
				sawImageAfterNav = true
			}
		}
	}
	if !sawImageAfterNav {
		t.Error("no snapshot turn after successful navigation")
	}

	// The final model call must have seen that snapshot.
	last := model.requests[len(model.requests)-1]
	var hasImage bool
	for _, msg := range last.Messages {
		for _, part := range msg.Content {
			if part.Type == "image_url" {
				hasImage = true
			}
		}
	}
	if !hasImage {
		t.Error("final completion request carried no snapshot")
	}

	if loop.State() != StateDone {
		t.Errorf("state = %v, want done", loop.State())
	}
}

func TestLoop_UnreachableURLRecovers(t *testing.T) {
	// WHAT: A failed navigation folds a recovery turn (no image) into
	// the transcript and the loop asks the model again (scenario B).
	// WHY: The page did not change, so attaching a snapshot would show
	// the model a state its action never produced.
	model := &fakeModel{responses: []string{
		`{"url": "https://nonexistent.invalid"}`,
		"Could not check that site, but the answer is 7.",
	}}
	driver := newFakeDriver()
	driver.failWith["https://nonexistent.invalid"] = fmt.Errorf("%w: dns failure", ErrUnreachableURL)
	loop := newTestLoop(model, driver, 10)

	answer, err := loop.Ask(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if answer == "" {
		t.Fatal("expected an answer after recovery")
	}

	turns := loop.Turns()
	var sawRecovery bool
	for i, turn := range turns {
		if turn.Role == transcript.RoleAssistant && turn.Text == `{"url": "https://nonexistent.invalid"}` {
			next := turns[i+1]
			if next.Role == transcript.RoleUser && next.Text == recoverUnreachable && next.ImageB64 == "" {
				sawRecovery = true
			}
		}
	}
	if !sawRecovery {
		t.Error("no imageless recovery turn after failed navigation")
	}
}

func TestLoop_LinkNotFoundRecovers(t *testing.T) {
	// WHAT: A click on an absent link folds a click recovery turn and
	// retries without a fresh render (scenario C).
	model := &fakeModel{responses: []string{
		`{"click": "Contact Us"}`,
		"The answer is on this page: 42.",
	}}
	driver := newFakeDriver()
	driver.failWith["Contact Us"] = fmt.Errorf("%w: no visible link", ErrLinkNotFound)
	loop := newTestLoop(model, driver, 10)

	if _, err := loop.Ask(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}

	if len(driver.clicks) != 1 || driver.clicks[0] != "Contact Us" {
		t.Errorf("clicks = %v", driver.clicks)
	}

	turns := loop.Turns()
	var sawRecovery bool
	for i, turn := range turns {
		if turn.Role == transcript.RoleAssistant && turn.Text == `{"click": "Contact Us"}` {
			next := turns[i+1]
			if next.Role == transcript.RoleUser && next.Text == recoverClick && next.ImageB64 == "" {
				sawRecovery = true
			}
		}
	}
	if !sawRecovery {
		t.Error("no click recovery turn after failed click")
	}
}

func TestLoop_UnparseableGetsClarification(t *testing.T) {
	// WHAT: An unparseable response appends a clarification turn and
	// the loop continues.
	model := &fakeModel{responses: []string{
		`{"url": "https://broken`,
		"Paris.",
	}}
	driver := newFakeDriver()
	loop := newTestLoop(model, driver, 10)

	answer, err := loop.Ask(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "Paris." {
		t.Errorf("answer = %q", answer)
	}

	var sawClarification bool
	for _, turn := range loop.Turns() {
		if turn.Role == transcript.RoleUser && turn.Text == recoverUnparseable {
			sawClarification = true
		}
	}
	if !sawClarification {
		t.Error("no clarification turn for unparseable response")
	}
	// Only the seed navigation ran; the broken intent executed nothing.
	if len(driver.navigates) != 1 {
		t.Errorf("navigations = %v", driver.navigates)
	}
}

func TestLoop_AttemptBudgetExhausted(t *testing.T) {
	// WHAT: When the model never answers, the loop stops after
	// MaxAttempts with ErrAttemptsExhausted.
	// WHY: The budget turns a spinning conversation into a reportable
	// outcome instead of an infinite re-prompt cycle.
	model := &fakeModel{responses: []string{
		`{"url": "https://a.invalid"}`,
		`{"url": "https://a.invalid"}`,
		`{"url": "https://a.invalid"}`,
	}}
	driver := newFakeDriver()
	driver.failWith["https://a.invalid"] = fmt.Errorf("%w: down", ErrUnreachableURL)
	loop := newTestLoop(model, driver, 3)

	_, err := loop.Ask(context.Background(), "q")
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
	if len(model.requests) != 3 {
		t.Errorf("model calls = %d, want 3", len(model.requests))
	}
}

func TestLoop_ModelFailureIsFatal(t *testing.T) {
	// WHAT: A failing completion call propagates to the caller.
	// WHY: The capability layer going away is unmodeled; converting it
	// into a recovery turn would re-prompt a dead endpoint forever.
	model := &fakeModel{responses: nil}
	driver := newFakeDriver()
	loop := newTestLoop(model, driver, 10)

	if _, err := loop.Ask(context.Background(), "q"); err == nil {
		t.Fatal("expected error when the model capability fails")
	}
}

func TestOutcomeOf_Classification(t *testing.T) {
	// WHAT: Driver errors map onto their outcome kinds via errors.Is.
	snap := &render.Snapshot{Base64: "eA=="}
	cases := []struct {
		err  error
		want OutcomeKind
	}{
		{nil, Success},
		{fmt.Errorf("%w: x", ErrUnreachableURL), UnreachableURL},
		{fmt.Errorf("%w: x", ErrLinkNotFound), LinkNotFound},
		{fmt.Errorf("%w: x", ErrClickAmbiguous), ClickAmbiguous},
		{errors.New("anything else"), UnreachableURL},
	}
	for _, tc := range cases {
		var s *render.Snapshot
		if tc.err == nil {
			s = snap
		}
		out := outcomeOf(s, tc.err)
		if out.Kind != tc.want {
			t.Errorf("err %v: kind = %v, want %v", tc.err, out.Kind, tc.want)
		}
		if tc.err == nil && out.Snapshot == nil {
			t.Error("success outcome lost its snapshot")
		}
	}
}
