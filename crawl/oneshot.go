package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/webgaze/audit"
	"github.com/hazyhaar/webgaze/intent"
	"github.com/hazyhaar/webgaze/llm"
	"github.com/hazyhaar/webgaze/render"
	"github.com/hazyhaar/webgaze/transcript"
)

// Capturer fetches and screenshots a URL without a persistent browser
// session. render.ExecCapturer satisfies it; so does any function via
// CaptureFunc.
type Capturer interface {
	Capture(ctx context.Context, url string) (*render.Snapshot, error)
}

// CaptureFunc adapts a function to the Capturer interface.
type CaptureFunc func(ctx context.Context, url string) (*render.Snapshot, error)

// Capture implements Capturer.
func (f CaptureFunc) Capture(ctx context.Context, url string) (*render.Snapshot, error) {
	return f(ctx, url)
}

// OneShotConfig configures the single-shot answerer.
type OneShotConfig struct {
	// PickerModel proposes URLs under a JSON-constrained response
	// format; VisionModel answers from the captured screenshot.
	PickerModel string
	VisionModel string

	// Seed makes the picker deterministic across runs. Default: 2232.
	Seed int64

	// MaxTokens per completion. Default: 1024.
	MaxTokens int

	// MaxAttempts bounds URL proposals per question. Default: 5.
	MaxAttempts int

	// Audit optionally records every attempt.
	Audit *audit.Store

	Logger *slog.Logger
}

func (c *OneShotConfig) defaults() {
	if c.Seed == 0 {
		c.Seed = 2232
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// OneShot is the simplified sibling of Loop: the model only proposes
// destination URLs (no clicking); each successful capture gets exactly
// one vision call; the sentinel ANSWER_NOT_FOUND sends the picker back
// to URL selection. Every question starts from URL selection again —
// there is no page to continue from.
type OneShot struct {
	cfg     OneShotConfig
	model   Completer
	capture Capturer

	mu  sync.Mutex
	log *transcript.Log
}

// NewOneShot creates a single-shot answerer with a fresh transcript.
func NewOneShot(model Completer, capture Capturer, cfg OneShotConfig) *OneShot {
	cfg.defaults()
	return &OneShot{
		cfg:     cfg,
		model:   model,
		capture: capture,
		log:     transcript.New(pickerSystemPrompt),
	}
}

// Turns returns a copy of the picker conversation so far.
func (o *OneShot) Turns() []transcript.Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.log.Turns()
}

// Ask answers one question: pick a URL, capture it, ask the vision
// model once, retry with a different URL when the capture fails or the
// answer is not grounded in the page.
func (o *OneShot) Ask(ctx context.Context, question string) (string, error) {
	o.appendUser(question)

	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		text, err := o.model.CompleteText(ctx, o.pickerRequest())
		if err != nil {
			return "", fmt.Errorf("crawl: picker call: %w", err)
		}

		it := intent.ParseStrict(text)
		if it.Kind != intent.Navigate {
			o.appendAssistant(text)
			o.appendUser(recoverPickerFormat)
			o.record(question, it, "recovered", errString(it.Err), 0)
			o.cfg.Logger.Warn("crawl: picker response unusable", "error", it.Err)
			continue
		}
		o.appendAssistant(text)
		o.cfg.Logger.Info("crawl: crawling", "url", it.URL)

		start := time.Now()
		snap, err := o.capture.Capture(ctx, it.URL)
		if err != nil {
			o.appendUser(recoverPickAnother)
			o.record(question, it, UnreachableURL.String(), err.Error(), time.Since(start).Microseconds())
			o.cfg.Logger.Warn("crawl: capture failed", "url", it.URL, "error", err)
			continue
		}

		answer, err := o.model.CompleteText(ctx, o.visionRequest(question, snap))
		if err != nil {
			return "", fmt.Errorf("crawl: vision call: %w", err)
		}

		if intent.Parse(answer).Kind == intent.AnswerNotFound {
			o.appendUser(recoverAnswerMissing)
			o.record(question, it, "answer_not_found", "", time.Since(start).Microseconds())
			o.cfg.Logger.Info("crawl: answer not grounded", "url", it.URL)
			continue
		}

		o.appendAssistant(answer)
		o.record(question, it, "success", "", time.Since(start).Microseconds())
		return answer, nil
	}

	return "", fmt.Errorf("%w after %d attempts", ErrAttemptsExhausted, o.cfg.MaxAttempts)
}

// pickerRequest asks for the next URL under a strict JSON constraint
// with a fixed seed.
func (o *OneShot) pickerRequest() llm.Request {
	seed := o.cfg.Seed
	o.mu.Lock()
	turns := o.log.Turns()
	o.mu.Unlock()
	return llm.Request{
		Model:          o.cfg.PickerModel,
		Messages:       Messages(turns),
		MaxTokens:      o.cfg.MaxTokens,
		Seed:           &seed,
		ResponseFormat: &llm.ResponseFormat{Type: "json_object"},
	}
}

// visionRequest re-frames the conversation for the answer model: its
// own system prompt, the picker history minus the picker's system
// turn, then the screenshot paired with the question.
func (o *OneShot) visionRequest(question string, snap *render.Snapshot) llm.Request {
	o.mu.Lock()
	turns := o.log.Turns()
	o.mu.Unlock()

	msgs := []llm.Message{llm.TextMessage(string(transcript.RoleSystem), visionSystemPrompt)}
	msgs = append(msgs, Messages(turns[1:])...)
	msgs = append(msgs, llm.ImageMessage(string(transcript.RoleUser), snap.Base64, question))

	return llm.Request{
		Model:     o.cfg.VisionModel,
		Messages:  msgs,
		MaxTokens: o.cfg.MaxTokens,
	}
}

func (o *OneShot) appendUser(text string) {
	o.mu.Lock()
	o.log.AppendUser(text)
	o.mu.Unlock()
}

func (o *OneShot) appendAssistant(text string) {
	o.mu.Lock()
	o.log.AppendAssistant(text)
	o.mu.Unlock()
}

func (o *OneShot) record(question string, it intent.Intent, outcome, errMsg string, durationUs int64) {
	if o.cfg.Audit == nil {
		return
	}
	o.cfg.Audit.RecordAsync(&audit.Step{
		Question:   question,
		Intent:     it.Kind.String(),
		Target:     it.URL,
		Outcome:    outcome,
		Error:      errMsg,
		DurationUs: durationUs,
		Timestamp:  time.Now().Unix(),
	})
}
