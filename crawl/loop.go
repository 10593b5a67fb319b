// Package crawl is the decision loop at the heart of webgaze: capture
// a visual representation of the current page, ask the model for its
// next intent, execute that intent against the live browser, fold
// failures back into the conversation, and stop when the model answers
// in plain text.
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
	"github.com/hazyhaar/webgaze/transcript"
)

// State is the loop's position in its cycle, exposed for diagnostics.
type State int

const (
	StateAwaitingURL State = iota
	StateAwaitingDecision
	StateExecuting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingURL:
		return "awaiting_url"
	case StateAwaitingDecision:
		return "awaiting_decision"
	case StateExecuting:
		return "executing"
	default:
		return "done"
	}
}

// Completer is the model capability the loop consumes: one synchronous
// completion per call. *llm.Client satisfies it.
type Completer interface {
	CompleteText(ctx context.Context, req llm.Request) (string, error)
}

// LoopConfig configures the browsing loop.
type LoopConfig struct {
	// Model is the completion model identifier.
	Model string

	// SeedURL is rendered before the first question so the model's
	// first decision has a page to look at. Default: https://bbc.com/news.
	SeedURL string

	// MaxTokens per completion. Default: 1024.
	MaxTokens int

	// MaxAttempts bounds model calls per question. When the budget runs
	// out the question fails with ErrAttemptsExhausted instead of
	// re-prompting forever. Default: 20.
	MaxAttempts int

	// Audit optionally records every executed step.
	Audit *audit.Store

	Logger *slog.Logger
}

func (c *LoopConfig) defaults() {
	if c.SeedURL == "" {
		c.SeedURL = "https://bbc.com/news"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Loop owns one conversation and one browser session for its lifetime.
// Strictly sequential: one outstanding model call or browser action at
// a time. Not safe for concurrent Ask calls; the read accessors are
// safe for a concurrent diagnostics reader.
type Loop struct {
	cfg    LoopConfig
	model  Completer
	driver Driver

	mu       sync.Mutex
	log      *transcript.Log
	state    State
	rendered bool
}

// NewLoop creates a browsing loop with a fresh transcript.
func NewLoop(model Completer, driver Driver, cfg LoopConfig) *Loop {
	cfg.defaults()
	return &Loop{
		cfg:    cfg,
		model:  model,
		driver: driver,
		log:    transcript.New(browseSystemPrompt),
		state:  StateAwaitingURL,
	}
}

// State reports the loop's current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Turns returns a copy of the conversation so far.
func (l *Loop) Turns() []transcript.Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.log.Turns()
}

// Ask answers one question by browsing. Follow-up questions continue
// from the current page with the same transcript. Only an explicit
// answer terminates normally; recoverable failures are folded into the
// conversation and retried until the attempt budget is spent.
func (l *Loop) Ask(ctx context.Context, question string) (string, error) {
	l.append(transcript.Turn{Role: transcript.RoleUser, Text: question})

	if !l.seeded() {
		l.seed(ctx, question)
	}

	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		l.setState(StateAwaitingDecision)

		text, err := l.model.CompleteText(ctx, l.request())
		if err != nil {
			// The capability layer failing is unmodeled: fatal, not a
			// recovery turn.
			return "", fmt.Errorf("crawl: model call: %w", err)
		}

		it := intent.Parse(text)
		l.append(transcript.Turn{Role: transcript.RoleAssistant, Text: text})
		l.cfg.Logger.Debug("crawl: intent", "kind", it.Kind.String(), "attempt", attempt)

		switch it.Kind {
		case intent.Navigate:
			l.setState(StateExecuting)
			start := time.Now()
			out := outcomeOf(l.driver.Navigate(ctx, it.URL))
			l.fold(question, it, out, time.Since(start))

		case intent.Click:
			l.setState(StateExecuting)
			start := time.Now()
			out := outcomeOf(l.driver.Click(ctx, it.LinkText))
			l.fold(question, it, out, time.Since(start))

		case intent.Answer:
			l.setState(StateDone)
			l.record(question, it, "success", "", 0)
			return it.Text, nil

		default:
			l.append(transcript.Turn{Role: transcript.RoleUser, Text: recoverUnparseable})
			l.record(question, it, "recovered", errString(it.Err), 0)
			l.cfg.Logger.Warn("crawl: unparseable response", "error", it.Err)
		}
	}

	l.record(question, intent.Intent{Kind: intent.Unparseable}, "exhausted", "", 0)
	return "", fmt.Errorf("%w after %d attempts", ErrAttemptsExhausted, l.cfg.MaxAttempts)
}

// seed renders the seed URL so the first decision has a snapshot. A
// failing seed is folded like any unreachable navigation; the model
// will pick its own URL.
func (l *Loop) seed(ctx context.Context, question string) {
	l.cfg.Logger.Info("crawl: seeding", "url", l.cfg.SeedURL)
	start := time.Now()
	out := outcomeOf(l.driver.Navigate(ctx, l.cfg.SeedURL))
	l.fold(question, intent.Intent{Kind: intent.Navigate, URL: l.cfg.SeedURL}, out, time.Since(start))
	l.mu.Lock()
	l.rendered = true
	l.mu.Unlock()
}

// fold appends the outcome of an executed action to the conversation:
// a snapshot turn on success, a recovery turn (with no image — the page
// did not change) on failure.
func (l *Loop) fold(question string, it intent.Intent, out Outcome, took time.Duration) {
	if out.Kind == Success {
		l.append(transcript.Turn{
			Role:     transcript.RoleUser,
			Text:     screenshotHelperPrompt,
			ImageB64: out.Snapshot.Base64,
		})
		l.record(question, it, out.Kind.String(), "", took.Microseconds())
		return
	}

	recovery := recoverUnreachable
	if it.Kind == intent.Click {
		recovery = recoverClick
	}
	l.append(transcript.Turn{Role: transcript.RoleUser, Text: recovery})
	l.record(question, it, out.Kind.String(), errString(out.Err), took.Microseconds())
	l.cfg.Logger.Warn("crawl: action failed",
		"kind", it.Kind.String(),
		"outcome", out.Kind.String(),
		"error", out.Err)
}

func (l *Loop) request() llm.Request {
	l.mu.Lock()
	turns := l.log.Turns()
	l.mu.Unlock()
	return llm.Request{
		Model:     l.cfg.Model,
		Messages:  Messages(turns),
		MaxTokens: l.cfg.MaxTokens,
	}
}

func (l *Loop) append(t transcript.Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch t.Role {
	case transcript.RoleAssistant:
		l.log.AppendAssistant(t.Text)
	default:
		if t.ImageB64 != "" {
			l.log.AppendUserImage(t.Text, t.ImageB64)
		} else {
			l.log.AppendUser(t.Text)
		}
	}
}

func (l *Loop) seeded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rendered
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Loop) record(question string, it intent.Intent, outcome, errMsg string, durationUs int64) {
	if l.cfg.Audit == nil {
		return
	}
	target := it.URL
	if it.Kind == intent.Click {
		target = it.LinkText
	}
	l.cfg.Audit.RecordAsync(&audit.Step{
		Question:   question,
		Intent:     it.Kind.String(),
		Target:     target,
		Outcome:    outcome,
		Error:      errMsg,
		DurationUs: durationUs,
		Timestamp:  time.Now().Unix(),
	})
}

// Messages converts transcript turns into completion messages. Image
// turns become image_url+text part lists; everything else is plain
// text.
func Messages(turns []transcript.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		if t.ImageB64 != "" {
			out = append(out, llm.ImageMessage(string(t.Role), t.ImageB64, t.Text))
			continue
		}
		out = append(out, llm.TextMessage(string(t.Role), t.Text))
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
