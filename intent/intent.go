// Package intent classifies raw model responses into browser actions.
//
// A response is one of: a navigation order {"url": "..."}, a click
// order {"click": "..."}, a final answer (any other non-empty text), or
// unparseable. Classification is decode-then-classify: the first JSON
// object that decodes cleanly wins; a response that looks like an
// intent object but fails to decode is Unparseable, never a crash.
package intent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NotFoundSentinel is the token the vision model emits when it cannot
// ground an answer in the current page.
const NotFoundSentinel = "ANSWER_NOT_FOUND"

// Kind discriminates the intent variants.
type Kind int

const (
	Navigate Kind = iota
	Click
	Answer
	Unparseable
	AnswerNotFound
)

func (k Kind) String() string {
	switch k {
	case Navigate:
		return "navigate"
	case Click:
		return "click"
	case Answer:
		return "answer"
	case AnswerNotFound:
		return "answer_not_found"
	default:
		return "unparseable"
	}
}

// Intent is the classified form of one model response. Exactly one of
// URL, LinkText, or Text is meaningful, selected by Kind. Err carries
// the decode diagnostic for Unparseable intents.
type Intent struct {
	Kind     Kind
	URL      string
	LinkText string
	Text     string
	Err      error
}

type payload struct {
	URL   string `json:"url"`
	Click string `json:"click"`
}

// Parse classifies a model response, tolerating prose around the JSON
// object (the unconstrained-output variant). Rules, in order:
//
//   - empty input → Unparseable
//   - contains NotFoundSentinel → AnswerNotFound
//   - a decodable object with a "url" key → Navigate (url wins over
//     click: navigation resets page state, so it must take precedence)
//   - a decodable object with a "click" key → Click
//   - something that looks like an intent object but will not decode →
//     Unparseable
//   - anything else → Answer, text passed through unchanged
//
// Parse is deterministic: the same input always yields the same Intent.
func Parse(raw string) Intent {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Intent{Kind: Unparseable, Err: ErrEmpty}
	}
	if strings.Contains(text, NotFoundSentinel) {
		return Intent{Kind: AnswerNotFound}
	}

	obj, found, err := extractObject(text)
	if err != nil {
		return Intent{Kind: Unparseable, Err: err}
	}
	if found {
		if obj.URL != "" {
			return Intent{Kind: Navigate, URL: obj.URL}
		}
		if obj.Click != "" {
			return Intent{Kind: Click, LinkText: obj.Click}
		}
	}
	return Intent{Kind: Answer, Text: raw}
}

// ParseStrict classifies a response produced under a JSON-constrained
// output format (the single-shot URL picker). The whole response must
// be a single object carrying a "url" key; anything else is
// Unparseable.
func ParseStrict(raw string) Intent {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Intent{Kind: Unparseable, Err: ErrEmpty}
	}
	if strings.Contains(text, NotFoundSentinel) {
		return Intent{Kind: AnswerNotFound}
	}

	var obj payload
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return Intent{Kind: Unparseable, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if obj.URL != "" {
		return Intent{Kind: Navigate, URL: obj.URL}
	}
	if obj.Click != "" {
		return Intent{Kind: Click, LinkText: obj.Click}
	}
	return Intent{Kind: Unparseable, Err: fmt.Errorf("%w: no url or click key", ErrMalformed)}
}

// extractObject scans for the first JSON object in text that decodes
// into an intent payload. A decoded object without url/click keys is
// skipped (e.g. a literal example embedded in prose). If nothing
// decodes but the text plainly tried to be an intent, that is an error.
func extractObject(text string) (payload, bool, error) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var obj payload
		if err := dec.Decode(&obj); err != nil {
			continue
		}
		if obj.URL != "" || obj.Click != "" {
			return obj, true, nil
		}
	}
	if strings.Contains(text, `"url"`) || strings.Contains(text, `"click"`) {
		return payload{}, false, fmt.Errorf("%w: %q", ErrMalformed, truncate(text, 120))
	}
	return payload{}, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
