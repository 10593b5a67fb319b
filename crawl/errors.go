package crawl

import "errors"

// ErrUnreachableURL is returned by a Driver when navigation fails or
// the post-navigation capture produces no renderable page.
var ErrUnreachableURL = errors.New("crawl: URL unreachable")

// ErrLinkNotFound is returned by a Driver when no visible link matches
// the requested text, or the click itself raised.
var ErrLinkNotFound = errors.New("crawl: link not found")

// ErrClickAmbiguous is returned by a Driver when more than one visible
// link matches the requested text.
var ErrClickAmbiguous = errors.New("crawl: click target ambiguous")

// ErrAttemptsExhausted is returned when the per-question attempt budget
// runs out before the model produces an answer.
var ErrAttemptsExhausted = errors.New("crawl: attempt budget exhausted")
