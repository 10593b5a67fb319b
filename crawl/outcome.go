package crawl

import (
	"context"
	"errors"

	"github.com/hazyhaar/webgaze/render"
)

// OutcomeKind classifies the result of executing one intent.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	UnreachableURL
	LinkNotFound
	ClickAmbiguous
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case UnreachableURL:
		return "unreachable_url"
	case LinkNotFound:
		return "link_not_found"
	default:
		return "click_ambiguous"
	}
}

// Outcome is the executor's report for one intent. A successful
// navigate or click always carries the fresh post-action snapshot; a
// failed one carries the underlying error for diagnostics. Outcomes
// are consumed once and folded into the next transcript turn.
type Outcome struct {
	Kind     OutcomeKind
	Snapshot *render.Snapshot
	Err      error
}

// Driver executes browser actions on behalf of the loop. Every
// successful action includes a render of its consequence, so the next
// model turn always sees the page the action produced. Failures are
// reported as errors wrapping the crawl sentinels; drivers never panic
// across this boundary.
type Driver interface {
	// Navigate loads url and renders the result.
	Navigate(ctx context.Context, url string) (*render.Snapshot, error)

	// Click clicks the first visible link whose text contains linkText
	// and renders the result.
	Click(ctx context.Context, linkText string) (*render.Snapshot, error)

	// Render captures the current page without acting on it.
	Render(ctx context.Context) (*render.Snapshot, error)
}

// outcomeOf converts a driver result into a typed Outcome.
func outcomeOf(snap *render.Snapshot, err error) Outcome {
	if err == nil {
		return Outcome{Kind: Success, Snapshot: snap}
	}
	switch {
	case errors.Is(err, ErrClickAmbiguous):
		return Outcome{Kind: ClickAmbiguous, Err: err}
	case errors.Is(err, ErrLinkNotFound):
		return Outcome{Kind: LinkNotFound, Err: err}
	default:
		return Outcome{Kind: UnreachableURL, Err: err}
	}
}
