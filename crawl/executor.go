package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/webgaze/browser"
	"github.com/hazyhaar/webgaze/netguard"
	"github.com/hazyhaar/webgaze/render"
)

// ExecutorConfig configures the rod-backed Driver.
type ExecutorConfig struct {
	// NavigateTimeout bounds a navigation. Default: 30s.
	NavigateTimeout time.Duration

	// ClickTimeout bounds locating and clicking a link. A timeout is
	// treated the same as "link not present": too slow and absent are
	// the same failure class for the model. Default: 5s.
	ClickTimeout time.Duration

	// BlockPrivate rejects navigation to private/loopback addresses.
	BlockPrivate bool

	Logger *slog.Logger
}

func (c *ExecutorConfig) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.ClickTimeout <= 0 {
		c.ClickTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Executor drives a live browser session. It implements Driver; the
// render-after-action step is built into Navigate and Click so no
// caller can observe an action without its visual consequence.
type Executor struct {
	cfg      ExecutorConfig
	session  *browser.Session
	renderer *render.Renderer
}

// NewExecutor creates an Executor over a live session.
func NewExecutor(session *browser.Session, renderer *render.Renderer, cfg ExecutorConfig) *Executor {
	cfg.defaults()
	return &Executor{cfg: cfg, session: session, renderer: renderer}
}

// Navigate loads url, waits for it to settle, and renders it. All
// failures — invalid URL, navigation error, capture failure — collapse
// into ErrUnreachableURL: from the model's point of view the site could
// not be crawled, whatever the mechanism.
func (e *Executor) Navigate(ctx context.Context, url string) (*render.Snapshot, error) {
	if err := netguard.ValidateURL(url, e.cfg.BlockPrivate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachableURL, err)
	}

	navCtx, cancel := context.WithTimeout(ctx, e.cfg.NavigateTimeout)
	defer cancel()

	page := e.session.Page.Context(navCtx)
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachableURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		e.cfg.Logger.Warn("crawl: wait load timeout", "url", url, "error", err)
	}

	snap, err := e.renderer.Render(ctx, e.session.Page)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachableURL, err)
	}
	e.cfg.Logger.Info("crawl: navigated", "url", url, "title", e.session.Title())
	return snap, nil
}

// Click locates the single visible link whose text contains linkText,
// clicks it, and renders the result. Zero matches (or a click that
// raises, or a timeout) is ErrLinkNotFound; multiple matches is
// ErrClickAmbiguous rather than silently picking the first — the model
// asked for "a unique part of the link text" and gets told when it
// wasn't unique.
func (e *Executor) Click(ctx context.Context, linkText string) (*render.Snapshot, error) {
	clickCtx, cancel := context.WithTimeout(ctx, e.cfg.ClickTimeout)
	defer cancel()

	el, err := e.findLink(clickCtx, linkText)
	if err != nil {
		return nil, err
	}

	// Forced click: a plain input click fails on links under sticky
	// headers or cookie banners; the JS fallback bypasses hit testing.
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		if _, jsErr := el.Eval(`() => this.click()`); jsErr != nil {
			return nil, fmt.Errorf("%w: click %q raised: %v", ErrLinkNotFound, linkText, err)
		}
	}

	snap, err := e.renderer.Render(ctx, e.session.Page)
	if err != nil {
		return nil, fmt.Errorf("%w: post-click capture: %v", ErrLinkNotFound, err)
	}
	e.cfg.Logger.Info("crawl: clicked", "link", linkText, "title", e.session.Title())
	return snap, nil
}

// Render captures the current page without acting on it.
func (e *Executor) Render(ctx context.Context) (*render.Snapshot, error) {
	return e.renderer.Render(ctx, e.session.Page)
}

// findLink returns the unique visible anchor whose text contains
// linkText (substring match — the model reads truncated text off a
// lossy screenshot, so exact match would be hostile).
func (e *Executor) findLink(ctx context.Context, linkText string) (*rod.Element, error) {
	page := e.session.Page.Context(ctx)
	anchors, err := page.Elements("a")
	if err != nil {
		return nil, fmt.Errorf("%w: query links: %v", ErrLinkNotFound, err)
	}

	var matches []*rod.Element
	for _, a := range anchors {
		visible, err := a.Visible()
		if err != nil || !visible {
			continue
		}
		text, err := a.Text()
		if err != nil {
			continue
		}
		if strings.Contains(text, linkText) {
			matches = append(matches, a)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: no visible link contains %q", ErrLinkNotFound, linkText)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %d visible links contain %q", ErrClickAmbiguous, len(matches), linkText)
	}
}
