// Package render produces the visual page representation the model
// decides on: every hyperlink gets a red border so clickable text is
// visually localizable, then a full-page JPEG is captured, reduced to
// grayscale, recompressed, persisted to a well-known path, and returned
// as base64 for the completion call.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// borderScript outlines every anchor. The border is assigned, not
// appended, so re-running it after a navigation or click leaves exactly
// one border per link.
const borderScript = `() => {
	const links = document.querySelectorAll('a');
	links.forEach(link => {
		link.style.border = '1px solid red';
	});
}`

// Config configures a Renderer.
type Config struct {
	// Path is where the latest capture is persisted. Default: "screenshot.jpg".
	Path string

	// Quality is the JPEG quality for both the capture and the
	// grayscale re-encode. Default: 42.
	Quality int

	// MaxWidth clamps the capture width before re-encoding. 0 disables.
	MaxWidth int

	// SettleTimeout bounds the pre-capture quiescence wait. Default: 10s.
	SettleTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Path == "" {
		c.Path = "screenshot.jpg"
	}
	if c.Quality <= 0 {
		c.Quality = 42
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Renderer captures annotated page snapshots.
type Renderer struct {
	cfg Config
}

// New creates a Renderer.
func New(cfg Config) *Renderer {
	cfg.defaults()
	return &Renderer{cfg: cfg}
}

// Path returns the snapshot artifact path.
func (r *Renderer) Path() string { return r.cfg.Path }

// Render waits for the page to settle, borders its links, and captures
// a full-page grayscale snapshot. The DOM styling mutation is reapplied
// on every call because navigations and clicks reload or change the
// document.
func (r *Renderer) Render(ctx context.Context, page *rod.Page) (*Snapshot, error) {
	log := r.cfg.Logger
	p := page.Context(ctx)

	// A stuck third-party request must not prevent the capture, so a
	// settle timeout is a warning, not a failure.
	if err := p.Timeout(r.cfg.SettleTimeout).WaitStable(300 * time.Millisecond); err != nil {
		log.Warn("render: settle wait timed out", "error", err)
	}

	if _, err := p.Eval(borderScript); err != nil {
		return nil, fmt.Errorf("render: border links: %w", err)
	}

	quality := r.cfg.Quality
	raw, err := p.Screenshot(true, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		return nil, fmt.Errorf("render: capture: %w", err)
	}

	data, w, h, err := compressGray(raw, r.cfg.Quality, r.cfg.MaxWidth)
	if err != nil {
		return nil, err
	}

	snap, err := writeSnapshot(r.cfg.Path, data, w, h)
	if err != nil {
		return nil, err
	}

	log.Debug("render: snapshot captured",
		"path", snap.Path,
		"width", w,
		"height", h,
		"bytes", len(data))
	return snap, nil
}
