package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Session is the single live page handle the crawl loop mutates. It is
// exclusively owned by one loop; there is no concurrent access.
type Session struct {
	Page    *rod.Page
	manager *Manager
}

// NewSession creates a blank page with the configured viewport applied
// and a watcher that logs any popup page the site opens. The crawler
// never interacts with popups; logging their titles keeps them visible
// in diagnostics.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.ViewportWidth,
		Height:            m.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		m.cfg.Logger.Warn("browser: set viewport failed", "error", err)
	}

	m.watchPopups(ctx, b, page)

	return &Session{Page: page, manager: m}, nil
}

// watchPopups logs pages opened outside the session's own tab.
func (m *Manager) watchPopups(ctx context.Context, b *rod.Browser, own *rod.Page) {
	log := m.cfg.Logger
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		log.Debug("browser: target discovery unavailable", "error", err)
		return
	}
	go b.Context(ctx).EachEvent(func(e *proto.TargetTargetCreated) {
		if e.TargetInfo.Type != "page" || e.TargetInfo.TargetID == own.TargetID {
			return
		}
		log.Info("browser: popup opened",
			"title", e.TargetInfo.Title,
			"url", e.TargetInfo.URL)
	})()
}

// Title returns the current document title, for diagnostics.
func (s *Session) Title() string {
	info, err := s.Page.Info()
	if err != nil {
		return ""
	}
	return info.Title
}

// Close closes the page.
func (s *Session) Close() error {
	if s.Page != nil {
		return s.Page.Close()
	}
	return nil
}
