package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/wsrecorder/idgen"
)

// SetupFunc prepares a fresh page before its first navigation, e.g. to
// install bindings and scripts that must see the first document.
type SetupFunc func(page *rod.Page) error

// Tab is the page being recorded.
type Tab struct {
	Page   *rod.Page
	ID     string
	router *rod.HijackRouter
}

// OpenTab creates a tab, runs setup, then navigates to pageURL and waits
// for the load event.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string, setup SetupFunc) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	log := mgr.cfg.Logger

	var page *rod.Page
	var err error
	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	tab := &Tab{Page: page, ID: idgen.New()}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		tab.router = blockResources(page, mgr.cfg.ResourceBlocking)
	}

	if setup != nil {
		if err := setup(page); err != nil {
			tab.Close()
			return nil, fmt.Errorf("browser: setup tab: %w", err)
		}
	}

	if pageURL == "" {
		return tab, nil
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		tab.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	log.Info("browser: tab opened", "id", tab.ID, "url", pageURL)
	return tab, nil
}

// Title returns document.title.
func (t *Tab) Title(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("browser: read title: %w", err)
	}
	return res.Value.Str(), nil
}

// SetTitle assigns document.title.
func (t *Tab) SetTitle(ctx context.Context, title string) error {
	_, err := t.Page.Context(ctx).Eval(`t => { document.title = t }`, title)
	if err != nil {
		return fmt.Errorf("browser: set title: %w", err)
	}
	return nil
}

// Location returns the absolute URL of the current document.
func (t *Tab) Location(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", fmt.Errorf("browser: read location: %w", err)
	}
	return res.Value.Str(), nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
