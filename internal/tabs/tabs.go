// Package tabs keeps the set of pages opened for capture and routes messages to
// the content script injected into each one.
package tabs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/knowledgepin/cli/internal/extract"
	"github.com/knowledgepin/cli/internal/messaging"
)

var (
	ErrNoActiveTab = errors.New("no active tab")
	ErrNoTab       = errors.New("no such tab")
)

// Tab is an opened page.
type Tab struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Injector installs a content script's handlers on a tab's router.
type Injector func(tab Tab, doc *goquery.Document, r *messaging.Router)

type entry struct {
	tab    Tab
	router *messaging.Router
}

// Host opens pages through a loader and injects a content script into each.
type Host struct {
	loader    extract.Loader
	inject    Injector
	canonical bool

	mu     sync.RWMutex
	tabs   map[int]*entry
	active int
	nextID int
}

type HostOption func(*Host)

// WithCanonicalURL records a tab under the URL the page declares for itself
// (see extract.CanonicalURL) instead of the URL it was loaded from. Saved
// pages opened from disk keep their original web address this way.
func WithCanonicalURL() HostOption {
	return func(h *Host) { h.canonical = true }
}

func NewHost(loader extract.Loader, inject Injector, opts ...HostOption) *Host {
	h := &Host{
		loader: loader,
		inject: inject,
		tabs:   make(map[int]*entry),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open loads url, registers it as a new tab and makes it the active one.
func (h *Host) Open(ctx context.Context, url string) (Tab, error) {
	doc, err := h.loader.Load(ctx, url)
	if err != nil {
		return Tab{}, fmt.Errorf("open tab: %w", err)
	}

	if h.canonical {
		url = extract.CanonicalURL(doc, url)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	tab := Tab{ID: h.nextID, URL: url, Title: extract.Title(doc)}
	router := messaging.NewRouter()
	if h.inject != nil {
		h.inject(tab, doc, router)
	}
	h.tabs[tab.ID] = &entry{tab: tab, router: router}
	h.active = tab.ID
	return tab, nil
}

// Activate makes an already opened tab the active one.
func (h *Host) Activate(id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.tabs[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNoTab, id)
	}
	h.active = id
	return nil
}

// Close forgets a tab. Closing the active tab leaves no tab active.
func (h *Host) Close(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.tabs, id)
	if h.active == id {
		h.active = 0
	}
}

// ActiveTab returns the tab that was opened or activated last.
func (h *Host) ActiveTab(ctx context.Context) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return Tab{}, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.tabs[h.active]
	if !ok {
		return Tab{}, ErrNoActiveTab
	}
	return e.tab, nil
}

// Get returns the tab with the given id.
func (h *Host) Get(id int) (Tab, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.tabs[id]
	if !ok {
		return Tab{}, fmt.Errorf("%w: %d", ErrNoTab, id)
	}
	return e.tab, nil
}

// SendMessage delivers req to the content script of tab id.
func (h *Host) SendMessage(ctx context.Context, id int, req messaging.Request) (messaging.Response, error) {
	h.mu.RLock()
	e, ok := h.tabs[id]
	h.mu.RUnlock()
	if !ok {
		return messaging.Response{}, fmt.Errorf("%w: %d", ErrNoTab, id)
	}
	return e.router.Send(ctx, req)
}
